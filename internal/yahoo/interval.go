package yahoo

import "fmt"

// Interval is the sampling granularity of returned rows.
type Interval int

const (
	Daily Interval = iota
	Weekly
	Monthly
	Quarterly
)

// Code returns the query-parameter form of the interval. An out-of-range
// value is a programming error, not bad user input, so it panics.
func (i Interval) Code() string {
	switch i {
	case Daily:
		return "1d"
	case Weekly:
		return "1wk"
	case Monthly:
		return "1mo"
	case Quarterly:
		return "3mo"
	default:
		panic(fmt.Sprintf("yahoo: invalid interval %d", int(i)))
	}
}

// ParseInterval maps a wire code back to an Interval. The empty string means
// the default (daily).
func ParseInterval(code string) (Interval, error) {
	switch code {
	case "", "1d":
		return Daily, nil
	case "1wk":
		return Weekly, nil
	case "1mo":
		return Monthly, nil
	case "3mo":
		return Quarterly, nil
	default:
		return Daily, fmt.Errorf("unknown interval %q", code)
	}
}

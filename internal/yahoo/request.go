package yahoo

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // exchange time zone must resolve even without OS tzdata

	"github.com/quotefeed/prices-api/internal/apperror"
)

// eastern is the exchange's local time zone. Period bounds are calendar dates
// interpreted at Eastern midnight; the endpoint's day bucketing depends on
// this, DST transitions included.
var eastern = mustLoadEastern()

func mustLoadEastern() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		panic(fmt.Sprintf("yahoo: load exchange time zone: %v", err))
	}
	return loc
}

// Query describes one historical price request. Zero-value dates are open
// bounds: no FirstDate means "from the beginning", no LastDate means "through
// today". The zero Interval is Daily.
type Query struct {
	Symbol    string
	FirstDate time.Time
	LastDate  time.Time
	Interval  Interval
}

func (q Query) Validate() *apperror.AppError {
	if strings.TrimSpace(q.Symbol) == "" {
		return apperror.New(apperror.BadRequest, "symbol is required")
	}
	if !q.FirstDate.IsZero() && !q.LastDate.IsZero() && q.FirstDate.After(q.LastDate) {
		return apperror.New(apperror.BadRequest, "firstDate must not be after lastDate")
	}
	return nil
}

// periodBounds converts the query's date range to Unix seconds. An absent
// first date is the Unix epoch; an absent last date is today's calendar date
// (in the caller's local zone), interpreted at Eastern midnight like every
// explicit bound.
func (q Query) periodBounds(now time.Time) (period1, period2 int64) {
	if !q.FirstDate.IsZero() {
		period1 = easternMidnight(q.FirstDate).Unix()
	}
	last := q.LastDate
	if last.IsZero() {
		last = now
	}
	period2 = easternMidnight(last).Unix()
	return period1, period2
}

func easternMidnight(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, eastern)
}

func downloadURL(endpoint, symbol string, period1, period2 int64, interval Interval, crumb string) string {
	params := url.Values{}
	params.Set("period1", strconv.FormatInt(period1, 10))
	params.Set("period2", strconv.FormatInt(period2, 10))
	params.Set("interval", interval.Code())
	params.Set("events", "history")
	params.Set("includeAdjustedClose", "true")
	params.Set("crumb", crumb)

	return fmt.Sprintf("%s/%s?%s", endpoint, url.PathEscape(symbol), params.Encode())
}

package price

import "time"

type Source string

const (
	SourceYahoo Source = "yahoo"
)

// Price is one stored trading period. The date is always present; every
// numeric field is independently optional because the upstream may return
// "null" for any of them without invalidating the row.
type Price struct {
	ID        int64     `json:"id"`
	Source    Source    `json:"source"`
	Symbol    string    `json:"symbol"`
	Date      time.Time `json:"date"`
	Open      *float64  `json:"open"`
	High      *float64  `json:"high"`
	Low       *float64  `json:"low"`
	Close     *float64  `json:"close"`
	AdjClose  *float64  `json:"adjClose"`
	Volume    *int64    `json:"volume"`
	CreatedAt time.Time `json:"createdAt"`
}

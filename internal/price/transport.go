package price

import (
	"time"

	"github.com/quotefeed/prices-api/internal/apperror"
	"github.com/quotefeed/prices-api/internal/job"
	"github.com/quotefeed/prices-api/internal/yahoo"
)

type GetPricesRequest struct {
	Source    Source
	Symbol    string
	StartDate time.Time
	EndDate   time.Time
	Interval  string // wire code: 1d, 1wk, 1mo, 3mo; empty means daily
	Format    string // "json" or "csv"
}

func (r GetPricesRequest) Validate() *apperror.AppError {
	if len(r.Symbol) < 1 {
		return apperror.New(apperror.BadRequest, "symbol is required")
	}
	if r.StartDate.IsZero() {
		return apperror.New(apperror.BadRequest, "startDate is required")
	}
	if !r.EndDate.IsZero() && r.EndDate.Before(r.StartDate) {
		return apperror.New(apperror.BadRequest, "endDate must not be before startDate")
	}
	if _, err := yahoo.ParseInterval(r.Interval); err != nil {
		return apperror.New(apperror.BadRequest, "interval must be one of 1d, 1wk, 1mo, 3mo")
	}
	if r.Format != "" && r.Format != "json" && r.Format != "csv" {
		return apperror.New(apperror.BadRequest, "format must be json or csv")
	}
	return nil
}

type GetPricesResponse struct {
	Prices []Price  `json:"prices"`
	Job    *job.Job `json:"job,omitempty"`
}

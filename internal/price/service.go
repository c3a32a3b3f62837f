package price

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/quotefeed/prices-api/internal/job"
	"github.com/quotefeed/prices-api/internal/scraper"
)

const dateFormat = "2006-01-02"

type Service struct {
	priceRepo Repository
	jobRepo   job.Repository
	registry  *scraper.Registry
	notify    func() // optional: wake worker pool
}

func NewService(priceRepo Repository, jobRepo job.Repository, registry *scraper.Registry) *Service {
	return &Service{
		priceRepo: priceRepo,
		jobRepo:   jobRepo,
		registry:  registry,
	}
}

// SetNotify sets a callback invoked when a new pending job is created.
func (s *Service) SetNotify(fn func()) { s.notify = fn }

func (s *Service) ListSources() []string {
	return s.registry.Sources()
}

// GetPrices answers from the store and, when coverage of the requested window
// looks poor, queues a background scrape job so the gap fills in.
func (s *Service) GetPrices(ctx context.Context, req GetPricesRequest) (*GetPricesResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if _, err := s.registry.Get(string(req.Source)); err != nil {
		return nil, err
	}

	endDate := req.EndDate
	if endDate.IsZero() {
		endDate = time.Now().Truncate(24 * time.Hour)
	}

	existing, err := s.priceRepo.ExistingDates(ctx, req.Source, req.Symbol, req.StartDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("check existing dates: %w", err)
	}

	// Rough expected-row heuristic: weekdays. Good enough to decide whether a
	// scrape is worth queueing; holidays just bias toward scraping.
	totalDays := countWeekdays(req.StartDate, endDate)
	coverageRatio := float64(len(existing)) / float64(max(totalDays, 1))

	var j *job.Job
	if coverageRatio <= 0.8 || len(existing) == 0 {
		j, err = s.queueJob(ctx, req, endDate)
		if err != nil {
			return nil, err
		}
	}

	prices, err := s.priceRepo.ListPrices(ctx, req.Source, req.Symbol, req.StartDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("list prices: %w", err)
	}

	return &GetPricesResponse{Prices: prices, Job: j}, nil
}

func (s *Service) queueJob(ctx context.Context, req GetPricesRequest, endDate time.Time) (*job.Job, error) {
	// Dedup: reuse an already pending/running job for the same range.
	active, err := s.jobRepo.FindActive(ctx, string(req.Source), req.Symbol,
		req.StartDate.Format(dateFormat), endDate.Format(dateFormat))
	if err != nil {
		return nil, fmt.Errorf("find active job: %w", err)
	}
	if active != nil {
		return active, nil
	}

	j := &job.Job{
		Source:    string(req.Source),
		Symbol:    req.Symbol,
		StartDate: req.StartDate,
		EndDate:   endDate,
		Interval:  req.Interval,
		Status:    job.StatusPending,
	}
	if err := s.jobRepo.Create(ctx, j); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	if s.notify != nil {
		s.notify()
	}
	return j, nil
}

// Process implements job.Processor. Called by the worker pool with a claimed
// (running) job: scrape, drop rows already stored, persist, mark the job.
func (s *Service) Process(ctx context.Context, j *job.Job) error {
	sc, err := s.registry.Get(j.Source)
	if err != nil {
		return s.failJob(ctx, j, err)
	}

	existing, err := s.priceRepo.ExistingDates(ctx, Source(j.Source), j.Symbol, j.StartDate, j.EndDate)
	if err != nil {
		return s.failJob(ctx, j, fmt.Errorf("check existing dates: %w", err))
	}

	scraped, err := sc.Scrape(ctx, j.Symbol, j.StartDate, j.EndDate, j.Interval)
	if err != nil {
		return s.failJob(ctx, j, fmt.Errorf("scrape: %w", err))
	}

	newPrices := make([]Price, 0, len(scraped))
	for _, sp := range scraped {
		if existing[sp.Date] {
			continue
		}
		newPrices = append(newPrices, Price{
			Source:   Source(j.Source),
			Symbol:   j.Symbol,
			Date:     sp.Date,
			Open:     sp.Open,
			High:     sp.High,
			Low:      sp.Low,
			Close:    sp.Close,
			AdjClose: sp.AdjClose,
			Volume:   sp.Volume,
		})
	}

	n, err := s.priceRepo.SavePrices(ctx, newPrices)
	if err != nil {
		return s.failJob(ctx, j, fmt.Errorf("save prices: %w", err))
	}

	slog.Info("saved prices", "source", j.Source, "symbol", j.Symbol, "new", n, "total_scraped", len(scraped))

	j.Status = job.StatusCompleted
	j.RecordsCount = n
	_ = s.jobRepo.Update(ctx, j)
	return nil
}

func (s *Service) failJob(ctx context.Context, j *job.Job, err error) error {
	j.Status = job.StatusFailed
	j.Error = err.Error()
	_ = s.jobRepo.Update(ctx, j)
	return err
}

func countWeekdays(from, to time.Time) int {
	count := 0
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		wd := d.Weekday()
		if wd != time.Saturday && wd != time.Sunday {
			count++
		}
	}
	return count
}

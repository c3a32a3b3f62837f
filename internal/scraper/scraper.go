package scraper

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// ScrapedPrice is one trading period as returned by a source. Only the date
// is guaranteed; every numeric field may be absent when the source could not
// produce it, without invalidating the row.
type ScrapedPrice struct {
	Date     time.Time
	Open     *float64
	High     *float64
	Low      *float64
	Close    *float64
	AdjClose *float64
	Volume   *int64
}

type Scraper interface {
	Source() string
	// Scrape fetches rows for the symbol between from and to (inclusive) at
	// the given sampling interval ("1d", "1wk", "1mo" or "3mo").
	Scrape(ctx context.Context, symbol string, from, to time.Time, interval string) ([]ScrapedPrice, error)
}

type Registry struct {
	mu       sync.RWMutex
	scrapers map[string]Scraper
}

func NewRegistry() *Registry {
	return &Registry{
		scrapers: make(map[string]Scraper),
	}
}

func (r *Registry) Register(s Scraper) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scrapers[s.Source()] = s
}

func (r *Registry) Get(source string) (Scraper, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.scrapers[source]
	if !ok {
		return nil, fmt.Errorf("scraper not found for source: %s", source)
	}
	return s, nil
}

func (r *Registry) Sources() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sources := make([]string, 0, len(r.scrapers))
	for src := range r.scrapers {
		sources = append(sources, src)
	}
	return sources
}

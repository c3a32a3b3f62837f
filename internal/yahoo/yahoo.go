// Package yahoo fetches historical stock prices from the Yahoo Finance v7
// download endpoint. The endpoint requires a session cookie and a "crumb"
// token scraped out of an unrelated quote page; both are cached and refreshed
// on a configurable interval.
package yahoo

import (
	"context"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/quotefeed/prices-api/internal/apperror"
	"github.com/quotefeed/prices-api/internal/scraper"
)

const (
	defaultDownloadEndpoint = "https://query1.finance.yahoo.com/v7/finance/download"
	defaultQuoteURL         = "https://finance.yahoo.com/quote/%5EGSPC"
	defaultResetInterval    = 5 * time.Minute
	userAgent               = "Mozilla/5.0 (X11; Linux x86_64; rv:109.0) Gecko/20100101 Firefox/115.0"
	chunkDays               = 1250
	requestsPerSecond       = 5
)

// Client fetches historical prices. It is safe for concurrent use; sharing
// one Client shares its credential cache.
type Client struct {
	workers          int
	httpClient       *http.Client
	limiter          *rate.Limiter
	downloadEndpoint string
	quoteURL         string
	resetInterval    time.Duration

	creds *crumbCache
}

// New creates a Client with the given options applied.
func New(opts ...Option) *Client {
	c := &Client{
		workers:          5,
		httpClient:       &http.Client{Timeout: 30 * time.Second},
		limiter:          rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		downloadEndpoint: defaultDownloadEndpoint,
		quoteURL:         defaultQuoteURL,
		resetInterval:    defaultResetInterval,
	}
	for _, o := range opts {
		o(c)
	}
	c.creds = newCrumbCache(c.httpClient, c.quoteURL, c.resetInterval)
	return c
}

// Option configures a Client.
type Option func(*Client)

// WithWorkers sets the concurrency for parallel chunk fetching in Scrape.
func WithWorkers(n int) Option {
	return func(c *Client) { c.workers = n }
}

// WithClient sets the HTTP client used for both the quote page and the data
// endpoint.
func WithClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithDownloadEndpoint overrides the data endpoint base URL.
func WithDownloadEndpoint(ep string) Option {
	return func(c *Client) { c.downloadEndpoint = ep }
}

// WithQuoteURL overrides the page scraped for the cookie and crumb.
func WithQuoteURL(u string) Option {
	return func(c *Client) { c.quoteURL = u }
}

// WithResetInterval sets how long a scraped cookie/crumb pair is reused.
func WithResetInterval(d time.Duration) Option {
	return func(c *Client) { c.resetInterval = d }
}

// WithLimiter overrides the outbound request pacing.
func WithLimiter(l *rate.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// PricesResult is the outcome of one download request. When Successful is
// false the upstream rejected the request; StatusCode says why and Records is
// empty. Records is lazy and single-pass: rows are produced as the caller
// pulls them, and ranging it a second time yields nothing. Ranging Records
// releases the underlying connection on every exit path; a caller that never
// ranges it must call Close instead.
type PricesResult struct {
	Successful bool
	StatusCode int
	Records    iter.Seq[scraper.ScrapedPrice]

	body io.ReadCloser
}

// Close releases the response body of a result whose Records was never
// ranged. It is safe to call after ranging, and more than once.
func (r *PricesResult) Close() error {
	if r.body == nil {
		return nil
	}
	return r.body.Close()
}

// All drains the lazy sequence into an ordered slice. Like Records itself it
// consumes the underlying stream, so it works only once.
func (r *PricesResult) All() []scraper.ScrapedPrice {
	var out []scraper.ScrapedPrice
	for rec := range r.Records {
		out = append(out, rec)
	}
	return out
}

// Prices fetches the price series described by q as a lazy row sequence.
//
// Error semantics, in order: an invalid query returns an
// apperror.BadRequest before any network activity; a transport-level failure
// (no response object at all) returns an apperror.Transport error; a non-2xx
// status is not an error: it returns an unsuccessful result carrying the
// status code, without retry. Credential trouble never surfaces here: the
// request is sent with whatever cookie/crumb could be obtained and the
// upstream's verdict is the result.
func (c *Client) Prices(ctx context.Context, q Query) (*PricesResult, error) {
	if appErr := q.Validate(); appErr != nil {
		return nil, appErr
	}

	cred := c.creds.ensureFresh(ctx)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	symbol := strings.TrimSpace(q.Symbol)
	period1, period2 := q.periodBounds(time.Now())
	u := downloadURL(c.downloadEndpoint, symbol, period1, period2, q.Interval, cred.crumb)

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, apperror.Wrap(apperror.Internal, "build download request", err)
	}
	req.Header.Set("User-Agent", userAgent)
	if cred.cookie != "" {
		req.Header.Set("Cookie", cred.cookie)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperror.Wrap(apperror.Transport, "no response from data endpoint", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_ = resp.Body.Close()
		slog.Debug("yahoo: data request rejected", "symbol", q.Symbol, "status", resp.StatusCode)
		return &PricesResult{StatusCode: resp.StatusCode, Records: emptyRecords}, nil
	}

	return &PricesResult{
		Successful: true,
		StatusCode: resp.StatusCode,
		Records:    records(ctx, resp.Body),
		body:       resp.Body,
	}, nil
}

// AllPrices is the eager variant of Prices.
func (c *Client) AllPrices(ctx context.Context, q Query) (*PricesResult, error) {
	res, err := c.Prices(ctx, q)
	if err != nil {
		return nil, err
	}
	rows := res.All()
	return &PricesResult{
		Successful: res.Successful,
		StatusCode: res.StatusCode,
		Records: func(yield func(scraper.ScrapedPrice) bool) {
			for _, rec := range rows {
				if !yield(rec) {
					return
				}
			}
		},
	}, nil
}

// Source returns the scraper identifier.
func (c *Client) Source() string { return "yahoo" }

// Scrape implements scraper.Scraper: it splits long date ranges into bounded
// chunks and fetches them in parallel. A chunk the upstream rejects is logged
// and skipped so partial failures don't lose the rest of the range.
func (c *Client) Scrape(ctx context.Context, symbol string, from, to time.Time, interval string) ([]scraper.ScrapedPrice, error) {
	iv, err := ParseInterval(interval)
	if err != nil {
		return nil, apperror.Wrap(apperror.BadRequest, "invalid interval", err)
	}

	chunks := scraper.SplitDateRange(from, to, chunkDays)
	results := make([][]scraper.ScrapedPrice, len(chunks))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)

	for i, ch := range chunks {
		g.Go(func() error {
			res, err := c.Prices(ctx, Query{
				Symbol:    symbol,
				FirstDate: ch.From,
				LastDate:  ch.To,
				Interval:  iv,
			})
			if err != nil {
				return err
			}
			if !res.Successful {
				slog.Error("yahoo: chunk rejected by upstream",
					"symbol", symbol, "status", res.StatusCode,
					"from", ch.From.Format(dateLayout), "to", ch.To.Format(dateLayout))
				return nil
			}
			results[i] = res.All()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []scraper.ScrapedPrice
	for _, r := range results {
		all = append(all, r...)
	}
	return all, nil
}

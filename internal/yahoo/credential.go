package yahoo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	crumbMaxAttempts = 5
	crumbRetryDelay  = time.Second
)

// The crumb is embedded in the quote page as a JSON fragment. Exactly one
// occurrence must match; anything else risks picking up unrelated data.
var crumbPattern = regexp.MustCompile(`"CrumbStore":\{"crumb":"(.+?)"\}`)

type credentials struct {
	cookie string
	crumb  string
}

// crumbCache owns the session cookie and crumb token the data endpoint
// requires. Both come out of scraping the quote page and are reused until the
// reset interval elapses.
type crumbCache struct {
	client        *http.Client
	quoteURL      string
	resetInterval time.Duration
	retryDelay    time.Duration

	mu      sync.RWMutex
	cred    credentials
	expires time.Time
}

func newCrumbCache(client *http.Client, quoteURL string, resetInterval time.Duration) *crumbCache {
	return &crumbCache{
		client:        client,
		quoteURL:      quoteURL,
		resetInterval: resetInterval,
		retryDelay:    crumbRetryDelay,
	}
}

// ensureFresh returns the cached cookie/crumb pair, refreshing it first when
// the reset interval has elapsed. Refreshes are single-flight: callers
// serialize on the write lock, while readers of a still-valid pair only take
// the read lock and are never blocked by each other.
func (c *crumbCache) ensureFresh(ctx context.Context) credentials {
	c.mu.RLock()
	if time.Now().Before(c.expires) {
		cred := c.cred
		c.mu.RUnlock()
		return cred
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	// Another caller may have refreshed while we waited for the lock.
	if time.Now().Before(c.expires) {
		return c.cred
	}

	start := time.Now()
	c.refresh(ctx)
	// Anchored to the refresh start so the expiry is never backdated, and set
	// even when the refresh failed so a broken upstream is re-scraped at the
	// reset cadence instead of on every request.
	c.expires = start.Add(c.resetInterval)
	return c.cred
}

// refresh scrapes the quote page for a cookie and crumb, retrying on a fixed
// delay up to crumbMaxAttempts total attempts. Exhausting every attempt is
// not an error: the crumb is left empty and the data endpoint stays the final
// arbiter. A cookie captured by a failed attempt is still kept.
func (c *crumbCache) refresh(ctx context.Context) {
	c.cred.crumb = ""

	attempts := 0
	op := func() error {
		attempts++
		cookie, crumb, err := c.scrape(ctx)
		if cookie != "" {
			c.cred.cookie = cookie
		}
		if err != nil {
			return err
		}
		c.cred.crumb = crumb
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(c.retryDelay), crumbMaxAttempts-1),
		ctx,
	)
	if err := backoff.Retry(op, policy); err != nil {
		slog.Warn("yahoo: could not obtain crumb", "attempts", attempts, "error", err)
		return
	}

	slog.Info("yahoo: obtained crumb", "attempts", attempts, "crumb_len", len(c.cred.crumb))
}

// scrape performs one attempt against the quote page. It may return a cookie
// together with an error when the page was served but the crumb could not be
// extracted.
func (c *crumbCache) scrape(ctx context.Context) (cookie, crumb string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.quoteURL, nil)
	if err != nil {
		return "", "", backoff.Permanent(fmt.Errorf("build quote request: %w", err))
	}
	// The upstream rejects default HTTP client agents.
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("fetch quote page: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", "", fmt.Errorf("quote page returned HTTP %d", resp.StatusCode)
	}

	cookie = resp.Header.Get("Set-Cookie")
	if cookie == "" {
		return "", "", errors.New("quote page set no cookie")
	}

	html, err := io.ReadAll(resp.Body)
	if err != nil {
		return cookie, "", fmt.Errorf("read quote page: %w", err)
	}

	matches := crumbPattern.FindAllStringSubmatch(string(html), -1)
	if len(matches) != 1 {
		return cookie, "", fmt.Errorf("expected exactly one CrumbStore occurrence, found %d", len(matches))
	}

	crumb = strings.ReplaceAll(matches[0][1], `\u002F`, "/")
	if strings.TrimSpace(crumb) == "" {
		return cookie, "", errors.New("crumb is empty")
	}

	return cookie, crumb, nil
}

package yahoo

import (
	"bufio"
	"context"
	"io"
	"iter"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/quotefeed/prices-api/internal/scraper"
)

const dateLayout = "2006-01-02"

// ParseRow converts one CSV data line into a price row. A line without
// exactly 7 columns or with an unparseable date is dropped entirely; any
// other column that fails to parse (the endpoint writes literal "null" for
// missing values) only leaves that field absent.
func ParseRow(line string) (scraper.ScrapedPrice, bool) {
	cols := strings.Split(line, ",")
	if len(cols) != 7 {
		slog.Debug("yahoo: row does not have 7 columns", "line", line)
		return scraper.ScrapedPrice{}, false
	}

	date, err := time.Parse(dateLayout, cols[0])
	if err != nil {
		slog.Debug("yahoo: row has an invalid date", "line", line)
		return scraper.ScrapedPrice{}, false
	}

	return scraper.ScrapedPrice{
		Date:     date,
		Open:     parseFloat(cols[1]),
		High:     parseFloat(cols[2]),
		Low:      parseFloat(cols[3]),
		Close:    parseFloat(cols[4]),
		AdjClose: parseFloat(cols[5]),
		Volume:   parseInt(cols[6]),
	}, true
}

func parseFloat(s string) *float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

func parseInt(s string) *int64 {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil
	}
	return &v
}

// records turns a response body into a lazy, single-pass sequence of rows.
// The first line (header) is discarded; an empty body yields nothing. The
// body is closed on every exit path: exhaustion, early break by the consumer,
// and context cancellation. Ranging a second time yields nothing.
func records(ctx context.Context, body io.ReadCloser) iter.Seq[scraper.ScrapedPrice] {
	var consumed atomic.Bool

	return func(yield func(scraper.ScrapedPrice) bool) {
		if !consumed.CompareAndSwap(false, true) {
			return
		}
		defer func() { _ = body.Close() }()

		sc := bufio.NewScanner(body)
		if !sc.Scan() {
			return // no header line at all
		}

		for sc.Scan() {
			if ctx.Err() != nil {
				return
			}
			rec, ok := ParseRow(sc.Text())
			if !ok {
				continue
			}
			if !yield(rec) {
				return
			}
		}

		if err := sc.Err(); err != nil {
			slog.Debug("yahoo: response body read stopped", "error", err)
		}
	}
}

func emptyRecords(func(scraper.ScrapedPrice) bool) {}

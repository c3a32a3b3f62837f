package price

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	domain "github.com/quotefeed/prices-api/internal/price"
)

const dateFormat = "2006-01-02"

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) SavePrices(ctx context.Context, prices []domain.Price) (int64, error) {
	if len(prices) == 0 {
		return 0, nil
	}

	const batchSize = 500
	var total int64

	for i := 0; i < len(prices); i += batchSize {
		end := min(i+batchSize, len(prices))
		batch := prices[i:end]

		placeholders := make([]string, len(batch))
		args := make([]any, 0, len(batch)*9)
		for j, p := range batch {
			placeholders[j] = "(?, ?, ?, ?, ?, ?, ?, ?, ?)"
			args = append(args,
				string(p.Source), p.Symbol, p.Date.Format(dateFormat),
				nullFloat(p.Open), nullFloat(p.High), nullFloat(p.Low),
				nullFloat(p.Close), nullFloat(p.AdjClose), nullInt(p.Volume),
			)
		}

		query := fmt.Sprintf( //nolint:gosec // placeholders are not user input
			"INSERT OR IGNORE INTO prices (source, symbol, date, open, high, low, close, adj_close, volume) VALUES %s",
			strings.Join(placeholders, ", "),
		)

		res, err := r.db.ExecContext(ctx, query, args...)
		if err != nil {
			return total, fmt.Errorf("save prices: %w", err)
		}

		n, _ := res.RowsAffected()
		total += n
	}

	return total, nil
}

func (r *Repository) ListPrices(ctx context.Context, source domain.Source, symbol string, from, to time.Time) ([]domain.Price, error) {
	const query = `SELECT id, source, symbol, date, open, high, low, close, adj_close, volume, created_at
		FROM prices
		WHERE source = ? AND symbol = ? AND date >= ? AND date <= ?
		ORDER BY date ASC`

	rows, err := r.db.QueryContext(ctx, query,
		string(source), symbol,
		from.Format(dateFormat), to.Format(dateFormat),
	)
	if err != nil {
		return nil, fmt.Errorf("list prices: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var prices []domain.Price
	for rows.Next() {
		var p domain.Price
		var src, dateStr, createdStr string
		var open, high, low, closePrice, adjClose sql.NullFloat64
		var volume sql.NullInt64

		if err := rows.Scan(&p.ID, &src, &p.Symbol, &dateStr,
			&open, &high, &low, &closePrice, &adjClose, &volume, &createdStr); err != nil {
			return nil, fmt.Errorf("scan price: %w", err)
		}

		p.Source = domain.Source(src)
		p.Date, _ = time.Parse(dateFormat, dateStr)
		p.Open = floatPtr(open)
		p.High = floatPtr(high)
		p.Low = floatPtr(low)
		p.Close = floatPtr(closePrice)
		p.AdjClose = floatPtr(adjClose)
		p.Volume = intPtr(volume)
		p.CreatedAt, _ = time.Parse(time.RFC3339, createdStr)
		prices = append(prices, p)
	}

	return prices, rows.Err()
}

func (r *Repository) ExistingDates(ctx context.Context, source domain.Source, symbol string, from, to time.Time) (map[time.Time]bool, error) {
	const query = `SELECT date FROM prices
		WHERE source = ? AND symbol = ? AND date >= ? AND date <= ?`

	rows, err := r.db.QueryContext(ctx, query,
		string(source), symbol,
		from.Format(dateFormat), to.Format(dateFormat),
	)
	if err != nil {
		return nil, fmt.Errorf("existing dates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	dates := make(map[time.Time]bool)
	for rows.Next() {
		var dateStr string
		if err := rows.Scan(&dateStr); err != nil {
			return nil, fmt.Errorf("scan date: %w", err)
		}
		t, _ := time.Parse(dateFormat, dateStr)
		dates[t] = true
	}

	return dates, rows.Err()
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return &v.Float64
}

func intPtr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	return &v.Int64
}

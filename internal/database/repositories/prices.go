package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"
)

// PricePoint is one stored (date, close) observation.
type PricePoint struct {
	Date  string
	Close float64
}

// PriceRepository stores and retrieves daily closing prices.
type PriceRepository struct {
	*BaseRepository
}

// NewPriceRepository creates a price history repository.
func NewPriceRepository(db *sql.DB, log zerolog.Logger) *PriceRepository {
	return &PriceRepository{
		BaseRepository: NewBase(db, log.With().Str("repo", "prices").Logger()),
	}
}

// GetRange returns the stored closes for one ticker within an inclusive date
// range, ordered by date ascending. Missing tickers return an empty slice.
func (r *PriceRepository) GetRange(ctx context.Context, ticker, start, end string) ([]PricePoint, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT date, close FROM price_history
		 WHERE ticker = ? AND date >= ? AND date <= ?
		 ORDER BY date ASC`,
		ticker, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query price history for %s: %w", ticker, err)
	}
	defer rows.Close()

	var points []PricePoint
	for rows.Next() {
		var p PricePoint
		if err := rows.Scan(&p.Date, &p.Close); err != nil {
			return nil, fmt.Errorf("failed to scan price row: %w", err)
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// HasTicker reports whether any price exists for the ticker.
func (r *PriceRepository) HasTicker(ctx context.Context, ticker string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM price_history WHERE ticker = ? LIMIT 1`, ticker).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check ticker %s: %w", ticker, err)
	}
	return true, nil
}

// Upsert writes a batch of closes for one ticker, replacing existing dates.
func (r *PriceRepository) Upsert(ctx context.Context, ticker string, points []PricePoint) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO price_history (ticker, date, close) VALUES (?, ?, ?)
		 ON CONFLICT(ticker, date) DO UPDATE SET close = excluded.close`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, p := range points {
		if _, err := stmt.ExecContext(ctx, ticker, p.Date, p.Close); err != nil {
			return fmt.Errorf("failed to upsert price %s/%s: %w", ticker, p.Date, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit price upsert: %w", err)
	}

	r.log.Debug().Str("ticker", ticker).Int("points", len(points)).Msg("Stored price history")
	return nil
}

package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// RateRepository keeps an audit trail of fetched risk-free rates.
type RateRepository struct {
	*BaseRepository
}

// NewRateRepository creates a new rate repository
func NewRateRepository(db *sql.DB, log zerolog.Logger) *RateRepository {
	return &RateRepository{
		BaseRepository: NewBase(db, log.With().Str("repo", "rates").Logger()),
	}
}

// Record stores one fetched rate with its fetch timestamp.
func (r *RateRepository) Record(ctx context.Context, fetchedAt time.Time, rate float64) error {
	_, err := r.DB().ExecContext(ctx,
		`INSERT INTO risk_free_rates (fetched_at, rate) VALUES (?, ?)`,
		fetchedAt.UTC().Format(time.RFC3339), rate)
	if err != nil {
		return fmt.Errorf("failed to record risk-free rate: %w", err)
	}
	return nil
}

// Latest returns the most recently fetched rate, or false when none is stored.
func (r *RateRepository) Latest(ctx context.Context) (float64, bool, error) {
	var rate float64
	err := r.DB().QueryRowContext(ctx,
		`SELECT rate FROM risk_free_rates ORDER BY fetched_at DESC LIMIT 1`).Scan(&rate)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to query latest risk-free rate: %w", err)
	}
	return rate, true, nil
}

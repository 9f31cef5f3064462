package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"regimefolio/internal/database/repositories"
	"regimefolio/internal/events"
	"regimefolio/internal/rates"
)

// RateRefreshJob refreshes the cached risk-free rate once a day so lookups
// during business hours never pay the fetch latency.
type RateRefreshJob struct {
	log      zerolog.Logger
	provider *rates.Provider
	repo     *repositories.RateRepository
	events   *events.Manager
}

// NewRateRefreshJob creates a new rate refresh job
func NewRateRefreshJob(provider *rates.Provider, repo *repositories.RateRepository, eventManager *events.Manager, log zerolog.Logger) *RateRefreshJob {
	return &RateRefreshJob{
		log:      log.With().Str("job", "rate_refresh").Logger(),
		provider: provider,
		repo:     repo,
		events:   eventManager,
	}
}

// Name returns the job name
func (j *RateRefreshJob) Name() string {
	return "rate_refresh"
}

// Run executes the refresh
func (j *RateRefreshJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := j.provider.Refresh(ctx); err != nil {
		// Lookups fall back to the default rate, so a failed refresh is
		// logged but does not fail the job.
		j.log.Warn().Err(err).Msg("Rate refresh failed, cached or default rate stays in effect")
		return nil
	}

	rate := j.provider.Rate(ctx)
	if j.repo != nil {
		if err := j.repo.Record(ctx, time.Now(), rate); err != nil {
			j.log.Warn().Err(err).Msg("Failed to record refreshed rate")
		}
	}

	j.events.Emit(events.RateRefreshed, "rates", map[string]interface{}{
		"rate": rate,
	})
	return nil
}

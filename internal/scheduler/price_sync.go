package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"regimefolio/internal/database/repositories"
	"regimefolio/internal/domain"
	"regimefolio/internal/events"
	"regimefolio/internal/marketdata"
)

// syncLookbackDays is how much history a sync keeps fresh.
const syncLookbackDays = 5 * 365

// PriceSyncJob keeps the local price history current for a configured ticker
// list, so the server can run against the "local" price source.
type PriceSyncJob struct {
	log     zerolog.Logger
	source  marketdata.Provider
	repo    *repositories.PriceRepository
	events  *events.Manager
	tickers []string
	running atomic.Bool
}

// PriceSyncConfig holds configuration for the price sync job
type PriceSyncConfig struct {
	Log     zerolog.Logger
	Source  marketdata.Provider
	Repo    *repositories.PriceRepository
	Events  *events.Manager
	Tickers []string
}

// NewPriceSyncJob creates a new price sync job
func NewPriceSyncJob(cfg PriceSyncConfig) *PriceSyncJob {
	return &PriceSyncJob{
		log:     cfg.Log.With().Str("job", "price_sync").Logger(),
		source:  cfg.Source,
		repo:    cfg.Repo,
		events:  cfg.Events,
		tickers: cfg.Tickers,
	}
}

// Name returns the job name
func (j *PriceSyncJob) Name() string {
	return "price_sync"
}

// Run executes the sync
func (j *PriceSyncJob) Run() error {
	if !j.running.CompareAndSwap(false, true) {
		j.log.Warn().Msg("Price sync already running, skipping this cycle")
		return nil
	}
	defer j.running.Store(false)

	if len(j.tickers) == 0 {
		j.log.Debug().Msg("No tickers configured for price sync")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	now := time.Now()
	dateRange := domain.DateRange{
		Start: now.AddDate(0, 0, -syncLookbackDays).Format("2006-01-02"),
		End:   now.Format("2006-01-02"),
	}

	start := time.Now()
	synced := 0
	for _, ticker := range j.tickers {
		table, err := j.source.FetchPrices(ctx, []string{ticker}, dateRange)
		if err != nil {
			j.log.Warn().Err(err).Str("ticker", ticker).Msg("Price sync failed for ticker")
			continue
		}

		points := make([]repositories.PricePoint, len(table.Dates))
		for i, date := range table.Dates {
			points[i] = repositories.PricePoint{Date: date, Close: table.Prices[ticker][i]}
		}
		if err := j.repo.Upsert(ctx, ticker, points); err != nil {
			j.log.Error().Err(err).Str("ticker", ticker).Msg("Failed to store synced prices")
			continue
		}
		synced++
	}

	j.log.Info().
		Int("synced", synced).
		Int("total", len(j.tickers)).
		Dur("elapsed", time.Since(start)).
		Msg("Price sync completed")

	j.events.Emit(events.PricesFetched, "price_sync", map[string]interface{}{
		"synced": synced,
		"total":  len(j.tickers),
	})
	return nil
}

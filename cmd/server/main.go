package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"regimefolio/internal/config"
	"regimefolio/internal/database"
	"regimefolio/internal/database/repositories"
	"regimefolio/internal/events"
	"regimefolio/internal/frontier"
	"regimefolio/internal/marketdata"
	"regimefolio/internal/progress"
	"regimefolio/internal/rates"
	"regimefolio/internal/scheduler"
	"regimefolio/internal/server"
	"regimefolio/internal/simulation"
	"regimefolio/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().Msg("Starting Regimefolio")

	// Initialize database
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	// Run migrations
	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	eventManager := events.NewManager(log)
	priceRepo := repositories.NewPriceRepository(db.Conn(), log)
	rateRepo := repositories.NewRateRepository(db.Conn(), log)

	// Price pipeline: remote or local source behind an LRU cache
	yahooClient := marketdata.NewYahooClient(log)
	var source marketdata.Provider = yahooClient
	if cfg.PriceSource == "local" {
		source = marketdata.NewHistoryDB(priceRepo, log)
	}
	prices := marketdata.NewCache(source, cfg.CacheCapacity, log)

	rateProvider := rates.NewProvider(cfg.RateProviderURL, cfg.DefaultRiskFreeRate, log)

	// Engines
	simulator := simulation.NewEngine(log)
	optimizer := frontier.NewOptimizer(log)
	broadcaster := progress.NewBroadcaster(log)

	// Initialize scheduler
	sched := scheduler.New(log)

	rateRefreshJob := scheduler.NewRateRefreshJob(rateProvider, rateRepo, eventManager, log)
	priceSyncJob := scheduler.NewPriceSyncJob(scheduler.PriceSyncConfig{
		Log:     log,
		Source:  yahooClient,
		Repo:    priceRepo,
		Events:  eventManager,
		Tickers: syncTickers(),
	})
	healthCheckJob := scheduler.NewHealthCheckJob(db, log)

	jobs := []struct {
		schedule string
		job      scheduler.Job
	}{
		{"0 0 6 * * *", rateRefreshJob},   // daily, before markets open
		{"0 30 22 * * *", priceSyncJob},   // nightly, after US close
		{"0 0 */6 * * *", healthCheckJob}, // every 6 hours
	}
	for _, j := range jobs {
		if err := sched.AddJob(j.schedule, j.job); err != nil {
			log.Fatal().Err(err).Str("job", j.job.Name()).Msg("Failed to register job")
		}
	}

	sched.Start()
	defer sched.Stop()

	// Initialize HTTP server
	srv := server.New(server.Config{
		Port:           cfg.Port,
		DevMode:        cfg.DevMode,
		Log:            log,
		Cfg:            cfg,
		DB:             db,
		Prices:         prices,
		Rates:          rateProvider,
		Simulator:      simulator,
		Frontier:       optimizer,
		Broadcaster:    broadcaster,
		Events:         eventManager,
		Scheduler:      sched,
		PriceSyncJob:   priceSyncJob,
		RateRefreshJob: rateRefreshJob,
	})

	// Start server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}

// syncTickers returns the ticker list kept fresh by the nightly price sync.
func syncTickers() []string {
	raw := os.Getenv("SYNC_TICKERS")
	if raw == "" {
		return nil
	}

	var tickers []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tickers = append(tickers, t)
		}
	}
	return tickers
}

package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"regimefolio/internal/domain"
	"regimefolio/internal/events"
	"regimefolio/internal/frontier"
	"regimefolio/internal/marketdata"
	"regimefolio/internal/progress"
	"regimefolio/internal/regime"
	"regimefolio/internal/scheduler"
	"regimefolio/internal/simulation"
	"regimefolio/internal/stats"
)

// analysisRequest is the shared payload of the simulate and frontier
// endpoints: a portfolio, a date range, and a regime selection.
type analysisRequest struct {
	Holdings  []domain.Holding `json:"holdings"`
	StartDate string           `json:"start_date"`
	EndDate   string           `json:"end_date"`

	Regime             string                         `json:"regime,omitempty"`
	CustomFactors      map[string]regime.AssetFactors `json:"custom_factors,omitempty"`
	CorrelationMovePct float64                        `json:"correlation_move_pct,omitempty"`

	// RepairCovariance opts in to projecting a regime-broken covariance back
	// onto the PSD cone instead of rejecting the request.
	RepairCovariance bool `json:"repair_covariance,omitempty"`

	// RunID identifies the run for progress streaming; generated when empty.
	RunID string `json:"run_id,omitempty"`
}

type simulateRequest struct {
	analysisRequest
	NumSimulations int     `json:"num_simulations,omitempty"`
	TimeSteps      int     `json:"time_steps,omitempty"`
	InitialValue   float64 `json:"initial_value,omitempty"`
	Seed           uint64  `json:"seed,omitempty"`
}

type frontierRequest struct {
	analysisRequest
	NumPoints int `json:"num_points,omitempty"`
}

// preparedAnalysis is the validated, regime-adjusted input shared by both
// engines.
type preparedAnalysis struct {
	portfolio domain.Portfolio
	spec      regime.Spec
	moments   stats.MomentEstimate
	runID     string
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":  "healthy",
		"version": "1.0.0",
		"service": "regimefolio",
	}

	s.writeJSON(w, http.StatusOK, response)
}

// handleListRegimes returns the predefined regime catalog.
func (s *Server) handleListRegimes(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"regimes": regime.Presets(),
	})
}

// handleGetRegime returns one predefined regime by key.
func (s *Server) handleGetRegime(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	spec, err := regime.Resolve(key, nil, 0)
	if err != nil || spec.Key == regime.KeyCustom {
		s.writeError(w, http.StatusNotFound, "unknown regime: "+key)
		return
	}
	s.writeJSON(w, http.StatusOK, spec)
}

// prepare validates the request and produces regime-adjusted moments: fetch
// prices, derive returns, estimate and shrink the covariance, then apply the
// regime transform.
func (s *Server) prepare(r *http.Request, req analysisRequest) (preparedAnalysis, error) {
	portfolio := domain.Portfolio{Holdings: req.Holdings}
	if err := portfolio.Validate(); err != nil {
		return preparedAnalysis{}, err
	}

	dateRange := domain.DateRange{Start: req.StartDate, End: req.EndDate}
	if err := dateRange.Validate(); err != nil {
		return preparedAnalysis{}, err
	}

	regimeKey := req.Regime
	if regimeKey == "" {
		regimeKey = regime.KeyHistorical
	}
	spec, err := regime.Resolve(regimeKey, req.CustomFactors, req.CorrelationMovePct)
	if err != nil {
		return preparedAnalysis{}, &domain.ValidationError{Problems: []string{err.Error()}}
	}

	tickers := portfolio.Tickers()
	table, err := s.prices.FetchPrices(r.Context(), tickers, dateRange)
	if err != nil {
		return preparedAnalysis{}, err
	}

	baseline, err := stats.Moments(table.DailyReturns(), tickers)
	if err != nil {
		return preparedAnalysis{}, &domain.ValidationError{Problems: []string{err.Error()}}
	}
	baseline.Cov = stats.ShrinkCovariance(baseline.Cov)

	mode := regime.PSDStrict
	if req.RepairCovariance {
		mode = regime.PSDRepair
	}
	adjusted, err := regime.Apply(baseline, spec, mode, s.log)
	if err != nil {
		return preparedAnalysis{}, err
	}
	if !spec.IsBaseline() {
		s.events.Emit(events.RegimeApplied, "regime", map[string]interface{}{
			"regime":  spec.Key,
			"tickers": tickers,
		})
	}

	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	return preparedAnalysis{
		portfolio: portfolio,
		spec:      spec,
		moments:   adjusted,
		runID:     runID,
	}, nil
}

// handleSimulate runs a Monte Carlo simulation for the requested portfolio
// under the requested regime.
func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	var req simulateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	prepared, err := s.prepare(r, req.analysisRequest)
	if err != nil {
		s.writeAnalysisError(w, err)
		return
	}

	start := time.Now()
	s.events.Emit(events.SimulationStarted, "simulation", map[string]interface{}{
		"run_id":  prepared.runID,
		"regime":  prepared.spec.Key,
		"tickers": prepared.portfolio.Tickers(),
	})
	s.broadcaster.Publish(progress.NewEvent(prepared.runID, 0, 1, "Running Monte Carlo simulation"))

	result, err := s.simulator.Run(r.Context(), simulation.Request{
		Moments:        prepared.moments,
		Weights:        prepared.portfolio.Weights(),
		NumSimulations: req.NumSimulations,
		TimeSteps:      req.TimeSteps,
		InitialValue:   req.InitialValue,
		Seed:           req.Seed,
	})
	if err != nil {
		s.writeAnalysisError(w, err)
		return
	}

	s.broadcaster.Publish(progress.NewEvent(prepared.runID, 1, 1, "Simulation complete"))
	s.events.Emit(events.SimulationCompleted, "simulation", map[string]interface{}{
		"run_id":     prepared.runID,
		"elapsed_ms": time.Since(start).Milliseconds(),
	})

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"run_id": prepared.runID,
		"regime": prepared.spec.Key,
		"result": result,
	})
}

// handleFrontier computes the efficient frontier for the requested assets
// under the requested regime, streaming per-point progress.
func (s *Server) handleFrontier(w http.ResponseWriter, r *http.Request) {
	var req frontierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	prepared, err := s.prepare(r, req.analysisRequest)
	if err != nil {
		s.writeAnalysisError(w, err)
		return
	}

	start := time.Now()
	s.events.Emit(events.FrontierStarted, "frontier", map[string]interface{}{
		"run_id":  prepared.runID,
		"regime":  prepared.spec.Key,
		"tickers": prepared.portfolio.Tickers(),
	})

	result, err := s.frontier.Calculate(r.Context(), prepared.moments, frontier.Options{
		NumPoints:    req.NumPoints,
		RiskFreeRate: s.rates.Rate(r.Context()),
		SolveTimeout: time.Duration(s.cfg.SolveTimeoutSeconds) * time.Second,
		Progress: func(step, total int, message string) {
			s.broadcaster.Publish(progress.NewEvent(prepared.runID, step, total, message))
		},
	})
	if err != nil {
		s.writeAnalysisError(w, err)
		return
	}

	s.events.Emit(events.FrontierCompleted, "frontier", map[string]interface{}{
		"run_id":     prepared.runID,
		"solved":     len(result.Points),
		"skipped":    len(result.Skipped),
		"elapsed_ms": time.Since(start).Milliseconds(),
	})

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"run_id": prepared.runID,
		"regime": prepared.spec.Key,
		"result": result,
	})
}

// handleTriggerPriceSync runs the price sync job immediately.
func (s *Server) handleTriggerPriceSync(w http.ResponseWriter, r *http.Request) {
	s.triggerJob(w, s.priceSyncJob, "price sync")
}

// handleTriggerRateRefresh runs the rate refresh job immediately.
func (s *Server) handleTriggerRateRefresh(w http.ResponseWriter, r *http.Request) {
	s.triggerJob(w, s.rateRefreshJob, "rate refresh")
}

func (s *Server) triggerJob(w http.ResponseWriter, job scheduler.Job, label string) {
	if job == nil {
		s.writeError(w, http.StatusServiceUnavailable, label+" job not registered")
		return
	}

	s.log.Info().Str("job", job.Name()).Msg("Manual job trigger")
	if err := s.scheduler.RunNow(job); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": label + " triggered successfully",
	})
}

// writeAnalysisError maps engine errors onto HTTP statuses: invalid input and
// data errors are client errors, numerical and solver failures are
// unprocessable, everything else is a 500. The error structure is serialized
// so the client can render an actionable message.
func (s *Server) writeAnalysisError(w http.ResponseWriter, err error) {
	var (
		validationErr *domain.ValidationError
		unknownErr    *marketdata.UnknownTickerError
		emptyErr      *marketdata.EmptyRangeError
		matrixErr     *stats.MatrixError
		frontierErr   *frontier.NoFeasiblePointsError
	)

	switch {
	case errors.As(err, &validationErr):
		s.writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":    validationErr.Error(),
			"problems": validationErr.Problems,
		})
	case errors.As(err, &unknownErr):
		s.writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":  unknownErr.Error(),
			"ticker": unknownErr.Ticker,
		})
	case errors.As(err, &emptyErr):
		s.writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":      emptyErr.Error(),
			"date_range": emptyErr.DateRange,
		})
	case errors.As(err, &matrixErr):
		s.writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error":            matrixErr.Error(),
			"min_eigenvalue":   matrixErr.MinEigenvalue,
			"condition_number": matrixErr.ConditionNumber,
		})
	case errors.As(err, &frontierErr):
		s.writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error":      frontierErr.Error(),
			"attempted":  frontierErr.Attempted,
			"infeasible": frontierErr.Infeasible,
			"failed":     frontierErr.Failed,
		})
	default:
		s.log.Error().Err(err).Msg("Analysis request failed")
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes an error response
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{
		"error": message,
	})
}

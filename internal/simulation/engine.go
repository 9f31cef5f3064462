// Package simulation implements the Monte Carlo portfolio path simulator and
// its risk-metric outputs (VaR, CVaR, drawdown, percentile bands).
package simulation

import (
	"context"
	"fmt"
	"math/rand/v2"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"regimefolio/internal/riskfactors"
	"regimefolio/internal/stats"
)

// Defaults per request when the caller leaves the field zero.
const (
	DefaultNumSimulations = 1000
	DefaultTimeSteps      = stats.TradingDaysPerYear
	DefaultInitialValue   = 10000
)

// DefaultConfidenceLevels are the supported VaR/CVaR confidence levels.
var DefaultConfidenceLevels = []float64{0.90, 0.95, 0.99}

// pathChunks is the fixed number of RNG streams the simulations are split
// across. Fixed (rather than NumCPU) so a seeded run reproduces exactly on
// any machine.
const pathChunks = 8

// Request describes one simulation run. Moments are the (possibly
// regime-adjusted) daily mean returns and covariance; Weights align with
// Moments.Tickers.
type Request struct {
	Moments          stats.MomentEstimate
	Weights          []float64
	NumSimulations   int
	TimeSteps        int
	InitialValue     float64
	ConfidenceLevels []float64
	Seed             uint64 // 0 means time-seeded
}

func (r *Request) applyDefaults() {
	if r.NumSimulations <= 0 {
		r.NumSimulations = DefaultNumSimulations
	}
	if r.TimeSteps <= 0 {
		r.TimeSteps = DefaultTimeSteps
	}
	if r.InitialValue <= 0 {
		r.InitialValue = DefaultInitialValue
	}
	if len(r.ConfidenceLevels) == 0 {
		r.ConfidenceLevels = DefaultConfidenceLevels
	}
	if r.Seed == 0 {
		r.Seed = uint64(time.Now().UnixNano())
	}
}

func (r *Request) validate() error {
	if len(r.Weights) != r.Moments.NumAssets() {
		return fmt.Errorf("weights length %d does not match %d assets", len(r.Weights), r.Moments.NumAssets())
	}
	for _, c := range r.ConfidenceLevels {
		if c <= 0 || c >= 1 {
			return fmt.Errorf("confidence level %g must be in (0, 1)", c)
		}
	}
	return nil
}

// Engine runs Monte Carlo simulations. Safe for concurrent use: every run is
// a pure function of its request.
type Engine struct {
	log zerolog.Logger
}

// NewEngine creates a simulation engine.
func NewEngine(log zerolog.Logger) *Engine {
	return &Engine{log: log.With().Str("component", "simulation").Logger()}
}

// Run simulates NumSimulations portfolio value paths of TimeSteps daily
// steps each. Every step draws a correlated return vector from the
// multivariate normal parameterized by the request moments; the portfolio
// return is the weighted sum and value compounds multiplicatively. The
// result carries the paths plus the derived risk metrics and PCA summary.
func (e *Engine) Run(ctx context.Context, req Request) (*Result, error) {
	req.applyDefaults()
	if err := req.validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	e.log.Info().
		Int("num_simulations", req.NumSimulations).
		Int("time_steps", req.TimeSteps).
		Float64("initial_value", req.InitialValue).
		Msg("Monte Carlo simulation started")

	paths := make([][]float64, req.NumSimulations)

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(runtime.GOMAXPROCS(0))

	chunkSize := (req.NumSimulations + pathChunks - 1) / pathChunks
	for chunk := 0; chunk < pathChunks; chunk++ {
		lo := chunk * chunkSize
		hi := min(lo+chunkSize, req.NumSimulations)
		if lo >= hi {
			break
		}

		src := rand.NewPCG(req.Seed, uint64(chunk))
		group.Go(func() error {
			return e.simulateChunk(ctx, req, src, paths[lo:hi])
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	result := deriveResult(req, paths)
	result.RiskFactors = riskfactors.Analyze(req.Moments.Cov, req.Moments.Tickers)

	e.log.Info().
		Dur("elapsed", time.Since(start)).
		Float64("mean_final_value", result.Performance.MeanFinal).
		Float64("worst_drawdown_pct", result.Drawdowns.WorstPct).
		Msg("Monte Carlo simulation completed")

	return result, nil
}

// simulateChunk fills its slice of paths using a dedicated RNG stream.
func (e *Engine) simulateChunk(ctx context.Context, req Request, src rand.Source, chunk [][]float64) error {
	s, err := newSampler(req.Moments.Mean, req.Moments.Cov, src)
	if err != nil {
		return err
	}

	n := req.Moments.NumAssets()
	returns := make([]float64, n)
	z := make([]float64, n)

	for p := range chunk {
		if err := ctx.Err(); err != nil {
			return err
		}

		path := make([]float64, req.TimeSteps+1)
		path[0] = req.InitialValue
		for t := 1; t <= req.TimeSteps; t++ {
			s.sample(returns, z)

			dayReturn := 0.0
			for i := 0; i < n; i++ {
				dayReturn += req.Weights[i] * returns[i]
			}
			path[t] = path[t-1] * (1 + dayReturn)
		}
		chunk[p] = path
	}
	return nil
}

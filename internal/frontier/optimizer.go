// Package frontier computes long-only efficient frontiers by solving a
// sequence of mean-variance problems over a grid of target returns.
package frontier

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"regimefolio/internal/stats"
)

const (
	// DefaultNumPoints is the frontier grid size when the caller leaves it zero.
	DefaultNumPoints = 25
	// DefaultSolveTimeout bounds a single grid-point solve.
	DefaultSolveTimeout = 10 * time.Second

	// penaltyWeight scales the quadratic constraint penalties against the
	// annualized variance objective.
	penaltyWeight = 1000.0
	// returnTolerance is the maximum accepted shortfall between the achieved
	// and the target annual return.
	returnTolerance = 1e-3
	// feasibilityTolerance pads the achievable-return span check.
	feasibilityTolerance = 1e-9
)

// Options tune one frontier calculation. The zero value uses defaults.
type Options struct {
	NumPoints    int
	RiskFreeRate float64 // annual, used for Sharpe ratios
	SolveTimeout time.Duration
	// Progress, when set, is called after each grid point completes.
	Progress func(step, total int, message string)
}

func (o *Options) applyDefaults() {
	if o.NumPoints <= 0 {
		o.NumPoints = DefaultNumPoints
	}
	if o.SolveTimeout <= 0 {
		o.SolveTimeout = DefaultSolveTimeout
	}
}

// Optimizer computes efficient frontiers. Safe for concurrent use.
type Optimizer struct {
	log zerolog.Logger
}

// NewOptimizer creates a frontier optimizer.
func NewOptimizer(log zerolog.Logger) *Optimizer {
	return &Optimizer{log: log.With().Str("component", "frontier").Logger()}
}

// Calculate solves min w'Σw subject to μ'w >= target, Σw = 1, w >= 0 for a
// linearly spaced grid of targets spanning the achievable return range
// [min(μ), max(μ)]. All inputs are daily moments; targets and the reported
// point metrics are annualized.
//
// Each grid point runs through a fixed lifecycle: a feasibility pre-check,
// then a Nelder-Mead solve of the penalty formulation, then a BFGS retry on
// numerical failure. Failed points are skipped and recorded with their
// terminal state; the whole calculation errors only when no point solves.
func (o *Optimizer) Calculate(ctx context.Context, est stats.MomentEstimate, opts Options) (*Result, error) {
	opts.applyDefaults()

	n := est.NumAssets()
	if n < 2 {
		return nil, fmt.Errorf("efficient frontier requires at least 2 assets, got %d", n)
	}
	if len(est.Mean) != n || est.Cov == nil || est.Cov.SymmetricDim() != n {
		return nil, fmt.Errorf("inconsistent moment estimate for %d assets", n)
	}

	diag := stats.Diagnose(est.Cov)
	if !diag.IsPSD {
		return nil, &stats.MatrixError{
			Property:        "covariance matrix is not positive semi-definite",
			MinEigenvalue:   diag.MinEigenvalue,
			ConditionNumber: diag.ConditionNumber,
		}
	}

	// Work in annual terms so the variance objective is well scaled against
	// the constraint penalties.
	mu := make([]float64, n)
	minMu, maxMu := math.Inf(1), math.Inf(-1)
	for i, m := range est.Mean {
		mu[i] = m * stats.TradingDaysPerYear
		minMu = math.Min(minMu, mu[i])
		maxMu = math.Max(maxMu, mu[i])
	}
	sigma := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			sigma.SetSym(i, j, est.Cov.At(i, j)*stats.TradingDaysPerYear)
		}
	}

	targets := linspace(minMu, maxMu, opts.NumPoints)

	start := time.Now()
	o.log.Info().
		Int("num_assets", n).
		Int("num_points", opts.NumPoints).
		Float64("min_target", minMu).
		Float64("max_target", maxMu).
		Msg("Efficient frontier calculation started")

	result := &Result{RiskFreeRate: opts.RiskFreeRate}
	infeasible, failed := 0, 0

	for i, target := range targets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if target < minMu-feasibilityTolerance || target > maxMu+feasibilityTolerance {
			infeasible++
			result.Skipped = append(result.Skipped, SkippedPoint{
				TargetReturn: target,
				State:        StateInfeasible,
				Reason:       fmt.Sprintf("target return %.4f outside achievable range [%.4f, %.4f]", target, minMu, maxMu),
			})
			o.reportProgress(opts, i+1, len(targets))
			continue
		}

		point, err := o.solvePoint(mu, sigma, target, opts)
		if err != nil {
			failed++
			result.Skipped = append(result.Skipped, SkippedPoint{
				TargetReturn: target,
				State:        StateFailed,
				Reason:       err.Error(),
			})
			o.log.Warn().
				Float64("target_return", target).
				Err(err).
				Msg("Frontier point skipped after solver failure")
			o.reportProgress(opts, i+1, len(targets))
			continue
		}

		result.Points = append(result.Points, point)
		o.reportProgress(opts, i+1, len(targets))
	}

	if len(result.Points) == 0 {
		return nil, &NoFeasiblePointsError{
			Attempted:  len(targets),
			Infeasible: infeasible,
			Failed:     failed,
		}
	}

	best := 0
	for i, p := range result.Points {
		if p.Sharpe > result.Points[best].Sharpe {
			best = i
		}
	}
	result.MaxSharpe = result.Points[best]

	o.log.Info().
		Dur("elapsed", time.Since(start)).
		Int("solved", len(result.Points)).
		Int("skipped", len(result.Skipped)).
		Float64("max_sharpe", result.MaxSharpe.Sharpe).
		Msg("Efficient frontier calculation completed")

	return result, nil
}

// solvePoint minimizes the penalty formulation for one target return:
// Nelder-Mead first, BFGS on failure. Returns the point with its terminal
// state, or an error when both solvers fail.
func (o *Optimizer) solvePoint(mu []float64, sigma *mat.SymDense, target float64, opts Options) (Point, error) {
	n := len(mu)
	problem := penaltyProblem(mu, sigma, target)

	initial := make([]float64, n)
	for i := range initial {
		initial[i] = 1.0 / float64(n)
	}
	settings := &optimize.Settings{Runtime: opts.SolveTimeout}

	if point, ok := o.trySolve(problem, initial, settings, &optimize.NelderMead{}, mu, sigma, target, opts); ok {
		point.State = StateSolved
		return point, nil
	}

	if point, ok := o.trySolve(problem, initial, settings, &optimize.BFGS{}, mu, sigma, target, opts); ok {
		point.State = StateRetriedSolved
		o.log.Debug().
			Float64("target_return", target).
			Msg("Frontier point recovered by fallback solver")
		return point, nil
	}

	return Point{}, fmt.Errorf("both solvers failed to converge for target return %.4f", target)
}

func (o *Optimizer) trySolve(
	problem optimize.Problem,
	initial []float64,
	settings *optimize.Settings,
	method optimize.Method,
	mu []float64,
	sigma *mat.SymDense,
	target float64,
	opts Options,
) (Point, bool) {
	result, err := optimize.Minimize(problem, initial, settings, method)
	if err != nil {
		return Point{}, false
	}

	successStatuses := map[optimize.Status]bool{
		optimize.Success:             true,
		optimize.GradientThreshold:   true,
		optimize.FunctionConvergence: true,
	}
	if !successStatuses[result.Status] {
		return Point{}, false
	}

	weights := normalizeWeights(result.X)
	if weights == nil {
		return Point{}, false
	}

	achieved, variance := portfolioMoments(weights, mu, sigma)
	if achieved < target-returnTolerance {
		return Point{}, false
	}

	volatility := math.Sqrt(math.Max(variance, 0))
	return Point{
		TargetReturn: target,
		Return:       achieved,
		Volatility:   volatility,
		Weights:      weights,
		Sharpe:       stats.SharpeRatioAnnual(achieved, volatility, opts.RiskFreeRate),
	}, true
}

// penaltyProblem builds the unconstrained formulation: annualized variance
// plus quadratic penalties for the budget constraint and the target-return
// shortfall. Weights are clipped to [0, 1] inside the objective, so the
// long-only bound needs no penalty term.
func penaltyProblem(mu []float64, sigma *mat.SymDense, target float64) optimize.Problem {
	n := len(mu)
	return optimize.Problem{
		Func: func(x []float64) float64 {
			w := clipToUnit(x)

			ret, variance := portfolioMoments(w, mu, sigma)
			sum := 0.0
			for _, wi := range w {
				sum += wi
			}

			obj := variance
			obj += penaltyWeight * (sum - 1.0) * (sum - 1.0)
			if shortfall := target - ret; shortfall > 0 {
				obj += penaltyWeight * shortfall * shortfall
			}
			return obj
		},
		Grad: func(grad, x []float64) {
			w := clipToUnit(x)

			ret, _ := portfolioMoments(w, mu, sigma)
			sum := 0.0
			for _, wi := range w {
				sum += wi
			}

			for i := 0; i < n; i++ {
				grad[i] = 0
				for j := 0; j < n; j++ {
					grad[i] += 2 * sigma.At(i, j) * w[j]
				}
				grad[i] += 2 * penaltyWeight * (sum - 1.0)
				if shortfall := target - ret; shortfall > 0 {
					grad[i] -= 2 * penaltyWeight * shortfall * mu[i]
				}
			}
		},
	}
}

func portfolioMoments(w, mu []float64, sigma *mat.SymDense) (ret, variance float64) {
	for i := range w {
		ret += mu[i] * w[i]
		for j := range w {
			variance += w[i] * w[j] * sigma.At(i, j)
		}
	}
	return ret, variance
}

func clipToUnit(x []float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = math.Max(0, math.Min(1, v))
	}
	return out
}

// normalizeWeights clips the raw solution to [0, 1] and rescales to sum to 1.
// Returns nil when the solution is unusable (non-finite or all-zero).
func normalizeWeights(x []float64) []float64 {
	w := clipToUnit(x)
	sum := 0.0
	for _, v := range w {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil
		}
		sum += v
	}
	if sum < 1e-10 {
		return nil
	}
	for i := range w {
		w[i] /= sum
	}
	return w
}

func linspace(lo, hi float64, count int) []float64 {
	out := make([]float64, count)
	if count == 1 {
		out[0] = lo
		return out
	}
	step := (hi - lo) / float64(count-1)
	for i := range out {
		out[i] = lo + float64(i)*step
	}
	out[count-1] = hi
	return out
}

func (o *Optimizer) reportProgress(opts Options, step, total int) {
	if opts.Progress == nil {
		return
	}
	opts.Progress(step, total, fmt.Sprintf("Optimizing frontier point %d of %d", step, total))
}

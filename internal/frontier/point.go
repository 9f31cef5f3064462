package frontier

import "fmt"

// PointState is the terminal state of one frontier grid point. Every point
// starts pending and ends either solved or skipped; skipped points carry no
// partial results.
type PointState string

const (
	// StateSolved means the primary solver converged.
	StateSolved PointState = "solved"
	// StateInfeasible means the target return was outside the achievable
	// span and no solve was attempted.
	StateInfeasible PointState = "infeasible_skipped"
	// StateRetriedSolved means the primary solver failed numerically and the
	// fallback solver converged.
	StateRetriedSolved PointState = "retried_solved"
	// StateFailed means both solvers failed and the point was skipped.
	StateFailed PointState = "numerically_failed_skipped"
)

// Solved reports whether the state carries a solution.
func (s PointState) Solved() bool {
	return s == StateSolved || s == StateRetriedSolved
}

// Point is one solved frontier portfolio. Return and Volatility are
// annualized; Weights align with the optimizer's ticker ordering. Immutable
// once computed.
type Point struct {
	TargetReturn float64    `json:"target_return"`
	Return       float64    `json:"return"`
	Volatility   float64    `json:"volatility"`
	Weights      []float64  `json:"weights"`
	Sharpe       float64    `json:"sharpe_ratio"`
	State        PointState `json:"state"`
}

// SkippedPoint records a grid point that produced no portfolio, and why.
type SkippedPoint struct {
	TargetReturn float64    `json:"target_return"`
	State        PointState `json:"state"`
	Reason       string     `json:"reason"`
}

// Result is the outcome of one frontier calculation: the solved points in
// target-return order, the skipped grid points, and the maximum-Sharpe point
// selected among the solved ones.
type Result struct {
	Points       []Point        `json:"frontier_points"`
	Skipped      []SkippedPoint `json:"skipped_points"`
	MaxSharpe    Point          `json:"max_sharpe_point"`
	RiskFreeRate float64        `json:"risk_free_rate"`
}

// NoFeasiblePointsError is returned when every grid point failed: the
// frontier is aborted only in this zero-feasible case.
type NoFeasiblePointsError struct {
	Attempted  int `json:"attempted"`
	Infeasible int `json:"infeasible"`
	Failed     int `json:"failed"`
}

func (e *NoFeasiblePointsError) Error() string {
	return fmt.Sprintf(
		"no feasible portfolios found for efficient frontier: %d points attempted, %d infeasible, %d failed numerically; try different assets or a longer date range",
		e.Attempted, e.Infeasible, e.Failed,
	)
}

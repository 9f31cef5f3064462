package frontier

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"regimefolio/internal/stats"
)

func TestCalculate_SymmetricAssetsSplitEqually(t *testing.T) {
	// Two identical assets with positive correlation: the minimum-variance
	// portfolio is an equal split at every target.
	est := stats.MomentEstimate{
		Tickers: []string{"A", "B"},
		Mean:    []float64{0.0004, 0.0004},
		Cov: mat.NewSymDense(2, []float64{
			0.0002, 0.00005,
			0.00005, 0.0002,
		}),
	}

	result, err := NewOptimizer(zerolog.Nop()).Calculate(context.Background(), est, Options{NumPoints: 2})
	require.NoError(t, err)
	require.NotEmpty(t, result.Points)

	for _, p := range result.Points {
		require.Len(t, p.Weights, 2)
		assert.InDelta(t, 0.5, p.Weights[0], 0.02)
		assert.InDelta(t, 0.5, p.Weights[1], 0.02)
		assert.True(t, p.State.Solved())
	}
}

func TestCalculate_RiskNonDecreasingInTargetReturn(t *testing.T) {
	est := stats.MomentEstimate{
		Tickers: []string{"LOW", "HIGH"},
		Mean:    []float64{0.0002, 0.0008},
		Cov: mat.NewSymDense(2, []float64{
			0.0001, 0.00004,
			0.00004, 0.0004,
		}),
	}

	result, err := NewOptimizer(zerolog.Nop()).Calculate(context.Background(), est, Options{
		NumPoints:    5,
		RiskFreeRate: 0.02,
	})
	require.NoError(t, err)
	require.NotEmpty(t, result.Points)

	for i, p := range result.Points {
		sum := 0.0
		for _, w := range p.Weights {
			assert.GreaterOrEqual(t, w, 0.0)
			sum += w
		}
		assert.InDelta(t, 1.0, sum, 1e-6)
		assert.GreaterOrEqual(t, p.Return, p.TargetReturn-returnTolerance)

		if i > 0 {
			assert.GreaterOrEqual(t, p.Volatility, result.Points[i-1].Volatility-1e-6)
		}
	}

	// The max-Sharpe point is one of the solved points and no solved point
	// beats it.
	for _, p := range result.Points {
		assert.LessOrEqual(t, p.Sharpe, result.MaxSharpe.Sharpe)
	}
}

func TestCalculate_RejectsInvalidInputs(t *testing.T) {
	o := NewOptimizer(zerolog.Nop())

	_, err := o.Calculate(context.Background(), stats.MomentEstimate{
		Tickers: []string{"A"},
		Mean:    []float64{0.001},
		Cov:     mat.NewSymDense(1, []float64{0.0002}),
	}, Options{})
	assert.Error(t, err)

	// Indefinite covariance is rejected with matrix diagnostics.
	_, err = o.Calculate(context.Background(), stats.MomentEstimate{
		Tickers: []string{"A", "B", "C"},
		Mean:    []float64{0.001, 0.001, 0.001},
		Cov: mat.NewSymDense(3, []float64{
			1, 0.9, -0.9,
			0.9, 1, 0.9,
			-0.9, 0.9, 1,
		}),
	}, Options{})
	require.Error(t, err)
	var matErr *stats.MatrixError
	assert.ErrorAs(t, err, &matErr)
}

func TestCalculate_HonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	est := stats.MomentEstimate{
		Tickers: []string{"A", "B"},
		Mean:    []float64{0.0002, 0.0008},
		Cov: mat.NewSymDense(2, []float64{
			0.0001, 0,
			0, 0.0004,
		}),
	}
	_, err := NewOptimizer(zerolog.Nop()).Calculate(ctx, est, Options{NumPoints: 3})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCalculate_ReportsProgressPerPoint(t *testing.T) {
	est := stats.MomentEstimate{
		Tickers: []string{"A", "B"},
		Mean:    []float64{0.0003, 0.0006},
		Cov: mat.NewSymDense(2, []float64{
			0.0002, 0.00005,
			0.00005, 0.0003,
		}),
	}

	var steps []int
	_, err := NewOptimizer(zerolog.Nop()).Calculate(context.Background(), est, Options{
		NumPoints: 4,
		Progress: func(step, total int, message string) {
			assert.Equal(t, 4, total)
			assert.NotEmpty(t, message)
			steps = append(steps, step)
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4}, steps)
}

func TestLinspace(t *testing.T) {
	grid := linspace(0, 1, 5)
	assert.Equal(t, []float64{0, 0.25, 0.5, 0.75, 1}, grid)
	assert.Equal(t, []float64{0.3}, linspace(0.3, 0.7, 1))
}

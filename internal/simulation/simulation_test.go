package simulation

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"regimefolio/internal/stats"
)

func twoAssetMoments() stats.MomentEstimate {
	return stats.MomentEstimate{
		Tickers: []string{"A", "B"},
		Mean:    []float64{0.0005, 0.0003},
		Cov: mat.NewSymDense(2, []float64{
			0.0004, 0.0001,
			0.0001, 0.0002,
		}),
	}
}

func TestRun_DegenerateDeterministicCase(t *testing.T) {
	// 1 simulation, 1 step, zero mean, zero variance: the final value must
	// equal the initial value exactly.
	req := Request{
		Moments: stats.MomentEstimate{
			Tickers: []string{"A"},
			Mean:    []float64{0},
			Cov:     mat.NewSymDense(1, []float64{0}),
		},
		Weights:        []float64{1},
		NumSimulations: 1,
		TimeSteps:      1,
		InitialValue:   10000,
		Seed:           1,
	}

	result, err := NewEngine(zerolog.Nop()).Run(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, result.Paths, 1)
	assert.Equal(t, 10000.0, result.FinalValues[0])
	assert.Equal(t, 0.0, result.Drawdowns.WorstPct)
}

func TestRun_ShapesAndSeededReproducibility(t *testing.T) {
	req := Request{
		Moments:        twoAssetMoments(),
		Weights:        []float64{0.6, 0.4},
		NumSimulations: 200,
		TimeSteps:      50,
		InitialValue:   10000,
		Seed:           42,
	}

	engine := NewEngine(zerolog.Nop())
	first, err := engine.Run(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, first.Paths, 200)
	for _, path := range first.Paths {
		require.Len(t, path, 51)
		assert.Equal(t, 10000.0, path[0])
	}
	require.Len(t, first.Percentiles, 7)
	require.Len(t, first.Percentiles[0].Values, 51)

	second, err := engine.Run(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, first.FinalValues, second.FinalValues)
}

func TestRun_TailRiskMonotonicity(t *testing.T) {
	req := Request{
		Moments:        twoAssetMoments(),
		Weights:        []float64{0.5, 0.5},
		NumSimulations: 500,
		TimeSteps:      60,
		Seed:           7,
	}

	result, err := NewEngine(zerolog.Nop()).Run(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, result.TailRisks, 3)

	// VaR(99) >= VaR(95) >= VaR(90), and CVaR(c) >= VaR(c) at each level.
	var90, var95, var99 := result.TailRisks[0], result.TailRisks[1], result.TailRisks[2]
	assert.GreaterOrEqual(t, var99.VaRPct, var95.VaRPct)
	assert.GreaterOrEqual(t, var95.VaRPct, var90.VaRPct)
	for _, tr := range result.TailRisks {
		assert.GreaterOrEqual(t, tr.CVaRPct, tr.VaRPct)
		assert.InDelta(t, tr.VaRPct*10000, tr.VaRAmount, 1e-9)
	}
}

func TestRun_RejectsBadInputs(t *testing.T) {
	engine := NewEngine(zerolog.Nop())

	_, err := engine.Run(context.Background(), Request{
		Moments: twoAssetMoments(),
		Weights: []float64{1.0}, // wrong length
	})
	assert.Error(t, err)

	_, err = engine.Run(context.Background(), Request{
		Moments:          twoAssetMoments(),
		Weights:          []float64{0.5, 0.5},
		ConfidenceLevels: []float64{1.5},
	})
	assert.Error(t, err)
}

func TestMaxDrawdownPct(t *testing.T) {
	// Strictly increasing path has zero drawdown.
	assert.Equal(t, 0.0, maxDrawdownPct([]float64{100, 101, 102, 110}))

	// 100 -> 50 -> 100 has exactly -50%.
	assert.Equal(t, -50.0, maxDrawdownPct([]float64{100, 50, 100}))

	// Later deeper trough wins.
	assert.InDelta(t, -60.0, maxDrawdownPct([]float64{100, 80, 120, 48, 90}), 1e-9)
}

func TestTailRisks_EmptyTailFallsBackToVaR(t *testing.T) {
	// Constant losses: the tail mean equals the threshold.
	losses := []float64{0.1, 0.1, 0.1, 0.1}
	out := tailRisks(losses, 10000, []float64{0.95})
	require.Len(t, out, 1)
	assert.Equal(t, out[0].VaRPct, out[0].CVaRPct)
}

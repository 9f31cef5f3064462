package riskfactors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestAnalyze_SingleDominantFactor(t *testing.T) {
	// Two highly correlated assets plus one independent one: the first
	// component should load on the correlated pair.
	cov := mat.NewSymDense(3, []float64{
		0.0004, 0.00038, 0.0,
		0.00038, 0.0004, 0.0,
		0.0, 0.0, 0.0001,
	})
	tickers := []string{"SPY", "QQQ", "GLD"}

	analysis := Analyze(cov, tickers)

	require.NotEmpty(t, analysis.Factors)
	assert.Equal(t, 1, analysis.Factors[0].Rank)

	// Eigenvalues reported in descending order.
	for i := 1; i < len(analysis.Eigenvalues); i++ {
		assert.GreaterOrEqual(t, analysis.Eigenvalues[i-1], analysis.Eigenvalues[i])
	}

	// Top factor is the correlated equity pair.
	top := analysis.Factors[0].TopAssets
	require.Len(t, top, 2)
	names := []string{top[0].Ticker, top[1].Ticker}
	assert.ElementsMatch(t, []string{"SPY", "QQQ"}, names)

	assert.Greater(t, analysis.ExplainedVariancePct, 50.0)
	assert.LessOrEqual(t, analysis.ExplainedVariancePct, 100.0+1e-9)
}

func TestAnalyze_DominanceThreshold(t *testing.T) {
	// Variance 1e-5 -> scaled eigenvalue 0.1, below the dominance cutoff.
	tiny := mat.NewSymDense(2, []float64{
		1e-5, 0,
		0, 1e-5,
	})

	analysis := Analyze(tiny, []string{"A", "B"})
	assert.Empty(t, analysis.Factors)
	assert.Zero(t, analysis.ExplainedVariancePct)
}

func TestAnalyze_AtMostThreeFactors(t *testing.T) {
	// Five independent high-variance assets: every eigenvalue clears the
	// dominance threshold, but only the top three may be reported.
	n := 5
	data := make([]float64, n*n)
	for i := 0; i < n; i++ {
		data[i*n+i] = 0.01 * float64(n-i)
	}
	cov := mat.NewSymDense(n, data)

	analysis := Analyze(cov, []string{"A", "B", "C", "D", "E"})
	assert.Len(t, analysis.Factors, 3)
}

func TestAnalyze_ConditionNumber(t *testing.T) {
	cov := mat.NewSymDense(2, []float64{
		0.04, 0,
		0, 0.0004,
	})

	analysis := Analyze(cov, []string{"A", "B"})
	assert.InDelta(t, 100.0, analysis.ConditionNumber, 1e-6)
	assert.InDelta(t, 0.0004, analysis.MinEigenvalue, 1e-12)
	assert.InDelta(t, 0.04, analysis.MaxEigenvalue, 1e-12)
}

package formulas

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculateReturns(t *testing.T) {
	returns := CalculateReturns([]float64{100, 110, 99})
	assert.InDelta(t, 0.10, returns[0], 1e-12)
	assert.InDelta(t, -0.10, returns[1], 1e-12)

	assert.Empty(t, CalculateReturns([]float64{100}))
}

func TestAnnualizedVolatility(t *testing.T) {
	daily := []float64{0.01, -0.01, 0.01, -0.01}
	expected := StdDev(daily) * math.Sqrt(252)
	assert.InDelta(t, expected, AnnualizedVolatility(daily), 1e-12)
	assert.Equal(t, 0.0, AnnualizedVolatility(nil))
}

func TestMeanStdDevEmpty(t *testing.T) {
	assert.Equal(t, 0.0, Mean(nil))
	assert.Equal(t, 0.0, StdDev(nil))
	assert.Equal(t, 0.0, Variance(nil))
	assert.Equal(t, 0.0, Correlation([]float64{1}, []float64{1, 2}))
}

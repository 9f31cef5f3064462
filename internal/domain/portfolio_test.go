package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPortfolioValidate_Valid(t *testing.T) {
	p, err := New([]string{"SPY", "GLD", "BTC-EUR"}, []float64{0.5, 0.3, 0.2})
	require.NoError(t, err)

	sum := 0.0
	for _, w := range p.Weights() {
		sum += w
	}
	assert.InDelta(t, 1.0, sum, WeightSumTolerance)
	assert.Equal(t, []string{"SPY", "GLD", "BTC-EUR"}, p.Tickers())
}

func TestPortfolioValidate_WeightSumWithinTolerance(t *testing.T) {
	// Sum off by less than the tolerance must pass.
	_, err := New([]string{"A", "B"}, []float64{0.5, 0.5 + 5e-7})
	assert.NoError(t, err)

	// Sum off by more than the tolerance must fail.
	_, err = New([]string{"A", "B"}, []float64{0.5, 0.51})
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.NotEmpty(t, verr.Problems)
}

func TestPortfolioValidate_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		tickers []string
		weights []float64
	}{
		{"negative weight", []string{"A", "B"}, []float64{1.5, -0.5}},
		{"duplicate ticker", []string{"A", "A"}, []float64{0.5, 0.5}},
		{"empty ticker", []string{"A", " "}, []float64{0.5, 0.5}},
		{"empty portfolio", nil, nil},
		{"length mismatch", []string{"A"}, []float64{0.5, 0.5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.tickers, tt.weights)
			assert.Error(t, err)
		})
	}
}

func TestDateRangeValidate(t *testing.T) {
	assert.NoError(t, DateRange{Start: "2022-01-01", End: "2024-12-31"}.Validate())
	assert.Error(t, DateRange{Start: "2024-12-31", End: "2022-01-01"}.Validate())
	assert.Error(t, DateRange{Start: "01/01/2022", End: "2024-12-31"}.Validate())
	assert.Error(t, DateRange{Start: "2022-01-01", End: "2999-01-01"}.Validate())
}

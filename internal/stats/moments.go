// Package stats derives statistical parameters (mean returns, covariance)
// from price history and provides the matrix conditioning tools shared by the
// simulation and optimization engines.
package stats

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// TradingDaysPerYear is the annualization convention used everywhere in the
// engine: returns scale by the period count, volatility by its square root.
const TradingDaysPerYear = 252

// MinObservations is the minimum number of return observations required to
// estimate a covariance matrix.
const MinObservations = 2

// MomentEstimate holds the mean daily return vector and the daily covariance
// matrix for an ordered set of assets. Mean[i] and row/column i of Cov refer
// to Tickers[i].
type MomentEstimate struct {
	Tickers []string
	Mean    []float64
	Cov     *mat.SymDense
}

// NumAssets returns the number of assets covered by the estimate.
func (m MomentEstimate) NumAssets() int {
	return len(m.Tickers)
}

// Clone returns a deep copy, so regime adjustments never mutate the baseline.
func (m MomentEstimate) Clone() MomentEstimate {
	out := MomentEstimate{
		Tickers: append([]string(nil), m.Tickers...),
		Mean:    append([]float64(nil), m.Mean...),
	}
	if m.Cov != nil {
		out.Cov = mat.NewSymDense(m.Cov.SymmetricDim(), nil)
		out.Cov.CopySym(m.Cov)
	}
	return out
}

// Moments computes the arithmetic mean daily return and the sample covariance
// matrix from per-asset return series. All series must have equal length and
// at least MinObservations entries.
func Moments(returns map[string][]float64, tickers []string) (MomentEstimate, error) {
	n := len(tickers)
	if n == 0 {
		return MomentEstimate{}, fmt.Errorf("no tickers provided")
	}

	numObs := -1
	for _, ticker := range tickers {
		series, ok := returns[ticker]
		if !ok {
			return MomentEstimate{}, fmt.Errorf("missing return series for ticker %s", ticker)
		}
		if numObs == -1 {
			numObs = len(series)
		}
		if len(series) != numObs {
			return MomentEstimate{}, fmt.Errorf("inconsistent return lengths: %s has %d observations, expected %d", ticker, len(series), numObs)
		}
	}
	if numObs < MinObservations {
		return MomentEstimate{}, fmt.Errorf("insufficient history: %d observations, need at least %d", numObs, MinObservations)
	}

	mean := make([]float64, n)
	for i, ticker := range tickers {
		mean[i] = stat.Mean(returns[ticker], nil)
	}

	cov := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			c := stat.Covariance(returns[tickers[i]], returns[tickers[j]], nil)
			cov.SetSym(i, j, c)
		}
	}

	return MomentEstimate{Tickers: tickers, Mean: mean, Cov: cov}, nil
}

// Annualize converts a daily (return, volatility) pair to annual terms using
// the shared convention: periods x for returns, sqrt(periods) for volatility.
func Annualize(meanDailyReturn, dailyVolatility float64, periodsPerYear int) (annualReturn, annualVolatility float64) {
	p := float64(periodsPerYear)
	return meanDailyReturn * p, dailyVolatility * math.Sqrt(p)
}

// Package riskfactors identifies the dominant sources of portfolio risk via
// eigen-decomposition (PCA) of the covariance matrix.
package riskfactors

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"regimefolio/internal/stats"
)

const (
	// eigenvalueScale puts daily covariance eigenvalues on a
	// percentage-squared scale, so the "greater than one average asset"
	// dominance rule applies.
	eigenvalueScale = 10000

	// dominantThreshold marks a factor as dominant when it explains more
	// variance than a single average asset.
	dominantThreshold = 1.0

	// maxDominantFactors caps how many dominant factors are reported.
	maxDominantFactors = 3

	// loadingThresholdPct is the minimum contribution share for an asset to
	// be listed as a heavy loader of a factor.
	loadingThresholdPct = 10.0

	// smallEigenvalue marks factors whose loadings are reported top-2 only.
	smallEigenvalue = 5.0
)

// Loading is one asset's share of a factor, as a percentage of the factor's
// total absolute loading.
type Loading struct {
	Ticker string  `json:"asset"`
	Pct    float64 `json:"pct"`
}

// Factor is one dominant principal component.
type Factor struct {
	Rank         int       `json:"rank"` // 1-based, ordered by eigenvalue descending
	Eigenvalue   float64   `json:"eigenvalue"`
	ExplainedPct float64   `json:"explained_pct"`
	TopAssets    []Loading `json:"top_assets"`
}

// Analysis is the PCA summary for one covariance matrix.
type Analysis struct {
	Eigenvalues          []float64 `json:"eigenvalues"` // descending, scaled
	Factors              []Factor  `json:"dominant_factors"`
	ExplainedVariancePct float64   `json:"explained_variance_dominant_pct"`
	ConditionNumber      float64   `json:"condition_number"`
	MinEigenvalue        float64   `json:"min_eigenvalue"`
	MaxEigenvalue        float64   `json:"max_eigenvalue"`
}

// Analyze runs PCA on a covariance matrix. Factors are ranked by eigenvalue
// descending; a factor is dominant when its scaled eigenvalue exceeds 1.0,
// and at most the top three are reported. For each dominant factor the most
// heavily loaded assets are selected: every asset above the 10% contribution
// threshold when more than two qualify (and the factor is not small),
// otherwise the top two by absolute loading. The condition number is reported
// as a numerical-stability diagnostic.
func Analyze(cov mat.Symmetric, tickers []string) Analysis {
	diag := stats.Diagnose(cov)

	var eig mat.EigenSym
	if ok := eig.Factorize(cov, true); !ok {
		return Analysis{
			ConditionNumber: diag.ConditionNumber,
			MinEigenvalue:   diag.MinEigenvalue,
			MaxEigenvalue:   diag.MaxEigenvalue,
		}
	}

	n := cov.SymmetricDim()
	raw := eig.Values(nil) // ascending
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	// Reorder descending, on the percentage-squared scale.
	order := make([]int, n)
	values := make([]float64, n)
	for i := 0; i < n; i++ {
		order[i] = n - 1 - i
		values[i] = raw[n-1-i] * eigenvalueScale
	}

	total := 0.0
	for _, v := range values {
		total += v
	}

	analysis := Analysis{
		Eigenvalues:     values,
		ConditionNumber: diag.ConditionNumber,
		MinEigenvalue:   diag.MinEigenvalue,
		MaxEigenvalue:   diag.MaxEigenvalue,
	}

	for rank, value := range values {
		if value < dominantThreshold || rank >= maxDominantFactors {
			break
		}

		explained := 0.0
		if total > 0 {
			explained = value / total * 100
		}
		analysis.ExplainedVariancePct += explained

		analysis.Factors = append(analysis.Factors, Factor{
			Rank:         rank + 1,
			Eigenvalue:   value,
			ExplainedPct: explained,
			TopAssets:    selectLoadings(&vecs, order[rank], tickers, value),
		})
	}

	return analysis
}

// selectLoadings picks the heaviest-loaded assets for one factor.
func selectLoadings(vecs *mat.Dense, col int, tickers []string, eigenvalue float64) []Loading {
	n := len(tickers)

	totalAbs := 0.0
	abs := make([]float64, n)
	for i := 0; i < n; i++ {
		abs[i] = math.Abs(vecs.At(i, col))
		totalAbs += abs[i]
	}

	loadings := make([]Loading, n)
	for i := 0; i < n; i++ {
		pct := 0.0
		if totalAbs > 0 {
			pct = abs[i] / totalAbs * 100
		}
		loadings[i] = Loading{Ticker: tickers[i], Pct: pct}
	}
	sort.SliceStable(loadings, func(i, j int) bool {
		return loadings[i].Pct > loadings[j].Pct
	})

	var aboveThreshold []Loading
	for _, l := range loadings {
		if l.Pct >= loadingThresholdPct {
			aboveThreshold = append(aboveThreshold, l)
		}
	}

	if len(aboveThreshold) > 2 && eigenvalue >= smallEigenvalue {
		return aboveThreshold
	}
	if n < 2 {
		return loadings
	}
	return loadings[:2]
}

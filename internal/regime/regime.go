// Package regime transforms baseline (mean, covariance) estimates into
// regime-specific ones using per-asset multiplicative factors and a
// portfolio-wide correlation shift.
package regime

import (
	"fmt"

	"github.com/rs/zerolog"

	"regimefolio/internal/stats"
)

// PSDMode selects how a regime adjustment that breaks positive
// semi-definiteness is handled.
type PSDMode int

const (
	// PSDStrict surfaces the invalid matrix as a stats.MatrixError.
	PSDStrict PSDMode = iota
	// PSDRepair projects the adjusted matrix back onto the PSD cone.
	PSDRepair
)

// AssetFactors are the per-asset regime multipliers. MeanFactor scales the
// mean daily return; VolFactor scales volatility (variances by its square,
// covariances by both assets' factors).
type AssetFactors struct {
	MeanFactor float64 `json:"mean_factor"`
	VolFactor  float64 `json:"vol_factor"`
}

// Spec is a named macroeconomic scenario: per-asset factors plus one
// portfolio-wide additive shift applied to every off-diagonal correlation.
// A Spec is never mutated after construction.
type Spec struct {
	Key                string                  `json:"key"`
	Name               string                  `json:"name"`
	Description        string                  `json:"description,omitempty"`
	Factors            map[string]AssetFactors `json:"factors"`
	CorrelationMovePct float64                 `json:"correlation_move_pct"`
}

// Predefined regime keys.
const (
	KeyHistorical         = "historical"
	KeyFiatDebasement     = "fiat_debasement"
	KeyGeopoliticalCrisis = "geopolitical_crisis"
	KeyCustom             = "custom"
)

// IsBaseline reports whether the spec leaves the historical moments
// unchanged.
func (s Spec) IsBaseline() bool {
	return s.Key == KeyHistorical
}

// Validate checks that the spec provides factors for every ticker, that vol
// factors are positive, and that the correlation move stays inside (-1, 1).
func (s Spec) Validate(tickers []string) error {
	if s.IsBaseline() {
		return nil
	}

	if s.CorrelationMovePct <= -1.0 || s.CorrelationMovePct >= 1.0 {
		return fmt.Errorf("correlation move must be between -0.99 and 0.99 (got %g)", s.CorrelationMovePct)
	}

	for _, ticker := range tickers {
		f, ok := s.Factors[ticker]
		if !ok {
			return fmt.Errorf("missing regime factors for ticker %s", ticker)
		}
		if f.VolFactor <= 0 {
			return fmt.Errorf("%s: vol factor must be positive (got %g)", ticker, f.VolFactor)
		}
	}
	return nil
}

// Apply produces regime-adjusted moments from a baseline estimate:
//
//  1. mean'[i] = mean[i] * mean_factor[i]
//  2. cov'[i][j] = cov[i][j] * vol_factor[i] * vol_factor[j], which rescales
//     the risk surface while leaving correlations unchanged
//  3. every off-diagonal correlation is shifted by CorrelationMovePct,
//     clipped to [-1, 1], the diagonal forced back to 1, and the covariance
//     rebuilt from the shifted correlations
//
// If the correlation shift breaks positive semi-definiteness the behavior
// depends on mode: PSDStrict returns a stats.MatrixError, PSDRepair projects
// the matrix back onto the PSD cone and logs the correction.
func Apply(baseline stats.MomentEstimate, spec Spec, mode PSDMode, log zerolog.Logger) (stats.MomentEstimate, error) {
	if spec.IsBaseline() {
		return baseline, nil
	}
	if err := spec.Validate(baseline.Tickers); err != nil {
		return stats.MomentEstimate{}, err
	}

	log.Info().
		Str("regime", spec.Name).
		Int("num_assets", baseline.NumAssets()).
		Float64("correlation_move", spec.CorrelationMovePct).
		Msg("Applying regime adjustment")

	adjusted := baseline.Clone()
	n := adjusted.NumAssets()

	// Stage 1: mean scaling.
	for i, ticker := range adjusted.Tickers {
		adjusted.Mean[i] *= spec.Factors[ticker].MeanFactor
	}

	// Stage 2: joint volatility scaling, correlation preserving.
	for i := 0; i < n; i++ {
		vi := spec.Factors[adjusted.Tickers[i]].VolFactor
		for j := i; j < n; j++ {
			vj := spec.Factors[adjusted.Tickers[j]].VolFactor
			adjusted.Cov.SetSym(i, j, adjusted.Cov.At(i, j)*vi*vj)
		}
	}

	// Stage 3: additive correlation shift.
	if spec.CorrelationMovePct != 0 {
		corr, std := stats.CorrelationFromCovariance(adjusted.Cov)
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				shifted := corr.At(i, j) + spec.CorrelationMovePct
				if shifted > 1 {
					shifted = 1
				} else if shifted < -1 {
					shifted = -1
				}
				corr.SetSym(i, j, shifted)
			}
		}
		adjusted.Cov = stats.CovarianceFromCorrelation(corr, std)
	}

	if diag := stats.Diagnose(adjusted.Cov); !diag.IsPSD {
		switch mode {
		case PSDRepair:
			repaired, _ := stats.ProjectToPSD(adjusted.Cov, log)
			adjusted.Cov = repaired
		default:
			return stats.MomentEstimate{}, &stats.MatrixError{
				Property:        fmt.Sprintf("regime %q correlation shift produced a non-PSD covariance", spec.Name),
				MinEigenvalue:   diag.MinEigenvalue,
				ConditionNumber: diag.ConditionNumber,
			}
		}
	}

	return adjusted, nil
}

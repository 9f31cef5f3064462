package regime

import "fmt"

// Display names for the predefined regimes.
const (
	NameHistorical         = "Historical"
	NameFiatDebasement     = "Fiat Debasement"
	NameGeopoliticalCrisis = "Geopolitical Crisis"
	NameCustom             = "Custom"
)

// Historical is the baseline regime: no adjustment is applied.
func Historical() Spec {
	return Spec{
		Key:         KeyHistorical,
		Name:        NameHistorical,
		Description: "Baseline: actual past returns, volatility, and correlations. No regime modification is applied.",
	}
}

// FiatDebasement models a currency-debasement scenario: hard assets
// outperform with somewhat higher volatility, equities and EM rise
// moderately, and correlations disperse (risk-on).
func FiatDebasement() Spec {
	return Spec{
		Key:         KeyFiatDebasement,
		Name:        NameFiatDebasement,
		Description: "Fiat debasement: BTC & gold outperform, higher volatility. Mean/volatility factors rise for hard assets; equities/EM up moderately. Correlation move is negative (-0.15), reflecting risk-on dispersion.",
		Factors: map[string]AssetFactors{
			"BTC-EUR": {MeanFactor: 1.3, VolFactor: 1.1},   // BTC outperforms, stabilizes
			"4GLD.DE": {MeanFactor: 1.15, VolFactor: 1.05}, // Gold up, less than BTC
			"5MVW.DE": {MeanFactor: 1.05, VolFactor: 1.1},  // Energy mild outperformance
			"SPYL.DE": {MeanFactor: 1.1, VolFactor: 1.0},   // S&P up, vol unchanged
			"WMIN.DE": {MeanFactor: 1.2, VolFactor: 1.2},   // Miners up, more volatile
			"IS3N.DE": {MeanFactor: 1.1, VolFactor: 1.15},  // EM modest outperformance
		},
		// Keep the move small; large shifts can push the matrix out of the
		// PSD cone.
		CorrelationMovePct: -0.15,
	}
}

// GeopoliticalCrisis models a risk-off shock: risk assets fall and become
// more volatile, havens rise, and correlations move up together.
func GeopoliticalCrisis() Spec {
	return Spec{
		Key:         KeyGeopoliticalCrisis,
		Name:        NameGeopoliticalCrisis,
		Description: "Geopolitical crisis: Equities/EM down, gold & energy up, all more volatile. Mean factors drop for risk assets, rise for havens. Correlation move is positive (+0.1), showing risk-off co-movement.",
		Factors: map[string]AssetFactors{
			"BTC-EUR": {MeanFactor: 0.85, VolFactor: 1.7},  // Down, choppy, possible hedge
			"4GLD.DE": {MeanFactor: 1.10, VolFactor: 1.2},  // Gold up, a bit choppier
			"5MVW.DE": {MeanFactor: 1.15, VolFactor: 1.25}, // Energy up, choppier
			"SPYL.DE": {MeanFactor: 0.8, VolFactor: 1.3},   // S&P down, choppier
			"WMIN.DE": {MeanFactor: 1.05, VolFactor: 1.4},  // Miners up, riskier
			"IS3N.DE": {MeanFactor: 0.7, VolFactor: 1.5},   // EM down, much choppier
		},
		CorrelationMovePct: 0.1,
	}
}

// Custom wraps caller-supplied factors in a spec.
func Custom(factors map[string]AssetFactors, correlationMovePct float64) Spec {
	return Spec{
		Key:                KeyCustom,
		Name:               NameCustom,
		Factors:            factors,
		CorrelationMovePct: correlationMovePct,
	}
}

// Presets returns the predefined regimes in display order.
func Presets() []Spec {
	return []Spec{Historical(), FiatDebasement(), GeopoliticalCrisis()}
}

// Resolve normalizes a regime key and returns the matching spec. For "custom"
// the supplied factors are used; for predefined keys they are ignored.
func Resolve(key string, factors map[string]AssetFactors, correlationMovePct float64) (Spec, error) {
	switch normalizeKey(key) {
	case KeyHistorical:
		return Historical(), nil
	case KeyFiatDebasement:
		return FiatDebasement(), nil
	case KeyGeopoliticalCrisis:
		return GeopoliticalCrisis(), nil
	case KeyCustom:
		return Custom(factors, correlationMovePct), nil
	default:
		return Spec{}, fmt.Errorf("invalid regime name: %s", key)
	}
}

func normalizeKey(key string) string {
	out := make([]rune, 0, len(key))
	for _, r := range key {
		switch {
		case r == ' ':
			out = append(out, '_')
		case r >= 'A' && r <= 'Z':
			out = append(out, r+('a'-'A'))
		default:
			out = append(out, r)
		}
	}
	return string(out)
}

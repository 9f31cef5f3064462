package simulation

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"regimefolio/internal/riskfactors"
)

// percentileLevels are the per-step value bands reported with every run.
var percentileLevels = []float64{5, 10, 25, 50, 75, 90, 95}

// TailRisk is the VaR/CVaR pair at one confidence level, both as a fraction
// of initial value and as an absolute amount.
type TailRisk struct {
	Confidence float64 `json:"confidence"`
	VaRPct     float64 `json:"var_pct"`
	VaRAmount  float64 `json:"var_amount"`
	CVaRPct    float64 `json:"cvar_pct"`
	CVaRAmount float64 `json:"cvar_amount"`
}

// DrawdownStats aggregates per-path maximum drawdowns. Values are negative
// percentages (a path falling 100 -> 50 has drawdown -50).
type DrawdownStats struct {
	MeanPct   float64 `json:"mean_pct"`
	MedianPct float64 `json:"median_pct"`
	WorstPct  float64 `json:"worst_pct"`
}

// PerformanceStats summarize the final-value distribution.
type PerformanceStats struct {
	InitialValue    float64 `json:"initial_value"`
	MeanFinal       float64 `json:"mean_final"`
	MedianFinal     float64 `json:"median_final"`
	BestFinal       float64 `json:"best_final"`
	WorstFinal      float64 `json:"worst_final"`
	MeanReturnPct   float64 `json:"mean_return_pct"`
	MedianReturnPct float64 `json:"median_return_pct"`
	BestReturnPct   float64 `json:"best_return_pct"`
	WorstReturnPct  float64 `json:"worst_return_pct"`
}

// PathIndices locate representative paths in the result for charting.
type PathIndices struct {
	Median int `json:"median"`
	Best   int `json:"best"`
	Worst  int `json:"worst"`
}

// PercentileBand is one per-step percentile line across all paths.
type PercentileBand struct {
	Level  float64   `json:"level"`
	Values []float64 `json:"values"`
}

// Result is the complete output of one simulation run. Created fresh per
// request and never persisted.
type Result struct {
	Paths       [][]float64          `json:"paths"`
	FinalValues []float64            `json:"final_values"`
	TailRisks   []TailRisk           `json:"tail_risks"`
	Drawdowns   DrawdownStats        `json:"drawdowns"`
	Performance PerformanceStats     `json:"performance"`
	PathIndices PathIndices          `json:"path_indices"`
	Percentiles []PercentileBand     `json:"percentiles"`
	RiskFactors riskfactors.Analysis `json:"risk_factors"`
}

// deriveResult computes every statistic from the simulated paths.
func deriveResult(req Request, paths [][]float64) *Result {
	numPaths := len(paths)
	initial := req.InitialValue

	finals := make([]float64, numPaths)
	losses := make([]float64, numPaths)
	drawdowns := make([]float64, numPaths)
	for i, path := range paths {
		final := path[len(path)-1]
		finals[i] = final
		losses[i] = -(final/initial - 1)
		drawdowns[i] = maxDrawdownPct(path)
	}

	result := &Result{
		Paths:       paths,
		FinalValues: finals,
		TailRisks:   tailRisks(losses, initial, req.ConfidenceLevels),
		Drawdowns:   drawdownStats(drawdowns),
		Percentiles: percentileBands(paths),
	}
	result.Performance, result.PathIndices = performance(finals, initial)
	return result
}

// tailRisks computes VaR and CVaR over the loss distribution for each
// confidence level. VaR at confidence c is the c-th percentile of losses;
// CVaR is the mean of losses at or beyond that threshold, falling back to
// VaR when percentile binning leaves the tail empty.
func tailRisks(losses []float64, initial float64, confidences []float64) []TailRisk {
	sorted := make([]float64, len(losses))
	copy(sorted, losses)
	sort.Float64s(sorted)

	out := make([]TailRisk, 0, len(confidences))
	for _, c := range confidences {
		varPct := stat.Quantile(c, stat.LinInterp, sorted, nil)

		tailSum, tailCount := 0.0, 0
		for i := len(sorted) - 1; i >= 0 && sorted[i] >= varPct; i-- {
			tailSum += sorted[i]
			tailCount++
		}
		cvarPct := varPct
		if tailCount > 0 {
			cvarPct = tailSum / float64(tailCount)
		}

		out = append(out, TailRisk{
			Confidence: c,
			VaRPct:     varPct,
			VaRAmount:  varPct * initial,
			CVaRPct:    cvarPct,
			CVaRAmount: cvarPct * initial,
		})
	}
	return out
}

// maxDrawdownPct returns the largest peak-to-trough decline along one path
// as a negative percentage, tracked against the running maximum.
func maxDrawdownPct(path []float64) float64 {
	peak := path[0]
	worst := 0.0
	for _, v := range path {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			dd := (v - peak) / peak
			if dd < worst {
				worst = dd
			}
		}
	}
	return worst * 100
}

func drawdownStats(drawdowns []float64) DrawdownStats {
	sorted := make([]float64, len(drawdowns))
	copy(sorted, drawdowns)
	sort.Float64s(sorted)

	return DrawdownStats{
		MeanPct:   stat.Mean(sorted, nil),
		MedianPct: stat.Quantile(0.5, stat.LinInterp, sorted, nil),
		WorstPct:  sorted[0],
	}
}

func percentileBands(paths [][]float64) []PercentileBand {
	steps := len(paths[0])
	bands := make([]PercentileBand, len(percentileLevels))
	for b, level := range percentileLevels {
		bands[b] = PercentileBand{Level: level, Values: make([]float64, steps)}
	}

	column := make([]float64, len(paths))
	for t := 0; t < steps; t++ {
		for i, path := range paths {
			column[i] = path[t]
		}
		sort.Float64s(column)
		for b, level := range percentileLevels {
			bands[b].Values[t] = stat.Quantile(level/100, stat.LinInterp, column, nil)
		}
	}
	return bands
}

func performance(finals []float64, initial float64) (PerformanceStats, PathIndices) {
	sorted := make([]float64, len(finals))
	copy(sorted, finals)
	sort.Float64s(sorted)

	medianFinal := stat.Quantile(0.5, stat.LinInterp, sorted, nil)
	meanFinal := stat.Mean(sorted, nil)

	indices := PathIndices{}
	bestDist := math.Inf(1)
	for i, v := range finals {
		if v > finals[indices.Best] {
			indices.Best = i
		}
		if v < finals[indices.Worst] {
			indices.Worst = i
		}
		if d := math.Abs(v - medianFinal); d < bestDist {
			bestDist = d
			indices.Median = i
		}
	}

	returnPct := func(v float64) float64 { return (v/initial - 1) * 100 }
	perf := PerformanceStats{
		InitialValue:    initial,
		MeanFinal:       meanFinal,
		MedianFinal:     medianFinal,
		BestFinal:       finals[indices.Best],
		WorstFinal:      finals[indices.Worst],
		MeanReturnPct:   returnPct(meanFinal),
		MedianReturnPct: returnPct(medianFinal),
		BestReturnPct:   returnPct(finals[indices.Best]),
		WorstReturnPct:  returnPct(finals[indices.Worst]),
	}
	return perf, indices
}

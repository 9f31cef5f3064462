// Package domain contains the core portfolio types shared by the
// simulation and optimization engines.
package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// WeightSumTolerance is the maximum allowed deviation of the weight sum from 1.0.
const WeightSumTolerance = 1e-6

// Holding is a single (ticker, weight) entry in a portfolio.
type Holding struct {
	Ticker string  `json:"ticker"`
	Weight float64 `json:"weight"`
}

// Portfolio is an ordered set of holdings. Weights are fractions that must be
// non-negative and sum to 1.0 within WeightSumTolerance.
type Portfolio struct {
	Holdings []Holding `json:"holdings"`
}

// New builds a portfolio from parallel ticker/weight slices.
func New(tickers []string, weights []float64) (Portfolio, error) {
	if len(tickers) != len(weights) {
		return Portfolio{}, &ValidationError{
			Problems: []string{fmt.Sprintf("tickers and weights must have the same length (got %d and %d)", len(tickers), len(weights))},
		}
	}

	p := Portfolio{Holdings: make([]Holding, len(tickers))}
	for i := range tickers {
		p.Holdings[i] = Holding{Ticker: tickers[i], Weight: weights[i]}
	}

	if err := p.Validate(); err != nil {
		return Portfolio{}, err
	}
	return p, nil
}

// Tickers returns the tickers in portfolio order.
func (p Portfolio) Tickers() []string {
	tickers := make([]string, len(p.Holdings))
	for i, h := range p.Holdings {
		tickers[i] = h.Ticker
	}
	return tickers
}

// Weights returns the weights in portfolio order.
func (p Portfolio) Weights() []float64 {
	weights := make([]float64, len(p.Holdings))
	for i, h := range p.Holdings {
		weights[i] = h.Weight
	}
	return weights
}

// Validate checks the portfolio invariants: non-empty, unique non-empty
// tickers, non-negative weights summing to 1.0 within tolerance.
func (p Portfolio) Validate() error {
	var problems []string

	if len(p.Holdings) == 0 {
		problems = append(problems, "portfolio must contain at least one holding")
	}

	seen := make(map[string]bool, len(p.Holdings))
	sum := 0.0
	for _, h := range p.Holdings {
		ticker := strings.TrimSpace(h.Ticker)
		if ticker == "" {
			problems = append(problems, "all tickers must be non-empty")
		} else if seen[ticker] {
			problems = append(problems, fmt.Sprintf("duplicate ticker %q", ticker))
		}
		seen[ticker] = true

		if h.Weight < 0 {
			problems = append(problems, fmt.Sprintf("%s: weight must be non-negative (got %g)", h.Ticker, h.Weight))
		}
		sum += h.Weight
	}

	if len(p.Holdings) > 0 && math.Abs(sum-1.0) > WeightSumTolerance {
		problems = append(problems, fmt.Sprintf("weights must sum to 1.0 (got %.8f)", sum))
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// DateRange is an inclusive [Start, End] range of trading dates.
type DateRange struct {
	Start string `json:"start_date"`
	End   string `json:"end_date"`
}

// Validate checks the range: both dates parse as YYYY-MM-DD, start is not
// after end, and neither date lies in the future.
func (r DateRange) Validate() error {
	const layout = "2006-01-02"

	start, err := time.Parse(layout, r.Start)
	if err != nil {
		return &ValidationError{Problems: []string{fmt.Sprintf("start date %q must be in YYYY-MM-DD format", r.Start)}}
	}
	end, err := time.Parse(layout, r.End)
	if err != nil {
		return &ValidationError{Problems: []string{fmt.Sprintf("end date %q must be in YYYY-MM-DD format", r.End)}}
	}

	var problems []string
	if start.After(end) {
		problems = append(problems, "start date must be before or equal to end date")
	}
	now := time.Now()
	if start.After(now) {
		problems = append(problems, "start date cannot be in the future")
	}
	if end.After(now) {
		problems = append(problems, "end date cannot be in the future")
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// AssetSeries is the ordered daily return history for one asset, derived from
// closing prices. Immutable once computed for a (ticker, date range) pair.
type AssetSeries struct {
	Ticker  string    `json:"ticker"`
	Dates   []string  `json:"dates"`
	Returns []float64 `json:"returns"`
}

// ValidationError reports one or more input problems in a form the transport
// layer can render directly.
type ValidationError struct {
	Problems []string `json:"problems"`
}

func (e *ValidationError) Error() string {
	return "invalid input: " + strings.Join(e.Problems, "; ")
}

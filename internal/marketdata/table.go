// Package marketdata provides historical closing prices from remote and
// local sources, aligned into per-ticker tables and cached in memory.
package marketdata

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"regimefolio/internal/domain"
	"regimefolio/pkg/formulas"
)

// PriceTable holds aligned daily closing prices: every ticker has one price
// per entry of Dates, which is sorted ascending. Only dates on which every
// requested ticker traded are kept.
type PriceTable struct {
	Tickers []string             `json:"tickers"`
	Dates   []string             `json:"dates"`
	Prices  map[string][]float64 `json:"prices"`
}

// NumObservations returns the number of aligned trading days.
func (t *PriceTable) NumObservations() int {
	return len(t.Dates)
}

// DailyReturns converts prices to simple daily returns, one series per
// ticker, each one observation shorter than Dates.
func (t *PriceTable) DailyReturns() map[string][]float64 {
	returns := make(map[string][]float64, len(t.Tickers))
	for _, ticker := range t.Tickers {
		returns[ticker] = formulas.CalculateReturns(t.Prices[ticker])
	}
	return returns
}

// Series extracts one ticker's return history with its dates.
func (t *PriceTable) Series(ticker string) (domain.AssetSeries, error) {
	prices, ok := t.Prices[ticker]
	if !ok {
		return domain.AssetSeries{}, &UnknownTickerError{Ticker: ticker}
	}

	series := domain.AssetSeries{Ticker: ticker}
	if len(prices) > 1 {
		series.Dates = append(series.Dates, t.Dates[1:]...)
		series.Returns = formulas.CalculateReturns(prices)
	}
	return series, nil
}

// Provider fetches aligned closing prices for a set of tickers over an
// inclusive date range.
type Provider interface {
	FetchPrices(ctx context.Context, tickers []string, dateRange domain.DateRange) (*PriceTable, error)
}

// UnknownTickerError reports a ticker the data source has never heard of.
type UnknownTickerError struct {
	Ticker string `json:"ticker"`
}

func (e *UnknownTickerError) Error() string {
	return fmt.Sprintf("unknown ticker %q: no price data available", e.Ticker)
}

// EmptyRangeError reports a request whose date range contains no common
// trading days for the requested tickers.
type EmptyRangeError struct {
	Tickers   []string         `json:"tickers"`
	DateRange domain.DateRange `json:"date_range"`
}

func (e *EmptyRangeError) Error() string {
	return fmt.Sprintf("no overlapping trading days for [%s] between %s and %s",
		strings.Join(e.Tickers, ", "), e.DateRange.Start, e.DateRange.End)
}

// alignTables intersects per-ticker date->price maps into one PriceTable.
// Dates must already be formatted YYYY-MM-DD so lexical order is date order.
func alignTables(tickers []string, perTicker map[string]map[string]float64, dateRange domain.DateRange) (*PriceTable, error) {
	if len(tickers) == 0 {
		return nil, fmt.Errorf("no tickers requested")
	}

	common := make([]string, 0, len(perTicker[tickers[0]]))
	for date := range perTicker[tickers[0]] {
		shared := true
		for _, ticker := range tickers[1:] {
			if _, ok := perTicker[ticker][date]; !ok {
				shared = false
				break
			}
		}
		if shared {
			common = append(common, date)
		}
	}
	if len(common) == 0 {
		return nil, &EmptyRangeError{Tickers: tickers, DateRange: dateRange}
	}
	sort.Strings(common)

	table := &PriceTable{
		Tickers: tickers,
		Dates:   common,
		Prices:  make(map[string][]float64, len(tickers)),
	}
	for _, ticker := range tickers {
		prices := make([]float64, len(common))
		for i, date := range common {
			prices[i] = perTicker[ticker][date]
		}
		table.Prices[ticker] = prices
	}
	return table, nil
}

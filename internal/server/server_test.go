package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"regimefolio/internal/config"
	"regimefolio/internal/domain"
	"regimefolio/internal/events"
	"regimefolio/internal/frontier"
	"regimefolio/internal/marketdata"
	"regimefolio/internal/progress"
	"regimefolio/internal/rates"
	"regimefolio/internal/scheduler"
	"regimefolio/internal/simulation"
)

// fakePrices serves 120 days of synthetic prices for any requested tickers.
type fakePrices struct{}

func (fakePrices) FetchPrices(_ context.Context, tickers []string, _ domain.DateRange) (*marketdata.PriceTable, error) {
	const days = 120
	table := &marketdata.PriceTable{
		Tickers: tickers,
		Prices:  make(map[string][]float64, len(tickers)),
	}
	for d := 0; d < days; d++ {
		table.Dates = append(table.Dates, fmt.Sprintf("2024-%02d-%02d", d/28+1, d%28+1))
	}
	for k, ticker := range tickers {
		if ticker == "UNKNOWN" {
			return nil, &marketdata.UnknownTickerError{Ticker: ticker}
		}
		prices := make([]float64, days)
		for d := 0; d < days; d++ {
			drift := 0.0005 * float64(k+1) * float64(d)
			wiggle := 0.02 * math.Sin(float64(d)*float64(k+2))
			prices[d] = 100 * (1 + drift + wiggle)
		}
		table.Prices[ticker] = prices
	}
	return table, nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()

	cfg := &config.Config{
		Port:                0,
		LogLevel:            "info",
		DatabasePath:        t.TempDir() + "/prices.db",
		PriceSource:         "yahoo",
		CacheCapacity:       8,
		DefaultRiskFreeRate: 0.02,
		SolveTimeoutSeconds: 10,
	}

	log := zerolog.Nop()
	return New(Config{
		Port:        cfg.Port,
		Log:         log,
		Cfg:         cfg,
		Prices:      marketdata.NewCache(fakePrices{}, cfg.CacheCapacity, log),
		Rates:       rates.NewProvider("", cfg.DefaultRiskFreeRate, log),
		Simulator:   simulation.NewEngine(log),
		Frontier:    frontier.NewOptimizer(log),
		Broadcaster: progress.NewBroadcaster(log),
		Events:      events.NewManager(log),
		Scheduler:   scheduler.New(log),
	})
}

func postJSON(t *testing.T, s *Server, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	encoded, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(encoded))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func validHoldings() []map[string]interface{} {
	return []map[string]interface{}{
		{"ticker": "AAA", "weight": 0.6},
		{"ticker": "BBB", "weight": 0.4},
	}
}

func TestHandleSimulate_Succeeds(t *testing.T) {
	s := newTestServer(t)

	rec := postJSON(t, s, "/api/simulate", map[string]interface{}{
		"holdings":        validHoldings(),
		"start_date":      "2024-01-01",
		"end_date":        "2024-06-30",
		"num_simulations": 50,
		"time_steps":      10,
		"seed":            1,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var response struct {
		RunID  string `json:"run_id"`
		Regime string `json:"regime"`
		Result struct {
			FinalValues []float64 `json:"final_values"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.NotEmpty(t, response.RunID)
	assert.Equal(t, "historical", response.Regime)
	assert.Len(t, response.Result.FinalValues, 50)
}

func TestHandleSimulate_RejectsBadWeights(t *testing.T) {
	s := newTestServer(t)

	rec := postJSON(t, s, "/api/simulate", map[string]interface{}{
		"holdings": []map[string]interface{}{
			{"ticker": "AAA", "weight": 0.6},
			{"ticker": "BBB", "weight": 0.6},
		},
		"start_date": "2024-01-01",
		"end_date":   "2024-06-30",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "weights must sum to 1.0")
}

func TestHandleSimulate_UnknownTicker(t *testing.T) {
	s := newTestServer(t)

	rec := postJSON(t, s, "/api/simulate", map[string]interface{}{
		"holdings": []map[string]interface{}{
			{"ticker": "UNKNOWN", "weight": 1.0},
		},
		"start_date": "2024-01-01",
		"end_date":   "2024-06-30",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "UNKNOWN")
}

func TestHandleFrontier_Succeeds(t *testing.T) {
	s := newTestServer(t)

	rec := postJSON(t, s, "/api/frontier", map[string]interface{}{
		"holdings":   validHoldings(),
		"start_date": "2024-01-01",
		"end_date":   "2024-06-30",
		"num_points": 3,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var response struct {
		RunID  string `json:"run_id"`
		Result struct {
			Points []struct {
				Volatility float64   `json:"volatility"`
				Weights    []float64 `json:"weights"`
			} `json:"frontier_points"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.NotEmpty(t, response.Result.Points)
}

func TestHandleListRegimes(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/regimes", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "fiat_debasement")
	assert.Contains(t, rec.Body.String(), "geopolitical_crisis")
}

func TestHandleGetRegime(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/regimes/fiat_debasement", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Fiat Debasement")

	req = httptest.NewRequest(http.MethodGet, "/api/regimes/no_such_regime", nil)
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

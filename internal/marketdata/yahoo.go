package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"regimefolio/internal/domain"
)

const (
	defaultChartBaseURL = "https://query1.finance.yahoo.com/v8/finance/chart"
	// maxConcurrentFetches bounds parallel per-ticker requests against the
	// upstream API.
	maxConcurrentFetches = 4
)

// YahooClient fetches historical closing prices from the Yahoo Finance chart
// API, one request per ticker.
type YahooClient struct {
	client  *http.Client
	baseURL string
	log     zerolog.Logger
}

// NewYahooClient creates a Yahoo Finance price client.
func NewYahooClient(log zerolog.Logger) *YahooClient {
	return &YahooClient{
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL: defaultChartBaseURL,
		log:     log.With().Str("client", "yahoo").Logger(),
	}
}

// chartResponse mirrors the subset of the chart API payload we consume.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []float64 `json:"close"`
				} `json:"quote"`
				AdjClose []struct {
					AdjClose []float64 `json:"adjclose"`
				} `json:"adjclose"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// FetchPrices fetches daily closes for every ticker and aligns them on their
// common trading days. Adjusted closes are used when present.
func (c *YahooClient) FetchPrices(ctx context.Context, tickers []string, dateRange domain.DateRange) (*PriceTable, error) {
	start := time.Now()

	perTicker := make(map[string]map[string]float64, len(tickers))
	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(maxConcurrentFetches)

	results := make([]map[string]float64, len(tickers))
	for i, ticker := range tickers {
		group.Go(func() error {
			prices, err := c.fetchTicker(ctx, ticker, dateRange)
			if err != nil {
				return err
			}
			results[i] = prices
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	for i, ticker := range tickers {
		perTicker[ticker] = results[i]
	}

	table, err := alignTables(tickers, perTicker, dateRange)
	if err != nil {
		return nil, err
	}

	c.log.Info().
		Int("tickers", len(tickers)).
		Int("trading_days", table.NumObservations()).
		Dur("elapsed", time.Since(start)).
		Msg("Fetched historical prices")
	return table, nil
}

// fetchTicker returns date -> close for one ticker within the range.
func (c *YahooClient) fetchTicker(ctx context.Context, ticker string, dateRange domain.DateRange) (map[string]float64, error) {
	const layout = "2006-01-02"
	startDate, err := time.Parse(layout, dateRange.Start)
	if err != nil {
		return nil, fmt.Errorf("invalid start date %q: %w", dateRange.Start, err)
	}
	endDate, err := time.Parse(layout, dateRange.End)
	if err != nil {
		return nil, fmt.Errorf("invalid end date %q: %w", dateRange.End, err)
	}

	params := url.Values{}
	params.Add("interval", "1d")
	params.Add("period1", fmt.Sprintf("%d", startDate.Unix()))
	// period2 is exclusive upstream; push it to the end of the last day.
	params.Add("period2", fmt.Sprintf("%d", endDate.Add(24*time.Hour).Unix()))
	params.Add("events", "div,splits")

	reqURL := c.baseURL + "/" + url.PathEscape(ticker) + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch prices for %s: %w", ticker, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, &UnknownTickerError{Ticker: ticker}
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("price API returned status %d for %s: %s", resp.StatusCode, ticker, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var parsed chartResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse response for %s: %w", ticker, err)
	}
	if parsed.Chart.Error != nil {
		if parsed.Chart.Error.Code == "Not Found" {
			return nil, &UnknownTickerError{Ticker: ticker}
		}
		return nil, fmt.Errorf("price API error for %s: %s", ticker, parsed.Chart.Error.Description)
	}
	if len(parsed.Chart.Result) == 0 || len(parsed.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, &UnknownTickerError{Ticker: ticker}
	}

	chart := parsed.Chart.Result[0]
	closes := chart.Indicators.Quote[0].Close
	var adjCloses []float64
	if len(chart.Indicators.AdjClose) > 0 {
		adjCloses = chart.Indicators.AdjClose[0].AdjClose
	}

	prices := make(map[string]float64, len(chart.Timestamp))
	for i, ts := range chart.Timestamp {
		if i >= len(closes) || closes[i] == 0 {
			continue
		}
		price := closes[i]
		if i < len(adjCloses) && adjCloses[i] != 0 {
			price = adjCloses[i]
		}
		prices[time.Unix(ts, 0).UTC().Format(layout)] = price
	}
	return prices, nil
}

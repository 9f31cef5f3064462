// Package rates supplies the annualized risk-free rate used for Sharpe
// ratios, fetched over HTTP with a daily cache and a configured fallback.
package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// CacheTTL is how long a fetched rate stays fresh.
const CacheTTL = 24 * time.Hour

// Provider fetches the risk-free rate from a remote JSON endpoint. A fetched
// value is cached for CacheTTL; when the fetch fails the configured default
// is served instead. Safe for concurrent use.
type Provider struct {
	client      *http.Client
	url         string
	defaultRate float64
	log         zerolog.Logger

	mu        sync.Mutex
	rate      float64
	fetchedAt time.Time
}

// NewProvider creates a rate provider. url may be empty, in which case every
// lookup serves the default rate.
func NewProvider(url string, defaultRate float64, log zerolog.Logger) *Provider {
	return &Provider{
		client:      &http.Client{Timeout: 15 * time.Second},
		url:         url,
		defaultRate: defaultRate,
		log:         log.With().Str("component", "rates").Logger(),
	}
}

// rateResponse is the expected remote payload: an annualized percentage.
type rateResponse struct {
	RatePct float64 `json:"rate_pct"`
}

// Rate returns the annualized risk-free rate as a fraction (0.02 for 2%).
// Never fails: stale-or-missing cache triggers a refresh, and a refresh
// failure falls back to the default rate.
func (p *Provider) Rate(ctx context.Context) float64 {
	p.mu.Lock()
	if !p.fetchedAt.IsZero() && time.Since(p.fetchedAt) < CacheTTL {
		rate := p.rate
		p.mu.Unlock()
		p.log.Debug().Float64("rate", rate).Msg("Risk-free rate served from cache")
		return rate
	}
	p.mu.Unlock()

	rate, err := p.fetch(ctx)
	if err != nil {
		p.log.Warn().Err(err).
			Float64("default_rate", p.defaultRate).
			Msg("Risk-free rate fetch failed, using default")
		return p.defaultRate
	}

	p.mu.Lock()
	p.rate = rate
	p.fetchedAt = time.Now()
	p.mu.Unlock()

	p.log.Info().Float64("rate", rate).Msg("Risk-free rate fetched from provider")
	return rate
}

// Refresh forces a fetch regardless of cache freshness. Used by the daily
// scheduler job; errors are reported so the job can log them.
func (p *Provider) Refresh(ctx context.Context) error {
	rate, err := p.fetch(ctx)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.rate = rate
	p.fetchedAt = time.Now()
	p.mu.Unlock()

	p.log.Info().Float64("rate", rate).Msg("Risk-free rate refreshed")
	return nil
}

func (p *Provider) fetch(ctx context.Context) (float64, error) {
	if p.url == "" {
		return 0, fmt.Errorf("no rate provider URL configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch rate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return 0, fmt.Errorf("rate provider returned status %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("failed to read rate response: %w", err)
	}

	var parsed rateResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return 0, fmt.Errorf("failed to parse rate response: %w", err)
	}
	if parsed.RatePct < 0 || parsed.RatePct > 100 {
		return 0, fmt.Errorf("rate %.4f%% outside plausible range", parsed.RatePct)
	}

	return parsed.RatePct / 100, nil
}

package rates

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRate_FetchesAndCaches(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"rate_pct": 4.25}`))
	}))
	defer server.Close()

	p := NewProvider(server.URL, 0.02, zerolog.Nop())

	rate := p.Rate(context.Background())
	assert.InDelta(t, 0.0425, rate, 1e-12)

	// Second lookup inside the TTL is served from cache.
	rate = p.Rate(context.Background())
	assert.InDelta(t, 0.0425, rate, 1e-12)
	assert.Equal(t, int64(1), calls.Load())
}

func TestRate_FallsBackToDefaultOnFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	p := NewProvider(server.URL, 0.02, zerolog.Nop())
	assert.Equal(t, 0.02, p.Rate(context.Background()))
}

func TestRate_NoURLServesDefault(t *testing.T) {
	p := NewProvider("", 0.03, zerolog.Nop())
	assert.Equal(t, 0.03, p.Rate(context.Background()))
}

func TestRefresh_UpdatesCacheAndReportsErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"rate_pct": 3.5}`))
	}))
	defer server.Close()

	p := NewProvider(server.URL, 0.02, zerolog.Nop())
	require.NoError(t, p.Refresh(context.Background()))
	assert.InDelta(t, 0.035, p.Rate(context.Background()), 1e-12)

	bad := NewProvider("", 0.02, zerolog.Nop())
	assert.Error(t, bad.Refresh(context.Background()))
}

func TestFetch_RejectsImplausibleRate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"rate_pct": 250}`))
	}))
	defer server.Close()

	p := NewProvider(server.URL, 0.02, zerolog.Nop())
	assert.Equal(t, 0.02, p.Rate(context.Background()))
}

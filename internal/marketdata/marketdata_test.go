package marketdata

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"regimefolio/internal/domain"
)

type fakeProvider struct {
	calls atomic.Int64
	fail  bool
}

func (f *fakeProvider) FetchPrices(_ context.Context, tickers []string, dateRange domain.DateRange) (*PriceTable, error) {
	f.calls.Add(1)
	if f.fail {
		return nil, errors.New("upstream unavailable")
	}

	table := &PriceTable{
		Tickers: tickers,
		Dates:   []string{"2024-01-02", "2024-01-03", "2024-01-04"},
		Prices:  make(map[string][]float64, len(tickers)),
	}
	for i, ticker := range tickers {
		base := 100.0 * float64(i+1)
		table.Prices[ticker] = []float64{base, base * 1.01, base * 1.02}
	}
	return table, nil
}

func testRange() domain.DateRange {
	return domain.DateRange{Start: "2024-01-01", End: "2024-01-31"}
}

func TestCache_IdenticalRequestsFetchOnce(t *testing.T) {
	upstream := &fakeProvider{}
	cache := NewCache(upstream, 8, zerolog.Nop())

	first, err := cache.FetchPrices(context.Background(), []string{"AAA", "BBB"}, testRange())
	require.NoError(t, err)

	second, err := cache.FetchPrices(context.Background(), []string{"AAA", "BBB"}, testRange())
	require.NoError(t, err)

	assert.Equal(t, int64(1), upstream.calls.Load())
	assert.Same(t, first, second)
}

func TestCache_TickerOrderIsPartOfTheKey(t *testing.T) {
	upstream := &fakeProvider{}
	cache := NewCache(upstream, 8, zerolog.Nop())

	_, err := cache.FetchPrices(context.Background(), []string{"AAA", "BBB"}, testRange())
	require.NoError(t, err)
	_, err = cache.FetchPrices(context.Background(), []string{"BBB", "AAA"}, testRange())
	require.NoError(t, err)

	assert.Equal(t, int64(2), upstream.calls.Load())
	assert.Equal(t, 2, cache.Len())
}

func TestCache_FailuresAreNotCached(t *testing.T) {
	upstream := &fakeProvider{fail: true}
	cache := NewCache(upstream, 8, zerolog.Nop())

	_, err := cache.FetchPrices(context.Background(), []string{"AAA"}, testRange())
	require.Error(t, err)
	assert.Equal(t, 0, cache.Len())

	upstream.fail = false
	_, err = cache.FetchPrices(context.Background(), []string{"AAA"}, testRange())
	require.NoError(t, err)
	assert.Equal(t, int64(2), upstream.calls.Load())
}

func TestCache_EvictsLeastRecentlyUsed(t *testing.T) {
	upstream := &fakeProvider{}
	cache := NewCache(upstream, 2, zerolog.Nop())

	for i := 0; i < 3; i++ {
		_, err := cache.FetchPrices(context.Background(), []string{fmt.Sprintf("T%d", i)}, testRange())
		require.NoError(t, err)
	}
	assert.Equal(t, 2, cache.Len())

	// T0 was evicted, so it fetches again.
	_, err := cache.FetchPrices(context.Background(), []string{"T0"}, testRange())
	require.NoError(t, err)
	assert.Equal(t, int64(4), upstream.calls.Load())
}

func TestPriceTable_DailyReturns(t *testing.T) {
	table := &PriceTable{
		Tickers: []string{"AAA"},
		Dates:   []string{"2024-01-02", "2024-01-03", "2024-01-04"},
		Prices:  map[string][]float64{"AAA": {100, 110, 99}},
	}

	returns := table.DailyReturns()
	require.Len(t, returns["AAA"], 2)
	assert.InDelta(t, 0.10, returns["AAA"][0], 1e-12)
	assert.InDelta(t, -0.10, returns["AAA"][1], 1e-12)
}

func TestPriceTable_Series(t *testing.T) {
	table := &PriceTable{
		Tickers: []string{"AAA"},
		Dates:   []string{"2024-01-02", "2024-01-03"},
		Prices:  map[string][]float64{"AAA": {100, 105}},
	}

	series, err := table.Series("AAA")
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-01-03"}, series.Dates)

	_, err = table.Series("ZZZ")
	var unknown *UnknownTickerError
	assert.ErrorAs(t, err, &unknown)
}

func TestAlignTables_IntersectsAndSorts(t *testing.T) {
	perTicker := map[string]map[string]float64{
		"AAA": {"2024-01-02": 100, "2024-01-03": 101, "2024-01-04": 102},
		"BBB": {"2024-01-03": 50, "2024-01-04": 51, "2024-01-05": 52},
	}

	table, err := alignTables([]string{"AAA", "BBB"}, perTicker, testRange())
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-01-03", "2024-01-04"}, table.Dates)
	assert.Equal(t, []float64{101, 102}, table.Prices["AAA"])
	assert.Equal(t, []float64{50, 51}, table.Prices["BBB"])
}

func TestAlignTables_NoOverlapIsEmptyRange(t *testing.T) {
	perTicker := map[string]map[string]float64{
		"AAA": {"2024-01-02": 100},
		"BBB": {"2024-01-03": 50},
	}

	_, err := alignTables([]string{"AAA", "BBB"}, perTicker, testRange())
	var empty *EmptyRangeError
	assert.ErrorAs(t, err, &empty)
}

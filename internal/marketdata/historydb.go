package marketdata

import (
	"context"

	"github.com/rs/zerolog"

	"regimefolio/internal/database/repositories"
	"regimefolio/internal/domain"
)

// HistoryDB serves prices from the local SQLite price history instead of the
// remote API. Used when the server runs against a pre-synced dataset or
// offline.
type HistoryDB struct {
	repo *repositories.PriceRepository
	log  zerolog.Logger
}

// NewHistoryDB creates a local price history provider.
func NewHistoryDB(repo *repositories.PriceRepository, log zerolog.Logger) *HistoryDB {
	return &HistoryDB{
		repo: repo,
		log:  log.With().Str("component", "history_db").Logger(),
	}
}

// FetchPrices loads stored closes for every ticker and aligns them on common
// trading days. A ticker with no stored prices at all is unknown; tickers
// that merely miss the requested window yield an empty-range error.
func (h *HistoryDB) FetchPrices(ctx context.Context, tickers []string, dateRange domain.DateRange) (*PriceTable, error) {
	perTicker := make(map[string]map[string]float64, len(tickers))

	for _, ticker := range tickers {
		points, err := h.repo.GetRange(ctx, ticker, dateRange.Start, dateRange.End)
		if err != nil {
			return nil, err
		}
		if len(points) == 0 {
			known, err := h.repo.HasTicker(ctx, ticker)
			if err != nil {
				return nil, err
			}
			if !known {
				return nil, &UnknownTickerError{Ticker: ticker}
			}
			return nil, &EmptyRangeError{Tickers: tickers, DateRange: dateRange}
		}

		prices := make(map[string]float64, len(points))
		for _, p := range points {
			prices[p.Date] = p.Close
		}
		perTicker[ticker] = prices
	}

	table, err := alignTables(tickers, perTicker, dateRange)
	if err != nil {
		return nil, err
	}

	h.log.Debug().
		Int("tickers", len(tickers)).
		Int("trading_days", table.NumObservations()).
		Msg("Loaded price history from local store")
	return table, nil
}

package services

import (
	"context"
	"fmt"
	"time"

	"trade-council/models"
	"trade-council/observability"

	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
	"github.com/piquette/finance-go/quote"
	"github.com/shopspring/decimal"
)

// YahooService is the keyless candle and quote fallback used when no
// Alpaca credentials are configured.
type YahooService struct{}

// NewYahooService creates a new YahooService instance
func NewYahooService() *YahooService {
	return &YahooService{}
}

// GetDailyCandles returns daily candles between start and end
func (s *YahooService) GetDailyCandles(ctx context.Context, symbol string, start, end time.Time) ([]models.Candle, error) {
	metrics := observability.GetMetrics()
	metrics.RecordExternalAPIRequest(BreakerYahoo, "get_chart")
	timer := metrics.NewTimer()

	result, err := WithCircuitBreaker(ctx, BreakerYahoo, func() ([]models.Candle, error) {
		params := &chart.Params{
			Symbol:   symbol,
			Start:    datetime.New(&start),
			End:      datetime.New(&end),
			Interval: datetime.OneDay,
		}

		iter := chart.Get(params)

		var candles []models.Candle
		for iter.Next() {
			bar := iter.Bar()
			candles = append(candles, models.Candle{
				Date:   time.Unix(int64(bar.Timestamp), 0),
				Open:   bar.Open.InexactFloat64(),
				High:   bar.High.InexactFloat64(),
				Low:    bar.Low.InexactFloat64(),
				Close:  bar.Close.InexactFloat64(),
				Volume: float64(bar.Volume),
			})
		}
		if err := iter.Err(); err != nil {
			return nil, fmt.Errorf("failed to fetch chart for %s: %w", symbol, err)
		}

		if len(candles) == 0 {
			return nil, fmt.Errorf("no candles returned for %s", symbol)
		}

		return candles, nil
	})

	timer.ObserveExternalAPI(BreakerYahoo, "get_chart")
	if err != nil {
		metrics.RecordExternalAPIError(BreakerYahoo, "get_chart", categorizeAPIError(err))
	}
	return result, err
}

// GetQuote returns the latest quote for a symbol
func (s *YahooService) GetQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	metrics := observability.GetMetrics()
	metrics.RecordExternalAPIRequest(BreakerYahoo, "get_quote")
	timer := metrics.NewTimer()

	result, err := WithCircuitBreaker(ctx, BreakerYahoo, func() (*models.Quote, error) {
		q, err := quote.Get(symbol)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch quote for %s: %w", symbol, err)
		}
		if q == nil {
			return nil, fmt.Errorf("no quote returned for %s", symbol)
		}

		return &models.Quote{
			Symbol:    symbol,
			Last:      decimal.NewFromFloat(q.RegularMarketPrice),
			Bid:       decimal.NewFromFloat(q.Bid),
			Ask:       decimal.NewFromFloat(q.Ask),
			Volume:    int64(q.RegularMarketVolume),
			Timestamp: time.Now(),
		}, nil
	})

	timer.ObserveExternalAPI(BreakerYahoo, "get_quote")
	if err != nil {
		metrics.RecordExternalAPIError(BreakerYahoo, "get_quote", categorizeAPIError(err))
	}
	return result, err
}

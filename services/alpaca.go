package services

import (
	"context"
	"fmt"
	"time"

	"trade-council/models"
	"trade-council/observability"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/shopspring/decimal"
)

// AlpacaService provides market data and account state. Recommendations
// never place orders; the account is read only for position sizing.
type AlpacaService struct {
	tradeClient *alpaca.Client
	dataClient  *marketdata.Client
}

// NewAlpacaService creates a new AlpacaService instance
func NewAlpacaService(apiKey, apiSecret, baseURL string) *AlpacaService {
	tradeClient := alpaca.NewClient(alpaca.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
		BaseURL:   baseURL,
	})

	dataClient := marketdata.NewClient(marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	})

	return &AlpacaService{
		tradeClient: tradeClient,
		dataClient:  dataClient,
	}
}

// GetDailyCandles returns daily candles for the last N calendar days
func (s *AlpacaService) GetDailyCandles(ctx context.Context, symbol string, days int) ([]models.Candle, error) {
	metrics := observability.GetMetrics()
	metrics.RecordExternalAPIRequest(BreakerAlpaca, "get_bars")
	timer := metrics.NewTimer()

	result, err := WithCircuitBreaker(ctx, BreakerAlpaca, func() ([]models.Candle, error) {
		end := time.Now()
		start := end.AddDate(0, 0, -days)

		bars, err := s.dataClient.GetBars(symbol, marketdata.GetBarsRequest{
			TimeFrame: marketdata.OneDay,
			Start:     start,
			End:       end,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to get bars for %s: %w", symbol, err)
		}

		candles := make([]models.Candle, 0, len(bars))
		for _, bar := range bars {
			candles = append(candles, models.Candle{
				Date:   bar.Timestamp,
				Open:   bar.Open,
				High:   bar.High,
				Low:    bar.Low,
				Close:  bar.Close,
				Volume: float64(bar.Volume),
			})
		}

		return candles, nil
	})

	timer.ObserveExternalAPI(BreakerAlpaca, "get_bars")
	if err != nil {
		metrics.RecordExternalAPIError(BreakerAlpaca, "get_bars", categorizeAPIError(err))
	}
	return result, err
}

// GetQuote returns the latest quote for a symbol
func (s *AlpacaService) GetQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	metrics := observability.GetMetrics()
	metrics.RecordExternalAPIRequest(BreakerAlpaca, "get_quote")
	timer := metrics.NewTimer()

	result, err := WithCircuitBreaker(ctx, BreakerAlpaca, func() (*models.Quote, error) {
		quote, err := s.dataClient.GetLatestQuote(symbol, marketdata.GetLatestQuoteRequest{})
		if err != nil {
			return nil, fmt.Errorf("failed to get quote for %s: %w", symbol, err)
		}

		trade, err := s.dataClient.GetLatestTrade(symbol, marketdata.GetLatestTradeRequest{})
		if err != nil {
			return nil, fmt.Errorf("failed to get trade for %s: %w", symbol, err)
		}

		return &models.Quote{
			Symbol:    symbol,
			Last:      decimal.NewFromFloat(trade.Price),
			Bid:       decimal.NewFromFloat(quote.BidPrice),
			Ask:       decimal.NewFromFloat(quote.AskPrice),
			Volume:    int64(trade.Size),
			Timestamp: trade.Timestamp,
		}, nil
	})

	timer.ObserveExternalAPI(BreakerAlpaca, "get_quote")
	if err != nil {
		metrics.RecordExternalAPIError(BreakerAlpaca, "get_quote", categorizeAPIError(err))
	}
	return result, err
}

// GetAccount returns cash and portfolio state for position sizing
func (s *AlpacaService) GetAccount(ctx context.Context) (*models.Account, error) {
	metrics := observability.GetMetrics()
	metrics.RecordExternalAPIRequest(BreakerAlpaca, "get_account")
	timer := metrics.NewTimer()

	result, err := WithCircuitBreaker(ctx, BreakerAlpaca, func() (*models.Account, error) {
		account, err := s.tradeClient.GetAccount()
		if err != nil {
			return nil, fmt.Errorf("failed to get account: %w", err)
		}

		return &models.Account{
			Cash:           account.Cash,
			PortfolioValue: account.PortfolioValue,
			BuyingPower:    account.BuyingPower,
		}, nil
	})

	timer.ObserveExternalAPI(BreakerAlpaca, "get_account")
	if err != nil {
		metrics.RecordExternalAPIError(BreakerAlpaca, "get_account", categorizeAPIError(err))
	}
	return result, err
}

package marketdata

import (
	"context"
	"time"

	"trade-council/models"
)

type mockAlpacaService struct {
	candles []models.Candle
	quote   *models.Quote
	account *models.Account
	err     error
	calls   int
}

func (m *mockAlpacaService) GetDailyCandles(ctx context.Context, symbol string, days int) ([]models.Candle, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.candles, nil
}

func (m *mockAlpacaService) GetQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.quote, nil
}

func (m *mockAlpacaService) GetAccount(ctx context.Context) (*models.Account, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.account, nil
}

type mockYahooService struct {
	candles []models.Candle
	quote   *models.Quote
	err     error
}

func (m *mockYahooService) GetDailyCandles(ctx context.Context, symbol string, start, end time.Time) ([]models.Candle, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.candles, nil
}

func (m *mockYahooService) GetQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.quote, nil
}

type mockAlphaVantageService struct {
	fundamentals *models.Fundamentals
	news         []models.NewsArticle
	quote        *models.Quote
	err          error
}

func (m *mockAlphaVantageService) GetFundamentals(ctx context.Context, symbol string) (*models.Fundamentals, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.fundamentals, nil
}

func (m *mockAlphaVantageService) GetNews(ctx context.Context, symbol string) ([]models.NewsArticle, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.news, nil
}

func (m *mockAlphaVantageService) GetQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.quote, nil
}

type mockFMPService struct {
	norms *models.SectorNorms
	err   error
}

func (m *mockFMPService) GetSectorNorms(ctx context.Context, symbol string) (*models.SectorNorms, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.norms, nil
}

type mockNewsAPIService struct {
	articles []models.NewsArticle
	err      error
}

func (m *mockNewsAPIService) GetNews(ctx context.Context, query string, limit int) ([]models.NewsArticle, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.articles, nil
}

func (m *mockNewsAPIService) GetHeadlines(ctx context.Context, query string, limit int) ([]models.NewsArticle, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.articles, nil
}

type mockHeadlineScraper struct {
	articles []models.NewsArticle
	err      error
}

func (m *mockHeadlineScraper) ScrapeHeadlines(ctx context.Context, query string, limit int) ([]models.NewsArticle, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.articles, nil
}

package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"trade-council/models"
	"trade-council/observability"

	"github.com/shopspring/decimal"
)

// AlphaVantageService handles communication with Alpha Vantage API
type AlphaVantageService struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
}

// NewAlphaVantageService creates a new AlphaVantageService instance
func NewAlphaVantageService(apiKey string) *AlphaVantageService {
	return &AlphaVantageService{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    "https://www.alphavantage.co/query",
	}
}

// OverviewResponse represents the company overview response from Alpha Vantage
type OverviewResponse struct {
	Symbol        string `json:"Symbol"`
	Name          string `json:"Name"`
	Exchange      string `json:"Exchange"`
	Sector        string `json:"Sector"`
	Industry      string `json:"Industry"`
	MarketCap     string `json:"MarketCapitalization"`
	PERatio       string `json:"PERatio"`
	PEGRatio      string `json:"PEGRatio"`
	PriceToBook   string `json:"PriceToBookRatio"`
	DividendYield string `json:"DividendYield"`
	EPS           string `json:"EPS"`
	Beta          string `json:"Beta"`
	Week52High    string `json:"52WeekHigh"`
	Week52Low     string `json:"52WeekLow"`
	AnalystTarget string `json:"AnalystTargetPrice"`
}

// parseField parses an Alpha Vantage numeric field, which uses "None"
// and "-" for missing values.
func parseField(field, name string) float64 {
	if field == "" || field == "None" || field == "-" {
		return 0
	}
	parsed, err := strconv.ParseFloat(field, 64)
	if err != nil {
		observability.Warn("failed to parse overview field", "field", name, "value", field, "error", err)
		return 0
	}
	return parsed
}

// GetFundamentals returns fundamental data for a symbol
func (s *AlphaVantageService) GetFundamentals(ctx context.Context, symbol string) (*models.Fundamentals, error) {
	metrics := observability.GetMetrics()
	metrics.RecordExternalAPIRequest(BreakerAlphaVantage, "overview")
	timer := metrics.NewTimer()
	defer timer.ObserveExternalAPI(BreakerAlphaVantage, "overview")

	var fundamentals *models.Fundamentals

	err := WithRetry(ctx, DefaultRetryConfig, func() error {
		params := url.Values{}
		params.Set("function", "OVERVIEW")
		params.Set("symbol", symbol)
		params.Set("apikey", s.apiKey)

		req, err := http.NewRequestWithContext(ctx, "GET", s.baseURL+"?"+params.Encode(), nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}

		resp, err := s.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("failed to fetch overview: %w", err)
		}
		defer resp.Body.Close()

		var overview OverviewResponse
		if err := json.NewDecoder(resp.Body).Decode(&overview); err != nil {
			return fmt.Errorf("failed to decode overview: %w", err)
		}

		if overview.Symbol == "" {
			return fmt.Errorf("empty overview for %s", symbol)
		}

		var marketCap int64
		if overview.MarketCap != "" && overview.MarketCap != "None" {
			marketCap, err = strconv.ParseInt(overview.MarketCap, 10, 64)
			if err != nil {
				observability.Warn("failed to parse market cap", "value", overview.MarketCap, "error", err)
			}
		}

		fundamentals = &models.Fundamentals{
			Symbol:        symbol,
			Sector:        overview.Sector,
			MarketCap:     marketCap,
			PERatio:       parseField(overview.PERatio, "pe_ratio"),
			PEGRatio:      parseField(overview.PEGRatio, "peg_ratio"),
			PBRatio:       parseField(overview.PriceToBook, "pb_ratio"),
			EPS:           parseField(overview.EPS, "eps"),
			DividendYield: parseField(overview.DividendYield, "dividend_yield"),
			Beta:          parseField(overview.Beta, "beta"),
			Week52High:    parseField(overview.Week52High, "week52_high"),
			Week52Low:     parseField(overview.Week52Low, "week52_low"),
			AnalystTarget: parseField(overview.AnalystTarget, "analyst_target"),
			UpdatedAt:     time.Now(),
		}

		return nil
	})

	if err != nil {
		metrics.RecordExternalAPIError(BreakerAlphaVantage, "overview", categorizeAPIError(err))
		return nil, err
	}

	return fundamentals, nil
}

// NewsResponse represents the news response from Alpha Vantage
type NewsResponse struct {
	Items string `json:"items"`
	Feed  []struct {
		Title            string  `json:"title"`
		URL              string  `json:"url"`
		Summary          string  `json:"summary"`
		Source           string  `json:"source"`
		TimePublished    string  `json:"time_published"`
		OverallSentiment string  `json:"overall_sentiment_label"`
		SentimentScore   float64 `json:"overall_sentiment_score"`
	} `json:"feed"`
}

// GetNews returns recent news with sentiment scores for a symbol
func (s *AlphaVantageService) GetNews(ctx context.Context, symbol string) ([]models.NewsArticle, error) {
	metrics := observability.GetMetrics()
	metrics.RecordExternalAPIRequest(BreakerAlphaVantage, "news")
	timer := metrics.NewTimer()
	defer timer.ObserveExternalAPI(BreakerAlphaVantage, "news")

	params := url.Values{}
	params.Set("function", "NEWS_SENTIMENT")
	params.Set("tickers", symbol)
	params.Set("limit", "10")
	params.Set("apikey", s.apiKey)

	req, err := http.NewRequestWithContext(ctx, "GET", s.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		metrics.RecordExternalAPIError(BreakerAlphaVantage, "news", categorizeAPIError(err))
		return nil, fmt.Errorf("failed to fetch news: %w", err)
	}
	defer resp.Body.Close()

	var newsResp NewsResponse
	if err := json.NewDecoder(resp.Body).Decode(&newsResp); err != nil {
		return nil, fmt.Errorf("failed to decode news: %w", err)
	}

	articles := make([]models.NewsArticle, 0, len(newsResp.Feed))
	for _, item := range newsResp.Feed {
		publishedAt, err := time.Parse("20060102T150405", item.TimePublished)
		if err != nil {
			observability.Warn("failed to parse news timestamp", "value", item.TimePublished, "error", err)
			publishedAt = time.Now()
		}

		articles = append(articles, models.NewsArticle{
			Title:       item.Title,
			Description: item.Summary,
			URL:         item.URL,
			Source:      item.Source,
			Sentiment:   item.SentimentScore,
			PublishedAt: publishedAt,
		})
	}

	return articles, nil
}

// QuoteResponse represents a quote from Alpha Vantage
type QuoteResponse struct {
	GlobalQuote struct {
		Symbol        string `json:"01. symbol"`
		Open          string `json:"02. open"`
		High          string `json:"03. high"`
		Low           string `json:"04. low"`
		Price         string `json:"05. price"`
		Volume        string `json:"06. volume"`
		LatestDay     string `json:"07. latest trading day"`
		PrevClose     string `json:"08. previous close"`
		Change        string `json:"09. change"`
		ChangePercent string `json:"10. change percent"`
	} `json:"Global Quote"`
}

// GetQuote returns the latest quote for a symbol
func (s *AlphaVantageService) GetQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	metrics := observability.GetMetrics()
	metrics.RecordExternalAPIRequest(BreakerAlphaVantage, "quote")
	timer := metrics.NewTimer()
	defer timer.ObserveExternalAPI(BreakerAlphaVantage, "quote")

	params := url.Values{}
	params.Set("function", "GLOBAL_QUOTE")
	params.Set("symbol", symbol)
	params.Set("apikey", s.apiKey)

	req, err := http.NewRequestWithContext(ctx, "GET", s.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		metrics.RecordExternalAPIError(BreakerAlphaVantage, "quote", categorizeAPIError(err))
		return nil, fmt.Errorf("failed to fetch quote: %w", err)
	}
	defer resp.Body.Close()

	var quoteResp QuoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&quoteResp); err != nil {
		return nil, fmt.Errorf("failed to decode quote: %w", err)
	}

	price, _ := decimal.NewFromString(quoteResp.GlobalQuote.Price)
	var volume int64
	if quoteResp.GlobalQuote.Volume != "" {
		volume, err = strconv.ParseInt(quoteResp.GlobalQuote.Volume, 10, 64)
		if err != nil {
			observability.Warn("failed to parse quote volume", "value", quoteResp.GlobalQuote.Volume, "error", err)
		}
	}

	return &models.Quote{
		Symbol:    symbol,
		Last:      price,
		Volume:    volume,
		Timestamp: time.Now(),
	}, nil
}

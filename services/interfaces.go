package services

import (
	"context"
	"time"

	"trade-council/models"
)

// Reasoner is the LLM surface every deliberation role runs against. A
// single configured provider backs all roles in a run.
type Reasoner interface {
	// Name identifies the provider for logging and metrics
	Name() string
	// Complete sends a system and user prompt and returns the raw text reply
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Embedder produces vector embeddings for memory retrieval and
// debate convergence checks.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// AlpacaServiceInterface defines the interface for market data and account operations
type AlpacaServiceInterface interface {
	GetDailyCandles(ctx context.Context, symbol string, days int) ([]models.Candle, error)
	GetQuote(ctx context.Context, symbol string) (*models.Quote, error)
	GetAccount(ctx context.Context) (*models.Account, error)
}

// YahooServiceInterface defines the keyless fallback for candle and quote data
type YahooServiceInterface interface {
	GetDailyCandles(ctx context.Context, symbol string, start, end time.Time) ([]models.Candle, error)
	GetQuote(ctx context.Context, symbol string) (*models.Quote, error)
}

// AlphaVantageServiceInterface defines the interface for fundamental data operations
type AlphaVantageServiceInterface interface {
	GetFundamentals(ctx context.Context, symbol string) (*models.Fundamentals, error)
	GetNews(ctx context.Context, symbol string) ([]models.NewsArticle, error)
	GetQuote(ctx context.Context, symbol string) (*models.Quote, error)
}

// FMPServiceInterface defines the interface for sector benchmark data
type FMPServiceInterface interface {
	GetSectorNorms(ctx context.Context, symbol string) (*models.SectorNorms, error)
}

// NewsAPIServiceInterface defines the interface for news data operations
type NewsAPIServiceInterface interface {
	GetNews(ctx context.Context, query string, limit int) ([]models.NewsArticle, error)
	GetHeadlines(ctx context.Context, query string, limit int) ([]models.NewsArticle, error)
}

// HeadlineScraperInterface defines the keyless headline fallback
type HeadlineScraperInterface interface {
	ScrapeHeadlines(ctx context.Context, query string, limit int) ([]models.NewsArticle, error)
}

// Compile-time interface verification
var _ Reasoner = (*OpenAIService)(nil)
var _ Reasoner = (*BedrockService)(nil)
var _ Reasoner = (*GeminiService)(nil)
var _ Embedder = (*EmbeddingsService)(nil)
var _ Embedder = (*BedrockService)(nil)
var _ AlpacaServiceInterface = (*AlpacaService)(nil)
var _ YahooServiceInterface = (*YahooService)(nil)
var _ AlphaVantageServiceInterface = (*AlphaVantageService)(nil)
var _ FMPServiceInterface = (*FMPService)(nil)
var _ NewsAPIServiceInterface = (*NewsAPIService)(nil)
var _ HeadlineScraperInterface = (*HeadlineScraper)(nil)

package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all application configuration
type Config struct {
	// Database configuration
	Database DatabaseConfig

	// Reasoner provider configurations
	Reasoner ReasonerConfig
	OpenAI   OpenAIConfig
	Bedrock  BedrockConfig
	Gemini   GeminiConfig

	// Embedding provider configuration
	Embeddings EmbeddingsConfig

	// Market data provider configurations
	Alpaca       AlpacaConfig
	AlphaVantage AlphaVantageConfig
	NewsAPI      NewsAPIConfig
	FMP          FMPConfig

	// Pipeline configuration
	Pipeline PipelineConfig

	// Gate scoring configuration
	Gates GatesConfig

	// Position sizing configuration
	Sizing SizingConfig

	// HTTP configuration
	HTTP HTTPConfig

	// Production toggles JSON logging
	Production bool
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	URL string
}

// ReasonerConfig selects which reasoning provider drives the pipeline.
// Empty means auto: first configured of openai, bedrock, gemini.
type ReasonerConfig struct {
	Provider string
}

// OpenAIConfig holds OpenAI API configuration
type OpenAIConfig struct {
	APIKey    string
	Model     string
	MaxTokens int
}

// BedrockConfig holds AWS Bedrock configuration
type BedrockConfig struct {
	Region       string
	ModelID      string
	EmbedModelID string
	Enabled      bool
}

// GeminiConfig holds Gemini configuration. The genai SDK reads its
// credentials from the environment; only presence and model are held here.
type GeminiConfig struct {
	APIKey string
	Model  string
}

// EmbeddingsConfig holds the OpenAI-compatible embeddings endpoint
// configuration. Bedrock Titan is used instead when Bedrock is the
// configured reasoner and no endpoint is set here.
type EmbeddingsConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

// AlpacaConfig holds Alpaca API configuration
type AlpacaConfig struct {
	APIKey    string
	APISecret string
	BaseURL   string
}

// AlphaVantageConfig holds Alpha Vantage API configuration
type AlphaVantageConfig struct {
	APIKey string
}

// NewsAPIConfig holds NewsAPI configuration
type NewsAPIConfig struct {
	APIKey string
}

// FMPConfig holds Financial Modeling Prep API configuration
type FMPConfig struct {
	APIKey string
}

// PipelineConfig holds the deliberation pipeline knobs.
type PipelineConfig struct {
	DebateRounds         int
	MemoryTopK           int
	ConvergenceThreshold float64
	RiskTolerance        string
	MaxPositionPct       float64
	CallTimeoutSeconds   int
	StageTimeoutSeconds  int
	BudgetSeconds        int
	MaxRetries           int
	LookbackDays         int
	ConcurrencyLimit     int
	SnapshotCacheTTLSec  int
}

// GatesConfig holds gate weights and decision thresholds.
type GatesConfig struct {
	WeightFundamental float64
	WeightTechnical   float64
	WeightRisk        float64
	WeightTiming      float64
	StrategyProfile   string  // default, conservative, aggressive, or custom
	BuyThreshold      float64 // composite score at or above which BUY is admissible
	SellThreshold     float64 // composite score at or below which SELL is admissible
	DrawdownCeiling   float64 // estimated max drawdown fraction that forces the risk gate to FAIL
	VWAPStretchPct    float64 // offset above VWAP (percent) considered extended
	ATRBandFactor     float64 // entry band half-width in ATR multiples
}

// SizingConfig holds position sizing configuration
type SizingConfig struct {
	CashReservePct float64
	MinShares      int64
	MaxShares      int64
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ListenAddr         string
	CORSAllowedOrigins string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Database: DatabaseConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		Reasoner: ReasonerConfig{
			Provider: os.Getenv("REASONER_PROVIDER"),
		},
		OpenAI: OpenAIConfig{
			APIKey:    os.Getenv("OPENAI_API_KEY"),
			Model:     getEnvString("OPENAI_MODEL", "gpt-4o"),
			MaxTokens: getEnvInt("OPENAI_MAX_TOKENS", 4096),
		},
		Bedrock: BedrockConfig{
			Region:       getEnvString("BEDROCK_REGION", "us-east-1"),
			ModelID:      getEnvString("BEDROCK_MODEL_ID", "anthropic.claude-3-5-sonnet-20241022-v2:0"),
			EmbedModelID: getEnvString("BEDROCK_EMBED_MODEL_ID", "amazon.titan-embed-text-v2:0"),
			Enabled:      getEnvBool("BEDROCK_ENABLED", false),
		},
		Gemini: GeminiConfig{
			APIKey: os.Getenv("GEMINI_API_KEY"),
			Model:  getEnvString("GEMINI_MODEL", "gemini-2.5-flash"),
		},
		Embeddings: EmbeddingsConfig{
			BaseURL: getEnvString("EMBEDDINGS_BASE_URL", "https://api.openai.com/v1"),
			APIKey:  getEnvString("EMBEDDINGS_API_KEY", os.Getenv("OPENAI_API_KEY")),
			Model:   getEnvString("EMBEDDINGS_MODEL", "text-embedding-3-small"),
		},
		Alpaca: AlpacaConfig{
			APIKey:    os.Getenv("ALPACA_API_KEY"),
			APISecret: os.Getenv("ALPACA_API_SECRET"),
			BaseURL:   getEnvString("ALPACA_BASE_URL", "https://paper-api.alpaca.markets"),
		},
		AlphaVantage: AlphaVantageConfig{
			APIKey: os.Getenv("ALPHA_VANTAGE_API_KEY"),
		},
		NewsAPI: NewsAPIConfig{
			APIKey: os.Getenv("NEWS_API_KEY"),
		},
		FMP: FMPConfig{
			APIKey: os.Getenv("FMP_API_KEY"),
		},
		Pipeline: PipelineConfig{
			DebateRounds:         getEnvInt("PIPELINE_DEBATE_ROUNDS", 2),
			MemoryTopK:           getEnvInt("PIPELINE_MEMORY_TOP_K", 3),
			ConvergenceThreshold: getEnvFloat("PIPELINE_CONVERGENCE_THRESHOLD", 0.92),
			RiskTolerance:        getEnvString("PIPELINE_RISK_TOLERANCE", "moderate"),
			MaxPositionPct:       getEnvFloatRange("PIPELINE_MAX_POSITION_PCT", 0.10, 0.01, 1.0),
			CallTimeoutSeconds:   getEnvInt("PIPELINE_CALL_TIMEOUT_SECONDS", 60),
			StageTimeoutSeconds:  getEnvInt("PIPELINE_STAGE_TIMEOUT_SECONDS", 120),
			BudgetSeconds:        getEnvInt("PIPELINE_BUDGET_SECONDS", 300),
			MaxRetries:           getEnvInt("PIPELINE_MAX_RETRIES", 1),
			LookbackDays:         getEnvInt("PIPELINE_LOOKBACK_DAYS", 260),
			ConcurrencyLimit:     getEnvInt("PIPELINE_CONCURRENCY_LIMIT", 3),
			SnapshotCacheTTLSec:  getEnvInt("PIPELINE_SNAPSHOT_CACHE_TTL_SECONDS", 900),
		},
		Gates: GatesConfig{
			WeightFundamental: getEnvFloat("GATE_WEIGHT_FUNDAMENTAL", 0.3),
			WeightTechnical:   getEnvFloat("GATE_WEIGHT_TECHNICAL", 0.3),
			WeightRisk:        getEnvFloat("GATE_WEIGHT_RISK", 0.25),
			WeightTiming:      getEnvFloat("GATE_WEIGHT_TIMING", 0.15),
			StrategyProfile:   getEnvString("GATE_STRATEGY_PROFILE", "default"),
			BuyThreshold:      getEnvFloatUnbounded("GATE_BUY_THRESHOLD", 60),
			SellThreshold:     getEnvFloatUnbounded("GATE_SELL_THRESHOLD", 35),
			DrawdownCeiling:   getEnvFloatRange("GATE_DRAWDOWN_CEILING", 0.25, 0.01, 1.0),
			VWAPStretchPct:    getEnvFloatUnbounded("GATE_VWAP_STRETCH_PCT", 3.0),
			ATRBandFactor:     getEnvFloatUnbounded("GATE_ATR_BAND_FACTOR", 0.5),
		},
		Sizing: SizingConfig{
			CashReservePct: getEnvFloatRange("SIZING_CASH_RESERVE_PCT", 0.05, 0.0, 0.9),
			MinShares:      int64(getEnvInt("SIZING_MIN_SHARES", 1)),
			MaxShares:      int64(getEnvInt("SIZING_MAX_SHARES", 0)),
		},
		HTTP: HTTPConfig{
			ListenAddr:         getEnvString("HTTP_LISTEN_ADDR", ":8080"),
			CORSAllowedOrigins: getEnvString("CORS_ALLOWED_ORIGINS", "*"),
		},
		Production: getEnvBool("PRODUCTION", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	weightSum := c.Gates.WeightFundamental + c.Gates.WeightTechnical + c.Gates.WeightRisk + c.Gates.WeightTiming
	if weightSum < 0.99 || weightSum > 1.01 {
		return fmt.Errorf("gate weights must sum to 1.0, got %.2f (fundamental=%.2f, technical=%.2f, risk=%.2f, timing=%.2f)",
			weightSum, c.Gates.WeightFundamental, c.Gates.WeightTechnical, c.Gates.WeightRisk, c.Gates.WeightTiming)
	}

	for name, w := range map[string]float64{
		"GATE_WEIGHT_FUNDAMENTAL": c.Gates.WeightFundamental,
		"GATE_WEIGHT_TECHNICAL":   c.Gates.WeightTechnical,
		"GATE_WEIGHT_RISK":        c.Gates.WeightRisk,
		"GATE_WEIGHT_TIMING":      c.Gates.WeightTiming,
	} {
		if w < 0 || w > 1 {
			return fmt.Errorf("%s must be between 0 and 1, got %.2f", name, w)
		}
	}

	if c.Pipeline.DebateRounds < 1 || c.Pipeline.DebateRounds > 5 {
		return fmt.Errorf("PIPELINE_DEBATE_ROUNDS must be between 1 and 5, got %d", c.Pipeline.DebateRounds)
	}
	if c.Pipeline.CallTimeoutSeconds <= 0 {
		return fmt.Errorf("PIPELINE_CALL_TIMEOUT_SECONDS must be positive, got %d", c.Pipeline.CallTimeoutSeconds)
	}
	if c.Pipeline.StageTimeoutSeconds <= 0 {
		return fmt.Errorf("PIPELINE_STAGE_TIMEOUT_SECONDS must be positive, got %d", c.Pipeline.StageTimeoutSeconds)
	}
	if c.Pipeline.BudgetSeconds <= 0 {
		return fmt.Errorf("PIPELINE_BUDGET_SECONDS must be positive, got %d", c.Pipeline.BudgetSeconds)
	}
	if c.Pipeline.ConcurrencyLimit <= 0 {
		return fmt.Errorf("PIPELINE_CONCURRENCY_LIMIT must be positive, got %d", c.Pipeline.ConcurrencyLimit)
	}
	if c.Pipeline.LookbackDays <= 0 {
		return fmt.Errorf("PIPELINE_LOOKBACK_DAYS must be positive, got %d", c.Pipeline.LookbackDays)
	}

	switch c.Pipeline.RiskTolerance {
	case "conservative", "moderate", "aggressive":
	default:
		return fmt.Errorf("PIPELINE_RISK_TOLERANCE must be conservative, moderate, or aggressive, got %q", c.Pipeline.RiskTolerance)
	}

	if c.Gates.BuyThreshold <= c.Gates.SellThreshold {
		return fmt.Errorf("GATE_BUY_THRESHOLD (%.1f) must exceed GATE_SELL_THRESHOLD (%.1f)", c.Gates.BuyThreshold, c.Gates.SellThreshold)
	}

	return nil
}

// HasDatabase returns true if database configuration is available
func (c *Config) HasDatabase() bool {
	return c.Database.URL != ""
}

// HasOpenAI returns true if OpenAI configuration is available
func (c *Config) HasOpenAI() bool {
	return c.OpenAI.APIKey != ""
}

// HasBedrock returns true if Bedrock is enabled
func (c *Config) HasBedrock() bool {
	return c.Bedrock.Enabled
}

// HasGemini returns true if Gemini configuration is available
func (c *Config) HasGemini() bool {
	return c.Gemini.APIKey != ""
}

// HasEmbeddings returns true if an embeddings endpoint is configured
func (c *Config) HasEmbeddings() bool {
	return c.Embeddings.APIKey != "" || c.HasBedrock()
}

// HasAlpaca returns true if Alpaca configuration is available
func (c *Config) HasAlpaca() bool {
	return c.Alpaca.APIKey != "" && c.Alpaca.APISecret != ""
}

// HasAlphaVantage returns true if Alpha Vantage configuration is available
func (c *Config) HasAlphaVantage() bool {
	return c.AlphaVantage.APIKey != ""
}

// HasNewsAPI returns true if NewsAPI configuration is available
func (c *Config) HasNewsAPI() bool {
	return c.NewsAPI.APIKey != ""
}

// HasFMP returns true if Financial Modeling Prep configuration is available
func (c *Config) HasFMP() bool {
	return c.FMP.APIKey != ""
}

func getEnvString(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil && parsed >= 0 && parsed <= 1 {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloatRange(key string, defaultValue, minVal, maxVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil && parsed >= minVal && parsed <= maxVal {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloatUnbounded(key string, defaultValue float64) float64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// NewTestConfig creates a Config with default values for testing
func NewTestConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			URL: "",
		},
		OpenAI: OpenAIConfig{
			APIKey:    "",
			Model:     "gpt-4o",
			MaxTokens: 4096,
		},
		Bedrock: BedrockConfig{
			Region:       "us-east-1",
			ModelID:      "anthropic.claude-3-5-sonnet-20241022-v2:0",
			EmbedModelID: "amazon.titan-embed-text-v2:0",
			Enabled:      false,
		},
		Gemini: GeminiConfig{
			APIKey: "",
			Model:  "gemini-2.5-flash",
		},
		Embeddings: EmbeddingsConfig{
			BaseURL: "https://api.openai.com/v1",
			APIKey:  "",
			Model:   "text-embedding-3-small",
		},
		Alpaca: AlpacaConfig{
			APIKey:    "",
			APISecret: "",
			BaseURL:   "https://paper-api.alpaca.markets",
		},
		AlphaVantage: AlphaVantageConfig{
			APIKey: "",
		},
		NewsAPI: NewsAPIConfig{
			APIKey: "",
		},
		FMP: FMPConfig{
			APIKey: "",
		},
		Pipeline: PipelineConfig{
			DebateRounds:         2,
			MemoryTopK:           3,
			ConvergenceThreshold: 0.92,
			RiskTolerance:        "moderate",
			MaxPositionPct:       0.10,
			CallTimeoutSeconds:   60,
			StageTimeoutSeconds:  120,
			BudgetSeconds:        300,
			MaxRetries:           1,
			LookbackDays:         260,
			ConcurrencyLimit:     3,
			SnapshotCacheTTLSec:  900,
		},
		Gates: GatesConfig{
			WeightFundamental: 0.3,
			WeightTechnical:   0.3,
			WeightRisk:        0.25,
			WeightTiming:      0.15,
			StrategyProfile:   "default",
			BuyThreshold:      60,
			SellThreshold:     35,
			DrawdownCeiling:   0.25,
			VWAPStretchPct:    3.0,
			ATRBandFactor:     0.5,
		},
		Sizing: SizingConfig{
			CashReservePct: 0.05,
			MinShares:      1,
			MaxShares:      0,
		},
		HTTP: HTTPConfig{
			ListenAddr:         ":8080",
			CORSAllowedOrigins: "*",
		},
	}
}

package config

import (
	"os"
	"testing"
)

// saveEnv saves current environment variables for restoration
func saveEnv(t *testing.T, keys []string) map[string]string {
	t.Helper()
	saved := make(map[string]string)
	for _, key := range keys {
		saved[key] = os.Getenv(key)
	}
	return saved
}

// restoreEnv restores previously saved environment variables
func restoreEnv(t *testing.T, saved map[string]string) {
	t.Helper()
	for key, val := range saved {
		if val == "" {
			os.Unsetenv(key)
		} else {
			os.Setenv(key, val)
		}
	}
}

// clearEnv clears environment variables
func clearEnv(t *testing.T, keys []string) {
	t.Helper()
	for _, key := range keys {
		os.Unsetenv(key)
	}
}

var allEnvKeys = []string{
	"DATABASE_URL",
	"REASONER_PROVIDER",
	"OPENAI_API_KEY",
	"OPENAI_MODEL",
	"OPENAI_MAX_TOKENS",
	"BEDROCK_REGION",
	"BEDROCK_MODEL_ID",
	"BEDROCK_EMBED_MODEL_ID",
	"BEDROCK_ENABLED",
	"GEMINI_API_KEY",
	"GEMINI_MODEL",
	"EMBEDDINGS_BASE_URL",
	"EMBEDDINGS_API_KEY",
	"EMBEDDINGS_MODEL",
	"ALPACA_API_KEY",
	"ALPACA_API_SECRET",
	"ALPACA_BASE_URL",
	"ALPHA_VANTAGE_API_KEY",
	"NEWS_API_KEY",
	"FMP_API_KEY",
	"PIPELINE_DEBATE_ROUNDS",
	"PIPELINE_MEMORY_TOP_K",
	"PIPELINE_CONVERGENCE_THRESHOLD",
	"PIPELINE_RISK_TOLERANCE",
	"PIPELINE_MAX_POSITION_PCT",
	"PIPELINE_CALL_TIMEOUT_SECONDS",
	"PIPELINE_STAGE_TIMEOUT_SECONDS",
	"PIPELINE_BUDGET_SECONDS",
	"PIPELINE_MAX_RETRIES",
	"PIPELINE_LOOKBACK_DAYS",
	"PIPELINE_CONCURRENCY_LIMIT",
	"PIPELINE_SNAPSHOT_CACHE_TTL_SECONDS",
	"GATE_WEIGHT_FUNDAMENTAL",
	"GATE_WEIGHT_TECHNICAL",
	"GATE_WEIGHT_RISK",
	"GATE_WEIGHT_TIMING",
	"GATE_STRATEGY_PROFILE",
	"GATE_BUY_THRESHOLD",
	"GATE_SELL_THRESHOLD",
	"GATE_DRAWDOWN_CEILING",
	"GATE_VWAP_STRETCH_PCT",
	"GATE_ATR_BAND_FACTOR",
	"SIZING_CASH_RESERVE_PCT",
	"SIZING_MIN_SHARES",
	"SIZING_MAX_SHARES",
	"HTTP_LISTEN_ADDR",
	"CORS_ALLOWED_ORIGINS",
	"PRODUCTION",
}

func TestLoad_Defaults(t *testing.T) {
	saved := saveEnv(t, allEnvKeys)
	defer restoreEnv(t, saved)
	clearEnv(t, allEnvKeys)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() with defaults failed: %v", err)
	}

	// Check defaults
	if cfg.OpenAI.Model != "gpt-4o" {
		t.Errorf("expected OpenAI.Model='gpt-4o', got %s", cfg.OpenAI.Model)
	}
	if cfg.OpenAI.MaxTokens != 4096 {
		t.Errorf("expected OpenAI.MaxTokens=4096, got %d", cfg.OpenAI.MaxTokens)
	}
	if cfg.Bedrock.Region != "us-east-1" {
		t.Errorf("expected Bedrock.Region='us-east-1', got %s", cfg.Bedrock.Region)
	}
	if cfg.Alpaca.BaseURL != "https://paper-api.alpaca.markets" {
		t.Errorf("expected Alpaca.BaseURL='https://paper-api.alpaca.markets', got %s", cfg.Alpaca.BaseURL)
	}
	if cfg.Pipeline.DebateRounds != 2 {
		t.Errorf("expected DebateRounds=2, got %d", cfg.Pipeline.DebateRounds)
	}
	if cfg.Pipeline.MemoryTopK != 3 {
		t.Errorf("expected MemoryTopK=3, got %d", cfg.Pipeline.MemoryTopK)
	}
	if cfg.Pipeline.ConvergenceThreshold != 0.92 {
		t.Errorf("expected ConvergenceThreshold=0.92, got %f", cfg.Pipeline.ConvergenceThreshold)
	}
	if cfg.Pipeline.RiskTolerance != "moderate" {
		t.Errorf("expected RiskTolerance='moderate', got %s", cfg.Pipeline.RiskTolerance)
	}
	if cfg.Pipeline.MaxPositionPct != 0.10 {
		t.Errorf("expected MaxPositionPct=0.10, got %f", cfg.Pipeline.MaxPositionPct)
	}
	if cfg.Pipeline.BudgetSeconds != 300 {
		t.Errorf("expected BudgetSeconds=300, got %d", cfg.Pipeline.BudgetSeconds)
	}
	if cfg.Gates.WeightFundamental != 0.3 {
		t.Errorf("expected WeightFundamental=0.3, got %f", cfg.Gates.WeightFundamental)
	}
	if cfg.Gates.WeightTiming != 0.15 {
		t.Errorf("expected WeightTiming=0.15, got %f", cfg.Gates.WeightTiming)
	}
	if cfg.Gates.BuyThreshold != 60 {
		t.Errorf("expected BuyThreshold=60, got %f", cfg.Gates.BuyThreshold)
	}
	if cfg.Gates.SellThreshold != 35 {
		t.Errorf("expected SellThreshold=35, got %f", cfg.Gates.SellThreshold)
	}
	if cfg.Gates.VWAPStretchPct != 3.0 {
		t.Errorf("expected VWAPStretchPct=3.0, got %f", cfg.Gates.VWAPStretchPct)
	}
	if cfg.Sizing.CashReservePct != 0.05 {
		t.Errorf("expected CashReservePct=0.05, got %f", cfg.Sizing.CashReservePct)
	}
	if cfg.HTTP.ListenAddr != ":8080" {
		t.Errorf("expected ListenAddr=':8080', got %s", cfg.HTTP.ListenAddr)
	}
	if cfg.HTTP.CORSAllowedOrigins != "*" {
		t.Errorf("expected CORSAllowedOrigins='*', got %s", cfg.HTTP.CORSAllowedOrigins)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	saved := saveEnv(t, allEnvKeys)
	defer restoreEnv(t, saved)
	clearEnv(t, allEnvKeys)

	os.Setenv("DATABASE_URL", "postgres://localhost/test")
	os.Setenv("OPENAI_API_KEY", "sk-test")
	os.Setenv("OPENAI_MODEL", "gpt-4o-mini")
	os.Setenv("GEMINI_API_KEY", "gm-key")
	os.Setenv("ALPACA_API_KEY", "test-key")
	os.Setenv("ALPACA_API_SECRET", "test-secret")
	os.Setenv("ALPACA_BASE_URL", "https://api.alpaca.markets")
	os.Setenv("PIPELINE_DEBATE_ROUNDS", "3")
	os.Setenv("PIPELINE_RISK_TOLERANCE", "aggressive")
	os.Setenv("PIPELINE_MAX_POSITION_PCT", "0.25")
	os.Setenv("GATE_WEIGHT_FUNDAMENTAL", "0.25")
	os.Setenv("GATE_WEIGHT_TECHNICAL", "0.25")
	os.Setenv("GATE_WEIGHT_RISK", "0.25")
	os.Setenv("GATE_WEIGHT_TIMING", "0.25")
	os.Setenv("GATE_BUY_THRESHOLD", "65")
	os.Setenv("GATE_VWAP_STRETCH_PCT", "2.5")
	os.Setenv("HTTP_LISTEN_ADDR", ":9090")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() with custom values failed: %v", err)
	}

	if cfg.Database.URL != "postgres://localhost/test" {
		t.Errorf("expected Database.URL='postgres://localhost/test', got %s", cfg.Database.URL)
	}
	if cfg.OpenAI.APIKey != "sk-test" {
		t.Errorf("expected OpenAI.APIKey='sk-test', got %s", cfg.OpenAI.APIKey)
	}
	if cfg.OpenAI.Model != "gpt-4o-mini" {
		t.Errorf("expected OpenAI.Model='gpt-4o-mini', got %s", cfg.OpenAI.Model)
	}
	// EMBEDDINGS_API_KEY defaults to the OpenAI key when unset
	if cfg.Embeddings.APIKey != "sk-test" {
		t.Errorf("expected Embeddings.APIKey='sk-test', got %s", cfg.Embeddings.APIKey)
	}
	if cfg.Alpaca.BaseURL != "https://api.alpaca.markets" {
		t.Errorf("expected Alpaca.BaseURL='https://api.alpaca.markets', got %s", cfg.Alpaca.BaseURL)
	}
	if cfg.Pipeline.DebateRounds != 3 {
		t.Errorf("expected DebateRounds=3, got %d", cfg.Pipeline.DebateRounds)
	}
	if cfg.Pipeline.RiskTolerance != "aggressive" {
		t.Errorf("expected RiskTolerance='aggressive', got %s", cfg.Pipeline.RiskTolerance)
	}
	if cfg.Pipeline.MaxPositionPct != 0.25 {
		t.Errorf("expected MaxPositionPct=0.25, got %f", cfg.Pipeline.MaxPositionPct)
	}
	if cfg.Gates.WeightFundamental != 0.25 {
		t.Errorf("expected WeightFundamental=0.25, got %f", cfg.Gates.WeightFundamental)
	}
	if cfg.Gates.BuyThreshold != 65 {
		t.Errorf("expected BuyThreshold=65, got %f", cfg.Gates.BuyThreshold)
	}
	if cfg.Gates.VWAPStretchPct != 2.5 {
		t.Errorf("expected VWAPStretchPct=2.5, got %f", cfg.Gates.VWAPStretchPct)
	}
	if cfg.HTTP.ListenAddr != ":9090" {
		t.Errorf("expected ListenAddr=':9090', got %s", cfg.HTTP.ListenAddr)
	}
}

func TestValidate_WeightsSumTo1(t *testing.T) {
	saved := saveEnv(t, allEnvKeys)
	defer restoreEnv(t, saved)
	clearEnv(t, allEnvKeys)

	// Weights that don't sum to 1.0
	os.Setenv("GATE_WEIGHT_FUNDAMENTAL", "0.4")
	os.Setenv("GATE_WEIGHT_TECHNICAL", "0.4")
	os.Setenv("GATE_WEIGHT_RISK", "0.25")
	os.Setenv("GATE_WEIGHT_TIMING", "0.15") // Total = 1.2

	_, err := Load()
	if err == nil {
		t.Error("expected error for weights not summing to 1.0")
	}
}

func TestValidate_DebateRounds(t *testing.T) {
	cfg := NewTestConfig()

	cfg.Pipeline.DebateRounds = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for zero debate rounds")
	}

	cfg.Pipeline.DebateRounds = 6
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for debate rounds above 5")
	}

	cfg.Pipeline.DebateRounds = 5
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error for 5 rounds: %v", err)
	}
}

func TestValidate_RiskTolerance(t *testing.T) {
	cfg := NewTestConfig()

	cfg.Pipeline.RiskTolerance = "reckless"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unknown risk tolerance")
	}

	for _, tol := range []string{"conservative", "moderate", "aggressive"} {
		cfg.Pipeline.RiskTolerance = tol
		if err := cfg.Validate(); err != nil {
			t.Errorf("unexpected error for tolerance %q: %v", tol, err)
		}
	}
}

func TestValidate_Thresholds(t *testing.T) {
	cfg := NewTestConfig()

	cfg.Gates.BuyThreshold = 35
	cfg.Gates.SellThreshold = 60
	if err := cfg.Validate(); err == nil {
		t.Error("expected error when buy threshold does not exceed sell threshold")
	}
}

func TestHasDatabase(t *testing.T) {
	cfg := &Config{
		Database: DatabaseConfig{URL: ""},
	}
	if cfg.HasDatabase() {
		t.Error("expected HasDatabase() to return false for empty URL")
	}

	cfg.Database.URL = "postgres://localhost/test"
	if !cfg.HasDatabase() {
		t.Error("expected HasDatabase() to return true for non-empty URL")
	}
}

func TestHasOpenAI(t *testing.T) {
	cfg := &Config{
		OpenAI: OpenAIConfig{APIKey: ""},
	}
	if cfg.HasOpenAI() {
		t.Error("expected HasOpenAI() to return false for empty key")
	}

	cfg.OpenAI.APIKey = "sk-test"
	if !cfg.HasOpenAI() {
		t.Error("expected HasOpenAI() to return true for non-empty key")
	}
}

func TestHasGemini(t *testing.T) {
	cfg := &Config{
		Gemini: GeminiConfig{APIKey: ""},
	}
	if cfg.HasGemini() {
		t.Error("expected HasGemini() to return false for empty key")
	}

	cfg.Gemini.APIKey = "gm-key"
	if !cfg.HasGemini() {
		t.Error("expected HasGemini() to return true for non-empty key")
	}
}

func TestHasEmbeddings(t *testing.T) {
	cfg := &Config{}
	if cfg.HasEmbeddings() {
		t.Error("expected HasEmbeddings() to return false for empty config")
	}

	cfg.Embeddings.APIKey = "sk-test"
	if !cfg.HasEmbeddings() {
		t.Error("expected HasEmbeddings() to return true with endpoint key")
	}

	cfg.Embeddings.APIKey = ""
	cfg.Bedrock.Enabled = true
	if !cfg.HasEmbeddings() {
		t.Error("expected HasEmbeddings() to return true with Bedrock enabled")
	}
}

func TestHasAlpaca(t *testing.T) {
	cfg := &Config{
		Alpaca: AlpacaConfig{APIKey: "", APISecret: ""},
	}
	if cfg.HasAlpaca() {
		t.Error("expected HasAlpaca() to return false for empty config")
	}

	cfg.Alpaca.APIKey = "key"
	if cfg.HasAlpaca() {
		t.Error("expected HasAlpaca() to return false without secret")
	}

	cfg.Alpaca.APISecret = "secret"
	if !cfg.HasAlpaca() {
		t.Error("expected HasAlpaca() to return true for complete config")
	}
}

func TestGetEnvInt(t *testing.T) {
	key := "TEST_GET_ENV_INT"
	defer os.Unsetenv(key)

	// Empty returns default
	os.Unsetenv(key)
	if got := getEnvInt(key, 42); got != 42 {
		t.Errorf("expected 42, got %d", got)
	}

	// Valid integer
	os.Setenv(key, "100")
	if got := getEnvInt(key, 42); got != 100 {
		t.Errorf("expected 100, got %d", got)
	}

	// Invalid integer returns default
	os.Setenv(key, "invalid")
	if got := getEnvInt(key, 42); got != 42 {
		t.Errorf("expected 42 for invalid value, got %d", got)
	}

	// Negative returns default
	os.Setenv(key, "-5")
	if got := getEnvInt(key, 42); got != 42 {
		t.Errorf("expected 42 for negative value, got %d", got)
	}
}

func TestGetEnvFloatRange(t *testing.T) {
	key := "TEST_GET_ENV_FLOAT_RANGE"
	defer os.Unsetenv(key)

	// Empty returns default
	os.Unsetenv(key)
	if got := getEnvFloatRange(key, 0.10, 0.01, 1.0); got != 0.10 {
		t.Errorf("expected 0.10, got %f", got)
	}

	// In range
	os.Setenv(key, "0.5")
	if got := getEnvFloatRange(key, 0.10, 0.01, 1.0); got != 0.5 {
		t.Errorf("expected 0.5, got %f", got)
	}

	// Out of range returns default
	os.Setenv(key, "1.5")
	if got := getEnvFloatRange(key, 0.10, 0.01, 1.0); got != 0.10 {
		t.Errorf("expected 0.10 for out-of-range value, got %f", got)
	}
}

func TestGetEnvBool(t *testing.T) {
	key := "TEST_GET_ENV_BOOL"
	defer os.Unsetenv(key)

	os.Unsetenv(key)
	if got := getEnvBool(key, false); got {
		t.Error("expected false default")
	}

	os.Setenv(key, "true")
	if got := getEnvBool(key, false); !got {
		t.Error("expected true")
	}

	os.Setenv(key, "not-a-bool")
	if got := getEnvBool(key, true); !got {
		t.Error("expected default true for invalid value")
	}
}

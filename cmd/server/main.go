// Package main runs the trade council as an HTTP service: analyst fan-out,
// debate, risk review, gate synthesis, and sizing behind a small JSON API.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"trade-council/config"
	"trade-council/internal/api"
	"trade-council/internal/app"
	"trade-council/marketdata"
	"trade-council/memory"
	"trade-council/observability"
	"trade-council/pipeline"
	"trade-council/repository"
	"trade-council/services"

	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	observability.InitLogger(cfg.Production)
	observability.InitMetrics()

	ctx := context.Background()

	// Database (optional: the service degrades to in-memory operation)
	var store app.StoreInterface
	var snapshotCache marketdata.SnapshotCache
	var runStore pipeline.Store
	var memoryStore memory.Store
	if cfg.HasDatabase() {
		repo, err := repository.NewRepository(ctx, cfg.Database.URL)
		if err != nil {
			observability.Warn("failed to connect to database, running without persistence", "error", err)
		} else {
			store = repo
			snapshotCache = repo
			runStore = repo
			memoryStore = repo
		}
	} else {
		observability.Warn("DATABASE_URL not set, running without persistence")
	}

	// Market data providers (each optional; the snapshot builder falls
	// through to whichever are configured)
	builderOpts := marketdata.BuilderOptions{
		Cache:        snapshotCache,
		CacheTTL:     time.Duration(cfg.Pipeline.SnapshotCacheTTLSec) * time.Second,
		LookbackDays: cfg.Pipeline.LookbackDays,
		Yahoo:        services.NewYahooService(),
		Headlines:    services.NewHeadlineScraper(),
	}

	var account pipeline.AccountProvider
	if cfg.HasAlpaca() {
		alpaca := services.NewAlpacaService(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.BaseURL)
		builderOpts.Alpaca = alpaca
		account = alpaca
	} else {
		observability.Warn("Alpaca credentials not set, sizing will assume a flat account")
	}
	if cfg.HasAlphaVantage() {
		builderOpts.AlphaVantage = services.NewAlphaVantageService(cfg.AlphaVantage.APIKey)
	}
	if cfg.HasFMP() {
		builderOpts.FMP = services.NewFMPService(cfg.FMP.APIKey)
	}
	if cfg.HasNewsAPI() {
		builderOpts.NewsAPI = services.NewNewsAPIService(cfg.NewsAPI.APIKey)
	}

	builder := marketdata.NewBuilder(builderOpts)

	// Reasoning and embedding providers
	reasoner := buildReasoner(ctx, cfg)
	embedder := buildEmbedder(cfg, reasoner)

	// Memory index (loads persisted records during Startup)
	index := memory.NewIndex(memoryStore)

	// Deliberation pipeline
	var orchestrator app.OrchestratorInterface
	if reasoner != nil {
		orchestrator = pipeline.New(pipeline.Options{
			Reasoner:  reasoner,
			Embedder:  embedder,
			Snapshots: builder,
			Account:   account,
			Store:     runStore,
			Memory:    index,
			Pipeline:  cfg.Pipeline,
			Gates:     cfg.Gates,
			Sizing:    cfg.Sizing,
		})
	} else {
		observability.Warn("no reasoning provider configured, analysis runs disabled")
	}

	application := app.New(cfg, store, orchestrator, index, builder)
	application.Startup(ctx)

	handler := api.NewHandler(application, cfg)
	router := api.NewRouter(handler, cfg)

	// The run endpoint is synchronous, so the write timeout has to outlive
	// the whole pipeline budget.
	server := &http.Server{
		Addr:         cfg.HTTP.ListenAddr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: time.Duration(cfg.Pipeline.BudgetSeconds+60) * time.Second,
	}

	go func() {
		observability.Info("trade council listening", "addr", cfg.HTTP.ListenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			observability.Fatal("server error", "error", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	observability.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		observability.Error("server forced to shutdown", "error", err)
	}

	application.Shutdown(shutdownCtx)
	observability.Info("server stopped")
}

// buildReasoner picks the completion provider. An explicit
// REASONER_PROVIDER wins; otherwise the first configured of OpenAI,
// Bedrock, Gemini is used. Returns nil when nothing is configured.
func buildReasoner(ctx context.Context, cfg *config.Config) services.Reasoner {
	provider := cfg.Reasoner.Provider
	if provider == "" {
		switch {
		case cfg.HasOpenAI():
			provider = "openai"
		case cfg.HasBedrock():
			provider = "bedrock"
		case cfg.HasGemini():
			provider = "gemini"
		default:
			return nil
		}
	}

	switch provider {
	case "openai":
		svc, err := services.NewOpenAIService(cfg)
		if err != nil {
			observability.Warn("failed to initialize OpenAI service", "error", err)
			return nil
		}
		return svc
	case "bedrock":
		svc, err := services.NewBedrockService(ctx, cfg.Bedrock.Region, cfg.Bedrock.ModelID, cfg.Bedrock.EmbedModelID, 0)
		if err != nil {
			observability.Warn("failed to initialize Bedrock service", "error", err)
			return nil
		}
		return svc
	case "gemini":
		svc, err := services.NewGeminiService(ctx, cfg.Gemini.Model)
		if err != nil {
			observability.Warn("failed to initialize Gemini service", "error", err)
			return nil
		}
		return svc
	default:
		observability.Warn("unknown REASONER_PROVIDER", "provider", provider)
		return nil
	}
}

// buildEmbedder prefers the dedicated embeddings endpoint and falls back
// to the Bedrock client when that is what drives reasoning anyway.
func buildEmbedder(cfg *config.Config, reasoner services.Reasoner) services.Embedder {
	if cfg.Embeddings.APIKey != "" {
		return services.NewEmbeddingsService(cfg.Embeddings.BaseURL, cfg.Embeddings.APIKey, cfg.Embeddings.Model)
	}
	if bedrock, ok := reasoner.(*services.BedrockService); ok {
		return bedrock
	}
	observability.Warn("no embeddings provider configured, memory retrieval and convergence checks disabled")
	return nil
}

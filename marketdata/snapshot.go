package marketdata

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"trade-council/models"
	"trade-council/observability"
	"trade-council/services"
)

const newsLimit = 10

// Builder assembles the immutable per-run market view. Candle and quote
// providers fall back in order; enrichment providers (fundamentals,
// sector norms, news) are optional and their failures only clear the
// matching section flag.
type Builder struct {
	alpaca       services.AlpacaServiceInterface
	yahoo        services.YahooServiceInterface
	alphaVantage services.AlphaVantageServiceInterface
	fmp          services.FMPServiceInterface
	newsAPI      services.NewsAPIServiceInterface
	headlines    services.HeadlineScraperInterface

	cache    SnapshotCache
	cacheTTL time.Duration

	lookbackDays int
}

// BuilderOptions carries the provider set and cache wiring for a Builder.
// Nil providers are skipped in the fallback chains.
type BuilderOptions struct {
	Alpaca       services.AlpacaServiceInterface
	Yahoo        services.YahooServiceInterface
	AlphaVantage services.AlphaVantageServiceInterface
	FMP          services.FMPServiceInterface
	NewsAPI      services.NewsAPIServiceInterface
	Headlines    services.HeadlineScraperInterface
	Cache        SnapshotCache
	CacheTTL     time.Duration
	LookbackDays int
}

// NewBuilder creates a snapshot Builder.
func NewBuilder(opts BuilderOptions) *Builder {
	if opts.LookbackDays <= 0 {
		opts.LookbackDays = 260
	}

	return &Builder{
		alpaca:       opts.Alpaca,
		yahoo:        opts.Yahoo,
		alphaVantage: opts.AlphaVantage,
		fmp:          opts.FMP,
		newsAPI:      opts.NewsAPI,
		headlines:    opts.Headlines,
		cache:        opts.Cache,
		cacheTTL:     opts.CacheTTL,
		lookbackDays: opts.LookbackDays,
	}
}

// Build fetches market data for a symbol and fuses it into an
// IndicatorSnapshot. Missing upstream sections clear the corresponding
// flags instead of failing the build; only context cancellation is an
// error.
func (b *Builder) Build(ctx context.Context, symbol string) (*models.IndicatorSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	if b.cache != nil && b.cacheTTL > 0 {
		cached, err := b.cache.GetSnapshot(ctx, symbol, now.Add(-b.cacheTTL))
		if err != nil {
			observability.Warn("snapshot cache read failed", "symbol", symbol, "error", err)
		} else if cached != nil {
			observability.Debug("snapshot cache hit", "symbol", symbol, "as_of", cached.AsOf)
			return cached, nil
		}
	}

	snapshot := &models.IndicatorSnapshot{
		Symbol: symbol,
		AsOf:   now,
	}

	candles, candleSource := b.fetchCandles(ctx, symbol)
	if candleSource != "" {
		snapshot.Sources = append(snapshot.Sources, candleSource)
	}

	quote, quoteSource := b.fetchQuote(ctx, symbol)
	if quoteSource != "" && quoteSource != candleSource {
		snapshot.Sources = append(snapshot.Sources, quoteSource)
	}

	b.applyPrice(snapshot, candles, quote)
	b.applyTechnicals(snapshot, candles)
	b.applyPivots(snapshot, candles, now)

	if err := b.enrich(ctx, snapshot); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if b.cache != nil && b.cacheTTL > 0 {
		if err := b.cache.PutSnapshot(ctx, snapshot); err != nil {
			observability.Warn("snapshot cache write failed", "symbol", symbol, "error", err)
		}
	}

	observability.Info("snapshot built",
		"symbol", symbol,
		"candles", len(candles),
		"has_technicals", snapshot.HasTechnicals,
		"has_fundamentals", snapshot.HasFundamentals,
		"has_pivots", snapshot.HasPivots,
		"sources", snapshot.Sources)

	return snapshot, nil
}

// History returns daily candles dated within [start, end], oldest first.
// The provider order matches fetchCandles; Alpaca's window is anchored at
// now, so it is widened to cover the span and trimmed afterward. The
// outcome sweep uses this to price recommendations once their horizons
// have elapsed.
func (b *Builder) History(ctx context.Context, symbol string, start, end time.Time) ([]models.Candle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if b.alpaca != nil {
		days := int(time.Since(start).Hours()/24) + 1
		candles, err := b.alpaca.GetDailyCandles(ctx, symbol, days)
		if err == nil {
			if trimmed := trimCandles(candles, start, end); len(trimmed) > 0 {
				return trimmed, nil
			}
		} else {
			observability.Warn("alpaca history fetch failed", "symbol", symbol, "error", err)
		}
	}

	if b.yahoo != nil {
		candles, err := b.yahoo.GetDailyCandles(ctx, symbol, start, end)
		if err == nil {
			if trimmed := trimCandles(candles, start, end); len(trimmed) > 0 {
				return trimmed, nil
			}
		} else {
			observability.Warn("yahoo history fetch failed", "symbol", symbol, "error", err)
		}
	}

	return nil, fmt.Errorf("no provider returned history for %s between %s and %s",
		symbol, start.Format("2006-01-02"), end.Format("2006-01-02"))
}

// trimCandles keeps candles dated within [start, end].
func trimCandles(candles []models.Candle, start, end time.Time) []models.Candle {
	out := make([]models.Candle, 0, len(candles))
	for _, c := range candles {
		if c.Date.Before(start) || c.Date.After(end) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// fetchCandles tries Alpaca first, then the keyless Yahoo fallback.
func (b *Builder) fetchCandles(ctx context.Context, symbol string) ([]models.Candle, string) {
	if b.alpaca != nil {
		candles, err := b.alpaca.GetDailyCandles(ctx, symbol, b.lookbackDays)
		if err == nil && len(candles) > 0 {
			return candles, services.BreakerAlpaca
		}
		if err != nil {
			observability.Warn("alpaca candle fetch failed", "symbol", symbol, "error", err)
		}
	}

	if b.yahoo != nil {
		end := time.Now().UTC()
		// Trading-day lookback to calendar days, with buffer for holidays.
		start := end.AddDate(0, 0, -(b.lookbackDays*3/2 + 7))
		candles, err := b.yahoo.GetDailyCandles(ctx, symbol, start, end)
		if err == nil && len(candles) > 0 {
			return candles, services.BreakerYahoo
		}
		if err != nil {
			observability.Warn("yahoo candle fetch failed", "symbol", symbol, "error", err)
		}
	}

	return nil, ""
}

// fetchQuote tries Alpaca, then Yahoo, then the Alpha Vantage global quote.
func (b *Builder) fetchQuote(ctx context.Context, symbol string) (*models.Quote, string) {
	if b.alpaca != nil {
		quote, err := b.alpaca.GetQuote(ctx, symbol)
		if err == nil && quote != nil {
			return quote, services.BreakerAlpaca
		}
		if err != nil {
			observability.Warn("alpaca quote fetch failed", "symbol", symbol, "error", err)
		}
	}

	if b.yahoo != nil {
		quote, err := b.yahoo.GetQuote(ctx, symbol)
		if err == nil && quote != nil {
			return quote, services.BreakerYahoo
		}
		if err != nil {
			observability.Warn("yahoo quote fetch failed", "symbol", symbol, "error", err)
		}
	}

	if b.alphaVantage != nil {
		quote, err := b.alphaVantage.GetQuote(ctx, symbol)
		if err == nil && quote != nil {
			return quote, services.BreakerAlphaVantage
		}
		if err != nil {
			observability.Warn("alphavantage quote fetch failed", "symbol", symbol, "error", err)
		}
	}

	return nil, ""
}

// applyPrice resolves the working price from the live quote when
// available, falling back to the last close.
func (b *Builder) applyPrice(snapshot *models.IndicatorSnapshot, candles []models.Candle, quote *models.Quote) {
	n := len(candles)

	if quote != nil && quote.Last.IsPositive() {
		snapshot.Price = quote.Last.InexactFloat64()
		snapshot.Volume = float64(quote.Volume)
		if n > 0 {
			snapshot.PrevClose = candles[n-1].Close
		}
		return
	}

	if n > 0 {
		snapshot.Price = candles[n-1].Close
		snapshot.Volume = candles[n-1].Volume
		if n > 1 {
			snapshot.PrevClose = candles[n-2].Close
		}
	}
}

func (b *Builder) applyTechnicals(snapshot *models.IndicatorSnapshot, candles []models.Candle) {
	if len(candles) == 0 {
		return
	}

	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}
	snapshot.AnnualizedVol = AnnualizedVolatility(closes)
	snapshot.MaxDrawdownPct = MaxDrawdown(closes)

	tech, err := ComputeTechnicals(candles)
	if err != nil {
		observability.Warn("technical indicators unavailable", "symbol", snapshot.Symbol, "error", err)
		return
	}

	snapshot.RSI14 = tech.RSI14
	snapshot.MACD = tech.MACD
	snapshot.MACDSig = tech.MACDSignal
	snapshot.MACDHist = tech.MACDHist
	snapshot.SMA50 = tech.SMA50
	snapshot.SMA200 = tech.SMA200
	snapshot.EMA20 = tech.EMA20
	snapshot.ATR14 = tech.ATR14
	snapshot.AvgVolume20 = tech.AvgVolume20

	snapshot.VWAP = ComputeVWAP(candles, vwapWindow)
	if snapshot.VWAP > 0 && snapshot.Price > 0 {
		snapshot.VWAPOffsetPct = (snapshot.Price - snapshot.VWAP) / snapshot.VWAP * 100
	}

	snapshot.HasTechnicals = true
}

// applyPivots derives floor-trader levels from the last session that
// closed before the as-of day.
func (b *Builder) applyPivots(snapshot *models.IndicatorSnapshot, candles []models.Candle, asOf time.Time) {
	prior, ok := priorSession(candles, asOf)
	if !ok || prior.High < prior.Low || prior.High <= 0 {
		return
	}

	snapshot.Pivots = ComputePivots(prior)
	snapshot.HasPivots = true
}

// priorSession returns the most recent candle dated before the as-of day.
func priorSession(candles []models.Candle, asOf time.Time) (models.Candle, bool) {
	dayStart := time.Date(asOf.Year(), asOf.Month(), asOf.Day(), 0, 0, 0, 0, time.UTC)
	for i := len(candles) - 1; i >= 0; i-- {
		if candles[i].Date.Before(dayStart) {
			return candles[i], true
		}
	}
	if len(candles) > 0 {
		return candles[len(candles)-1], true
	}
	return models.Candle{}, false
}

// enrich fetches fundamentals, sector norms, and news concurrently.
// Provider failures clear the matching section, never the build.
func (b *Builder) enrich(ctx context.Context, snapshot *models.IndicatorSnapshot) error {
	g, gctx := errgroup.WithContext(ctx)

	var (
		fundamentals *models.Fundamentals
		norms        *models.SectorNorms
		news         []models.NewsArticle
		newsSource   string
	)

	if b.alphaVantage != nil {
		g.Go(func() error {
			f, err := b.alphaVantage.GetFundamentals(gctx, snapshot.Symbol)
			if err != nil {
				observability.Warn("fundamentals fetch failed", "symbol", snapshot.Symbol, "error", err)
				return nil
			}
			fundamentals = f
			return nil
		})
	}

	if b.fmp != nil {
		g.Go(func() error {
			n, err := b.fmp.GetSectorNorms(gctx, snapshot.Symbol)
			if err != nil {
				observability.Warn("sector norms fetch failed", "symbol", snapshot.Symbol, "error", err)
				return nil
			}
			norms = n
			return nil
		})
	}

	g.Go(func() error {
		news, newsSource = b.fetchNews(gctx, snapshot.Symbol)
		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("snapshot enrichment: %w", err)
	}

	if fundamentals != nil {
		snapshot.Fundamentals = fundamentals
		snapshot.HasFundamentals = true
		snapshot.Sources = append(snapshot.Sources, services.BreakerAlphaVantage)
	}
	if norms != nil {
		snapshot.SectorNorms = norms
		snapshot.Sources = append(snapshot.Sources, services.BreakerFMP)
	}
	if len(news) > 0 {
		snapshot.News = news
		if newsSource != "" {
			snapshot.Sources = append(snapshot.Sources, newsSource)
		}
	}

	snapshot.Sources = dedupe(snapshot.Sources)
	return nil
}

// fetchNews tries Alpha Vantage sentiment first (scored articles), then
// NewsAPI, then the keyless Google News scraper.
func (b *Builder) fetchNews(ctx context.Context, symbol string) ([]models.NewsArticle, string) {
	if b.alphaVantage != nil {
		articles, err := b.alphaVantage.GetNews(ctx, symbol)
		if err == nil && len(articles) > 0 {
			return capNews(articles), services.BreakerAlphaVantage
		}
		if err != nil {
			observability.Warn("alphavantage news fetch failed", "symbol", symbol, "error", err)
		}
	}

	if b.newsAPI != nil {
		articles, err := b.newsAPI.GetNews(ctx, symbol, newsLimit)
		if err == nil && len(articles) > 0 {
			return capNews(articles), services.BreakerNewsAPI
		}
		if err != nil {
			observability.Warn("newsapi fetch failed", "symbol", symbol, "error", err)
		}
	}

	if b.headlines != nil {
		articles, err := b.headlines.ScrapeHeadlines(ctx, symbol+" stock", newsLimit)
		if err == nil && len(articles) > 0 {
			return capNews(articles), services.BreakerHeadlines
		}
		if err != nil {
			observability.Warn("headline scrape failed", "symbol", symbol, "error", err)
		}
	}

	return nil, ""
}

func capNews(articles []models.NewsArticle) []models.NewsArticle {
	if len(articles) > newsLimit {
		return articles[:newsLimit]
	}
	return articles
}

func dedupe(values []string) []string {
	if len(values) < 2 {
		return values
	}
	seen := make(map[string]bool, len(values))
	out := values[:0]
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

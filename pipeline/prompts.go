package pipeline

import (
	"fmt"
	"strings"

	"trade-council/models"
)

const marketSystemPrompt = `You are a technical market analyst on an equity research desk.
Your job is to read price action and momentum indicators and judge the technical state of a stock.

You will be given current indicator values computed from daily candles.

Provide your analysis in the following JSON format:
{
  "stance": "<BULLISH, BEARISH, or NEUTRAL>",
  "score": <number from 0 to 100, 0=strongly bearish setup, 100=strongly bullish setup>,
  "findings": "<brief explanation of the technical picture>",
  "key_points": ["<point1>", "<point2>", "<point3>"]
}

Consider:
- Trend: price relative to the 50-day and 200-day moving averages
- Momentum: RSI regime and MACD histogram direction
- Stretch: distance from VWAP and the 20-day EMA
- Structure: where price sits in the pivot band

Be objective and ground every point in the numbers you were given.`

const sentimentSystemPrompt = `You are a market sentiment analyst on an equity research desk.
Your job is to judge crowd positioning and mood around a stock from its recent tape and headlines.

You will be given recent price action context and a list of headlines.

Provide your analysis in the following JSON format:
{
  "stance": "<BULLISH, BEARISH, or NEUTRAL>",
  "score": <number from 0 to 100, 0=crowd is fearful or exiting, 100=crowd is euphoric or accumulating>,
  "findings": "<brief explanation of the prevailing sentiment>",
  "key_points": ["<point1>", "<point2>", "<point3>"]
}

Consider:
- Volume versus the 20-day average as participation
- Whether price is being bought above or sold below VWAP
- The tone of the headlines, not just their count
- Crowded euphoria is a warning, not a confirmation

Be objective and distinguish sentiment from fundamentals.`

const newsSystemPrompt = `You are a financial analyst specializing in news analysis.
Your job is to analyze recent news articles about a stock and extract what is material to its price.

You will be given a list of recent news headlines and descriptions.

Provide your analysis in the following JSON format:
{
  "stance": "<BULLISH, BEARISH, or NEUTRAL>",
  "score": <number from 0 to 100, 0=strongly negative news flow, 100=strongly positive news flow>,
  "findings": "<brief explanation of the overall news picture>",
  "key_points": ["<headline or theme 1>", "<headline or theme 2>"]
}

Consider:
- Positive news: earnings beats, product launches, partnerships, analyst upgrades
- Negative news: earnings misses, lawsuits, management changes, analyst downgrades
- Neutral news: routine announcements, industry trends

Be objective and focus on how the news might impact the stock price.`

const fundamentalsSystemPrompt = `You are a fundamental analyst on an equity research desk.
Your job is to judge whether a stock's valuation and quality metrics support owning it.

You will be given valuation ratios, yield, beta, the 52-week range, and sector benchmarks where available.

Provide your analysis in the following JSON format:
{
  "stance": "<BULLISH, BEARISH, or NEUTRAL>",
  "score": <number from 0 to 100, 0=expensive or deteriorating, 100=cheap and high quality>,
  "findings": "<brief explanation of the valuation picture>",
  "key_points": ["<point1>", "<point2>", "<point3>"]
}

Consider:
- P/E against the sector norm, not in isolation
- PEG above 2 usually means growth is already paid for
- Dividend yield and beta as character, not verdicts
- Where price sits in the 52-week range versus the analyst target

Be objective and say what the numbers support, not what the story suggests.`

const bullSystemPrompt = `You are the bull researcher in an investment debate about a single stock.
Your job is to make the strongest honest case for accumulating the position, and to rebut the bear's latest argument directly.

You will be given the analyst summaries, the bear's most recent argument, and similar past situations with their realized outcomes.

Respond in the following JSON format:
{
  "argument": "<your argument for this round, 3-6 sentences>"
}

Rules:
- Engage the bear's specific points, do not restate your opening
- Cite the past situations when their outcomes support you, and address them when they do not
- Concede points the data does not support; credibility wins debates
- No position sizing, no price targets; direction and conviction only`

const bearSystemPrompt = `You are the bear researcher in an investment debate about a single stock.
Your job is to make the strongest honest case against the position, and to rebut the bull's latest argument directly.

You will be given the analyst summaries, the bull's most recent argument, and similar past situations with their realized outcomes.

Respond in the following JSON format:
{
  "argument": "<your argument for this round, 3-6 sentences>"
}

Rules:
- Engage the bull's specific points, do not restate your opening
- Cite the past situations when their outcomes support you, and address them when they do not
- Concede points the data does not support; credibility wins debates
- No position sizing, no price targets; direction and conviction only`

const judgeSystemPrompt = `You are the research manager closing a bull/bear debate about a single stock.
Your job is to weigh both sides' strongest arguments and commit to a direction. You may not abstain by default; choose NEUTRAL only when the cases genuinely offset.

You will be given the full debate transcript.

Respond in the following JSON format:
{
  "direction": "<BULLISH, BEARISH, or NEUTRAL>",
  "thesis": "<2-4 sentences stating the winning case and the strongest surviving objection>"
}

Judge the arguments as made, not the stock in the abstract. The side that engaged the evidence better wins.`

const riskReviewBody = `You will be given a draft trading plan, the debate's closing position, and volatility context.

Respond in the following JSON format:
{
  "stance": "<INCREASE, MAINTAIN, REDUCE, or ABORT>",
  "adjusted_size_pct": <suggested position fraction between 0 and 1, or null to keep the draft size>,
  "adjusted_stop": <suggested stop price, or null to keep the draft stop>,
  "commentary": "<2-4 sentences justifying your stance>"
}

ABORT means the plan should not be traded at all. Suggest adjustments only when your stance implies them.`

const aggressiveReviewerPrompt = `You are the aggressive risk reviewer on a trading desk.
Your job is to ask whether the plan is bold enough: missed upside is also a risk. You push for size when the edge is real and call out timidity dressed up as prudence.

` + riskReviewBody

const conservativeReviewerPrompt = `You are the conservative risk reviewer on a trading desk.
Your job is to protect capital first: you look for what breaks the plan, not what makes it work. Drawdown, gap risk, and crowding weigh more than upside.

` + riskReviewBody

const neutralReviewerPrompt = `You are the neutral risk reviewer on a trading desk.
Your job is to balance the aggressive and conservative instincts: judge whether the plan's size and stops match its actual edge, without leaning either way.

` + riskReviewBody

func analystSystemPrompt(role models.AnalystRole) string {
	switch role {
	case models.RoleMarket:
		return marketSystemPrompt
	case models.RoleSentiment:
		return sentimentSystemPrompt
	case models.RoleNews:
		return newsSystemPrompt
	case models.RoleFundamentals:
		return fundamentalsSystemPrompt
	}
	return marketSystemPrompt
}

// analystUserPrompt renders the slice of the snapshot the role works from.
// Missing sections are named as missing rather than silently dropped, so
// the analyst can weigh the absence itself.
func analystUserPrompt(role models.AnalystRole, s *models.IndicatorSnapshot) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Analyze %s as of %s.\n\n", s.Symbol, s.AsOf.Format("Jan 2, 2006")))

	switch role {
	case models.RoleMarket:
		writeTechnicalSection(&sb, s)
		writePivotSection(&sb, s)
	case models.RoleSentiment:
		writePriceActionSection(&sb, s)
		writeNewsSection(&sb, s, true)
	case models.RoleNews:
		writeNewsSection(&sb, s, false)
	case models.RoleFundamentals:
		writeFundamentalSection(&sb, s)
	}

	sb.WriteString("\nProvide your analysis.")
	return sb.String()
}

func writeTechnicalSection(sb *strings.Builder, s *models.IndicatorSnapshot) {
	if !s.HasTechnicals {
		sb.WriteString("Technical indicators are unavailable for this symbol.\n")
		if s.Price > 0 {
			sb.WriteString(fmt.Sprintf("Last price: %.2f\n", s.Price))
		}
		return
	}

	sb.WriteString("Technical indicators:\n")
	sb.WriteString(fmt.Sprintf("- Price: %.2f (previous close %.2f)\n", s.Price, s.PrevClose))
	sb.WriteString(fmt.Sprintf("- RSI(14): %.1f\n", s.RSI14))
	sb.WriteString(fmt.Sprintf("- MACD: %.3f, signal %.3f, histogram %.3f\n", s.MACD, s.MACDSig, s.MACDHist))
	sb.WriteString(fmt.Sprintf("- SMA(50): %.2f, SMA(200): %.2f, EMA(20): %.2f\n", s.SMA50, s.SMA200, s.EMA20))
	sb.WriteString(fmt.Sprintf("- ATR(14): %.2f (%.1f%% of price)\n", s.ATR14, s.ATRPct()*100))
	sb.WriteString(fmt.Sprintf("- VWAP: %.2f, price is %+.1f%% from it\n", s.VWAP, s.VWAPOffsetPct))
	sb.WriteString(fmt.Sprintf("- Annualized volatility: %.0f%%, max drawdown in window: %.0f%%\n",
		s.AnnualizedVol*100, s.MaxDrawdownPct*100))
}

func writePivotSection(sb *strings.Builder, s *models.IndicatorSnapshot) {
	if !s.HasPivots {
		sb.WriteString("Pivot levels are unavailable for this symbol.\n")
		return
	}
	p := s.Pivots
	sb.WriteString(fmt.Sprintf("Pivot levels: S2 %.2f, S1 %.2f, PP %.2f, R1 %.2f, R2 %.2f (price sits in the %s band)\n",
		p.S2, p.S1, p.PP, p.R1, p.R2, s.Zone()))
}

func writePriceActionSection(sb *strings.Builder, s *models.IndicatorSnapshot) {
	if !s.HasTechnicals {
		sb.WriteString("Price action context is unavailable for this symbol.\n")
		return
	}

	sb.WriteString("Price action context:\n")
	sb.WriteString(fmt.Sprintf("- Price: %.2f, %+.1f%% from VWAP\n", s.Price, s.VWAPOffsetPct))
	if s.AvgVolume20 > 0 {
		sb.WriteString(fmt.Sprintf("- Volume: %.0f versus 20-day average %.0f\n", s.Volume, s.AvgVolume20))
	}
	sb.WriteString(fmt.Sprintf("- RSI(14): %.1f\n", s.RSI14))
}

func writeNewsSection(sb *strings.Builder, s *models.IndicatorSnapshot, headlinesOnly bool) {
	if len(s.News) == 0 {
		sb.WriteString("No recent news was found for this symbol.\n")
		return
	}

	sb.WriteString("Recent headlines:\n")
	for i, article := range s.News {
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, article.Title))
		if !headlinesOnly && article.Description != "" {
			sb.WriteString(fmt.Sprintf("   %s\n", article.Description))
		}
		sb.WriteString(fmt.Sprintf("   Source: %s | Published: %s\n",
			article.Source, article.PublishedAt.Format("Jan 2, 2006")))
	}
}

func writeFundamentalSection(sb *strings.Builder, s *models.IndicatorSnapshot) {
	if !s.HasFundamentals || s.Fundamentals == nil {
		sb.WriteString("Fundamental data is unavailable for this symbol.\n")
		return
	}

	f := s.Fundamentals
	sb.WriteString("Fundamentals:\n")
	sb.WriteString(fmt.Sprintf("- Sector: %s\n", f.Sector))
	sb.WriteString(fmt.Sprintf("- P/E: %.1f, PEG: %.2f, P/B: %.2f, EPS: %.2f\n", f.PERatio, f.PEGRatio, f.PBRatio, f.EPS))
	sb.WriteString(fmt.Sprintf("- Dividend yield: %.2f%%, beta: %.2f\n", f.DividendYield*100, f.Beta))
	sb.WriteString(fmt.Sprintf("- 52-week range: %.2f - %.2f, current price %.2f\n", f.Week52Low, f.Week52High, s.Price))
	if f.AnalystTarget > 0 {
		sb.WriteString(fmt.Sprintf("- Analyst consensus target: %.2f\n", f.AnalystTarget))
	}
	if s.SectorNorms != nil && s.SectorNorms.PERatio > 0 {
		sb.WriteString(fmt.Sprintf("- Sector median P/E: %.1f\n", s.SectorNorms.PERatio))
	}
}

func debaterSystemPrompt(role models.DebateRole) string {
	if role == models.DebateBear {
		return bearSystemPrompt
	}
	return bullSystemPrompt
}

// debaterUserPrompt assembles one side's view of the current round: the
// shared opening, the opponent's latest argument, and the recalled
// situations with their outcomes.
func debaterUserPrompt(role models.DebateRole, round int, opening, opponentArgument string, memories []models.ScoredMemory) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Round %d.\n\n", round))
	sb.WriteString("Analyst summaries:\n")
	sb.WriteString(opening)
	sb.WriteString("\n")

	if opponentArgument != "" {
		opponent := "bear"
		if role == models.DebateBear {
			opponent = "bull"
		}
		sb.WriteString(fmt.Sprintf("\nThe %s's latest argument:\n%s\n", opponent, opponentArgument))
	}

	if len(memories) > 0 {
		sb.WriteString("\nSimilar past situations:\n")
		for i, m := range memories {
			sb.WriteString(fmt.Sprintf("%d. %s %s - %s\n", i+1,
				m.Record.Symbol, m.Record.AsOf.Format("Jan 2, 2006"), m.Record.Description))
			line := fmt.Sprintf("   Decision then: %s", m.Record.Decision)
			if m.Record.Enriched() {
				line += fmt.Sprintf("; outcome %s (30d %+.1f%%)", m.Record.Outcome.Label, m.Record.Outcome.Return30D*100)
			} else {
				line += "; outcome not yet known"
			}
			sb.WriteString(line + "\n")
			if m.Record.Advice != "" {
				sb.WriteString(fmt.Sprintf("   Takeaway: %s\n", m.Record.Advice))
			}
		}
	}

	sb.WriteString("\nMake your argument for this round.")
	return sb.String()
}

func judgeUserPrompt(t *models.DebateTranscript) string {
	var sb strings.Builder
	sb.WriteString("Analyst summaries:\n")
	sb.WriteString(t.Opening)
	sb.WriteString("\n\nDebate transcript:\n")
	for _, turn := range t.Turns {
		if turn.Degraded {
			sb.WriteString(fmt.Sprintf("[round %d, %s] (forfeited this turn)\n", turn.Round, turn.Role))
			continue
		}
		sb.WriteString(fmt.Sprintf("[round %d, %s] %s\n", turn.Round, turn.Role, turn.Argument))
	}
	sb.WriteString("\nClose the debate.")
	return sb.String()
}

func reviewerSystemPrompt(p models.RiskPerspective) string {
	switch p {
	case models.RiskAggressivePerspective:
		return aggressiveReviewerPrompt
	case models.RiskConservativePerspective:
		return conservativeReviewerPrompt
	default:
		return neutralReviewerPrompt
	}
}

func reviewerUserPrompt(draft models.PlanDraft, s *models.IndicatorSnapshot) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Draft plan for %s:\n", draft.Symbol))
	sb.WriteString(fmt.Sprintf("- Direction: %s\n", draft.Direction))
	sb.WriteString(fmt.Sprintf("- Entry: %s, stop: %s, target: %s\n",
		draft.EntryPrice.StringFixed(2), draft.StopLoss.StringFixed(2), draft.TargetPrice.StringFixed(2)))
	sb.WriteString(fmt.Sprintf("- Size: %.1f%% of portfolio\n", draft.SizePct*100))
	if draft.Thesis != "" {
		sb.WriteString(fmt.Sprintf("- Thesis: %s\n", draft.Thesis))
	}

	if s != nil && s.HasTechnicals {
		sb.WriteString(fmt.Sprintf("\nVolatility context: annualized vol %.0f%%, max drawdown %.0f%%, ATR %.1f%% of price.\n",
			s.AnnualizedVol*100, s.MaxDrawdownPct*100, s.ATRPct()*100))
	}

	sb.WriteString("\nReview the plan.")
	return sb.String()
}

// openingStatement condenses the usable analyst reports into the shared
// context both debaters argue from.
func openingStatement(reports []models.AnalystReport) string {
	var sb strings.Builder
	for _, r := range reports {
		if r.Degraded {
			sb.WriteString(fmt.Sprintf("- %s: no report (%s)\n", r.Role, r.DegradedReason))
			continue
		}
		sb.WriteString(fmt.Sprintf("- %s: %s (%.0f/100) - %s\n", r.Role, r.Stance, r.Score, r.Findings))
	}
	return strings.TrimRight(sb.String(), "\n")
}

// situationDescription renders the snapshot into the text the embedder
// indexes. Recalled memories resurface through this same vocabulary, so
// wording stays deterministic for a given snapshot.
func situationDescription(s *models.IndicatorSnapshot) string {
	if s == nil {
		return ""
	}

	var parts []string
	parts = append(parts, s.Symbol)

	if s.HasTechnicals {
		switch {
		case s.Price > s.SMA200 && s.Price > s.SMA50:
			parts = append(parts, "uptrend above both long averages")
		case s.Price < s.SMA200 && s.Price < s.SMA50:
			parts = append(parts, "downtrend below both long averages")
		default:
			parts = append(parts, "mixed trend between the long averages")
		}

		switch {
		case s.RSI14 >= 70:
			parts = append(parts, "overbought momentum")
		case s.RSI14 >= 55:
			parts = append(parts, "firm momentum")
		case s.RSI14 >= 45:
			parts = append(parts, "neutral momentum")
		case s.RSI14 >= 30:
			parts = append(parts, "soft momentum")
		default:
			parts = append(parts, "oversold momentum")
		}

		if s.MACDHist > 0 {
			parts = append(parts, "MACD rising")
		} else if s.MACDHist < 0 {
			parts = append(parts, "MACD falling")
		}

		parts = append(parts, fmt.Sprintf("price %+.0f%% from VWAP", s.VWAPOffsetPct))
		parts = append(parts, fmt.Sprintf("annualized vol %.0f%%", s.AnnualizedVol*100))
	}

	if s.HasPivots {
		parts = append(parts, fmt.Sprintf("in the %s pivot band", s.Zone()))
	}

	if s.HasFundamentals && s.Fundamentals != nil {
		f := s.Fundamentals
		if s.SectorNorms != nil && s.SectorNorms.PERatio > 0 && f.PERatio > 0 {
			if f.PERatio < s.SectorNorms.PERatio {
				parts = append(parts, "valued below sector P/E")
			} else {
				parts = append(parts, "valued above sector P/E")
			}
		}
		if f.DividendYield > 0 {
			parts = append(parts, fmt.Sprintf("yielding %.1f%%", f.DividendYield*100))
		}
	}

	return strings.Join(parts, ", ")
}

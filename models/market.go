package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Candle is one OHLCV bar. Series math (talib, volatility, VWAP) runs on
// float64; decimal enters only at the order-plan boundary.
type Candle struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Quote represents the latest trade/quote data for a symbol.
type Quote struct {
	Symbol    string          `json:"symbol"`
	Last      decimal.Decimal `json:"last"`
	Bid       decimal.Decimal `json:"bid"`
	Ask       decimal.Decimal `json:"ask"`
	Volume    int64           `json:"volume"`
	Timestamp time.Time       `json:"timestamp"`
}

// Fundamentals holds company valuation data from the fundamentals provider.
type Fundamentals struct {
	Symbol        string    `json:"symbol"`
	Sector        string    `json:"sector"`
	MarketCap     int64     `json:"market_cap"`
	PERatio       float64   `json:"pe_ratio"`
	PEGRatio      float64   `json:"peg_ratio"`
	PBRatio       float64   `json:"pb_ratio"`
	EPS           float64   `json:"eps"`
	DividendYield float64   `json:"dividend_yield"` // fraction, e.g. 0.021
	Beta          float64   `json:"beta"`
	Week52High    float64   `json:"week52_high"`
	Week52Low     float64   `json:"week52_low"`
	AnalystTarget float64   `json:"analyst_target"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// SectorNorms holds sector-level valuation benchmarks used by the
// fundamental gate.
type SectorNorms struct {
	Sector    string    `json:"sector"`
	PERatio   float64   `json:"pe_ratio"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewsArticle represents one headline about a symbol.
type NewsArticle struct {
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	URL         string    `json:"url,omitempty"`
	Source      string    `json:"source"`
	Sentiment   float64   `json:"sentiment,omitempty"` // provider score, -1..1 where available
	PublishedAt time.Time `json:"published_at"`
}

// PivotLevels are classic floor-trader levels from the prior session.
type PivotLevels struct {
	PP float64 `json:"pp"`
	R1 float64 `json:"r1"`
	R2 float64 `json:"r2"`
	S1 float64 `json:"s1"`
	S2 float64 `json:"s2"`
}

// IndicatorSnapshot is the fused, immutable market view for one run. Every
// stage and both satellite algorithms read from it; nothing writes to it
// after the builder returns. Section flags mark what upstream data
// actually arrived.
type IndicatorSnapshot struct {
	Symbol string    `json:"symbol"`
	AsOf   time.Time `json:"as_of"`

	Price       float64 `json:"price"`
	PrevClose   float64 `json:"prev_close"`
	Volume      float64 `json:"volume"`
	AvgVolume20 float64 `json:"avg_volume_20"`

	RSI14    float64 `json:"rsi_14"`
	MACD     float64 `json:"macd"`
	MACDSig  float64 `json:"macd_signal"`
	MACDHist float64 `json:"macd_hist"`
	SMA50    float64 `json:"sma_50"`
	SMA200   float64 `json:"sma_200"`
	EMA20    float64 `json:"ema_20"`
	ATR14    float64 `json:"atr_14"`

	VWAP          float64 `json:"vwap"`
	VWAPOffsetPct float64 `json:"vwap_offset_pct"` // (price-vwap)/vwap * 100

	Pivots PivotLevels `json:"pivots"`

	AnnualizedVol  float64 `json:"annualized_vol"`   // fraction, e.g. 0.25
	MaxDrawdownPct float64 `json:"max_drawdown_pct"` // positive fraction, e.g. 0.18

	Fundamentals *Fundamentals `json:"fundamentals,omitempty"`
	SectorNorms  *SectorNorms  `json:"sector_norms,omitempty"`
	News         []NewsArticle `json:"news,omitempty"`

	HasTechnicals   bool `json:"has_technicals"`
	HasFundamentals bool `json:"has_fundamentals"`
	HasPivots       bool `json:"has_pivots"`

	Sources []string `json:"sources,omitempty"`
}

// ATRPct is ATR as a fraction of price, the volatility measure shared by
// the timing gate and entry banding.
func (s *IndicatorSnapshot) ATRPct() float64 {
	if s == nil || s.Price <= 0 {
		return 0
	}
	return s.ATR14 / s.Price
}

// Zone returns the pivot band containing the current price.
func (s *IndicatorSnapshot) Zone() PivotZone {
	if s == nil || !s.HasPivots {
		return ZoneUnknown
	}
	return ClassifyPivotZone(s.Price, s.Pivots)
}

// PivotZone names the band between adjacent floor-trader levels.
type PivotZone string

const (
	ZoneBelowS2 PivotZone = "BELOW_S2"
	ZoneS2S1    PivotZone = "S2_S1"
	ZoneS1PP    PivotZone = "S1_PP"
	ZonePPR1    PivotZone = "PP_R1"
	ZoneR1R2    PivotZone = "R1_R2"
	ZoneAboveR2 PivotZone = "ABOVE_R2"
	ZoneUnknown PivotZone = "UNKNOWN"
)

// ClassifyPivotZone places a price into its band. Levels are ordered
// S2 < S1 < PP < R1 < R2 by construction.
func ClassifyPivotZone(price float64, p PivotLevels) PivotZone {
	switch {
	case price < p.S2:
		return ZoneBelowS2
	case price < p.S1:
		return ZoneS2S1
	case price < p.PP:
		return ZoneS1PP
	case price < p.R1:
		return ZonePPR1
	case price < p.R2:
		return ZoneR1R2
	default:
		return ZoneAboveR2
	}
}

// Bounds returns the price band for a zone. The outermost zones are
// half-open; the missing edge is reported as ok=false.
func (z PivotZone) Bounds(p PivotLevels) (low, high float64, ok bool) {
	switch z {
	case ZoneS2S1:
		return p.S2, p.S1, true
	case ZoneS1PP:
		return p.S1, p.PP, true
	case ZonePPR1:
		return p.PP, p.R1, true
	case ZoneR1R2:
		return p.R1, p.R2, true
	default:
		return 0, 0, false
	}
}

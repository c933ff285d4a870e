package sizing

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"

	"trade-council/config"
	"trade-council/models"
)

func defaultSizer() *Sizer {
	return NewSizer(
		config.PipelineConfig{RiskTolerance: "moderate", MaxPositionPct: 0.10},
		config.SizingConfig{CashReservePct: 0.05, MinShares: 1},
	)
}

func testAccount(portfolio, cash int64) models.Account {
	return models.Account{
		PortfolioValue: decimal.NewFromInt(portfolio),
		Cash:           decimal.NewFromInt(cash),
		BuyingPower:    decimal.NewFromInt(cash),
	}
}

func volSnapshot(price, vol float64) *models.IndicatorSnapshot {
	return &models.IndicatorSnapshot{
		Symbol:        "AAPL",
		Price:         price,
		AnnualizedVol: vol,
		HasTechnicals: true,
	}
}

func TestSizer_Size_Buy(t *testing.T) {
	tests := []struct {
		name       string
		sizer      *Sizer
		account    models.Account
		snapshot   *models.IndicatorSnapshot
		confidence float64
		wantPct    float64
		wantShares int64
	}{
		{
			name:       "moderate conviction sizes just over four percent",
			sizer:      defaultSizer(),
			account:    testAccount(100000, 100000),
			snapshot:   volSnapshot(150, 0.25),
			confidence: 85,
			// 0.10 * 0.70 * 0.75 * 0.80
			wantPct:    0.042,
			wantShares: 28,
		},
		{
			name:       "full confidence deploys the volatility-scaled cap",
			sizer:      defaultSizer(),
			account:    testAccount(100000, 100000),
			snapshot:   volSnapshot(100, 0.25),
			confidence: 100,
			wantPct:    0.06,
			wantShares: 60,
		},
		{
			name:       "coin-flip confidence sizes zero",
			sizer:      defaultSizer(),
			account:    testAccount(100000, 100000),
			snapshot:   volSnapshot(100, 0.25),
			confidence: 50,
			wantPct:    0,
			wantShares: 0,
		},
		{
			name:       "cash reserve caps the target",
			sizer:      defaultSizer(),
			account:    testAccount(100000, 7000), // reserve holds back 5000
			snapshot:   volSnapshot(100, 0.25),
			confidence: 85,
			wantPct:    0.02,
			wantShares: 20,
		},
		{
			name:       "minimum one share on an expensive name",
			sizer:      defaultSizer(),
			account:    testAccount(100000, 100000),
			snapshot:   volSnapshot(5000, 0.25),
			confidence: 85,
			wantPct:    0.042,
			wantShares: 1,
		},
		{
			name: "max shares cap",
			sizer: NewSizer(
				config.PipelineConfig{RiskTolerance: "moderate", MaxPositionPct: 0.10},
				config.SizingConfig{CashReservePct: 0.05, MinShares: 1, MaxShares: 10},
			),
			account:    testAccount(100000, 100000),
			snapshot:   volSnapshot(100, 0.25),
			confidence: 85,
			wantPct:    0.042,
			wantShares: 10,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.sizer.Size(tt.account, tt.snapshot, models.DecisionBuy, tt.confidence)

			if math.Abs(got.Pct-tt.wantPct) > 1e-9 {
				t.Errorf("Pct = %v, want %v", got.Pct, tt.wantPct)
			}
			if !got.Shares.Equal(decimal.NewFromInt(tt.wantShares)) {
				t.Errorf("Shares = %s, want %d", got.Shares.String(), tt.wantShares)
			}
		})
	}
}

func TestSizer_Size_OnlyBullishDecisionsCarrySize(t *testing.T) {
	s := defaultSizer()
	account := testAccount(100000, 100000)
	snapshot := volSnapshot(100, 0.25)

	for _, decision := range []models.Decision{models.DecisionHold, models.DecisionSell} {
		got := s.Size(account, snapshot, decision, 85)
		if got.Pct != 0 || !got.Shares.IsZero() {
			t.Errorf("%s: position = %+v, want zero", decision, got)
		}
	}

	buy := s.Size(account, snapshot, models.DecisionBuy, 85)
	wait := s.Size(account, snapshot, models.DecisionWait, 85)
	if wait.Pct != buy.Pct || !wait.Shares.Equal(buy.Shares) {
		t.Errorf("WAIT sized %+v, want same as BUY %+v", wait, buy)
	}
}

func TestSizer_Size_ConfidenceMonotonic(t *testing.T) {
	s := defaultSizer()
	account := testAccount(100000, 100000)
	snapshot := volSnapshot(100, 0.25)

	prev := -1.0
	for _, conf := range []float64{0, 25, 50, 55, 65, 75, 85, 100} {
		got := s.Size(account, snapshot, models.DecisionBuy, conf)
		if got.Pct < prev {
			t.Errorf("Pct at confidence %v = %v, want >= %v", conf, got.Pct, prev)
		}
		prev = got.Pct
	}
}

func TestSizer_Size_VolatilityMonotonic(t *testing.T) {
	s := defaultSizer()
	account := testAccount(100000, 100000)

	prev := math.MaxFloat64
	for _, vol := range []float64{0, 0.10, 0.25, 0.50, 1.0} {
		got := s.Size(account, volSnapshot(100, vol), models.DecisionBuy, 85)
		if got.Pct > prev {
			t.Errorf("Pct at vol %v = %v, want <= %v", vol, got.Pct, prev)
		}
		prev = got.Pct
	}
}

func TestSizer_Size_RiskToleranceOrdering(t *testing.T) {
	account := testAccount(100000, 100000)
	snapshot := volSnapshot(100, 0.25)

	pctFor := func(tolerance string) float64 {
		s := NewSizer(
			config.PipelineConfig{RiskTolerance: tolerance, MaxPositionPct: 0.10},
			config.SizingConfig{CashReservePct: 0.05, MinShares: 1},
		)
		return s.Size(account, snapshot, models.DecisionBuy, 85).Pct
	}

	conservative := pctFor("conservative")
	moderate := pctFor("moderate")
	aggressive := pctFor("aggressive")

	if !(conservative < moderate && moderate < aggressive) {
		t.Errorf("tolerance ordering broken: conservative %v, moderate %v, aggressive %v",
			conservative, moderate, aggressive)
	}
	if unknown := pctFor("yolo"); unknown != moderate {
		t.Errorf("unknown tolerance Pct = %v, want moderate %v", unknown, moderate)
	}
}

func TestSizer_Size_EdgeCases(t *testing.T) {
	s := defaultSizer()

	t.Run("nil snapshot sizes zero", func(t *testing.T) {
		got := s.Size(testAccount(100000, 100000), nil, models.DecisionBuy, 85)
		if got.Pct != 0 || !got.Shares.IsZero() {
			t.Errorf("position = %+v, want zero", got)
		}
	})

	t.Run("zero price sizes zero", func(t *testing.T) {
		got := s.Size(testAccount(100000, 100000), volSnapshot(0, 0.25), models.DecisionBuy, 85)
		if !got.Shares.IsZero() {
			t.Errorf("Shares = %s, want 0", got.Shares.String())
		}
	})

	t.Run("zero portfolio sizes zero", func(t *testing.T) {
		got := s.Size(testAccount(0, 100000), volSnapshot(100, 0.25), models.DecisionBuy, 85)
		if !got.Shares.IsZero() {
			t.Errorf("Shares = %s, want 0", got.Shares.String())
		}
	})

	t.Run("reserve exceeding cash sizes zero", func(t *testing.T) {
		got := s.Size(testAccount(100000, 3000), volSnapshot(100, 0.25), models.DecisionBuy, 85)
		if got.Pct != 0 || !got.Shares.IsZero() {
			t.Errorf("position = %+v, want zero", got)
		}
	})
}

func TestSizer_ProvisionalPct(t *testing.T) {
	s := defaultSizer()

	if got := s.ProvisionalPct(volSnapshot(100, 0.25)); math.Abs(got-0.06) > 1e-9 {
		t.Errorf("ProvisionalPct = %v, want 0.06", got)
	}
	if got := s.ProvisionalPct(nil); math.Abs(got-0.075) > 1e-9 {
		t.Errorf("ProvisionalPct(nil) = %v, want 0.075", got)
	}
}

func TestConfidenceMultiplier(t *testing.T) {
	tests := []struct {
		confidence float64
		want       float64
	}{
		{0, 0},
		{50, 0},
		{75, 0.5},
		{100, 1},
		{120, 1},
	}
	for _, tt := range tests {
		if got := confidenceMultiplier(tt.confidence); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("confidenceMultiplier(%v) = %v, want %v", tt.confidence, got, tt.want)
		}
	}
}

func TestVolatilityMultiplier(t *testing.T) {
	tests := []struct {
		vol  float64
		want float64
	}{
		{0, 1},
		{-0.1, 1},
		{0.25, 0.8},
		{1, 0.5},
	}
	for _, tt := range tests {
		if got := volatilityMultiplier(tt.vol); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("volatilityMultiplier(%v) = %v, want %v", tt.vol, got, tt.want)
		}
	}
}

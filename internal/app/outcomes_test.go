package app

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"trade-council/models"

	"github.com/google/uuid"
)

// sweepCandles builds a daily series of the given length starting at
// base. Closes default to 100; specific days are overridden by offset.
func sweepCandles(base time.Time, days int, closes map[int]float64) []models.Candle {
	candles := make([]models.Candle, days)
	for i := range candles {
		c := 100.0
		if v, ok := closes[i]; ok {
			c = v
		}
		candles[i] = models.Candle{
			Date:   base.AddDate(0, 0, i),
			Open:   c,
			High:   c + 1,
			Low:    c - 1,
			Close:  c,
			Volume: 1_000_000,
		}
	}
	return candles
}

func sweepRec(symbol string, decision models.Decision, asOf time.Time) models.Recommendation {
	return models.Recommendation{
		ID:        uuid.New(),
		RunID:     uuid.New(),
		Symbol:    symbol,
		AsOf:      asOf,
		Decision:  decision,
		CreatedAt: asOf,
	}
}

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestRecordOutcomes_BuyWinAndEnrich(t *testing.T) {
	base := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	asOf := base.Add(15 * time.Hour)
	rec := sweepRec("AAPL", models.DecisionBuy, asOf)

	store := &fakeStore{awaiting: []models.Recommendation{rec}}
	memID := uuid.New()
	mem := &fakeMemory{records: []*models.MemoryRecord{{ID: memID, Symbol: "AAPL", AsOf: asOf}}}
	hist := &fakeHistory{candles: map[string][]models.Candle{
		"AAPL": sweepCandles(base, 98, map[int]float64{7: 105, 30: 112, 90: 120}),
	}}
	a := New(testConfig(), store, nil, mem, hist)

	result, err := a.RecordOutcomes(context.Background())
	if err != nil {
		t.Fatalf("RecordOutcomes failed: %v", err)
	}
	if result.Scanned != 1 || result.Recorded != 1 || result.Failed != 0 {
		t.Fatalf("result = %+v, want 1 scanned, 1 recorded", result)
	}

	if len(store.saved) != 1 {
		t.Fatalf("saved outcomes = %d, want 1", len(store.saved))
	}
	outcome := store.saved[0]
	if outcome.RecommendationID != rec.ID {
		t.Errorf("RecommendationID = %v, want %v", outcome.RecommendationID, rec.ID)
	}
	if outcome.EntryPrice != 100 {
		t.Errorf("EntryPrice = %v, want the as-of session close 100", outcome.EntryPrice)
	}
	if !approxEqual(outcome.Return7D, 0.05) {
		t.Errorf("Return7D = %v, want 0.05", outcome.Return7D)
	}
	if !approxEqual(outcome.Return30D, 0.12) {
		t.Errorf("Return30D = %v, want 0.12", outcome.Return30D)
	}
	if !approxEqual(outcome.Return90D, 0.20) {
		t.Errorf("Return90D = %v, want 0.20", outcome.Return90D)
	}
	if outcome.Label != models.OutcomeWin {
		t.Errorf("Label = %s, want WIN for a BUY that rallied", outcome.Label)
	}

	enriched, ok := mem.enriched[memID]
	if !ok {
		t.Fatal("memory record was not enriched")
	}
	if enriched.Label != models.OutcomeWin || !approxEqual(enriched.Return30D, 0.12) {
		t.Errorf("enriched outcome = %+v, want WIN with 30d 0.12", enriched)
	}
}

func TestRecordOutcomes_SellBeforeDropIsWin(t *testing.T) {
	base := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	rec := sweepRec("TSLA", models.DecisionSell, base)

	store := &fakeStore{awaiting: []models.Recommendation{rec}}
	hist := &fakeHistory{candles: map[string][]models.Candle{
		"TSLA": sweepCandles(base, 98, map[int]float64{30: 90}),
	}}
	a := New(testConfig(), store, nil, nil, hist)

	if _, err := a.RecordOutcomes(context.Background()); err != nil {
		t.Fatalf("RecordOutcomes failed: %v", err)
	}
	if len(store.saved) != 1 {
		t.Fatalf("saved outcomes = %d, want 1", len(store.saved))
	}

	outcome := store.saved[0]
	if !approxEqual(outcome.Return30D, -0.10) {
		t.Errorf("Return30D = %v, want -0.10", outcome.Return30D)
	}
	if outcome.Label != models.OutcomeWin {
		t.Errorf("Label = %s, want WIN for a SELL before a drop", outcome.Label)
	}
}

func TestRecordOutcomes_WeekendEntryUsesNextSession(t *testing.T) {
	asOf := time.Date(2025, 1, 4, 10, 0, 0, 0, time.UTC) // Saturday
	rec := sweepRec("AAPL", models.DecisionBuy, asOf)

	store := &fakeStore{awaiting: []models.Recommendation{rec}}
	hist := &fakeHistory{candles: map[string][]models.Candle{
		"AAPL": {
			{Date: time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC), Close: 102}, // Monday
			{Date: time.Date(2025, 1, 13, 0, 0, 0, 0, time.UTC), Close: 107},
			{Date: time.Date(2025, 2, 3, 0, 0, 0, 0, time.UTC), Close: 110},
			{Date: time.Date(2025, 4, 4, 0, 0, 0, 0, time.UTC), Close: 120},
		},
	}}
	a := New(testConfig(), store, nil, nil, hist)

	if _, err := a.RecordOutcomes(context.Background()); err != nil {
		t.Fatalf("RecordOutcomes failed: %v", err)
	}
	if len(store.saved) != 1 {
		t.Fatalf("saved outcomes = %d, want 1", len(store.saved))
	}

	outcome := store.saved[0]
	if outcome.EntryPrice != 102 {
		t.Errorf("EntryPrice = %v, want Monday's close 102", outcome.EntryPrice)
	}
	if !approxEqual(outcome.Return7D, 107.0/102.0-1) {
		t.Errorf("Return7D = %v, want the first close at or after the target", outcome.Return7D)
	}
	if !approxEqual(outcome.Return30D, 110.0/102.0-1) {
		t.Errorf("Return30D = %v, want 110/102-1", outcome.Return30D)
	}
}

func TestRecordOutcomes_ShortHistoryUsesLastClose(t *testing.T) {
	base := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	rec := sweepRec("AAPL", models.DecisionBuy, base)

	// Only 41 sessions exist; the 90-day horizon falls back to the
	// latest close.
	store := &fakeStore{awaiting: []models.Recommendation{rec}}
	hist := &fakeHistory{candles: map[string][]models.Candle{
		"AAPL": sweepCandles(base, 41, map[int]float64{30: 112, 40: 118}),
	}}
	a := New(testConfig(), store, nil, nil, hist)

	if _, err := a.RecordOutcomes(context.Background()); err != nil {
		t.Fatalf("RecordOutcomes failed: %v", err)
	}
	if len(store.saved) != 1 {
		t.Fatalf("saved outcomes = %d, want 1", len(store.saved))
	}

	outcome := store.saved[0]
	if !approxEqual(outcome.Return30D, 0.12) {
		t.Errorf("Return30D = %v, want 0.12", outcome.Return30D)
	}
	if !approxEqual(outcome.Return90D, 0.18) {
		t.Errorf("Return90D = %v, want the last close fallback 0.18", outcome.Return90D)
	}
}

func TestRecordOutcomes_HistoryFailureCounted(t *testing.T) {
	base := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	recs := []models.Recommendation{
		sweepRec("AAPL", models.DecisionBuy, base),
		sweepRec("MSFT", models.DecisionBuy, base),
	}

	// AAPL has history, MSFT does not; the sweep records one and counts
	// the other as failed.
	store := &fakeStore{awaiting: recs}
	hist := &fakeHistory{candles: map[string][]models.Candle{
		"AAPL": sweepCandles(base, 98, nil),
	}}
	a := New(testConfig(), store, nil, nil, hist)

	result, err := a.RecordOutcomes(context.Background())
	if err != nil {
		t.Fatalf("RecordOutcomes failed: %v", err)
	}
	if result.Scanned != 2 || result.Recorded != 1 || result.Failed != 1 {
		t.Errorf("result = %+v, want 2 scanned, 1 recorded, 1 failed", result)
	}
}

func TestRecordOutcomes_SaveFailureCounted(t *testing.T) {
	base := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	store := &fakeStore{
		awaiting: []models.Recommendation{sweepRec("AAPL", models.DecisionBuy, base)},
		saveErr:  errors.New("insert failed"),
	}
	hist := &fakeHistory{candles: map[string][]models.Candle{
		"AAPL": sweepCandles(base, 98, nil),
	}}
	a := New(testConfig(), store, nil, nil, hist)

	result, err := a.RecordOutcomes(context.Background())
	if err != nil {
		t.Fatalf("RecordOutcomes failed: %v", err)
	}
	if result.Recorded != 0 || result.Failed != 1 {
		t.Errorf("result = %+v, want 0 recorded, 1 failed", result)
	}
}

func TestRecordOutcomes_MemoryMissTolerated(t *testing.T) {
	base := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	rec := sweepRec("AAPL", models.DecisionBuy, base)

	store := &fakeStore{awaiting: []models.Recommendation{rec}}
	mem := &fakeMemory{} // holds nothing for AAPL
	hist := &fakeHistory{candles: map[string][]models.Candle{
		"AAPL": sweepCandles(base, 98, nil),
	}}
	a := New(testConfig(), store, nil, mem, hist)

	result, err := a.RecordOutcomes(context.Background())
	if err != nil {
		t.Fatalf("RecordOutcomes failed: %v", err)
	}
	if result.Recorded != 1 {
		t.Errorf("Recorded = %d, want 1 despite the memory miss", result.Recorded)
	}
	if len(mem.enriched) != 0 {
		t.Errorf("enriched %d records, want 0", len(mem.enriched))
	}
}

func TestRecordOutcomes_ListErrorPropagates(t *testing.T) {
	listErr := errors.New("db down")
	a := New(testConfig(), &fakeStore{listAwaitErr: listErr}, nil, nil, &fakeHistory{})

	if _, err := a.RecordOutcomes(context.Background()); !errors.Is(err, listErr) {
		t.Errorf("error = %v, want the list error", err)
	}
}

func TestRecordOutcomes_NoHistoryProvider(t *testing.T) {
	a := New(testConfig(), &fakeStore{}, nil, nil, nil)

	if _, err := a.RecordOutcomes(context.Background()); err == nil {
		t.Error("expected error when no market data provider is wired")
	}
}

func TestRecordOutcomes_NothingDue(t *testing.T) {
	a := New(testConfig(), &fakeStore{}, nil, nil, &fakeHistory{})

	result, err := a.RecordOutcomes(context.Background())
	if err != nil {
		t.Fatalf("RecordOutcomes failed: %v", err)
	}
	if result.Scanned != 0 || result.Recorded != 0 || result.Failed != 0 {
		t.Errorf("result = %+v, want an empty sweep", result)
	}
}

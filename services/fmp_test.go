package services

import (
	"encoding/json"
	"testing"
)

func TestNewFMPService(t *testing.T) {
	service := NewFMPService("test-api-key")

	if service == nil {
		t.Fatal("expected service to be created")
	}
	if service.apiKey != "test-api-key" {
		t.Errorf("apiKey = %s, want test-api-key", service.apiKey)
	}
	if service.httpClient == nil {
		t.Error("expected HTTP client to be initialized")
	}
	if service.baseURL != "https://financialmodelingprep.com/api/v3" {
		t.Errorf("unexpected baseURL: %s", service.baseURL)
	}
	if service.peerSample != 5 {
		t.Errorf("peerSample = %d, want 5", service.peerSample)
	}
}

func TestFMPProfileResponse_Deserialization(t *testing.T) {
	jsonResponse := `[{
		"symbol": "AAPL",
		"companyName": "Apple Inc.",
		"price": 230.75,
		"beta": 1.24,
		"mktCap": 3400000000000,
		"sector": "Technology",
		"industry": "Consumer Electronics",
		"exchangeShortName": "NASDAQ",
		"country": "US",
		"isEtf": false,
		"isActivelyTrading": true
	}]`

	var profiles []fmpProfileResponse
	if err := json.Unmarshal([]byte(jsonResponse), &profiles); err != nil {
		t.Fatalf("Failed to unmarshal profile response: %v", err)
	}

	if len(profiles) != 1 {
		t.Fatalf("expected 1 profile, got %d", len(profiles))
	}
	p := profiles[0]
	if p.Symbol != "AAPL" {
		t.Errorf("Symbol = %s, want AAPL", p.Symbol)
	}
	if p.Sector != "Technology" {
		t.Errorf("Sector = %s, want Technology", p.Sector)
	}
	if p.MktCap != 3400000000000 {
		t.Errorf("MktCap = %d", p.MktCap)
	}
	if p.IsEtf {
		t.Error("IsEtf should be false")
	}
	if !p.IsActivelyTrading {
		t.Error("IsActivelyTrading should be true")
	}
}

func TestFMPScreenerResponse_Deserialization(t *testing.T) {
	jsonResponse := `[
		{"symbol": "MSFT", "companyName": "Microsoft", "marketCap": 3100000000000, "sector": "Technology", "isEtf": false, "isActivelyTrading": true},
		{"symbol": "QQQ", "companyName": "Invesco QQQ", "marketCap": 250000000000, "sector": "Technology", "isEtf": true, "isActivelyTrading": true}
	]`

	var results []fmpScreenerResponse
	if err := json.Unmarshal([]byte(jsonResponse), &results); err != nil {
		t.Fatalf("Failed to unmarshal screener response: %v", err)
	}

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Symbol != "MSFT" {
		t.Errorf("results[0].Symbol = %s, want MSFT", results[0].Symbol)
	}
	if !results[1].IsEtf {
		t.Error("results[1].IsEtf should be true")
	}
}

func TestFMPRatiosResponse_Deserialization(t *testing.T) {
	jsonResponse := `[{
		"symbol": "MSFT",
		"peRatioTTM": 35.2,
		"priceToBookRatioTTM": 12.8,
		"dividendYieldTTM": 0.0072,
		"netIncomePerShareTTM": 11.8
	}]`

	var ratios []fmpRatiosResponse
	if err := json.Unmarshal([]byte(jsonResponse), &ratios); err != nil {
		t.Fatalf("Failed to unmarshal ratios response: %v", err)
	}

	if len(ratios) != 1 {
		t.Fatalf("expected 1 result, got %d", len(ratios))
	}
	if ratios[0].PERatio != 35.2 {
		t.Errorf("PERatio = %v, want 35.2", ratios[0].PERatio)
	}
	if ratios[0].PriceToBookRatio != 12.8 {
		t.Errorf("PriceToBookRatio = %v, want 12.8", ratios[0].PriceToBookRatio)
	}
}

func TestMedian(t *testing.T) {
	tests := []struct {
		name     string
		values   []float64
		expected float64
	}{
		{"Empty", nil, 0},
		{"Single", []float64{42}, 42},
		{"Odd count", []float64{10, 30, 20}, 20},
		{"Even count", []float64{10, 20, 30, 40}, 25},
		{"Unsorted", []float64{50, 10, 40, 20, 30}, 30},
		{"Duplicates", []float64{15, 15, 15}, 15},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := median(tt.values); got != tt.expected {
				t.Errorf("median(%v) = %v, want %v", tt.values, got, tt.expected)
			}
		})
	}
}

func TestMedian_DoesNotMutateInput(t *testing.T) {
	values := []float64{30, 10, 20}
	median(values)

	if values[0] != 30 || values[1] != 10 || values[2] != 20 {
		t.Errorf("median should not reorder caller's slice, got %v", values)
	}
}

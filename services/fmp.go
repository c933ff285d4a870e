package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"trade-council/models"
	"trade-council/observability"
)

// FMPService derives sector valuation benchmarks from Financial
// Modeling Prep data. The fundamental gate compares a symbol's P/E
// against the norm for its sector peers.
type FMPService struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	peerSample int
}

// NewFMPService creates a new FMPService instance
func NewFMPService(apiKey string) *FMPService {
	return &FMPService{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    "https://financialmodelingprep.com/api/v3",
		peerSample: 5,
	}
}

// fmpProfileResponse represents a company profile from the FMP API
type fmpProfileResponse struct {
	Symbol            string  `json:"symbol"`
	CompanyName       string  `json:"companyName"`
	Price             float64 `json:"price"`
	Beta              float64 `json:"beta"`
	MktCap            int64   `json:"mktCap"`
	Sector            string  `json:"sector"`
	Industry          string  `json:"industry"`
	Exchange          string  `json:"exchangeShortName"`
	Country           string  `json:"country"`
	IsEtf             bool    `json:"isEtf"`
	IsActivelyTrading bool    `json:"isActivelyTrading"`
}

// fmpScreenerResponse represents a single result from the FMP stock screener API
type fmpScreenerResponse struct {
	Symbol            string `json:"symbol"`
	CompanyName       string `json:"companyName"`
	MarketCap         int64  `json:"marketCap"`
	Sector            string `json:"sector"`
	IsEtf             bool   `json:"isEtf"`
	IsActivelyTrading bool   `json:"isActivelyTrading"`
}

// fmpRatiosResponse represents key ratios from the FMP API
type fmpRatiosResponse struct {
	Symbol           string  `json:"symbol"`
	PERatio          float64 `json:"peRatioTTM"`
	PriceToBookRatio float64 `json:"priceToBookRatioTTM"`
	DividendYield    float64 `json:"dividendYieldTTM"`
	EPS              float64 `json:"netIncomePerShareTTM"`
}

// GetSectorNorms resolves the symbol's sector and returns the median
// trailing P/E across its largest actively traded peers.
func (s *FMPService) GetSectorNorms(ctx context.Context, symbol string) (*models.SectorNorms, error) {
	metrics := observability.GetMetrics()
	metrics.RecordExternalAPIRequest(BreakerFMP, "sector_norms")
	timer := metrics.NewTimer()
	defer timer.ObserveExternalAPI(BreakerFMP, "sector_norms")

	result, err := WithCircuitBreaker(ctx, BreakerFMP, func() (*models.SectorNorms, error) {
		profile, err := s.getProfile(ctx, symbol)
		if err != nil {
			return nil, err
		}
		if profile.Sector == "" {
			return nil, fmt.Errorf("no sector for symbol %s", symbol)
		}

		peers, err := s.screenSector(ctx, profile.Sector, s.peerSample*2)
		if err != nil {
			return nil, err
		}

		var peRatios []float64
		for _, peer := range peers {
			if peer.IsEtf || !peer.IsActivelyTrading {
				continue
			}
			ratios, err := s.getRatios(ctx, peer.Symbol)
			if err != nil {
				// Skip peers with missing ratios; the median survives gaps
				continue
			}
			if ratios.PERatio > 0 {
				peRatios = append(peRatios, ratios.PERatio)
			}
			if len(peRatios) >= s.peerSample {
				break
			}
		}

		if len(peRatios) == 0 {
			return nil, fmt.Errorf("no peer P/E data for sector %s", profile.Sector)
		}

		return &models.SectorNorms{
			Sector:    profile.Sector,
			PERatio:   median(peRatios),
			UpdatedAt: time.Now(),
		}, nil
	})

	if err != nil {
		metrics.RecordExternalAPIError(BreakerFMP, "sector_norms", categorizeAPIError(err))
		return nil, err
	}

	return result, nil
}

// getProfile fetches the company profile for a symbol
func (s *FMPService) getProfile(ctx context.Context, symbol string) (*fmpProfileResponse, error) {
	var profile *fmpProfileResponse

	err := WithRetry(ctx, DefaultRetryConfig, func() error {
		reqURL := fmt.Sprintf("%s/profile/%s?apikey=%s", s.baseURL, url.PathEscape(symbol), s.apiKey)

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return fmt.Errorf("failed to create profile request: %w", err)
		}

		resp, err := s.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("failed to fetch company profile: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("profile API returned status %d", resp.StatusCode)
		}

		var profileResp []fmpProfileResponse
		if err := json.NewDecoder(resp.Body).Decode(&profileResp); err != nil {
			return fmt.Errorf("failed to decode profile response: %w", err)
		}

		if len(profileResp) == 0 {
			return fmt.Errorf("no profile data for symbol %s", symbol)
		}

		profile = &profileResp[0]
		return nil
	})

	if err != nil {
		return nil, err
	}

	return profile, nil
}

// screenSector returns the largest companies in a sector by market cap
func (s *FMPService) screenSector(ctx context.Context, sector string, limit int) ([]fmpScreenerResponse, error) {
	params := url.Values{}
	params.Set("apikey", s.apiKey)
	params.Set("sector", sector)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("isActivelyTrading", "true")

	reqURL := s.baseURL + "/stock-screener?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create screener request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch screener results: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("screener API returned status %d", resp.StatusCode)
	}

	var screenerResp []fmpScreenerResponse
	if err := json.NewDecoder(resp.Body).Decode(&screenerResp); err != nil {
		return nil, fmt.Errorf("failed to decode screener response: %w", err)
	}

	return screenerResp, nil
}

// getRatios fetches trailing-twelve-month ratios for a symbol
func (s *FMPService) getRatios(ctx context.Context, symbol string) (*fmpRatiosResponse, error) {
	reqURL := fmt.Sprintf("%s/ratios-ttm/%s?apikey=%s", s.baseURL, url.PathEscape(symbol), s.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create ratios request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch ratios: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ratios API returned status %d", resp.StatusCode)
	}

	var ratiosResp []fmpRatiosResponse
	if err := json.NewDecoder(resp.Body).Decode(&ratiosResp); err != nil {
		return nil, fmt.Errorf("failed to decode ratios response: %w", err)
	}

	if len(ratiosResp) == 0 {
		return nil, fmt.Errorf("no ratios data for symbol %s", symbol)
	}

	return &ratiosResp[0], nil
}

// median returns the middle value of an unsorted sample
func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"trade-council/observability"
)

// EmbeddingsService calls an OpenAI-compatible embeddings endpoint
type EmbeddingsService struct {
	apiKey     string
	model      string
	httpClient *http.Client
	baseURL    string
}

// NewEmbeddingsService creates a new EmbeddingsService instance
func NewEmbeddingsService(baseURL, apiKey, model string) *EmbeddingsService {
	return &EmbeddingsService{
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
	}
}

// EmbeddingsRequest represents the request to the embeddings endpoint
type EmbeddingsRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

// EmbeddingsResponse represents the response from the embeddings endpoint
type EmbeddingsResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
	Usage struct {
		PromptTokens int `json:"prompt_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
}

// EmbedText produces a vector embedding for the given text
func (s *EmbeddingsService) EmbedText(ctx context.Context, text string) ([]float32, error) {
	metrics := observability.GetMetrics()
	metrics.RecordExternalAPIRequest(BreakerEmbeddings, "embed")
	timer := metrics.NewTimer()

	result, err := WithCircuitBreaker(ctx, BreakerEmbeddings, func() ([]float32, error) {
		reqBody, err := json.Marshal(EmbeddingsRequest{
			Model: s.model,
			Input: text,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal embeddings request: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, "POST", s.baseURL+"/embeddings", bytes.NewReader(reqBody))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+s.apiKey)

		resp, err := s.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch embedding: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return nil, fmt.Errorf("embeddings endpoint returned status %d: %s", resp.StatusCode, string(body))
		}

		var embResp EmbeddingsResponse
		if err := json.NewDecoder(resp.Body).Decode(&embResp); err != nil {
			return nil, fmt.Errorf("failed to decode embeddings response: %w", err)
		}

		if len(embResp.Data) == 0 || len(embResp.Data[0].Embedding) == 0 {
			return nil, fmt.Errorf("empty embedding in response")
		}

		return embResp.Data[0].Embedding, nil
	})

	timer.ObserveExternalAPI(BreakerEmbeddings, "embed")
	if err != nil {
		metrics.RecordExternalAPIError(BreakerEmbeddings, "embed", categorizeAPIError(err))
	}
	return result, err
}

package services

import (
	"encoding/json"
	"testing"
)

func TestNewEmbeddingsService(t *testing.T) {
	service := NewEmbeddingsService("https://api.openai.com/v1", "test-key", "text-embedding-3-small")

	if service == nil {
		t.Fatal("expected service to be created")
	}
	if service.apiKey != "test-key" {
		t.Errorf("apiKey = %s, want test-key", service.apiKey)
	}
	if service.model != "text-embedding-3-small" {
		t.Errorf("model = %s, want text-embedding-3-small", service.model)
	}
	if service.httpClient == nil {
		t.Error("expected HTTP client to be initialized")
	}
	if service.baseURL != "https://api.openai.com/v1" {
		t.Errorf("baseURL = %s", service.baseURL)
	}
}

func TestNewEmbeddingsService_TrailingSlash(t *testing.T) {
	service := NewEmbeddingsService("https://api.openai.com/v1/", "key", "model")

	if service.baseURL != "https://api.openai.com/v1" {
		t.Errorf("expected trailing slash to be trimmed, got %s", service.baseURL)
	}
}

func TestEmbeddingsRequest_Serialization(t *testing.T) {
	req := EmbeddingsRequest{
		Model: "text-embedding-3-small",
		Input: "bull case for semiconductor demand",
	}

	data, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("Failed to marshal EmbeddingsRequest: %v", err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Failed to unmarshal to map: %v", err)
	}

	if raw["model"] != "text-embedding-3-small" {
		t.Errorf("model field = %v", raw["model"])
	}
	if raw["input"] != "bull case for semiconductor demand" {
		t.Errorf("input field = %v", raw["input"])
	}
}

func TestEmbeddingsResponse_Deserialization(t *testing.T) {
	jsonResponse := `{
		"data": [
			{"embedding": [0.01, -0.02, 0.03], "index": 0}
		],
		"model": "text-embedding-3-small",
		"usage": {"prompt_tokens": 8, "total_tokens": 8}
	}`

	var resp EmbeddingsResponse
	if err := json.Unmarshal([]byte(jsonResponse), &resp); err != nil {
		t.Fatalf("Failed to unmarshal EmbeddingsResponse: %v", err)
	}

	if len(resp.Data) != 1 {
		t.Fatalf("Data length = %v, want 1", len(resp.Data))
	}
	if len(resp.Data[0].Embedding) != 3 {
		t.Errorf("Embedding length = %v, want 3", len(resp.Data[0].Embedding))
	}
	if resp.Data[0].Embedding[1] != -0.02 {
		t.Errorf("Embedding[1] = %v, want -0.02", resp.Data[0].Embedding[1])
	}
	if resp.Model != "text-embedding-3-small" {
		t.Errorf("Model = %v", resp.Model)
	}
	if resp.Usage.PromptTokens != 8 {
		t.Errorf("Usage.PromptTokens = %v, want 8", resp.Usage.PromptTokens)
	}
}

func TestEmbeddingsResponse_EmptyData(t *testing.T) {
	jsonResponse := `{"data": [], "model": "text-embedding-3-small"}`

	var resp EmbeddingsResponse
	if err := json.Unmarshal([]byte(jsonResponse), &resp); err != nil {
		t.Fatalf("Failed to unmarshal: %v", err)
	}

	if len(resp.Data) != 0 {
		t.Errorf("Data length = %v, want 0", len(resp.Data))
	}
}

func TestEmbeddingsService_ImplementsEmbedder(t *testing.T) {
	var _ Embedder = &EmbeddingsService{}
}

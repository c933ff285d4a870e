package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"trade-council/observability"
)

// bedrockClient defines the interface for Bedrock API calls (for testing)
type bedrockClient interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// BedrockService drives both reasoning (Claude) and embeddings (Titan)
// through AWS Bedrock
type BedrockService struct {
	client     bedrockClient
	model      string
	embedModel string
	maxTokens  int
}

// ClaudeRequest represents the request format for Claude models via Bedrock
type ClaudeRequest struct {
	AnthropicVersion string          `json:"anthropic_version"`
	MaxTokens        int             `json:"max_tokens"`
	System           string          `json:"system,omitempty"`
	Messages         []ClaudeMessage `json:"messages"`
}

// ClaudeMessage represents a message in the Claude conversation
type ClaudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ClaudeResponse represents the response from Claude models
type ClaudeResponse struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Role    string `json:"role"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// TitanEmbedRequest represents the request format for Titan embedding models
type TitanEmbedRequest struct {
	InputText string `json:"inputText"`
}

// TitanEmbedResponse represents the response from Titan embedding models
type TitanEmbedResponse struct {
	Embedding           []float64 `json:"embedding"`
	InputTextTokenCount int       `json:"inputTextTokenCount"`
}

const anthropicVersion = "bedrock-2023-05-31"

// NewBedrockService creates a new BedrockService instance
func NewBedrockService(ctx context.Context, region, modelID, embedModelID string, maxTokens int) (*BedrockService, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS SDK config: %w", err)
	}

	if maxTokens <= 0 {
		maxTokens = 4096
	}

	return &BedrockService{
		client:     bedrockruntime.NewFromConfig(cfg),
		model:      modelID,
		embedModel: embedModelID,
		maxTokens:  maxTokens,
	}, nil
}

// Name identifies the provider for logging and metrics
func (s *BedrockService) Name() string {
	return BreakerBedrock
}

// Complete sends a system and user prompt to Claude and returns the response text
func (s *BedrockService) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	metrics := observability.GetMetrics()
	metrics.RecordExternalAPIRequest(BreakerBedrock, "complete")
	timer := metrics.NewTimer()

	result, err := WithCircuitBreaker(ctx, BreakerBedrock, func() (string, error) {
		request := ClaudeRequest{
			AnthropicVersion: anthropicVersion,
			MaxTokens:        s.maxTokens,
			System:           systemPrompt,
			Messages: []ClaudeMessage{
				{Role: "user", Content: userPrompt},
			},
		}

		reqBody, err := json.Marshal(request)
		if err != nil {
			return "", fmt.Errorf("failed to marshal request: %w", err)
		}

		output, err := s.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
			ModelId:     aws.String(s.model),
			Body:        reqBody,
			ContentType: aws.String("application/json"),
		})
		if err != nil {
			return "", fmt.Errorf("failed to invoke model: %w", err)
		}

		var response ClaudeResponse
		if err := json.Unmarshal(output.Body, &response); err != nil {
			return "", fmt.Errorf("failed to unmarshal response: %w", err)
		}

		if len(response.Content) == 0 {
			return "", fmt.Errorf("empty response from model")
		}

		return response.Content[0].Text, nil
	})

	timer.ObserveExternalAPI(BreakerBedrock, "complete")
	if err != nil {
		metrics.RecordExternalAPIError(BreakerBedrock, "complete", categorizeAPIError(err))
	}
	return result, err
}

// EmbedText produces a vector embedding for the given text via Titan
func (s *BedrockService) EmbedText(ctx context.Context, text string) ([]float32, error) {
	metrics := observability.GetMetrics()
	metrics.RecordExternalAPIRequest(BreakerBedrock, "embed")
	timer := metrics.NewTimer()

	result, err := WithCircuitBreaker(ctx, BreakerBedrock, func() ([]float32, error) {
		reqBody, err := json.Marshal(TitanEmbedRequest{InputText: text})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal embed request: %w", err)
		}

		output, err := s.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
			ModelId:     aws.String(s.embedModel),
			Body:        reqBody,
			ContentType: aws.String("application/json"),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to invoke embed model: %w", err)
		}

		var response TitanEmbedResponse
		if err := json.Unmarshal(output.Body, &response); err != nil {
			return nil, fmt.Errorf("failed to unmarshal embed response: %w", err)
		}

		if len(response.Embedding) == 0 {
			return nil, fmt.Errorf("empty embedding from model")
		}

		embedding := make([]float32, len(response.Embedding))
		for i, v := range response.Embedding {
			embedding[i] = float32(v)
		}
		return embedding, nil
	})

	timer.ObserveExternalAPI(BreakerBedrock, "embed")
	if err != nil {
		metrics.RecordExternalAPIError(BreakerBedrock, "embed", categorizeAPIError(err))
	}
	return result, err
}

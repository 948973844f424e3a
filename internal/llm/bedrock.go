// AWS Bedrock provider for Claude models, using the InvokeModel API with the
// Anthropic messages body.

package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

const (
	bedrockAnthropicVersion = "bedrock-2023-05-31"
	defaultAWSRegion        = "us-east-1"
)

type bedrockRequest struct {
	AnthropicVersion string        `json:"anthropic_version"`
	MaxTokens        int           `json:"max_tokens"`
	Temperature      float32       `json:"temperature"`
	Messages         []ChatMessage `json:"messages"`
	System           string        `json:"system,omitempty"`
}

type bedrockResponse struct {
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

// BedrockProvider implements Provider over bedrockruntime.
type BedrockProvider struct {
	client      *bedrockruntime.Client
	model       string
	maxTokens   int
	temperature float32
}

// NewBedrockProvider loads AWS configuration from the default credential
// chain.
func NewBedrockProvider(ctx context.Context, region, model string, maxTokens uint32, temperature float32) (*BedrockProvider, error) {
	if region == "" {
		region = defaultAWSRegion
	}
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &BedrockProvider{
		client:      bedrockruntime.NewFromConfig(cfg),
		model:       model,
		maxTokens:   int(maxTokens),
		temperature: temperature,
	}, nil
}

func (p *BedrockProvider) Name() string {
	return "bedrock"
}

func (p *BedrockProvider) Model() string {
	return p.model
}

func (p *BedrockProvider) Chat(ctx context.Context, messages []ChatMessage) (LLMResponse, error) {
	return p.ChatWithFormat(ctx, messages, nil)
}

func (p *BedrockProvider) ChatWithFormat(ctx context.Context, messages []ChatMessage, format *ResponseFormat) (LLMResponse, error) {
	body, err := encodeBedrockRequest(messages, format, p.maxTokens, p.temperature)
	if err != nil {
		return LLMResponse{}, err
	}

	output, err := p.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(p.model),
		Body:        body,
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
	})
	if err != nil {
		return LLMResponse{}, fmt.Errorf("bedrock invoke failed: %w", err)
	}

	return decodeBedrockResponse(output.Body)
}

func encodeBedrockRequest(messages []ChatMessage, format *ResponseFormat, maxTokens int, temperature float32) ([]byte, error) {
	system, turns := splitSystem(messages)
	if format.wantsJSON() {
		system += "\n\nRespond with a single JSON object and nothing else."
	}
	body, err := json.Marshal(bedrockRequest{
		AnthropicVersion: bedrockAnthropicVersion,
		MaxTokens:        maxTokens,
		Temperature:      temperature,
		Messages:         turns,
		System:           system,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	return body, nil
}

func decodeBedrockResponse(body []byte) (LLMResponse, error) {
	var response bedrockResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return LLMResponse{}, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	var text string
	for _, content := range response.Content {
		if content.Type == "text" {
			text += content.Text
		}
	}

	return LLMResponse{
		Content: text,
		Usage: &TokenUsage{
			PromptTokens:     uint32(response.Usage.InputTokens),
			CompletionTokens: uint32(response.Usage.OutputTokens),
			TotalTokens:      uint32(response.Usage.InputTokens + response.Usage.OutputTokens),
		},
	}, nil
}

var _ Provider = (*BedrockProvider)(nil)

// Ollama provider for locally hosted models.

package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ollama/ollama/api"
)

const defaultOllamaHost = "http://localhost:11434"

var ollamaJSONFormat = json.RawMessage(`"json"`)

// OllamaProvider implements Provider against an Ollama server.
type OllamaProvider struct {
	client      *api.Client
	host        string
	model       string
	maxTokens   int
	temperature float32
}

// NewOllamaProvider creates a provider. An empty or unparsable hostURL falls
// back to the local default.
func NewOllamaProvider(hostURL, model string, maxTokens uint32, temperature float32) *OllamaProvider {
	if hostURL == "" {
		hostURL = defaultOllamaHost
	}
	parsed, err := url.Parse(hostURL)
	if err != nil || parsed.Host == "" {
		hostURL = defaultOllamaHost
		parsed, _ = url.Parse(defaultOllamaHost)
	}

	return &OllamaProvider{
		client:      api.NewClient(parsed, http.DefaultClient),
		host:        hostURL,
		model:       model,
		maxTokens:   int(maxTokens),
		temperature: temperature,
	}
}

func (p *OllamaProvider) Name() string {
	return "ollama"
}

func (p *OllamaProvider) Model() string {
	return p.model
}

// Host returns the Ollama server URL in use.
func (p *OllamaProvider) Host() string {
	return p.host
}

func (p *OllamaProvider) Chat(ctx context.Context, messages []ChatMessage) (LLMResponse, error) {
	return p.ChatWithFormat(ctx, messages, nil)
}

func (p *OllamaProvider) ChatWithFormat(ctx context.Context, messages []ChatMessage, format *ResponseFormat) (LLMResponse, error) {
	ollamaMessages := make([]api.Message, len(messages))
	for i, msg := range messages {
		ollamaMessages[i] = api.Message{Role: msg.Role, Content: msg.Content}
	}

	stream := false
	req := &api.ChatRequest{
		Model:    p.model,
		Messages: ollamaMessages,
		Stream:   &stream,
		Options: map[string]any{
			"temperature": p.temperature,
			"num_predict": p.maxTokens,
		},
	}
	if format.wantsJSON() {
		req.Format = ollamaJSONFormat
	}

	var response api.ChatResponse
	err := p.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		response = resp
		return nil
	})
	if err != nil {
		return LLMResponse{}, fmt.Errorf("ollama chat failed: %w", err)
	}

	var usage *TokenUsage
	if response.PromptEvalCount > 0 || response.EvalCount > 0 {
		usage = &TokenUsage{
			PromptTokens:     uint32(response.PromptEvalCount),
			CompletionTokens: uint32(response.EvalCount),
			TotalTokens:      uint32(response.PromptEvalCount + response.EvalCount),
		}
	}

	return LLMResponse{Content: response.Message.Content, Usage: usage}, nil
}

var _ Provider = (*OllamaProvider)(nil)

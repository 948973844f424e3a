package llm

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// ProviderType identifies a supported backend.
type ProviderType int

const (
	ProviderMistral ProviderType = iota
	ProviderOpenAI
	ProviderAnthropic
	ProviderGemini
	ProviderOllama
	ProviderBedrock
	ProviderMock
)

func (p ProviderType) String() string {
	switch p {
	case ProviderMistral:
		return "mistral"
	case ProviderOpenAI:
		return "openai"
	case ProviderAnthropic:
		return "anthropic"
	case ProviderGemini:
		return "gemini"
	case ProviderOllama:
		return "ollama"
	case ProviderBedrock:
		return "bedrock"
	case ProviderMock:
		return "mock"
	default:
		return "unknown"
	}
}

// EnvVar returns the environment variable holding the API key. Ollama,
// Bedrock and the mock need none; Bedrock uses the AWS credential chain.
func (p ProviderType) EnvVar() string {
	switch p {
	case ProviderMistral:
		return "MISTRAL_API_KEY"
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	case ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	case ProviderGemini:
		return "GEMINI_API_KEY"
	default:
		return ""
	}
}

func (p ProviderType) DefaultModel() string {
	switch p {
	case ProviderMistral:
		return ModelMistralSmall
	case ProviderOpenAI:
		return ModelOpenAIGPT4oMini
	case ProviderAnthropic:
		return ModelAnthropicClaudeSonnet4
	case ProviderGemini:
		return ModelGeminiFlash25
	case ProviderOllama:
		return ModelOllamaLlama32
	case ProviderBedrock:
		return ModelBedrockClaudeSonnet4
	case ProviderMock:
		return "mock-scorer"
	default:
		return ""
	}
}

// ParseProviderType parses a provider name (case-insensitive).
func ParseProviderType(s string) (ProviderType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "mistral":
		return ProviderMistral, nil
	case "openai", "gpt":
		return ProviderOpenAI, nil
	case "anthropic", "claude":
		return ProviderAnthropic, nil
	case "gemini", "google":
		return ProviderGemini, nil
	case "ollama", "local":
		return ProviderOllama, nil
	case "bedrock", "aws":
		return ProviderBedrock, nil
	case "mock":
		return ProviderMock, nil
	default:
		return 0, fmt.Errorf("unknown provider: %s", s)
	}
}

// MissingKeyError reports that a provider's API key variable is unset.
type MissingKeyError struct {
	Provider ProviderType
	EnvVar   string
}

func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("%s: %s environment variable not set", e.Provider, e.EnvVar)
}

// ProviderBuilder configures a provider before construction.
type ProviderBuilder struct {
	providerType ProviderType
	model        string
	baseURL      string
	region       string
	maxTokens    uint32
	temperature  *float32
}

func NewProviderBuilder(providerType ProviderType) *ProviderBuilder {
	return &ProviderBuilder{providerType: providerType}
}

func (b *ProviderBuilder) Model(model string) *ProviderBuilder {
	b.model = model
	return b
}

// BaseURL overrides the API endpoint. For Ollama it is the server URL.
func (b *ProviderBuilder) BaseURL(url string) *ProviderBuilder {
	b.baseURL = url
	return b
}

// Region sets the AWS region used by the Bedrock provider.
func (b *ProviderBuilder) Region(region string) *ProviderBuilder {
	b.region = region
	return b
}

func (b *ProviderBuilder) MaxTokens(tokens uint32) *ProviderBuilder {
	b.maxTokens = tokens
	return b
}

func (b *ProviderBuilder) Temperature(temp float32) *ProviderBuilder {
	b.temperature = &temp
	return b
}

// FromEnv builds the provider, reading the API key from the environment.
func (b *ProviderBuilder) FromEnv(ctx context.Context) (Provider, error) {
	envVar := b.providerType.EnvVar()
	if envVar == "" {
		return b.build(ctx, "")
	}
	apiKey := os.Getenv(envVar)
	if apiKey == "" {
		return nil, &MissingKeyError{Provider: b.providerType, EnvVar: envVar}
	}
	return b.build(ctx, apiKey)
}

// APIKey builds the provider with an explicit API key.
func (b *ProviderBuilder) APIKey(ctx context.Context, key string) (Provider, error) {
	return b.build(ctx, key)
}

func (b *ProviderBuilder) build(ctx context.Context, apiKey string) (Provider, error) {
	model := b.model
	if model == "" {
		model = b.providerType.DefaultModel()
	}

	maxTokens := b.maxTokens
	if maxTokens == 0 {
		maxTokens = 1024
	}

	temperature := float32(0.3)
	if b.temperature != nil {
		temperature = *b.temperature
	}

	switch b.providerType {
	case ProviderMistral:
		baseURL := b.baseURL
		if baseURL == "" {
			baseURL = mistralBaseURL
		}
		return NewOpenAICompatibleProvider("mistral", apiKey, baseURL, model, maxTokens, temperature), nil
	case ProviderOpenAI:
		return NewOpenAICompatibleProvider("openai", apiKey, b.baseURL, model, maxTokens, temperature), nil
	case ProviderAnthropic:
		return NewAnthropicProvider(apiKey, b.baseURL, model, maxTokens, temperature), nil
	case ProviderGemini:
		return NewGeminiProvider(ctx, apiKey, model, maxTokens, temperature), nil
	case ProviderOllama:
		return NewOllamaProvider(b.baseURL, model, maxTokens, temperature), nil
	case ProviderBedrock:
		return NewBedrockProvider(ctx, b.region, model, maxTokens, temperature)
	case ProviderMock:
		return NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("unknown provider type: %v", b.providerType)
	}
}

// Model identifiers.
const (
	ModelMistralSmall           = "mistral-small-latest"
	ModelMistralLarge           = "mistral-large-latest"
	ModelOpenAIGPT4oMini        = "gpt-4o-mini"
	ModelAnthropicClaudeSonnet4 = "claude-sonnet-4-20250514"
	ModelGeminiFlash25          = "gemini-2.5-flash"
	ModelOllamaLlama32          = "llama3.2"
	ModelBedrockClaudeSonnet4   = "anthropic.claude-sonnet-4-20250514-v1:0"
)

package llm

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProviderType(t *testing.T) {
	tests := []struct {
		in      string
		want    ProviderType
		wantErr bool
	}{
		{"", ProviderMistral, false},
		{"Mistral", ProviderMistral, false},
		{"claude", ProviderAnthropic, false},
		{" gemini ", ProviderGemini, false},
		{"local", ProviderOllama, false},
		{"aws", ProviderBedrock, false},
		{"mock", ProviderMock, false},
		{"cohere", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseProviderType(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFromEnvMissingKey(t *testing.T) {
	t.Setenv("MISTRAL_API_KEY", "")
	_, err := NewProviderBuilder(ProviderMistral).FromEnv(context.Background())
	var mk *MissingKeyError
	require.ErrorAs(t, err, &mk)
	assert.Equal(t, "MISTRAL_API_KEY", mk.EnvVar)
}

func TestBuilderDefaults(t *testing.T) {
	t.Setenv("MISTRAL_API_KEY", "test-key")
	p, err := NewProviderBuilder(ProviderMistral).FromEnv(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "mistral", p.Name())
	assert.Equal(t, ModelMistralSmall, p.Model())

	p, err = NewProviderBuilder(ProviderOllama).Model("phi4").FromEnv(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "phi4", p.Model())
	assert.Equal(t, defaultOllamaHost, p.(*OllamaProvider).Host())

	p, err = NewProviderBuilder(ProviderMock).FromEnv(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "mock", p.Name())
}

func TestSplitSystem(t *testing.T) {
	system, turns := splitSystem([]ChatMessage{
		SystemMessage("one"),
		UserMessage("hi"),
		SystemMessage("two"),
		AssistantMessage("hello"),
	})
	assert.Equal(t, "one\n\ntwo", system)
	require.Len(t, turns, 2)
	assert.Equal(t, RoleUser, turns[0].Role)
	assert.Equal(t, RoleAssistant, turns[1].Role)
}

func TestMockProviderScoresDeterministically(t *testing.T) {
	p := NewMockProvider()
	msgs := []ChatMessage{
		SystemMessage("score it"),
		UserMessage("Question: conflict\n<answer>The situation was a missed deadline. My task was to recover it. " +
			"I took action by splitting the work, and the result was shipping 2 days early.</answer>"),
	}

	first, err := p.ChatWithFormat(context.Background(), msgs, NewJSONObjectFormat())
	require.NoError(t, err)
	second, err := p.Chat(context.Background(), msgs)
	require.NoError(t, err)
	assert.Equal(t, first.Content, second.Content)
	assert.Equal(t, 2, p.Calls())

	var got mockAnalysis
	require.NoError(t, json.Unmarshal([]byte(first.Content), &got))
	assert.Equal(t, 8, got.Score)
	assert.NotEmpty(t, got.Strengths)
	assert.NotNil(t, first.Usage)
}

func TestMockProviderShortAnswerScoresLow(t *testing.T) {
	resp, err := NewMockProvider().Chat(context.Background(), []ChatMessage{UserMessage("<answer>dunno</answer>")})
	require.NoError(t, err)

	var got mockAnalysis
	require.NoError(t, json.Unmarshal([]byte(resp.Content), &got))
	assert.Equal(t, 3, got.Score)
	assert.Contains(t, got.Weaknesses, "Answer is too brief to demonstrate experience")
}

func TestMockProviderFailures(t *testing.T) {
	p := NewMockProvider(WithFailures(2))
	for i := 0; i < 2; i++ {
		_, err := p.Chat(context.Background(), []ChatMessage{UserMessage("x")})
		assert.True(t, errors.Is(err, ErrMockFailure))
	}
	_, err := p.Chat(context.Background(), []ChatMessage{UserMessage("x")})
	assert.NoError(t, err)
}

func TestMockProviderLatencyHonoursContext(t *testing.T) {
	p := NewMockProvider(WithLatency(time.Second))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := p.Chat(ctx, []ChatMessage{UserMessage("x")})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMockProviderRawResponse(t *testing.T) {
	p := NewMockProvider(WithRawResponse("not json at all"))
	resp, err := p.Chat(context.Background(), []ChatMessage{UserMessage("x")})
	require.NoError(t, err)
	assert.Equal(t, "not json at all", resp.Content)
}

type fakeRecorder struct {
	mu       sync.Mutex
	statuses []string
	prompt   uint32
}

func (f *fakeRecorder) ObserveLLMRequest(_, _, status string, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, status)
}

func (f *fakeRecorder) AddLLMTokens(_ string, prompt, _ uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompt += prompt
}

func TestInstrument(t *testing.T) {
	rec := &fakeRecorder{}
	p := Instrument(NewMockProvider(WithFailures(1)), rec)

	_, err := p.Chat(context.Background(), []ChatMessage{UserMessage("<answer>one two three</answer>")})
	assert.Error(t, err)
	_, err = p.Chat(context.Background(), []ChatMessage{UserMessage("<answer>one two three</answer>")})
	assert.NoError(t, err)

	assert.Equal(t, []string{"error", "ok"}, rec.statuses)
	assert.Greater(t, rec.prompt, uint32(0))
	assert.Equal(t, "mock", p.Name())
}

func TestInstrumentNilRecorder(t *testing.T) {
	p := NewMockProvider()
	assert.Same(t, p, Instrument(p, nil))
}

func TestBedrockRequestEncoding(t *testing.T) {
	body, err := encodeBedrockRequest([]ChatMessage{
		SystemMessage("rubric"),
		UserMessage("answer"),
	}, NewJSONObjectFormat(), 512, 0.2)
	require.NoError(t, err)

	var req bedrockRequest
	require.NoError(t, json.Unmarshal(body, &req))
	assert.Equal(t, bedrockAnthropicVersion, req.AnthropicVersion)
	assert.Equal(t, 512, req.MaxTokens)
	assert.True(t, strings.HasPrefix(req.System, "rubric"))
	assert.Contains(t, req.System, "JSON")
	require.Len(t, req.Messages, 1)
	assert.Equal(t, RoleUser, req.Messages[0].Role)
}

func TestBedrockResponseDecoding(t *testing.T) {
	resp, err := decodeBedrockResponse([]byte(`{
		"content":[{"type":"text","text":"{\"score\":"},{"type":"tool_use"},{"type":"text","text":"7}"}],
		"stop_reason":"end_turn",
		"usage":{"input_tokens":10,"output_tokens":4}
	}`))
	require.NoError(t, err)
	assert.Equal(t, `{"score":7}`, resp.Content)
	assert.Equal(t, uint32(14), resp.Usage.TotalTokens)

	_, err = decodeBedrockResponse([]byte("nope"))
	assert.Error(t, err)
}

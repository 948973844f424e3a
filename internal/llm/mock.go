package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"
	"unicode"
)

// ErrMockFailure is returned by a MockProvider configured to fail.
var ErrMockFailure = errors.New("mock provider failure")

// MockProvider is a deterministic offline scorer. It reads the candidate
// answer from the prompt (between <answer> tags when present) and scores it
// on length, structure and concrete detail, so repeated runs give identical
// feedback.
type MockProvider struct {
	failFirst int64
	calls     atomic.Int64
	raw       string
	latency   time.Duration
}

type MockOption func(*MockProvider)

// WithFailures makes the first n calls return ErrMockFailure.
func WithFailures(n int) MockOption {
	return func(p *MockProvider) { p.failFirst = int64(n) }
}

// WithRawResponse makes every call return content verbatim instead of a
// computed analysis.
func WithRawResponse(content string) MockOption {
	return func(p *MockProvider) { p.raw = content }
}

// WithLatency delays every call, honouring context cancellation.
func WithLatency(d time.Duration) MockOption {
	return func(p *MockProvider) { p.latency = d }
}

func NewMockProvider(opts ...MockOption) *MockProvider {
	p := &MockProvider{}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *MockProvider) Name() string  { return "mock" }
func (p *MockProvider) Model() string { return ProviderMock.DefaultModel() }

// Calls returns how many requests the provider has received.
func (p *MockProvider) Calls() int {
	return int(p.calls.Load())
}

func (p *MockProvider) Chat(ctx context.Context, messages []ChatMessage) (LLMResponse, error) {
	return p.ChatWithFormat(ctx, messages, nil)
}

func (p *MockProvider) ChatWithFormat(ctx context.Context, messages []ChatMessage, _ *ResponseFormat) (LLMResponse, error) {
	n := p.calls.Add(1)

	if p.latency > 0 {
		timer := time.NewTimer(p.latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return LLMResponse{}, ctx.Err()
		case <-timer.C:
		}
	}
	if err := ctx.Err(); err != nil {
		return LLMResponse{}, err
	}
	if n <= p.failFirst {
		return LLMResponse{}, fmt.Errorf("call %d: %w", n, ErrMockFailure)
	}

	if p.raw != "" {
		return LLMResponse{Content: p.raw, Usage: mockUsage(messages, p.raw)}, nil
	}

	answer := extractAnswer(messages)
	content, err := json.Marshal(scoreAnswer(answer))
	if err != nil {
		return LLMResponse{}, err
	}
	return LLMResponse{Content: string(content), Usage: mockUsage(messages, string(content))}, nil
}

type mockAnalysis struct {
	Score      int      `json:"score"`
	Strengths  []string `json:"strengths"`
	Weaknesses []string `json:"weaknesses"`
	Tips       []string `json:"tips"`
	Summary    string   `json:"summary"`
}

var starMarkers = []string{"situation", "task", "action", "result"}

func scoreAnswer(answer string) mockAnalysis {
	words := strings.Fields(answer)
	lower := strings.ToLower(answer)

	a := mockAnalysis{Score: 3}

	switch {
	case len(words) >= 120:
		a.Score += 3
		a.Strengths = append(a.Strengths, "Thorough, well-developed answer")
	case len(words) >= 50:
		a.Score += 2
		a.Strengths = append(a.Strengths, "Good level of detail")
	case len(words) >= 20:
		a.Score++
	default:
		a.Weaknesses = append(a.Weaknesses, "Answer is too brief to demonstrate experience")
		a.Tips = append(a.Tips, "Expand with a specific example from your own work")
	}

	star := 0
	for _, m := range starMarkers {
		if strings.Contains(lower, m) {
			star++
		}
	}
	if star >= 3 {
		a.Score += 2
		a.Strengths = append(a.Strengths, "Clear situation, action and result structure")
	} else {
		a.Tips = append(a.Tips, "Structure the story as Situation, Task, Action, Result")
	}

	if strings.IndexFunc(answer, unicode.IsDigit) >= 0 {
		a.Score++
		a.Strengths = append(a.Strengths, "Quantifies impact")
	} else {
		a.Weaknesses = append(a.Weaknesses, "No measurable outcome mentioned")
		a.Tips = append(a.Tips, "Add numbers that show the impact of your work")
	}

	if strings.Contains(lower, " i ") || strings.HasPrefix(lower, "i ") {
		a.Score++
	} else {
		a.Weaknesses = append(a.Weaknesses, "Unclear what you personally contributed")
	}

	if a.Score > 10 {
		a.Score = 10
	}
	a.Summary = fmt.Sprintf("Scored %d/10 on structure, detail and impact.", a.Score)
	return a
}

func extractAnswer(messages []ChatMessage) string {
	var last string
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			last = messages[i].Content
			break
		}
	}
	start := strings.Index(last, "<answer>")
	end := strings.LastIndex(last, "</answer>")
	if start >= 0 && end > start {
		return strings.TrimSpace(last[start+len("<answer>") : end])
	}
	return last
}

func mockUsage(messages []ChatMessage, completion string) *TokenUsage {
	var prompt int
	for _, m := range messages {
		prompt += len(strings.Fields(m.Content))
	}
	out := len(strings.Fields(completion))
	return &TokenUsage{
		PromptTokens:     uint32(prompt),
		CompletionTokens: uint32(out),
		TotalTokens:      uint32(prompt + out),
	}
}

var _ Provider = (*MockProvider)(nil)

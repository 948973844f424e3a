package llm

import (
	"context"
	"time"
)

// Recorder receives per-request telemetry. internal/metrics implements it
// with Prometheus collectors.
type Recorder interface {
	ObserveLLMRequest(provider, model, status string, elapsed time.Duration)
	AddLLMTokens(provider string, prompt, completion uint32)
}

// Instrument wraps p so every call is reported to rec. A nil recorder
// returns p unchanged.
func Instrument(p Provider, rec Recorder) Provider {
	if rec == nil {
		return p
	}
	return &instrumented{Provider: p, rec: rec}
}

type instrumented struct {
	Provider
	rec Recorder
}

func (i *instrumented) Chat(ctx context.Context, messages []ChatMessage) (LLMResponse, error) {
	return i.ChatWithFormat(ctx, messages, nil)
}

func (i *instrumented) ChatWithFormat(ctx context.Context, messages []ChatMessage, format *ResponseFormat) (LLMResponse, error) {
	start := time.Now()
	resp, err := i.Provider.ChatWithFormat(ctx, messages, format)

	status := "ok"
	switch {
	case err == nil:
	case ctx.Err() != nil:
		status = "canceled"
	default:
		status = "error"
	}
	i.rec.ObserveLLMRequest(i.Name(), i.Model(), status, time.Since(start))
	if resp.Usage != nil {
		i.rec.AddLLMTokens(i.Name(), resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	}
	return resp, err
}

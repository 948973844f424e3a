package analysis

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/lunar-stra95/coach-coral-mistral/internal/llm"
)

const (
	SourceLLM      = "llm"
	SourceFallback = "fallback"
)

// Redactor scrubs personal data from answers before they leave the process.
type Redactor interface {
	RedactAnswer(text string) string
}

// Recorder counts analyses by source.
type Recorder interface {
	ObserveAnalysis(source string)
}

type Options struct {
	RetryDelay time.Duration
	Timeout    time.Duration
	// MaxAnswerTokens bounds the answer sent to the model. Zero disables it.
	MaxAnswerTokens int
	Redactor        Redactor
	Tokens          *TokenBudget
	Recorder        Recorder
}

// Analyzer runs the scoring pipeline against a provider.
type Analyzer struct {
	provider llm.Provider
	opts     Options
}

func NewAnalyzer(provider llm.Provider, opts Options) *Analyzer {
	return &Analyzer{provider: provider, opts: opts}
}

func (a *Analyzer) Provider() llm.Provider {
	return a.provider
}

// Analyze scores one answer. A failed call or unparsable reply is retried
// once after RetryDelay; if that also fails the canned Fallback is
// returned. Only an empty answer or a cancelled context produce an error.
func (a *Analyzer) Analyze(ctx context.Context, req Request) (Analysis, error) {
	if strings.TrimSpace(req.Answer) == "" {
		return Analysis{}, ErrEmptyAnswer
	}

	prepared := req
	if a.opts.Redactor != nil {
		prepared.Answer = a.opts.Redactor.RedactAnswer(prepared.Answer)
	}
	prepared.Answer = a.opts.Tokens.Truncate(prepared.Answer, a.opts.MaxAnswerTokens)
	messages := BuildPrompt(prepared)

	result, err := a.attempt(ctx, messages)
	if err != nil {
		log.Printf("analysis attempt failed (%s), retrying in %v: %v", a.provider.Name(), a.opts.RetryDelay, err)
		if werr := sleep(ctx, a.opts.RetryDelay); werr != nil {
			return Analysis{}, werr
		}
		result, err = a.attempt(ctx, messages)
	}
	if err != nil {
		if ctx.Err() != nil {
			return Analysis{}, ctx.Err()
		}
		log.Printf("analysis retry failed (%s), using fallback: %v", a.provider.Name(), err)
		a.record(SourceFallback)
		return Fallback(req), nil
	}

	result.Provider = a.provider.Name()
	result.Model = a.provider.Model()
	a.record(SourceLLM)
	return result, nil
}

func (a *Analyzer) attempt(ctx context.Context, messages []llm.ChatMessage) (Analysis, error) {
	callCtx := ctx
	if a.opts.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, a.opts.Timeout)
		defer cancel()
	}

	resp, err := a.provider.ChatWithFormat(callCtx, messages, llm.NewJSONObjectFormat())
	if err != nil {
		return Analysis{}, err
	}
	result, err := Parse(resp.Content)
	if err != nil {
		return Analysis{}, fmt.Errorf("parse model output: %w", err)
	}
	return result, nil
}

func (a *Analyzer) record(source string) {
	if a.opts.Recorder != nil {
		a.opts.Recorder.ObserveAnalysis(source)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

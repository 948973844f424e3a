package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lunar-stra95/coach-coral-mistral/internal/analysis"
	"github.com/lunar-stra95/coach-coral-mistral/internal/config"
	"github.com/lunar-stra95/coach-coral-mistral/internal/interview"
	"github.com/lunar-stra95/coach-coral-mistral/internal/llm"
	"github.com/lunar-stra95/coach-coral-mistral/internal/questions"
)

func TestProviderErrorMissingKey(t *testing.T) {
	err := providerError(&llm.MissingKeyError{Provider: llm.ProviderMistral, EnvVar: "MISTRAL_API_KEY"})

	var ue *UserError
	require.True(t, errors.As(err, &ue))
	assert.Contains(t, ue.Message, "mistral")
	assert.Contains(t, ue.Suggestion, "MISTRAL_API_KEY")
	assert.Contains(t, ue.Suggestion, "--mock")

	var mk *llm.MissingKeyError
	assert.True(t, errors.As(err, &mk), "cause should stay reachable")
}

func TestFormatUserError(t *testing.T) {
	out := FormatUserError(&UserError{Message: "bad thing", Cause: errors.New("root"), Suggestion: "do this"})
	assert.Contains(t, out, "bad thing")
	assert.Contains(t, out, "Cause: root")
	assert.Contains(t, out, "Suggestion:")

	out = FormatUserError(errors.New("listen tcp :8080: bind: address already in use"))
	assert.Contains(t, out, "--port")

	out = FormatUserError(errors.New("something odd"))
	assert.NotContains(t, out, "Suggestion")
}

func TestPrintQuestions(t *testing.T) {
	bank := questions.DefaultBank()
	var buf bytes.Buffer
	require.NoError(t, printQuestions(&buf, bank.Filter(questions.Behavioral, nil)))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "ID"))
	assert.Contains(t, out, "teammate-conflict")
	assert.Contains(t, out, "questions\n")
}

func TestReadAll(t *testing.T) {
	got, err := readAll(strings.NewReader("  I shipped it.\n\n"))
	require.NoError(t, err)
	assert.Equal(t, "I shipped it.", got)
}

func TestBuildCoreMockAnalyze(t *testing.T) {
	cfg := config.Default()
	cfg.LLM.RetryDelay = 0

	c, err := buildCore(context.Background(), cfg, true, nil)
	require.NoError(t, err)
	assert.Equal(t, "mock", c.provider.Name())
	assert.Equal(t, questions.DefaultBank().Len(), c.bank.Len())

	a, err := c.coach.AnalyzeOnce(context.Background(), analysis.Request{
		QuestionID: "teammate-conflict",
		Answer: "The situation was a disagreement over an API design. My task was to unblock the team. " +
			"I set up a short design review and we agreed on a versioned endpoint. As a result we shipped on time.",
	})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, a.Score, 1)
	assert.LessOrEqual(t, a.Score, 10)
	assert.Equal(t, 1, c.health.Snapshot().TotalAnalyses)

	_, err = c.coach.AnalyzeOnce(context.Background(), analysis.Request{QuestionID: "nope", Answer: "x"})
	assert.ErrorIs(t, err, interview.ErrUnknownQuestion)

	var buf bytes.Buffer
	printAnalysis(&buf, a)
	assert.Contains(t, buf.String(), "/10")
}

func TestBuildCoreMissingQuestionFile(t *testing.T) {
	cfg := config.Default()
	cfg.Questions.File = t.TempDir() + "/missing.yaml"
	_, err := buildCore(context.Background(), cfg, true, nil)
	require.Error(t, err)
	assert.Contains(t, FormatUserError(err), "questions.file")
}

package analysis

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lunar-stra95/coach-coral-mistral/internal/llm"
	"github.com/lunar-stra95/coach-coral-mistral/internal/questions"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantScore int
		wantErr   bool
	}{
		{"integer", `{"score": 7, "strengths": ["clear"]}`, 7, false},
		{"float rounds", `{"score": 6.6}`, 7, false},
		{"numeric string", `{"score": "8"}`, 8, false},
		{"fraction", `{"score": "7/10"}`, 7, false},
		{"fraction other scale", `{"score": "4/5"}`, 8, false},
		{"clamp high", `{"score": 14}`, 10, false},
		{"clamp low", `{"score": -2}`, 0, false},
		{"clamp huge", `{"score": 1e20}`, 10, false},
		{"clamp huge negative", `{"score": -1e20}`, 0, false},
		{"infinity string", `{"score": "Inf"}`, 10, false},
		{"huge fraction", `{"score": "9999999999999999999999/10"}`, 10, false},
		{"NaN string", `{"score": "NaN"}`, 0, true},
		{"overall_score alias", `{"overall_score": 5}`, 5, false},
		{"fenced", "```json\n{\"score\": 9}\n```", 9, false},
		{"prose wrapped", `Here is my evaluation: {"score": 4, "summary": "ok"} Thanks`, 4, false},
		{"missing score", `{"strengths": ["a"]}`, 0, true},
		{"null score", `{"score": null}`, 0, true},
		{"garbage score", `{"score": "great"}`, 0, true},
		{"no json", `I think the answer was fine.`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantScore, got.Score)
			assert.False(t, got.Fallback)
		})
	}
}

func TestParseLists(t *testing.T) {
	got, err := Parse(`{
		"score": 6,
		"strengths": ["a", "", "  b  ", "c", "d", "e", "f", "g"],
		"weaknesses": "single weakness",
		"improvements": ["more numbers"],
		"suggestions": ["practice"],
		"feedback": "Solid answer."
	}`)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, got.Strengths)
	assert.Equal(t, []string{"single weakness", "more numbers"}, got.Weaknesses)
	assert.Equal(t, []string{"practice"}, got.Tips)
	assert.Equal(t, "Solid answer.", got.Summary)
}

func TestFallback(t *testing.T) {
	tests := []struct {
		words int
		want  int
	}{
		{1, 3},
		{19, 3},
		{20, 5},
		{59, 5},
		{60, 6},
		{300, 6},
	}
	for _, tt := range tests {
		req := Request{Category: questions.Behavioral, Answer: strings.Repeat("word ", tt.words)}
		got := Fallback(req)
		assert.Equal(t, tt.want, got.Score, "words=%d", tt.words)
		assert.True(t, got.Fallback)
		assert.Contains(t, got.Tips[0], "STAR")
	}

	tech := Fallback(Request{Category: questions.Technical, Answer: "short"})
	assert.NotContains(t, strings.Join(tech.Tips, " "), "STAR")
}

func TestBuildPrompt(t *testing.T) {
	msgs := BuildPrompt(Request{
		Question:   "Tell me about a conflict.",
		Category:   questions.Behavioral,
		Difficulty: questions.Medium,
		Keywords:   []string{"listening", "compromise"},
		Answer:     "  I talked to them.  ",
	})
	require.Len(t, msgs, 2)
	assert.Equal(t, llm.RoleSystem, msgs[0].Role)
	assert.Contains(t, msgs[0].Content, `"score"`)

	user := msgs[1].Content
	assert.Contains(t, user, "Question: Tell me about a conflict.")
	assert.Contains(t, user, "Difficulty: medium")
	assert.Contains(t, user, "listening, compromise")
	assert.Contains(t, user, "STAR")
	assert.Contains(t, user, "<answer>\nI talked to them.\n</answer>")
}

func TestDetectTrend(t *testing.T) {
	tests := []struct {
		name   string
		scores []int
		want   Trend
	}{
		{"empty", nil, TrendNone},
		{"single", []int{7}, TrendNone},
		{"improving pair", []int{4, 5}, TrendImproving},
		{"declining", []int{8, 8, 5, 6}, TrendDeclining},
		{"stable", []int{6, 7, 6, 7}, TrendStable},
		{"odd count middle in second half", []int{4, 6, 6}, TrendImproving},
		{"just under threshold", []int{5, 5, 6, 5}, TrendStable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectTrend(tt.scores))
		})
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize([]Scored{
		{Score: 4, Category: questions.Behavioral},
		{Score: 6, Category: questions.Technical, Fallback: true},
		{Score: 8, Category: questions.Behavioral},
		{Score: 9, Category: questions.Leadership},
	})
	assert.Equal(t, 4, s.Count)
	assert.Equal(t, 6.8, s.Average)
	assert.Equal(t, 9, s.Best)
	assert.Equal(t, 4, s.Worst)
	assert.Equal(t, TrendImproving, s.Trend)
	assert.Equal(t, 1, s.FallbackCount)
	assert.Equal(t, 6.0, s.ByCategory[questions.Behavioral])
	assert.Equal(t, 9.0, s.ByCategory[questions.Leadership])

	empty := Summarize(nil)
	assert.Equal(t, 0, empty.Count)
	assert.Equal(t, TrendNone, empty.Trend)
	assert.NotNil(t, empty.ByCategory)
}

func TestTokenBudget(t *testing.T) {
	tb, err := NewTokenBudget()
	require.NoError(t, err)

	short := "I led the migration."
	assert.Equal(t, short, tb.Truncate(short, 100))
	assert.Equal(t, short, tb.Truncate(short, 0))

	long := strings.Repeat("the project shipped on time ", 100)
	cut := tb.Truncate(long, 20)
	assert.True(t, strings.HasSuffix(cut, truncationMarker))
	assert.Less(t, len(cut), len(long))
	assert.LessOrEqual(t, tb.Count(strings.TrimSuffix(cut, truncationMarker)), 21)

	var nilBudget *TokenBudget
	assert.Equal(t, long, nilBudget.Truncate(long, 5))
}

type recordingProvider struct {
	llm.Provider
	mu   sync.Mutex
	seen []string
}

func (r *recordingProvider) ChatWithFormat(ctx context.Context, msgs []llm.ChatMessage, f *llm.ResponseFormat) (llm.LLMResponse, error) {
	r.mu.Lock()
	r.seen = append(r.seen, msgs[len(msgs)-1].Content)
	r.mu.Unlock()
	return r.Provider.ChatWithFormat(ctx, msgs, f)
}

type upperRedactor struct{}

func (upperRedactor) RedactAnswer(s string) string {
	return strings.ReplaceAll(s, "secret@example.com", "[email]")
}

type countingRecorder struct {
	mu      sync.Mutex
	sources []string
}

func (c *countingRecorder) ObserveAnalysis(source string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sources = append(c.sources, source)
}

func behavioralRequest() Request {
	return Request{
		Question: "Tell me about a conflict.",
		Category: questions.Behavioral,
		Answer: "The situation was a release slip. My task was to fix the plan. " +
			"I took action by cutting scope and the result was shipping 3 days early.",
	}
}

func TestAnalyzerSuccess(t *testing.T) {
	rec := &countingRecorder{}
	a := NewAnalyzer(llm.NewMockProvider(), Options{Recorder: rec})

	got, err := a.Analyze(context.Background(), behavioralRequest())
	require.NoError(t, err)
	assert.False(t, got.Fallback)
	assert.Equal(t, "mock", got.Provider)
	assert.GreaterOrEqual(t, got.Score, 7)
	assert.Equal(t, []string{SourceLLM}, rec.sources)
}

func TestAnalyzerRetriesOnce(t *testing.T) {
	mock := llm.NewMockProvider(llm.WithFailures(1))
	a := NewAnalyzer(mock, Options{RetryDelay: time.Millisecond})

	got, err := a.Analyze(context.Background(), behavioralRequest())
	require.NoError(t, err)
	assert.False(t, got.Fallback)
	assert.Equal(t, 2, mock.Calls())
}

func TestAnalyzerFallsBackAfterSecondFailure(t *testing.T) {
	rec := &countingRecorder{}
	mock := llm.NewMockProvider(llm.WithFailures(5))
	a := NewAnalyzer(mock, Options{RetryDelay: time.Millisecond, Recorder: rec})

	got, err := a.Analyze(context.Background(), behavioralRequest())
	require.NoError(t, err)
	assert.True(t, got.Fallback)
	assert.Equal(t, 2, mock.Calls())
	assert.Equal(t, []string{SourceFallback}, rec.sources)
}

func TestAnalyzerFallsBackOnUnparsableOutput(t *testing.T) {
	mock := llm.NewMockProvider(llm.WithRawResponse("I would rate this highly."))
	a := NewAnalyzer(mock, Options{})

	got, err := a.Analyze(context.Background(), behavioralRequest())
	require.NoError(t, err)
	assert.True(t, got.Fallback)
	assert.Equal(t, 2, mock.Calls())
}

func TestAnalyzerEmptyAnswer(t *testing.T) {
	mock := llm.NewMockProvider()
	a := NewAnalyzer(mock, Options{})

	_, err := a.Analyze(context.Background(), Request{Question: "q", Answer: "   \n"})
	assert.True(t, errors.Is(err, ErrEmptyAnswer))
	assert.Equal(t, 0, mock.Calls())
}

func TestAnalyzerCancelledDuringRetryDelay(t *testing.T) {
	a := NewAnalyzer(llm.NewMockProvider(llm.WithFailures(1)), Options{RetryDelay: time.Minute})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := a.Analyze(ctx, behavioralRequest())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAnalyzerTimeoutTriggersFallback(t *testing.T) {
	mock := llm.NewMockProvider(llm.WithLatency(time.Second))
	a := NewAnalyzer(mock, Options{Timeout: 10 * time.Millisecond})

	got, err := a.Analyze(context.Background(), behavioralRequest())
	require.NoError(t, err)
	assert.True(t, got.Fallback)
}

func TestAnalyzerRedactsBeforeSending(t *testing.T) {
	rp := &recordingProvider{Provider: llm.NewMockProvider()}
	a := NewAnalyzer(rp, Options{Redactor: upperRedactor{}})

	req := behavioralRequest()
	req.Answer += " Reach me at secret@example.com."
	_, err := a.Analyze(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, rp.seen, 1)
	assert.NotContains(t, rp.seen[0], "secret@example.com")
	assert.Contains(t, rp.seen[0], "[email]")
}

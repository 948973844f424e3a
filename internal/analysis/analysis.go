// Package analysis scores interview answers.
//
// The pipeline is prompt -> LLM call -> parse, with one delayed retry and a
// deterministic canned response when the model cannot be reached or its
// output cannot be parsed. Summarize aggregates per-answer scores into a
// session report with a trend.
package analysis

import (
	"errors"

	"github.com/lunar-stra95/coach-coral-mistral/internal/questions"
)

const (
	MinScore = 0
	MaxScore = 10

	// maxListItems caps strengths, weaknesses and tips.
	maxListItems = 5
)

var (
	ErrEmptyAnswer = errors.New("answer is empty")
	ErrNoScore     = errors.New("analysis has no score")
)

// Analysis is the structured feedback for one answer.
type Analysis struct {
	Score      int      `json:"score"`
	Strengths  []string `json:"strengths"`
	Weaknesses []string `json:"weaknesses"`
	Tips       []string `json:"tips"`
	Summary    string   `json:"summary"`
	Fallback   bool     `json:"fallback"`
	Provider   string   `json:"provider,omitempty"`
	Model      string   `json:"model,omitempty"`
}

// Clone returns a deep copy.
func (a Analysis) Clone() Analysis {
	c := a
	c.Strengths = append([]string(nil), a.Strengths...)
	c.Weaknesses = append([]string(nil), a.Weaknesses...)
	c.Tips = append([]string(nil), a.Tips...)
	return c
}

// Request carries everything needed to analyse one answer.
type Request struct {
	QuestionID string               `json:"questionId,omitempty"`
	Question   string               `json:"question"`
	Category   questions.Category   `json:"category"`
	Difficulty questions.Difficulty `json:"difficulty"`
	Keywords   []string             `json:"keywords,omitempty"`
	Answer     string               `json:"answer"`
}

// RequestFor builds a Request from a bank question.
func RequestFor(q questions.Question, answer string) Request {
	return Request{
		QuestionID: q.ID,
		Question:   q.Text,
		Category:   q.Category,
		Difficulty: q.Difficulty,
		Keywords:   append([]string(nil), q.Keywords...),
		Answer:     answer,
	}
}

package session

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/lunar-stra95/coach-coral-mistral/internal/analysis"
	"github.com/lunar-stra95/coach-coral-mistral/internal/questions"
)

var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionComplete    = errors.New("session is already finished")
	ErrNoQuestionPending  = errors.New("no question awaiting an answer")
	ErrAnalysisInProgress = errors.New("previous answer is still being analysed")
)

type Status int

const (
	Active Status = iota
	Analyzing
	Complete
	Abandoned
	Expired
)

var statusNames = map[Status]string{
	Active:    "active",
	Analyzing: "analyzing",
	Complete:  "complete",
	Abandoned: "abandoned",
	Expired:   "expired",
}

var statusFromName = map[string]Status{
	"active":    Active,
	"analyzing": Analyzing,
	"complete":  Complete,
	"abandoned": Abandoned,
	"expired":   Expired,
}

func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return "unknown"
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Status) UnmarshalJSON(data []byte) error {
	var n string
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	if v, ok := statusFromName[n]; ok {
		*s = v
	}
	return nil
}

// IsTerminal reports whether no further answers are accepted.
func (s Status) IsTerminal() bool {
	return s == Complete || s == Abandoned || s == Expired
}

// Turn is one asked question and, once submitted, its answer and analysis.
type Turn struct {
	Question   questions.Question `json:"question"`
	Answer     string             `json:"answer,omitempty"`
	Analysis   *analysis.Analysis `json:"analysis,omitempty"`
	AskedAt    time.Time          `json:"askedAt"`
	AnsweredAt *time.Time         `json:"answeredAt,omitempty"`
}

func (t Turn) clone() Turn {
	t.Question = t.Question.Clone()
	if t.Analysis != nil {
		a := t.Analysis.Clone()
		t.Analysis = &a
	}
	if t.AnsweredAt != nil {
		at := *t.AnsweredAt
		t.AnsweredAt = &at
	}
	return t
}

type SessionState struct {
	ID             string               `json:"id"`
	Candidate      string               `json:"candidate,omitempty"`
	Role           string               `json:"role,omitempty"`
	Status         Status               `json:"status"`
	Difficulty     questions.Difficulty `json:"difficulty"`
	Turns          []Turn               `json:"turns"`
	Current        *questions.Question  `json:"current,omitempty"`
	MaxQuestions   int                  `json:"maxQuestions"`
	StartedAt      time.Time            `json:"startedAt"`
	LastActivityAt time.Time            `json:"lastActivityAt"`
	CompletedAt    *time.Time           `json:"completedAt,omitempty"`
}

// NewID returns a fresh session identifier.
func NewID() string {
	return uuid.NewString()
}

// Clone returns a deep copy of the SessionState, duplicating pointer and
// slice fields so the copy can be mutated independently of the original.
func (s *SessionState) Clone() *SessionState {
	c := *s
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		c.CompletedAt = &t
	}
	if s.Current != nil {
		q := s.Current.Clone()
		c.Current = &q
	}
	if s.Turns != nil {
		c.Turns = make([]Turn, len(s.Turns))
		for i, t := range s.Turns {
			c.Turns[i] = t.clone()
		}
	}
	return &c
}

func (s *SessionState) IsTerminal() bool {
	return s.Status.IsTerminal()
}

// Ask records q as the pending question.
func (s *SessionState) Ask(q questions.Question, now time.Time) {
	s.Turns = append(s.Turns, Turn{Question: q.Clone(), AskedAt: now})
	cur := q.Clone()
	s.Current = &cur
	s.LastActivityAt = now
}

// Pending returns the turn awaiting an answer, or nil.
func (s *SessionState) Pending() *Turn {
	if s.Current == nil || len(s.Turns) == 0 {
		return nil
	}
	last := &s.Turns[len(s.Turns)-1]
	if last.Analysis != nil {
		return nil
	}
	return last
}

// RecordAnalysis stores the answer and its analysis on the pending turn.
func (s *SessionState) RecordAnalysis(answer string, a analysis.Analysis, now time.Time) error {
	turn := s.Pending()
	if turn == nil {
		return ErrNoQuestionPending
	}
	turn.Answer = answer
	turn.Analysis = &a
	answered := now
	turn.AnsweredAt = &answered
	s.Current = nil
	s.LastActivityAt = now
	return nil
}

// Finish moves the session to a terminal status.
func (s *SessionState) Finish(status Status, now time.Time) {
	s.Status = status
	s.Current = nil
	s.LastActivityAt = now
	done := now
	s.CompletedAt = &done
}

// AskedIDs returns the IDs of every question asked so far.
func (s *SessionState) AskedIDs() map[string]bool {
	ids := make(map[string]bool, len(s.Turns))
	for _, t := range s.Turns {
		ids[t.Question.ID] = true
	}
	return ids
}

// UsedCategories counts asked questions per category.
func (s *SessionState) UsedCategories() map[questions.Category]int {
	used := make(map[questions.Category]int)
	for _, t := range s.Turns {
		used[t.Question.Category]++
	}
	return used
}

// Answered returns the number of analysed turns.
func (s *SessionState) Answered() int {
	n := 0
	for _, t := range s.Turns {
		if t.Analysis != nil {
			n++
		}
	}
	return n
}

// Scored returns the analysed turns in answer order.
func (s *SessionState) Scored() []analysis.Scored {
	out := make([]analysis.Scored, 0, len(s.Turns))
	for _, t := range s.Turns {
		if t.Analysis == nil {
			continue
		}
		out = append(out, analysis.Scored{
			Score:    t.Analysis.Score,
			Category: t.Question.Category,
			Fallback: t.Analysis.Fallback,
		})
	}
	return out
}

// LastScore returns the most recent score, or -1 if none.
func (s *SessionState) LastScore() int {
	for i := len(s.Turns) - 1; i >= 0; i-- {
		if a := s.Turns[i].Analysis; a != nil {
			return a.Score
		}
	}
	return -1
}

package questions

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Bank is an immutable, ordered set of questions.
type Bank struct {
	questions []Question
}

// NewBank copies qs into a bank and validates it.
func NewBank(qs []Question) (*Bank, error) {
	b := &Bank{questions: make([]Question, len(qs))}
	for i, q := range qs {
		b.questions[i] = q.Clone()
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

// DefaultBank returns the built-in question set.
func DefaultBank() *Bank {
	b, err := NewBank(builtin)
	if err != nil {
		panic(err)
	}
	return b
}

// LoadBank reads a YAML list of questions from path.
func LoadBank(path string) (*Bank, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var qs []Question
	if err := yaml.Unmarshal(data, &qs); err != nil {
		return nil, fmt.Errorf("parse question bank %s: %w", path, err)
	}
	return NewBank(qs)
}

func (b *Bank) Validate() error {
	if len(b.questions) == 0 {
		return errors.New("question bank is empty")
	}
	seen := make(map[string]bool, len(b.questions))
	for i, q := range b.questions {
		if q.ID == "" {
			return fmt.Errorf("question %d has no id", i)
		}
		if seen[q.ID] {
			return fmt.Errorf("duplicate question id %q", q.ID)
		}
		seen[q.ID] = true
		if q.Text == "" {
			return fmt.Errorf("question %q has no text", q.ID)
		}
		if !q.Category.Valid() {
			return fmt.Errorf("question %q has unknown category %q", q.ID, q.Category)
		}
		if !q.Difficulty.Valid() {
			return fmt.Errorf("question %q has invalid difficulty", q.ID)
		}
	}
	return nil
}

func (b *Bank) Len() int {
	return len(b.questions)
}

// All returns copies of every question in bank order.
func (b *Bank) All() []Question {
	out := make([]Question, len(b.questions))
	for i, q := range b.questions {
		out[i] = q.Clone()
	}
	return out
}

func (b *Bank) Get(id string) (Question, bool) {
	for _, q := range b.questions {
		if q.ID == id {
			return q.Clone(), true
		}
	}
	return Question{}, false
}

// Filter returns the questions matching category and difficulty. An empty
// category or a nil difficulty matches everything.
func (b *Bank) Filter(category Category, difficulty *Difficulty) []Question {
	out := make([]Question, 0, len(b.questions))
	for _, q := range b.questions {
		if category != "" && q.Category != category {
			continue
		}
		if difficulty != nil && q.Difficulty != *difficulty {
			continue
		}
		out = append(out, q.Clone())
	}
	return out
}

var builtin = []Question{
	{
		ID:         "intro-motivation",
		Text:       "Tell me about yourself and why you are interested in this role.",
		Category:   Motivation,
		Difficulty: Easy,
		Hints:      []string{"Keep it under two minutes", "Connect your past to the role"},
		Keywords:   []string{"background", "motivation", "role fit"},
	},
	{
		ID:         "greatest-strength",
		Text:       "What is your greatest professional strength, and how has it helped a team you worked with?",
		Category:   Behavioral,
		Difficulty: Easy,
		Hints:      []string{"Pick one strength", "Back it with a concrete example"},
		Keywords:   []string{"strength", "example", "impact"},
	},
	{
		ID:         "teammate-conflict",
		Text:       "Describe a time you disagreed with a teammate. How did you resolve it?",
		Category:   Behavioral,
		Difficulty: Medium,
		Hints:      []string{"Use the STAR structure", "Show what you learned"},
		Keywords:   []string{"situation", "listening", "compromise", "outcome"},
	},
	{
		ID:         "failed-project",
		Text:       "Tell me about a project that did not go as planned. What happened and what did you learn?",
		Category:   Situational,
		Difficulty: Medium,
		Hints:      []string{"Own your part", "Focus on the lesson"},
		Keywords:   []string{"ownership", "root cause", "lesson", "change"},
	},
	{
		ID:         "competing-deadlines",
		Text:       "You have three urgent deadlines on the same day. Walk me through how you would prioritize.",
		Category:   ProblemSolving,
		Difficulty: Medium,
		Hints:      []string{"Name your criteria", "Mention communication with stakeholders"},
		Keywords:   []string{"impact", "urgency", "stakeholders", "trade-off"},
	},
	{
		ID:         "design-url-shortener",
		Text:       "How would you design a URL shortening service that handles millions of requests per day?",
		Category:   Technical,
		Difficulty: Hard,
		Hints:      []string{"Clarify requirements first", "Discuss storage and caching"},
		Keywords:   []string{"hashing", "database", "cache", "scaling", "availability"},
	},
	{
		ID:         "lead-without-authority",
		Text:       "Describe a time you led a team through a significant change without having formal authority.",
		Category:   Leadership,
		Difficulty: Hard,
		Hints:      []string{"Explain how you built buy-in", "Quantify the result"},
		Keywords:   []string{"influence", "buy-in", "communication", "result"},
	},
	{
		ID:         "incomplete-information",
		Text:       "Tell me about a decision you made with incomplete information. How did you manage the risk?",
		Category:   Situational,
		Difficulty: Hard,
		Hints:      []string{"Describe what you knew and did not know", "Explain how you validated afterwards"},
		Keywords:   []string{"risk", "assumptions", "data", "follow-up"},
	},
}

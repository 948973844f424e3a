// Package questions holds the interview question bank and the selection
// heuristics used to pick the next question for a session.
package questions

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

type Difficulty int

const (
	Easy Difficulty = iota
	Medium
	Hard
)

var difficultyNames = map[Difficulty]string{
	Easy:   "easy",
	Medium: "medium",
	Hard:   "hard",
}

var difficultyFromName = map[string]Difficulty{
	"easy":   Easy,
	"medium": Medium,
	"hard":   Hard,
}

func (d Difficulty) String() string {
	if s, ok := difficultyNames[d]; ok {
		return s
	}
	return "unknown"
}

// Harder returns the next difficulty level, saturating at Hard.
func (d Difficulty) Harder() Difficulty {
	if d >= Hard {
		return Hard
	}
	return d + 1
}

// Easier returns the previous difficulty level, saturating at Easy.
func (d Difficulty) Easier() Difficulty {
	if d <= Easy {
		return Easy
	}
	return d - 1
}

func (d Difficulty) Valid() bool {
	return d >= Easy && d <= Hard
}

// ParseDifficulty accepts the lowercase level names, case-insensitively.
func ParseDifficulty(s string) (Difficulty, error) {
	if d, ok := difficultyFromName[strings.ToLower(strings.TrimSpace(s))]; ok {
		return d, nil
	}
	return Easy, fmt.Errorf("unknown difficulty %q", s)
}

func (d Difficulty) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Difficulty) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, err := ParseDifficulty(s)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

func (d Difficulty) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

func (d *Difficulty) UnmarshalYAML(value *yaml.Node) error {
	v, err := ParseDifficulty(value.Value)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

type Category string

const (
	Behavioral     Category = "behavioral"
	Technical      Category = "technical"
	Situational    Category = "situational"
	Leadership     Category = "leadership"
	ProblemSolving Category = "problem_solving"
	Motivation     Category = "motivation"
)

// Categories lists every known category in display order.
var Categories = []Category{Behavioral, Technical, Situational, Leadership, ProblemSolving, Motivation}

func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Question is a single prompt in the bank. Keywords are the concepts a strong
// answer is expected to touch; they are passed to the scorer as hints.
type Question struct {
	ID         string     `json:"id" yaml:"id"`
	Text       string     `json:"text" yaml:"text"`
	Category   Category   `json:"category" yaml:"category"`
	Difficulty Difficulty `json:"difficulty" yaml:"difficulty"`
	Hints      []string   `json:"hints,omitempty" yaml:"hints,omitempty"`
	Keywords   []string   `json:"keywords,omitempty" yaml:"keywords,omitempty"`
}

// Clone returns a copy that shares no slices with q.
func (q Question) Clone() Question {
	if q.Hints != nil {
		q.Hints = append([]string(nil), q.Hints...)
	}
	if q.Keywords != nil {
		q.Keywords = append([]string(nil), q.Keywords...)
	}
	return q
}

package analysis

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/lunar-stra95/coach-coral-mistral/internal/questions"
)

// Trend describes how scores moved over a session.
type Trend int

const (
	TrendNone Trend = iota
	TrendImproving
	TrendDeclining
	TrendStable
)

// trendThreshold is the mean difference between halves that counts as a
// change.
const trendThreshold = 1.0

var trendNames = map[Trend]string{
	TrendNone:      "none",
	TrendImproving: "improving",
	TrendDeclining: "declining",
	TrendStable:    "stable",
}

var trendValues = map[string]Trend{
	"none":      TrendNone,
	"improving": TrendImproving,
	"declining": TrendDeclining,
	"stable":    TrendStable,
}

func (t Trend) String() string {
	if s, ok := trendNames[t]; ok {
		return s
	}
	return "unknown"
}

func (t Trend) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *Trend) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, ok := trendValues[s]
	if !ok {
		return fmt.Errorf("unknown trend: %s", s)
	}
	*t = v
	return nil
}

// Scored is one analysed answer as seen by Summarize.
type Scored struct {
	Score    int                `json:"score"`
	Category questions.Category `json:"category"`
	Fallback bool               `json:"fallback"`
}

// Summary aggregates a session's analyses.
type Summary struct {
	Count         int                            `json:"count"`
	Average       float64                        `json:"average"`
	Best          int                            `json:"best"`
	Worst         int                            `json:"worst"`
	Trend         Trend                          `json:"trend"`
	ByCategory    map[questions.Category]float64 `json:"byCategory"`
	FallbackCount int                            `json:"fallbackCount"`
}

// Summarize aggregates scores in answer order.
func Summarize(scored []Scored) Summary {
	s := Summary{ByCategory: make(map[questions.Category]float64)}
	if len(scored) == 0 {
		return s
	}

	s.Count = len(scored)
	s.Best, s.Worst = scored[0].Score, scored[0].Score

	scores := make([]int, len(scored))
	catSum := make(map[questions.Category]int)
	catN := make(map[questions.Category]int)
	total := 0
	for i, sc := range scored {
		scores[i] = sc.Score
		total += sc.Score
		if sc.Score > s.Best {
			s.Best = sc.Score
		}
		if sc.Score < s.Worst {
			s.Worst = sc.Score
		}
		if sc.Fallback {
			s.FallbackCount++
		}
		catSum[sc.Category] += sc.Score
		catN[sc.Category]++
	}

	s.Average = round1(float64(total) / float64(s.Count))
	for c, sum := range catSum {
		s.ByCategory[c] = round1(float64(sum) / float64(catN[c]))
	}
	s.Trend = DetectTrend(scores)
	return s
}

// DetectTrend compares the mean of the second half of scores with the
// first half. With an odd count the middle score belongs to the second half.
func DetectTrend(scores []int) Trend {
	if len(scores) < 2 {
		return TrendNone
	}
	mid := len(scores) / 2
	delta := mean(scores[mid:]) - mean(scores[:mid])
	switch {
	case delta >= trendThreshold:
		return TrendImproving
	case delta <= -trendThreshold:
		return TrendDeclining
	default:
		return TrendStable
	}
}

func mean(xs []int) float64 {
	sum := 0
	for _, x := range xs {
		sum += x
	}
	return float64(sum) / float64(len(xs))
}

func round1(f float64) float64 {
	return math.Round(f*10) / 10
}

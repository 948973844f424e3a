package analysis

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/lunar-stra95/coach-coral-mistral/internal/jsonx"
)

// rawAnalysis accepts the loose shapes models actually produce.
type rawAnalysis struct {
	Score        json.RawMessage `json:"score"`
	OverallScore json.RawMessage `json:"overall_score"`
	Strengths    stringList      `json:"strengths"`
	Weaknesses   stringList      `json:"weaknesses"`
	Improvements stringList      `json:"improvements"`
	Tips         stringList      `json:"tips"`
	Suggestions  stringList      `json:"suggestions"`
	Summary      string          `json:"summary"`
	Feedback     string          `json:"feedback"`
}

// stringList decodes either a JSON array of strings or a single string.
type stringList []string

func (l *stringList) UnmarshalJSON(data []byte) error {
	var many []interface{}
	if err := json.Unmarshal(data, &many); err == nil {
		out := make([]string, 0, len(many))
		for _, v := range many {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
		*l = out
		return nil
	}
	var one string
	if err := json.Unmarshal(data, &one); err != nil {
		return fmt.Errorf("expected string or string array: %w", err)
	}
	*l = []string{one}
	return nil
}

// Parse converts raw model output into an Analysis.
func Parse(raw string) (Analysis, error) {
	r, err := jsonx.Decode[rawAnalysis](raw)
	if err != nil {
		return Analysis{}, err
	}

	scoreField := r.Score
	if len(scoreField) == 0 || string(scoreField) == "null" {
		scoreField = r.OverallScore
	}
	score, err := parseScore(scoreField)
	if err != nil {
		return Analysis{}, err
	}

	summary := strings.TrimSpace(r.Summary)
	if summary == "" {
		summary = strings.TrimSpace(r.Feedback)
	}

	return Analysis{
		Score:      score,
		Strengths:  cleanList(r.Strengths),
		Weaknesses: cleanList(append(r.Weaknesses, r.Improvements...)),
		Tips:       cleanList(append(r.Tips, r.Suggestions...)),
		Summary:    summary,
	}, nil
}

// parseScore accepts 7, 7.4, "7", "7.5" and "7/10". Out-of-range values are
// clamped.
func parseScore(field json.RawMessage) (int, error) {
	if len(field) == 0 || string(field) == "null" {
		return 0, ErrNoScore
	}

	var f float64
	if err := json.Unmarshal(field, &f); err != nil {
		var s string
		if err := json.Unmarshal(field, &s); err != nil {
			return 0, fmt.Errorf("%w: unsupported score %s", ErrNoScore, field)
		}
		f, err = parseScoreString(s)
		if err != nil {
			return 0, err
		}
	}
	if math.IsNaN(f) {
		return 0, fmt.Errorf("%w: score is NaN", ErrNoScore)
	}
	return int(math.Round(clampScore(f))), nil
}

func parseScoreString(s string) (float64, error) {
	s = strings.TrimSpace(s)
	scale := 0.0
	if num, den, ok := strings.Cut(s, "/"); ok {
		d, err := strconv.ParseFloat(strings.TrimSpace(den), 64)
		if err != nil || d <= 0 {
			return 0, fmt.Errorf("%w: bad score %q", ErrNoScore, s)
		}
		s, scale = strings.TrimSpace(num), d
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad score %q", ErrNoScore, s)
	}
	if scale > 0 && scale != MaxScore {
		f = f / scale * MaxScore
	}
	return f, nil
}

// clampScore bounds f before any integer conversion, so huge and infinite
// values saturate instead of overflowing.
func clampScore(f float64) float64 {
	return math.Max(MinScore, math.Min(MaxScore, f))
}

func cleanList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		it = strings.TrimSpace(it)
		if it == "" {
			continue
		}
		out = append(out, it)
		if len(out) == maxListItems {
			break
		}
	}
	return out
}

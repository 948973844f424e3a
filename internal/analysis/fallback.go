package analysis

import (
	"strings"

	"github.com/lunar-stra95/coach-coral-mistral/internal/questions"
)

var categoryGuidance = map[questions.Category]string{
	questions.Behavioral:     "Use the STAR method: describe the Situation, your Task, the Action you took and the Result.",
	questions.Technical:      "Walk through requirements, trade-offs and how you would validate the design.",
	questions.Situational:    "State your first step, who you would involve and how you would measure success.",
	questions.Leadership:     "Show how you influenced others and what changed because of it.",
	questions.ProblemSolving: "Make your reasoning explicit: assumptions, options considered and the decision.",
	questions.Motivation:     "Connect your goals to the role and give a concrete reason you are drawn to it.",
}

// Fallback returns the canned analysis used when the model is unavailable.
// The score depends only on answer length.
func Fallback(req Request) Analysis {
	words := len(strings.Fields(req.Answer))

	a := Analysis{
		Fallback: true,
		Provider: "fallback",
	}

	switch {
	case words < 20:
		a.Score = 3
		a.Weaknesses = []string{"The answer is very short and lacks a concrete example"}
		a.Summary = "Automated feedback is unavailable right now. Your answer is brief; expand it with a specific example."
	case words < 60:
		a.Score = 5
		a.Strengths = []string{"Addresses the question"}
		a.Weaknesses = []string{"Could include more specific detail"}
		a.Summary = "Automated feedback is unavailable right now. Your answer covers the basics; add detail and outcomes."
	default:
		a.Score = 6
		a.Strengths = []string{"Detailed response", "Addresses the question"}
		a.Weaknesses = []string{"Make sure the key point is easy to find"}
		a.Summary = "Automated feedback is unavailable right now. Your answer is detailed; keep it focused on the outcome."
	}

	if tip := categoryGuidance[req.Category]; tip != "" {
		a.Tips = append(a.Tips, tip)
	}
	a.Tips = append(a.Tips, "Quantify the impact of your work where you can")
	return a
}

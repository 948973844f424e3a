// Package theme provides the Lip Gloss color palette and reusable styles
// for the coaching TUI. It is a leaf package with no internal imports.
package theme

import "github.com/charmbracelet/lipgloss"

// Score colors.
var (
	ColorScoreHigh = lipgloss.Color("#22c55e") // 8-10
	ColorScoreMid  = lipgloss.Color("#d97706") // 5-7
	ColorScoreLow  = lipgloss.Color("#dc2626") // 1-4
)

// Category colors.
var (
	ColorBehavioral     = lipgloss.Color("#a855f7")
	ColorTechnical      = lipgloss.Color("#3b82f6")
	ColorSituational    = lipgloss.Color("#06b6d4")
	ColorLeadership     = lipgloss.Color("#f59e0b")
	ColorProblemSolving = lipgloss.Color("#10b981")
	ColorMotivation     = lipgloss.Color("#ec4899")
	ColorDefault        = lipgloss.Color("#9ca3af")
)

// UI chrome colors.
var (
	ColorBorder  = lipgloss.Color("#4b5563")
	ColorDimmed  = lipgloss.Color("#6b7280")
	ColorBright  = lipgloss.Color("#f9fafb")
	ColorAccent  = lipgloss.Color("#2563eb")
	ColorHealthy = lipgloss.Color("#22c55e")
	ColorWarning = lipgloss.Color("#d97706")
	ColorDanger  = lipgloss.Color("#dc2626")
)

// ScoreColor returns the color for a 1-10 score.
func ScoreColor(score int) lipgloss.Color {
	switch {
	case score >= 8:
		return ColorScoreHigh
	case score >= 5:
		return ColorScoreMid
	default:
		return ColorScoreLow
	}
}

// CategoryColor returns the color for a question category.
func CategoryColor(category string) lipgloss.Color {
	switch category {
	case "behavioral":
		return ColorBehavioral
	case "technical":
		return ColorTechnical
	case "situational":
		return ColorSituational
	case "leadership":
		return ColorLeadership
	case "problem_solving":
		return ColorProblemSolving
	case "motivation":
		return ColorMotivation
	default:
		return ColorDefault
	}
}

// HealthColor returns the color for an analyzer health status.
func HealthColor(status string) lipgloss.Color {
	switch status {
	case "healthy":
		return ColorHealthy
	case "degraded":
		return ColorWarning
	case "failed":
		return ColorDanger
	default:
		return ColorDimmed
	}
}

// TrendGlyph returns an arrow for a score trend.
func TrendGlyph(trend string) string {
	switch trend {
	case "improving":
		return "↑"
	case "declining":
		return "↓"
	case "stable":
		return "→"
	default:
		return "·"
	}
}

// Reusable styles.
var (
	StyleBorder = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(ColorBorder)

	StyleHeader = lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorBright)

	StyleDimmed = lipgloss.NewStyle().
		Foreground(ColorDimmed)

	StyleSelected = lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorAccent)

	StyleError = lipgloss.NewStyle().
		Foreground(ColorDanger)
)

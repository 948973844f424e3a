package status

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/lunar-stra95/coach-coral-mistral/internal/tui/client"
	"github.com/lunar-stra95/coach-coral-mistral/internal/tui/theme"
)

// Model holds the status bar state.
type Model struct {
	Connected bool
	Health    *client.HealthSnapshot
	Candidate string
	Progress  string // e.g. "Q2/5"
	Width     int
}

// New creates a status bar model.
func New() Model {
	return Model{}
}

// View renders the status bar.
func (m Model) View() string {
	width := m.Width
	if width < 40 {
		width = 40
	}

	var connStr string
	if m.Connected {
		connStr = lipgloss.NewStyle().Foreground(theme.ColorHealthy).Render("● Connected")
	} else {
		connStr = lipgloss.NewStyle().Foreground(theme.ColorDanger).Render("○ Connecting...")
	}

	healthStr := theme.StyleDimmed.Render("analyzer: unknown")
	if m.Health != nil {
		text := fmt.Sprintf("analyzer: %s", m.Health.Status)
		if m.Health.Model != "" {
			text += " (" + m.Health.Model + ")"
		}
		if m.Health.ConsecutiveFallbacks > 0 {
			text += fmt.Sprintf(" %d fallback", m.Health.ConsecutiveFallbacks)
		}
		healthStr = lipgloss.NewStyle().Foreground(theme.HealthColor(string(m.Health.Status))).Render(text)
	}

	sep := lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(" | ")
	content := connStr + sep + healthStr
	if m.Candidate != "" {
		content += sep + m.Candidate
	}
	if m.Progress != "" {
		content += sep + theme.StyleHeader.Render(m.Progress)
	}

	return lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(content)
}

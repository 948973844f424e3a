// Package summary renders the end-of-interview report.
package summary

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/lunar-stra95/coach-coral-mistral/internal/tui/client"
	"github.com/lunar-stra95/coach-coral-mistral/internal/tui/theme"
)

var (
	styleLabel = lipgloss.NewStyle().Foreground(theme.ColorDimmed).Width(16)
	styleValue = lipgloss.NewStyle().Foreground(theme.ColorBright)
)

var reasonText = map[string]string{
	"question_budget_reached": "You answered every planned question.",
	"question_bank_exhausted": "There are no more questions left to ask.",
	"abandoned":               "You ended the interview early.",
}

// ReasonText describes why a session ended.
func ReasonText(reason string) string {
	if s, ok := reasonText[reason]; ok {
		return s
	}
	return reason
}

// View renders the summary panel.
func View(reason string, s client.Summary, width int) string {
	var b strings.Builder
	b.WriteString(theme.StyleHeader.Render("INTERVIEW COMPLETE") + "\n")
	if text := ReasonText(reason); text != "" {
		b.WriteString(theme.StyleDimmed.Render(text) + "\n")
	}
	b.WriteString("\n")

	writeRow(&b, "Answers", fmt.Sprintf("%d", s.Count))
	if s.Count == 0 {
		writeRow(&b, "Average", "-")
	} else {
		avg := lipgloss.NewStyle().Foreground(theme.ScoreColor(int(s.Average + 0.5))).Render(fmt.Sprintf("%.1f", s.Average))
		writeRow(&b, "Average", avg)
		writeRow(&b, "Best / worst", fmt.Sprintf("%d / %d", s.Best, s.Worst))
	}
	writeRow(&b, "Trend", theme.TrendGlyph(s.Trend)+" "+s.Trend)
	if s.FallbackCount > 0 {
		writeRow(&b, "Generic scores", fmt.Sprintf("%d", s.FallbackCount))
	}

	if len(s.ByCategory) > 0 {
		b.WriteString("\n" + theme.StyleHeader.Render("By category") + "\n")
		cats := make([]string, 0, len(s.ByCategory))
		for c := range s.ByCategory {
			cats = append(cats, c)
		}
		sort.Strings(cats)
		for _, c := range cats {
			label := lipgloss.NewStyle().Foreground(theme.CategoryColor(c)).Width(16).Render(strings.ReplaceAll(c, "_", " "))
			b.WriteString(label + styleValue.Render(fmt.Sprintf("%.1f", s.ByCategory[c])) + "\n")
		}
	}

	b.WriteString("\n" + theme.StyleDimmed.Render("n:new interview  q:quit"))

	return theme.StyleBorder.
		Width(max(width-4, 40)).
		Padding(1, 2).
		Render(b.String())
}

func writeRow(b *strings.Builder, label, value string) {
	b.WriteString(styleLabel.Render(label+":") + styleValue.Render(value) + "\n")
}

// Package feedback renders the analysis of one answer: an animated score
// gauge followed by the strengths, weaknesses and tips as Markdown.
package feedback

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/harmonica"
	"github.com/charmbracelet/lipgloss"

	"github.com/lunar-stra95/coach-coral-mistral/internal/tui/client"
	"github.com/lunar-stra95/coach-coral-mistral/internal/tui/theme"
)

const (
	fps       = 60
	gaugeSize = 30
	maxScore  = 10
)

// TickMsg advances the gauge animation.
type TickMsg time.Time

// Model shows feedback for the most recent answer.
type Model struct {
	Question *client.Question
	Analysis *client.Analysis
	Width    int

	spring   harmonica.Spring
	pos, vel float64
	rendered string
	renderW  int
}

// New creates an empty feedback model.
func New() Model {
	return Model{spring: harmonica.NewSpring(harmonica.FPS(fps), 6.0, 0.6)}
}

// Set replaces the shown analysis and restarts the gauge from zero.
func (m *Model) Set(q *client.Question, a client.Analysis) tea.Cmd {
	m.Question = q
	m.Analysis = &a
	m.pos, m.vel = 0, 0
	m.rendered = ""
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(time.Second/fps, func(t time.Time) tea.Msg { return TickMsg(t) })
}

// Animating reports whether the gauge is still moving.
func (m Model) Animating() bool {
	if m.Analysis == nil {
		return false
	}
	return math.Abs(m.target()-m.pos) > 0.01 || math.Abs(m.vel) > 0.01
}

func (m Model) target() float64 {
	if m.Analysis == nil {
		return 0
	}
	return float64(m.Analysis.Score)
}

// Update steps the spring on each tick until it settles.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if _, ok := msg.(TickMsg); !ok || m.Analysis == nil {
		return m, nil
	}
	m.pos, m.vel = m.spring.Update(m.pos, m.vel, m.target())
	if !m.Animating() {
		m.pos, m.vel = m.target(), 0
		return m, nil
	}
	return m, tick()
}

// Gauge renders the score bar at the current animation position.
func (m Model) Gauge() string {
	if m.Analysis == nil {
		return ""
	}
	pct := math.Min(math.Max(m.pos/maxScore, 0), 1)
	filled := int(math.Round(pct * gaugeSize))
	bar := strings.Repeat("█", filled) + strings.Repeat("░", gaugeSize-filled)
	color := theme.ScoreColor(m.Analysis.Score)
	score := lipgloss.NewStyle().Bold(true).Foreground(color).Render(fmt.Sprintf("%d/%d", m.Analysis.Score, maxScore))
	return lipgloss.NewStyle().Foreground(color).Render(bar) + " " + score
}

// Markdown builds the feedback document for an analysis.
func Markdown(q *client.Question, a client.Analysis) string {
	var b strings.Builder
	if q != nil {
		fmt.Fprintf(&b, "### %s\n\n", q.Text)
	}
	if a.Summary != "" {
		fmt.Fprintf(&b, "%s\n\n", a.Summary)
	}
	if a.Fallback {
		b.WriteString("> The scoring model was unavailable. This is generic guidance.\n\n")
	}
	writeList(&b, "Strengths", a.Strengths)
	writeList(&b, "To improve", a.Weaknesses)
	writeList(&b, "Tips", a.Tips)
	return b.String()
}

func writeList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "**%s**\n\n", title)
	for _, it := range items {
		fmt.Fprintf(b, "- %s\n", it)
	}
	b.WriteString("\n")
}

// render converts the Markdown with glamour, falling back to the raw text.
// Output is cached per width.
func (m *Model) render(width int) string {
	if m.rendered != "" && m.renderW == width {
		return m.rendered
	}
	md := Markdown(m.Question, *m.Analysis)
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(width),
	)
	if err == nil {
		if out, err := r.Render(md); err == nil {
			md = out
		}
	}
	m.rendered, m.renderW = md, width
	return md
}

// View renders the gauge and the feedback document.
func (m *Model) View() string {
	if m.Analysis == nil {
		return theme.StyleDimmed.Render("  No feedback yet.")
	}
	width := max(m.Width-4, 40)
	header := theme.StyleHeader.Render("FEEDBACK")
	if m.Analysis.Provider != "" {
		header += theme.StyleDimmed.Render("  via " + m.Analysis.Provider)
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		"  "+m.Gauge(),
		m.render(width),
	)
}

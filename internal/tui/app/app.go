// Package app holds the root Bubble Tea model of the coaching TUI.
package app

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lunar-stra95/coach-coral-mistral/internal/tui/client"
	"github.com/lunar-stra95/coach-coral-mistral/internal/tui/theme"
	"github.com/lunar-stra95/coach-coral-mistral/internal/tui/views/debug"
	"github.com/lunar-stra95/coach-coral-mistral/internal/tui/views/feedback"
	"github.com/lunar-stra95/coach-coral-mistral/internal/tui/views/status"
	"github.com/lunar-stra95/coach-coral-mistral/internal/tui/views/summary"
)

// Screen identifies the current step of the interview.
type Screen int

const (
	ScreenStart Screen = iota
	ScreenQuestion
	ScreenAnalyzing
	ScreenFeedback
	ScreenSummary
)

// Overlay identifies which modal is active.
type Overlay int

const (
	OverlayNone Overlay = iota
	OverlayDebug
)

// Start form fields.
const (
	fieldCandidate = iota
	fieldRole
	fieldQuestions
	fieldDifficulty
	fieldCount
)

var difficulties = []string{"easy", "medium", "hard"}

// --- results of HTTP commands ---

type sessionStartedMsg struct{ Session *client.SessionState }

type answerResultMsg struct{ Result *client.AnswerResult }

type abandonedMsg struct{ Summary *client.Summary }

type healthMsg struct{ Health *client.Health }

type httpErrMsg struct {
	Op  string
	Err error
}

// Model is the root Bubble Tea model.
type Model struct {
	ws     *client.WSClient
	http   *client.HTTPClient
	ctx    context.Context
	cancel context.CancelFunc

	keys    KeyMap
	width   int
	height  int
	screen  Screen
	overlay Overlay

	// Start form.
	inputs []textinput.Model
	focus  int

	// Interview state.
	session  *client.SessionState
	question *client.Question
	number   int
	result   *client.AnswerResult
	reason   string
	summary  *client.Summary
	errText  string

	answer  textarea.Model
	spinner spinner.Model

	// Sub-views.
	statusBar status.Model
	feedback  feedback.Model
	debugLog  debug.Model

	connected bool
}

// New creates the root model.
func New(ws *client.WSClient, http *client.HTTPClient) Model {
	ctx, cancel := context.WithCancel(context.Background())

	inputs := make([]textinput.Model, fieldCount)
	for i := range inputs {
		ti := textinput.New()
		ti.CharLimit = 80
		ti.Width = 30
		inputs[i] = ti
	}
	inputs[fieldCandidate].Placeholder = "Your name"
	inputs[fieldRole].Placeholder = "Backend Engineer"
	inputs[fieldQuestions].Placeholder = "5"
	inputs[fieldQuestions].CharLimit = 2
	inputs[fieldDifficulty].Placeholder = "easy / medium / hard"
	inputs[fieldDifficulty].SetValue("medium")
	inputs[fieldCandidate].Focus()

	ta := textarea.New()
	ta.Placeholder = "Type your answer. Situation, task, action, result."
	ta.CharLimit = 0
	ta.ShowLineNumbers = false
	ta.SetHeight(10)

	return Model{
		ws:        ws,
		http:      http,
		ctx:       ctx,
		cancel:    cancel,
		keys:      DefaultKeyMap(),
		inputs:    inputs,
		answer:    ta,
		spinner:   spinner.New(spinner.WithSpinner(spinner.Dot)),
		statusBar: status.New(),
		feedback:  feedback.New(),
		debugLog:  debug.New(),
	}
}

// Init starts the WebSocket connection and fetches analyzer health.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.ws.Listen(m.ctx), m.fetchHealth(), textinput.Blink)
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.statusBar.Width = msg.Width
		m.feedback.Width = msg.Width
		m.answer.SetWidth(max(msg.Width-6, 20))
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case client.WSConnectedMsg:
		m.connected = true
		m.statusBar.Connected = true
		m.debugLog.Add(debug.KindWS, "connected")
		return m, m.ws.ReadLoop(m.ctx)

	case client.WSDisconnectedMsg:
		m.connected = false
		m.statusBar.Connected = false
		m.debugLog.Addf(debug.KindWS, "disconnected: %v", msg.Err)
		return m, m.ws.Listen(m.ctx)

	case client.WSSnapshotMsg:
		m.debugLog.Addf(debug.KindWS, "snapshot: %d sessions", len(msg.Payload.Sessions))
		return m, m.ws.ReadLoop(m.ctx)

	case client.WSDeltaMsg:
		m.debugLog.Addf(debug.KindWS, "delta: %d updated %d removed", len(msg.Payload.Updates), len(msg.Payload.Removed))
		return m, m.ws.ReadLoop(m.ctx)

	case client.WSQuestionMsg:
		m.debugLog.Addf(debug.KindWS, "question %d/%d: %s", msg.Payload.Number, msg.Payload.Total, msg.Payload.Question.ID)
		return m, m.ws.ReadLoop(m.ctx)

	case client.WSAnalysisMsg:
		m.debugLog.Addf(debug.KindWS, "analysis %s: score %d fallback=%t",
			msg.Payload.QuestionID, msg.Payload.Analysis.Score, msg.Payload.Analysis.Fallback)
		return m, m.ws.ReadLoop(m.ctx)

	case client.WSCompleteMsg:
		m.debugLog.Addf(debug.KindWS, "session complete: %s", msg.Payload.Reason)
		if m.ownSession(msg.SessionID) && (m.screen == ScreenQuestion || m.screen == ScreenStart) {
			m.showSummary(msg.Payload.Reason, msg.Payload.Summary)
		}
		return m, m.ws.ReadLoop(m.ctx)

	case client.WSHealthMsg:
		h := msg.Payload
		m.statusBar.Health = &h
		m.debugLog.Addf(debug.KindHealth, "analyzer %s", h.Status)
		return m, m.ws.ReadLoop(m.ctx)

	case client.WSErrorMsg:
		m.debugLog.Addf(debug.KindError, "server: %s", msg.Message)
		return m, m.ws.ReadLoop(m.ctx)

	case healthMsg:
		m.statusBar.Health = msg.Health.Analyzer
		return m, nil

	case sessionStartedMsg:
		return m.onSessionStarted(msg.Session)

	case answerResultMsg:
		return m.onAnswerResult(msg.Result)

	case abandonedMsg:
		m.debugLog.Add(debug.KindHTTP, "session abandoned")
		m.showSummary("abandoned", *msg.Summary)
		return m, nil

	case httpErrMsg:
		m.errText = fmt.Sprintf("%s: %v", msg.Op, msg.Err)
		m.debugLog.Add(debug.KindError, m.errText)
		if m.screen == ScreenAnalyzing {
			m.screen = ScreenQuestion
			return m, m.answer.Focus()
		}
		return m, nil

	case spinner.TickMsg:
		if m.screen != ScreenAnalyzing {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case feedback.TickMsg:
		var cmd tea.Cmd
		m.feedback, cmd = m.feedback.Update(msg)
		return m, cmd
	}

	return m.updateInputs(msg)
}

func (m Model) ownSession(id string) bool {
	return m.session != nil && id == m.session.ID
}

// updateInputs forwards non-key messages such as cursor blinks to the
// focused input.
func (m Model) updateInputs(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.screen {
	case ScreenStart:
		m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	case ScreenQuestion:
		m.answer, cmd = m.answer.Update(msg)
	}
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.ForceQuit) {
		m.cancel()
		return m, tea.Quit
	}

	if m.overlay != OverlayNone {
		switch {
		case key.Matches(msg, m.keys.Escape), key.Matches(msg, m.keys.Debug):
			m.overlay = OverlayNone
		case key.Matches(msg, m.keys.Up):
			m.debugLog.ScrollUp(1)
		case key.Matches(msg, m.keys.Down):
			m.debugLog.ScrollDown(1)
		case key.Matches(msg, m.keys.Errors):
			m.debugLog.ToggleErrors()
		}
		return m, nil
	}

	if key.Matches(msg, m.keys.Debug) {
		m.overlay = OverlayDebug
		return m, nil
	}

	switch m.screen {
	case ScreenStart:
		return m.handleStartKey(msg)
	case ScreenQuestion:
		return m.handleQuestionKey(msg)
	case ScreenFeedback:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.cancel()
			return m, tea.Quit
		case key.Matches(msg, m.keys.Continue):
			return m.advance()
		}
	case ScreenSummary:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.cancel()
			return m, tea.Quit
		case key.Matches(msg, m.keys.Restart):
			return m.reset()
		}
	}
	return m, nil
}

func (m Model) handleStartKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.NextField):
		return m.focusField((m.focus + 1) % fieldCount)
	case key.Matches(msg, m.keys.PrevField):
		return m.focusField((m.focus - 1 + fieldCount) % fieldCount)
	case key.Matches(msg, m.keys.Start):
		req, err := m.startRequest()
		if err != nil {
			m.errText = err.Error()
			return m, nil
		}
		m.errText = ""
		m.debugLog.Addf(debug.KindHTTP, "POST /api/sessions (%s, %d questions)", req.Difficulty, req.MaxQuestions)
		return m, m.startSession(req)
	}
	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

func (m Model) focusField(i int) (tea.Model, tea.Cmd) {
	m.inputs[m.focus].Blur()
	m.focus = i
	return m, m.inputs[i].Focus()
}

// startRequest validates the form.
func (m Model) startRequest() (client.StartRequest, error) {
	req := client.StartRequest{
		Candidate: strings.TrimSpace(m.inputs[fieldCandidate].Value()),
		Role:      strings.TrimSpace(m.inputs[fieldRole].Value()),
	}
	if v := strings.TrimSpace(m.inputs[fieldQuestions].Value()); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return req, fmt.Errorf("questions must be a positive number")
		}
		req.MaxQuestions = n
	}
	d := strings.ToLower(strings.TrimSpace(m.inputs[fieldDifficulty].Value()))
	if d != "" {
		valid := false
		for _, v := range difficulties {
			valid = valid || v == d
		}
		if !valid {
			return req, fmt.Errorf("difficulty must be one of %s", strings.Join(difficulties, ", "))
		}
		req.Difficulty = d
	}
	return req, nil
}

func (m Model) handleQuestionKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Submit):
		text := strings.TrimSpace(m.answer.Value())
		if text == "" {
			m.errText = "answer is empty"
			return m, nil
		}
		m.errText = ""
		m.screen = ScreenAnalyzing
		m.answer.Blur()
		m.debugLog.Addf(debug.KindHTTP, "POST answer for %s (%d chars)", m.question.ID, len(text))
		return m, tea.Batch(m.spinner.Tick, m.submitAnswer(m.session.ID, text))
	case key.Matches(msg, m.keys.Abandon):
		m.debugLog.Add(debug.KindHTTP, "DELETE session")
		return m, m.abandon(m.session.ID)
	}
	var cmd tea.Cmd
	m.answer, cmd = m.answer.Update(msg)
	return m, cmd
}

func (m Model) onSessionStarted(st *client.SessionState) (tea.Model, tea.Cmd) {
	m.session = st
	m.question = st.Current
	m.number = len(st.Turns)
	m.statusBar.Candidate = st.Candidate
	m.debugLog.Addf(debug.KindHTTP, "session %s started", st.ID)
	if m.ws != nil {
		if err := m.ws.Subscribe(st.ID); err != nil {
			m.debugLog.Addf(debug.KindError, "subscribe: %v", err)
		}
	}
	if m.question == nil {
		m.showSummary("question_bank_exhausted", client.Summary{Trend: "none"})
		return m, nil
	}
	return m.askQuestion()
}

func (m Model) askQuestion() (tea.Model, tea.Cmd) {
	m.screen = ScreenQuestion
	m.statusBar.Progress = fmt.Sprintf("Q%d/%d", m.number, m.session.MaxQuestions)
	m.answer.Reset()
	return m, m.answer.Focus()
}

func (m Model) onAnswerResult(res *client.AnswerResult) (tea.Model, tea.Cmd) {
	m.result = res
	if res.Session != nil {
		m.session = res.Session
	}
	m.debugLog.Addf(debug.KindHTTP, "scored %d (fallback=%t)", res.Analysis.Score, res.Analysis.Fallback)
	m.screen = ScreenFeedback
	return m, m.feedback.Set(m.question, res.Analysis)
}

// advance leaves the feedback screen for the next question or the summary.
func (m Model) advance() (tea.Model, tea.Cmd) {
	res := m.result
	m.result = nil
	if res == nil {
		return m, nil
	}
	if res.Complete || res.Next == nil {
		s := client.Summary{Trend: "none"}
		if res.Summary != nil {
			s = *res.Summary
		}
		m.showSummary(res.Reason, s)
		return m, nil
	}
	m.question = res.Next
	m.number++
	return m.askQuestion()
}

func (m *Model) showSummary(reason string, s client.Summary) {
	m.reason = reason
	m.summary = &s
	m.screen = ScreenSummary
	m.statusBar.Progress = "done"
	m.answer.Blur()
}

// reset returns to the start form, keeping the previous name and role.
func (m Model) reset() (tea.Model, tea.Cmd) {
	m.session = nil
	m.question = nil
	m.result = nil
	m.summary = nil
	m.reason = ""
	m.number = 0
	m.errText = ""
	m.screen = ScreenStart
	m.statusBar.Progress = ""
	if m.ws != nil {
		m.ws.Subscribe("")
	}
	return m.focusField(fieldCandidate)
}

// --- commands ---

func (m Model) fetchHealth() tea.Cmd {
	return func() tea.Msg {
		h, err := m.http.GetHealth()
		if err != nil {
			return httpErrMsg{Op: "health", Err: err}
		}
		return healthMsg{Health: h}
	}
}

func (m Model) startSession(req client.StartRequest) tea.Cmd {
	return func() tea.Msg {
		st, err := m.http.StartSession(req)
		if err != nil {
			return httpErrMsg{Op: "start", Err: err}
		}
		return sessionStartedMsg{Session: st}
	}
}

func (m Model) submitAnswer(sessionID, text string) tea.Cmd {
	return func() tea.Msg {
		res, err := m.http.SubmitAnswer(sessionID, text)
		if err != nil {
			return httpErrMsg{Op: "submit", Err: err}
		}
		return answerResultMsg{Result: res}
	}
}

func (m Model) abandon(sessionID string) tea.Cmd {
	return func() tea.Msg {
		if _, err := m.http.Abandon(sessionID); err != nil {
			return httpErrMsg{Op: "abandon", Err: err}
		}
		s, err := m.http.Summary(sessionID)
		if err != nil {
			return httpErrMsg{Op: "summary", Err: err}
		}
		return abandonedMsg{Summary: s}
	}
}

// --- rendering ---

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	if m.overlay == OverlayDebug {
		return m.debugLog.View(m.width, m.height)
	}

	sections := []string{m.statusBar.View()}
	if !m.connected {
		sections = append(sections, m.renderDisconnected())
	}

	switch m.screen {
	case ScreenStart:
		sections = append(sections, m.renderStart())
	case ScreenQuestion, ScreenAnalyzing:
		sections = append(sections, m.renderQuestion())
	case ScreenFeedback:
		sections = append(sections, m.feedback.View())
	case ScreenSummary:
		if m.summary != nil {
			sections = append(sections, summary.View(m.reason, *m.summary, m.width))
		}
	}

	if m.errText != "" {
		sections = append(sections, theme.StyleError.Render("  "+m.errText))
	}
	sections = append(sections, theme.StyleDimmed.Render("  "+m.helpLine()))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderDisconnected() string {
	return lipgloss.NewStyle().
		Foreground(theme.ColorDanger).
		Bold(true).
		Padding(0, 1).
		Render("DISCONNECTED  Reconnecting to live updates...")
}

func (m Model) renderStart() string {
	labels := []string{"Name", "Target role", "Questions", "Starting level"}
	var b strings.Builder
	b.WriteString(theme.StyleHeader.Render("START A MOCK INTERVIEW") + "\n\n")
	for i, in := range m.inputs {
		label := theme.StyleDimmed.Width(16).Render(labels[i])
		if i == m.focus {
			label = theme.StyleSelected.Width(16).Render(labels[i])
		}
		b.WriteString(label + in.View() + "\n")
	}
	return theme.StyleBorder.Padding(1, 2).Render(b.String())
}

func (m Model) renderQuestion() string {
	if m.question == nil {
		return ""
	}
	q := m.question
	cat := lipgloss.NewStyle().Foreground(theme.CategoryColor(q.Category)).Render(strings.ReplaceAll(q.Category, "_", " "))
	meta := theme.StyleDimmed.Render(fmt.Sprintf("Question %d of %d  ", m.number, m.session.MaxQuestions)) +
		cat + theme.StyleDimmed.Render("  "+q.Difficulty)

	text := lipgloss.NewStyle().Bold(true).Width(max(m.width-6, 20)).Render(q.Text)
	lines := []string{meta, "", text}
	for _, h := range q.Hints {
		lines = append(lines, theme.StyleDimmed.Render("  • "+h))
	}
	lines = append(lines, "")
	if m.screen == ScreenAnalyzing {
		lines = append(lines, m.spinner.View()+" Analysing your answer...")
	} else {
		lines = append(lines, m.answer.View())
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (m Model) helpLine() string {
	switch m.screen {
	case ScreenStart:
		return "tab:next field  enter:start  ctrl+d:log  ctrl+c:quit"
	case ScreenQuestion:
		return "ctrl+s:submit  ctrl+x:end interview  ctrl+d:log  ctrl+c:quit"
	case ScreenAnalyzing:
		return "ctrl+d:log  ctrl+c:quit"
	case ScreenFeedback:
		return "enter:continue  ctrl+d:log  q:quit"
	default:
		return "n:new interview  ctrl+d:log  q:quit"
	}
}

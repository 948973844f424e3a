// Package client provides WebSocket and HTTP clients for the coaching server.
// Types mirror the server wire protocol without importing server packages.
package client

import (
	"encoding/json"
	"time"
)

// MessageType identifies the kind of WebSocket message.
type MessageType string

const (
	MsgSnapshot        MessageType = "snapshot"
	MsgDelta           MessageType = "delta"
	MsgQuestion        MessageType = "question"
	MsgAnalysis        MessageType = "analysis"
	MsgSessionComplete MessageType = "session_complete"
	MsgHealth          MessageType = "health"
	MsgError           MessageType = "error"
)

// WSMessage is the envelope for all WebSocket messages.
type WSMessage struct {
	Type      MessageType     `json:"type"`
	Seq       uint64          `json:"seq"`
	SessionID string          `json:"sessionId,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}

// Question mirrors questions.Question.
type Question struct {
	ID         string   `json:"id"`
	Text       string   `json:"text"`
	Category   string   `json:"category"`
	Difficulty string   `json:"difficulty"`
	Hints      []string `json:"hints,omitempty"`
	Keywords   []string `json:"keywords,omitempty"`
}

// Analysis mirrors analysis.Analysis.
type Analysis struct {
	Score      int      `json:"score"`
	Strengths  []string `json:"strengths"`
	Weaknesses []string `json:"weaknesses"`
	Tips       []string `json:"tips"`
	Summary    string   `json:"summary"`
	Fallback   bool     `json:"fallback"`
	Provider   string   `json:"provider,omitempty"`
	Model      string   `json:"model,omitempty"`
}

// Turn mirrors session.Turn.
type Turn struct {
	Question   Question   `json:"question"`
	Answer     string     `json:"answer,omitempty"`
	Analysis   *Analysis  `json:"analysis,omitempty"`
	AskedAt    time.Time  `json:"askedAt"`
	AnsweredAt *time.Time `json:"answeredAt,omitempty"`
}

// Status values of a session.
const (
	StatusActive    = "active"
	StatusAnalyzing = "analyzing"
	StatusComplete  = "complete"
	StatusAbandoned = "abandoned"
	StatusExpired   = "expired"
)

// SessionState mirrors session.SessionState.
type SessionState struct {
	ID             string     `json:"id"`
	Candidate      string     `json:"candidate,omitempty"`
	Role           string     `json:"role,omitempty"`
	Status         string     `json:"status"`
	Difficulty     string     `json:"difficulty"`
	Turns          []Turn     `json:"turns"`
	Current        *Question  `json:"current,omitempty"`
	MaxQuestions   int        `json:"maxQuestions"`
	StartedAt      time.Time  `json:"startedAt"`
	LastActivityAt time.Time  `json:"lastActivityAt"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
}

// Summary mirrors analysis.Summary.
type Summary struct {
	Count         int                `json:"count"`
	Average       float64            `json:"average"`
	Best          int                `json:"best"`
	Worst         int                `json:"worst"`
	Trend         string             `json:"trend"`
	ByCategory    map[string]float64 `json:"byCategory"`
	FallbackCount int                `json:"fallbackCount"`
}

// StartRequest is the body of POST /api/sessions.
type StartRequest struct {
	Candidate    string `json:"candidate"`
	Role         string `json:"role"`
	MaxQuestions int    `json:"maxQuestions,omitempty"`
	Difficulty   string `json:"difficulty,omitempty"`
}

// AnswerResult is the response of POST /api/sessions/{id}/answer.
type AnswerResult struct {
	Session  *SessionState `json:"session"`
	Analysis Analysis      `json:"analysis"`
	Next     *Question     `json:"next,omitempty"`
	Complete bool          `json:"complete"`
	Reason   string        `json:"reason,omitempty"`
	Summary  *Summary      `json:"summary,omitempty"`
}

// HealthStatus mirrors monitor.HealthStatus.
type HealthStatus string

const (
	StatusHealthy  HealthStatus = "healthy"
	StatusDegraded HealthStatus = "degraded"
	StatusFailed   HealthStatus = "failed"
)

// HealthSnapshot mirrors monitor.HealthSnapshot.
type HealthSnapshot struct {
	Status               HealthStatus `json:"status"`
	Provider             string       `json:"provider"`
	Model                string       `json:"model"`
	ConsecutiveFallbacks int          `json:"consecutiveFallbacks"`
	TotalAnalyses        int          `json:"totalAnalyses"`
	FallbackCount        int          `json:"fallbackCount"`
}

// Health is the response of GET /api/health.
type Health struct {
	Status         HealthStatus    `json:"status"`
	Analyzer       *HealthSnapshot `json:"analyzer,omitempty"`
	ActiveSessions int             `json:"activeSessions"`
	Clients        int             `json:"clients"`
	Agents         []string        `json:"agents"`
}

// SnapshotPayload is sent on connect and periodically.
type SnapshotPayload struct {
	Sessions []*SessionState `json:"sessions"`
}

// DeltaPayload carries coalesced session updates.
type DeltaPayload struct {
	Updates []*SessionState `json:"updates"`
	Removed []string        `json:"removed,omitempty"`
}

// QuestionPayload announces the next question of a session.
type QuestionPayload struct {
	Question Question `json:"question"`
	Number   int      `json:"number,omitempty"`
	Total    int      `json:"total,omitempty"`
}

// AnalysisPayload delivers the feedback for an answer.
type AnalysisPayload struct {
	QuestionID     string   `json:"questionId"`
	Analysis       Analysis `json:"analysis"`
	NextDifficulty string   `json:"nextDifficulty"`
}

// CompletePayload is sent when a session ends.
type CompletePayload struct {
	Reason  string  `json:"reason"`
	Summary Summary `json:"summary"`
}

// ErrorPayload wraps a server-side error.
type ErrorPayload struct {
	Error string `json:"error"`
}

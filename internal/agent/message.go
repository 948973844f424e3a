// Package agent routes messages between the coaching roles.
//
// The interviewer, analyzer and frontend roles are in-process handlers and
// the Master dispatches to them directly; there is no transport, discovery
// or remote registration.
package agent

import (
	"errors"
	"fmt"
	"time"

	"github.com/lunar-stra95/coach-coral-mistral/internal/analysis"
	"github.com/lunar-stra95/coach-coral-mistral/internal/questions"
)

type Role string

const (
	RoleInterviewer Role = "interviewer"
	RoleAnalyzer    Role = "analyzer"
	RoleFrontend    Role = "frontend"
	RoleMaster      Role = "master"
)

type MsgType string

const (
	MsgQuestionRequest MsgType = "question_request" // master -> interviewer
	MsgQuestion        MsgType = "question"         // interviewer -> master, master -> frontend
	MsgAnswer          MsgType = "answer"           // master -> analyzer
	MsgAnalysis        MsgType = "analysis"         // analyzer -> master, master -> frontend
	MsgSessionComplete MsgType = "session_complete" // interviewer or master -> frontend
	MsgError           MsgType = "error"
)

var (
	ErrUnknownRole        = errors.New("no agent registered for role")
	ErrUnsupportedMessage = errors.New("message type not handled by agent")
	ErrBadPayload         = errors.New("unexpected message payload")
)

type Message struct {
	ID            string    `json:"id"`
	Type          MsgType   `json:"type"`
	From          Role      `json:"from"`
	To            Role      `json:"to"`
	SessionID     string    `json:"sessionId,omitempty"`
	CorrelationID string    `json:"correlationId,omitempty"`
	Payload       any       `json:"payload,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// QuestionRequest asks the interviewer for the next question.
type QuestionRequest struct {
	Asked          map[string]bool            `json:"asked"`
	UsedCategories map[questions.Category]int `json:"usedCategories"`
	Difficulty     questions.Difficulty       `json:"difficulty"`
}

type QuestionPayload struct {
	Question questions.Question `json:"question"`
	Number   int                `json:"number,omitempty"`
	Total    int                `json:"total,omitempty"`
}

type AnswerPayload struct {
	Request analysis.Request `json:"request"`
}

type AnalysisPayload struct {
	QuestionID string               `json:"questionId"`
	Analysis   analysis.Analysis    `json:"analysis"`
	Difficulty questions.Difficulty `json:"nextDifficulty"`
}

// Completion reasons.
const (
	ReasonBudgetReached = "question_budget_reached"
	ReasonBankExhausted = "question_bank_exhausted"
)

type CompletePayload struct {
	Reason  string           `json:"reason"`
	Summary analysis.Summary `json:"summary"`
}

type ErrorPayload struct {
	Error string `json:"error"`
}

// PayloadAs extracts a typed payload, accepting either the value or a
// pointer to it.
func PayloadAs[T any](msg Message) (T, error) {
	switch p := msg.Payload.(type) {
	case T:
		return p, nil
	case *T:
		if p != nil {
			return *p, nil
		}
	}
	var zero T
	return zero, fmt.Errorf("%w: %s message carries %T", ErrBadPayload, msg.Type, msg.Payload)
}

package agent

import (
	"context"
	"fmt"

	"github.com/lunar-stra95/coach-coral-mistral/internal/analysis"
	"github.com/lunar-stra95/coach-coral-mistral/internal/questions"
)

// Interviewer picks questions.
type Interviewer struct {
	selector *questions.Selector
}

func NewInterviewer(selector *questions.Selector) *Interviewer {
	return &Interviewer{selector: selector}
}

func (i *Interviewer) Role() Role { return RoleInterviewer }

// Handle answers a question_request with a question, or with
// session_complete when every question has been asked.
func (i *Interviewer) Handle(_ context.Context, msg Message) (*Message, error) {
	if msg.Type != MsgQuestionRequest {
		return nil, fmt.Errorf("%w: interviewer got %s", ErrUnsupportedMessage, msg.Type)
	}
	req, err := PayloadAs[QuestionRequest](msg)
	if err != nil {
		return nil, err
	}

	q, ok := i.selector.Next(req.Asked, req.UsedCategories, req.Difficulty)
	if !ok {
		return &Message{
			Type:    MsgSessionComplete,
			Payload: CompletePayload{Reason: ReasonBankExhausted},
		}, nil
	}
	return &Message{
		Type:    MsgQuestion,
		Payload: QuestionPayload{Question: q, Number: len(req.Asked) + 1},
	}, nil
}

// Analyzer scores answers.
type Analyzer struct {
	analyzer *analysis.Analyzer
}

func NewAnalyzer(a *analysis.Analyzer) *Analyzer {
	return &Analyzer{analyzer: a}
}

func (a *Analyzer) Role() Role { return RoleAnalyzer }

func (a *Analyzer) Handle(ctx context.Context, msg Message) (*Message, error) {
	if msg.Type != MsgAnswer {
		return nil, fmt.Errorf("%w: analyzer got %s", ErrUnsupportedMessage, msg.Type)
	}
	p, err := PayloadAs[AnswerPayload](msg)
	if err != nil {
		return nil, err
	}

	result, err := a.analyzer.Analyze(ctx, p.Request)
	if err != nil {
		return nil, err
	}
	return &Message{
		Type: MsgAnalysis,
		Payload: AnalysisPayload{
			QuestionID: p.Request.QuestionID,
			Analysis:   result,
		},
	}, nil
}

// Publisher pushes session-scoped notifications to connected clients.
type Publisher interface {
	PublishSession(sessionID string, msgType string, payload any)
}

// Frontend relays notifications to the UI.
type Frontend struct {
	pub Publisher
}

func NewFrontend(pub Publisher) *Frontend {
	return &Frontend{pub: pub}
}

func (f *Frontend) Role() Role { return RoleFrontend }

func (f *Frontend) Handle(_ context.Context, msg Message) (*Message, error) {
	switch msg.Type {
	case MsgQuestion, MsgAnalysis, MsgSessionComplete, MsgError:
	default:
		return nil, fmt.Errorf("%w: frontend got %s", ErrUnsupportedMessage, msg.Type)
	}
	if f.pub != nil {
		f.pub.PublishSession(msg.SessionID, string(msg.Type), msg.Payload)
	}
	return nil, nil
}

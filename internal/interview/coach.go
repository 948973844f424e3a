// Package interview drives mock-interview sessions: it asks questions,
// routes answers for analysis, adapts difficulty and decides when a session
// ends.
package interview

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/lunar-stra95/coach-coral-mistral/internal/agent"
	"github.com/lunar-stra95/coach-coral-mistral/internal/analysis"
	"github.com/lunar-stra95/coach-coral-mistral/internal/questions"
	"github.com/lunar-stra95/coach-coral-mistral/internal/session"
)

var (
	ErrAnswerTooLong     = errors.New("answer exceeds maximum length")
	ErrUnknownQuestion   = errors.New("unknown question")
	ErrInvalidDifficulty = errors.New("invalid difficulty")
)

type Config struct {
	MaxQuestions     int
	StartDifficulty  questions.Difficulty
	PromoteThreshold int
	DemoteThreshold  int
	SessionTTL       time.Duration
	SweepInterval    time.Duration
	MaxAnswerChars   int
}

func DefaultConfig() Config {
	return Config{
		MaxQuestions:     5,
		StartDifficulty:  questions.Easy,
		PromoteThreshold: 8,
		DemoteThreshold:  4,
		SessionTTL:       30 * time.Minute,
		SweepInterval:    time.Minute,
		MaxAnswerChars:   8000,
	}
}

// Notifier receives session snapshots for the dashboard feed.
type Notifier interface {
	QueueUpdate(states []*session.SessionState)
	QueueRemoval(ids []string)
}

// Recorder tracks session lifecycle metrics.
type Recorder interface {
	SessionStarted()
	SessionFinished(outcome string)
	SetActiveSessions(n int)
}

// AnalysisObserver sees every analysis produced, including stateless ones.
type AnalysisObserver interface {
	Record(a analysis.Analysis)
}

type StartRequest struct {
	Candidate    string                `json:"candidate"`
	Role         string                `json:"role"`
	MaxQuestions int                   `json:"maxQuestions,omitempty"`
	Difficulty   *questions.Difficulty `json:"difficulty,omitempty"`
}

// TurnResult is the outcome of one submitted answer.
type TurnResult struct {
	Session  *session.SessionState `json:"session"`
	Analysis analysis.Analysis     `json:"analysis"`
	Next     *questions.Question   `json:"next,omitempty"`
	Complete bool                  `json:"complete"`
	Reason   string                `json:"reason,omitempty"`
	Summary  *analysis.Summary     `json:"summary,omitempty"`
}

// Coach is the session progression state machine. It is safe for
// concurrent use; answers for one session are processed one at a time.
type Coach struct {
	cfg    Config
	store  *session.Store
	master *agent.Master
	bank   *questions.Bank

	events   chan<- session.Event
	notifier Notifier
	rec      Recorder
	observer AnalysisObserver

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	dropped     int64
	lastDropLog time.Time

	now func() time.Time
}

func New(cfg Config, store *session.Store, master *agent.Master, bank *questions.Bank) *Coach {
	return &Coach{
		cfg:    cfg,
		store:  store,
		master: master,
		bank:   bank,
		locks:  make(map[string]*sync.Mutex),
		now:    time.Now,
	}
}

// SetEvents configures a channel for session lifecycle events. Pass nil to
// disable.
func (c *Coach) SetEvents(ch chan<- session.Event) { c.events = ch }

func (c *Coach) SetNotifier(n Notifier) { c.notifier = n }

func (c *Coach) SetRecorder(r Recorder) { c.rec = r }

func (c *Coach) SetAnalysisObserver(o AnalysisObserver) { c.observer = o }

func (c *Coach) Bank() *questions.Bank { return c.bank }

func (c *Coach) Master() *agent.Master { return c.master }

func (c *Coach) Config() Config { return c.cfg }

// Start creates a session and asks its first question.
func (c *Coach) Start(ctx context.Context, req StartRequest) (*session.SessionState, error) {
	maxQ := req.MaxQuestions
	if maxQ <= 0 {
		maxQ = c.cfg.MaxQuestions
	}
	difficulty := c.cfg.StartDifficulty
	if req.Difficulty != nil {
		if !req.Difficulty.Valid() {
			return nil, fmt.Errorf("%w: %d", ErrInvalidDifficulty, *req.Difficulty)
		}
		difficulty = *req.Difficulty
	}

	now := c.now()
	st := &session.SessionState{
		ID:             session.NewID(),
		Candidate:      strings.TrimSpace(req.Candidate),
		Role:           strings.TrimSpace(req.Role),
		Status:         session.Active,
		Difficulty:     difficulty,
		MaxQuestions:   maxQ,
		StartedAt:      now,
		LastActivityAt: now,
	}

	unlock := c.lock(st.ID)
	defer unlock()

	q, ok, err := c.nextQuestion(ctx, st)
	if err != nil {
		return nil, fmt.Errorf("select first question: %w", err)
	}
	if !ok {
		return nil, errors.New("question bank is empty")
	}
	st.Ask(q, now)

	c.store.Update(st)
	if c.rec != nil {
		c.rec.SessionStarted()
	}
	c.publish(ctx, st, agent.MsgQuestion, agent.QuestionPayload{Question: q, Number: 1, Total: st.MaxQuestions})
	c.changed(session.EventNew, st)
	log.Printf("session %s started (difficulty %s, %d questions)", st.ID, st.Difficulty, st.MaxQuestions)
	return st.Clone(), nil
}

// Submit records an answer to the pending question, has it analysed and
// advances the session.
func (c *Coach) Submit(ctx context.Context, id, answer string) (*TurnResult, error) {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return nil, analysis.ErrEmptyAnswer
	}
	if c.cfg.MaxAnswerChars > 0 && len([]rune(answer)) > c.cfg.MaxAnswerChars {
		return nil, fmt.Errorf("%w (%d characters)", ErrAnswerTooLong, c.cfg.MaxAnswerChars)
	}

	q, err := c.beginAnalysis(id)
	if err != nil {
		return nil, err
	}

	reply, err := c.master.Route(ctx, agent.Message{
		Type:      agent.MsgAnswer,
		To:        agent.RoleAnalyzer,
		SessionID: id,
		Payload:   agent.AnswerPayload{Request: analysis.RequestFor(q, answer)},
	})
	var result analysis.Analysis
	if err == nil {
		var p agent.AnalysisPayload
		if p, err = agent.PayloadAs[agent.AnalysisPayload](*reply); err == nil {
			result = p.Analysis
		}
	}
	if err != nil {
		c.abortAnalysis(id)
		return nil, fmt.Errorf("analyse answer: %w", err)
	}
	c.observe(result)

	return c.finishTurn(ctx, id, answer, result)
}

// beginAnalysis marks the session as analysing and returns the pending
// question.
func (c *Coach) beginAnalysis(id string) (questions.Question, error) {
	unlock, ok := c.lockExisting(id)
	if !ok {
		return questions.Question{}, session.ErrSessionNotFound
	}
	defer unlock()

	st, ok := c.store.Get(id)
	if !ok {
		return questions.Question{}, session.ErrSessionNotFound
	}
	switch {
	case st.IsTerminal():
		return questions.Question{}, session.ErrSessionComplete
	case st.Status == session.Analyzing:
		return questions.Question{}, session.ErrAnalysisInProgress
	}
	pending := st.Pending()
	if pending == nil {
		return questions.Question{}, session.ErrNoQuestionPending
	}

	st.Status = session.Analyzing
	st.LastActivityAt = c.now()
	c.store.Update(st)
	c.changed(session.EventUpdate, st)
	return pending.Question, nil
}

// abortAnalysis returns a session to active after a failed analysis so the
// answer can be resubmitted.
func (c *Coach) abortAnalysis(id string) {
	unlock, ok := c.lockExisting(id)
	if !ok {
		return
	}
	defer unlock()

	st, ok := c.store.Get(id)
	if !ok || st.Status != session.Analyzing {
		return
	}
	st.Status = session.Active
	st.LastActivityAt = c.now()
	c.store.Update(st)
	c.changed(session.EventUpdate, st)
}

func (c *Coach) finishTurn(ctx context.Context, id, answer string, result analysis.Analysis) (*TurnResult, error) {
	unlock, ok := c.lockExisting(id)
	if !ok {
		return nil, session.ErrSessionNotFound
	}
	defer unlock()

	st, ok := c.store.Get(id)
	if !ok {
		return nil, session.ErrSessionNotFound
	}
	if st.IsTerminal() {
		// Abandoned while the answer was being analysed.
		return nil, session.ErrSessionComplete
	}

	now := c.now()
	if err := st.RecordAnalysis(answer, result, now); err != nil {
		return nil, err
	}
	st.Status = session.Active
	st.Difficulty = questions.Adapt(st.Difficulty, result.Score, c.cfg.PromoteThreshold, c.cfg.DemoteThreshold)

	c.publish(ctx, st, agent.MsgAnalysis, agent.AnalysisPayload{
		QuestionID: st.Turns[len(st.Turns)-1].Question.ID,
		Analysis:   result,
		Difficulty: st.Difficulty,
	})

	res := &TurnResult{Analysis: result}

	reason := ""
	if st.Answered() >= st.MaxQuestions {
		reason = agent.ReasonBudgetReached
	} else {
		q, more, err := c.nextQuestion(ctx, st)
		switch {
		case err != nil:
			// The analysis is kept and the session ends with what it has.
			log.Printf("session %s: next question failed: %v", id, err)
			reason = agent.ReasonBankExhausted
		case !more:
			reason = agent.ReasonBankExhausted
		default:
			st.Ask(q, now)
			next := q.Clone()
			res.Next = &next
			c.publish(ctx, st, agent.MsgQuestion, agent.QuestionPayload{
				Question: q,
				Number:   len(st.Turns),
				Total:    st.MaxQuestions,
			})
		}
	}

	evType := session.EventUpdate
	if reason != "" {
		summary := c.complete(ctx, st, session.Complete, reason, now)
		res.Complete = true
		res.Reason = reason
		res.Summary = &summary
		evType = session.EventTerminal
	}

	c.store.Update(st)
	c.changed(evType, st)
	res.Session = st.Clone()
	return res, nil
}

// complete finishes st and announces its summary. Caller holds the lock.
func (c *Coach) complete(ctx context.Context, st *session.SessionState, status session.Status, reason string, now time.Time) analysis.Summary {
	st.Finish(status, now)
	summary := analysis.Summarize(st.Scored())
	c.publish(ctx, st, agent.MsgSessionComplete, agent.CompletePayload{Reason: reason, Summary: summary})
	if c.rec != nil {
		c.rec.SessionFinished(status.String())
	}
	log.Printf("session %s %s (%s, %d answered, avg %.1f)", st.ID, status, reason, summary.Count, summary.Average)
	return summary
}

func (c *Coach) nextQuestion(ctx context.Context, st *session.SessionState) (questions.Question, bool, error) {
	reply, err := c.master.Route(ctx, agent.Message{
		Type:      agent.MsgQuestionRequest,
		To:        agent.RoleInterviewer,
		SessionID: st.ID,
		Payload: agent.QuestionRequest{
			Asked:          st.AskedIDs(),
			UsedCategories: st.UsedCategories(),
			Difficulty:     st.Difficulty,
		},
	})
	if err != nil {
		return questions.Question{}, false, err
	}
	if reply.Type == agent.MsgSessionComplete {
		return questions.Question{}, false, nil
	}
	p, err := agent.PayloadAs[agent.QuestionPayload](*reply)
	if err != nil {
		return questions.Question{}, false, err
	}
	return p.Question, true, nil
}

func (c *Coach) Get(id string) (*session.SessionState, error) {
	st, ok := c.store.Get(id)
	if !ok {
		return nil, session.ErrSessionNotFound
	}
	return st, nil
}

func (c *Coach) List() []*session.SessionState {
	return c.store.GetAll()
}

// Summary aggregates the answers given so far.
func (c *Coach) Summary(id string) (analysis.Summary, error) {
	st, ok := c.store.Get(id)
	if !ok {
		return analysis.Summary{}, session.ErrSessionNotFound
	}
	return analysis.Summarize(st.Scored()), nil
}

// Abandon ends a session early.
func (c *Coach) Abandon(ctx context.Context, id string) (*session.SessionState, error) {
	unlock, ok := c.lockExisting(id)
	if !ok {
		return nil, session.ErrSessionNotFound
	}
	defer unlock()

	st, ok := c.store.Get(id)
	if !ok {
		return nil, session.ErrSessionNotFound
	}
	if st.IsTerminal() {
		return nil, session.ErrSessionComplete
	}
	c.complete(ctx, st, session.Abandoned, "abandoned", c.now())
	c.store.Update(st)
	c.changed(session.EventTerminal, st)
	return st.Clone(), nil
}

// Sweep expires sessions idle longer than the TTL and drops them from the
// store. It returns the removed IDs.
func (c *Coach) Sweep(ctx context.Context, now time.Time) []string {
	ids := c.store.Expired(now, c.cfg.SessionTTL)
	if len(ids) == 0 {
		return nil
	}
	for _, id := range ids {
		unlock, ok := c.lockExisting(id)
		if !ok {
			continue
		}
		if st, ok := c.store.Get(id); ok && !st.IsTerminal() {
			c.complete(ctx, st, session.Expired, "expired", now)
			c.changed(session.EventTerminal, st)
		}
		c.store.Remove(id)
		unlock()
		c.dropLock(id)
	}
	if c.notifier != nil {
		c.notifier.QueueRemoval(ids)
	}
	c.reportActive()
	log.Printf("swept %d idle sessions", len(ids))
	return ids
}

// RunSweeper calls Sweep every SweepInterval until ctx is cancelled.
func (c *Coach) RunSweeper(ctx context.Context) {
	if c.cfg.SweepInterval <= 0 || c.cfg.SessionTTL <= 0 {
		return
	}
	ticker := time.NewTicker(c.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			c.Sweep(ctx, t)
		}
	}
}

// AnalyzeOnce scores a single answer without a session.
func (c *Coach) AnalyzeOnce(ctx context.Context, req analysis.Request) (analysis.Analysis, error) {
	if strings.TrimSpace(req.Answer) == "" {
		return analysis.Analysis{}, analysis.ErrEmptyAnswer
	}
	if c.cfg.MaxAnswerChars > 0 && len([]rune(req.Answer)) > c.cfg.MaxAnswerChars {
		return analysis.Analysis{}, fmt.Errorf("%w (%d characters)", ErrAnswerTooLong, c.cfg.MaxAnswerChars)
	}
	if req.QuestionID != "" && req.Question == "" {
		q, ok := c.bank.Get(req.QuestionID)
		if !ok {
			return analysis.Analysis{}, fmt.Errorf("%w %q", ErrUnknownQuestion, req.QuestionID)
		}
		req = analysis.RequestFor(q, req.Answer)
	}

	reply, err := c.master.Route(ctx, agent.Message{
		Type:    agent.MsgAnswer,
		To:      agent.RoleAnalyzer,
		Payload: agent.AnswerPayload{Request: req},
	})
	if err != nil {
		return analysis.Analysis{}, err
	}
	p, err := agent.PayloadAs[agent.AnalysisPayload](*reply)
	if err != nil {
		return analysis.Analysis{}, err
	}
	c.observe(p.Analysis)
	return p.Analysis, nil
}

func (c *Coach) observe(a analysis.Analysis) {
	if c.observer != nil {
		c.observer.Record(a)
	}
}

// publish tells the frontend agent about a session event.
func (c *Coach) publish(ctx context.Context, st *session.SessionState, t agent.MsgType, payload any) {
	if _, err := c.master.Route(ctx, agent.Message{
		Type:      t,
		To:        agent.RoleFrontend,
		SessionID: st.ID,
		Payload:   payload,
	}); err != nil && !errors.Is(err, agent.ErrUnknownRole) {
		log.Printf("session %s: notify frontend: %v", st.ID, err)
	}
}

// changed emits a lifecycle event and queues a dashboard update.
func (c *Coach) changed(evType session.EventType, st *session.SessionState) {
	if c.notifier != nil {
		c.notifier.QueueUpdate([]*session.SessionState{st.Clone()})
	}
	c.reportActive()
	c.emitEvent(evType, st)
}

func (c *Coach) reportActive() {
	if c.rec != nil {
		c.rec.SetActiveSessions(c.store.ActiveCount())
	}
}

// emitEvent uses a non-blocking send so a slow consumer never stalls a
// session. Drops are logged at most every 10 seconds.
func (c *Coach) emitEvent(evType session.EventType, st *session.SessionState) {
	if c.events == nil {
		return
	}
	select {
	case c.events <- session.Event{
		Type:        evType,
		State:       st.Clone(),
		ActiveCount: c.store.ActiveCount(),
	}:
	default:
		c.locksMu.Lock()
		c.dropped++
		now := time.Now()
		if c.lastDropLog.IsZero() || now.Sub(c.lastDropLog) >= 10*time.Second {
			log.Printf("session events dropped: %d (channel full)", c.dropped)
			c.dropped = 0
			c.lastDropLog = now
		}
		c.locksMu.Unlock()
	}
}

func (c *Coach) lock(id string) func() {
	c.locksMu.Lock()
	mu, ok := c.locks[id]
	if !ok {
		mu = &sync.Mutex{}
		c.locks[id] = mu
	}
	c.locksMu.Unlock()
	mu.Lock()
	return mu.Unlock
}

// lockExisting is lock for sessions that must already be stored. Unknown
// IDs get no lock entry.
func (c *Coach) lockExisting(id string) (func(), bool) {
	c.locksMu.Lock()
	mu, ok := c.locks[id]
	if !ok {
		if _, exists := c.store.Get(id); !exists {
			c.locksMu.Unlock()
			return nil, false
		}
		mu = &sync.Mutex{}
		c.locks[id] = mu
	}
	c.locksMu.Unlock()
	mu.Lock()
	return mu.Unlock, true
}

func (c *Coach) dropLock(id string) {
	c.locksMu.Lock()
	delete(c.locks, id)
	c.locksMu.Unlock()
}

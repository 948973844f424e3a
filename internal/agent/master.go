package agent

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

const defaultLogSize = 256

// Agent handles messages addressed to its role. A nil reply means the
// message was consumed.
type Agent interface {
	Role() Role
	Handle(ctx context.Context, msg Message) (*Message, error)
}

// Master owns the role registry and dispatches messages directly to the
// registered handler. It keeps a bounded log of recent traffic.
type Master struct {
	mu     sync.RWMutex
	agents map[Role]Agent

	logMu  sync.Mutex
	ring   []Message
	next   int
	full   bool
	counts map[MsgType]int

	filter LogFilter

	now func() time.Time
}

// LogFilter scrubs personal data from messages before they are logged.
// Routed messages are delivered unchanged.
type LogFilter interface {
	RedactAnswer(text string) string
	MaskID(id string) string
}

func NewMaster(logSize int) *Master {
	if logSize <= 0 {
		logSize = defaultLogSize
	}
	return &Master{
		agents: make(map[Role]Agent),
		ring:   make([]Message, logSize),
		counts: make(map[MsgType]int),
		now:    time.Now,
	}
}

// Register adds a, replacing any agent already holding its role.
func (m *Master) Register(a Agent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.agents[a.Role()] = a
}

func (m *Master) Unregister(role Role) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.agents, role)
}

func (m *Master) SetLogFilter(f LogFilter) {
	m.logMu.Lock()
	defer m.logMu.Unlock()
	m.filter = f
}

// Roles returns the registered roles.
func (m *Master) Roles() []Role {
	m.mu.RLock()
	defer m.mu.RUnlock()
	roles := make([]Role, 0, len(m.agents))
	for r := range m.agents {
		roles = append(roles, r)
	}
	return roles
}

// Route delivers msg to the agent registered for msg.To and returns its
// reply. IDs, timestamps and correlation are filled in on both directions.
func (m *Master) Route(ctx context.Context, msg Message) (*Message, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = m.now()
	}
	if msg.From == "" {
		msg.From = RoleMaster
	}

	m.mu.RLock()
	a, ok := m.agents[msg.To]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRole, msg.To)
	}

	m.record(msg)

	reply, err := a.Handle(ctx, msg)
	if err != nil {
		log.Printf("agent %s failed on %s: %v", msg.To, msg.Type, err)
		m.record(Message{
			ID:            uuid.NewString(),
			Type:          MsgError,
			From:          msg.To,
			To:            msg.From,
			SessionID:     msg.SessionID,
			CorrelationID: msg.ID,
			Payload:       ErrorPayload{Error: err.Error()},
			Timestamp:     m.now(),
		})
		return nil, err
	}
	if reply == nil {
		return nil, nil
	}

	if reply.ID == "" {
		reply.ID = uuid.NewString()
	}
	if reply.Timestamp.IsZero() {
		reply.Timestamp = m.now()
	}
	if reply.From == "" {
		reply.From = msg.To
	}
	if reply.To == "" {
		reply.To = msg.From
	}
	if reply.SessionID == "" {
		reply.SessionID = msg.SessionID
	}
	reply.CorrelationID = msg.ID
	m.record(*reply)
	return reply, nil
}

func (m *Master) record(msg Message) {
	m.logMu.Lock()
	defer m.logMu.Unlock()
	if m.filter != nil {
		msg = scrub(m.filter, msg)
	}
	m.ring[m.next] = msg
	m.next = (m.next + 1) % len(m.ring)
	if m.next == 0 {
		m.full = true
	}
	m.counts[msg.Type]++
}

// Recent returns up to n of the most recent messages, oldest first.
func (m *Master) Recent(n int) []Message {
	m.logMu.Lock()
	defer m.logMu.Unlock()

	size := m.next
	if m.full {
		size = len(m.ring)
	}
	if n <= 0 || n > size {
		n = size
	}
	out := make([]Message, 0, n)
	for i := size - n; i < size; i++ {
		idx := i
		if m.full {
			idx = (m.next + i) % len(m.ring)
		}
		out = append(out, m.ring[idx])
	}
	return out
}

// Counts returns how many messages of each type have been routed.
func (m *Master) Counts() map[MsgType]int {
	m.logMu.Lock()
	defer m.logMu.Unlock()
	out := make(map[MsgType]int, len(m.counts))
	for k, v := range m.counts {
		out[k] = v
	}
	return out
}

func scrub(f LogFilter, msg Message) Message {
	msg.SessionID = f.MaskID(msg.SessionID)
	switch p := msg.Payload.(type) {
	case AnswerPayload:
		p.Request.Answer = f.RedactAnswer(p.Request.Answer)
		msg.Payload = p
	case *AnswerPayload:
		if p != nil {
			cp := *p
			cp.Request.Answer = f.RedactAnswer(cp.Request.Answer)
			msg.Payload = cp
		}
	case ErrorPayload:
		p.Error = f.RedactAnswer(p.Error)
		msg.Payload = p
	}
	return msg
}

package session

// EventType classifies session lifecycle events.
type EventType int

const (
	EventNew      EventType = iota // session started
	EventUpdate                    // answer submitted, analysed or new question asked
	EventTerminal                  // session completed, abandoned or expired
)

func (t EventType) String() string {
	switch t {
	case EventNew:
		return "new"
	case EventUpdate:
		return "update"
	case EventTerminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// Event carries a session state snapshot to observers.
type Event struct {
	Type        EventType
	State       *SessionState // snapshot (safe to retain)
	ActiveCount int           // non-terminal sessions at event time
}

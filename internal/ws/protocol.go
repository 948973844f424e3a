package ws

import (
	"github.com/lunar-stra95/coach-coral-mistral/internal/session"
)

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

type WSMessage struct {
	Type      MessageType `json:"type"`
	Seq       uint64      `json:"seq"`
	SessionID string      `json:"sessionId,omitempty"`
	Payload   interface{} `json:"payload"`
}

type SnapshotPayload struct {
	Sessions []*session.SessionState `json:"sessions"`
}

type DeltaPayload struct {
	Updates []*session.SessionState `json:"updates"`
	Removed []string                `json:"removed,omitempty"`
}

// Client-to-server control messages.
const (
	CtlSubscribe   = "subscribe"
	CtlUnsubscribe = "unsubscribe"
)

// ClientMessage is sent by a client to scope session messages to one
// session. Clients that never subscribe receive every session's messages.
type ClientMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
}

package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"
)

const (
	reconnectBaseDelay = 1 * time.Second
	reconnectMaxDelay  = 30 * time.Second
	writeTimeout       = 10 * time.Second
	pongTimeout        = 60 * time.Second
	pingInterval       = 30 * time.Second
)

// WSClient manages the WebSocket connection to the coaching server.
type WSClient struct {
	url   string
	token string

	mu        sync.Mutex
	writeMu   sync.Mutex
	conn      *websocket.Conn
	seq       uint64
	sessionID string // re-sent as ?session= on reconnect
	stopPing  context.CancelFunc
}

// NewWSClient creates a client that connects to the given WebSocket URL.
func NewWSClient(url, token string) *WSClient {
	return &WSClient{url: url, token: token}
}

// --- Bubble Tea messages ---

// WSConnectedMsg is sent when the WebSocket connects.
type WSConnectedMsg struct{}

// WSDisconnectedMsg is sent when the connection drops.
type WSDisconnectedMsg struct{ Err error }

// WSSnapshotMsg delivers a full session snapshot.
type WSSnapshotMsg struct{ Payload SnapshotPayload }

// WSDeltaMsg delivers incremental session updates.
type WSDeltaMsg struct{ Payload DeltaPayload }

// WSQuestionMsg announces the next question of a session.
type WSQuestionMsg struct {
	SessionID string
	Payload   QuestionPayload
}

// WSAnalysisMsg delivers feedback for an answer.
type WSAnalysisMsg struct {
	SessionID string
	Payload   AnalysisPayload
}

// WSCompleteMsg is sent when a session ends.
type WSCompleteMsg struct {
	SessionID string
	Payload   CompletePayload
}

// WSHealthMsg reports analyzer health changes.
type WSHealthMsg struct{ Payload HealthSnapshot }

// WSErrorMsg wraps a server-side error.
type WSErrorMsg struct {
	SessionID string
	Message   string
}

// dialURL adds the auth token and current subscription to the base URL.
func (c *WSClient) dialURL() string {
	u, err := url.Parse(c.url)
	if err != nil {
		return c.url
	}
	q := u.Query()
	if c.token != "" {
		q.Set("token", c.token)
	}
	c.mu.Lock()
	if c.sessionID != "" {
		q.Set("session", c.sessionID)
	}
	c.mu.Unlock()
	u.RawQuery = q.Encode()
	return u.String()
}

// Listen returns a Bubble Tea command that dials with exponential backoff
// and reports WSConnectedMsg once a connection is up. It returns nil if ctx
// ends first.
func (c *WSClient) Listen(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		for delay := reconnectBaseDelay; ; delay = min(delay*2, reconnectMaxDelay) {
			conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.dialURL(), nil)
			if err == nil {
				c.attach(ctx, conn)
				return WSConnectedMsg{}
			}
			if ctx.Err() != nil {
				return nil
			}
			log.Printf("ws dial error: %v (retry in %v)", err, delay)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(delay):
			}
		}
	}
}

// attach makes conn current and starts its keepalive, stopping the previous
// connection's.
func (c *WSClient) attach(ctx context.Context, conn *websocket.Conn) {
	keepCtx, cancel := context.WithCancel(ctx)

	c.mu.Lock()
	if c.stopPing != nil {
		c.stopPing()
	}
	c.conn, c.seq, c.stopPing = conn, 0, cancel
	c.mu.Unlock()

	go c.keepalive(keepCtx, conn)
}

func (c *WSClient) current() *websocket.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

// detach closes conn and clears it if it is still current.
func (c *WSClient) detach(conn *websocket.Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()
	conn.Close()
}

// ReadLoop returns a Bubble Tea command that reads until the next message
// the UI cares about. Run it again after handling each message.
func (c *WSClient) ReadLoop(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		conn := c.current()
		if conn == nil {
			return WSDisconnectedMsg{Err: fmt.Errorf("no connection")}
		}

		extend := func() { conn.SetReadDeadline(time.Now().Add(pongTimeout)) }
		conn.SetPongHandler(func(string) error { extend(); return nil })
		extend()

		for {
			var msg WSMessage
			if err := conn.ReadJSON(&msg); err != nil {
				var syntaxErr *json.SyntaxError
				var typeErr *json.UnmarshalTypeError
				if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
					continue
				}
				c.detach(conn)
				return WSDisconnectedMsg{Err: err}
			}

			c.mu.Lock()
			c.seq = msg.Seq
			c.mu.Unlock()

			if teaMsg := Decode(msg); teaMsg != nil {
				return teaMsg
			}
		}
	}
}

// keepalive pings conn until ctx ends, a write fails, or conn is replaced.
func (c *WSClient) keepalive(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if c.current() != conn {
			return
		}
		if err := c.write(conn, func() error { return conn.WriteMessage(websocket.PingMessage, nil) }); err != nil {
			return
		}
	}
}

// write serialises writes on conn under a deadline.
func (c *WSClient) write(conn *websocket.Conn, fn func() error) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return fn()
}

// Subscribe scopes session messages to one session. An empty ID clears the
// subscription. The choice survives reconnects.
func (c *WSClient) Subscribe(sessionID string) error {
	c.mu.Lock()
	c.sessionID = sessionID
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("not connected")
	}
	msg := map[string]string{"type": "subscribe", "sessionId": sessionID}
	if sessionID == "" {
		msg = map[string]string{"type": "unsubscribe"}
	}
	return c.write(conn, func() error { return conn.WriteJSON(msg) })
}

// Seq returns the last seen sequence number.
func (c *WSClient) Seq() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// Decode converts a wire message into its Bubble Tea message. It returns nil
// for unknown types and malformed payloads.
func Decode(msg WSMessage) tea.Msg {
	switch msg.Type {
	case MsgSnapshot:
		var p SnapshotPayload
		if json.Unmarshal(msg.Payload, &p) == nil {
			return WSSnapshotMsg{Payload: p}
		}
	case MsgDelta:
		var p DeltaPayload
		if json.Unmarshal(msg.Payload, &p) == nil {
			return WSDeltaMsg{Payload: p}
		}
	case MsgQuestion:
		var p QuestionPayload
		if json.Unmarshal(msg.Payload, &p) == nil {
			return WSQuestionMsg{SessionID: msg.SessionID, Payload: p}
		}
	case MsgAnalysis:
		var p AnalysisPayload
		if json.Unmarshal(msg.Payload, &p) == nil {
			return WSAnalysisMsg{SessionID: msg.SessionID, Payload: p}
		}
	case MsgSessionComplete:
		var p CompletePayload
		if json.Unmarshal(msg.Payload, &p) == nil {
			return WSCompleteMsg{SessionID: msg.SessionID, Payload: p}
		}
	case MsgHealth:
		var p HealthSnapshot
		if json.Unmarshal(msg.Payload, &p) == nil {
			return WSHealthMsg{Payload: p}
		}
	case MsgError:
		var p ErrorPayload
		if json.Unmarshal(msg.Payload, &p) == nil {
			return WSErrorMsg{SessionID: msg.SessionID, Message: p.Error}
		}
	}
	return nil
}

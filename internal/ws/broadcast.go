package ws

import (
	"encoding/json"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lunar-stra95/coach-coral-mistral/internal/monitor"
	"github.com/lunar-stra95/coach-coral-mistral/internal/session"
)

// ErrTooManyConnections is returned by AddClient when the connection cap
// has been reached.
var ErrTooManyConnections = errors.New("too many websocket connections")

const writeWait = 10 * time.Second

type client struct {
	conn *websocket.Conn
	b    *Broadcaster
	send chan []byte

	mu        sync.Mutex
	sessionID string // subscribed session; empty for dashboard clients
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			c.b.RemoveClient(c)
			return
		}
	}
}

func (c *client) subscribe(id string) {
	c.mu.Lock()
	c.sessionID = id
	c.mu.Unlock()
}

func (c *client) subscription() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// ClientGauge receives the connected client count whenever it changes.
type ClientGauge interface {
	SetWSClients(n int)
}

type Broadcaster struct {
	mu       sync.RWMutex
	clients  map[*client]bool
	store    *session.Store
	privacy  *session.PrivacyFilter
	gauge    ClientGauge
	maxConns int

	throttle       time.Duration
	snapshotTicker *time.Ticker
	done           chan struct{}
	stopOnce       sync.Once

	pendingUpdates []*session.SessionState
	pendingRemoved []string
	flushTimer     *time.Timer
	flushMu        sync.Mutex

	seq atomic.Uint64
}

// NewBroadcaster starts the periodic snapshot loop. maxConns <= 0 means no
// connection cap. Call Stop to release the ticker.
func NewBroadcaster(store *session.Store, throttle, snapshotInterval time.Duration, maxConns int) *Broadcaster {
	b := &Broadcaster{
		clients:  make(map[*client]bool),
		store:    store,
		privacy:  &session.PrivacyFilter{},
		maxConns: maxConns,
		throttle: throttle,
		done:     make(chan struct{}),
	}

	b.snapshotTicker = time.NewTicker(snapshotInterval)
	go b.snapshotLoop()

	return b
}

// SetPrivacyFilter replaces the filter applied to session state before it is
// sent to clients.
func (b *Broadcaster) SetPrivacyFilter(f *session.PrivacyFilter) {
	if f == nil {
		f = &session.PrivacyFilter{}
	}
	b.mu.Lock()
	b.privacy = f
	b.mu.Unlock()
}

func (b *Broadcaster) SetClientGauge(g ClientGauge) {
	b.mu.Lock()
	b.gauge = g
	b.mu.Unlock()
}

// FilterSessions applies the privacy filter to sessions without mutating
// the input.
func (b *Broadcaster) FilterSessions(sessions []*session.SessionState) []*session.SessionState {
	b.mu.RLock()
	f := b.privacy
	b.mu.RUnlock()
	return f.FilterSlice(sessions)
}

func (b *Broadcaster) maskIDs(ids []string) []string {
	b.mu.RLock()
	f := b.privacy
	b.mu.RUnlock()
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = f.MaskID(id)
	}
	return out
}

func (b *Broadcaster) AddClient(conn *websocket.Conn) (*client, error) {
	b.mu.Lock()
	if b.maxConns > 0 && len(b.clients) >= b.maxConns {
		b.mu.Unlock()
		return nil, ErrTooManyConnections
	}
	c := &client{
		conn: conn,
		b:    b,
		send: make(chan []byte, 64),
	}
	b.clients[c] = true
	n := len(b.clients)
	gauge := b.gauge
	b.mu.Unlock()

	go c.writePump()
	if gauge != nil {
		gauge.SetWSClients(n)
	}

	data, err := b.encode(WSMessage{
		Type:    MsgSnapshot,
		Payload: SnapshotPayload{Sessions: b.FilterSessions(b.store.GetAll())},
	})
	if err == nil {
		b.mu.RLock()
		if b.clients[c] {
			select {
			case c.send <- data:
			default:
				// Client too slow, drop the snapshot
			}
		}
		b.mu.RUnlock()
	}

	return c, nil
}

func (b *Broadcaster) RemoveClient(c *client) {
	b.mu.Lock()
	_, ok := b.clients[c]
	if ok {
		delete(b.clients, c)
		close(c.send)
	}
	n := len(b.clients)
	gauge := b.gauge
	b.mu.Unlock()

	if ok && gauge != nil {
		gauge.SetWSClients(n)
	}
}

func (b *Broadcaster) QueueUpdate(states []*session.SessionState) {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	b.pendingUpdates = append(b.pendingUpdates, states...)

	if b.flushTimer == nil {
		b.flushTimer = time.AfterFunc(b.throttle, b.flush)
	}
}

func (b *Broadcaster) QueueRemoval(ids []string) {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	b.pendingRemoved = append(b.pendingRemoved, ids...)

	if b.flushTimer == nil {
		b.flushTimer = time.AfterFunc(b.throttle, b.flush)
	}
}

// PublishSession sends a session-scoped message to clients subscribed to
// sessionID and to clients with no subscription. Unsubscribed clients see
// the session ID as masked by the privacy filter.
func (b *Broadcaster) PublishSession(sessionID string, msgType string, payload any) {
	msg := WSMessage{Type: MessageType(msgType), SessionID: sessionID, Payload: payload}
	masked := b.maskIDs([]string{sessionID})[0]
	if masked == sessionID {
		b.broadcastFiltered(msg, func(c *client) bool {
			sub := c.subscription()
			return sub == "" || sub == sessionID
		})
		return
	}

	b.broadcastFiltered(msg, func(c *client) bool {
		return c.subscription() == sessionID
	})
	msg.SessionID = masked
	b.broadcastFiltered(msg, func(c *client) bool {
		return c.subscription() == ""
	})
}

// PublishHealth announces an analyzer health change to every client.
func (b *Broadcaster) PublishHealth(h monitor.HealthSnapshot) {
	b.broadcast(WSMessage{Type: MsgHealth, Payload: h})
}

func (b *Broadcaster) flush() {
	b.flushMu.Lock()
	updates := b.pendingUpdates
	removed := b.pendingRemoved
	b.pendingUpdates = nil
	b.pendingRemoved = nil
	b.flushTimer = nil
	b.flushMu.Unlock()

	if len(updates) == 0 && len(removed) == 0 {
		return
	}

	msg := WSMessage{
		Type: MsgDelta,
		Payload: DeltaPayload{
			Updates: b.FilterSessions(latestByID(updates)),
			Removed: b.maskIDs(removed),
		},
	}
	b.broadcast(msg)
}

// latestByID keeps the last queued state per session, preserving first-seen
// order.
func latestByID(states []*session.SessionState) []*session.SessionState {
	idx := make(map[string]int, len(states))
	out := make([]*session.SessionState, 0, len(states))
	for _, s := range states {
		if i, ok := idx[s.ID]; ok {
			out[i] = s
			continue
		}
		idx[s.ID] = len(out)
		out = append(out, s)
	}
	return out
}

func (b *Broadcaster) snapshotLoop() {
	for {
		select {
		case <-b.done:
			return
		case <-b.snapshotTicker.C:
			if b.ClientCount() == 0 {
				continue
			}
			b.broadcast(WSMessage{
				Type:    MsgSnapshot,
				Payload: SnapshotPayload{Sessions: b.FilterSessions(b.store.GetAll())},
			})
		}
	}
}

// Stop halts the snapshot loop. Connected clients are left open.
func (b *Broadcaster) Stop() {
	b.stopOnce.Do(func() {
		b.snapshotTicker.Stop()
		close(b.done)
	})
}

func (b *Broadcaster) encode(msg WSMessage) ([]byte, error) {
	msg.Seq = b.seq.Add(1)
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("broadcast marshal error: %v", err)
	}
	return data, err
}

func (b *Broadcaster) broadcast(msg WSMessage) {
	b.broadcastFiltered(msg, nil)
}

func (b *Broadcaster) broadcastFiltered(msg WSMessage, include func(*client) bool) {
	data, err := b.encode(msg)
	if err != nil {
		return
	}

	var slow []*client
	b.mu.RLock()
	for c := range b.clients {
		if include != nil && !include(c) {
			continue
		}
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	b.mu.RUnlock()

	for _, c := range slow {
		log.Printf("ws client too slow, disconnecting")
		b.RemoveClient(c)
	}
}

func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

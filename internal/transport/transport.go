// Package transport connects a local room replica to remote peers sharing
// a sync topic. It dials an ordered list of relay endpoints, settles on the
// first one that answers, and afterwards treats connectivity as a boolean
// status: the underlying websocket handles drops and the peer session reacts
// to the status flapping, not to individual failures.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"spyroom/internal/domain"
)

const (
	// Time allowed for an endpoint to answer with "connected" before the
	// next candidate is tried
	DefaultDialWait = 1200 * time.Millisecond

	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 1 << 20

	// Size of the send channel buffer
	sendBufferSize = 256

	// Polling interval for WaitUntilConnected
	statusPollInterval = 50 * time.Millisecond

	// Pause between redial sweeps over the endpoint list after a drop
	reconnectInterval = 2 * time.Second
)

// Transport is one peer's connection to the sync mesh for a single room
// topic. Switching rooms discards the Transport and creates a fresh one.
type Transport struct {
	endpoints []string
	dialWait  time.Duration
	logger    *slog.Logger

	send      chan []byte
	done      chan struct{}
	connected atomic.Bool
	ready     atomic.Bool

	mu          sync.Mutex
	conn        *websocket.Conn
	topic       string
	lastErr     error
	closed      bool
	onUpdate    func([]byte)
	onSyncReq   func()
	onReconnect func()
}

// New creates a transport that will try the given relay endpoints in order
func New(endpoints []string, dialWait time.Duration, logger *slog.Logger) *Transport {
	if dialWait <= 0 {
		dialWait = DefaultDialWait
	}
	return &Transport{
		endpoints: endpoints,
		dialWait:  dialWait,
		logger:    logger,
		send:      make(chan []byte, sendBufferSize),
		done:      make(chan struct{}),
	}
}

// OnUpdate registers the handler for incoming replication updates
func (t *Transport) OnUpdate(fn func([]byte)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onUpdate = fn
}

// OnSyncRequest registers the handler for incoming sync requests
func (t *Transport) OnSyncRequest(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onSyncReq = fn
}

// OnReconnect registers a callback invoked after a successful redial, so
// the session can request a fresh state exchange
func (t *Transport) OnReconnect(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onReconnect = fn
}

// Connect tries each candidate endpoint in order, waiting up to the dial
// wait for the relay's "connected" answer, and stops at the first success.
// On total failure the transport is still Ready, remains unconnected, and
// LastErr describes every candidate tried.
func (t *Transport) Connect(ctx context.Context, topic string) error {
	defer t.ready.Store(true)

	var attempts []string
	for _, endpoint := range t.endpoints {
		url := fmt.Sprintf("%s/rooms/%s", strings.TrimRight(endpoint, "/"), topic)

		conn, err := t.dial(ctx, url)
		if err != nil {
			attempts = append(attempts, fmt.Sprintf("%s (%v)", endpoint, err))
			t.logger.Debug("relay candidate failed", "endpoint", endpoint, "error", err)
			continue
		}

		t.mu.Lock()
		t.conn = conn
		t.topic = topic
		t.mu.Unlock()
		t.connected.Store(true)
		go t.run(conn)
		t.logger.Info("sync connected", "endpoint", endpoint, "topic", topic)
		return nil
	}

	err := fmt.Errorf("no relay reachable for topic %q: tried %s",
		topic, strings.Join(attempts, "; "))
	t.mu.Lock()
	t.lastErr = err
	t.mu.Unlock()
	return err
}

// dial attempts one endpoint and waits for its "connected" answer
func (t *Transport) dial(ctx context.Context, url string) (*websocket.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, t.dialWait)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, url, nil)
	if err != nil {
		return nil, err
	}

	conn.SetReadDeadline(time.Now().Add(t.dialWait))
	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		conn.Close()
		return nil, fmt.Errorf("no connected signal: %w", err)
	}
	if msg.Type != MsgConnected {
		conn.Close()
		return nil, fmt.Errorf("unexpected first message %q", msg.Type)
	}

	conn.SetReadDeadline(time.Now().Add(pongWait))
	return conn, nil
}

// Connected reports whether the transport currently has a live connection
func (t *Transport) Connected() bool {
	return t.connected.Load()
}

// Ready reports whether the connection attempt sequence has finished,
// successfully or not
func (t *Transport) Ready() bool {
	return t.ready.Load()
}

// LastErr returns the most recent connection error, or nil
func (t *Transport) LastErr() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastErr
}

// WaitUntilConnected polls the connection status until it is true or the
// timeout passes. Callers must re-queue their action on timeout rather
// than block indefinitely.
func (t *Transport) WaitUntilConnected(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if t.Connected() {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: not connected after %s", domain.ErrNotConnected, timeout)
		}
		select {
		case <-t.done:
			return domain.ErrNotConnected
		case <-time.After(statusPollInterval):
		}
	}
}

// Send queues an envelope for delivery to the mesh. Messages queued while
// disconnected are dropped; replication recovers via the next sync request.
func (t *Transport) Send(msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	select {
	case t.send <- data:
		return nil
	default:
		t.logger.Warn("send buffer full, message dropped")
		return nil
	}
}

// Close tears the connection down
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	conn := t.conn
	t.mu.Unlock()

	close(t.done)
	t.connected.Store(false)
	if conn != nil {
		return conn.Close()
	}
	return nil
}

// run owns the connection lifecycle: it pumps the current connection until
// it drops, then redials until the transport is closed. A drop flaps the
// Connected status down and a successful redial flaps it back up; the
// session reacts to the status, never to individual failures.
func (t *Transport) run(conn *websocket.Conn) {
	for {
		readDone := make(chan struct{})
		go t.writePump(conn, readDone)
		go func() {
			t.readPump(conn)
			close(readDone)
		}()
		<-readDone
		t.connected.Store(false)

		conn = t.redial()
		if conn == nil {
			return
		}

		t.mu.Lock()
		t.conn = conn
		fn := t.onReconnect
		t.mu.Unlock()
		t.connected.Store(true)
		if fn != nil {
			fn()
		}
	}
}

// redial sweeps the endpoint list until one answers or the transport is
// closed, pausing between sweeps
func (t *Transport) redial() *websocket.Conn {
	t.mu.Lock()
	topic := t.topic
	t.mu.Unlock()

	for {
		for _, endpoint := range t.endpoints {
			select {
			case <-t.done:
				return nil
			default:
			}

			url := fmt.Sprintf("%s/rooms/%s", strings.TrimRight(endpoint, "/"), topic)
			conn, err := t.dial(context.Background(), url)
			if err != nil {
				t.logger.Debug("redial failed", "endpoint", endpoint, "error", err)
				continue
			}
			t.logger.Info("sync reconnected", "endpoint", endpoint, "topic", topic)
			return conn
		}

		select {
		case <-t.done:
			return nil
		case <-time.After(reconnectInterval):
		}
	}
}

// readPump pumps envelopes from the relay to the registered handlers
func (t *Transport) readPump(conn *websocket.Conn) {
	defer conn.Close()

	conn.SetReadLimit(maxMessageSize)
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				t.logger.Debug("sync read error", "error", err)
			}
			return
		}

		t.mu.Lock()
		onUpdate, onSyncReq := t.onUpdate, t.onSyncReq
		t.mu.Unlock()

		switch msg.Type {
		case MsgUpdate:
			if onUpdate != nil {
				onUpdate(msg.Payload)
			}
		case MsgSyncRequest:
			if onSyncReq != nil {
				onSyncReq()
			}
		case MsgConnected:
			// reconnect acknowledgement, status only
		default:
			t.logger.Debug("unknown sync message", "type", msg.Type)
		}
	}
}

// writePump pumps queued envelopes to one connection, stopping when that
// connection's reader exits so it never races a successor for the queue
func (t *Transport) writePump(conn *websocket.Conn, connDone <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case <-t.done:
			return
		case <-connDone:
			return
		case data := <-t.send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

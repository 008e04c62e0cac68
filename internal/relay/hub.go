// Package relay implements the rendezvous relay peers use to find each
// other. The relay holds no game state and never inspects payloads: every
// envelope received on a topic is forwarded verbatim to the other peers
// subscribed to it.
package relay

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to a peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from a peer
	pongWait = 60 * time.Second

	// Send pings with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from a peer
	maxMessageSize = 1 << 20

	// Size of each peer's send buffer
	sendBufferSize = 256
)

// Hub tracks which peers are subscribed to which topics
type Hub struct {
	mu     sync.RWMutex
	topics map[string]map[*Peer]struct{}
	logger *slog.Logger
}

// NewHub creates an empty hub
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		topics: make(map[string]map[*Peer]struct{}),
		logger: logger,
	}
}

// Join registers a freshly upgraded connection under a topic, sends the
// "connected" acknowledgement and starts the peer's pumps.
func (h *Hub) Join(topic string, conn *websocket.Conn) *Peer {
	peer := &Peer{
		hub:   h,
		topic: topic,
		conn:  conn,
		send:  make(chan []byte, sendBufferSize),
		done:  make(chan struct{}),
	}

	h.mu.Lock()
	if h.topics[topic] == nil {
		h.topics[topic] = make(map[*Peer]struct{})
	}
	h.topics[topic][peer] = struct{}{}
	h.mu.Unlock()

	ack, _ := json.Marshal(map[string]string{"type": "connected"})
	peer.queue(ack)

	go peer.writePump()
	go peer.readPump()

	h.logger.Info("peer joined", "topic", topic, "peers", h.PeerCount(topic))
	return peer
}

// leave removes a peer from its topic, dropping the topic when empty
func (h *Hub) leave(p *Peer) {
	h.mu.Lock()
	if peers, ok := h.topics[p.topic]; ok {
		delete(peers, p)
		if len(peers) == 0 {
			delete(h.topics, p.topic)
		}
	}
	h.mu.Unlock()

	h.logger.Info("peer left", "topic", p.topic)
}

// fanout forwards data to every peer of the topic except the sender
func (h *Hub) fanout(topic string, sender *Peer, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for peer := range h.topics[topic] {
		if peer == sender {
			continue
		}
		peer.queue(data)
	}
}

// TopicCount returns the number of active topics
func (h *Hub) TopicCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics)
}

// PeerCount returns the number of peers subscribed to a topic
func (h *Hub) PeerCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

// TotalPeerCount returns the number of connected peers across all topics
func (h *Hub) TotalPeerCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	total := 0
	for _, peers := range h.topics {
		total += len(peers)
	}
	return total
}

// Peer is one relayed connection
type Peer struct {
	hub   *Hub
	topic string
	conn  *websocket.Conn
	send  chan []byte

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

// queue enqueues data for delivery, dropping it if the buffer is full
func (p *Peer) queue(data []byte) {
	select {
	case p.send <- data:
	default:
		p.hub.logger.Warn("peer send buffer full, message dropped", "topic", p.topic)
	}
}

// Close tears the connection down
func (p *Peer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	close(p.done)
	return p.conn.Close()
}

// readPump forwards every message from this peer to its topic
func (p *Peer) readPump() {
	defer func() {
		p.hub.leave(p)
		p.Close()
	}()

	p.conn.SetReadLimit(maxMessageSize)
	p.conn.SetReadDeadline(time.Now().Add(pongWait))
	p.conn.SetPongHandler(func(string) error {
		p.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				p.hub.logger.Debug("relay read error", "topic", p.topic, "error", err)
			}
			return
		}
		p.hub.fanout(p.topic, p, data)
	}
}

// writePump pumps queued messages to this peer
func (p *Peer) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		p.conn.Close()
	}()

	for {
		select {
		case <-p.done:
			return
		case data := <-p.send:
			p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

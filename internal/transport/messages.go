package transport

import "encoding/json"

// MessageType represents the type of a sync wire message
type MessageType string

const (
	// Relay → peer: the relay accepted the connection for a topic
	MsgConnected MessageType = "connected"

	// Peer → peers: a replication update for the room document
	MsgUpdate MessageType = "update"

	// Peer → peers: request for a full state exchange after (re)joining
	MsgSyncRequest MessageType = "syncreq"
)

// Message is the wire envelope exchanged through a relay. The relay never
// inspects payloads; it only fans envelopes out to the other peers sharing
// the topic.
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewUpdateMessage wraps an encoded store update in an envelope
func NewUpdateMessage(payload []byte) Message {
	return Message{Type: MsgUpdate, Payload: payload}
}

// NewSyncRequest returns a sync request envelope
func NewSyncRequest() Message {
	return Message{Type: MsgSyncRequest}
}

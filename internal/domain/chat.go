package domain

// SystemSenderID is the reserved sender id for system chat messages
const SystemSenderID = "system"

// MaxChatLength is the maximum accepted chat message length in characters
const MaxChatLength = 200

// ChatMessage is one append-only chat log entry
type ChatMessage struct {
	SenderID   string `json:"senderId"`
	SenderName string `json:"senderName"`
	Text       string `json:"text"`
	Timestamp  int64  `json:"timestamp"` // unix milliseconds
}

// NewSystemMessage creates a chat message from the system sender
func NewSystemMessage(text string, ts int64) ChatMessage {
	return ChatMessage{
		SenderID:   SystemSenderID,
		SenderName: "system",
		Text:       text,
		Timestamp:  ts,
	}
}

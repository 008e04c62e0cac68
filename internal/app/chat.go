package app

import (
	"strings"
	"time"

	"spyroom/internal/config"
	"spyroom/internal/domain"
)

// ChatLimiter enforces the sender-side chat limits: a rolling message
// window, an extra cooldown when repeating the previous text, and the
// message length cap. Limits apply only on the sending client; remote
// messages are never filtered.
type ChatLimiter struct {
	cfg      config.ChatConfig
	sent     []time.Time
	lastText string
	lastAt   time.Time
}

// NewChatLimiter creates a limiter with the given limits
func NewChatLimiter(cfg config.ChatConfig) *ChatLimiter {
	return &ChatLimiter{cfg: cfg}
}

// Allow checks whether text may be sent now, recording it if so
func (l *ChatLimiter) Allow(text string, now time.Time) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.ErrEmptyMessage
	}
	if len([]rune(text)) > domain.MaxChatLength {
		return domain.ErrMessageTooLong
	}

	cutoff := now.Add(-l.cfg.Window)
	kept := l.sent[:0]
	for _, ts := range l.sent {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	l.sent = kept

	if len(l.sent) >= l.cfg.MaxMessages {
		return domain.ErrRateLimited
	}
	if text == l.lastText && now.Sub(l.lastAt) < l.cfg.RepeatCooldown {
		return domain.ErrRateLimited
	}

	l.sent = append(l.sent, now)
	l.lastText = text
	l.lastAt = now
	return nil
}

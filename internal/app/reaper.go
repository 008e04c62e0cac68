package app

import (
	"log/slog"
	"time"

	"spyroom/internal/domain"
	"spyroom/internal/store"
)

// Reaper resets a room after a prolonged period with no player activity.
// It runs on the elected host's replica only.
type Reaper struct {
	doc     *store.RoomDoc
	timeout time.Duration
	logger  *slog.Logger
}

// NewReaper creates a reaper with the given inactivity timeout
func NewReaper(doc *store.RoomDoc, timeout time.Duration, logger *slog.Logger) *Reaper {
	return &Reaper{doc: doc, timeout: timeout, logger: logger}
}

// Evaluate resets the room if the most recent of all activity timestamps,
// the round start and the room creation time is older than the timeout.
// Returns true when the reset fired.
func (r *Reaper) Evaluate(now time.Time) bool {
	st := r.doc.State()

	last := st.CreatedAt
	if st.RoundStartAt > last {
		last = st.RoundStartAt
	}
	for _, ts := range r.doc.Activity() {
		if ts > last {
			last = ts
		}
	}

	if last == 0 || now.UnixMilli()-last <= r.timeout.Milliseconds() {
		return false
	}

	r.doc.AppendChat(domain.NewSystemMessage("Room closed after inactivity.", now.UnixMilli()))
	r.doc.Reset()
	r.doc.SetClosedAt(now.UnixMilli())
	r.logger.Info("idle room reset", "idle", now.UnixMilli()-last)
	return true
}

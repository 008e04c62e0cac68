package app

import (
	"log/slog"
	"time"

	"spyroom/internal/store"
)

// Elector decides when this replica should claim the host seat. Every
// replica runs one; the earliest joiner self-assigns after a readiness
// window that lets peer join timestamps propagate. Two earliest-tied peers
// may race the write; the merge settles on a single host either way, which
// is all correctness requires.
type Elector struct {
	doc    *store.RoomDoc
	window time.Duration
	logger *slog.Logger

	readyAt time.Time // zero until the transport first reports connected
}

// NewElector creates an elector for this replica
func NewElector(doc *store.RoomDoc, window time.Duration, logger *slog.Logger) *Elector {
	return &Elector{doc: doc, window: window, logger: logger}
}

// MarkConnected starts the readiness window. Later transient reconnects
// do not restart it; only a fresh room/identity does, by creating a fresh
// Elector.
func (e *Elector) MarkConnected(now time.Time) {
	if e.readyAt.IsZero() {
		e.readyAt = now.Add(e.window)
	}
}

// Ready reports whether the readiness window has elapsed
func (e *Elector) Ready(now time.Time) bool {
	return !e.readyAt.IsZero() && !now.Before(e.readyAt)
}

// Evaluate self-assigns this replica as host if no host is set, readiness
// has passed, players are present and all of them carry a join timestamp.
// The write is conditioned on the host field still being unset locally;
// concurrent claims are resolved by the merge.
func (e *Elector) Evaluate(now time.Time) {
	if !e.Ready(now) {
		return
	}
	if e.doc.State().HostID != "" {
		return
	}

	players := e.doc.Players()
	if len(players) == 0 {
		return
	}

	earliest := ""
	var earliestTs int64
	for _, p := range players {
		ts, ok := e.doc.JoinedAt(p.ID)
		if !ok {
			// join timestamps still propagating, decide later
			return
		}
		if earliest == "" || ts < earliestTs || (ts == earliestTs && p.ID < earliest) {
			earliest, earliestTs = p.ID, ts
		}
	}

	if earliest != e.doc.Self() {
		return
	}

	e.doc.SetHostID(e.doc.Self())
	e.logger.Info("claimed host seat", "player", e.doc.Self())
}

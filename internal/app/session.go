// Package app holds the peer session and the engines it drives: the phase
// state machine, vote tally, host election, name claims and the idle
// reaper. All of them read the replicated room document, compute derived
// decisions and write back into it; host-only engines run on the elected
// host's replica and are idempotent per round instead of relying on any
// global ordering.
package app

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"

	"spyroom/internal/config"
	"spyroom/internal/domain"
	"spyroom/internal/store"
	"spyroom/internal/transport"
)

// tickInterval is the wall-clock input into the reactive recomputation
const tickInterval = 1 * time.Second

// Session is one client's participation in a room: it owns the local
// replica, the sync transport and the engines, and funnels every input
// (tick, store change, user action) into a single evaluation path.
// Switching rooms discards the Session and creates a fresh one.
type Session struct {
	cfg    *config.Config
	logger *slog.Logger

	self          string
	requestedName string
	room          string

	doc     *store.RoomDoc
	tr      *transport.Transport
	machine *Machine
	elector *Elector
	reaper  *Reaper
	limiter *ChatLimiter

	changes     chan struct{}
	actions     chan func()
	joined      bool
	pendingMode domain.GameMode
}

// NewSession validates the join input and builds an unconnected session.
// Empty name or room is rejected here, before any state mutation. The
// player id may come from persisted rejoin state; a fresh one is generated
// otherwise.
func NewSession(cfg *config.Config, logger *slog.Logger, playerID, displayName, room string) (*Session, error) {
	displayName = NormalizeName(displayName)
	if displayName == "" {
		return nil, domain.ErrEmptyName
	}
	room = domain.NormalizeRoomID(room)
	if room == "" {
		return nil, domain.ErrEmptyRoom
	}
	if playerID == "" {
		playerID = uuid.New().String()
	}

	st := store.New(playerID)
	doc := store.NewRoomDoc(st)
	tr := transport.New(cfg.Peer.Endpoints, cfg.Peer.DialWait, logger)
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	s := &Session{
		cfg:           cfg,
		logger:        logger,
		self:          playerID,
		requestedName: displayName,
		room:          room,
		doc:           doc,
		tr:            tr,
		machine:       NewMachine(doc, cfg.Game, logger, rng),
		elector:       NewElector(doc, cfg.Game.ElectionReadiness, logger),
		reaper:        NewReaper(doc, cfg.Game.IdleTimeout, logger),
		limiter:       NewChatLimiter(cfg.Chat),
		changes:       make(chan struct{}, 1),
		actions:       make(chan func(), 64),
	}

	st.OnLocalUpdate(func(u store.Update) {
		if !tr.Connected() {
			return
		}
		payload, err := json.Marshal(u)
		if err != nil {
			logger.Error("encode update", "error", err)
			return
		}
		tr.Send(transport.NewUpdateMessage(payload))
	})
	st.OnChange(func() {
		select {
		case s.changes <- struct{}{}:
		default:
		}
	})
	tr.OnUpdate(func(data []byte) {
		var u store.Update
		if err := json.Unmarshal(data, &u); err != nil {
			logger.Debug("bad remote update dropped", "error", err)
			return
		}
		st.Apply(u)
	})
	tr.OnSyncRequest(func() {
		payload, err := json.Marshal(st.Snapshot())
		if err != nil {
			return
		}
		tr.Send(transport.NewUpdateMessage(payload))
	})
	tr.OnReconnect(func() {
		// catch up on everything missed while disconnected
		tr.Send(transport.NewSyncRequest())
	})

	return s, nil
}

// ID returns this client's player id
func (s *Session) ID() string {
	return s.self
}

// Room returns the normalized room id, which doubles as the sync topic
func (s *Session) Room() string {
	return s.room
}

// Doc returns the local replica
func (s *Session) Doc() *store.RoomDoc {
	return s.doc
}

// Connect starts the transport's endpoint fallback sequence. Total failure
// is non-fatal: the room stays locally usable but unsynchronized, and the
// returned error enumerates every endpoint tried.
func (s *Session) Connect(ctx context.Context) error {
	err := s.tr.Connect(ctx, s.room)
	if err != nil {
		s.logger.Warn("running unsynchronized", "error", err)
		return err
	}
	s.elector.MarkConnected(time.Now())
	s.tr.Send(transport.NewSyncRequest())
	return nil
}

// Run drives the session until the context is cancelled: the queued join,
// the 1-second evaluation tick, replica change notifications, user actions
// and the activity heartbeat all funnel through this single goroutine.
func (s *Session) Run(ctx context.Context) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	heartbeat := time.NewTicker(s.cfg.Peer.HeartbeatInterval)
	defer heartbeat.Stop()

	s.tryJoin(time.Now())

	for {
		select {
		case <-ctx.Done():
			s.Leave()
			return
		case <-ticker.C:
			now := time.Now()
			if !s.joined {
				s.tryJoin(now)
			}
			s.evaluate(now)
		case <-s.changes:
			s.evaluate(time.Now())
		case fn := <-s.actions:
			fn()
			s.evaluate(time.Now())
		case <-heartbeat.C:
			if s.joined {
				s.doc.SetActivity(s.self, time.Now().UnixMilli())
			}
		}
	}
}

// Do runs a user action on the session goroutine and returns its error
func (s *Session) Do(fn func() error) error {
	result := make(chan error, 1)
	s.actions <- func() {
		result <- fn()
	}
	return <-result
}

// tryJoin performs the queued join once the transport reports connected.
// On timeout the join stays queued and is retried on a later tick, never
// dropped.
func (s *Session) tryJoin(now time.Time) {
	if s.tr.Ready() && !s.tr.Connected() && s.tr.LastErr() != nil {
		// total transport failure: join locally so the room stays usable
		s.elector.MarkConnected(now)
		s.join(now)
		return
	}
	if err := s.tr.WaitUntilConnected(s.cfg.Peer.JoinTimeout); err != nil {
		s.logger.Debug("join still queued", "error", err)
		return
	}
	s.elector.MarkConnected(now)
	s.join(now)
}

func (s *Session) join(now time.Time) {
	name, err := ClaimDisplayName(s.doc, s.self, s.requestedName)
	if err != nil {
		s.logger.Error("name claim failed", "error", err)
		return
	}

	nowMs := now.UnixMilli()
	s.doc.PutPlayer(domain.NewPlayer(s.self, name))
	s.doc.SetJoinedAt(s.self, nowMs)
	s.doc.SetActivity(s.self, nowMs)
	if s.doc.State().CreatedAt == 0 {
		s.doc.SetCreatedAt(nowMs)
	}

	s.joined = true
	s.logger.Info("joined room", "room", s.room, "name", name)
}

// evaluate is the single reactive recomputation path
func (s *Session) evaluate(now time.Time) {
	if !s.joined {
		return
	}

	s.elector.Evaluate(now)
	ReconcileName(s.doc, s.self)

	if s.doc.State().HostID == s.self {
		if s.pendingMode != "" && s.doc.State().Phase == domain.PhaseLobby {
			s.doc.SetGameMode(s.pendingMode)
			s.pendingMode = ""
		}
		if s.reaper.Evaluate(now) {
			s.joined = false
			return
		}
		s.machine.Evaluate(now)
	}
}

// touch refreshes this player's activity timestamp
func (s *Session) touch(now time.Time) {
	s.doc.SetActivity(s.self, now.UnixMilli())
}

// StartGame asks the state machine for the explicit round start (host only)
func (s *Session) StartGame() error {
	return s.Do(func() error {
		s.touch(time.Now())
		return s.machine.StartRound(time.Now())
	})
}

// NewRound resets the room for another round (host only)
func (s *Session) NewRound() error {
	return s.Do(func() error {
		s.touch(time.Now())
		return s.machine.NewRound()
	})
}

// RevealNow forces the round to end immediately (host only)
func (s *Session) RevealNow() error {
	return s.Do(func() error {
		s.touch(time.Now())
		return s.machine.RevealNow(time.Now())
	})
}

// QueueGameMode records a mode preference applied once this replica holds
// the host seat while the room sits in the lobby. Startup flags land here
// because the election has not settled yet when they are read; a peer that
// is never elected simply keeps the preference pending.
func (s *Session) QueueGameMode(mode domain.GameMode) {
	s.Do(func() error {
		s.pendingMode = mode
		return nil
	})
}

// SetGameMode switches between classic and double mode (host only)
func (s *Session) SetGameMode(mode domain.GameMode) error {
	return s.Do(func() error {
		if s.doc.State().HostID != s.self {
			return domain.ErrNotHost
		}
		s.touch(time.Now())
		s.doc.SetGameMode(mode)
		return nil
	})
}

// CastVote casts or toggles this player's vote
func (s *Session) CastVote(target string) error {
	return s.Do(func() error {
		s.touch(time.Now())
		return CastVote(s.doc, s.self, target)
	})
}

// ConfirmVote locks this player's vote in
func (s *Session) ConfirmVote() error {
	return s.Do(func() error {
		s.touch(time.Now())
		return ConfirmVote(s.doc, s.self)
	})
}

// RequestOpenVote calls for an early vote during the playing phase
func (s *Session) RequestOpenVote() error {
	return s.Do(func() error {
		s.touch(time.Now())
		return RequestOpenVote(s.doc, s.self)
	})
}

// SubmitGuess submits this spy's single location guess
func (s *Session) SubmitGuess(location string) error {
	return s.Do(func() error {
		s.touch(time.Now())
		return SubmitGuess(s.doc, s.self, location)
	})
}

// SendChat appends a chat message, subject to the sender-side limits
func (s *Session) SendChat(text string) error {
	return s.Do(func() error {
		now := time.Now()
		if err := s.limiter.Allow(text, now); err != nil {
			return err
		}
		s.touch(now)

		name := s.requestedName
		if p, ok := s.doc.Player(s.self); ok {
			name = p.DisplayName
		}
		s.doc.AppendChat(domain.ChatMessage{
			SenderID:   s.self,
			SenderName: name,
			Text:       strings.TrimSpace(text),
			Timestamp:  now.UnixMilli(),
		})
		return nil
	})
}

// Kick removes another player from the room (host only)
func (s *Session) Kick(target string) error {
	return s.Do(func() error {
		if s.doc.State().HostID != s.self {
			return domain.ErrNotHost
		}
		if _, ok := s.doc.Player(target); !ok {
			return domain.ErrPlayerNotFound
		}
		s.touch(time.Now())
		s.removePlayer(target)
		return nil
	})
}

// Leave removes this player and tears the transport down. Claim release
// and activity clearing are advisory; nothing here may block the exit.
func (s *Session) Leave() {
	if s.joined {
		s.removePlayer(s.self)
		s.joined = false
	}
	s.tr.Close()
	s.logger.Info("left room", "room", s.room)
}

// removePlayer drops a player record plus its name claim, resetting the
// room when the last player leaves
func (s *Session) removePlayer(id string) {
	if p, ok := s.doc.Player(id); ok {
		if owner, claimed := s.doc.NameOwner(nameKey(p.DisplayName)); claimed && owner == id {
			s.doc.ReleaseName(nameKey(p.DisplayName))
		}
	}
	s.doc.RemovePlayer(id)

	if len(s.doc.Players()) == 0 {
		s.doc.Reset()
	}
}

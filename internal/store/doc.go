package store

import (
	"spyroom/internal/domain"
)

// Sections of the room document
const (
	secPlayers  = "players"  // player id -> domain.Player
	secState    = "state"    // field name -> value
	secVotes    = "votes"    // voter id -> domain.VoteEntry
	secJoined   = "joined"   // player id -> unix ms join timestamp
	secActivity = "activity" // player id -> unix ms last-activity timestamp
	secNames    = "names"    // normalized name -> owning player id
	secOpenVote = "openvote" // player id -> bool (early-vote call)
	secGuesses  = "guesses"  // spy id -> guessed location name
)

// State field keys
const (
	keyPhase              = "phase"
	keyHostID             = "hostId"
	keyGameMode           = "gameMode"
	keyRound              = "round"
	keyRoundStartAt       = "roundStartAt"
	keyTimerEnd           = "timerEnd"
	keyVoteWindowEndsAt   = "voteWindowEndsAt"
	keyTieGuessEndsAt     = "tieGuessEndsAt"
	keyVoteAnnouncedRound = "voteAnnouncedRound"
	keyVoteWindowSetRound = "voteWindowSetRound"
	keyLocation           = "location"
	keySpies              = "spies"
	keyRoles              = "roles"
	keyPool               = "pool"
	keyWinner             = "winner"
	keyWinReason          = "winReason"
	keyCreatedAt          = "createdAt"
	keyClosedAt           = "closedAt"
)

// RoomDoc exposes typed access to one replica of a room document. It adds
// no authorization: write conventions (host-only fields, self-only entries)
// are enforced by the callers, not the store.
type RoomDoc struct {
	s *Store
}

// NewRoomDoc wraps a replica in typed accessors
func NewRoomDoc(s *Store) *RoomDoc {
	return &RoomDoc{s: s}
}

// Store returns the underlying replica
func (d *RoomDoc) Store() *Store {
	return d.s
}

// Self returns the owning actor id
func (d *RoomDoc) Self() string {
	return d.s.Actor()
}

// set writes a register; values here are plain JSON-marshalable types, so
// the marshal error cannot occur.
func (d *RoomDoc) set(section, key string, v any) {
	_ = d.s.Set(section, key, v)
}

// Players returns all present players, sorted by id
func (d *RoomDoc) Players() []domain.Player {
	ids := d.s.Keys(secPlayers)
	players := make([]domain.Player, 0, len(ids))
	for _, id := range ids {
		var p domain.Player
		if d.s.Get(secPlayers, id, &p) {
			players = append(players, p)
		}
	}
	return players
}

// Player returns one player record
func (d *RoomDoc) Player(id string) (domain.Player, bool) {
	var p domain.Player
	ok := d.s.Get(secPlayers, id, &p)
	return p, ok
}

// PutPlayer writes a player record
func (d *RoomDoc) PutPlayer(p domain.Player) {
	d.set(secPlayers, p.ID, p)
}

// RemovePlayer deletes a player record and its per-player entries. If the
// removed player was the host, the host field is cleared so election can
// re-run.
func (d *RoomDoc) RemovePlayer(id string) {
	d.s.Delete(secPlayers, id)
	d.s.Delete(secJoined, id)
	d.s.Delete(secActivity, id)
	d.s.Delete(secVotes, id)
	d.s.Delete(secOpenVote, id)
	d.s.Delete(secGuesses, id)

	if d.State().HostID == id {
		d.SetHostID("")
	}
}

// State assembles the room-state snapshot from its per-field registers
func (d *RoomDoc) State() domain.RoomState {
	st := domain.DefaultRoomState()
	d.s.Get(secState, keyPhase, &st.Phase)
	d.s.Get(secState, keyHostID, &st.HostID)
	d.s.Get(secState, keyGameMode, &st.GameMode)
	d.s.Get(secState, keyRound, &st.Round)
	d.s.Get(secState, keyRoundStartAt, &st.RoundStartAt)
	d.s.Get(secState, keyTimerEnd, &st.TimerEnd)
	d.s.Get(secState, keyVoteWindowEndsAt, &st.VoteWindowEndsAt)
	d.s.Get(secState, keyTieGuessEndsAt, &st.TieGuessEndsAt)
	d.s.Get(secState, keyVoteAnnouncedRound, &st.VoteAnnouncedRound)
	d.s.Get(secState, keyVoteWindowSetRound, &st.VoteWindowSetRound)
	d.s.Get(secState, keyLocation, &st.Location)
	d.s.Get(secState, keySpies, &st.Spies)
	d.s.Get(secState, keyRoles, &st.Roles)
	d.s.Get(secState, keyPool, &st.Pool)
	d.s.Get(secState, keyWinner, &st.Winner)
	d.s.Get(secState, keyWinReason, &st.WinReason)
	d.s.Get(secState, keyCreatedAt, &st.CreatedAt)
	d.s.Get(secState, keyClosedAt, &st.ClosedAt)
	return st
}

// State field setters; host-only by convention except where noted.

func (d *RoomDoc) SetPhase(p domain.Phase)          { d.set(secState, keyPhase, p) }
func (d *RoomDoc) SetHostID(id string)              { d.set(secState, keyHostID, id) }
func (d *RoomDoc) SetGameMode(m domain.GameMode)    { d.set(secState, keyGameMode, m) }
func (d *RoomDoc) SetRound(n int)                   { d.set(secState, keyRound, n) }
func (d *RoomDoc) SetRoundStartAt(ts int64)         { d.set(secState, keyRoundStartAt, ts) }
func (d *RoomDoc) SetTimerEnd(ts int64)             { d.set(secState, keyTimerEnd, ts) }
func (d *RoomDoc) SetVoteWindowEndsAt(ts int64)     { d.set(secState, keyVoteWindowEndsAt, ts) }
func (d *RoomDoc) SetTieGuessEndsAt(ts int64)       { d.set(secState, keyTieGuessEndsAt, ts) }
func (d *RoomDoc) SetVoteAnnouncedRound(n int)      { d.set(secState, keyVoteAnnouncedRound, n) }
func (d *RoomDoc) SetVoteWindowSetRound(n int)      { d.set(secState, keyVoteWindowSetRound, n) }
func (d *RoomDoc) SetLocation(name string)          { d.set(secState, keyLocation, name) }
func (d *RoomDoc) SetSpies(ids []string)            { d.set(secState, keySpies, ids) }
func (d *RoomDoc) SetRoles(roles map[string]string) { d.set(secState, keyRoles, roles) }
func (d *RoomDoc) SetPool(pool []domain.Location)   { d.set(secState, keyPool, pool) }
func (d *RoomDoc) SetWinner(w domain.Winner)        { d.set(secState, keyWinner, w) }
func (d *RoomDoc) SetWinReason(reason string)       { d.set(secState, keyWinReason, reason) }
func (d *RoomDoc) SetCreatedAt(ts int64)            { d.set(secState, keyCreatedAt, ts) }
func (d *RoomDoc) SetClosedAt(ts int64)             { d.set(secState, keyClosedAt, ts) }

// Votes returns all current vote entries keyed by voter id
func (d *RoomDoc) Votes() map[string]domain.VoteEntry {
	votes := make(map[string]domain.VoteEntry)
	for _, voter := range d.s.Keys(secVotes) {
		var v domain.VoteEntry
		if d.s.Get(secVotes, voter, &v) {
			votes[voter] = v
		}
	}
	return votes
}

// Vote returns one voter's entry
func (d *RoomDoc) Vote(voter string) (domain.VoteEntry, bool) {
	var v domain.VoteEntry
	ok := d.s.Get(secVotes, voter, &v)
	return v, ok
}

// SetVote writes a voter's entry; self-only by convention
func (d *RoomDoc) SetVote(voter string, v domain.VoteEntry) {
	d.set(secVotes, voter, v)
}

// ClearVote removes a voter's entry
func (d *RoomDoc) ClearVote(voter string) {
	d.s.Delete(secVotes, voter)
}

// JoinedAt returns a player's join timestamp in unix ms
func (d *RoomDoc) JoinedAt(id string) (int64, bool) {
	var ts int64
	ok := d.s.Get(secJoined, id, &ts)
	return ts, ok
}

// SetJoinedAt records a player's join timestamp; self-only by convention
func (d *RoomDoc) SetJoinedAt(id string, ts int64) {
	d.set(secJoined, id, ts)
}

// Activity returns all last-activity timestamps keyed by player id
func (d *RoomDoc) Activity() map[string]int64 {
	out := make(map[string]int64)
	for _, id := range d.s.Keys(secActivity) {
		var ts int64
		if d.s.Get(secActivity, id, &ts) {
			out[id] = ts
		}
	}
	return out
}

// SetActivity records a player's last-activity timestamp
func (d *RoomDoc) SetActivity(id string, ts int64) {
	d.set(secActivity, id, ts)
}

// NameOwner returns the player currently owning a normalized name key
func (d *RoomDoc) NameOwner(key string) (string, bool) {
	var owner string
	ok := d.s.Get(secNames, key, &owner)
	return owner, ok
}

// ClaimName claims a normalized name key for a player
func (d *RoomDoc) ClaimName(key, playerID string) {
	d.set(secNames, key, playerID)
}

// ReleaseName releases a normalized name key
func (d *RoomDoc) ReleaseName(key string) {
	d.s.Delete(secNames, key)
}

// OpenVotes returns the ids of players currently calling for an early vote
func (d *RoomDoc) OpenVotes() map[string]bool {
	out := make(map[string]bool)
	for _, id := range d.s.Keys(secOpenVote) {
		var v bool
		if d.s.Get(secOpenVote, id, &v) && v {
			out[id] = true
		}
	}
	return out
}

// SetOpenVote records a player's early-vote call; self-only by convention
func (d *RoomDoc) SetOpenVote(id string, v bool) {
	d.set(secOpenVote, id, v)
}

// Guess returns a spy's location guess for this round
func (d *RoomDoc) Guess(id string) (string, bool) {
	var g string
	ok := d.s.Get(secGuesses, id, &g)
	return g, ok
}

// Guesses returns all submitted guesses keyed by player id
func (d *RoomDoc) Guesses() map[string]string {
	out := make(map[string]string)
	for _, id := range d.s.Keys(secGuesses) {
		var g string
		if d.s.Get(secGuesses, id, &g) {
			out[id] = g
		}
	}
	return out
}

// SetGuess records a spy's location guess
func (d *RoomDoc) SetGuess(id, guess string) {
	d.set(secGuesses, id, guess)
}

// AppendChat appends a chat message to the room log
func (d *RoomDoc) AppendChat(msg domain.ChatMessage) {
	d.s.AppendChat(msg)
}

// Chat returns the room chat log in causal order
func (d *RoomDoc) Chat() []domain.ChatMessage {
	return d.s.Chat()
}

// ClearRound removes the per-player round entries (votes, early-vote calls,
// spy guesses) for every player
func (d *RoomDoc) ClearRound() {
	for _, voter := range d.s.Keys(secVotes) {
		d.s.Delete(secVotes, voter)
	}
	for _, id := range d.s.Keys(secOpenVote) {
		d.s.Delete(secOpenVote, id)
	}
	for _, id := range d.s.Keys(secGuesses) {
		d.s.Delete(secGuesses, id)
	}
}

// Reset returns the whole room to defaults: every player, claim and
// per-player entry is removed and all state fields go back to their zero
// values. The document itself survives for future joins.
func (d *RoomDoc) Reset() {
	for _, id := range d.s.Keys(secPlayers) {
		d.s.Delete(secPlayers, id)
	}
	for _, id := range d.s.Keys(secJoined) {
		d.s.Delete(secJoined, id)
	}
	for _, id := range d.s.Keys(secActivity) {
		d.s.Delete(secActivity, id)
	}
	for _, key := range d.s.Keys(secNames) {
		d.s.Delete(secNames, key)
	}
	d.ClearRound()

	def := domain.DefaultRoomState()
	d.SetPhase(def.Phase)
	d.SetHostID("")
	d.SetGameMode(def.GameMode)
	d.SetRound(0)
	d.SetRoundStartAt(0)
	d.SetTimerEnd(0)
	d.SetVoteWindowEndsAt(0)
	d.SetTieGuessEndsAt(0)
	d.SetVoteAnnouncedRound(0)
	d.SetVoteWindowSetRound(0)
	d.SetLocation("")
	d.SetSpies(nil)
	d.SetRoles(nil)
	d.SetPool(nil)
	d.SetWinner(domain.WinnerNone)
	d.SetWinReason("")
	d.SetCreatedAt(0)
	d.SetClosedAt(0)
}

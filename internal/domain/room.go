package domain

import "strings"

// GameMode selects how many spies a round gets
type GameMode string

const (
	ModeClassic GameMode = "CLASSIC" // always one spy
	ModeDouble  GameMode = "DOUBLE"  // two spies with 8+ players, else classic
)

// String returns the string representation of the game mode
func (m GameMode) String() string {
	return string(m)
}

// MaxRoomIDLength is the maximum length of a room identifier
const MaxRoomIDLength = 40

// RoomState is the assembled snapshot of the replicated per-room state
// fields. Each field is an independently merged register; only the current
// host writes these, except where a player legitimately writes about itself.
type RoomState struct {
	Phase              Phase             `json:"phase"`
	HostID             string            `json:"hostId"`
	GameMode           GameMode          `json:"gameMode"`
	Round              int               `json:"round"`
	RoundStartAt       int64             `json:"roundStartAt"` // unix ms, round key
	TimerEnd           int64             `json:"timerEnd"`
	VoteWindowEndsAt   int64             `json:"voteWindowEndsAt"`
	TieGuessEndsAt     int64             `json:"tieGuessEndsAt"`
	VoteAnnouncedRound int               `json:"voteAnnouncedRound"`
	VoteWindowSetRound int               `json:"voteWindowSetRound"`
	Location           string            `json:"location"`
	Spies              []string          `json:"spies"`
	Roles              map[string]string `json:"roles"` // player id -> role
	Pool               []Location        `json:"pool"`  // selected-location pool
	Winner             Winner            `json:"winner"`
	WinReason          string            `json:"winReason"`
	CreatedAt          int64             `json:"createdAt"`
	ClosedAt           int64             `json:"closedAt"`
}

// DefaultRoomState returns the state a fresh or fully reset room holds
func DefaultRoomState() RoomState {
	return RoomState{
		Phase:    PhaseLobby,
		GameMode: ModeClassic,
	}
}

// IsSpy reports whether the given player is among the round's spies
func (s RoomState) IsSpy(playerID string) bool {
	for _, id := range s.Spies {
		if id == playerID {
			return true
		}
	}
	return false
}

// NormalizeRoomID lowercases the identifier, maps whitespace to dashes,
// drops every character outside [a-z0-9-] and truncates to 40 characters.
// The result doubles as the sync topic.
func NormalizeRoomID(id string) string {
	id = strings.ToLower(strings.TrimSpace(id))

	var b strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		case r == ' ' || r == '\t':
			b.WriteRune('-')
		}
	}

	out := b.String()
	if len(out) > MaxRoomIDLength {
		out = out[:MaxRoomIDLength]
	}
	return out
}

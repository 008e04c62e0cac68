package domain_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"spyroom/internal/domain"
)

func TestNormalizeRoomID(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"friday-night", "friday-night"},
		{"Friday Night", "friday-night"},
		{"  MIXED Case 42  ", "mixed-case-42"},
		{"tabs\there", "tabs-here"},
		{"emoji🎲and!punct?", "emojiandpunct"},
		{"", ""},
		{strings.Repeat("a", 60), strings.Repeat("a", domain.MaxRoomIDLength)},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, domain.NormalizeRoomID(tc.in), "input %q", tc.in)
	}
}

func TestPhaseTransitions(t *testing.T) {
	assert.True(t, domain.PhaseLobby.CanTransitionTo(domain.PhasePlaying))
	assert.True(t, domain.PhasePlaying.CanTransitionTo(domain.PhaseVoting))
	assert.True(t, domain.PhasePlaying.CanTransitionTo(domain.PhaseRevealed))
	assert.True(t, domain.PhaseVoting.CanTransitionTo(domain.PhaseTieGuess))
	assert.True(t, domain.PhaseVoting.CanTransitionTo(domain.PhaseRevealed))
	assert.True(t, domain.PhaseTieGuess.CanTransitionTo(domain.PhaseRevealed))
	assert.True(t, domain.PhaseRevealed.CanTransitionTo(domain.PhaseLobby))

	assert.False(t, domain.PhaseLobby.CanTransitionTo(domain.PhaseVoting))
	assert.False(t, domain.PhaseVoting.CanTransitionTo(domain.PhasePlaying))
	assert.False(t, domain.PhaseRevealed.CanTransitionTo(domain.PhasePlaying))
	assert.False(t, domain.PhaseTieGuess.CanTransitionTo(domain.PhaseVoting))
}

func TestPhaseInProgress(t *testing.T) {
	assert.False(t, domain.PhaseLobby.InProgress())
	assert.True(t, domain.PhasePlaying.InProgress())
	assert.True(t, domain.PhaseVoting.InProgress())
	assert.True(t, domain.PhaseTieGuess.InProgress())
	assert.False(t, domain.PhaseRevealed.InProgress())
}

func TestIsSpy(t *testing.T) {
	st := domain.RoomState{Spies: []string{"p2", "p5"}}
	assert.True(t, st.IsSpy("p2"))
	assert.True(t, st.IsSpy("p5"))
	assert.False(t, st.IsSpy("p1"))
	assert.False(t, domain.RoomState{}.IsSpy("p1"))
}

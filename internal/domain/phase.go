package domain

// Phase represents the current phase of a room
type Phase string

const (
	PhaseLobby    Phase = "LOBBY"     // Waiting for players to join
	PhasePlaying  Phase = "PLAYING"   // Round running, countdown ticking
	PhaseVoting   Phase = "VOTING"    // 30s window, everyone votes for the spy
	PhaseTieGuess Phase = "TIE_GUESS" // Vote tied, spy gets one location guess
	PhaseRevealed Phase = "REVEALED"  // Round over, outcome shown
)

// String returns the string representation of the phase
func (p Phase) String() string {
	return string(p)
}

// InProgress returns true while a round is running
func (p Phase) InProgress() bool {
	return p == PhasePlaying || p == PhaseVoting || p == PhaseTieGuess
}

// CanTransitionTo checks if a transition from current phase to target phase is valid
func (p Phase) CanTransitionTo(target Phase) bool {
	validTransitions := map[Phase][]Phase{
		PhaseLobby:    {PhasePlaying},
		PhasePlaying:  {PhaseVoting, PhaseRevealed}, // reveal-now and forced ends skip voting
		PhaseVoting:   {PhaseTieGuess, PhaseRevealed},
		PhaseTieGuess: {PhaseRevealed},
		PhaseRevealed: {PhaseLobby},
	}

	allowed, ok := validTransitions[p]
	if !ok {
		return false
	}

	for _, phase := range allowed {
		if phase == target {
			return true
		}
	}
	return false
}

package app

import (
	"spyroom/internal/domain"
	"spyroom/internal/store"
)

// Eligible reports whether a player may vote or be voted for this round:
// its join timestamp must be at or before the round's start. Late joiners
// sit the round out.
func Eligible(doc *store.RoomDoc, id string) bool {
	st := doc.State()
	if st.RoundStartAt == 0 {
		return false
	}
	ts, ok := doc.JoinedAt(id)
	return ok && ts <= st.RoundStartAt
}

// EligiblePlayers returns the present players eligible for the current round
func EligiblePlayers(doc *store.RoomDoc) []domain.Player {
	players := doc.Players()
	out := make([]domain.Player, 0, len(players))
	for _, p := range players {
		if Eligible(doc, p.ID) {
			out = append(out, p)
		}
	}
	return out
}

// CastVote applies the voting semantics for voter on target: no existing
// vote records an unconfirmed one, re-selecting the same target toggles the
// vote off, a different target overwrites it and clears confirmation.
// Confirmed votes are immutable until the round resets.
func CastVote(doc *store.RoomDoc, voter, target string) error {
	st := doc.State()
	if st.Phase != domain.PhaseVoting {
		return domain.ErrInvalidPhase
	}
	if _, ok := doc.Player(target); !ok {
		return domain.ErrPlayerNotFound
	}
	if !Eligible(doc, voter) || !Eligible(doc, target) {
		return domain.ErrNotEligible
	}

	existing, ok := doc.Vote(voter)
	switch {
	case ok && existing.Confirmed:
		return domain.ErrVoteConfirmed
	case ok && existing.TargetID == target:
		doc.ClearVote(voter)
	default:
		doc.SetVote(voter, domain.VoteEntry{TargetID: target})
	}
	return nil
}

// ConfirmVote locks in a voter's existing unconfirmed vote
func ConfirmVote(doc *store.RoomDoc, voter string) error {
	st := doc.State()
	if st.Phase != domain.PhaseVoting {
		return domain.ErrInvalidPhase
	}

	existing, ok := doc.Vote(voter)
	if !ok {
		return domain.ErrNoVote
	}
	if existing.Confirmed {
		return domain.ErrVoteConfirmed
	}

	existing.Confirmed = true
	doc.SetVote(voter, existing)
	return nil
}

// RequestOpenVote records a player's call for an early vote during the
// playing phase. The host opens voting once calls exceed half of the
// eligible players.
func RequestOpenVote(doc *store.RoomDoc, id string) error {
	st := doc.State()
	if st.Phase != domain.PhasePlaying {
		return domain.ErrInvalidPhase
	}
	if !Eligible(doc, id) {
		return domain.ErrNotEligible
	}

	doc.SetOpenVote(id, true)
	return nil
}

// SubmitGuess records a spy's single location guess. Allowed during voting
// and tie-guess; the host resolves it against the round's location, exact
// string match winning the round for the spy.
func SubmitGuess(doc *store.RoomDoc, id, guess string) error {
	st := doc.State()
	if st.Phase != domain.PhaseVoting && st.Phase != domain.PhaseTieGuess {
		return domain.ErrInvalidPhase
	}
	if !st.IsSpy(id) {
		return domain.ErrNotSpy
	}
	if _, ok := doc.Guess(id); ok {
		return domain.ErrAlreadyGuessed
	}

	doc.SetGuess(id, guess)
	return nil
}

package app

import (
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"spyroom/internal/config"
	"spyroom/internal/domain"
	"spyroom/internal/store"
)

// Machine drives game-phase progression on the elected host's replica.
// Evaluate is invoked on every relevant input (tick, store change, user
// action) and is a no-op on non-host replicas. Every transition is guarded
// by the round number it fired for, so re-evaluating an already-advanced
// condition changes nothing.
type Machine struct {
	doc    *store.RoomDoc
	cfg    config.GameConfig
	logger *slog.Logger
	rng    *rand.Rand

	// Per-round one-shot guards, each holding the round it last fired for.
	// The chat announcement and vote-window markers live in the replicated
	// state instead, so they survive a host change mid-round.
	votingOpened int
	tallied      int
	tieResolved  int
	ended        int
}

// NewMachine creates a state machine over the given replica
func NewMachine(doc *store.RoomDoc, cfg config.GameConfig, logger *slog.Logger, rng *rand.Rand) *Machine {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Machine{doc: doc, cfg: cfg, logger: logger, rng: rng}
}

func (m *Machine) isHost() bool {
	return m.doc.State().HostID == m.doc.Self()
}

// StartRound performs the explicit lobby → playing transition: picks the
// round's location, assigns spies and roles, arms the countdown and clears
// every round-scoped field.
func (m *Machine) StartRound(now time.Time) error {
	if !m.isHost() {
		return domain.ErrNotHost
	}

	st := m.doc.State()
	if st.Phase != domain.PhaseLobby {
		return domain.ErrInvalidPhase
	}

	players := m.doc.Players()
	if len(players) < m.cfg.MinPlayers {
		return domain.ErrNotEnoughPlayers
	}

	pool := playableLocations(st.Pool)
	if len(pool) == 0 {
		pool = Locations
	}
	pool = SamplePool(m.rng, pool, m.cfg.MaxPoolSize)
	if len(pool) == 0 {
		return domain.ErrEmptyPool
	}

	location := pool[m.rng.Intn(len(pool))]
	spies := m.pickSpies(players, st.GameMode)
	roles := m.assignRoles(players, spies, location)

	round := st.Round + 1
	nowMs := now.UnixMilli()

	m.doc.ClearRound()
	m.doc.SetWinner(domain.WinnerNone)
	m.doc.SetWinReason("")
	m.doc.SetVoteWindowEndsAt(0)
	m.doc.SetTieGuessEndsAt(0)
	m.doc.SetVoteAnnouncedRound(0)
	m.doc.SetVoteWindowSetRound(0)

	m.doc.SetLocation(location.Name)
	m.doc.SetSpies(spies)
	m.doc.SetRoles(roles)
	m.doc.SetRound(round)
	m.doc.SetRoundStartAt(nowMs)
	m.doc.SetTimerEnd(now.Add(m.cfg.RoundDuration).UnixMilli())
	m.doc.SetPhase(domain.PhasePlaying)

	m.logger.Info("round started",
		"round", round,
		"players", len(players),
		"spies", len(spies),
		"mode", st.GameMode,
	)
	return nil
}

// pickSpies selects the round's spies: one uniformly random player, or two
// distinct ones in double mode with enough players at round start.
func (m *Machine) pickSpies(players []domain.Player, mode domain.GameMode) []string {
	first := players[m.rng.Intn(len(players))].ID
	if mode != domain.ModeDouble || len(players) < m.cfg.DoubleSpyMin {
		return []string{first}
	}

	second := first
	for second == first {
		second = players[m.rng.Intn(len(players))].ID
	}
	return []string{first, second}
}

// assignRoles shuffles the location's role list and deals it round-robin to
// the non-spy players, wrapping when roles run short
func (m *Machine) assignRoles(players []domain.Player, spies []string, location domain.Location) map[string]string {
	spySet := make(map[string]bool, len(spies))
	for _, id := range spies {
		spySet[id] = true
	}

	shuffled := make([]string, len(location.Roles))
	copy(shuffled, location.Roles)
	m.rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	roles := make(map[string]string)
	i := 0
	for _, p := range players {
		if spySet[p.ID] {
			continue
		}
		roles[p.ID] = shuffled[i%len(shuffled)]
		i++
	}
	return roles
}

// NewRound performs the explicit revealed → lobby transition: round-scoped
// fields go back to defaults while hostId, gameMode and the cumulative
// round counter survive.
func (m *Machine) NewRound() error {
	if !m.isHost() {
		return domain.ErrNotHost
	}
	if m.doc.State().Phase != domain.PhaseRevealed {
		return domain.ErrInvalidPhase
	}

	m.doc.ClearRound()
	m.doc.SetLocation("")
	m.doc.SetSpies(nil)
	m.doc.SetRoles(nil)
	m.doc.SetWinner(domain.WinnerNone)
	m.doc.SetWinReason("")
	m.doc.SetTimerEnd(0)
	m.doc.SetVoteWindowEndsAt(0)
	m.doc.SetTieGuessEndsAt(0)
	m.doc.SetPhase(domain.PhaseLobby)
	return nil
}

// RevealNow is the host override forcing playing → revealed, bypassing
// voting entirely
func (m *Machine) RevealNow(now time.Time) error {
	if !m.isHost() {
		return domain.ErrNotHost
	}
	st := m.doc.State()
	if st.Phase != domain.PhasePlaying {
		return domain.ErrInvalidPhase
	}

	m.endRound(st.Round, domain.WinnerNone, "revealed by host", now)
	return nil
}

// Evaluate advances the state machine from the current inputs. Safe to call
// any number of times; only the elected host's replica acts.
func (m *Machine) Evaluate(now time.Time) {
	if !m.isHost() {
		return
	}

	st := m.doc.State()
	round := st.Round
	nowMs := now.UnixMilli()

	if st.Phase.InProgress() && m.ended != round {
		if m.forceEarlyEnd(st, round, now) {
			return
		}
	}

	// A spy guess decides the round immediately, short-circuiting the tally
	if (st.Phase == domain.PhaseVoting || st.Phase == domain.PhaseTieGuess) && m.ended != round {
		if m.resolveGuess(st, round, now) {
			return
		}
	}

	switch st.Phase {
	case domain.PhasePlaying:
		if m.votingOpened == round {
			return
		}
		if st.TimerEnd > 0 && nowMs >= st.TimerEnd {
			m.openVoting(round, now)
			return
		}
		eligible := EligiblePlayers(m.doc)
		calls := 0
		for id := range m.doc.OpenVotes() {
			if Eligible(m.doc, id) {
				calls++
			}
		}
		if len(eligible) > 0 && calls*2 > len(eligible) {
			m.openVoting(round, now)
		}

	case domain.PhaseVoting:
		if m.tallied == round {
			return
		}
		expired := st.VoteWindowEndsAt > 0 && nowMs >= st.VoteWindowEndsAt
		if expired || m.allEligibleConfirmed() {
			m.resolveVotes(round, now)
		}

	case domain.PhaseTieGuess:
		if m.tieResolved == round {
			return
		}
		if st.TieGuessEndsAt > 0 && nowMs >= st.TieGuessEndsAt {
			m.tieResolved = round
			m.endRound(round, domain.WinnerCivilians, "spy did not guess", now)
		}
	}
}

// forceEarlyEnd ends the round when too few players remain or every
// assigned spy has left
func (m *Machine) forceEarlyEnd(st domain.RoomState, round int, now time.Time) bool {
	players := m.doc.Players()

	if len(players) <= 2 {
		m.endRound(round, domain.WinnerNone, "round ended", now)
		return true
	}

	if len(st.Spies) > 0 {
		remaining := 0
		for _, id := range st.Spies {
			if _, ok := m.doc.Player(id); ok {
				remaining++
			}
		}
		if remaining == 0 {
			m.endRound(round, domain.WinnerCivilians, "no spies left", now)
			return true
		}
	}
	return false
}

// resolveGuess ends the round if any spy has submitted a location guess
func (m *Machine) resolveGuess(st domain.RoomState, round int, now time.Time) bool {
	for id, guess := range m.doc.Guesses() {
		if !st.IsSpy(id) {
			continue
		}
		if guess == st.Location {
			m.endRound(round, domain.WinnerSpy, "spy guessed the location", now)
		} else {
			m.endRound(round, domain.WinnerCivilians, "spy guessed wrong", now)
		}
		return true
	}
	return false
}

// allEligibleConfirmed reports whether every eligible player holds a
// confirmed vote
func (m *Machine) allEligibleConfirmed() bool {
	eligible := EligiblePlayers(m.doc)
	if len(eligible) == 0 {
		return false
	}
	for _, p := range eligible {
		v, ok := m.doc.Vote(p.ID)
		if !ok || !v.Confirmed {
			return false
		}
	}
	return true
}

// openVoting performs the playing → voting transition. The announcement
// and the vote window are each marked in the replicated state so they
// happen once per round even across a host change.
func (m *Machine) openVoting(round int, now time.Time) {
	m.votingOpened = round
	m.doc.SetPhase(domain.PhaseVoting)

	st := m.doc.State()
	if st.VoteAnnouncedRound != round {
		m.doc.SetVoteAnnouncedRound(round)
		m.doc.AppendChat(domain.NewSystemMessage("Time is up! Who is the spy?", now.UnixMilli()))
	}
	if st.VoteWindowSetRound != round {
		m.doc.SetVoteWindowSetRound(round)
		ends := now.Add(m.cfg.VoteWindow).UnixMilli()
		m.doc.SetVoteWindowEndsAt(ends)
		m.doc.SetTimerEnd(ends) // vote window drives the countdown display
		m.doc.AppendChat(domain.NewSystemMessage(
			fmt.Sprintf("Voting closes in %d seconds.", int(m.cfg.VoteWindow.Seconds())), now.UnixMilli()))
	}

	m.logger.Info("voting opened", "round", round)
}

// resolveVotes tallies the round and moves to tie-guess or revealed
func (m *Machine) resolveVotes(round int, now time.Time) {
	m.tallied = round

	tally := TallyVotes(m.doc)
	m.doc.AppendChat(domain.NewSystemMessage(tally.Summary(m.doc), now.UnixMilli()))

	if tally.IsTie() {
		ends := now.Add(m.cfg.TieGuessWindow).UnixMilli()
		m.doc.SetTieGuessEndsAt(ends)
		m.doc.SetTimerEnd(ends)
		m.doc.SetPhase(domain.PhaseTieGuess)
		m.doc.AppendChat(domain.NewSystemMessage(
			fmt.Sprintf("The vote is tied! The spy has %d seconds to guess the location.",
				int(m.cfg.TieGuessWindow.Seconds())), now.UnixMilli()))
		m.logger.Info("vote tied", "round", round, "top", tally.Top)
		return
	}

	st := m.doc.State()
	if tally.Max == 0 {
		m.endRound(round, domain.WinnerSpy, "no spy was caught", now)
		return
	}

	top := tally.Top[0]
	if st.IsSpy(top) {
		m.endRound(round, domain.WinnerCivilians, "the spy was caught", now)
	} else {
		m.endRound(round, domain.WinnerSpy, "the spy escaped", now)
	}
}

// endRound performs the transition into revealed, clearing all timers
func (m *Machine) endRound(round int, winner domain.Winner, reason string, now time.Time) {
	m.ended = round

	m.doc.SetWinner(winner)
	m.doc.SetWinReason(reason)
	m.doc.SetTimerEnd(0)
	m.doc.SetVoteWindowEndsAt(0)
	m.doc.SetTieGuessEndsAt(0)
	m.doc.SetPhase(domain.PhaseRevealed)

	text := "Round over: " + reason + "."
	if winner != domain.WinnerNone {
		text = fmt.Sprintf("Round over: %s win (%s).", winnerLabel(winner), reason)
	}
	m.doc.AppendChat(domain.NewSystemMessage(text, now.UnixMilli()))

	m.logger.Info("round ended", "round", round, "winner", winner, "reason", reason)
}

func winnerLabel(w domain.Winner) string {
	switch w {
	case domain.WinnerSpy:
		return "the spies"
	case domain.WinnerCivilians:
		return "the civilians"
	default:
		return "nobody"
	}
}

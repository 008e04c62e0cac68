package app_test

import (
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"spyroom/internal/app"
	"spyroom/internal/config"
	"spyroom/internal/domain"
	"spyroom/internal/store"
)

var testBase = time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestDoc(actor string) *store.RoomDoc {
	return store.NewRoomDoc(store.New(actor))
}

func addPlayer(doc *store.RoomDoc, id, name string, joinedAt time.Time) {
	doc.PutPlayer(domain.NewPlayer(id, name))
	doc.SetJoinedAt(id, joinedAt.UnixMilli())
	doc.SetActivity(id, joinedAt.UnixMilli())
}

func newTestMachine(doc *store.RoomDoc) *app.Machine {
	return app.NewMachine(doc, config.Default().Game, testLogger(), rand.New(rand.NewSource(1)))
}

// setupRoom builds a doc with playerCount players p1..pN joined a minute
// before testBase, with p1 (the local replica) holding the host seat.
func setupRoom(playerCount int) (*store.RoomDoc, *app.Machine) {
	doc := newTestDoc("p1")
	doc.SetHostID("p1")
	doc.SetCreatedAt(testBase.Add(-time.Hour).UnixMilli())
	for i := 1; i <= playerCount; i++ {
		id := fmt.Sprintf("p%d", i)
		addPlayer(doc, id, "Player "+id, testBase.Add(-time.Minute))
	}
	return doc, newTestMachine(doc)
}

// setupRound additionally starts a classic round at testBase
func setupRound(t *testing.T, playerCount int) (*store.RoomDoc, *app.Machine) {
	t.Helper()
	doc, m := setupRoom(playerCount)
	require.NoError(t, m.StartRound(testBase))
	return doc, m
}

// toVoting advances a started round into the voting phase by expiring the
// countdown, and returns the evaluation time used
func toVoting(t *testing.T, doc *store.RoomDoc, m *app.Machine) time.Time {
	t.Helper()
	now := testBase.Add(config.Default().Game.RoundDuration)
	m.Evaluate(now)
	require.Equal(t, domain.PhaseVoting, doc.State().Phase)
	return now
}

// confirmVote casts and confirms voter's vote for target
func confirmVote(t *testing.T, doc *store.RoomDoc, voter, target string) {
	t.Helper()
	require.NoError(t, app.CastVote(doc, voter, target))
	require.NoError(t, app.ConfirmVote(doc, voter))
}

// requireStable checks that re-evaluating with an unchanged round key is a
// no-op: state and chat after N evaluations equal state after the first
func requireStable(t *testing.T, doc *store.RoomDoc, m *app.Machine, now time.Time) {
	t.Helper()
	before := doc.State()
	chatLen := len(doc.Chat())
	for i := 0; i < 5; i++ {
		m.Evaluate(now)
	}
	require.Equal(t, before, doc.State())
	require.Len(t, doc.Chat(), chatLen)
}

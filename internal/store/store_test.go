package store_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spyroom/internal/domain"
	"spyroom/internal/store"
)

func TestSetGetDelete(t *testing.T) {
	s := store.New("a")

	require.NoError(t, s.Set("state", "phase", "LOBBY"))
	var got string
	require.True(t, s.Get("state", "phase", &got))
	assert.Equal(t, "LOBBY", got)

	s.Delete("state", "phase")
	assert.False(t, s.Get("state", "phase", &got))
	assert.Empty(t, s.Keys("state"))
}

func TestKeysAreSortedAndSectionScoped(t *testing.T) {
	s := store.New("a")
	require.NoError(t, s.Set("players", "zoe", 1))
	require.NoError(t, s.Set("players", "abe", 2))
	require.NoError(t, s.Set("votes", "abe", 3))

	assert.Equal(t, []string{"abe", "zoe"}, s.Keys("players"))
	assert.Equal(t, []string{"abe"}, s.Keys("votes"))
}

func TestConvergence(t *testing.T) {
	t.Run("LastWriteWinsEitherApplyOrder", func(t *testing.T) {
		a := store.New("a")
		b := store.New("b")

		require.NoError(t, a.Set("state", "hostId", "p1"))
		b.Apply(a.Snapshot()) // b's clock catches up to a's
		require.NoError(t, b.Set("state", "hostId", "p2"))

		// apply in both orders; the later write wins in each
		x := store.New("x")
		x.Apply(a.Snapshot())
		x.Apply(b.Snapshot())
		y := store.New("y")
		y.Apply(b.Snapshot())
		y.Apply(a.Snapshot())

		var vx, vy string
		require.True(t, x.Get("state", "hostId", &vx))
		require.True(t, y.Get("state", "hostId", &vy))
		assert.Equal(t, "p2", vx)
		assert.Equal(t, vx, vy)
	})

	t.Run("EqualClocksBreakOnHigherActor", func(t *testing.T) {
		a := store.New("a")
		b := store.New("b")

		// both write concurrently at clock 1
		require.NoError(t, a.Set("state", "hostId", "from-a"))
		require.NoError(t, b.Set("state", "hostId", "from-b"))

		a.Apply(b.Snapshot())
		b.Apply(a.Snapshot())

		var va, vb string
		require.True(t, a.Get("state", "hostId", &va))
		require.True(t, b.Get("state", "hostId", &vb))
		assert.Equal(t, "from-b", va, "actor b is the higher id")
		assert.Equal(t, va, vb)
	})

	t.Run("TombstoneWinsOverOlderWrite", func(t *testing.T) {
		a := store.New("a")
		b := store.New("b")

		require.NoError(t, a.Set("votes", "p1", "p2"))
		b.Apply(a.Snapshot())
		b.Delete("votes", "p1")
		a.Apply(b.Snapshot())

		var v string
		assert.False(t, a.Get("votes", "p1", &v))
		assert.Empty(t, a.Keys("votes"))
	})

	t.Run("ApplyIsIdempotent", func(t *testing.T) {
		a := store.New("a")
		require.NoError(t, a.Set("state", "phase", "PLAYING"))
		a.AppendChat(domain.ChatMessage{SenderID: "a", Text: "hi", Timestamp: 1})

		b := store.New("b")
		snap := a.Snapshot()
		for i := 0; i < 3; i++ {
			b.Apply(snap)
		}

		assert.Len(t, b.Chat(), 1)
		var v string
		require.True(t, b.Get("state", "phase", &v))
		assert.Equal(t, "PLAYING", v)
	})
}

func TestChatOrdering(t *testing.T) {
	a := store.New("a")
	b := store.New("b")

	a.AppendChat(domain.ChatMessage{SenderID: "a", Text: "first", Timestamp: 10})
	b.Apply(a.Snapshot())
	b.AppendChat(domain.ChatMessage{SenderID: "b", Text: "second", Timestamp: 5}) // wall clock lies
	a.Apply(b.Snapshot())

	texts := func(msgs []domain.ChatMessage) []string {
		out := make([]string, len(msgs))
		for i, m := range msgs {
			out[i] = m.Text
		}
		return out
	}

	// causal order, not wall-clock order, and identical on both replicas
	assert.Equal(t, []string{"first", "second"}, texts(a.Chat()))
	assert.Equal(t, texts(a.Chat()), texts(b.Chat()))
}

func TestObservers(t *testing.T) {
	t.Run("LocalWritesBroadcastRemoteAppliesDoNot", func(t *testing.T) {
		s := store.New("a")

		var broadcasts []store.Update
		s.OnLocalUpdate(func(u store.Update) { broadcasts = append(broadcasts, u) })

		require.NoError(t, s.Set("state", "phase", "LOBBY"))
		assert.Len(t, broadcasts, 1)

		other := store.New("b")
		require.NoError(t, other.Set("state", "round", 1))
		s.Apply(other.Snapshot())
		assert.Len(t, broadcasts, 1, "remote applies must not echo")
	})

	t.Run("OnChangeFiresForBothButNotForLosingWrites", func(t *testing.T) {
		s := store.New("b")
		require.NoError(t, s.Set("state", "phase", "PLAYING"))

		changes := 0
		s.OnChange(func() { changes++ })

		require.NoError(t, s.Set("state", "phase", "VOTING"))
		assert.Equal(t, 1, changes)

		// a stale concurrent write loses the merge and triggers nothing
		stale := store.New("a")
		require.NoError(t, stale.Set("state", "phase", "LOBBY"))
		s.Apply(stale.Snapshot())
		assert.Equal(t, 1, changes)

		var v string
		require.True(t, s.Get("state", "phase", &v))
		assert.Equal(t, "VOTING", v)
	})
}

func TestRoomDocPlayers(t *testing.T) {
	doc := store.NewRoomDoc(store.New("p1"))

	doc.PutPlayer(domain.NewPlayer("p2", "Bob"))
	doc.PutPlayer(domain.NewPlayer("p1", "Alice"))
	doc.SetJoinedAt("p1", 100)
	doc.SetVote("p1", domain.VoteEntry{TargetID: "p2"})
	doc.SetHostID("p1")

	players := doc.Players()
	require.Len(t, players, 2)

	doc.RemovePlayer("p1")
	_, ok := doc.Player("p1")
	assert.False(t, ok)
	_, ok = doc.JoinedAt("p1")
	assert.False(t, ok, "per-player registers go with the player")
	_, ok = doc.Vote("p1")
	assert.False(t, ok)
	assert.Empty(t, doc.State().HostID, "removing the host vacates the seat")
}

func TestRoomDocReset(t *testing.T) {
	doc := store.NewRoomDoc(store.New("p1"))
	doc.PutPlayer(domain.NewPlayer("p1", "Alice"))
	doc.SetJoinedAt("p1", 100)
	doc.SetHostID("p1")
	doc.SetPhase(domain.PhasePlaying)
	doc.SetRound(3)
	doc.SetLocation("Casino")
	doc.SetVote("p1", domain.VoteEntry{TargetID: "p1", Confirmed: true})
	doc.AppendChat(domain.ChatMessage{SenderID: "p1", Text: "hi", Timestamp: 1})

	doc.Reset()

	st := doc.State()
	assert.Empty(t, doc.Players())
	assert.Equal(t, domain.DefaultRoomState().Phase, st.Phase)
	assert.Empty(t, st.HostID)
	assert.Zero(t, st.Round)
	assert.Empty(t, st.Location)
	assert.Empty(t, doc.Votes())
	// chat is append-only and survives the reset
	assert.NotEmpty(t, doc.Chat())
}

package transport_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spyroom/internal/relay"
	"spyroom/internal/transport"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startRelay runs an in-process relay on an httptest server and returns its
// websocket endpoint
func startRelay(t *testing.T) string {
	t.Helper()
	hub := relay.NewHub(testLogger())
	srv := relay.NewServer("", hub, testLogger())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return "ws" + strings.TrimPrefix(ts.URL, "http")
}

func TestConnectFallsBackThroughEndpoints(t *testing.T) {
	live := startRelay(t)
	endpoints := []string{"ws://127.0.0.1:1", live}

	tr := transport.New(endpoints, 500*time.Millisecond, testLogger())
	defer tr.Close()

	require.NoError(t, tr.Connect(context.Background(), "fallback-room"))
	assert.True(t, tr.Connected())
	assert.True(t, tr.Ready())
}

func TestConnectTotalFailure(t *testing.T) {
	endpoints := []string{"ws://127.0.0.1:1", "ws://127.0.0.1:2"}

	tr := transport.New(endpoints, 200*time.Millisecond, testLogger())
	defer tr.Close()

	err := tr.Connect(context.Background(), "nowhere")
	require.Error(t, err)
	assert.False(t, tr.Connected())
	assert.True(t, tr.Ready(), "readiness is reached even on failure")

	require.Error(t, tr.LastErr())
	msg := tr.LastErr().Error()
	assert.Contains(t, msg, `"nowhere"`)
	assert.Contains(t, msg, "ws://127.0.0.1:1")
	assert.Contains(t, msg, "ws://127.0.0.1:2")

	assert.ErrorContains(t, tr.WaitUntilConnected(100*time.Millisecond), "not connected")
}

func TestUpdateFanout(t *testing.T) {
	endpoint := startRelay(t)

	connect := func(t *testing.T) *transport.Transport {
		t.Helper()
		tr := transport.New([]string{endpoint}, time.Second, testLogger())
		t.Cleanup(func() { tr.Close() })
		require.NoError(t, tr.Connect(context.Background(), "fanout-room"))
		return tr
	}

	a := connect(t)
	b := connect(t)

	got := make(chan []byte, 1)
	b.OnUpdate(func(payload []byte) { got <- payload })

	require.NoError(t, a.Send(transport.NewUpdateMessage([]byte(`{"k":1}`))))

	select {
	case payload := <-got:
		assert.JSONEq(t, `{"k":1}`, string(payload))
	case <-time.After(2 * time.Second):
		t.Fatal("update never reached the second peer")
	}
}

func TestSyncRequestReachesPeersButNotSender(t *testing.T) {
	endpoint := startRelay(t)

	newPeer := func(t *testing.T, topic string) (*transport.Transport, chan struct{}) {
		t.Helper()
		tr := transport.New([]string{endpoint}, time.Second, testLogger())
		t.Cleanup(func() { tr.Close() })
		reqs := make(chan struct{}, 4)
		tr.OnSyncRequest(func() { reqs <- struct{}{} })
		require.NoError(t, tr.Connect(context.Background(), topic))
		return tr, reqs
	}

	a, aReqs := newPeer(t, "sync-room")
	_, bReqs := newPeer(t, "sync-room")

	require.NoError(t, a.Send(transport.NewSyncRequest()))

	select {
	case <-bReqs:
	case <-time.After(2 * time.Second):
		t.Fatal("sync request never reached the other peer")
	}

	select {
	case <-aReqs:
		t.Fatal("relay echoed the sync request back to its sender")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestReconnectAfterDrop(t *testing.T) {
	// a relay that severs the first connection right after its ack and
	// keeps every later one open
	upgrader := websocket.Upgrader{}
	var mu sync.Mutex
	accepted := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		if err := conn.WriteJSON(map[string]string{"type": "connected"}); err != nil {
			return
		}

		mu.Lock()
		accepted++
		first := accepted == 1
		mu.Unlock()

		if first {
			conn.Close()
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()
	endpoint := "ws" + strings.TrimPrefix(srv.URL, "http")

	tr := transport.New([]string{endpoint}, time.Second, testLogger())
	defer tr.Close()

	resynced := make(chan struct{}, 1)
	tr.OnReconnect(func() { resynced <- struct{}{} })

	require.NoError(t, tr.Connect(context.Background(), "droppy-room"))

	select {
	case <-resynced:
	case <-time.After(10 * time.Second):
		t.Fatal("transport never redialed after the drop")
	}

	require.Eventually(t, tr.Connected, 2*time.Second, 20*time.Millisecond,
		"status must flap back up after the redial")

	mu.Lock()
	assert.GreaterOrEqual(t, accepted, 2)
	mu.Unlock()
}

func TestTopicsAreIsolated(t *testing.T) {
	endpoint := startRelay(t)

	newPeer := func(t *testing.T, topic string) *transport.Transport {
		t.Helper()
		tr := transport.New([]string{endpoint}, time.Second, testLogger())
		t.Cleanup(func() { tr.Close() })
		require.NoError(t, tr.Connect(context.Background(), topic))
		return tr
	}

	a := newPeer(t, "room-one")
	b := newPeer(t, "room-two")

	leaked := make(chan struct{}, 1)
	b.OnUpdate(func([]byte) { leaked <- struct{}{} })

	require.NoError(t, a.Send(transport.NewUpdateMessage([]byte(`{}`))))

	select {
	case <-leaked:
		t.Fatal("update crossed topics")
	case <-time.After(300 * time.Millisecond):
	}
}

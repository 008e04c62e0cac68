package relay_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spyroom/internal/relay"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startServer(t *testing.T) (*relay.Hub, string) {
	t.Helper()
	hub := relay.NewHub(testLogger())
	srv := relay.NewServer("", hub, testLogger())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return hub, ts.URL
}

// dial connects a raw websocket client and consumes the connected ack
func dial(t *testing.T, baseURL, topic string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(baseURL, "http") + "/rooms/" + topic
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ack map[string]string
	require.NoError(t, conn.ReadJSON(&ack))
	require.Equal(t, "connected", ack["type"])
	return conn
}

func TestHealthEndpoint(t *testing.T) {
	hub, base := startServer(t)
	dial(t, base, "game-night")

	resp, err := http.Get(base + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Status string `json:"status"`
		Topics int    `json:"topics"`
		Peers  int    `json:"peers"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, 1, body.Topics)
	assert.Equal(t, 1, body.Peers)
	assert.Equal(t, 1, hub.PeerCount("game-night"))
}

func TestInvalidTopicRejected(t *testing.T) {
	_, base := startServer(t)

	resp, err := http.Get(base + "/rooms/!!!")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestFanoutExcludesSender(t *testing.T) {
	_, base := startServer(t)

	a := dial(t, base, "shared")
	b := dial(t, base, "shared")
	c := dial(t, base, "other")

	payload := []byte(`{"type":"update","payload":{"n":1}}`)
	require.NoError(t, a.WriteMessage(websocket.TextMessage, payload))

	b.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, got, err := b.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, string(payload), string(got))

	// neither the sender nor peers on other topics hear it
	a.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	_, _, err = a.ReadMessage()
	assert.Error(t, err)

	c.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	_, _, err = c.ReadMessage()
	assert.Error(t, err)
}

func TestCountsDropAfterDisconnect(t *testing.T) {
	hub, base := startServer(t)

	conn := dial(t, base, "short-lived")
	require.Equal(t, 1, hub.PeerCount("short-lived"))

	conn.Close()
	require.Eventually(t, func() bool {
		return hub.PeerCount("short-lived") == 0
	}, 2*time.Second, 20*time.Millisecond)
	assert.Zero(t, hub.TopicCount())
}

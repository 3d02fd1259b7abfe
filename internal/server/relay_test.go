package server

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
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/channelrelay/internal/router"
)

const readTimeout = 2 * time.Second

type testRelay struct {
	srv *Server
	url string
}

func startTestRelay(t *testing.T, cfg Config) *testRelay {
	t.Helper()

	srv := New(cfg, logs.GetLoggerFromLevel(slog.LevelDebug))
	srv.Start()
	ts := httptest.NewServer(srv.SetupRoutes())
	t.Cleanup(ts.Close)
	t.Cleanup(func() { _ = srv.Hub().Shutdown(time.Second) })

	return &testRelay{srv: srv, url: ts.URL}
}

func (r *testRelay) wsURL(path string) string {
	return "ws" + strings.TrimPrefix(r.url, "http") + path
}

// dial connects and consumes the welcome frame.
func (r *testRelay) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	conn := r.dialRaw(t, "/ws")
	assert.Equal(t, map[string]any{"type": "system", "message": router.WelcomeText}, readFrame(t, conn))
	return conn
}

func (r *testRelay) dialRaw(t *testing.T, path string) *websocket.Conn {
	t.Helper()
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, resp, err := dialer.Dial(r.wsURL(path), nil)
	if resp != nil {
		_ = resp.Body.Close()
	}
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(readTimeout)))
	var frame map[string]any
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

// expectSilence must be the last read on conn: a timed-out read poisons the
// connection.
func expectSilence(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, data, err := conn.ReadMessage()
	assert.Error(t, err, "unexpected frame: %s", data)
}

func joinChannel(t *testing.T, conn *websocket.Conn, channel string) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "join", "channel": channel, "id": "req-" + channel}))
	assert.Equal(t, "Joined channel: "+channel, readFrame(t, conn)["message"])
	assert.Equal(t, map[string]any{
		"type": "system",
		"message": map[string]any{
			"id":     "req-" + channel,
			"result": "Connected to channel: " + channel,
		},
		"channel": channel,
	}, readFrame(t, conn))
}

func TestRelayTwoClientScenario(t *testing.T) {
	relay := startTestRelay(t, NewConfig())
	client1 := relay.dial(t)
	client2 := relay.dial(t)

	joinChannel(t, client1, "room1")
	joinChannel(t, client2, "room1")
	assert.Equal(t, map[string]any{
		"type":    "system",
		"message": router.PeerJoinedText,
		"channel": "room1",
	}, readFrame(t, client1))

	require.NoError(t, client1.WriteMessage(websocket.TextMessage,
		[]byte(`{"type":"message","channel":"room1","message":{"foo":1}}`)))

	assert.Equal(t, map[string]any{
		"type":    "broadcast",
		"message": map[string]any{"foo": float64(1)},
		"sender":  "peer",
		"channel": "room1",
	}, readFrame(t, client2))
	expectSilence(t, client1)
}

func TestRelayCleanupOnDisconnect(t *testing.T) {
	relay := startTestRelay(t, NewConfig())
	a := relay.dial(t)
	b := relay.dial(t)
	joinChannel(t, a, "X")
	joinChannel(t, b, "X")
	readFrame(t, a) // b joined

	require.NoError(t, a.Close())

	assert.Equal(t, map[string]any{
		"type":    "system",
		"message": router.PeerLeftText,
		"channel": "X",
	}, readFrame(t, b))
	require.Eventually(t, func() bool {
		return relay.srv.Registry().Stats().Members == 1
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, b.WriteJSON(map[string]any{"type": "message", "channel": "X", "message": "anyone?"}))
	expectSilence(t, b)
}

func TestRelayMembershipGate(t *testing.T) {
	relay := startTestRelay(t, NewConfig())
	member := relay.dial(t)
	stranger := relay.dial(t)
	joinChannel(t, member, "C")

	require.NoError(t, stranger.WriteJSON(map[string]any{"type": "message", "channel": "C", "message": "hi"}))

	assert.Equal(t, map[string]any{"type": "error", "message": router.MembershipMissing}, readFrame(t, stranger))
	expectSilence(t, member)
}

func TestRelayMalformedFrameKeepsConnection(t *testing.T) {
	relay := startTestRelay(t, NewConfig())
	conn := relay.dial(t)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "join"}))

	assert.Equal(t, map[string]any{"type": "error", "message": router.ChannelRequired}, readFrame(t, conn))
}

func TestRelayWelcomeComesFirst(t *testing.T) {
	relay := startTestRelay(t, NewConfig())
	conn := relay.dialRaw(t, "/")

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "join", "channel": "early"}))

	assert.Equal(t, router.WelcomeText, readFrame(t, conn)["message"])
	assert.Equal(t, "Joined channel: early", readFrame(t, conn)["message"])
}

func TestRelayLargePayload(t *testing.T) {
	relay := startTestRelay(t, NewConfig())
	sender := relay.dial(t)
	peer := relay.dial(t)
	joinChannel(t, sender, "room1")
	joinChannel(t, peer, "room1")
	readFrame(t, sender) // peer joined

	result := strings.Repeat("x", 100*1024)
	require.NoError(t, sender.WriteJSON(map[string]any{
		"type":    "message",
		"channel": "room1",
		"message": map[string]any{"result": result},
	}))

	frame := readFrame(t, peer)
	assert.Equal(t, "broadcast", frame["type"])
	assert.Equal(t, map[string]any{"result": result}, frame["message"])
	expectSilence(t, sender)
}

func TestRelayBurstIsDeliveredByDefault(t *testing.T) {
	relay := startTestRelay(t, NewConfig())
	sender := relay.dial(t)
	peer := relay.dial(t)
	joinChannel(t, sender, "room1")
	joinChannel(t, peer, "room1")

	const updates = 40
	for i := range updates {
		require.NoError(t, sender.WriteJSON(map[string]any{
			"type":    "progress_update",
			"channel": "room1",
			"message": map[string]any{"result": i},
		}))
	}

	for i := range updates {
		frame := readFrame(t, peer)
		assert.Equal(t, "broadcast", frame["type"])
		assert.Equal(t, map[string]any{"result": float64(i)}, frame["message"])
	}
}

func TestRelayRateLimit(t *testing.T) {
	cfg := NewConfig()
	cfg.RateLimitBurst = 1
	cfg.RateLimitRefill = time.Hour
	relay := startTestRelay(t, cfg)
	sender := relay.dial(t)
	peer := relay.dial(t)
	joinChannel(t, sender, "X")
	joinChannel(t, peer, "X")
	readFrame(t, sender) // peer joined

	require.NoError(t, sender.WriteJSON(map[string]any{"type": "message", "channel": "X", "message": "first"}))
	require.NoError(t, sender.WriteJSON(map[string]any{"type": "message", "channel": "X", "message": "throttled"}))

	// Joins bypass the exhausted bucket.
	joinChannel(t, sender, "Y")

	assert.Equal(t, "first", readFrame(t, peer)["message"])
	expectSilence(t, peer)
}

func TestRelayRejectsDisallowedOrigin(t *testing.T) {
	cfg := NewConfig()
	cfg.AllowedOrigins = "http://localhost:8080"
	relay := startTestRelay(t, cfg)

	header := http.Header{}
	header.Set("Origin", "http://evil.example")
	_, resp, err := websocket.DefaultDialer.Dial(relay.wsURL("/ws"), header)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestHTTPRoutes(t *testing.T) {
	relay := startTestRelay(t, NewConfig())

	tests := []struct {
		name        string
		method      string
		path        string
		wantStatus  int
		wantBody    string
		contentType string
	}{
		{name: "root", method: http.MethodGet, path: "/", wantStatus: http.StatusOK, wantBody: HealthText, contentType: "text/plain"},
		{name: "any path", method: http.MethodGet, path: "/anything", wantStatus: http.StatusOK, wantBody: HealthText, contentType: "text/plain"},
		{name: "post", method: http.MethodPost, path: "/", wantStatus: http.StatusOK, wantBody: HealthText, contentType: "text/plain"},
		{name: "preflight", method: http.MethodOptions, path: "/", wantStatus: http.StatusOK, wantBody: ""},
		{name: "plain get on ws path", method: http.MethodGet, path: "/ws", wantStatus: http.StatusOK, wantBody: HealthText, contentType: "text/plain"},
		{name: "post on ws path", method: http.MethodPost, path: "/ws", wantStatus: http.StatusOK, wantBody: HealthText, contentType: "text/plain"},
		{name: "test page", method: http.MethodGet, path: "/test", wantStatus: http.StatusOK, contentType: "text/html"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(tt.method, relay.url+tt.path, http.NoBody)
			require.NoError(t, err)
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
			if tt.contentType != "" {
				assert.Equal(t, tt.contentType, resp.Header.Get("Content-Type"))
			}
			if tt.wantStatus == http.StatusOK && tt.name != "test page" {
				body, err := io.ReadAll(resp.Body)
				require.NoError(t, err)
				assert.Equal(t, tt.wantBody, string(body))
			}
		})
	}
}

func TestStatsEndpoint(t *testing.T) {
	relay := startTestRelay(t, NewConfig())
	a := relay.dial(t)
	b := relay.dial(t)
	joinChannel(t, a, "one")
	joinChannel(t, b, "two")
	joinChannel(t, b, "one")

	resp, err := http.Get(relay.url + "/stats")
	require.NoError(t, err)
	defer resp.Body.Close()

	var stats StatsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, 2, stats.Channels)
	assert.Equal(t, 3, stats.Members)
	assert.Equal(t, 2, stats.Connections)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
}

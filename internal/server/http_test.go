package server

import (
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netchat-io/netchat/internal/protocol"
)

func TestHealthHandlerReportsState(t *testing.T) {
	srv := NewServer(testConfig(), log.New(io.Discard, "", 0))

	rec := httptest.NewRecorder()
	srv.healthHandler(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "Chat server is stopped", rec.Body.String())

	require.NoError(t, srv.Start())
	defer srv.Stop()

	rec = httptest.NewRecorder()
	srv.healthHandler(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "Chat server is running", rec.Body.String())
}

func TestStatusHandlerWhileStopped(t *testing.T) {
	srv := NewServer(testConfig(), log.New(io.Discard, "", 0))

	rec := httptest.NewRecorder()
	srv.statusHandler(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	assert.Equal(t, "State: stopped\n", rec.Body.String())
}

func TestStatusHandlerListsOnlineUsers(t *testing.T) {
	srv := startTestServer(t)
	password, err := srv.SessionPassword()
	require.NoError(t, err)

	alice := dialTestClient(t, srv.Addr())
	alice.login("alice", password)

	rec := httptest.NewRecorder()
	srv.statusHandler(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	body := rec.Body.String()
	assert.Contains(t, body, "State: running")
	assert.Contains(t, body, "Online users: 1")
	assert.Contains(t, body, "alice: connected")
}

func TestWebSocketHandlerRejectsNonGet(t *testing.T) {
	srv := NewServer(testConfig(), log.New(io.Discard, "", 0))
	handler := srv.webSocketHandler(websocket.Upgrader{})

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodPost, "/ws", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

// TestWebSocketClientFullSession drives the complete login and chat flow
// through the upgrade path.
func TestWebSocketClientFullSession(t *testing.T) {
	srv := startTestServer(t)
	password, err := srv.SessionPassword()
	require.NoError(t, err)

	checker := newOriginChecker([]string{"*"}, log.New(io.Discard, "", 0))
	upgrader := websocket.Upgrader{CheckOrigin: checker.check}
	httpServer := httptest.NewServer(srv.webSocketHandler(upgrader))
	defer httpServer.Close()

	wsURL := "ws" + strings.TrimPrefix(httpServer.URL, "http")
	header := http.Header{"Origin": []string{"http://localhost"}}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err)
	defer conn.Close()

	recv := func() protocol.Envelope {
		t.Helper()
		_, frame, err := conn.ReadMessage()
		require.NoError(t, err)
		env, err := protocol.Decode(frame)
		require.NoError(t, err)
		return env
	}
	send := func(env protocol.Envelope) {
		t.Helper()
		frame, err := protocol.Encode(env)
		require.NoError(t, err)
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, frame))
	}

	require.Equal(t, protocol.KindRequestUsername, recv().Kind)
	send(protocol.NewText(protocol.KindNewUsername, "webby"))
	require.Equal(t, protocol.KindRequestPassword, recv().Kind)
	send(protocol.NewText(protocol.KindNewPassword, password))

	accepted := recv()
	require.Equal(t, protocol.KindLoginAccepted, accepted.Kind)
	assert.Equal(t, []string{"webby"}, accepted.Usernames)
}

func TestOriginCheckerBlocksUnlistedOrigin(t *testing.T) {
	checker := newOriginChecker([]string{"https://chat.example.com"}, log.New(io.Discard, "", 0))

	allowed := httptest.NewRequest(http.MethodGet, "/ws", nil)
	allowed.Header.Set("Origin", "https://CHAT.example.com")
	assert.True(t, checker.check(allowed))

	blocked := httptest.NewRequest(http.MethodGet, "/ws", nil)
	blocked.Header.Set("Origin", "https://evil.example.com")
	assert.False(t, checker.check(blocked))

	missing := httptest.NewRequest(http.MethodGet, "/ws", nil)
	assert.False(t, checker.check(missing))
}

func TestOriginCheckerWildcard(t *testing.T) {
	checker := newOriginChecker([]string{"*"}, log.New(io.Discard, "", 0))

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Origin", "https://anywhere.example.com")
	assert.True(t, checker.check(req))
}

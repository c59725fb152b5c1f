package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iamasit07/stones/backend/internal/domain"
	"github.com/iamasit07/stones/backend/internal/service/matchmaking"
	"github.com/iamasit07/stones/backend/internal/service/rules"
	"github.com/iamasit07/stones/backend/pkg/auth"
)

type fakeRatings struct{}

func (fakeRatings) Lookup(_ context.Context, userID int64) int {
	return 1000 + int(userID)
}

type fakeSessions struct {
	calls chan string
}

func (f *fakeSessions) SubmitReady(userID int64, requestID string) bool {
	f.calls <- "ready:" + requestID
	return true
}

func (f *fakeSessions) SubmitMove(userID int64, requestID string, x, y int) bool {
	f.calls <- "move:" + requestID
	return true
}

func (f *fakeSessions) SubmitPostGameDecision(userID int64, requestID string, decision string) bool {
	f.calls <- "decision:" + decision
	return true
}

func (f *fakeSessions) HandleClientDisconnected(userID int64) {
	f.calls <- "disconnect"
}

type testServer struct {
	url       string
	validator *auth.Validator
	engine    *matchmaking.Engine
	sessions  *fakeSessions
	conns     *ConnectionManager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	catalog, err := rules.NewCatalog(rules.Standard)
	require.NoError(t, err)

	ts := &testServer{
		validator: auth.NewValidator("test-secret"),
		engine:    matchmaking.NewEngine(matchmaking.DefaultPolicy(), zerolog.Nop()),
		sessions:  &fakeSessions{calls: make(chan string, 16)},
		conns:     NewConnectionManager(),
	}
	h := NewHandler(ts.conns, ts.engine, ts.sessions, fakeRatings{}, catalog, ts.validator, zerolog.Nop())
	srv := httptest.NewServer(http.HandlerFunc(h.HandleWebSocket))
	t.Cleanup(srv.Close)
	ts.url = "ws" + strings.TrimPrefix(srv.URL, "http")
	return ts
}

func (ts *testServer) dial(t *testing.T, userID int64) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(ts.url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	token, err := ts.validator.GenerateAccessToken(userID, "player", time.Minute)
	require.NoError(t, err)
	write(t, conn, domain.ClientMessage{Type: domain.ClientInit, JWT: token})

	require.Eventually(t, func() bool { return ts.conns.IsConnected(userID) }, time.Second, 5*time.Millisecond)
	return conn
}

func write(t *testing.T, conn *websocket.Conn, msg domain.ClientMessage) {
	t.Helper()
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
}

func read(t *testing.T, conn *websocket.Conn) domain.ServerMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg domain.ServerMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func (ts *testServer) nextCall(t *testing.T) string {
	t.Helper()
	select {
	case c := <-ts.sessions.calls:
		return c
	case <-time.After(time.Second):
		t.Fatal("no session call")
		return ""
	}
}

func TestInitRejectsBadToken(t *testing.T) {
	ts := newTestServer(t)
	conn, _, err := websocket.DefaultDialer.Dial(ts.url, nil)
	require.NoError(t, err)
	defer conn.Close()

	write(t, conn, domain.ClientMessage{Type: domain.ClientInit, JWT: "garbage"})
	msg := read(t, conn)
	assert.Equal(t, domain.MsgError, msg.Type)
	assert.Equal(t, domain.ErrUnauthorized, msg.Error)

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
}

func TestFindMatchAndCancel(t *testing.T) {
	ts := newTestServer(t)
	conn := ts.dial(t, 7)

	write(t, conn, domain.ClientMessage{Type: domain.ClientFindMatch, RequestID: "r1", Rules: "Swap"})
	msg := read(t, conn)
	assert.Equal(t, domain.MsgQueueJoined, msg.Type)
	assert.Equal(t, "r1", msg.RequestID)
	assert.Equal(t, rules.Swap, msg.Rules)
	assert.True(t, ts.engine.Queued(7))

	write(t, conn, domain.ClientMessage{Type: domain.ClientFindMatch, RequestID: "r2"})
	msg = read(t, conn)
	assert.Equal(t, domain.ErrAlreadyQueued, msg.Error)

	write(t, conn, domain.ClientMessage{Type: domain.ClientCancelSearch})
	assert.Equal(t, domain.MsgQueueLeft, read(t, conn).Type)
	assert.False(t, ts.engine.Queued(7))

	write(t, conn, domain.ClientMessage{Type: domain.ClientFindMatch, RequestID: "r3", Rules: "chaos"})
	msg = read(t, conn)
	assert.Equal(t, domain.ErrInvalidPayload, msg.Error)
	assert.Equal(t, "r3", msg.RequestID)
}

func TestSessionFramesAreForwarded(t *testing.T) {
	ts := newTestServer(t)
	conn := ts.dial(t, 3)

	write(t, conn, domain.ClientMessage{Type: domain.ClientReady, RequestID: "a"})
	assert.Equal(t, "ready:a", ts.nextCall(t))

	write(t, conn, domain.ClientMessage{Type: domain.ClientMove, RequestID: "b", X: 1, Y: 2})
	assert.Equal(t, "move:b", ts.nextCall(t))

	write(t, conn, domain.ClientMessage{Type: domain.ClientDecision, RequestID: "c", Decision: "rematch"})
	assert.Equal(t, "decision:rematch", ts.nextCall(t))

	write(t, conn, domain.ClientMessage{Type: "dance", RequestID: "d"})
	msg := read(t, conn)
	assert.Equal(t, domain.ErrInvalidPayload, msg.Error)
}

func TestCloseDisconnectsUser(t *testing.T) {
	ts := newTestServer(t)
	conn := ts.dial(t, 5)

	write(t, conn, domain.ClientMessage{Type: domain.ClientFindMatch})
	read(t, conn)
	require.True(t, ts.engine.Queued(5))

	conn.Close()
	assert.Equal(t, "disconnect", ts.nextCall(t))
	assert.False(t, ts.engine.Queued(5))
	assert.False(t, ts.conns.IsConnected(5))
}

func TestReplacedConnectionKeepsSession(t *testing.T) {
	ts := newTestServer(t)
	first := ts.dial(t, 9)
	second := ts.dial(t, 9)

	// the first socket was closed by the server when the second registered
	first.SetReadDeadline(time.Now().Add(time.Second))
	_, _, err := first.ReadMessage()
	assert.Error(t, err)

	select {
	case c := <-ts.sessions.calls:
		t.Fatalf("unexpected session call %q", c)
	case <-time.After(50 * time.Millisecond):
	}

	write(t, second, domain.ClientMessage{Type: domain.ClientReady, RequestID: "x"})
	assert.Equal(t, "ready:x", ts.nextCall(t))
}

func TestSendMessageConcurrent(t *testing.T) {
	ts := newTestServer(t)
	conn := ts.dial(t, 11)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, ts.conns.SendMessage(11, domain.ServerMessage{Type: domain.MsgBoardSnapshot}))
		}()
	}
	wg.Wait()

	for i := 0; i < 20; i++ {
		assert.Equal(t, domain.MsgBoardSnapshot, read(t, conn).Type)
	}
	assert.NoError(t, ts.conns.SendMessage(999, domain.ServerMessage{Type: domain.MsgError}))
}

package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iamasit07/stones/backend/internal/domain"
	"github.com/iamasit07/stones/backend/internal/repository/postgres"
	"github.com/iamasit07/stones/backend/internal/service/game"
	"github.com/iamasit07/stones/backend/pkg/auth"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeLive []game.Info

func (f fakeLive) Live() []game.Info { return f }

type fakeGames struct {
	games  map[string]*postgres.GameResult
	byUser map[int64][]string
}

func (f *fakeGames) GetGame(_ context.Context, id string) (*postgres.GameResult, error) {
	return f.games[id], nil
}

func (f *fakeGames) GetGameBoard(_ context.Context, id string) ([][]int, error) {
	if _, ok := f.games[id]; !ok {
		return nil, nil
	}
	return [][]int{{1, 0}, {0, 2}}, nil
}

func (f *fakeGames) ListPlayerGames(_ context.Context, userID int64, _ int) ([]string, error) {
	return f.byUser[userID], nil
}

func newTestRouter(live fakeLive, games GameStore) (*gin.Engine, *auth.Validator) {
	v := auth.NewValidator("secret")
	return NewRouter(RouterConfig{
		AllowedOrigins: []string{"https://stones.example"},
		Validator:      v,
		WebSocket:      func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTeapot) },
		Sessions:       live,
		Games:          games,
		Logger:         zerolog.Nop(),
	}), v
}

func serve(router *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealthAndWebSocketRoute(t *testing.T) {
	router, _ := newTestRouter(nil, nil)

	w := serve(router, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = serve(router, httptest.NewRequest(http.MethodGet, "/ws", nil))
	assert.Equal(t, http.StatusTeapot, w.Code)
}

func TestLiveSessions(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	router, _ := newTestRouter(fakeLive{{
		ID:           "s1",
		Participants: []int64{1, 2},
		State:        game.StateTurnWaiting.String(),
		Rules:        "standard",
		TurnNumber:   4,
		CreatedAt:    created,
	}}, nil)

	w := serve(router, httptest.NewRequest(http.MethodGet, "/api/sessions/live", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var got []game.Info
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "s1", got[0].ID)
	assert.Equal(t, "TURN_WAITING", got[0].State)
	assert.Equal(t, uint64(4), got[0].TurnNumber)

	empty, _ := newTestRouter(nil, nil)
	w = serve(empty, httptest.NewRequest(http.MethodGet, "/api/sessions/live", nil))
	assert.Equal(t, "[]", w.Body.String())
}

func TestCORS(t *testing.T) {
	router, _ := newTestRouter(nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://evil.example")
	assert.Equal(t, http.StatusForbidden, serve(router, req).Code)

	req = httptest.NewRequest(http.MethodOptions, "/healthz", nil)
	req.Header.Set("Origin", "https://stones.example")
	w := serve(router, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://stones.example", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestHistoryRequiresToken(t *testing.T) {
	games := &fakeGames{
		games: map[string]*postgres.GameResult{
			"g1": {SessionID: "g1", Rules: "standard", Reason: game.ReasonCompleted, Participants: []postgres.ParticipantResult{
				{UserID: 5, Seat: 0, Outcome: domain.OutcomeWin, RatingBefore: 1000, RatingAfter: 1016},
			}},
		},
		byUser: map[int64][]string{5: {"g1"}},
	}
	router, v := newTestRouter(nil, games)

	w := serve(router, httptest.NewRequest(http.MethodGet, "/api/history", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token, err := v.GenerateAccessToken(5, "five", time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/history", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = serve(router, req)
	require.Equal(t, http.StatusOK, w.Code)
	var history []postgres.GameResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &history))
	require.Len(t, history, 1)
	assert.Equal(t, 1016, history[0].Participants[0].RatingAfter)

	req = httptest.NewRequest(http.MethodGet, "/api/history/g1", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = serve(router, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"board":[[1,0],[0,2]]`)

	req = httptest.NewRequest(http.MethodGet, "/api/history/missing", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusNotFound, serve(router, req).Code)
}

func TestHistoryNotMountedWithoutStore(t *testing.T) {
	router, _ := newTestRouter(nil, nil)
	w := serve(router, httptest.NewRequest(http.MethodGet, "/api/history", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

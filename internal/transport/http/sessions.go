package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/iamasit07/stones/backend/internal/service/game"
)

type LiveSessions interface {
	Live() []game.Info
}

type SessionHandler struct {
	sessions LiveSessions
}

func NewSessionHandler(sessions LiveSessions) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// GetLiveSessions lists every session the registry currently holds.
func (h *SessionHandler) GetLiveSessions(c *gin.Context) {
	live := h.sessions.Live()
	if live == nil {
		live = []game.Info{}
	}
	c.JSON(http.StatusOK, live)
}

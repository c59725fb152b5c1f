package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/iamasit07/stones/backend/internal/repository/postgres"
	"github.com/iamasit07/stones/backend/internal/transport/http/middleware"
)

const historyLimit = 50

type GameStore interface {
	GetGame(ctx context.Context, sessionID string) (*postgres.GameResult, error)
	GetGameBoard(ctx context.Context, sessionID string) ([][]int, error)
	ListPlayerGames(ctx context.Context, userID int64, limit int) ([]string, error)
}

type HistoryHandler struct {
	games  GameStore
	logger zerolog.Logger
}

func NewHistoryHandler(games GameStore, logger zerolog.Logger) *HistoryHandler {
	return &HistoryHandler{games: games, logger: logger}
}

type gameDetails struct {
	*postgres.GameResult
	Board [][]int `json:"board,omitempty"`
}

// GetHistory returns the caller's most recent finished games.
func (h *HistoryHandler) GetHistory(c *gin.Context) {
	userID := c.GetInt64(middleware.UserIDKey)
	ctx := c.Request.Context()

	ids, err := h.games.ListPlayerGames(ctx, userID, historyLimit)
	if err != nil {
		h.logger.Error().Err(err).Int64("user_id", userID).Msg("failed to fetch history")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch history"})
		return
	}

	history := make([]*postgres.GameResult, 0, len(ids))
	for _, id := range ids {
		g, err := h.games.GetGame(ctx, id)
		if err != nil {
			h.logger.Error().Err(err).Str("session_id", id).Msg("failed to fetch game")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch history"})
			return
		}
		if g != nil {
			history = append(history, g)
		}
	}
	c.JSON(http.StatusOK, history)
}

func (h *HistoryHandler) GetGameDetails(c *gin.Context) {
	id := c.Param("id")
	ctx := c.Request.Context()

	g, err := h.games.GetGame(ctx, id)
	if err != nil {
		h.logger.Error().Err(err).Str("session_id", id).Msg("failed to fetch game")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch game"})
		return
	}
	if g == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Game not found"})
		return
	}

	details := gameDetails{GameResult: g}
	if board, err := h.games.GetGameBoard(ctx, id); err == nil {
		details.Board = board
	} else {
		h.logger.Warn().Err(err).Str("session_id", id).Msg("board unavailable")
	}
	c.JSON(http.StatusOK, details)
}

// Package http exposes the gin router: the websocket endpoint, health and
// session listings, and game history when a database is configured.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/iamasit07/stones/backend/internal/transport/http/middleware"
	"github.com/iamasit07/stones/backend/pkg/auth"
)

type RouterConfig struct {
	AllowedOrigins []string
	Validator      *auth.Validator
	WebSocket      http.HandlerFunc
	Sessions       LiveSessions
	// Games is optional; history routes are only mounted when set.
	Games  GameStore
	Logger zerolog.Logger
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(cfg.Logger))
	router.Use(middleware.CORS(cfg.AllowedOrigins, cfg.Logger))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/ws", gin.WrapF(cfg.WebSocket))

	sessions := NewSessionHandler(cfg.Sessions)
	router.GET("/api/sessions/live", sessions.GetLiveSessions)

	if cfg.Games != nil {
		history := NewHistoryHandler(cfg.Games, cfg.Logger)
		protected := router.Group("/api")
		protected.Use(middleware.Auth(cfg.Validator))
		{
			protected.GET("/history", history.GetHistory)
			protected.GET("/history/:id", history.GetGameDetails)
		}
	}
	return router
}

func requestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		logger.Debug().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Msg("request")
	}
}

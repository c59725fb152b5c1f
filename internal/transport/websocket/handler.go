package websocket

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/iamasit07/stones/backend/internal/domain"
	"github.com/iamasit07/stones/backend/internal/service/matchmaking"
	"github.com/iamasit07/stones/backend/pkg/auth"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	initWait   = 10 * time.Second
)

type Matchmaker interface {
	Enqueue(userID int64, rating float64, sizes []int, rules string) (*matchmaking.Ticket, error)
	CancelUser(userID int64) bool
}

type Sessions interface {
	SubmitReady(userID int64, requestID string) bool
	SubmitMove(userID int64, requestID string, x, y int) bool
	SubmitPostGameDecision(userID int64, requestID string, decision string) bool
	HandleClientDisconnected(userID int64)
}

type RatingLookup interface {
	Lookup(ctx context.Context, userID int64) int
}

type RuleCatalog interface {
	Has(selection string) bool
	Canonical(selection string) string
}

// Handler manages WebSocket dependencies
type Handler struct {
	conns     *ConnectionManager
	match     Matchmaker
	sessions  Sessions
	ratings   RatingLookup
	rules     RuleCatalog
	validator *auth.Validator
	upgrader  websocket.Upgrader
	logger    zerolog.Logger
}

func NewHandler(conns *ConnectionManager, match Matchmaker, sessions Sessions, ratings RatingLookup, rules RuleCatalog, validator *auth.Validator, logger zerolog.Logger) *Handler {
	return &Handler{
		conns:     conns,
		match:     match,
		sessions:  sessions,
		ratings:   ratings,
		rules:     rules,
		validator: validator,
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: logger.With().Str("component", "ws").Logger(),
	}
}

// HandleWebSocket is the HTTP handler that upgrades the connection
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("upgrade failed")
		return
	}
	h.handleConnection(r.Context(), conn)
}

func (h *Handler) handleConnection(ctx context.Context, conn *websocket.Conn) {
	userID, ok := h.authenticate(conn)
	if !ok {
		conn.Close()
		return
	}
	log := h.logger.With().Int64("user_id", userID).Logger()
	log.Info().Msg("connection initialized")

	h.conns.AddConnection(userID, conn)

	done := make(chan struct{})
	go pinger(conn, done)

	defer func() {
		close(done)
		// a replaced socket leaves the user's queue and session state alone
		if h.conns.RemoveConnectionIfMatching(userID, conn) {
			h.match.CancelUser(userID)
			h.sessions.HandleClientDisconnected(userID)
			log.Info().Msg("connection closed")
		}
	}()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Msg("unexpected close")
			}
			return
		}

		var msg domain.ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.sendError(userID, domain.ErrInvalidPayload, "", "malformed message")
			continue
		}
		h.processMessage(ctx, userID, msg)
	}
}

// authenticate waits for the init frame and validates its token.
func (h *Handler) authenticate(conn *websocket.Conn) (int64, bool) {
	conn.SetReadDeadline(time.Now().Add(initWait))
	_, data, err := conn.ReadMessage()
	if err != nil {
		h.logger.Debug().Err(err).Msg("read failed during init")
		return 0, false
	}

	var msg domain.ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil || msg.Type != domain.ClientInit || msg.JWT == "" {
		writeDirect(conn, domain.ServerMessage{Type: domain.MsgError, Error: domain.ErrUnauthorized, Message: "init with a token required"})
		return 0, false
	}

	claims, err := h.validator.ValidateJWT(msg.JWT)
	if err != nil {
		h.logger.Debug().Err(err).Msg("invalid token during init")
		writeDirect(conn, domain.ServerMessage{Type: domain.MsgError, Error: domain.ErrUnauthorized, Message: "invalid token"})
		return 0, false
	}
	return claims.UserID, true
}

// processMessage routes specific actions
func (h *Handler) processMessage(ctx context.Context, userID int64, msg domain.ClientMessage) {
	switch msg.Type {
	case domain.ClientFindMatch:
		h.findMatch(ctx, userID, msg)

	case domain.ClientCancelSearch:
		h.match.CancelUser(userID)
		h.send(userID, domain.ServerMessage{Type: domain.MsgQueueLeft, RequestID: msg.RequestID})

	case domain.ClientReady:
		h.sessions.SubmitReady(userID, msg.RequestID)

	case domain.ClientMove:
		h.sessions.SubmitMove(userID, msg.RequestID, msg.X, msg.Y)

	case domain.ClientDecision:
		h.sessions.SubmitPostGameDecision(userID, msg.RequestID, msg.Decision)

	default:
		h.sendError(userID, domain.ErrInvalidPayload, msg.RequestID, "unknown message type")
	}
}

func (h *Handler) findMatch(ctx context.Context, userID int64, msg domain.ClientMessage) {
	if !h.rules.Has(msg.Rules) {
		h.sendError(userID, domain.ErrInvalidPayload, msg.RequestID, "unknown rules")
		return
	}
	sizes := msg.Sizes
	if len(sizes) == 0 {
		sizes = []int{2}
	}

	rating := h.ratings.Lookup(ctx, userID)
	ticket, err := h.match.Enqueue(userID, float64(rating), sizes, h.rules.Canonical(msg.Rules))
	switch {
	case errors.Is(err, matchmaking.ErrAlreadyQueued):
		h.sendError(userID, domain.ErrAlreadyQueued, msg.RequestID, "already searching")
		return
	case err != nil:
		h.sendError(userID, domain.ErrInvalidPayload, msg.RequestID, err.Error())
		return
	}

	h.send(userID, domain.ServerMessage{
		Type:      domain.MsgQueueJoined,
		RequestID: msg.RequestID,
		Rules:     ticket.Rules,
		Message:   ticket.ID,
	})
}

func (h *Handler) send(userID int64, msg domain.ServerMessage) {
	if err := h.conns.SendMessage(userID, msg); err != nil {
		h.logger.Debug().Err(err).Int64("user_id", userID).Msg("send failed")
	}
}

func (h *Handler) sendError(userID int64, kind domain.ErrorKind, requestID, text string) {
	msg := domain.ErrorResponse(kind, requestID)
	msg.Message = text
	h.send(userID, msg)
}

func pinger(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// writeDirect writes to a connection that is not registered yet.
func writeDirect(conn *websocket.Conn, msg domain.ServerMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	conn.WriteMessage(websocket.TextMessage, data)
}

// Package cleanup runs the periodic sweep that bounds how long a ticket may
// wait in the queue and how long a session may sit in its lobby.
package cleanup

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/iamasit07/stones/backend/internal/domain"
	"github.com/iamasit07/stones/backend/internal/service/game"
	"github.com/iamasit07/stones/backend/internal/service/matchmaking"
)

type TicketExpirer interface {
	Expire(now time.Time, ttl time.Duration) []*matchmaking.Ticket
}

type LobbySweeper interface {
	StaleLobbies(now time.Time, maxAge time.Duration) []string
	ForceTerminate(sessionID string, reason string) error
}

type Worker struct {
	tickets      TicketExpirer
	lobbies      LobbySweeper
	notifier     matchmaking.Notifier
	ticketTTL    time.Duration
	lobbyTimeout time.Duration
	now          func() time.Time
	logger       zerolog.Logger
}

func NewWorker(tickets TicketExpirer, lobbies LobbySweeper, notifier matchmaking.Notifier, ticketTTL, lobbyTimeout time.Duration, logger zerolog.Logger) *Worker {
	return &Worker{
		tickets:      tickets,
		lobbies:      lobbies,
		notifier:     notifier,
		ticketTTL:    ticketTTL,
		lobbyTimeout: lobbyTimeout,
		now:          time.Now,
		logger:       logger.With().Str("component", "cleanup").Logger(),
	}
}

// Run sweeps once immediately and then every interval until ctx is done.
func (w *Worker) Run(ctx context.Context, interval time.Duration) error {
	w.logger.Info().Dur("interval", interval).Msg("background worker started")
	w.Sweep(w.now())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.Sweep(w.now())
		}
	}
}

// Sweep expires stale tickets and terminates stale lobbies. It returns how
// many of each it removed.
func (w *Worker) Sweep(now time.Time) (expired, terminated int) {
	for _, t := range w.tickets.Expire(now, w.ticketTTL) {
		expired++
		msg := domain.ServerMessage{Type: domain.MsgQueueTimeout, Message: "no match found in time"}
		if err := w.notifier.SendMessage(t.UserID, msg); err != nil {
			w.logger.Debug().Err(err).Int64("user_id", t.UserID).Msg("queue timeout not delivered")
		}
	}

	for _, id := range w.lobbies.StaleLobbies(now, w.lobbyTimeout) {
		if err := w.lobbies.ForceTerminate(id, game.ReasonLobbyTimeout); err != nil {
			w.logger.Warn().Err(err).Str("session_id", id).Msg("failed to terminate stale lobby")
			continue
		}
		terminated++
	}

	if expired > 0 || terminated > 0 {
		w.logger.Info().Int("tickets", expired).Int("lobbies", terminated).Msg("cleanup finished")
	}
	return expired, terminated
}

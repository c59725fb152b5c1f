package matchmaking

import (
	"context"

	"github.com/rs/zerolog"
)

// SessionCreator turns a formed group into a running session.
type SessionCreator interface {
	CreateFromGroup(g *Group) (string, error)
}

// Listener hands every group published by the engine to the session
// registry until ctx is cancelled or the channel is closed.
func Listener(ctx context.Context, groups <-chan *Group, creator SessionCreator, logger zerolog.Logger) {
	logger = logger.With().Str("component", "matchmaking").Logger()

	for {
		select {
		case <-ctx.Done():
			return
		case g, ok := <-groups:
			if !ok {
				return
			}

			sessionID, err := creator.CreateFromGroup(g)
			if err != nil {
				logger.Error().Err(err).Ints64("users", g.UserIDs()).Msg("failed to create session for group")
				continue
			}

			logger.Info().
				Str("session_id", sessionID).
				Ints64("users", g.UserIDs()).
				Float64("score", g.Score).
				Msg("match started")
		}
	}
}

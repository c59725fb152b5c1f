package game

import "github.com/rs/zerolog"

func transitionLogger(logger zerolog.Logger) Observer {
	return func(t Transition) {
		logger.Debug().
			Str("session_id", t.SessionID).
			Stringer("from", t.From).
			Stringer("to", t.To).
			Stringer("cause", t.Cause).
			Msg("transition")
	}
}

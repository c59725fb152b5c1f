package rating

import (
	"context"

	"github.com/iamasit07/stones/backend/internal/service/game"
)

type invalidatingRecorder struct {
	next game.GameRecorder
	svc  *Service
}

// Recorder wraps next so cached ratings of the participants are dropped once
// a finished game has been saved.
func (s *Service) Recorder(next game.GameRecorder) game.GameRecorder {
	return invalidatingRecorder{next: next, svc: s}
}

func (r invalidatingRecorder) SaveGame(ctx context.Context, rec game.GameRecord) error {
	err := r.next.SaveGame(ctx, rec)
	r.svc.Invalidate(ctx, rec.Participants...)
	return err
}

package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rotisserie/eris"
)

type PlayerRepo struct {
	DB *sql.DB
}

func NewPlayerRepo(db *sql.DB) *PlayerRepo {
	return &PlayerRepo{DB: db}
}

type PlayerStats struct {
	UserID      int64 `json:"userId"`
	Rating      int   `json:"rating"`
	GamesPlayed int   `json:"gamesPlayed"`
	GamesWon    int   `json:"gamesWon"`
	GamesDrawn  int   `json:"gamesDrawn"`
}

// GetRating returns the stored rating of a player. ok is false when the
// player has never finished a game.
func (r *PlayerRepo) GetRating(ctx context.Context, userID int64) (rating int, ok bool, err error) {
	err = r.DB.QueryRowContext(ctx, `SELECT rating FROM players WHERE id = $1;`, userID).Scan(&rating)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, eris.Wrapf(err, "failed to get rating of player %d", userID)
	}
	return rating, true, nil
}

func (r *PlayerRepo) GetStats(ctx context.Context, userID int64) (*PlayerStats, error) {
	query := `SELECT id, rating, games_played, games_won, games_drawn FROM players WHERE id = $1;`
	var s PlayerStats
	err := r.DB.QueryRowContext(ctx, query, userID).Scan(&s.UserID, &s.Rating, &s.GamesPlayed, &s.GamesWon, &s.GamesDrawn)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "failed to get stats of player %d", userID)
	}
	return &s, nil
}

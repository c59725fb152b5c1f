package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/goccy/go-json"
	"github.com/lib/pq"
	"github.com/rotisserie/eris"

	"github.com/iamasit07/stones/backend/internal/domain"
	"github.com/iamasit07/stones/backend/internal/service/game"
)

type GameRepo struct {
	DB            *sql.DB
	DefaultRating int
}

func NewGameRepo(db *sql.DB, defaultRating int) *GameRepo {
	return &GameRepo{DB: db, DefaultRating: defaultRating}
}

// GameResult is a finished game as read back for history views.
type GameResult struct {
	SessionID    string              `json:"sessionId"`
	Rules        string              `json:"rules"`
	Reason       string              `json:"reason"`
	TotalMoves   int                 `json:"totalMoves"`
	StartedAt    *time.Time          `json:"startedAt,omitempty"`
	FinishedAt   time.Time           `json:"finishedAt"`
	Participants []ParticipantResult `json:"participants"`
}

type ParticipantResult struct {
	UserID       int64          `json:"userId"`
	Seat         int            `json:"seat"`
	Outcome      domain.Outcome `json:"outcome"`
	RatingBefore int            `json:"ratingBefore"`
	RatingAfter  int            `json:"ratingAfter"`
}

// SaveGame stores a finished game and applies the Elo update to every
// participant in one transaction. Saving the same session twice is a no-op.
func (r *GameRepo) SaveGame(ctx context.Context, rec game.GameRecord) error {
	boardJSON, err := json.Marshal(rec.Board)
	if err != nil {
		return eris.Wrap(err, "failed to marshal board state")
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	var startedAt *time.Time
	if !rec.StartedAt.IsZero() {
		startedAt = &rec.StartedAt
	}
	res, err := tx.ExecContext(ctx, `
	INSERT INTO games (session_id, rules, reason, total_moves, started_at, finished_at, board_state)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (session_id) DO NOTHING;
	`, rec.SessionID, rec.Rules, rec.Reason, rec.MoveCount, startedAt, rec.FinishedAt, boardJSON)
	if err != nil {
		return eris.Wrap(err, "failed to insert game record")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil
	}

	before, err := r.lockRatingsTx(ctx, tx, rec.Participants)
	if err != nil {
		return err
	}

	for _, row := range settle(rec, before) {
		if _, err := tx.ExecContext(ctx, `
		UPDATE players
		SET rating = $2,
		    games_played = games_played + 1,
		    games_won = games_won + CASE WHEN $3 THEN 1 ELSE 0 END,
		    games_drawn = games_drawn + CASE WHEN $4 THEN 1 ELSE 0 END,
		    updated_at = NOW()
		WHERE id = $1;
		`, row.UserID, row.RatingAfter, row.Outcome == domain.OutcomeWin, row.Outcome == domain.OutcomeDraw); err != nil {
			return eris.Wrapf(err, "failed to update player %d", row.UserID)
		}
		if _, err := tx.ExecContext(ctx, `
		INSERT INTO game_participants (session_id, user_id, seat, outcome, rating_before, rating_after)
		VALUES ($1, $2, $3, $4, $5, $6);
		`, rec.SessionID, row.UserID, row.Seat, string(row.Outcome), row.RatingBefore, row.RatingAfter); err != nil {
			return eris.Wrapf(err, "failed to insert participant %d", row.UserID)
		}
	}

	if err := tx.Commit(); err != nil {
		return eris.Wrap(err, "failed to commit transaction")
	}
	return nil
}

// lockRatingsTx creates missing player rows and returns current ratings with
// the rows locked for the rest of the transaction.
func (r *GameRepo) lockRatingsTx(ctx context.Context, tx *sql.Tx, userIDs []int64) (map[int64]int, error) {
	for _, id := range userIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO players (id, rating) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING;`,
			id, r.DefaultRating); err != nil {
			return nil, eris.Wrapf(err, "failed to ensure player %d", id)
		}
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT id, rating FROM players WHERE id = ANY($1) ORDER BY id FOR UPDATE;`,
		pq.Array(userIDs))
	if err != nil {
		return nil, eris.Wrap(err, "failed to lock player ratings")
	}
	defer rows.Close()

	ratings := make(map[int64]int, len(userIDs))
	for rows.Next() {
		var id int64
		var rating int
		if err := rows.Scan(&id, &rating); err != nil {
			return nil, eris.Wrap(err, "failed to scan player rating")
		}
		ratings[id] = rating
	}
	return ratings, eris.Wrap(rows.Err(), "failed to read player ratings")
}

// settle computes the per-participant rows written for a finished game.
func settle(rec game.GameRecord, before map[int64]int) []ParticipantResult {
	after := domain.ApplyElo(before, rec.Outcomes)
	rows := make([]ParticipantResult, 0, len(rec.Participants))
	for seat, id := range rec.Participants {
		outcome, ok := rec.Outcomes[id]
		if !ok {
			outcome = domain.OutcomePending
		}
		rows = append(rows, ParticipantResult{
			UserID:       id,
			Seat:         seat,
			Outcome:      outcome,
			RatingBefore: before[id],
			RatingAfter:  after[id],
		})
	}
	return rows
}

// GetGame returns a finished game, or nil when the session was never saved.
func (r *GameRepo) GetGame(ctx context.Context, sessionID string) (*GameResult, error) {
	var result GameResult
	var startedAt sql.NullTime
	err := r.DB.QueryRowContext(ctx, `
	SELECT session_id, rules, reason, total_moves, started_at, finished_at
	FROM games
	WHERE session_id = $1;
	`, sessionID).Scan(&result.SessionID, &result.Rules, &result.Reason, &result.TotalMoves, &startedAt, &result.FinishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "failed to get game %s", sessionID)
	}
	if startedAt.Valid {
		result.StartedAt = &startedAt.Time
	}

	rows, err := r.DB.QueryContext(ctx, `
	SELECT user_id, seat, outcome, rating_before, rating_after
	FROM game_participants
	WHERE session_id = $1
	ORDER BY seat;
	`, sessionID)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to query participants of %s", sessionID)
	}
	defer rows.Close()

	for rows.Next() {
		var p ParticipantResult
		var outcome string
		if err := rows.Scan(&p.UserID, &p.Seat, &outcome, &p.RatingBefore, &p.RatingAfter); err != nil {
			return nil, eris.Wrap(err, "failed to scan participant row")
		}
		p.Outcome = domain.Outcome(outcome)
		result.Participants = append(result.Participants, p)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "failed to read participant rows")
	}
	return &result, nil
}

// ListPlayerGames returns the ids of the most recent games a player finished.
func (r *GameRepo) ListPlayerGames(ctx context.Context, userID int64, limit int) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, `
	SELECT g.session_id
	FROM games g
	JOIN game_participants p ON p.session_id = g.session_id
	WHERE p.user_id = $1
	ORDER BY g.finished_at DESC
	LIMIT $2;
	`, userID, limit)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to query game history of %d", userID)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "failed to scan game row")
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrap(rows.Err(), "failed to read game rows")
}

// GetGameBoard returns the final board of a game, or nil when unknown.
func (r *GameRepo) GetGameBoard(ctx context.Context, sessionID string) ([][]int, error) {
	var boardJSON []byte
	err := r.DB.QueryRowContext(ctx, `SELECT board_state FROM games WHERE session_id = $1;`, sessionID).Scan(&boardJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "failed to get board of %s", sessionID)
	}
	if boardJSON == nil {
		return nil, nil
	}

	var board [][]int
	if err := json.Unmarshal(boardJSON, &board); err != nil {
		return nil, eris.Wrap(err, "failed to unmarshal board state")
	}
	return board, nil
}

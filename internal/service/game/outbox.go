package game

import (
	"time"

	"github.com/iamasit07/stones/backend/internal/domain"
)

// Envelope is one message addressed to one user.
type Envelope struct {
	UserID  int64
	Message domain.ServerMessage
}

// GameRecord is the persisted summary of a finished game.
type GameRecord struct {
	SessionID    string
	Participants []int64
	Outcomes     map[int64]domain.Outcome
	Rules        string
	Reason       string
	MoveCount    int
	StartedAt    time.Time
	FinishedAt   time.Time
	Board        [][]int
}

// RematchPlan describes the session that replaces a finished one.
type RematchPlan struct {
	SessionID    string
	PreviousID   string
	Participants []int64
	Rules        string
}

// Outbox collects everything one advancement produced. The registry delivers
// it after the session lock is released.
type Outbox struct {
	Messages []Envelope
	Record   *GameRecord
	Rematch  *RematchPlan
	Unbind   []int64
	Remove   bool
}

func (o *Outbox) Send(userID int64, msg domain.ServerMessage) {
	o.Messages = append(o.Messages, Envelope{UserID: userID, Message: msg})
}

func (o *Outbox) Error(userID int64, kind domain.ErrorKind, requestID string) {
	o.Send(userID, domain.ErrorResponse(kind, requestID))
}

func (o *Outbox) empty() bool {
	return len(o.Messages) == 0 && o.Record == nil && o.Rematch == nil && len(o.Unbind) == 0 && !o.Remove
}

package domain

import "strings"

// Stone identifies which participant owns a cell. Participants are assigned
// stones 1..N in seat order; Empty marks a free cell.
type Stone int

const (
	Empty Stone = 0
)

// StoneForSeat returns the stone of the participant at the given seat index.
func StoneForSeat(seat int) Stone {
	return Stone(seat + 1)
}

const (
	DefaultWidth     = 15
	DefaultHeight    = 15
	DefaultWinLength = 5
)

// to represent a participant's result
type Outcome string

const (
	OutcomePending Outcome = "pending"
	OutcomeWin     Outcome = "win"
	OutcomeLoss    Outcome = "loss"
	OutcomeDraw    Outcome = "draw"
)

// Decision is a participant's choice once a game has completed.
type Decision string

const (
	DecisionNone    Decision = ""
	DecisionRematch Decision = "rematch"
	DecisionLeave   Decision = "leave"
)

func ParseDecision(s string) (Decision, bool) {
	switch Decision(strings.ToLower(strings.TrimSpace(s))) {
	case DecisionRematch:
		return DecisionRematch, true
	case DecisionLeave:
		return DecisionLeave, true
	}
	return DecisionNone, false
}

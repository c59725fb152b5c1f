package game

import "time"

type State int

const (
	StateLobby State = iota
	StateTurnWaiting
	StateMoveValidating
	StateMoveApplying
	StateOutcomeEvaluating
	StateTurnFinalizing
	StatePostGameDecisionWaiting
	StatePostGameDecisionResolving
	StateRematchPreparing
	StateTerminating
	StateCompleted
)

var stateNames = map[State]string{
	StateLobby:                     "LOBBY",
	StateTurnWaiting:               "TURN_WAITING",
	StateMoveValidating:            "MOVE_VALIDATING",
	StateMoveApplying:              "MOVE_APPLYING",
	StateOutcomeEvaluating:         "OUTCOME_EVALUATING",
	StateTurnFinalizing:            "TURN_FINALIZING",
	StatePostGameDecisionWaiting:   "POST_GAME_DECISION_WAITING",
	StatePostGameDecisionResolving: "POST_GAME_DECISION_RESOLVING",
	StateRematchPreparing:          "SESSION_REMATCH_PREPARING",
	StateTerminating:               "SESSION_TERMINATING",
	StateCompleted:                 "COMPLETED",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "UNKNOWN"
}

// InPlay reports whether the game has started and not yet produced an outcome.
func (s State) InPlay() bool {
	return s >= StateTurnWaiting && s <= StateTurnFinalizing
}

type EventKind int

const (
	EventReady EventKind = iota
	EventMove
	EventTurnTimeout
	EventDecision
	EventDecisionTimeout
	EventDisconnect
	EventForceTerminate
	// eventStep marks transitions taken by automatic states
	eventStep
)

var eventNames = map[EventKind]string{
	EventReady:           "ready",
	EventMove:            "move",
	EventTurnTimeout:     "turn_timeout",
	EventDecision:        "decision",
	EventDecisionTimeout: "decision_timeout",
	EventDisconnect:      "disconnect",
	EventForceTerminate:  "force_terminate",
	eventStep:            "step",
}

func (k EventKind) String() string {
	if name, ok := eventNames[k]; ok {
		return name
	}
	return "unknown"
}

// Event is a unit of work submitted to a session's queue.
type Event struct {
	Kind      EventKind
	UserID    int64
	RequestID string
	X, Y      int
	Decision  string
	// Counter is the turn or decision number a timeout was scheduled for.
	Counter uint64
	Reason  string
}

// Transition is handed to observers every time a session changes state.
type Transition struct {
	SessionID string
	From      State
	To        State
	Cause     EventKind
	At        time.Time
}

// Observer is invoked synchronously, under the session lock, on every
// transition. Observers must not call back into the session.
type Observer func(Transition)

package game

import (
	"github.com/iamasit07/stones/backend/internal/domain"
)

// Trigger identifies the lifecycle point a rule hook is invoked at.
type Trigger int

const (
	TriggerGameStart Trigger = iota
	TriggerTurnStart
	TriggerMoveValidation
	TriggerPrePlacement
	TriggerPostPlacement
	TriggerOutcomeEvaluation
	TriggerTurnAdvance
	TriggerRoundCompleted
)

var triggerNames = map[Trigger]string{
	TriggerGameStart:         "game_start",
	TriggerTurnStart:         "turn_start",
	TriggerMoveValidation:    "move_validation",
	TriggerPrePlacement:      "pre_placement",
	TriggerPostPlacement:     "post_placement",
	TriggerOutcomeEvaluation: "outcome_evaluation",
	TriggerTurnAdvance:       "turn_advance",
	TriggerRoundCompleted:    "round_completed",
}

func (t Trigger) String() string {
	if name, ok := triggerNames[t]; ok {
		return name
	}
	return "unknown"
}

// HookContext is a read-only view of the session handed to a rule hook.
// Board is a copy; mutating it has no effect.
type HookContext struct {
	Trigger      Trigger
	SessionID    string
	Participants []int64
	Turn         TurnSnapshot
	Board        *domain.Board
	MoveCount    int
	Actor        int64
	X, Y         int
	Stone        domain.Stone
	Outcomes     map[int64]domain.Outcome
}

// Move is a placement target.
type Move struct {
	X, Y int
}

// HookResult carries the overrides a hook asks for. Zero values mean no
// change.
type HookResult struct {
	// TurnOrder replaces the play order. Ignored unless it is a permutation
	// of the participants.
	TurnOrder []int64
	// Move redirects the pending placement.
	Move *Move
	// Reject fails move validation with the given kind.
	Reject domain.ErrorKind
	// Outcomes replaces the evaluated outcome of the listed users.
	Outcomes map[int64]domain.Outcome
	// Transform rewrites the board and triggers a board snapshot broadcast.
	Transform domain.Transform
}

// RuleHook is a pluggable gameplay rule.
type RuleHook interface {
	Name() string
	Apply(ctx HookContext) HookResult
}

// HookResolver maps a rule selection name to its ordered hooks.
type HookResolver interface {
	Resolve(selection string) ([]RuleHook, error)
}

// runHooks calls every hook in order and merges their results. Later hooks
// override earlier ones, except Reject where the first rejection wins and
// stops the chain.
func runHooks(hooks []RuleHook, ctx HookContext) HookResult {
	var merged HookResult
	for _, h := range hooks {
		res := h.Apply(ctx)
		if res.Reject != domain.ErrNone {
			merged.Reject = res.Reject
			return merged
		}
		if res.TurnOrder != nil {
			merged.TurnOrder = res.TurnOrder
			ctx.Turn.Order = res.TurnOrder
		}
		if res.Move != nil {
			merged.Move = res.Move
			ctx.X, ctx.Y = res.Move.X, res.Move.Y
		}
		if res.Outcomes != nil {
			if merged.Outcomes == nil {
				merged.Outcomes = make(map[int64]domain.Outcome, len(res.Outcomes))
			}
			for id, o := range res.Outcomes {
				merged.Outcomes[id] = o
			}
		}
		if res.Transform != domain.TransformNone {
			merged.Transform = res.Transform
		}
	}
	return merged
}

package rules

import (
	"slices"

	"github.com/iamasit07/stones/backend/internal/domain"
	"github.com/iamasit07/stones/backend/internal/service/game"
)

// OpeningZone forces the first stone of a game into a square around the
// board centre.
type OpeningZone struct {
	Radius int
}

func (OpeningZone) Name() string { return "opening" }

func (h OpeningZone) Apply(ctx game.HookContext) game.HookResult {
	if ctx.Trigger != game.TriggerMoveValidation || ctx.MoveCount > 0 || ctx.Board == nil {
		return game.HookResult{}
	}
	cx, cy := (ctx.Board.Width-1)/2, (ctx.Board.Height-1)/2
	if abs(ctx.X-cx) > h.Radius || abs(ctx.Y-cy) > h.Radius {
		return game.HookResult{Reject: domain.ErrRestrictedZone}
	}
	return game.HookResult{}
}

// SwapOrder reverses the play order every time a round completes, so the
// last player of a round opens the next one.
type SwapOrder struct{}

func (SwapOrder) Name() string { return "swap" }

func (SwapOrder) Apply(ctx game.HookContext) game.HookResult {
	if ctx.Trigger != game.TriggerRoundCompleted {
		return game.HookResult{}
	}
	order := slices.Clone(ctx.Turn.Order)
	slices.Reverse(order)
	return game.HookResult{TurnOrder: order}
}

// Spin rotates the board a quarter turn after every Every placements.
type Spin struct {
	Every int
}

func (Spin) Name() string { return "spin" }

func (h Spin) Apply(ctx game.HookContext) game.HookResult {
	if ctx.Trigger != game.TriggerPostPlacement || h.Every <= 0 {
		return game.HookResult{}
	}
	if ctx.MoveCount > 0 && ctx.MoveCount%h.Every == 0 {
		return game.HookResult{Transform: domain.TransformRotate}
	}
	return game.HookResult{}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

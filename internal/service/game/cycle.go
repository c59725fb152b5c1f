package game

import (
	"errors"
	"time"

	"github.com/iamasit07/stones/backend/internal/domain"
)

type cycleKind int

const (
	cycleMove cycleKind = iota
	cycleSkip
	cycleDisconnect
)

// turnCycle lives for one validate, apply, evaluate, finalize pass.
type turnCycle struct {
	kind      cycleKind
	actor     int64
	requestID string
	x, y      int
	stone     domain.Stone
	before    TurnSnapshot
	// transformed is set once a hook rewrote the board during this pass
	transformed bool
}

func (s *Session) onMove(ev Event, now time.Time, out *Outbox) {
	s.cycle = &turnCycle{
		kind:      cycleMove,
		actor:     ev.UserID,
		requestID: ev.RequestID,
		x:         ev.X,
		y:         ev.Y,
		before:    s.turn,
	}
	s.transition(StateMoveValidating, ev.Kind, now)
}

// onTurnTimeout honors a turn timeout only while it still guards the current
// turn. Stale firings leave the session untouched.
func (s *Session) onTurnTimeout(ev Event, now time.Time, out *Outbox) {
	if ev.Counter != s.turn.Number || !s.timers.turn.Validate(s.ID, ev.Counter) {
		return
	}
	s.timers.turn.ClearIfMatches(s.ID, ev.Counter)

	actor, _ := s.turn.Current()
	s.cycle = &turnCycle{kind: cycleSkip, actor: actor, before: s.turn}
	s.transition(StateOutcomeEvaluating, ev.Kind, now)
}

func (s *Session) onPlayDisconnect(ev Event, now time.Time, out *Outbox) {
	if !s.IsParticipant(ev.UserID) || s.disconnected[ev.UserID] {
		return
	}
	s.disconnected[ev.UserID] = true
	out.Unbind = append(out.Unbind, ev.UserID)

	s.cycle = &turnCycle{kind: cycleDisconnect, actor: ev.UserID, before: s.turn}
	s.transition(StateOutcomeEvaluating, ev.Kind, now)
}

// validateMove checks a placement request against the current session state
// without changing it.
func (s *Session) validateMove(userID int64, x, y int) domain.ErrorKind {
	if !s.IsParticipant(userID) {
		return domain.ErrInvalidPlayer
	}
	if s.state == StateLobby {
		return domain.ErrGameNotStarted
	}
	if !s.state.InPlay() || s.resolved() {
		return domain.ErrGameFinished
	}
	if cur, ok := s.turn.Current(); !ok || cur != userID {
		return domain.ErrOutOfTurn
	}
	if !s.board.InBounds(x, y) {
		return domain.ErrOutOfBounds
	}
	if s.board.IsOccupied(x, y) {
		return domain.ErrCellOccupied
	}

	ctx := s.hookContext(TriggerMoveValidation)
	ctx.Actor, ctx.X, ctx.Y = userID, x, y
	ctx.Stone = domain.StoneForSeat(s.seats[userID])
	if res := s.runHooks(ctx); res.Reject != domain.ErrNone {
		return res.Reject
	}
	return domain.ErrNone
}

// abandonMove drops the pending move and returns to waiting on the same turn.
func (s *Session) abandonMove(kind domain.ErrorKind, now time.Time, out *Outbox) {
	c := s.cycle
	s.cycle = nil
	out.Error(c.actor, kind, c.requestID)
	s.transition(StateTurnWaiting, eventStep, now)
}

func (s *Session) stepValidate(now time.Time, out *Outbox) {
	c := s.cycle
	if kind := s.validateMove(c.actor, c.x, c.y); kind != domain.ErrNone {
		s.abandonMove(kind, now, out)
		return
	}
	c.stone = domain.StoneForSeat(s.seats[c.actor])
	s.transition(StateMoveApplying, eventStep, now)
}

func (s *Session) stepApply(now time.Time, out *Outbox) {
	c := s.cycle

	ctx := s.hookContext(TriggerPrePlacement)
	ctx.Actor, ctx.X, ctx.Y, ctx.Stone = c.actor, c.x, c.y, c.stone
	if res := s.runHooks(ctx); res.Move != nil {
		c.x, c.y = res.Move.X, res.Move.Y
	}

	if err := s.board.Place(c.x, c.y, c.stone); err != nil {
		kind := domain.ErrInvalidPayload
		errors.As(err, &kind)
		s.abandonMove(kind, now, out)
		return
	}
	s.moveCount++

	x, y := c.x, c.y
	s.reply(out, c.actor, domain.ServerMessage{
		Type:       domain.MsgMoveAck,
		RequestID:  c.requestID,
		UserID:     c.actor,
		X:          &x,
		Y:          &y,
		Stone:      c.stone,
		TurnNumber: c.before.Number,
	})

	ctx = s.hookContext(TriggerPostPlacement)
	ctx.Actor, ctx.X, ctx.Y, ctx.Stone = c.actor, c.x, c.y, c.stone
	if res := s.runHooks(ctx); res.Transform != domain.TransformNone {
		c.transformed = s.board.Apply(res.Transform)
	}

	s.transition(StateOutcomeEvaluating, eventStep, now)
}

func (s *Session) stepEvaluate(now time.Time, out *Outbox) {
	c := s.cycle

	switch c.kind {
	case cycleMove:
		s.evaluatePlacement(c)
	case cycleDisconnect:
		s.evaluateForfeit()
	}

	ctx := s.hookContext(TriggerOutcomeEvaluation)
	ctx.Actor, ctx.X, ctx.Y, ctx.Stone = c.actor, c.x, c.y, c.stone
	if res := s.runHooks(ctx); res.Outcomes != nil {
		for id, o := range res.Outcomes {
			if s.IsParticipant(id) {
				s.outcomes[id] = o
			}
		}
	}
	if s.reason == "" && s.resolved() {
		s.reason = ReasonCompleted
	}

	s.transition(StateTurnFinalizing, eventStep, now)
}

// evaluatePlacement resolves a win or a full-board draw after a placement.
func (s *Session) evaluatePlacement(c *turnCycle) {
	winner := domain.Empty
	if c.transformed {
		if stone, ok := domain.FindWinner(s.board, s.settings.WinLength); ok {
			winner = stone
		}
	} else if domain.CheckWin(s.board, c.x, c.y, c.stone, s.settings.WinLength) {
		winner = c.stone
	}

	switch {
	case winner != domain.Empty:
		for _, id := range s.participants {
			if domain.StoneForSeat(s.seats[id]) == winner {
				s.outcomes[id] = domain.OutcomeWin
			} else {
				s.outcomes[id] = domain.OutcomeLoss
			}
		}
		s.reason = ReasonCompleted
	case s.board.IsFull():
		for _, id := range s.participants {
			s.outcomes[id] = domain.OutcomeDraw
		}
		s.reason = ReasonCompleted
	}
}

// evaluateForfeit ends the game once fewer than two participants remain
// connected. The last one standing wins; if nobody is left it is a draw.
func (s *Session) evaluateForfeit() {
	remaining := s.connected()
	if len(remaining) >= 2 {
		return
	}
	for _, id := range s.participants {
		switch {
		case len(remaining) == 0:
			s.outcomes[id] = domain.OutcomeDraw
		case id == remaining[0]:
			s.outcomes[id] = domain.OutcomeWin
		default:
			s.outcomes[id] = domain.OutcomeLoss
		}
	}
	s.reason = ReasonForfeit
}

func (s *Session) stepFinalize(now time.Time, out *Outbox) {
	c := s.cycle
	s.cycle = nil

	if s.resolved() {
		s.timers.turn.Cancel(s.ID)
		s.announceCycle(c, out)
		s.finish(now, out)
		return
	}

	// a disconnect by someone other than the current player keeps the turn
	if c.kind == cycleDisconnect {
		if cur, ok := s.turn.Current(); ok && cur != c.actor {
			s.announceCycle(c, out)
			s.transition(StateTurnWaiting, eventStep, now)
			return
		}
	}

	s.beginTurn(s.nextTurn(now), now, out)
	s.announceCycle(c, out)
	s.transition(StateTurnWaiting, eventStep, now)
}

// nextTurn computes the snapshot following the current one, consulting the
// turn-advance and round-completed hooks for order changes.
func (s *Session) nextTurn(now time.Time) TurnSnapshot {
	prev := s.turn
	order := prev.order()

	if res := s.runHooks(s.hookContext(TriggerTurnAdvance)); res.TurnOrder != nil {
		if o, ok := s.applyOrder(res.TurnOrder); ok {
			order = o
		}
	}

	from := prev.Index
	if from >= 0 && from < len(prev.Order) {
		// keep position relative to the acting user in a reordered list
		actor := prev.Order[from]
		for i, id := range order {
			if id == actor {
				from = i
				break
			}
		}
	}

	next := TurnSnapshot{
		Order:    order,
		Number:   prev.Number + 1,
		Round:    prev.Round,
		Position: prev.Position + 1,
		Start:    now,
		Deadline: now.Add(s.settings.TurnTimeout),
	}
	next.Index = nextConnected(order, from, s.disconnected)

	if next.Index >= 0 && wraps(from, next.Index) {
		next.Round++
		next.Position = 1

		ctx := s.hookContext(TriggerRoundCompleted)
		ctx.Turn = next
		if res := s.runHooks(ctx); res.TurnOrder != nil {
			if o, ok := s.applyOrder(res.TurnOrder); ok {
				next.Order = o
				next.Index = nextConnected(o, -1, s.disconnected)
			}
		}
	}
	return next
}

// announceCycle broadcasts what the finished pass did.
func (s *Session) announceCycle(c *turnCycle, out *Outbox) {
	msg := domain.ServerMessage{TurnNumber: s.turn.Number, Round: s.turn.Round}
	if !s.resolved() {
		if cur, ok := s.turn.Current(); ok {
			msg.CurrentPlayer = cur
			deadline := s.turn.Deadline
			msg.Deadline = &deadline
		}
	}

	switch c.kind {
	case cycleMove:
		x, y := c.x, c.y
		msg.Type = domain.MsgMoveMade
		msg.UserID = c.actor
		msg.X, msg.Y = &x, &y
		msg.Stone = c.stone
	case cycleSkip:
		msg.Type = domain.MsgTurnTimeout
		msg.UserID = c.actor
	case cycleDisconnect:
		msg.Type = domain.MsgPlayerDisconnected
		msg.UserID = c.actor
	}
	s.broadcast(out, msg)

	if c.transformed {
		s.broadcast(out, domain.ServerMessage{
			Type:       domain.MsgBoardSnapshot,
			Board:      s.board.Rows(),
			TurnNumber: s.turn.Number,
		})
	}
}

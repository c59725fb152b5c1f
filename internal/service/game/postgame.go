package game

import (
	"slices"
	"time"

	"github.com/samber/lo"

	"github.com/iamasit07/stones/backend/internal/domain"
	"github.com/iamasit07/stones/backend/pkg/uid"
)

// finish announces the result, hands the record to the registry and opens
// the post-game decision window.
func (s *Session) finish(now time.Time, out *Outbox) {
	s.finishedAt = now

	s.broadcast(out, domain.ServerMessage{
		Type:       domain.MsgGameCompleted,
		Outcomes:   s.outcomeCopy(),
		Board:      s.board.Rows(),
		TurnNumber: s.turn.Number,
		Reason:     s.reason,
	})

	out.Record = &GameRecord{
		SessionID:    s.ID,
		Participants: s.Participants(),
		Outcomes:     s.outcomeCopy(),
		Rules:        s.rules,
		Reason:       s.reason,
		MoveCount:    s.moveCount,
		StartedAt:    s.startedAt,
		FinishedAt:   now,
		Board:        s.board.Rows(),
	}

	s.decisionNumber++
	s.decisionDeadline = now.Add(s.settings.DecisionWindow)
	s.timers.decision.Schedule(s.ID, s.decisionDeadline, s.decisionNumber, s.timers.onDecision)
	s.transition(StatePostGameDecisionWaiting, eventStep, now)

	deadline := s.decisionDeadline
	s.broadcast(out, domain.ServerMessage{
		Type:         domain.MsgPostGamePrompt,
		Participants: s.Participants(),
		Deadline:     &deadline,
	})

	// participants already gone cannot answer
	for _, id := range s.participants {
		if s.disconnected[id] {
			s.decisions[id] = domain.DecisionLeave
		}
	}
	if len(s.decisions) > 0 {
		s.broadcastDecisions(out)
	}
	s.resolveIfDecided(now)
}

func (s *Session) onDecision(ev Event, now time.Time, out *Outbox) {
	if !s.IsParticipant(ev.UserID) {
		out.Error(ev.UserID, domain.ErrInvalidPlayer, ev.RequestID)
		return
	}
	decision, ok := domain.ParseDecision(ev.Decision)
	if !ok {
		out.Error(ev.UserID, domain.ErrInvalidPayload, ev.RequestID)
		return
	}
	if now.After(s.decisionDeadline) {
		out.Error(ev.UserID, domain.ErrTimeWindowClosed, ev.RequestID)
		return
	}
	if _, decided := s.decisions[ev.UserID]; decided {
		out.Error(ev.UserID, domain.ErrAlreadyDecided, ev.RequestID)
		return
	}

	s.decisions[ev.UserID] = decision
	s.reply(out, ev.UserID, domain.ServerMessage{
		Type:      domain.MsgDecisionAck,
		RequestID: ev.RequestID,
		UserID:    ev.UserID,
		Reason:    string(decision),
	})
	s.broadcastDecisions(out)
	s.resolveIfDecided(now)
}

// onDecisionTimeout closes the window, recording leave for everyone who has
// not answered. Stale firings are ignored.
func (s *Session) onDecisionTimeout(ev Event, now time.Time, out *Outbox) {
	if ev.Counter != s.decisionNumber || !s.timers.decision.Validate(s.ID, ev.Counter) {
		return
	}
	s.timers.decision.ClearIfMatches(s.ID, ev.Counter)

	for _, id := range s.participants {
		if _, decided := s.decisions[id]; !decided {
			s.decisions[id] = domain.DecisionLeave
		}
	}
	s.broadcastDecisions(out)
	s.transition(StatePostGameDecisionResolving, ev.Kind, now)
}

// onDecisionDisconnect counts a disconnection as an implicit leave.
func (s *Session) onDecisionDisconnect(ev Event, now time.Time, out *Outbox) {
	if !s.IsParticipant(ev.UserID) || s.disconnected[ev.UserID] {
		return
	}
	s.disconnected[ev.UserID] = true
	out.Unbind = append(out.Unbind, ev.UserID)
	s.broadcast(out, domain.ServerMessage{Type: domain.MsgPlayerDisconnected, UserID: ev.UserID})

	if _, decided := s.decisions[ev.UserID]; !decided {
		s.decisions[ev.UserID] = domain.DecisionLeave
		s.broadcastDecisions(out)
	}
	s.resolveIfDecided(now)
}

func (s *Session) broadcastDecisions(out *Outbox) {
	deadline := s.decisionDeadline
	s.broadcast(out, domain.ServerMessage{
		Type:      domain.MsgPostGameUpdate,
		Decisions: s.decisionCopy(),
		Deadline:  &deadline,
	})
}

func (s *Session) resolveIfDecided(now time.Time) {
	if len(s.decisions) < len(s.participants) {
		return
	}
	s.timers.decision.ClearIfMatches(s.ID, s.decisionNumber)
	s.transition(StatePostGameDecisionResolving, eventStep, now)
}

func (s *Session) stepResolve(now time.Time, out *Outbox) {
	s.timers.decision.Cancel(s.ID)

	// original seat order is kept for the next game
	s.rematch = lo.Filter(s.participants, func(id int64, _ int) bool {
		return s.decisions[id] == domain.DecisionRematch
	})

	if len(s.rematch) >= 2 {
		s.transition(StateRematchPreparing, eventStep, now)
		return
	}
	s.reason = ReasonLeft
	s.transition(StateTerminating, eventStep, now)
}

// stepRematch plans the replacement session. The registry creates it once the
// old session is gone.
func (s *Session) stepRematch(now time.Time, out *Outbox) {
	plan := &RematchPlan{
		SessionID:    uid.GenerateSessionID(),
		PreviousID:   s.ID,
		Participants: slices.Clone(s.rematch),
		Rules:        s.rules,
	}
	out.Rematch = plan

	s.broadcast(out, domain.ServerMessage{
		Type:          domain.MsgRematchStarted,
		Participants:  plan.Participants,
		NextSessionID: plan.SessionID,
		Rules:         s.rules,
	})

	s.reason = ReasonRematch
	s.complete(now, out)
}

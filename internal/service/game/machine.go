package game

import (
	"time"

	"github.com/iamasit07/stones/backend/internal/domain"
)

type handler func(s *Session, ev Event, now time.Time, out *Outbox)

type dispatchKey struct {
	state State
	kind  EventKind
}

type step func(s *Session, now time.Time, out *Outbox)

var (
	// dispatch maps the waiting states and the events they accept to a
	// handler. Pairs missing from the table fall through to reject.
	dispatch map[dispatchKey]handler
	// steps drive the automatic states; each one transitions away before
	// returning.
	steps map[State]step
)

// The tables are filled in init because their handlers reach back into
// package state.
func init() {
	dispatch = map[dispatchKey]handler{
		{StateLobby, EventReady}:          (*Session).onReady,
		{StateLobby, EventDisconnect}:     (*Session).onLobbyDisconnect,
		{StateLobby, EventForceTerminate}: (*Session).onForceTerminate,

		{StateTurnWaiting, EventMove}:           (*Session).onMove,
		{StateTurnWaiting, EventTurnTimeout}:    (*Session).onTurnTimeout,
		{StateTurnWaiting, EventDisconnect}:     (*Session).onPlayDisconnect,
		{StateTurnWaiting, EventForceTerminate}: (*Session).onForceTerminate,

		{StatePostGameDecisionWaiting, EventDecision}:        (*Session).onDecision,
		{StatePostGameDecisionWaiting, EventDecisionTimeout}: (*Session).onDecisionTimeout,
		{StatePostGameDecisionWaiting, EventDisconnect}:      (*Session).onDecisionDisconnect,
		{StatePostGameDecisionWaiting, EventForceTerminate}:  (*Session).onForceTerminate,
	}

	steps = map[State]step{
		StateMoveValidating:            (*Session).stepValidate,
		StateMoveApplying:              (*Session).stepApply,
		StateOutcomeEvaluating:         (*Session).stepEvaluate,
		StateTurnFinalizing:            (*Session).stepFinalize,
		StatePostGameDecisionResolving: (*Session).stepResolve,
		StateRematchPreparing:          (*Session).stepRematch,
		StateTerminating:               (*Session).terminate,
	}
}

func (s *Session) handle(ev Event, now time.Time, out *Outbox) {
	if h, ok := dispatch[dispatchKey{s.state, ev.Kind}]; ok {
		h(s, ev, now, out)
		return
	}
	s.reject(ev, out)
}

// settle runs automatic states until the session waits for input again.
func (s *Session) settle(now time.Time, out *Outbox) {
	for {
		st, ok := steps[s.state]
		if !ok {
			return
		}
		st(s, now, out)
	}
}

// reject answers an event the current state does not accept. Requests get an
// error response; timeouts and disconnects are dropped.
func (s *Session) reject(ev Event, out *Outbox) {
	if ev.RequestID == "" {
		return
	}
	switch ev.Kind {
	case EventMove:
		out.Error(ev.UserID, s.validateMove(ev.UserID, ev.X, ev.Y), ev.RequestID)
	case EventReady:
		if s.state.InPlay() {
			s.reply(out, ev.UserID, domain.ServerMessage{Type: domain.MsgReadyAck, RequestID: ev.RequestID, UserID: ev.UserID})
			return
		}
		out.Error(ev.UserID, domain.ErrGameFinished, ev.RequestID)
	case EventDecision:
		out.Error(ev.UserID, domain.ErrTimeWindowClosed, ev.RequestID)
	default:
		out.Error(ev.UserID, domain.ErrInvalidPayload, ev.RequestID)
	}
}

func (s *Session) onReady(ev Event, now time.Time, out *Outbox) {
	if !s.IsParticipant(ev.UserID) {
		out.Error(ev.UserID, domain.ErrInvalidPlayer, ev.RequestID)
		return
	}

	s.reply(out, ev.UserID, domain.ServerMessage{Type: domain.MsgReadyAck, RequestID: ev.RequestID, UserID: ev.UserID})
	if s.ready[ev.UserID] {
		return
	}
	s.ready[ev.UserID] = true
	s.broadcast(out, domain.ServerMessage{Type: domain.MsgPlayerReady, UserID: ev.UserID})

	for _, id := range s.participants {
		if !s.ready[id] {
			return
		}
	}
	s.start(now, out)
}

// start leaves the lobby and opens the first turn.
func (s *Session) start(now time.Time, out *Outbox) {
	s.startedAt = now

	order := s.participants
	res := s.runHooks(s.hookContext(TriggerGameStart))
	if o, ok := s.applyOrder(res.TurnOrder); ok {
		order = o
	}
	s.applyTransform(res.Transform, out)

	s.beginTurn(firstTurn(order, s.disconnected, now, s.settings.TurnTimeout), now, out)
	s.transition(StateTurnWaiting, EventReady, now)

	cur, _ := s.turn.Current()
	deadline := s.turn.Deadline
	s.broadcast(out, domain.ServerMessage{
		Type:          domain.MsgGameStarted,
		Participants:  s.turn.order(),
		Rules:         s.rules,
		CurrentPlayer: cur,
		TurnNumber:    s.turn.Number,
		Round:         s.turn.Round,
		Board:         s.board.Rows(),
		Deadline:      &deadline,
	})
}

// beginTurn installs a new turn snapshot and arms its timeout.
func (s *Session) beginTurn(next TurnSnapshot, now time.Time, out *Outbox) {
	s.turn = next
	if _, ok := next.Current(); !ok {
		s.timers.turn.Cancel(s.ID)
		return
	}
	s.timers.turn.Schedule(s.ID, next.Deadline, next.Number, s.timers.onTurn)

	res := s.runHooks(s.hookContext(TriggerTurnStart))
	s.applyTransform(res.Transform, out)
}

func (s *Session) onLobbyDisconnect(ev Event, now time.Time, out *Outbox) {
	if !s.IsParticipant(ev.UserID) || s.disconnected[ev.UserID] {
		return
	}
	s.disconnected[ev.UserID] = true
	s.broadcast(out, domain.ServerMessage{Type: domain.MsgPlayerDisconnected, UserID: ev.UserID})
	s.reason = ReasonDisconnected
	s.transition(StateTerminating, ev.Kind, now)
}

func (s *Session) onForceTerminate(ev Event, now time.Time, out *Outbox) {
	s.reason = ev.Reason
	if s.reason == "" {
		s.reason = ReasonShutdown
	}
	s.cycle = nil
	s.transition(StateTerminating, ev.Kind, now)
}

// terminate notifies participants and completes the session.
func (s *Session) terminate(now time.Time, out *Outbox) {
	s.broadcast(out, domain.ServerMessage{
		Type:     domain.MsgSessionTerminated,
		Reason:   s.reason,
		Outcomes: s.outcomeCopy(),
	})
	s.complete(now, out)
}

// complete releases every resource held by the session.
func (s *Session) complete(now time.Time, out *Outbox) {
	s.cancelTimers()
	s.cycle = nil
	s.completedAt = now
	out.Unbind = append(out.Unbind, s.participants...)
	out.Remove = true
	s.transition(StateCompleted, eventStep, now)
	s.closed.Store(true)
}

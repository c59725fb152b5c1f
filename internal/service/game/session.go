package game

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"github.com/samber/lo"

	"github.com/iamasit07/stones/backend/internal/domain"
	"github.com/iamasit07/stones/backend/internal/service/timeout"
)

const (
	ReasonCompleted    = "completed"
	ReasonForfeit      = "forfeit"
	ReasonDisconnected = "player_disconnected"
	ReasonLeft         = "players_left"
	ReasonRematch      = "rematch"
	ReasonLobbyTimeout = "lobby_timeout"
	ReasonSuperseded   = "superseded"
	ReasonShutdown     = "shutdown"
	ReasonInternal     = "internal_error"
)

// Settings are the per-session game parameters.
type Settings struct {
	Width          int
	Height         int
	WinLength      int
	TurnTimeout    time.Duration
	DecisionWindow time.Duration
}

func DefaultSettings() Settings {
	return Settings{
		Width:          domain.DefaultWidth,
		Height:         domain.DefaultHeight,
		WinLength:      domain.DefaultWinLength,
		TurnTimeout:    30 * time.Second,
		DecisionWindow: 20 * time.Second,
	}
}

// timers couples the registry's schedulers with the callbacks that feed
// firings back into the session queue.
type timers struct {
	turn       *timeout.Scheduler
	decision   *timeout.Scheduler
	onTurn     timeout.Callback
	onDecision timeout.Callback
}

// Session is one running game among a fixed participant set. All state is
// guarded by mu and only changes inside drain.
type Session struct {
	ID string

	participants []int64
	seats        map[int64]int
	rules        string
	hooks        []RuleHook
	settings     Settings
	timers       timers
	observers    []Observer

	qmu    sync.Mutex
	queue  []Event
	closed atomic.Bool

	mu           sync.Mutex
	state        State
	board        *domain.Board
	ready        map[int64]bool
	disconnected map[int64]bool
	decisions    map[int64]domain.Decision
	rematch      []int64
	outcomes     map[int64]domain.Outcome
	turn         TurnSnapshot
	moveCount    int
	reason       string

	decisionNumber   uint64
	decisionDeadline time.Time

	createdAt   time.Time
	startedAt   time.Time
	finishedAt  time.Time
	completedAt time.Time

	cycle *turnCycle
}

func newSession(id string, participants []int64, rules string, hooks []RuleHook, settings Settings, t timers, observers []Observer, now time.Time) (*Session, error) {
	if len(participants) < 2 {
		return nil, eris.Errorf("session needs at least two participants, got %d", len(participants))
	}
	if len(lo.Uniq(participants)) != len(participants) {
		return nil, eris.New("duplicate participant")
	}

	seats := make(map[int64]int, len(participants))
	outcomes := make(map[int64]domain.Outcome, len(participants))
	for i, id := range participants {
		seats[id] = i
		outcomes[id] = domain.OutcomePending
	}

	return &Session{
		ID:           id,
		participants: slices.Clone(participants),
		seats:        seats,
		rules:        rules,
		hooks:        hooks,
		settings:     settings,
		timers:       t,
		observers:    slices.Clone(observers),
		state:        StateLobby,
		board:        domain.NewBoard(settings.Width, settings.Height),
		ready:        make(map[int64]bool),
		disconnected: make(map[int64]bool),
		decisions:    make(map[int64]domain.Decision),
		outcomes:     outcomes,
		turn:         TurnSnapshot{Index: -1},
		createdAt:    now,
	}, nil
}

func (s *Session) Participants() []int64 {
	return slices.Clone(s.participants)
}

func (s *Session) Rules() string {
	return s.rules
}

func (s *Session) IsParticipant(userID int64) bool {
	_, ok := s.seats[userID]
	return ok
}

// Holds reports whether userID is still an active participant: connected and
// not on the way out after choosing to leave.
func (s *Session) Holds(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateCompleted || !s.IsParticipant(userID) || s.disconnected[userID] {
		return false
	}
	return s.decisions[userID] != domain.DecisionLeave
}

// Closed reports whether the session reached COMPLETED.
func (s *Session) Closed() bool {
	return s.closed.Load()
}

// submit appends an event to the session queue.
func (s *Session) submit(ev Event) {
	s.qmu.Lock()
	defer s.qmu.Unlock()
	s.queue = append(s.queue, ev)
}

func (s *Session) takeQueue() []Event {
	s.qmu.Lock()
	defer s.qmu.Unlock()
	q := s.queue
	s.queue = nil
	return q
}

func (s *Session) hasQueued() bool {
	s.qmu.Lock()
	defer s.qmu.Unlock()
	return len(s.queue) > 0
}

// drain processes every queued event in submission order, settling the
// automatic states after each one. An event that panics is rolled back out of
// the outbox and the session is forced to terminate; requests still queued
// behind it are answered with SESSION_CLOSED.
func (s *Session) drain(now time.Time) (*Outbox, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := &Outbox{}
	var failure error
	for _, ev := range s.takeQueue() {
		if s.state == StateCompleted {
			if ev.RequestID != "" {
				out.Error(ev.UserID, domain.ErrSessionClosed, ev.RequestID)
			}
			continue
		}
		if err := s.process(ev, now, out); err != nil {
			failure = err
			s.abortLocked(now, out)
			if ev.RequestID != "" {
				out.Error(ev.UserID, domain.ErrSessionClosed, ev.RequestID)
			}
		}
	}
	return out, failure
}

// process handles a single event. On panic, whatever the event added to out
// is discarded and the panic is returned as an error.
func (s *Session) process(ev Event, now time.Time, out *Outbox) (err error) {
	mark := *out
	defer func() {
		if r := recover(); r != nil {
			*out = mark
			err = eris.Errorf("panic advancing session %s in %s: %v", s.ID, s.state, r)
		}
	}()

	s.handle(ev, now, out)
	s.settle(now, out)
	return nil
}

// abortLocked force-terminates a session whose state can no longer be trusted.
func (s *Session) abortLocked(now time.Time, out *Outbox) {
	s.cycle = nil
	if s.state == StateCompleted {
		// completed inside the failed event; the release was rolled back
		s.cancelTimers()
		out.Unbind = append(out.Unbind, s.participants...)
		out.Remove = true
		return
	}
	s.reason = ReasonInternal
	s.transition(StateTerminating, EventForceTerminate, now)
	s.terminate(now, out)
}

func (s *Session) transition(to State, cause EventKind, now time.Time) {
	from := s.state
	s.state = to
	t := Transition{SessionID: s.ID, From: from, To: to, Cause: cause, At: now}
	for _, o := range s.observers {
		o(t)
	}
}

// broadcast sends msg to every participant still connected.
func (s *Session) broadcast(out *Outbox, msg domain.ServerMessage) {
	msg.SessionID = s.ID
	for _, id := range s.participants {
		if s.disconnected[id] {
			continue
		}
		out.Send(id, msg)
	}
}

func (s *Session) reply(out *Outbox, userID int64, msg domain.ServerMessage) {
	msg.SessionID = s.ID
	out.Send(userID, msg)
}

func (s *Session) connected() []int64 {
	return lo.Filter(s.participants, func(id int64, _ int) bool { return !s.disconnected[id] })
}

func (s *Session) hookContext(trigger Trigger) HookContext {
	turn := s.turn
	turn.Order = s.turn.order()
	return HookContext{
		Trigger:      trigger,
		SessionID:    s.ID,
		Participants: slices.Clone(s.participants),
		Turn:         turn,
		Board:        s.board.Copy(),
		MoveCount:    s.moveCount,
		Outcomes:     s.outcomeCopy(),
	}
}

func (s *Session) runHooks(ctx HookContext) HookResult {
	if len(s.hooks) == 0 {
		return HookResult{}
	}
	return runHooks(s.hooks, ctx)
}

// applyOrder validates a hook-provided turn order.
func (s *Session) applyOrder(order []int64) ([]int64, bool) {
	if order == nil || !isPermutation(order, s.participants) {
		return nil, false
	}
	return slices.Clone(order), true
}

// applyTransform rewrites the board and reports whether anything changed.
func (s *Session) applyTransform(t domain.Transform, out *Outbox) bool {
	if t == domain.TransformNone || !s.board.Apply(t) {
		return false
	}
	s.broadcast(out, domain.ServerMessage{
		Type:       domain.MsgBoardSnapshot,
		Board:      s.board.Rows(),
		TurnNumber: s.turn.Number,
		Reason:     string(t),
	})
	return true
}

func (s *Session) outcomeCopy() map[int64]domain.Outcome {
	cp := make(map[int64]domain.Outcome, len(s.outcomes))
	for id, o := range s.outcomes {
		cp[id] = o
	}
	return cp
}

func (s *Session) decisionCopy() map[int64]domain.Decision {
	cp := make(map[int64]domain.Decision, len(s.decisions))
	for id, d := range s.decisions {
		cp[id] = d
	}
	return cp
}

// resolved reports whether any participant has a final outcome.
func (s *Session) resolved() bool {
	return lo.SomeBy(lo.Values(s.outcomes), func(o domain.Outcome) bool { return o != domain.OutcomePending })
}

func (s *Session) cancelTimers() {
	s.timers.turn.Cancel(s.ID)
	s.timers.decision.Cancel(s.ID)
}

// Info is a point-in-time summary of a session.
type Info struct {
	ID            string                   `json:"id"`
	Participants  []int64                  `json:"participants"`
	State         string                   `json:"state"`
	Rules         string                   `json:"rules"`
	TurnNumber    uint64                   `json:"turnNumber"`
	Round         int                      `json:"round"`
	CurrentPlayer int64                    `json:"currentPlayer,omitempty"`
	MoveCount     int                      `json:"moveCount"`
	Outcomes      map[int64]domain.Outcome `json:"outcomes"`
	CreatedAt     time.Time                `json:"createdAt"`
	StartedAt     *time.Time               `json:"startedAt,omitempty"`
	FinishedAt    *time.Time               `json:"finishedAt,omitempty"`
}

func (s *Session) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()

	info := Info{
		ID:           s.ID,
		Participants: slices.Clone(s.participants),
		State:        s.state.String(),
		Rules:        s.rules,
		TurnNumber:   s.turn.Number,
		Round:        s.turn.Round,
		MoveCount:    s.moveCount,
		Outcomes:     s.outcomeCopy(),
		CreatedAt:    s.createdAt,
	}
	if cur, ok := s.turn.Current(); ok {
		info.CurrentPlayer = cur
	}
	if !s.startedAt.IsZero() {
		started := s.startedAt
		info.StartedAt = &started
	}
	if !s.finishedAt.IsZero() {
		finished := s.finishedAt
		info.FinishedAt = &finished
	}
	return info
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Turn() TurnSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.turn
	t.Order = s.turn.order()
	return t
}

// Board returns a copy of the current board.
func (s *Session) Board() *domain.Board {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.board.Copy()
}

func (s *Session) Outcomes() map[int64]domain.Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcomeCopy()
}

func (s *Session) Decisions() map[int64]domain.Decision {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.decisionCopy()
}

func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}

package game

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/iamasit07/stones/backend/internal/domain"
	"github.com/iamasit07/stones/backend/internal/service/matchmaking"
	"github.com/iamasit07/stones/backend/internal/service/timeout"
	"github.com/iamasit07/stones/backend/pkg/uid"
)

var (
	ErrSessionNotFound = eris.New("session not found")
	ErrInvalidGroup    = eris.New("group needs at least two tickets")
)

// Messenger delivers outbound messages. It must not call back into the
// registry.
type Messenger interface {
	SendMessage(userID int64, msg domain.ServerMessage) error
}

// Presence reports whether a user still has a live connection.
type Presence interface {
	IsConnected(userID int64) bool
}

// GameRecorder persists finished games.
type GameRecorder interface {
	SaveGame(ctx context.Context, rec GameRecord) error
}

// Registry owns every live session and the user to session index.
type Registry struct {
	mu            sync.RWMutex
	sessions      map[string]*Session
	userToSession map[int64]string

	settings  Settings
	messenger Messenger
	recorder  GameRecorder
	resolver  HookResolver
	presence  Presence
	observers []Observer

	turnTimer     *timeout.Scheduler
	decisionTimer *timeout.Scheduler

	logger zerolog.Logger
	now    func() time.Time
	wake   chan struct{}
	saves  sync.WaitGroup
}

type Option func(*Registry)

func WithRecorder(rec GameRecorder) Option {
	return func(r *Registry) { r.recorder = rec }
}

func WithHookResolver(res HookResolver) Option {
	return func(r *Registry) { r.resolver = res }
}

// WithPresence lets new sessions notice participants that dropped while their
// group was being formed.
func WithPresence(p Presence) Option {
	return func(r *Registry) { r.presence = p }
}

func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithObserver adds an observer to every session created afterwards.
func WithObserver(o Observer) Option {
	return func(r *Registry) { r.observers = append(r.observers, o) }
}

func NewRegistry(settings Settings, messenger Messenger, logger zerolog.Logger, opts ...Option) *Registry {
	r := &Registry{
		sessions:      make(map[string]*Session),
		userToSession: make(map[int64]string),
		settings:      settings,
		messenger:     messenger,
		turnTimer:     timeout.NewScheduler("turn"),
		decisionTimer: timeout.NewScheduler("decision"),
		logger:        logger.With().Str("component", "session").Logger(),
		now:           time.Now,
		wake:          make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.observers = append([]Observer{transitionLogger(r.logger)}, r.observers...)
	return r
}

// CreateFromGroup starts a session for a formed matchmaking group and returns
// its id. A participant still playing in another session ends that session;
// one who already left it is only unbound, so the others carry on.
func (r *Registry) CreateFromGroup(g *matchmaking.Group) (string, error) {
	if g == nil || len(g.Tickets) < 2 {
		return "", ErrInvalidGroup
	}
	users := g.UserIDs()

	for _, id := range users {
		prev, ok := r.GetByUser(id)
		if !ok {
			continue
		}
		if prev.Holds(id) {
			_ = r.ForceTerminate(prev.ID, ReasonSuperseded)
			continue
		}
		r.unbind(prev.ID, id)
	}

	s, err := r.create(uid.GenerateSessionID(), users, g.Rules())
	if err != nil {
		return "", err
	}

	if r.presence != nil {
		gone := lo.Filter(users, func(id int64, _ int) bool { return !r.presence.IsConnected(id) })
		for _, id := range gone {
			s.submit(Event{Kind: EventDisconnect, UserID: id})
		}
		if len(gone) > 0 {
			r.logger.Info().Str("session_id", s.ID).Ints64("users", gone).Msg("participants gone before start")
			r.advance(s, r.now())
		}
	}
	return s.ID, nil
}

func (r *Registry) create(id string, participants []int64, rules string) (*Session, error) {
	var hooks []RuleHook
	if r.resolver != nil {
		resolved, err := r.resolver.Resolve(rules)
		if err != nil {
			return nil, eris.Wrapf(err, "failed to resolve rules %q", rules)
		}
		hooks = resolved
	}

	t := timers{
		turn:     r.turnTimer,
		decision: r.decisionTimer,
		onTurn: func(sessionID string, expected uint64) {
			r.submit(sessionID, Event{Kind: EventTurnTimeout, Counter: expected})
		},
		onDecision: func(sessionID string, expected uint64) {
			r.submit(sessionID, Event{Kind: EventDecisionTimeout, Counter: expected})
		},
	}

	s, err := newSession(id, participants, rules, hooks, r.settings, t, r.observers, r.now())
	if err != nil {
		return nil, eris.Wrap(err, "failed to create session")
	}

	r.mu.Lock()
	r.sessions[s.ID] = s
	for _, u := range participants {
		r.userToSession[u] = s.ID
	}
	r.mu.Unlock()

	r.logger.Info().
		Str("session_id", s.ID).
		Ints64("participants", participants).
		Str("rules", rules).
		Msg("session created")

	joined := domain.ServerMessage{
		Type:         domain.MsgSessionJoined,
		SessionID:    s.ID,
		Participants: s.Participants(),
		Rules:        rules,
	}
	for _, u := range participants {
		r.send(u, joined)
	}
	return s, nil
}

func (r *Registry) Get(sessionID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[sessionID]
	return s, ok
}

func (r *Registry) GetByUser(userID int64) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.userToSession[userID]
	if !ok {
		return nil, false
	}
	s, ok := r.sessions[id]
	return s, ok
}

// Live summarizes every registered session.
func (r *Registry) Live() []Info {
	return lo.Map(r.snapshot(), func(s *Session, _ int) Info { return s.Info() })
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) snapshot() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Values(r.sessions)
}

func (r *Registry) SubmitReady(userID int64, requestID string) bool {
	return r.submitForUser(userID, Event{Kind: EventReady, UserID: userID, RequestID: requestID})
}

func (r *Registry) SubmitMove(userID int64, requestID string, x, y int) bool {
	return r.submitForUser(userID, Event{Kind: EventMove, UserID: userID, RequestID: requestID, X: x, Y: y})
}

func (r *Registry) SubmitPostGameDecision(userID int64, requestID string, decision string) bool {
	if _, ok := domain.ParseDecision(decision); !ok {
		r.send(userID, domain.ErrorResponse(domain.ErrInvalidPayload, requestID))
		return false
	}
	return r.submitForUser(userID, Event{Kind: EventDecision, UserID: userID, RequestID: requestID, Decision: decision})
}

// HandleClientDisconnected marks the user as gone in their session, if any.
func (r *Registry) HandleClientDisconnected(userID int64) {
	s, ok := r.GetByUser(userID)
	if !ok || s.Closed() {
		return
	}
	s.submit(Event{Kind: EventDisconnect, UserID: userID})
	r.signal()
}

func (r *Registry) submitForUser(userID int64, ev Event) bool {
	s, ok := r.GetByUser(userID)
	if !ok {
		r.send(userID, domain.ErrorResponse(domain.ErrSessionNotFound, ev.RequestID))
		return false
	}
	if s.Closed() {
		r.send(userID, domain.ErrorResponse(domain.ErrSessionClosed, ev.RequestID))
		return false
	}
	s.submit(ev)
	r.signal()
	return true
}

func (r *Registry) submit(sessionID string, ev Event) {
	s, ok := r.Get(sessionID)
	if !ok || s.Closed() {
		return
	}
	s.submit(ev)
	r.signal()
}

func (r *Registry) signal() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// ForceTerminate ends a session immediately, whatever state it is in.
func (r *Registry) ForceTerminate(sessionID string, reason string) error {
	s, ok := r.Get(sessionID)
	if !ok {
		return ErrSessionNotFound
	}
	s.submit(Event{Kind: EventForceTerminate, Reason: reason})
	r.advance(s, r.now())
	return nil
}

// StaleLobbies returns the ids of sessions still waiting for players to get
// ready after maxAge.
func (r *Registry) StaleLobbies(now time.Time, maxAge time.Duration) []string {
	var ids []string
	for _, s := range r.snapshot() {
		if now.Sub(s.CreatedAt()) > maxAge && s.State() == StateLobby {
			ids = append(ids, s.ID)
		}
	}
	return ids
}

// Tick fires due timeouts and drains every session queue.
func (r *Registry) Tick(now time.Time) {
	for _, f := range r.turnTimer.Due(now) {
		f.Invoke()
	}
	for _, f := range r.decisionTimer.Due(now) {
		f.Invoke()
	}
	r.drainPending(now)
}

func (r *Registry) drainPending(now time.Time) {
	for _, s := range r.snapshot() {
		if s.hasQueued() {
			r.advance(s, now)
		}
	}
}

// advance drains one session and applies what it produced. Panics are
// contained to the session.
func (r *Registry) advance(s *Session, now time.Time) {
	out, err := s.drain(now)
	if err != nil {
		r.logger.Error().Err(err).Str("session_id", s.ID).Msg("session aborted")
	}
	r.apply(s, out)
}

// apply runs registry directives and delivers messages. Called without any
// session lock held.
func (r *Registry) apply(s *Session, out *Outbox) {
	if out == nil || out.empty() {
		return
	}

	if out.Remove {
		r.remove(s.ID, out.Unbind)
	} else if len(out.Unbind) > 0 {
		r.unbind(s.ID, out.Unbind...)
	}

	for _, env := range out.Messages {
		r.send(env.UserID, env.Message)
	}

	if out.Record != nil {
		r.saveGameAsync(*out.Record)
	}

	if plan := out.Rematch; plan != nil {
		next, err := r.create(plan.SessionID, plan.Participants, plan.Rules)
		if err != nil {
			r.logger.Error().Err(err).Str("session_id", plan.PreviousID).Msg("failed to create rematch session")
			return
		}
		r.logger.Info().Str("session_id", next.ID).Str("previous_id", plan.PreviousID).Msg("rematch started")
	}
}

// remove drops the session and unbinds users still pointing at it.
func (r *Registry) remove(sessionID string, users []int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, sessionID)
	r.unbindLocked(sessionID, users)
	r.logger.Info().Str("session_id", sessionID).Msg("session removed")
}

// unbind detaches users from sessionID without touching the session itself.
func (r *Registry) unbind(sessionID string, users ...int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unbindLocked(sessionID, users)
}

func (r *Registry) unbindLocked(sessionID string, users []int64) {
	for _, u := range users {
		if r.userToSession[u] == sessionID {
			delete(r.userToSession, u)
		}
	}
}

func (r *Registry) send(userID int64, msg domain.ServerMessage) {
	if r.messenger == nil {
		return
	}
	if err := r.messenger.SendMessage(userID, msg); err != nil {
		r.logger.Debug().Err(err).Int64("user_id", userID).Str("type", msg.Type).Msg("message not delivered")
	}
}

// saveGameAsync persists a finished game in the background so result
// broadcasts are not held up by the database.
func (r *Registry) saveGameAsync(rec GameRecord) {
	if r.recorder == nil {
		return
	}
	r.saves.Add(1)
	go func() {
		defer r.saves.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := r.recorder.SaveGame(ctx, rec); err != nil {
			r.logger.Error().Err(err).Str("session_id", rec.SessionID).Msg("failed to save game")
			return
		}
		r.logger.Debug().Str("session_id", rec.SessionID).Msg("game saved")
	}()
}

// Run ticks the registry on a fixed interval, and early whenever an event is
// submitted, until ctx is cancelled.
func (r *Registry) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.Tick(r.now())
		case <-r.wake:
			r.drainPending(r.now())
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close terminates every session and waits for pending game records.
func (r *Registry) Close() {
	for _, s := range r.snapshot() {
		_ = r.ForceTerminate(s.ID, ReasonShutdown)
	}
	r.saves.Wait()
}

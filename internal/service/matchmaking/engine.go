package matchmaking

import (
	"context"
	"errors"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/iamasit07/stones/backend/internal/domain"
	"github.com/iamasit07/stones/backend/pkg/uid"
)

var (
	ErrQueueEmpty    = eris.New("matchmaking queue is empty")
	ErrNoMatch       = eris.New("no acceptable group for ticket")
	ErrAlreadyQueued = eris.New("user already has a ticket")
	ErrInvalidTicket = eris.New("ticket has no acceptable group size")
)

// Notifier delivers queue notifications to a user.
type Notifier interface {
	SendMessage(userID int64, msg domain.ServerMessage) error
}

type Engine struct {
	mu     sync.Mutex
	policy Policy
	queue  *Queue
	logger zerolog.Logger
	now    func() time.Time

	MatchChannel chan *Group
}

func NewEngine(policy Policy, logger zerolog.Logger) *Engine {
	return &Engine{
		policy:       policy,
		queue:        NewQueue(),
		logger:       logger.With().Str("component", "matchmaking").Logger(),
		now:          time.Now,
		MatchChannel: make(chan *Group, 100),
	}
}

// SetClock replaces the engine's time source.
func (e *Engine) SetClock(now func() time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.now = now
}

func (e *Engine) Policy() Policy {
	return e.policy
}

// Enqueue creates a ticket for the user. A user may hold one ticket at a time.
func (e *Engine) Enqueue(userID int64, rating float64, sizes []int, rules string) (*Ticket, error) {
	sizes = normalizeSizes(sizes)
	if len(sizes) == 0 {
		return nil, ErrInvalidTicket
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.queue.GetByUser(userID); ok {
		return nil, ErrAlreadyQueued
	}

	t := &Ticket{
		ID:         uid.GenerateTicketID(),
		UserID:     userID,
		Rating:     rating,
		Sizes:      sizes,
		EnqueuedAt: e.now(),
		Rules:      rules,
	}
	e.queue.Add(t)

	e.logger.Debug().
		Str("ticket_id", t.ID).
		Int64("user_id", userID).
		Float64("rating", rating).
		Ints("sizes", sizes).
		Msg("ticket enqueued")
	return t, nil
}

// TryMatchOnce polls the front ticket and tries to build the best group
// around it. On success every ticket of the group leaves the queue. Otherwise
// the ticket's credit grows by one, it goes to the back of the queue and
// ErrNoMatch is returned.
func (e *Engine) TryMatchOnce(now time.Time) (*Group, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.tryMatchLocked(now)
}

func (e *Engine) tryMatchLocked(now time.Time) (*Group, error) {
	ticket, ok := e.queue.Pop()
	if !ok {
		return nil, ErrQueueEmpty
	}

	var best *Group
	for _, size := range ticket.Sizes {
		others, ok := e.candidates(ticket, size, now)
		if !ok {
			continue
		}
		tickets := append([]*Ticket{ticket}, others...)
		score := e.policy.Score(tickets)
		if score < e.policy.MinScore {
			continue
		}
		if best == nil || score > best.Score {
			best = &Group{Tickets: tickets, Score: score}
		}
	}

	if best == nil {
		ticket.Credit++
		e.queue.Requeue(ticket)
		return nil, ErrNoMatch
	}

	for _, t := range best.Tickets {
		e.queue.Remove(t.ID)
	}

	e.logger.Info().
		Ints64("users", best.UserIDs()).
		Float64("score", best.Score).
		Str("rules", best.Rules()).
		Msg("group formed")
	return best, nil
}

// candidates picks the size-1 closest tickets from the size pool that fall
// inside the ticket's rating window. It reports false if too few qualify.
func (e *Engine) candidates(ticket *Ticket, size int, now time.Time) ([]*Ticket, bool) {
	window := e.policy.Window(ticket, now)

	pool := lo.Filter(e.queue.Pool(size), func(c *Ticket, _ int) bool {
		return c != ticket &&
			c.Rules == ticket.Rules &&
			math.Abs(c.Rating-ticket.Rating) <= window
	})
	if len(pool) < size-1 {
		return nil, false
	}

	slices.SortStableFunc(pool, func(a, b *Ticket) int {
		da, db := math.Abs(a.Rating-ticket.Rating), math.Abs(b.Rating-ticket.Rating)
		if da != db {
			if da < db {
				return -1
			}
			return 1
		}
		if wa, wb := a.Wait(now), b.Wait(now); wa != wb {
			if wa < wb {
				return -1
			}
			return 1
		}
		return b.Credit - a.Credit
	})
	return pool[:size-1], true
}

// Cancel removes a ticket from the queue and every pool. Safe to call for a
// ticket that already matched or was removed.
func (e *Engine) Cancel(ticketID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, ok := e.queue.Remove(ticketID)
	return ok
}

// CancelUser removes the user's ticket, if any.
func (e *Engine) CancelUser(userID int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, ok := e.queue.GetByUser(userID)
	if !ok {
		return false
	}
	e.queue.Remove(t.ID)
	e.logger.Debug().Int64("user_id", userID).Str("ticket_id", t.ID).Msg("ticket cancelled")
	return true
}

// Expire removes and returns every ticket queued for longer than ttl.
func (e *Engine) Expire(now time.Time, ttl time.Duration) []*Ticket {
	e.mu.Lock()
	defer e.mu.Unlock()

	expired := lo.Filter(e.queue.All(), func(t *Ticket, _ int) bool {
		return t.Wait(now) > ttl
	})
	for _, t := range expired {
		e.queue.Remove(t.ID)
	}
	if len(expired) > 0 {
		e.logger.Info().Int("count", len(expired)).Msg("expired tickets")
	}
	return expired
}

// Queued reports whether the user currently holds a ticket.
func (e *Engine) Queued(userID int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, ok := e.queue.GetByUser(userID)
	return ok
}

func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.queue.Size()
}

// Pass polls every ticket in the queue at most once and returns the groups
// formed.
func (e *Engine) Pass(now time.Time) []*Group {
	e.mu.Lock()
	defer e.mu.Unlock()

	var groups []*Group
	polled := make(map[string]bool, e.queue.Size())
	for {
		front, ok := e.queue.Peek()
		if !ok || polled[front.ID] {
			break
		}
		polled[front.ID] = true
		g, err := e.tryMatchLocked(now)
		if errors.Is(err, ErrQueueEmpty) {
			break
		}
		if g != nil {
			groups = append(groups, g)
		}
	}
	return groups
}

// Run drives matchmaking passes on a fixed interval and publishes formed
// groups on MatchChannel until ctx is cancelled.
func (e *Engine) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			e.mu.Lock()
			now := e.now()
			e.mu.Unlock()

			for _, g := range e.Pass(now) {
				select {
				case e.MatchChannel <- g:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

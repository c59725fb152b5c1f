package matchmaking

import (
	"github.com/samber/lo"
)

// Queue holds waiting tickets: a FIFO polling order plus one candidate pool
// per acceptable group size. A ticket is listed at most once in the order and
// at most once in each of its size pools. Queue is not safe for concurrent
// use; the Engine guards it.
type Queue struct {
	order  []*Ticket
	byID   map[string]*Ticket
	byUser map[int64]*Ticket
	pools  map[int][]*Ticket
}

func NewQueue() *Queue {
	return &Queue{
		byID:   make(map[string]*Ticket),
		byUser: make(map[int64]*Ticket),
		pools:  make(map[int][]*Ticket),
	}
}

// Add registers a new ticket at the back of the polling order and in every
// pool for its sizes. It reports false when the ticket or its user is already
// present.
func (q *Queue) Add(t *Ticket) bool {
	if _, ok := q.byID[t.ID]; ok {
		return false
	}
	if _, ok := q.byUser[t.UserID]; ok {
		return false
	}
	q.byID[t.ID] = t
	q.byUser[t.UserID] = t
	q.order = append(q.order, t)
	for _, size := range t.Sizes {
		q.pools[size] = append(q.pools[size], t)
	}
	return true
}

// Pop takes the front ticket off the polling order. The ticket stays in its
// pools until Remove is called or it is put back with Requeue.
func (q *Queue) Pop() (*Ticket, bool) {
	if len(q.order) == 0 {
		return nil, false
	}
	t := q.order[0]
	q.order[0] = nil
	q.order = q.order[1:]
	return t, true
}

func (q *Queue) Peek() (*Ticket, bool) {
	if len(q.order) == 0 {
		return nil, false
	}
	return q.order[0], true
}

// Requeue appends a popped ticket to the back of the polling order.
func (q *Queue) Requeue(t *Ticket) {
	if _, ok := q.byID[t.ID]; !ok {
		return
	}
	if lo.Contains(q.order, t) {
		return
	}
	q.order = append(q.order, t)
}

// Remove deletes a ticket from the polling order and every pool.
func (q *Queue) Remove(ticketID string) (*Ticket, bool) {
	t, ok := q.byID[ticketID]
	if !ok {
		return nil, false
	}
	delete(q.byID, ticketID)
	if q.byUser[t.UserID] == t {
		delete(q.byUser, t.UserID)
	}
	q.order = lo.Without(q.order, t)
	for _, size := range t.Sizes {
		pool := lo.Without(q.pools[size], t)
		if len(pool) == 0 {
			delete(q.pools, size)
			continue
		}
		q.pools[size] = pool
	}
	return t, true
}

func (q *Queue) Get(ticketID string) (*Ticket, bool) {
	t, ok := q.byID[ticketID]
	return t, ok
}

func (q *Queue) GetByUser(userID int64) (*Ticket, bool) {
	t, ok := q.byUser[userID]
	return t, ok
}

// Pool returns the tickets accepting the given group size.
func (q *Queue) Pool(size int) []*Ticket {
	return q.pools[size]
}

// Len is the number of tickets waiting to be polled.
func (q *Queue) Len() int {
	return len(q.order)
}

// Size is the number of registered tickets, polled or not.
func (q *Queue) Size() int {
	return len(q.byID)
}

func (q *Queue) All() []*Ticket {
	return lo.Values(q.byID)
}

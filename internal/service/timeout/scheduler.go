// Package timeout keeps one pending deadline per session for a class of
// timeouts (turn, post-game decision). Deadlines are polled by the session
// ticker rather than armed as runtime timers, so every time-based transition
// happens on the tick loop.
package timeout

import (
	"sort"
	"sync"
	"time"
)

// Callback runs when a deadline is reached. expected is the counter value the
// entry was scheduled for; the consumer must validate it before acting.
type Callback func(sessionID string, expected uint64)

// Entry is a scheduled timeout.
type Entry struct {
	SessionID string
	Expected  uint64
	Deadline  time.Time
	Fired     bool
	callback  Callback
}

// Fired is a deadline that has been reached, handed back by Due.
type Fired struct {
	SessionID string
	Expected  uint64
	Deadline  time.Time
	callback  Callback
}

// Invoke runs the entry's callback.
func (f Fired) Invoke() {
	if f.callback != nil {
		f.callback(f.SessionID, f.Expected)
	}
}

type Scheduler struct {
	class   string
	mu      sync.Mutex
	entries map[string]*Entry
}

func NewScheduler(class string) *Scheduler {
	return &Scheduler{
		class:   class,
		entries: make(map[string]*Entry),
	}
}

func (s *Scheduler) Class() string {
	return s.class
}

// Schedule arms a deadline for the session, superseding any pending one.
func (s *Scheduler) Schedule(sessionID string, deadline time.Time, expected uint64, cb Callback) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[sessionID] = &Entry{
		SessionID: sessionID,
		Expected:  expected,
		Deadline:  deadline,
		callback:  cb,
	}
}

// Cancel drops the session's pending deadline. Safe when none exists.
func (s *Scheduler) Cancel(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, sessionID)
}

// Validate reports whether the session's current entry guards expected.
func (s *Scheduler) Validate(sessionID string, expected uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[sessionID]
	return ok && e.Expected == expected
}

// ClearIfMatches removes the session's entry only if it still guards expected.
func (s *Scheduler) ClearIfMatches(sessionID string, expected uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[sessionID]
	if !ok || e.Expected != expected {
		return false
	}
	delete(s.entries, sessionID)
	return true
}

// Pending returns a copy of the session's entry.
func (s *Scheduler) Pending(sessionID string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[sessionID]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Due marks every unfired entry whose deadline is at or before now as fired
// and returns them ordered by deadline. Each entry is returned at most once.
// Callbacks are not run under the scheduler lock; call Invoke on the result.
func (s *Scheduler) Due(now time.Time) []Fired {
	s.mu.Lock()
	var due []Fired
	for _, e := range s.entries {
		if e.Fired || e.Deadline.After(now) {
			continue
		}
		e.Fired = true
		due = append(due, Fired{
			SessionID: e.SessionID,
			Expected:  e.Expected,
			Deadline:  e.Deadline,
			callback:  e.callback,
		})
	}
	s.mu.Unlock()

	sort.Slice(due, func(i, j int) bool {
		return due[i].Deadline.Before(due[j].Deadline)
	})
	return due
}

// Len returns the number of entries, fired or not.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

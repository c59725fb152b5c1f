package game

import (
	"slices"
	"time"
)

// TurnSnapshot describes one turn. It is replaced, never mutated, when the
// turn advances.
type TurnSnapshot struct {
	Order    []int64
	Index    int
	Number   uint64
	Round    int
	Position int
	Start    time.Time
	Deadline time.Time
}

// Current returns the user whose turn it is. ok is false when nobody can act.
func (t TurnSnapshot) Current() (int64, bool) {
	if t.Index < 0 || t.Index >= len(t.Order) {
		return 0, false
	}
	return t.Order[t.Index], true
}

func (t TurnSnapshot) order() []int64 {
	return slices.Clone(t.Order)
}

// firstTurn builds the snapshot for the opening turn.
func firstTurn(order []int64, disconnected map[int64]bool, now time.Time, limit time.Duration) TurnSnapshot {
	return TurnSnapshot{
		Order:    slices.Clone(order),
		Index:    nextConnected(order, -1, disconnected),
		Number:   1,
		Round:    1,
		Position: 1,
		Start:    now,
		Deadline: now.Add(limit),
	}
}

// nextConnected returns the first index after from, wrapping, whose user is
// still connected, or -1 when nobody is.
func nextConnected(order []int64, from int, disconnected map[int64]bool) int {
	n := len(order)
	for step := 1; step <= n; step++ {
		i := (from + step) % n
		if i < 0 {
			i += n
		}
		if !disconnected[order[i]] {
			return i
		}
	}
	return -1
}

// wraps reports whether moving from index from to index to starts a new round.
func wraps(from, to int) bool {
	return to <= from
}

// isPermutation reports whether order holds exactly the given participants.
func isPermutation(order, participants []int64) bool {
	if len(order) != len(participants) {
		return false
	}
	a, b := slices.Clone(order), slices.Clone(participants)
	slices.Sort(a)
	slices.Sort(b)
	return slices.Equal(a, b)
}

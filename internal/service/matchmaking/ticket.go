package matchmaking

import (
	"math"
	"slices"
	"time"

	"github.com/samber/lo"

	"github.com/iamasit07/stones/backend/internal/config"
)

// Ticket is a single player's request to be matched.
type Ticket struct {
	ID         string
	UserID     int64
	Rating     float64
	Sizes      []int
	EnqueuedAt time.Time
	Credit     int
	Rules      string
}

// Wait returns how long the ticket has been queued at now.
func (t *Ticket) Wait(now time.Time) time.Duration {
	if now.Before(t.EnqueuedAt) {
		return 0
	}
	return now.Sub(t.EnqueuedAt)
}

// Group is a scored set of tickets selected to play together. The ticket the
// group was formed around comes first.
type Group struct {
	Tickets []*Ticket
	Score   float64
}

func (g *Group) UserIDs() []int64 {
	return lo.Map(g.Tickets, func(t *Ticket, _ int) int64 { return t.UserID })
}

// Rules returns the rule selection shared by every ticket in the group.
func (g *Group) Rules() string {
	if len(g.Tickets) == 0 {
		return ""
	}
	return g.Tickets[0].Rules
}

// Policy holds the tunable constants of the window and score formulas.
type Policy struct {
	BaseGap           float64
	TimeWeight        float64
	CreditWeight      float64
	ScoreBase         float64
	StdDevWeight      float64
	MaxDeltaPenalty   float64
	ScoreCreditWeight float64
	HeadcountWeight   float64
	MinScore          float64
}

func DefaultPolicy() Policy {
	return Policy{
		BaseGap:           100,
		TimeWeight:        25,
		CreditWeight:      50,
		ScoreBase:         100,
		StdDevWeight:      -1,
		MaxDeltaPenalty:   25,
		ScoreCreditWeight: 2,
		HeadcountWeight:   1,
		MinScore:          40,
	}
}

func PolicyFromConfig(c config.MatchmakingConfig) Policy {
	return Policy{
		BaseGap:           c.BaseGap,
		TimeWeight:        c.TimeWeight,
		CreditWeight:      c.CreditWeight,
		ScoreBase:         c.ScoreBase,
		StdDevWeight:      c.StdDevWeight,
		MaxDeltaPenalty:   c.MaxDeltaPenalty,
		ScoreCreditWeight: c.ScoreCreditWeight,
		HeadcountWeight:   c.HeadcountWeight,
		MinScore:          c.MinScore,
	}
}

// Window is the largest rating difference the ticket accepts at now. It grows
// logarithmically with wait time and linearly with failed attempts.
func (p Policy) Window(t *Ticket, now time.Time) float64 {
	wait := t.Wait(now).Seconds()
	return p.BaseGap + p.TimeWeight*math.Log2(1+wait) + p.CreditWeight*float64(t.Credit)
}

// Score rates a candidate group. Higher is better.
func (p Policy) Score(tickets []*Ticket) float64 {
	if len(tickets) == 0 {
		return 0
	}
	ratings := lo.Map(tickets, func(t *Ticket, _ int) float64 { return t.Rating })

	score := p.ScoreBase + p.StdDevWeight*stdDev(ratings)
	if lo.Max(ratings)-lo.Min(ratings) > p.BaseGap {
		score -= p.MaxDeltaPenalty
	}
	credits := lo.SumBy(tickets, func(t *Ticket) int { return t.Credit })
	score += p.ScoreCreditWeight * float64(credits)
	score += p.HeadcountWeight * float64(len(tickets))
	return score
}

// population standard deviation
func stdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := lo.Sum(values) / float64(len(values))
	var sq float64
	for _, v := range values {
		sq += (v - mean) * (v - mean)
	}
	return math.Sqrt(sq / float64(len(values)))
}

// normalizeSizes drops sizes below two, removes duplicates and sorts ascending.
func normalizeSizes(sizes []int) []int {
	out := lo.Uniq(lo.Filter(sizes, func(s int, _ int) bool { return s >= 2 }))
	slices.Sort(out)
	return out
}

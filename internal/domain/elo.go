package domain

import "math"

const KFactor = 32.0

// CalculateElo returns the new rating for player A.
// score is 1.0 for a win, 0.5 for a draw, and 0.0 for a loss.
func CalculateElo(ratingA, ratingB int, score float64) int {
	expectedScoreA := 1.0 / (1.0 + math.Pow(10.0, float64(ratingB-ratingA)/400.0))
	newRating := float64(ratingA) + KFactor*(score-expectedScoreA)

	if newRating < 0 {
		return 0
	}
	return int(math.Round(newRating))
}

// ApplyElo rates a multi-player result as a set of pairwise games and averages
// each player's adjustment over their opponents. Players without a resolved
// outcome keep their rating.
func ApplyElo(ratings map[int64]int, outcomes map[int64]Outcome) map[int64]int {
	next := make(map[int64]int, len(ratings))
	for id, r := range ratings {
		next[id] = r
	}
	for a, ra := range ratings {
		oa, ok := outcomes[a]
		if !ok || oa == OutcomePending {
			continue
		}
		delta, opponents := 0, 0
		for b, rb := range ratings {
			if a == b {
				continue
			}
			ob, ok := outcomes[b]
			if !ok || ob == OutcomePending {
				continue
			}
			delta += CalculateElo(ra, rb, pairScore(oa, ob)) - ra
			opponents++
		}
		if opponents > 0 {
			next[a] = max(ra+delta/opponents, 0)
		}
	}
	return next
}

func pairScore(a, b Outcome) float64 {
	switch {
	case a == OutcomeWin && b != OutcomeWin:
		return 1.0
	case b == OutcomeWin && a != OutcomeWin:
		return 0.0
	}
	return 0.5
}

package scoring

import (
	"sort"
	"time"
)

const (
	SpeedBullet   = "bullet"
	StatusAborted = "aborted"

	SideWhite = "white"
	SideBlack = "black"
)

// RawMatch is one finished match as reported by the game server, already
// classified from the tracked player's perspective.
type RawMatch struct {
	ExternalID     string
	Rated          bool
	Speed          string
	Status         string
	Outcome        Outcome
	Side           string
	PlayerRating   int
	OpponentRating int
	OpponentName   string
	PlayedAt       time.Time
}

// Eligible reports whether a match counts toward the ranking. Casual games,
// other time controls, and aborted games are dropped silently.
func (m RawMatch) Eligible() bool {
	return m.Rated && m.Speed == SpeedBullet && m.Status != StatusAborted
}

// MatchEffect is one evaluated match inside a batch.
type MatchEffect struct {
	RawMatch
	ScoreDelta  int
	StreakAfter int
	StreakBonus bool
}

// BatchResult is the ordered outcome of folding the rules over one batch.
type BatchResult struct {
	Effects     []MatchEffect
	FinalStreak int
}

// ProcessBatch filters a player's raw matches to the eligible ones, orders
// them by the time they were actually played, and threads the win streak
// through the evaluator match by match. Upstream order is meaningless; only
// played-at order produces correct streak bonuses.
func ProcessBatch(rules Rules, startStreak int, matches []RawMatch) BatchResult {
	eligible := make([]RawMatch, 0, len(matches))
	for _, m := range matches {
		if m.Eligible() {
			eligible = append(eligible, m)
		}
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		if !eligible[i].PlayedAt.Equal(eligible[j].PlayedAt) {
			return eligible[i].PlayedAt.Before(eligible[j].PlayedAt)
		}
		return eligible[i].ExternalID < eligible[j].ExternalID
	})

	result := BatchResult{
		Effects:     make([]MatchEffect, 0, len(eligible)),
		FinalStreak: startStreak,
	}
	streak := startStreak
	for _, m := range eligible {
		effect := Evaluate(rules, m.Outcome, m.PlayerRating, m.OpponentRating, streak)
		streak = effect.NewStreak
		result.Effects = append(result.Effects, MatchEffect{
			RawMatch:    m,
			ScoreDelta:  effect.ScoreDelta,
			StreakAfter: effect.NewStreak,
			StreakBonus: effect.StreakBonus,
		})
	}
	result.FinalStreak = streak

	return result
}

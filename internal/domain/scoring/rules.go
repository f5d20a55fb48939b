package scoring

import (
	"errors"
	"fmt"
)

// Outcome classifies a finished match from the tracked player's point of view.
type Outcome string

const (
	OutcomeWin  Outcome = "win"
	OutcomeDraw Outcome = "draw"
	OutcomeLoss Outcome = "loss"
)

var AllOutcomes = map[Outcome]struct{}{
	OutcomeWin:  {},
	OutcomeDraw: {},
	OutcomeLoss: {},
}

var ErrInvalidRules = errors.New("invalid scoring rules")

// StreakTier awards Bonus when a new win streak reaches MinStreak. Tiers are
// checked highest first and only the first match fires.
type StreakTier struct {
	MinStreak int
	Bonus     int
}

// Rules stores the trophy calculation parameters. All values are
// configuration with documented defaults, not hard-coded business law.
type Rules struct {
	WinBase               int
	LossBase              int
	RatingBonusPer100     int
	DrawRatingBonusPer100 int
	DrawStreakHoldBonus   int
	DrawStreakHoldMin     int
	StreakTiers           []StreakTier
}

// DefaultRules returns the standard trophy table: 30 per win plus 5 per full
// 100 rating points of a stronger opponent, streak bonuses of 10/20/30 at
// streaks 3/5/8, a flat 20 loss, and draws that hold a streak of 3 or more
// for 5 with a reduced 2-per-100 upset bonus.
func DefaultRules() Rules {
	return Rules{
		WinBase:               30,
		LossBase:              20,
		RatingBonusPer100:     5,
		DrawRatingBonusPer100: 2,
		DrawStreakHoldBonus:   5,
		DrawStreakHoldMin:     3,
		StreakTiers: []StreakTier{
			{MinStreak: 8, Bonus: 30},
			{MinStreak: 5, Bonus: 20},
			{MinStreak: 3, Bonus: 10},
		},
	}
}

func (r Rules) Validate() error {
	if r.WinBase <= 0 {
		return fmt.Errorf("%w: win base must be positive", ErrInvalidRules)
	}
	if r.LossBase <= 0 {
		return fmt.Errorf("%w: loss base must be positive", ErrInvalidRules)
	}
	if r.RatingBonusPer100 < 0 || r.DrawRatingBonusPer100 < 0 {
		return fmt.Errorf("%w: rating bonus units must not be negative", ErrInvalidRules)
	}
	if r.DrawStreakHoldBonus < 0 {
		return fmt.Errorf("%w: draw streak hold bonus must not be negative", ErrInvalidRules)
	}
	if r.DrawStreakHoldMin < 1 {
		return fmt.Errorf("%w: draw streak hold minimum must be at least 1", ErrInvalidRules)
	}

	prev := 0
	for i, tier := range r.StreakTiers {
		if tier.MinStreak < 1 {
			return fmt.Errorf("%w: streak tier %d minimum must be at least 1", ErrInvalidRules, i)
		}
		if tier.Bonus < 0 {
			return fmt.Errorf("%w: streak tier %d bonus must not be negative", ErrInvalidRules, i)
		}
		if i > 0 && tier.MinStreak >= prev {
			return fmt.Errorf("%w: streak tiers must be ordered by descending minimum", ErrInvalidRules)
		}
		prev = tier.MinStreak
	}

	return nil
}

// Effect is the evaluated outcome of a single match.
type Effect struct {
	ScoreDelta  int
	NewStreak   int
	StreakBonus bool
}

// Evaluate turns one finished match plus the current win streak into a score
// delta and the streak that follows it. Pure and deterministic; replaying the
// same inputs always yields the same effect.
func Evaluate(rules Rules, outcome Outcome, playerRating, opponentRating, currentStreak int) Effect {
	switch outcome {
	case OutcomeWin:
		newStreak := currentStreak + 1
		delta := rules.WinBase + ratingBonus(playerRating, opponentRating, rules.RatingBonusPer100)
		bonus := streakTierBonus(rules.StreakTiers, newStreak)
		return Effect{
			ScoreDelta:  delta + bonus,
			NewStreak:   newStreak,
			StreakBonus: bonus > 0,
		}
	case OutcomeLoss:
		// Flat penalty. Ratings and streak never soften a loss.
		return Effect{ScoreDelta: -rules.LossBase, NewStreak: 0}
	default:
		delta := ratingBonus(playerRating, opponentRating, rules.DrawRatingBonusPer100)
		held := currentStreak >= rules.DrawStreakHoldMin
		if held {
			delta += rules.DrawStreakHoldBonus
		}
		return Effect{
			ScoreDelta:  delta,
			NewStreak:   currentStreak,
			StreakBonus: held,
		}
	}
}

// ratingBonus rewards beating (or holding) a stronger opponent. A weaker
// opponent never subtracts.
func ratingBonus(playerRating, opponentRating, unit int) int {
	diff := opponentRating - playerRating
	if diff <= 0 {
		return 0
	}
	return (diff / 100) * unit
}

func streakTierBonus(tiers []StreakTier, newStreak int) int {
	for _, tier := range tiers {
		if newStreak >= tier.MinStreak {
			return tier.Bonus
		}
	}
	return 0
}

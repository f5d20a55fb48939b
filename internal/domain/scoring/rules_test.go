package scoring

import (
	"errors"
	"testing"
)

func TestEvaluate_Win(t *testing.T) {
	t.Parallel()

	rules := DefaultRules()

	tests := []struct {
		name           string
		playerRating   int
		opponentRating int
		streak         int
		wantDelta      int
		wantStreak     int
		wantBonus      bool
	}{
		{
			name:         "plain win against equal opponent",
			playerRating: 1500, opponentRating: 1500, streak: 0,
			wantDelta: 30, wantStreak: 1,
		},
		{
			name:         "upset bonus per full 100 points",
			playerRating: 1500, opponentRating: 1750, streak: 0,
			wantDelta: 30 + 2*5, wantStreak: 1,
		},
		{
			name:         "no penalty against weaker opponent",
			playerRating: 1800, opponentRating: 1200, streak: 0,
			wantDelta: 30, wantStreak: 1,
		},
		{
			name:         "streak two plus win over plus 150 opponent reaches tier three",
			playerRating: 1500, opponentRating: 1650, streak: 2,
			wantDelta: 30 + 5 + 10, wantStreak: 3, wantBonus: true,
		},
		{
			name:         "streak five tier",
			playerRating: 1500, opponentRating: 1500, streak: 4,
			wantDelta: 30 + 20, wantStreak: 5, wantBonus: true,
		},
		{
			name:         "streak eight fires only the highest tier",
			playerRating: 1500, opponentRating: 1500, streak: 7,
			wantDelta: 30 + 30, wantStreak: 8, wantBonus: true,
		},
		{
			name:         "deep streak stays on the highest tier",
			playerRating: 1500, opponentRating: 1500, streak: 11,
			wantDelta: 30 + 30, wantStreak: 12, wantBonus: true,
		},
		{
			name:         "sub 100 difference earns nothing",
			playerRating: 1500, opponentRating: 1599, streak: 0,
			wantDelta: 30, wantStreak: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := Evaluate(rules, OutcomeWin, tt.playerRating, tt.opponentRating, tt.streak)
			if got.ScoreDelta != tt.wantDelta {
				t.Fatalf("delta: got=%d want=%d", got.ScoreDelta, tt.wantDelta)
			}
			if got.NewStreak != tt.wantStreak {
				t.Fatalf("streak: got=%d want=%d", got.NewStreak, tt.wantStreak)
			}
			if got.StreakBonus != tt.wantBonus {
				t.Fatalf("streak bonus flag: got=%v want=%v", got.StreakBonus, tt.wantBonus)
			}
		})
	}
}

func TestEvaluate_LossIsFlatAndBreaksStreak(t *testing.T) {
	t.Parallel()

	rules := DefaultRules()

	for _, streak := range []int{0, 1, 5, 12} {
		got := Evaluate(rules, OutcomeLoss, 1500, 2400, streak)
		if got.ScoreDelta != -20 {
			t.Fatalf("streak=%d delta: got=%d want=-20", streak, got.ScoreDelta)
		}
		if got.NewStreak != 0 {
			t.Fatalf("streak=%d new streak: got=%d want=0", streak, got.NewStreak)
		}
		if got.StreakBonus {
			t.Fatalf("streak=%d loss must not flag a streak bonus", streak)
		}
	}
}

func TestEvaluate_Draw(t *testing.T) {
	t.Parallel()

	rules := DefaultRules()

	tests := []struct {
		name           string
		opponentRating int
		streak         int
		wantDelta      int
		wantBonus      bool
	}{
		{name: "plain draw", opponentRating: 1500, streak: 0, wantDelta: 0},
		{name: "streak below hold minimum", opponentRating: 1500, streak: 2, wantDelta: 0},
		{name: "streak hold bonus", opponentRating: 1500, streak: 3, wantDelta: 5, wantBonus: true},
		{name: "reduced upset unit", opponentRating: 1720, streak: 0, wantDelta: 2 * 2},
		{name: "hold plus upset", opponentRating: 1850, streak: 4, wantDelta: 5 + 3*2, wantBonus: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := Evaluate(rules, OutcomeDraw, 1500, tt.opponentRating, tt.streak)
			if got.ScoreDelta != tt.wantDelta {
				t.Fatalf("delta: got=%d want=%d", got.ScoreDelta, tt.wantDelta)
			}
			if got.NewStreak != tt.streak {
				t.Fatalf("draw changed the streak: got=%d want=%d", got.NewStreak, tt.streak)
			}
			if got.StreakBonus != tt.wantBonus {
				t.Fatalf("streak bonus flag: got=%v want=%v", got.StreakBonus, tt.wantBonus)
			}
		})
	}
}

func TestEvaluate_Deterministic(t *testing.T) {
	t.Parallel()

	rules := DefaultRules()
	first := Evaluate(rules, OutcomeWin, 1432, 1617, 4)
	for i := 0; i < 100; i++ {
		if got := Evaluate(rules, OutcomeWin, 1432, 1617, 4); got != first {
			t.Fatalf("evaluation diverged on run %d: got=%+v want=%+v", i, got, first)
		}
	}
}

func TestRulesValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Rules)
		wantErr bool
	}{
		{name: "defaults are valid", mutate: func(*Rules) {}},
		{name: "zero win base", mutate: func(r *Rules) { r.WinBase = 0 }, wantErr: true},
		{name: "negative loss base", mutate: func(r *Rules) { r.LossBase = -1 }, wantErr: true},
		{name: "negative rating unit", mutate: func(r *Rules) { r.RatingBonusPer100 = -5 }, wantErr: true},
		{name: "zero hold minimum", mutate: func(r *Rules) { r.DrawStreakHoldMin = 0 }, wantErr: true},
		{
			name: "unordered tiers",
			mutate: func(r *Rules) {
				r.StreakTiers = []StreakTier{{MinStreak: 3, Bonus: 10}, {MinStreak: 8, Bonus: 30}}
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rules := DefaultRules()
			tt.mutate(&rules)
			err := rules.Validate()
			if tt.wantErr && !errors.Is(err, ErrInvalidRules) {
				t.Fatalf("expected invalid rules error, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

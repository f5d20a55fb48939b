package scoring

import (
	"testing"
	"time"
)

func rawWin(id string, playedAt time.Time) RawMatch {
	return RawMatch{
		ExternalID:     id,
		Rated:          true,
		Speed:          SpeedBullet,
		Status:         "mate",
		Outcome:        OutcomeWin,
		Side:           SideWhite,
		PlayerRating:   1500,
		OpponentRating: 1500,
		OpponentName:   "rival",
		PlayedAt:       playedAt,
	}
}

func TestProcessBatch_OrdersByPlayedAtBeforeFolding(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	t1 := base
	t2 := base.Add(1 * time.Minute)
	t3 := base.Add(2 * time.Minute)

	// Upstream order t3, t1, t2. With a starting streak of 1 the third match
	// in time order reaches streak 3 and earns the tier bonus; processing in
	// upstream order would hand that bonus to the wrong match.
	matches := []RawMatch{rawWin("g3", t3), rawWin("g1", t1), rawWin("g2", t2)}

	result := ProcessBatch(DefaultRules(), 1, matches)
	if len(result.Effects) != 3 {
		t.Fatalf("effect count: got=%d want=3", len(result.Effects))
	}

	wantOrder := []string{"g1", "g2", "g3"}
	for i, want := range wantOrder {
		if result.Effects[i].ExternalID != want {
			t.Fatalf("position %d: got=%s want=%s", i, result.Effects[i].ExternalID, want)
		}
	}

	if result.Effects[0].ScoreDelta != 30 || result.Effects[0].StreakAfter != 2 {
		t.Fatalf("first effect: got delta=%d streak=%d", result.Effects[0].ScoreDelta, result.Effects[0].StreakAfter)
	}
	if result.Effects[1].ScoreDelta != 40 || result.Effects[1].StreakAfter != 3 || !result.Effects[1].StreakBonus {
		t.Fatalf("second effect should earn the tier bonus: %+v", result.Effects[1])
	}
	if result.Effects[2].ScoreDelta != 30 || result.Effects[2].StreakAfter != 4 {
		t.Fatalf("third effect: got delta=%d streak=%d", result.Effects[2].ScoreDelta, result.Effects[2].StreakAfter)
	}
	if result.FinalStreak != 4 {
		t.Fatalf("final streak: got=%d want=4", result.FinalStreak)
	}
}

func TestProcessBatch_FiltersIneligibleSilently(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	casual := rawWin("casual", at)
	casual.Rated = false

	blitz := rawWin("blitz", at.Add(time.Minute))
	blitz.Speed = "blitz"

	aborted := rawWin("aborted", at.Add(2*time.Minute))
	aborted.Status = StatusAborted

	kept := rawWin("kept", at.Add(3*time.Minute))

	result := ProcessBatch(DefaultRules(), 0, []RawMatch{casual, blitz, aborted, kept})
	if len(result.Effects) != 1 {
		t.Fatalf("effect count: got=%d want=1", len(result.Effects))
	}
	if result.Effects[0].ExternalID != "kept" {
		t.Fatalf("kept the wrong match: %s", result.Effects[0].ExternalID)
	}
	if result.FinalStreak != 1 {
		t.Fatalf("final streak: got=%d want=1", result.FinalStreak)
	}
}

func TestProcessBatch_EmptyInputKeepsStreak(t *testing.T) {
	t.Parallel()

	result := ProcessBatch(DefaultRules(), 6, nil)
	if len(result.Effects) != 0 {
		t.Fatalf("expected no effects, got %d", len(result.Effects))
	}
	if result.FinalStreak != 6 {
		t.Fatalf("final streak: got=%d want=6", result.FinalStreak)
	}
}

func TestProcessBatch_LossResetsStreakMidBatch(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	win1 := rawWin("w1", base)
	loss := rawWin("l1", base.Add(time.Minute))
	loss.Outcome = OutcomeLoss
	win2 := rawWin("w2", base.Add(2*time.Minute))

	result := ProcessBatch(DefaultRules(), 4, []RawMatch{win1, loss, win2})

	if result.Effects[0].StreakAfter != 5 || !result.Effects[0].StreakBonus {
		t.Fatalf("first win should reach streak 5: %+v", result.Effects[0])
	}
	if result.Effects[1].ScoreDelta != -20 || result.Effects[1].StreakAfter != 0 {
		t.Fatalf("loss effect: %+v", result.Effects[1])
	}
	if result.Effects[2].StreakAfter != 1 || result.Effects[2].StreakBonus {
		t.Fatalf("win after loss restarts the streak: %+v", result.Effects[2])
	}
	if result.FinalStreak != 1 {
		t.Fatalf("final streak: got=%d want=1", result.FinalStreak)
	}
}

func TestProcessBatch_TimestampTiesBreakByExternalID(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 3, 3, 12, 0, 0, 0, time.UTC)
	result := ProcessBatch(DefaultRules(), 0, []RawMatch{rawWin("bb", at), rawWin("aa", at)})

	if result.Effects[0].ExternalID != "aa" || result.Effects[1].ExternalID != "bb" {
		t.Fatalf("tie-break order: got=%s,%s", result.Effects[0].ExternalID, result.Effects[1].ExternalID)
	}
}

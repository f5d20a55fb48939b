package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shiroseschnee/bullet-royale/internal/domain/match"
	"github.com/shiroseschnee/bullet-royale/internal/domain/player"
	"github.com/shiroseschnee/bullet-royale/internal/domain/scoring"
	"github.com/shiroseschnee/bullet-royale/internal/infrastructure/repository/memory"
	"github.com/shiroseschnee/bullet-royale/internal/platform/logging"
)

type stubMatchSource struct {
	matches   map[string][]ExternalMatch
	err       error
	errFor    string
	lastSince *time.Time
	calls     int
}

func (s *stubMatchSource) FetchMatches(_ context.Context, username string, since *time.Time) ([]ExternalMatch, error) {
	s.calls++
	s.lastSince = since
	if s.err != nil {
		return nil, s.err
	}
	if s.errFor != "" && s.errFor == username {
		return nil, errors.New("upstream rejected the request")
	}
	return s.matches[username], nil
}

type failingExistsRepo struct {
	match.Repository
	failID string
}

func (r failingExistsRepo) Exists(ctx context.Context, externalID string) (bool, error) {
	if externalID == r.failID {
		return false, errors.New("duplicate check unavailable")
	}
	return r.Repository.Exists(ctx, externalID)
}

// sinceFilteringSource serves only matches played at or after the requested
// window start, the way the real export endpoint treats its since parameter.
type sinceFilteringSource struct {
	matches []ExternalMatch
}

func (s *sinceFilteringSource) FetchMatches(_ context.Context, _ string, since *time.Time) ([]ExternalMatch, error) {
	if since == nil {
		return s.matches, nil
	}
	out := make([]ExternalMatch, 0, len(s.matches))
	for _, m := range s.matches {
		if !m.CreatedAt.Before(*since) {
			out = append(out, m)
		}
	}
	return out, nil
}

var syncTestNow = time.Date(2026, 4, 10, 12, 0, 0, 0, time.UTC)

func bulletMatch(id string, playedAt time.Time, winner string, playerRating, opponentRating int) ExternalMatch {
	return ExternalMatch{
		ID:        id,
		Rated:     true,
		Speed:     "bullet",
		Status:    "mate",
		Winner:    winner,
		White:     ExternalMatchSide{UserID: "shiro", Username: "Shiro", Rating: playerRating},
		Black:     ExternalMatchSide{UserID: "rival", Username: "Rival", Rating: opponentRating},
		CreatedAt: playedAt,
	}
}

func newSyncFixture(t *testing.T, source MatchSource) (*SyncService, *memory.Store) {
	t.Helper()

	store := memory.NewStore()
	if err := store.Players().Create(context.Background(), player.Player{
		ID:        "p1",
		LichessID: "shiro",
		Username:  "Shiro",
		CreatedAt: syncTestNow.Add(-90 * 24 * time.Hour),
	}); err != nil {
		t.Fatalf("seed player: %v", err)
	}

	svc := NewSyncService(store.Players(), store.Matches(), source, scoring.DefaultRules(),
		SyncConfig{InterCallDelay: time.Millisecond}, logging.NewNop())
	svc.now = func() time.Time { return syncTestNow }

	return svc, store
}

func TestSyncService_SyncPlayer_AppliesNetEffect(t *testing.T) {
	t.Parallel()

	base := syncTestNow.Add(-time.Hour)
	source := &stubMatchSource{matches: map[string][]ExternalMatch{
		"Shiro": {
			bulletMatch("g1", base, "white", 1500, 1500),
			bulletMatch("g2", base.Add(time.Minute), "white", 1500, 1650),
			bulletMatch("g3", base.Add(2*time.Minute), "black", 1500, 1500),
		},
	}}
	svc, store := newSyncFixture(t, source)

	result, err := svc.SyncPlayer(context.Background(), "p1")
	if err != nil {
		t.Fatalf("sync player: %v", err)
	}

	// Two wins (30, then 30+5 upset) and a loss (-20).
	if result.NewMatches != 3 || result.ScoreDelta != 45 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.Wins != 2 || result.Draws != 0 || result.Losses != 1 {
		t.Fatalf("unexpected counts: %+v", result)
	}
	if result.FinalStreak != 0 {
		t.Fatalf("final streak: got=%d want=0", result.FinalStreak)
	}

	p, _, _ := store.Players().GetByID(context.Background(), "p1")
	if p.Score != 45 || p.Streak != 0 || p.MaxStreak != 2 {
		t.Fatalf("unexpected player state: score=%d streak=%d max=%d", p.Score, p.Streak, p.MaxStreak)
	}
	if p.SyncedAt == nil || !p.SyncedAt.Equal(base.Add(2*time.Minute)) {
		t.Fatalf("checkpoint should advance to the last played match, got %v", p.SyncedAt)
	}

	recorded, _ := store.Matches().Exists(context.Background(), "g2")
	if !recorded {
		t.Fatal("match g2 should be recorded")
	}
}

func TestSyncService_SyncPlayer_SecondRunIsNoop(t *testing.T) {
	t.Parallel()

	base := syncTestNow.Add(-time.Hour)
	source := &stubMatchSource{matches: map[string][]ExternalMatch{
		"Shiro": {
			bulletMatch("g1", base, "white", 1500, 1500),
			bulletMatch("g2", base.Add(time.Minute), "white", 1500, 1500),
		},
	}}
	svc, store := newSyncFixture(t, source)

	ctx := context.Background()
	if _, err := svc.SyncPlayer(ctx, "p1"); err != nil {
		t.Fatalf("first sync: %v", err)
	}
	before, _, _ := store.Players().GetByID(ctx, "p1")

	second, err := svc.SyncPlayer(ctx, "p1")
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if second.NewMatches != 0 || second.ScoreDelta != 0 {
		t.Fatalf("second run must be a no-op: %+v", second)
	}
	if second.FinalStreak != before.Streak {
		t.Fatalf("second run changed the streak: got=%d want=%d", second.FinalStreak, before.Streak)
	}

	after, _, _ := store.Players().GetByID(ctx, "p1")
	if after.Score != before.Score || after.Streak != before.Streak {
		t.Fatalf("player state changed on idempotent re-run: before=%+v after=%+v", before, after)
	}
	if !after.SyncedAt.Equal(*before.SyncedAt) {
		t.Fatal("checkpoint moved on a zero-match run")
	}
}

func TestSyncService_SyncPlayer_CountsOnlyNewMatches(t *testing.T) {
	t.Parallel()

	base := syncTestNow.Add(-time.Hour)
	first := bulletMatch("g1", base, "white", 1500, 1500)
	second := bulletMatch("g2", base.Add(time.Minute), "white", 1500, 1500)

	source := &stubMatchSource{matches: map[string][]ExternalMatch{"Shiro": {first}}}
	svc, store := newSyncFixture(t, source)

	ctx := context.Background()
	if _, err := svc.SyncPlayer(ctx, "p1"); err != nil {
		t.Fatalf("first sync: %v", err)
	}

	// Upstream now returns the recorded match again plus one new match.
	source.matches["Shiro"] = []ExternalMatch{first, second}

	result, err := svc.SyncPlayer(ctx, "p1")
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if result.NewMatches != 1 || result.Wins != 1 {
		t.Fatalf("only the new match should count: %+v", result)
	}
	if result.ScoreDelta != 30 {
		t.Fatalf("delta: got=%d want=30", result.ScoreDelta)
	}
	if result.FinalStreak != 2 {
		t.Fatalf("streak should thread from the stored state: got=%d want=2", result.FinalStreak)
	}

	p, _, _ := store.Players().GetByID(ctx, "p1")
	if p.Score != 60 || p.Streak != 2 {
		t.Fatalf("unexpected player state: score=%d streak=%d", p.Score, p.Streak)
	}
}

func TestSyncService_SyncPlayer_FetchErrorSurfaces(t *testing.T) {
	t.Parallel()

	source := &stubMatchSource{err: errors.New("upstream down")}
	svc, store := newSyncFixture(t, source)

	_, err := svc.SyncPlayer(context.Background(), "p1")
	if err == nil {
		t.Fatal("expected fetch error to surface")
	}

	p, _, _ := store.Players().GetByID(context.Background(), "p1")
	if p.Score != 0 || p.SyncedAt != nil {
		t.Fatalf("nothing may be written on fetch failure: %+v", p)
	}
}

func TestSyncService_SyncPlayer_SkipsMalformedRecords(t *testing.T) {
	t.Parallel()

	base := syncTestNow.Add(-time.Hour)
	missingRatings := bulletMatch("bad", base, "white", 0, 0)
	stranger := bulletMatch("stranger", base.Add(time.Minute), "white", 1500, 1500)
	stranger.White = ExternalMatchSide{UserID: "somebody", Username: "Somebody", Rating: 1500}
	good := bulletMatch("good", base.Add(2*time.Minute), "white", 1500, 1500)

	source := &stubMatchSource{matches: map[string][]ExternalMatch{
		"Shiro": {missingRatings, stranger, good},
	}}
	svc, _ := newSyncFixture(t, source)

	result, err := svc.SyncPlayer(context.Background(), "p1")
	if err != nil {
		t.Fatalf("sync player: %v", err)
	}
	if result.NewMatches != 1 || result.ScoreDelta != 30 {
		t.Fatalf("only the well-formed match should count: %+v", result)
	}
}

func TestSyncService_SyncPlayer_IneligibleOnlyIsExplicitNoop(t *testing.T) {
	t.Parallel()

	base := syncTestNow.Add(-time.Hour)
	casual := bulletMatch("casual", base, "white", 1500, 1500)
	casual.Rated = false

	source := &stubMatchSource{matches: map[string][]ExternalMatch{"Shiro": {casual}}}
	svc, store := newSyncFixture(t, source)

	result, err := svc.SyncPlayer(context.Background(), "p1")
	if err != nil {
		t.Fatalf("sync player: %v", err)
	}
	if result.NewMatches != 0 {
		t.Fatalf("expected zero new matches: %+v", result)
	}

	p, _, _ := store.Players().GetByID(context.Background(), "p1")
	if p.SyncedAt != nil {
		t.Fatal("no-op run must not touch the checkpoint")
	}
}

func TestSyncService_SyncPlayer_DuplicateCheckFailureSkipsMatch(t *testing.T) {
	t.Parallel()

	base := syncTestNow.Add(-time.Hour)
	source := &stubMatchSource{matches: map[string][]ExternalMatch{
		"Shiro": {
			bulletMatch("flaky", base, "white", 1500, 1500),
			bulletMatch("fine", base.Add(time.Minute), "white", 1500, 1500),
		},
	}}
	svc, store := newSyncFixture(t, source)
	svc.matchRepo = failingExistsRepo{Repository: store.Matches(), failID: "flaky"}

	result, err := svc.SyncPlayer(context.Background(), "p1")
	if err != nil {
		t.Fatalf("sync player: %v", err)
	}
	if result.Skipped != 1 {
		t.Fatalf("skipped: got=%d want=1", result.Skipped)
	}
	if result.NewMatches != 1 {
		t.Fatalf("the unaffected match should still apply: %+v", result)
	}
	if recorded, _ := store.Matches().Exists(context.Background(), "flaky"); recorded {
		t.Fatal("conservatively skipped match must not be recorded")
	}

	p, _, _ := store.Players().GetByID(context.Background(), "p1")
	if p.SyncedAt == nil || !p.SyncedAt.Before(base) {
		t.Fatalf("checkpoint must stop short of the skipped match, got %v", p.SyncedAt)
	}
}

func TestSyncService_SyncPlayer_RecoversMatchAfterDuplicateCheckFailure(t *testing.T) {
	t.Parallel()

	base := syncTestNow.Add(-time.Hour)
	source := &sinceFilteringSource{matches: []ExternalMatch{
		bulletMatch("flaky", base, "white", 1500, 1500),
		bulletMatch("fine", base.Add(time.Minute), "white", 1500, 1500),
	}}
	svc, store := newSyncFixture(t, source)
	svc.matchRepo = failingExistsRepo{Repository: store.Matches(), failID: "flaky"}

	ctx := context.Background()
	first, err := svc.SyncPlayer(ctx, "p1")
	if err != nil {
		t.Fatalf("first sync: %v", err)
	}
	if first.Skipped != 1 || first.NewMatches != 1 {
		t.Fatalf("unexpected first run: %+v", first)
	}

	// Duplicate checks are healthy again on the next run.
	svc.matchRepo = store.Matches()

	second, err := svc.SyncPlayer(ctx, "p1")
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if second.NewMatches != 1 || second.Skipped != 0 {
		t.Fatalf("the skipped match must be picked up: %+v", second)
	}
	if recorded, _ := store.Matches().Exists(ctx, "flaky"); !recorded {
		t.Fatal("recovered match should be recorded")
	}

	p, _, _ := store.Players().GetByID(ctx, "p1")
	if p.SyncedAt == nil || !p.SyncedAt.Equal(base.Add(time.Minute)) {
		t.Fatalf("checkpoint should advance once nothing is outstanding, got %v", p.SyncedAt)
	}
}

func TestSyncService_SyncPlayer_ScoreClampedAtZero(t *testing.T) {
	t.Parallel()

	base := syncTestNow.Add(-time.Hour)
	source := &stubMatchSource{matches: map[string][]ExternalMatch{
		"Shiro": {
			bulletMatch("l1", base, "black", 1500, 1500),
			bulletMatch("l2", base.Add(time.Minute), "black", 1500, 1500),
		},
	}}
	svc, store := newSyncFixture(t, source)

	result, err := svc.SyncPlayer(context.Background(), "p1")
	if err != nil {
		t.Fatalf("sync player: %v", err)
	}
	if result.ScoreDelta != -40 {
		t.Fatalf("raw delta: got=%d want=-40", result.ScoreDelta)
	}

	p, _, _ := store.Players().GetByID(context.Background(), "p1")
	if p.Score != 0 {
		t.Fatalf("stored score must clamp at zero, got %d", p.Score)
	}
}

func TestSyncService_SyncPlayer_NeverSyncedUsesLookbackWindow(t *testing.T) {
	t.Parallel()

	source := &stubMatchSource{}
	svc, _ := newSyncFixture(t, source)

	if _, err := svc.SyncPlayer(context.Background(), "p1"); err != nil {
		t.Fatalf("sync player: %v", err)
	}

	if source.lastSince == nil {
		t.Fatal("expected a bounded lookback window, got nil since")
	}
	want := syncTestNow.Add(-30 * 24 * time.Hour)
	if !source.lastSince.Equal(want) {
		t.Fatalf("since: got=%v want=%v", source.lastSince, want)
	}
}

func TestSyncService_SyncAll_IsolatesPlayerFailures(t *testing.T) {
	t.Parallel()

	base := syncTestNow.Add(-time.Hour)
	source := &stubMatchSource{
		errFor: "Broken",
		matches: map[string][]ExternalMatch{
			"Shiro": {bulletMatch("g1", base, "white", 1500, 1500)},
		},
	}
	svc, store := newSyncFixture(t, source)
	if err := store.Players().Create(context.Background(), player.Player{
		ID:        "p2",
		LichessID: "broken",
		Username:  "Broken",
		CreatedAt: syncTestNow.Add(-time.Hour),
	}); err != nil {
		t.Fatalf("seed second player: %v", err)
	}

	result, err := svc.SyncAll(context.Background())
	if err != nil {
		t.Fatalf("sync all: %v", err)
	}
	if result.Players != 2 || result.Succeeded != 1 || result.Failed != 1 {
		t.Fatalf("unexpected sweep result: %+v", result)
	}
	if result.NewMatches != 1 {
		t.Fatalf("new matches: got=%d want=1", result.NewMatches)
	}
}

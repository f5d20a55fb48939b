package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/shiroseschnee/bullet-royale/internal/domain/match"
	"github.com/shiroseschnee/bullet-royale/internal/domain/player"
	"github.com/shiroseschnee/bullet-royale/internal/domain/scoring"
	"github.com/shiroseschnee/bullet-royale/internal/platform/logging"
	"github.com/shiroseschnee/bullet-royale/internal/platform/resilience"
)

// MatchSource fetches a player's finished matches from the game server.
// It may return fewer matches than exist upstream; completeness is never
// assumed.
type MatchSource interface {
	FetchMatches(ctx context.Context, username string, since *time.Time) ([]ExternalMatch, error)
}

// ExternalMatchSide is one seat of an upstream match.
type ExternalMatchSide struct {
	UserID   string
	Username string
	Rating   int
}

// ExternalMatch is one finished match as the upstream API reports it.
// Winner is "white", "black", or empty for a draw.
type ExternalMatch struct {
	ID        string
	Rated     bool
	Speed     string
	Status    string
	Winner    string
	White     ExternalMatchSide
	Black     ExternalMatchSide
	CreatedAt time.Time
}

// SyncResult summarizes one reconciliation run for one player.
type SyncResult struct {
	PlayerID    string
	NewMatches  int
	ScoreDelta  int
	Wins        int
	Draws       int
	Losses      int
	FinalStreak int
	Skipped     int
}

// SyncAllResult summarizes one sweep over the whole player set.
type SyncAllResult struct {
	Players    int
	Succeeded  int
	Failed     int
	NewMatches int
}

// SyncConfig tunes the reconciliation sweep.
type SyncConfig struct {
	Lookback       time.Duration
	Workers        int
	InterCallDelay time.Duration
}

const (
	defaultSyncLookback       = 30 * 24 * time.Hour
	defaultSyncWorkers        = 2
	defaultSyncInterCallDelay = time.Second
)

// SyncService reconciles player standings against the upstream match
// history. Runs for the same player are serialized; distinct players may
// reconcile in parallel.
type SyncService struct {
	playerRepo player.Repository
	matchRepo  match.Repository
	source     MatchSource
	rules      scoring.Rules
	logger     *logging.Logger
	now        func() time.Time

	lookback       time.Duration
	workers        int
	interCallDelay time.Duration
	perPlayer      resilience.KeyedMutex
}

func NewSyncService(
	playerRepo player.Repository,
	matchRepo match.Repository,
	source MatchSource,
	rules scoring.Rules,
	cfg SyncConfig,
	logger *logging.Logger,
) *SyncService {
	if cfg.Lookback <= 0 {
		cfg.Lookback = defaultSyncLookback
	}
	if cfg.Workers < 1 {
		cfg.Workers = defaultSyncWorkers
	}
	if cfg.InterCallDelay <= 0 {
		cfg.InterCallDelay = defaultSyncInterCallDelay
	}
	if logger == nil {
		logger = logging.Default()
	}

	return &SyncService{
		playerRepo:     playerRepo,
		matchRepo:      matchRepo,
		source:         source,
		rules:          rules,
		logger:         logger,
		now:            time.Now,
		lookback:       cfg.Lookback,
		workers:        cfg.Workers,
		interCallDelay: cfg.InterCallDelay,
	}
}

// SyncPlayer reconciles one player: fetch since the checkpoint, drop
// ineligible and malformed records, dedupe against recorded matches, fold the
// scoring rules over what is left, and apply the aggregate atomically. Zero
// new matches is an explicit no-op that leaves the row untouched.
func (s *SyncService) SyncPlayer(ctx context.Context, playerID string) (SyncResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.SyncService.SyncPlayer")
	defer span.End()

	playerID = strings.TrimSpace(playerID)
	if playerID == "" {
		return SyncResult{}, fmt.Errorf("%w: player id is required", ErrInvalidInput)
	}

	unlock := s.perPlayer.Lock(playerID)
	defer unlock()

	p, exists, err := s.playerRepo.GetByID(ctx, playerID)
	if err != nil {
		return SyncResult{}, fmt.Errorf("get player for sync: %w", err)
	}
	if !exists {
		return SyncResult{}, fmt.Errorf("%w: player=%s", ErrNotFound, playerID)
	}

	since := s.now().UTC().Add(-s.lookback)
	if p.SyncedAt != nil {
		since = *p.SyncedAt
	}

	upstream, err := s.source.FetchMatches(ctx, p.Username, &since)
	if err != nil {
		return SyncResult{}, fmt.Errorf("fetch matches player=%s: %w", p.Username, err)
	}

	result := SyncResult{PlayerID: p.ID, FinalStreak: p.Streak}

	candidates := make([]scoring.RawMatch, 0, len(upstream))
	for _, em := range upstream {
		raw, cerr := classifyMatch(p, em)
		if cerr != nil {
			s.logger.WarnContext(ctx, "skipping malformed match record",
				"player_id", p.ID, "match_id", em.ID, "error", cerr)
			continue
		}
		if !raw.Eligible() {
			continue
		}
		candidates = append(candidates, raw)
	}

	fresh := make([]scoring.RawMatch, 0, len(candidates))
	var checkpoint, firstSkipped time.Time
	for _, raw := range candidates {
		recorded, derr := s.matchRepo.Exists(ctx, raw.ExternalID)
		if derr != nil {
			// Unknown means risk of double-counting; leave the match out
			// but remember when it was played so the checkpoint cannot
			// pass it and lose it for good.
			s.logger.WarnContext(ctx, "duplicate check failed, skipping match",
				"player_id", p.ID, "match_id", raw.ExternalID, "error", derr)
			result.Skipped++
			if firstSkipped.IsZero() || raw.PlayedAt.Before(firstSkipped) {
				firstSkipped = raw.PlayedAt
			}
			continue
		}
		if raw.PlayedAt.After(checkpoint) {
			checkpoint = raw.PlayedAt
		}
		if recorded {
			continue
		}
		fresh = append(fresh, raw)
	}
	if !firstSkipped.IsZero() && !checkpoint.Before(firstSkipped) {
		// The next window must refetch the skipped match, so the
		// checkpoint stops just short of it.
		checkpoint = firstSkipped.Add(-time.Millisecond)
	}

	if len(fresh) == 0 {
		return result, nil
	}

	batch := scoring.ProcessBatch(s.rules, p.Streak, fresh)

	records := make([]match.Record, 0, len(batch.Effects))
	for _, effect := range batch.Effects {
		switch effect.Outcome {
		case scoring.OutcomeWin:
			result.Wins++
		case scoring.OutcomeDraw:
			result.Draws++
		case scoring.OutcomeLoss:
			result.Losses++
		}
		result.ScoreDelta += effect.ScoreDelta
		records = append(records, match.Record{
			ExternalID:     effect.ExternalID,
			PlayerID:       p.ID,
			Side:           effect.Side,
			Outcome:        effect.Outcome,
			PlayerRating:   effect.PlayerRating,
			OpponentName:   effect.OpponentName,
			OpponentRating: effect.OpponentRating,
			ScoreDelta:     effect.ScoreDelta,
			StreakAfter:    effect.StreakAfter,
			PlayedAt:       effect.PlayedAt,
		})
	}
	result.NewMatches = len(records)
	result.FinalStreak = batch.FinalStreak

	netEffect := player.NetEffect{
		ScoreDelta:  result.ScoreDelta,
		FinalStreak: batch.FinalStreak,
		Wins:        result.Wins,
		Draws:       result.Draws,
		Losses:      result.Losses,
		Checkpoint:  checkpoint,
		Records:     records,
	}
	if err := s.playerRepo.ApplyNetEffect(ctx, p.ID, netEffect); err != nil {
		return SyncResult{}, fmt.Errorf("apply net effect player=%s: %w", p.ID, err)
	}

	s.logger.InfoContext(ctx, "player reconciled",
		"player_id", p.ID,
		"new_matches", result.NewMatches,
		"score_delta", result.ScoreDelta,
		"final_streak", result.FinalStreak,
	)

	return result, nil
}

// SyncAll reconciles every registered player through a worker pool. A shared
// ticker spaces upstream calls to respect API quotas, and one player failing
// never stops the sweep.
func (s *SyncService) SyncAll(ctx context.Context) (SyncAllResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.SyncService.SyncAll")
	defer span.End()

	players, err := s.playerRepo.List(ctx)
	if err != nil {
		return SyncAllResult{}, fmt.Errorf("list players for sync sweep: %w", err)
	}
	if len(players) == 0 {
		return SyncAllResult{}, nil
	}

	pool, err := ants.NewPool(s.workers)
	if err != nil {
		return SyncAllResult{}, fmt.Errorf("create sync worker pool: %w", err)
	}
	defer pool.Release()

	limiter := time.NewTicker(s.interCallDelay)
	defer limiter.Stop()

	var wg sync.WaitGroup
	var succeeded, failed, newMatches atomic.Int64

	for _, item := range players {
		p := item
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()

			select {
			case <-ctx.Done():
				failed.Add(1)
				return
			case <-limiter.C:
			}

			res, syncErr := s.SyncPlayer(ctx, p.ID)
			if syncErr != nil {
				failed.Add(1)
				s.logger.WarnContext(ctx, "player sync failed",
					"player_id", p.ID, "username", p.Username, "error", syncErr)
				return
			}
			succeeded.Add(1)
			newMatches.Add(int64(res.NewMatches))
		})
		if submitErr != nil {
			wg.Done()
			failed.Add(1)
			s.logger.WarnContext(ctx, "submit sync task", "player_id", p.ID, "error", submitErr)
		}
	}
	wg.Wait()

	out := SyncAllResult{
		Players:    len(players),
		Succeeded:  int(succeeded.Load()),
		Failed:     int(failed.Load()),
		NewMatches: int(newMatches.Load()),
	}
	s.logger.InfoContext(ctx, "sync sweep finished",
		"players", out.Players, "succeeded", out.Succeeded,
		"failed", out.Failed, "new_matches", out.NewMatches,
	)

	return out, nil
}

// classifyMatch resolves which seat the tracked player occupied and derives
// the outcome from the winner field. Records missing identity, ratings, or a
// timestamp are malformed.
func classifyMatch(p player.Player, em ExternalMatch) (scoring.RawMatch, error) {
	if em.ID == "" {
		return scoring.RawMatch{}, fmt.Errorf("missing external match id")
	}
	if em.CreatedAt.IsZero() {
		return scoring.RawMatch{}, fmt.Errorf("missing match timestamp")
	}

	var seat, opponent ExternalMatchSide
	var side string
	switch {
	case sideMatches(em.White, p):
		seat, opponent, side = em.White, em.Black, scoring.SideWhite
	case sideMatches(em.Black, p):
		seat, opponent, side = em.Black, em.White, scoring.SideBlack
	default:
		return scoring.RawMatch{}, fmt.Errorf("player %s is not part of the match", p.Username)
	}

	if seat.Rating <= 0 || opponent.Rating <= 0 {
		return scoring.RawMatch{}, fmt.Errorf("missing ratings")
	}

	var outcome scoring.Outcome
	switch em.Winner {
	case "":
		outcome = scoring.OutcomeDraw
	case side:
		outcome = scoring.OutcomeWin
	case scoring.SideWhite, scoring.SideBlack:
		outcome = scoring.OutcomeLoss
	default:
		return scoring.RawMatch{}, fmt.Errorf("unrecognized winner value %q", em.Winner)
	}

	opponentName := opponent.Username
	if opponentName == "" {
		opponentName = "Anonymous"
	}

	return scoring.RawMatch{
		ExternalID:     em.ID,
		Rated:          em.Rated,
		Speed:          em.Speed,
		Status:         em.Status,
		Outcome:        outcome,
		Side:           side,
		PlayerRating:   seat.Rating,
		OpponentRating: opponent.Rating,
		OpponentName:   opponentName,
		PlayedAt:       em.CreatedAt,
	}, nil
}

func sideMatches(side ExternalMatchSide, p player.Player) bool {
	if side.UserID != "" && strings.EqualFold(side.UserID, p.LichessID) {
		return true
	}
	return side.Username != "" && strings.EqualFold(side.Username, p.Username)
}

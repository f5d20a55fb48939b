package usecase

import (
	"context"
	"fmt"

	"github.com/shiroseschnee/bullet-royale/internal/domain/player"
	"github.com/shiroseschnee/bullet-royale/internal/platform/cache"
)

const (
	defaultLeaderboardLimit = 50
	maxLeaderboardLimit     = 200
)

// LeaderboardService serves the live standings, optionally behind a short
// TTL cache so a hot leaderboard page does not hammer the database.
type LeaderboardService struct {
	playerRepo player.Repository
	store      *cache.Store
}

func NewLeaderboardService(playerRepo player.Repository, store *cache.Store) *LeaderboardService {
	return &LeaderboardService{
		playerRepo: playerRepo,
		store:      store,
	}
}

func (s *LeaderboardService) Standings(ctx context.Context, limit int) ([]player.Standing, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.LeaderboardService.Standings")
	defer span.End()

	if limit <= 0 {
		limit = defaultLeaderboardLimit
	}
	if limit > maxLeaderboardLimit {
		limit = maxLeaderboardLimit
	}

	if s.store == nil {
		return s.load(ctx, limit)
	}

	key := fmt.Sprintf("leaderboard:top:%d", limit)
	value, err := s.store.GetOrLoad(ctx, key, func(ctx context.Context) (any, error) {
		return s.load(ctx, limit)
	})
	if err != nil {
		return nil, err
	}

	standings, ok := value.([]player.Standing)
	if !ok {
		return s.load(ctx, limit)
	}
	return standings, nil
}

func (s *LeaderboardService) load(ctx context.Context, limit int) ([]player.Standing, error) {
	standings, err := s.playerRepo.ListStandings(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list standings: %w", err)
	}
	return standings, nil
}

package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/shiroseschnee/bullet-royale/internal/domain/match"
	"github.com/shiroseschnee/bullet-royale/internal/domain/player"
	"github.com/sourcegraph/conc/pool"
)

const (
	defaultRecentMatchLimit = 20
	maxRecentMatchLimit     = 100
)

// PlayerProfile is one player with their live rank and recent matches.
type PlayerProfile struct {
	player.Player
	Rank          int
	RecentMatches []match.Record
}

type PlayerService struct {
	playerRepo player.Repository
	matchRepo  match.Repository
}

func NewPlayerService(playerRepo player.Repository, matchRepo match.Repository) *PlayerService {
	return &PlayerService{
		playerRepo: playerRepo,
		matchRepo:  matchRepo,
	}
}

func (s *PlayerService) ProfileByUsername(ctx context.Context, username string, matchLimit int) (PlayerProfile, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.PlayerService.ProfileByUsername")
	defer span.End()

	username = strings.TrimSpace(username)
	if username == "" {
		return PlayerProfile{}, fmt.Errorf("%w: username is required", ErrInvalidInput)
	}

	p, exists, err := s.playerRepo.GetByUsername(ctx, username)
	if err != nil {
		return PlayerProfile{}, fmt.Errorf("get player by username: %w", err)
	}
	if !exists {
		return PlayerProfile{}, fmt.Errorf("%w: player=%s", ErrNotFound, username)
	}

	return s.assembleProfile(ctx, p, matchLimit)
}

func (s *PlayerService) ProfileByID(ctx context.Context, playerID string, matchLimit int) (PlayerProfile, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.PlayerService.ProfileByID")
	defer span.End()

	playerID = strings.TrimSpace(playerID)
	if playerID == "" {
		return PlayerProfile{}, fmt.Errorf("%w: player id is required", ErrInvalidInput)
	}

	p, exists, err := s.playerRepo.GetByID(ctx, playerID)
	if err != nil {
		return PlayerProfile{}, fmt.Errorf("get player: %w", err)
	}
	if !exists {
		return PlayerProfile{}, fmt.Errorf("%w: player=%s", ErrNotFound, playerID)
	}

	return s.assembleProfile(ctx, p, matchLimit)
}

func (s *PlayerService) RecentMatches(ctx context.Context, username string, limit int) ([]match.Record, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.PlayerService.RecentMatches")
	defer span.End()

	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", ErrInvalidInput)
	}

	p, exists, err := s.playerRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("get player by username: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: player=%s", ErrNotFound, username)
	}

	records, err := s.matchRepo.ListByPlayer(ctx, p.ID, clampMatchLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list recent matches: %w", err)
	}
	return records, nil
}

// assembleProfile loads the rank and the recent match list concurrently;
// both queries are independent reads.
func (s *PlayerService) assembleProfile(ctx context.Context, p player.Player, matchLimit int) (PlayerProfile, error) {
	profile := PlayerProfile{Player: p}

	group := pool.New().WithErrors().WithContext(ctx)
	group.Go(func(ctx context.Context) error {
		rank, ranked, err := s.playerRepo.Rank(ctx, p.ID)
		if err != nil {
			return fmt.Errorf("get player rank: %w", err)
		}
		if ranked {
			profile.Rank = rank
		}
		return nil
	})
	group.Go(func(ctx context.Context) error {
		records, err := s.matchRepo.ListByPlayer(ctx, p.ID, clampMatchLimit(matchLimit))
		if err != nil {
			return fmt.Errorf("list recent matches: %w", err)
		}
		profile.RecentMatches = records
		return nil
	})
	if err := group.Wait(); err != nil {
		return PlayerProfile{}, err
	}

	return profile, nil
}

func clampMatchLimit(limit int) int {
	if limit <= 0 {
		return defaultRecentMatchLimit
	}
	if limit > maxRecentMatchLimit {
		return maxRecentMatchLimit
	}
	return limit
}

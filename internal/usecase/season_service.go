package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/shiroseschnee/bullet-royale/internal/domain/season"
	"github.com/shiroseschnee/bullet-royale/internal/platform/logging"
)

// SeasonService exposes the active season, archived rankings, and the
// rotation entry point. Rotation atomicity lives in the repository; this
// layer owns timing and reporting.
type SeasonService struct {
	seasonRepo season.Repository
	logger     *logging.Logger
	now        func() time.Time
}

func NewSeasonService(seasonRepo season.Repository, logger *logging.Logger) *SeasonService {
	if logger == nil {
		logger = logging.Default()
	}
	return &SeasonService{
		seasonRepo: seasonRepo,
		logger:     logger,
		now:        time.Now,
	}
}

func (s *SeasonService) Current(ctx context.Context) (season.Season, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.SeasonService.Current")
	defer span.End()

	active, exists, err := s.seasonRepo.Active(ctx)
	if err != nil {
		return season.Season{}, fmt.Errorf("get active season: %w", err)
	}
	if !exists {
		return season.Season{}, season.ErrNoActiveSeason
	}

	return active, nil
}

// Rotate closes the active season and opens the next one in a single
// transaction, returning the new season number. ErrNoActiveSeason aborts with
// nothing written.
func (s *SeasonService) Rotate(ctx context.Context) (int, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.SeasonService.Rotate")
	defer span.End()

	number, err := s.seasonRepo.Rotate(ctx, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("rotate season: %w", err)
	}

	s.logger.InfoContext(ctx, "season rotated", "new_season", number)
	return number, nil
}

func (s *SeasonService) Rankings(ctx context.Context, number int) ([]season.Ranking, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.SeasonService.Rankings")
	defer span.End()

	if number < 1 {
		return nil, fmt.Errorf("%w: season number must be positive", ErrInvalidInput)
	}

	_, exists, err := s.seasonRepo.GetByNumber(ctx, number)
	if err != nil {
		return nil, fmt.Errorf("get season: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: season=%d", ErrNotFound, number)
	}

	rankings, err := s.seasonRepo.ListRankings(ctx, number)
	if err != nil {
		return nil, fmt.Errorf("list season rankings: %w", err)
	}

	return rankings, nil
}

package usecase

import (
	"context"
	"time"

	"github.com/shiroseschnee/bullet-royale/internal/platform/logging"
)

// OrchestratorConfig tunes the background loops.
type OrchestratorConfig struct {
	SyncInterval  time.Duration
	RotationCheck time.Duration
}

// OrchestratorService drives the periodic work: the reconciliation sweep on a
// fixed interval and the season rotation at each UTC month boundary. Loop
// failures are logged and the loops keep going; only context cancellation
// stops them.
type OrchestratorService struct {
	syncSvc   *SyncService
	seasonSvc *SeasonService
	cfg       OrchestratorConfig
	logger    *logging.Logger
	now       func() time.Time
}

func NewOrchestratorService(
	syncSvc *SyncService,
	seasonSvc *SeasonService,
	cfg OrchestratorConfig,
	logger *logging.Logger,
) *OrchestratorService {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.SyncInterval <= 0 {
		cfg.SyncInterval = 5 * time.Minute
	}
	if cfg.RotationCheck <= 0 {
		cfg.RotationCheck = time.Minute
	}

	return &OrchestratorService{
		syncSvc:   syncSvc,
		seasonSvc: seasonSvc,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// Run blocks until ctx is cancelled.
func (s *OrchestratorService) Run(ctx context.Context) {
	go s.runSyncLoop(ctx)
	s.runRotationLoop(ctx)
}

func (s *OrchestratorService) runSyncLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.syncSvc.SyncAll(ctx); err != nil {
				s.logger.ErrorContext(ctx, "sync sweep failed", "error", err)
			}
		}
	}
}

// runRotationLoop waits for the next first-of-month instant in UTC and fires
// the rotation once per boundary. A short re-check interval keeps the loop
// honest across clock adjustments and long suspends.
func (s *OrchestratorService) runRotationLoop(ctx context.Context) {
	next := nextMonthStart(s.now().UTC())

	ticker := time.NewTicker(s.cfg.RotationCheck)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := s.now().UTC()
			if now.Before(next) {
				continue
			}
			if _, err := s.seasonSvc.Rotate(ctx); err != nil {
				s.logger.ErrorContext(ctx, "season rotation failed", "error", err)
			}
			next = nextMonthStart(now)
		}
	}
}

func nextMonthStart(now time.Time) time.Time {
	year, month, _ := now.Date()
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
}

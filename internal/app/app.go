package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/shiroseschnee/bullet-royale/external/lichess"
	"github.com/shiroseschnee/bullet-royale/internal/config"
	"github.com/shiroseschnee/bullet-royale/internal/domain/scoring"
	"github.com/shiroseschnee/bullet-royale/internal/infrastructure/repository/postgres"
	"github.com/shiroseschnee/bullet-royale/internal/interfaces/httpapi"
	"github.com/shiroseschnee/bullet-royale/internal/platform/cache"
	"github.com/shiroseschnee/bullet-royale/internal/platform/id"
	"github.com/shiroseschnee/bullet-royale/internal/platform/logging"
	"github.com/shiroseschnee/bullet-royale/internal/platform/resilience"
	"github.com/shiroseschnee/bullet-royale/internal/usecase"
	"github.com/uptrace/opentelemetry-go-extra/otelsql"
	"github.com/uptrace/opentelemetry-go-extra/otelsqlx"
	"go.opentelemetry.io/otel/attribute"
)

const janitorInterval = time.Minute

// Application owns the wired object graph: database, upstream client, caches,
// services, and the HTTP router.
type Application struct {
	Config       config.Config
	Logger       *logging.Logger
	DB           *sqlx.DB
	Router       http.Handler
	SyncService  *usecase.SyncService
	Orchestrator *usecase.OrchestratorService

	stateCache       *cache.Store
	sessionCache     *cache.Store
	leaderboardCache *cache.Store
}

func New(ctx context.Context, cfg config.Config, logger *logging.Logger) (*Application, error) {
	if logger == nil {
		logger = logging.Default()
	}

	rules := scoring.DefaultRules()
	rules.WinBase = cfg.TrophyWinBase
	rules.LossBase = cfg.TrophyLossBase
	rules.RatingBonusPer100 = cfg.TrophyRatingBonusPer100
	rules.DrawRatingBonusPer100 = cfg.TrophyDrawRatingBonusPer100
	rules.DrawStreakHoldBonus = cfg.TrophyDrawStreakHoldBonus
	if err := rules.Validate(); err != nil {
		return nil, fmt.Errorf("scoring rules: %w", err)
	}

	db, err := connectDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := postgres.EnsureActiveSeason(ctx, db, time.Now().UTC()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure active season: %w", err)
	}

	playerRepo := postgres.NewPlayerRepository(db)
	matchRepo := postgres.NewMatchRepository(db)
	seasonRepo := postgres.NewSeasonRepository(db)

	lichessClient := lichess.NewClient(lichess.ClientConfig{
		BaseURL:     cfg.LichessBaseURL,
		ClientID:    cfg.LichessClientID,
		RedirectURL: cfg.LichessRedirectURL,
		MaxGames:    cfg.LichessMaxGames,
		Timeout:     cfg.LichessTimeout,
		MaxRetries:  cfg.LichessMaxRetries,
		Logger:      logger,
		CircuitBreaker: resilience.CircuitBreakerConfig{
			Enabled:          cfg.LichessCircuitEnabled,
			FailureThreshold: cfg.LichessCircuitFailureCount,
			OpenTimeout:      cfg.LichessCircuitOpenTimeout,
			HalfOpenMaxReq:   cfg.LichessCircuitHalfOpenMaxReq,
		},
	})

	stateCache := cache.NewStore(cfg.OAuthStateTTL)
	sessionCache := cache.NewStore(cfg.SessionTTL)
	var leaderboardCache *cache.Store
	if cfg.CacheEnabled {
		leaderboardCache = cache.NewStore(cfg.CacheTTL)
	}

	syncService := usecase.NewSyncService(playerRepo, matchRepo, lichessClient, rules, usecase.SyncConfig{
		Lookback:       cfg.SyncLookback,
		Workers:        cfg.SyncWorkers,
		InterCallDelay: cfg.SyncPlayerDelay,
	}, logger)
	seasonService := usecase.NewSeasonService(seasonRepo, logger)
	orchestrator := usecase.NewOrchestratorService(syncService, seasonService, usecase.OrchestratorConfig{
		SyncInterval: cfg.SyncInterval,
	}, logger)
	authService := usecase.NewAuthService(
		playerRepo, lichessClient, stateCache, sessionCache,
		id.NewRandomGenerator(), syncService, logger,
	)
	handler := httpapi.NewHandler(
		authService,
		usecase.NewLeaderboardService(playerRepo, leaderboardCache),
		usecase.NewPlayerService(playerRepo, matchRepo),
		seasonService,
		syncService,
		cfg.FrontendURL,
		logger,
	)
	router := httpapi.NewRouter(handler, httpapi.RouterConfig{
		Sessions:         authService,
		Logger:           logger,
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		InternalJobToken: cfg.InternalJobToken,
	})

	return &Application{
		Config:           cfg,
		Logger:           logger,
		DB:               db,
		Router:           router,
		SyncService:      syncService,
		Orchestrator:     orchestrator,
		stateCache:       stateCache,
		sessionCache:     sessionCache,
		leaderboardCache: leaderboardCache,
	}, nil
}

// StartBackground launches the cache janitors, the periodic reconciliation
// sweep, and the month-boundary season rotation. Everything stops when ctx is
// cancelled.
func (a *Application) StartBackground(ctx context.Context) {
	a.stateCache.StartJanitor(ctx, janitorInterval)
	a.sessionCache.StartJanitor(ctx, janitorInterval)
	if a.leaderboardCache != nil {
		a.leaderboardCache.StartJanitor(ctx, janitorInterval)
	}

	go a.Orchestrator.Run(ctx)
}

func (a *Application) Close() error {
	return a.DB.Close()
}

func connectDB(ctx context.Context, cfg config.Config) (*sqlx.DB, error) {
	dsn := normalizeDBURL(cfg.DBURL, cfg.DBDisablePreparedBinary)

	db, err := otelsqlx.Open("postgres", dsn,
		otelsql.WithAttributes(attribute.String("db.system", "postgresql")),
		otelsql.WithDBName(dbNameFromURL(cfg.DBURL)),
		otelsql.WithQueryFormatter(formatDBQueryForTrace),
	)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return db, nil
}

package httpapi

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shiroseschnee/bullet-royale/internal/domain/match"
	"github.com/shiroseschnee/bullet-royale/internal/domain/player"
	"github.com/shiroseschnee/bullet-royale/internal/domain/season"
	"github.com/shiroseschnee/bullet-royale/internal/platform/logging"
	"github.com/shiroseschnee/bullet-royale/internal/usecase"
)

type Handler struct {
	authService        *usecase.AuthService
	leaderboardService *usecase.LeaderboardService
	playerService      *usecase.PlayerService
	seasonService      *usecase.SeasonService
	syncService        *usecase.SyncService
	frontendURL        string
	logger             *logging.Logger
	validator          *validator.Validate
}

func NewHandler(
	authService *usecase.AuthService,
	leaderboardService *usecase.LeaderboardService,
	playerService *usecase.PlayerService,
	seasonService *usecase.SeasonService,
	syncService *usecase.SyncService,
	frontendURL string,
	logger *logging.Logger,
) *Handler {
	if logger == nil {
		logger = logging.Default()
	}

	return &Handler{
		authService:        authService,
		leaderboardService: leaderboardService,
		playerService:      playerService,
		seasonService:      seasonService,
		syncService:        syncService,
		frontendURL:        frontendURL,
		logger:             logger,
		validator:          validator.New(),
	}
}

func (h *Handler) validateRequest(ctx context.Context, payload any) error {
	ctx, span := startSpan(ctx, "httpapi.Handler.validateRequest")
	defer span.End()

	if err := h.validator.StructCtx(ctx, payload); err != nil {
		return fmt.Errorf("%w: validation failed: %v", usecase.ErrInvalidInput, err)
	}

	return nil
}

type listQuery struct {
	Limit int `validate:"gte=0,lte=1000"`
}

type playerDTO struct {
	ID          string `json:"id"`
	LichessID   string `json:"lichessId"`
	Username    string `json:"username"`
	Score       int    `json:"score"`
	Streak      int    `json:"streak"`
	MaxStreak   int    `json:"maxStreak"`
	Wins        int    `json:"wins"`
	Draws       int    `json:"draws"`
	Losses      int    `json:"losses"`
	GamesPlayed int    `json:"gamesPlayed"`
	SyncedAt    string `json:"syncedAt,omitempty"`
	CreatedAt   string `json:"createdAt"`
}

type standingDTO struct {
	Rank int `json:"rank"`
	playerDTO
}

type profileDTO struct {
	playerDTO
	Rank          int        `json:"rank"`
	RecentMatches []matchDTO `json:"recentMatches"`
}

type matchDTO struct {
	ExternalID     string `json:"externalId"`
	Side           string `json:"side"`
	Outcome        string `json:"outcome"`
	PlayerRating   int    `json:"playerRating"`
	OpponentName   string `json:"opponentName"`
	OpponentRating int    `json:"opponentRating"`
	ScoreDelta     int    `json:"scoreDelta"`
	StreakAfter    int    `json:"streakAfter"`
	PlayedAt       string `json:"playedAt"`
}

type seasonDTO struct {
	Number    int    `json:"number"`
	StartedAt string `json:"startedAt"`
	EndedAt   string `json:"endedAt,omitempty"`
	Active    bool   `json:"active"`
}

type rankingDTO struct {
	SeasonNumber int    `json:"seasonNumber"`
	PlayerID     string `json:"playerId"`
	Username     string `json:"username"`
	Rank         int    `json:"rank"`
	Score        int    `json:"score"`
	MaxStreak    int    `json:"maxStreak"`
	Wins         int    `json:"wins"`
	Draws        int    `json:"draws"`
	Losses       int    `json:"losses"`
}

type syncResultDTO struct {
	PlayerID    string `json:"playerId"`
	NewMatches  int    `json:"newMatches"`
	ScoreDelta  int    `json:"scoreDelta"`
	Wins        int    `json:"wins"`
	Draws       int    `json:"draws"`
	Losses      int    `json:"losses"`
	FinalStreak int    `json:"finalStreak"`
	Skipped     int    `json:"skipped"`
}

type syncSweepDTO struct {
	Players    int `json:"players"`
	Succeeded  int `json:"succeeded"`
	Failed     int `json:"failed"`
	NewMatches int `json:"newMatches"`
}

func playerToDTO(v player.Player) playerDTO {
	return playerDTO{
		ID:          v.ID,
		LichessID:   v.LichessID,
		Username:    v.Username,
		Score:       v.Score,
		Streak:      v.Streak,
		MaxStreak:   v.MaxStreak,
		Wins:        v.Wins,
		Draws:       v.Draws,
		Losses:      v.Losses,
		GamesPlayed: v.GamesPlayed(),
		SyncedAt:    formatOptionalTime(v.SyncedAt),
		CreatedAt:   v.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func profileToDTO(v usecase.PlayerProfile) profileDTO {
	recent := make([]matchDTO, 0, len(v.RecentMatches))
	for _, record := range v.RecentMatches {
		recent = append(recent, matchToDTO(record))
	}
	return profileDTO{
		playerDTO:     playerToDTO(v.Player),
		Rank:          v.Rank,
		RecentMatches: recent,
	}
}

func matchToDTO(v match.Record) matchDTO {
	return matchDTO{
		ExternalID:     v.ExternalID,
		Side:           v.Side,
		Outcome:        string(v.Outcome),
		PlayerRating:   v.PlayerRating,
		OpponentName:   v.OpponentName,
		OpponentRating: v.OpponentRating,
		ScoreDelta:     v.ScoreDelta,
		StreakAfter:    v.StreakAfter,
		PlayedAt:       v.PlayedAt.UTC().Format(time.RFC3339),
	}
}

func seasonToDTO(v season.Season) seasonDTO {
	return seasonDTO{
		Number:    v.Number,
		StartedAt: v.StartedAt.UTC().Format(time.RFC3339),
		EndedAt:   formatOptionalTime(v.EndedAt),
		Active:    v.Active,
	}
}

func rankingToDTO(v season.Ranking) rankingDTO {
	return rankingDTO{
		SeasonNumber: v.SeasonNumber,
		PlayerID:     v.PlayerID,
		Username:     v.Username,
		Rank:         v.Rank,
		Score:        v.Score,
		MaxStreak:    v.MaxStreak,
		Wins:         v.Wins,
		Draws:        v.Draws,
		Losses:       v.Losses,
	}
}

func syncResultToDTO(v usecase.SyncResult) syncResultDTO {
	return syncResultDTO{
		PlayerID:    v.PlayerID,
		NewMatches:  v.NewMatches,
		ScoreDelta:  v.ScoreDelta,
		Wins:        v.Wins,
		Draws:       v.Draws,
		Losses:      v.Losses,
		FinalStreak: v.FinalStreak,
		Skipped:     v.Skipped,
	}
}

func formatOptionalTime(v *time.Time) string {
	if v == nil || v.IsZero() {
		return ""
	}
	return v.UTC().Format(time.RFC3339)
}

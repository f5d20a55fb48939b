package postgres

import (
	"time"

	"github.com/shiroseschnee/bullet-royale/internal/domain/season"
)

type seasonTableModel struct {
	Number    int        `db:"number"`
	StartedAt time.Time  `db:"started_at"`
	EndedAt   *time.Time `db:"ended_at"`
	Active    bool       `db:"active"`
}

type seasonRankingTableModel struct {
	SeasonNumber int    `db:"season_number"`
	PlayerID     string `db:"player_id"`
	Username     string `db:"username"`
	Rank         int    `db:"rank"`
	Score        int    `db:"score"`
	MaxStreak    int    `db:"max_streak"`
	Wins         int    `db:"wins"`
	Draws        int    `db:"draws"`
	Losses       int    `db:"losses"`
}

func (m seasonTableModel) toDomain() season.Season {
	return season.Season{
		Number:    m.Number,
		StartedAt: m.StartedAt,
		EndedAt:   m.EndedAt,
		Active:    m.Active,
	}
}

func (m seasonRankingTableModel) toDomain() season.Ranking {
	return season.Ranking{
		SeasonNumber: m.SeasonNumber,
		PlayerID:     m.PlayerID,
		Username:     m.Username,
		Rank:         m.Rank,
		Score:        m.Score,
		MaxStreak:    m.MaxStreak,
		Wins:         m.Wins,
		Draws:        m.Draws,
		Losses:       m.Losses,
	}
}

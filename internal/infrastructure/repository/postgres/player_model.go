package postgres

import (
	"time"

	"github.com/shiroseschnee/bullet-royale/internal/domain/player"
)

type playerTableModel struct {
	ID        string     `db:"id"`
	LichessID string     `db:"lichess_id"`
	Username  string     `db:"username"`
	Score     int        `db:"score"`
	Streak    int        `db:"streak"`
	MaxStreak int        `db:"max_streak"`
	Wins      int        `db:"wins"`
	Draws     int        `db:"draws"`
	Losses    int        `db:"losses"`
	SyncedAt  *time.Time `db:"synced_at"`
	CreatedAt time.Time  `db:"created_at"`
	UpdatedAt time.Time  `db:"updated_at"`
}

type standingTableModel struct {
	Rank int `db:"rank"`
	playerTableModel
}

func (m playerTableModel) toDomain() player.Player {
	return player.Player{
		ID:        m.ID,
		LichessID: m.LichessID,
		Username:  m.Username,
		Score:     m.Score,
		Streak:    m.Streak,
		MaxStreak: m.MaxStreak,
		Wins:      m.Wins,
		Draws:     m.Draws,
		Losses:    m.Losses,
		SyncedAt:  m.SyncedAt,
		CreatedAt: m.CreatedAt,
	}
}

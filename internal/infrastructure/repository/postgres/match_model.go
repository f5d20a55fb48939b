package postgres

import (
	"time"

	"github.com/shiroseschnee/bullet-royale/internal/domain/match"
	"github.com/shiroseschnee/bullet-royale/internal/domain/scoring"
)

type matchTableModel struct {
	ID             int64     `db:"id"`
	ExternalID     string    `db:"external_id"`
	PlayerID       string    `db:"player_id"`
	Side           string    `db:"side"`
	Outcome        string    `db:"outcome"`
	PlayerRating   int       `db:"player_rating"`
	OpponentName   string    `db:"opponent_name"`
	OpponentRating int       `db:"opponent_rating"`
	ScoreDelta     int       `db:"score_delta"`
	StreakAfter    int       `db:"streak_after"`
	PlayedAt       time.Time `db:"played_at"`
	CreatedAt      time.Time `db:"created_at"`
}

func (m matchTableModel) toDomain() match.Record {
	return match.Record{
		ExternalID:     m.ExternalID,
		PlayerID:       m.PlayerID,
		Side:           m.Side,
		Outcome:        scoring.Outcome(m.Outcome),
		PlayerRating:   m.PlayerRating,
		OpponentName:   m.OpponentName,
		OpponentRating: m.OpponentRating,
		ScoreDelta:     m.ScoreDelta,
		StreakAfter:    m.StreakAfter,
		PlayedAt:       m.PlayedAt,
	}
}

package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/shiroseschnee/bullet-royale/internal/domain/match"
)

type MatchRepository struct {
	db *sqlx.DB
}

func NewMatchRepository(db *sqlx.DB) *MatchRepository {
	return &MatchRepository{db: db}
}

func (r *MatchRepository) Exists(ctx context.Context, externalID string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM matches WHERE external_id = $1)`, externalID)
	if err != nil {
		return false, fmt.Errorf("check match exists external_id=%s: %w", externalID, err)
	}
	return exists, nil
}

func (r *MatchRepository) ListByPlayer(ctx context.Context, playerID string, limit int) ([]match.Record, error) {
	var rows []matchTableModel
	err := r.db.SelectContext(ctx, &rows, `
SELECT id, external_id, player_id, side, outcome, player_rating, opponent_name, opponent_rating,
       score_delta, streak_after, played_at, created_at
FROM matches
WHERE player_id = $1
ORDER BY played_at DESC, external_id DESC
LIMIT $2`, playerID, limit)
	if err != nil {
		return nil, fmt.Errorf("select matches player=%s: %w", playerID, err)
	}

	out := make([]match.Record, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

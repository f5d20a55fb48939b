package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shiroseschnee/bullet-royale/internal/domain/season"
)

const seasonSelectColumns = ` number, started_at, ended_at, active`

type SeasonRepository struct {
	db *sqlx.DB
}

func NewSeasonRepository(db *sqlx.DB) *SeasonRepository {
	return &SeasonRepository{db: db}
}

func (r *SeasonRepository) Active(ctx context.Context) (season.Season, bool, error) {
	var row seasonTableModel
	if err := r.db.GetContext(ctx, &row, `SELECT`+seasonSelectColumns+` FROM seasons WHERE active`); err != nil {
		if isNotFound(err) {
			return season.Season{}, false, nil
		}
		return season.Season{}, false, fmt.Errorf("get active season: %w", err)
	}
	return row.toDomain(), true, nil
}

func (r *SeasonRepository) GetByNumber(ctx context.Context, number int) (season.Season, bool, error) {
	var row seasonTableModel
	if err := r.db.GetContext(ctx, &row, `SELECT`+seasonSelectColumns+` FROM seasons WHERE number = $1`, number); err != nil {
		if isNotFound(err) {
			return season.Season{}, false, nil
		}
		return season.Season{}, false, fmt.Errorf("get season number=%d: %w", number, err)
	}
	return row.toDomain(), true, nil
}

// Rotate closes the active season, snapshots rankings for every player with
// a positive score, opens the next season, and zeroes all standings inside
// one transaction. The active row is locked first so concurrent rotations
// serialize instead of double-closing.
func (r *SeasonRepository) Rotate(ctx context.Context, now time.Time) (int, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin rotation tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var current int
	if err := tx.GetContext(ctx, &current, `SELECT number FROM seasons WHERE active FOR UPDATE`); err != nil {
		if isNotFound(err) {
			return 0, season.ErrNoActiveSeason
		}
		return 0, fmt.Errorf("lock active season: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO season_rankings (season_number, player_id, username, rank, score, max_streak, wins, draws, losses)
SELECT $1, id, username, ROW_NUMBER() OVER (ORDER BY score DESC, id ASC), score, max_streak, wins, draws, losses
FROM players
WHERE score > 0`, current); err != nil {
		return 0, fmt.Errorf("snapshot season %d rankings: %w", current, err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE seasons SET active = FALSE, ended_at = $1 WHERE number = $2`, now.UTC(), current); err != nil {
		return 0, fmt.Errorf("close season %d: %w", current, err)
	}

	var next int
	if err := tx.GetContext(ctx, &next, `SELECT COALESCE(MAX(number), 0) + 1 FROM seasons`); err != nil {
		return 0, fmt.Errorf("resolve next season number: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO seasons (number, started_at, active) VALUES ($1, $2, TRUE)`, next, now.UTC()); err != nil {
		return 0, fmt.Errorf("open season %d: %w", next, err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE players SET score = 0, streak = 0, updated_at = NOW()`); err != nil {
		return 0, fmt.Errorf("reset player standings: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit rotation: %w", err)
	}
	return next, nil
}

func (r *SeasonRepository) ListRankings(ctx context.Context, number int) ([]season.Ranking, error) {
	var rows []seasonRankingTableModel
	err := r.db.SelectContext(ctx, &rows, `
SELECT season_number, player_id, username, rank, score, max_streak, wins, draws, losses
FROM season_rankings
WHERE season_number = $1
ORDER BY rank ASC`, number)
	if err != nil {
		return nil, fmt.Errorf("select rankings season=%d: %w", number, err)
	}

	out := make([]season.Ranking, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/shiroseschnee/bullet-royale/internal/domain/player"
)

const playerSelectColumns = `
    id, lichess_id, username, score, streak, max_streak,
    wins, draws, losses, synced_at, created_at, updated_at`

type PlayerRepository struct {
	db *sqlx.DB
}

func NewPlayerRepository(db *sqlx.DB) *PlayerRepository {
	return &PlayerRepository{db: db}
}

func (r *PlayerRepository) GetByID(ctx context.Context, id string) (player.Player, bool, error) {
	return r.getOne(ctx, `SELECT`+playerSelectColumns+` FROM players WHERE id = $1`, id)
}

func (r *PlayerRepository) GetByLichessID(ctx context.Context, lichessID string) (player.Player, bool, error) {
	return r.getOne(ctx, `SELECT`+playerSelectColumns+` FROM players WHERE lichess_id = LOWER($1)`, lichessID)
}

func (r *PlayerRepository) GetByUsername(ctx context.Context, username string) (player.Player, bool, error) {
	return r.getOne(ctx, `SELECT`+playerSelectColumns+` FROM players WHERE LOWER(username) = LOWER($1)`, username)
}

func (r *PlayerRepository) getOne(ctx context.Context, query, arg string) (player.Player, bool, error) {
	var row playerTableModel
	if err := r.db.GetContext(ctx, &row, query, arg); err != nil {
		if isNotFound(err) {
			return player.Player{}, false, nil
		}
		return player.Player{}, false, fmt.Errorf("get player: %w", err)
	}
	return row.toDomain(), true, nil
}

func (r *PlayerRepository) Create(ctx context.Context, p player.Player) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO players (id, lichess_id, username, score, streak, max_streak, wins, draws, losses, synced_at, created_at)
VALUES ($1, LOWER($2), $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		p.ID, p.LichessID, p.Username, p.Score, p.Streak, p.MaxStreak,
		p.Wins, p.Draws, p.Losses, p.SyncedAt, p.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("player already exists lichess_id=%s: %w", p.LichessID, err)
		}
		return fmt.Errorf("insert player: %w", err)
	}
	return nil
}

func (r *PlayerRepository) List(ctx context.Context) ([]player.Player, error) {
	var rows []playerTableModel
	if err := r.db.SelectContext(ctx, &rows, `SELECT`+playerSelectColumns+` FROM players ORDER BY id`); err != nil {
		return nil, fmt.Errorf("select players: %w", err)
	}

	out := make([]player.Player, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (r *PlayerRepository) ListStandings(ctx context.Context, limit int) ([]player.Standing, error) {
	var rows []standingTableModel
	err := r.db.SelectContext(ctx, &rows, `
SELECT ROW_NUMBER() OVER (ORDER BY score DESC, id ASC) AS rank,`+playerSelectColumns+`
FROM players
ORDER BY score DESC, id ASC
LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("select standings: %w", err)
	}

	out := make([]player.Standing, 0, len(rows))
	for _, row := range rows {
		out = append(out, player.Standing{Rank: row.Rank, Player: row.toDomain()})
	}
	return out, nil
}

func (r *PlayerRepository) Rank(ctx context.Context, playerID string) (int, bool, error) {
	var rank int
	err := r.db.GetContext(ctx, &rank, `
SELECT rank FROM (
    SELECT id, ROW_NUMBER() OVER (ORDER BY score DESC, id ASC) AS rank
    FROM players
) ranked
WHERE id = $1`, playerID)
	if err != nil {
		if isNotFound(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("get player rank: %w", err)
	}
	return rank, true, nil
}

// ApplyNetEffect lands the standing update and its match records in one
// transaction. Match inserts conflict-skip on the external id, so replaying
// an overlapping window cannot record a game twice.
func (r *PlayerRepository) ApplyNetEffect(ctx context.Context, playerID string, effect player.NetEffect) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx apply net effect: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var checkpoint any
	if !effect.Checkpoint.IsZero() {
		checkpoint = effect.Checkpoint.UTC()
	}
	res, err := tx.ExecContext(ctx, `
UPDATE players SET
    score = GREATEST(0, score + $1),
    streak = $2,
    max_streak = GREATEST(max_streak, $2),
    wins = wins + $3,
    draws = draws + $4,
    losses = losses + $5,
    synced_at = COALESCE($6, synced_at),
    updated_at = NOW()
WHERE id = $7`,
		effect.ScoreDelta, effect.FinalStreak,
		effect.Wins, effect.Draws, effect.Losses,
		checkpoint, playerID,
	)
	if err != nil {
		return fmt.Errorf("update player standing: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check player standing update: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("player not found id=%s", playerID)
	}

	for _, record := range effect.Records {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO matches (external_id, player_id, side, outcome, player_rating, opponent_name, opponent_rating, score_delta, streak_after, played_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (external_id) DO NOTHING`,
			record.ExternalID, record.PlayerID, record.Side, string(record.Outcome),
			record.PlayerRating, record.OpponentName, record.OpponentRating,
			record.ScoreDelta, record.StreakAfter, record.PlayedAt.UTC(),
		); err != nil {
			return fmt.Errorf("insert match record %s: %w", record.ExternalID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit apply net effect: %w", err)
	}
	return nil
}

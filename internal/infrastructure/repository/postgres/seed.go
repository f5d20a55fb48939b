package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// EnsureActiveSeason opens season one when the table is empty. Migrations
// seed it too; this guard keeps a freshly wiped database usable without a
// re-run.
func EnsureActiveSeason(ctx context.Context, db *sqlx.DB, now time.Time) error {
	var count int
	if err := db.GetContext(ctx, &count, `SELECT COUNT(1) FROM seasons`); err != nil {
		return fmt.Errorf("count seasons for bootstrap: %w", err)
	}
	if count > 0 {
		return nil
	}

	_, err := db.ExecContext(ctx, `
INSERT INTO seasons (number, started_at, active)
VALUES (1, $1, TRUE)
ON CONFLICT (number) DO NOTHING`, now.UTC())
	if err != nil {
		return fmt.Errorf("seed season one: %w", err)
	}
	return nil
}

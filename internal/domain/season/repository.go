package season

import (
	"context"
	"time"
)

// Repository describes season persistence needs from use cases.
//
// Rotate runs the whole rotation inside one transaction: snapshot rankings
// for players with a positive score, close the active season, open number
// max+1, and zero every player's score and streak while keeping lifetime
// counters and max streak. It returns the new season number, or
// ErrNoActiveSeason with nothing mutated.
type Repository interface {
	Active(ctx context.Context) (Season, bool, error)
	GetByNumber(ctx context.Context, number int) (Season, bool, error)
	Rotate(ctx context.Context, now time.Time) (int, error)
	ListRankings(ctx context.Context, number int) ([]Ranking, error)
}

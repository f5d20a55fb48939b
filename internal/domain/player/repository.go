package player

import "context"

// Repository describes player persistence needs from use cases.
//
// ApplyNetEffect must be atomic: the score update (clamped at zero), streak
// and counter updates, checkpoint advance, and match record inserts land
// together or not at all. Duplicate match records are tolerated as benign.
type Repository interface {
	GetByID(ctx context.Context, id string) (Player, bool, error)
	GetByLichessID(ctx context.Context, lichessID string) (Player, bool, error)
	GetByUsername(ctx context.Context, username string) (Player, bool, error)
	Create(ctx context.Context, p Player) error
	List(ctx context.Context) ([]Player, error)
	ListStandings(ctx context.Context, limit int) ([]Standing, error)
	Rank(ctx context.Context, playerID string) (int, bool, error)
	ApplyNetEffect(ctx context.Context, playerID string, effect NetEffect) error
}

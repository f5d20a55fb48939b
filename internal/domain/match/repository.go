package match

import "context"

// Repository describes match persistence needs from use cases. Records are
// immutable; inserts happen only through the player net-effect apply.
type Repository interface {
	Exists(ctx context.Context, externalID string) (bool, error)
	ListByPlayer(ctx context.Context, playerID string, limit int) ([]Record, error)
}

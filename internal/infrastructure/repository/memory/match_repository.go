package memory

import (
	"context"
	"sort"

	"github.com/shiroseschnee/bullet-royale/internal/domain/match"
)

// MatchRepository is the in-memory match.Repository implementation.
type MatchRepository struct {
	store *Store
}

func (r *MatchRepository) Exists(_ context.Context, externalID string) (bool, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	_, ok := r.store.matches[externalID]
	return ok, nil
}

func (r *MatchRepository) ListByPlayer(_ context.Context, playerID string, limit int) ([]match.Record, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	out := make([]match.Record, 0)
	for _, record := range r.store.matches {
		if record.PlayerID == playerID {
			out = append(out, record)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].PlayedAt.Equal(out[j].PlayedAt) {
			return out[i].PlayedAt.After(out[j].PlayedAt)
		}
		return out[i].ExternalID > out[j].ExternalID
	})
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

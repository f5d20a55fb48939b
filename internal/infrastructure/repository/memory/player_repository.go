package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/shiroseschnee/bullet-royale/internal/domain/player"
)

// PlayerRepository is the in-memory player.Repository implementation.
type PlayerRepository struct {
	store *Store
}

func (r *PlayerRepository) GetByID(_ context.Context, id string) (player.Player, bool, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	p, ok := r.store.players[id]
	return p, ok, nil
}

func (r *PlayerRepository) GetByLichessID(_ context.Context, lichessID string) (player.Player, bool, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	for _, p := range r.store.players {
		if strings.EqualFold(p.LichessID, lichessID) {
			return p, true, nil
		}
	}
	return player.Player{}, false, nil
}

func (r *PlayerRepository) GetByUsername(_ context.Context, username string) (player.Player, bool, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	for _, p := range r.store.players {
		if strings.EqualFold(p.Username, username) {
			return p, true, nil
		}
	}
	return player.Player{}, false, nil
}

func (r *PlayerRepository) Create(_ context.Context, p player.Player) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, exists := r.store.players[p.ID]; exists {
		return fmt.Errorf("player already exists: %s", p.ID)
	}
	for _, existing := range r.store.players {
		if strings.EqualFold(existing.LichessID, p.LichessID) {
			return fmt.Errorf("lichess account already registered: %s", p.LichessID)
		}
	}
	r.store.players[p.ID] = p
	return nil
}

func (r *PlayerRepository) List(_ context.Context) ([]player.Player, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	out := make([]player.Player, 0, len(r.store.players))
	for _, p := range r.store.players {
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *PlayerRepository) ListStandings(_ context.Context, limit int) ([]player.Standing, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	ranked := rankedPlayersLocked(r.store)
	if limit > 0 && limit < len(ranked) {
		ranked = ranked[:limit]
	}

	out := make([]player.Standing, 0, len(ranked))
	for i, p := range ranked {
		out = append(out, player.Standing{Rank: i + 1, Player: p})
	}
	return out, nil
}

func (r *PlayerRepository) Rank(_ context.Context, playerID string) (int, bool, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	for i, p := range rankedPlayersLocked(r.store) {
		if p.ID == playerID {
			return i + 1, true, nil
		}
	}
	return 0, false, nil
}

func (r *PlayerRepository) ApplyNetEffect(_ context.Context, playerID string, effect player.NetEffect) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	p, ok := r.store.players[playerID]
	if !ok {
		return fmt.Errorf("player not found: %s", playerID)
	}

	p.Score += effect.ScoreDelta
	if p.Score < 0 {
		p.Score = 0
	}
	p.Streak = effect.FinalStreak
	if effect.FinalStreak > p.MaxStreak {
		p.MaxStreak = effect.FinalStreak
	}
	p.Wins += effect.Wins
	p.Draws += effect.Draws
	p.Losses += effect.Losses
	if !effect.Checkpoint.IsZero() {
		checkpoint := effect.Checkpoint
		p.SyncedAt = &checkpoint
	}

	for _, record := range effect.Records {
		if _, exists := r.store.matches[record.ExternalID]; exists {
			continue
		}
		r.store.matches[record.ExternalID] = record
	}

	r.store.players[playerID] = p
	return nil
}

// rankedPlayersLocked orders players by score descending with the player id
// as the deterministic tie-break. Caller holds the store lock.
func rankedPlayersLocked(s *Store) []player.Player {
	out := make([]player.Player, 0, len(s.players))
	for _, p := range s.players {
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	return out
}

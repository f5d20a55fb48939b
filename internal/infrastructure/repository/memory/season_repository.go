package memory

import (
	"context"
	"sort"
	"time"

	"github.com/shiroseschnee/bullet-royale/internal/domain/season"
)

// SeasonRepository is the in-memory season.Repository implementation. Rotate
// mirrors the SQL transaction: everything mutates under one lock or nothing
// does.
type SeasonRepository struct {
	store *Store
}

func (r *SeasonRepository) Active(_ context.Context) (season.Season, bool, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	for _, s := range r.store.seasons {
		if s.Active {
			return s, true, nil
		}
	}
	return season.Season{}, false, nil
}

func (r *SeasonRepository) GetByNumber(_ context.Context, number int) (season.Season, bool, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	s, ok := r.store.seasons[number]
	return s, ok, nil
}

func (r *SeasonRepository) Rotate(_ context.Context, now time.Time) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var active *season.Season
	maxNumber := 0
	for number, s := range r.store.seasons {
		if number > maxNumber {
			maxNumber = number
		}
		if s.Active {
			copied := s
			active = &copied
		}
	}
	if active == nil {
		return 0, season.ErrNoActiveSeason
	}

	ranked := rankedPlayersLocked(r.store)
	rankings := make([]season.Ranking, 0, len(ranked))
	rank := 0
	for _, p := range ranked {
		if p.Score <= 0 {
			continue
		}
		rank++
		rankings = append(rankings, season.Ranking{
			SeasonNumber: active.Number,
			PlayerID:     p.ID,
			Username:     p.Username,
			Rank:         rank,
			Score:        p.Score,
			MaxStreak:    p.MaxStreak,
			Wins:         p.Wins,
			Draws:        p.Draws,
			Losses:       p.Losses,
		})
	}
	r.store.rankings[active.Number] = rankings

	endedAt := now
	closed := *active
	closed.Active = false
	closed.EndedAt = &endedAt
	r.store.seasons[closed.Number] = closed

	next := season.Season{
		Number:    maxNumber + 1,
		StartedAt: now,
		Active:    true,
	}
	r.store.seasons[next.Number] = next

	for id, p := range r.store.players {
		p.Score = 0
		p.Streak = 0
		r.store.players[id] = p
	}

	return next.Number, nil
}

func (r *SeasonRepository) ListRankings(_ context.Context, number int) ([]season.Ranking, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	rankings := r.store.rankings[number]
	out := make([]season.Ranking, len(rankings))
	copy(out, rankings)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Rank < out[j].Rank })
	return out, nil
}

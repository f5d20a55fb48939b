package memory

import (
	"sync"
	"time"

	"github.com/shiroseschnee/bullet-royale/internal/domain/match"
	"github.com/shiroseschnee/bullet-royale/internal/domain/player"
	"github.com/shiroseschnee/bullet-royale/internal/domain/season"
)

// Store is an in-process backing store shared by the memory repositories.
// One mutex guards every entity so the player net-effect apply and the season
// rotation are atomic, matching the transactional guarantees of the SQL
// implementation. Used as the test double and for dependency-free local runs.
type Store struct {
	mu       sync.RWMutex
	players  map[string]player.Player
	matches  map[string]match.Record
	seasons  map[int]season.Season
	rankings map[int][]season.Ranking
}

func NewStore() *Store {
	return &Store{
		players:  make(map[string]player.Player),
		matches:  make(map[string]match.Record),
		seasons:  make(map[int]season.Season),
		rankings: make(map[int][]season.Ranking),
	}
}

func (s *Store) Players() *PlayerRepository { return &PlayerRepository{store: s} }
func (s *Store) Matches() *MatchRepository  { return &MatchRepository{store: s} }
func (s *Store) Seasons() *SeasonRepository { return &SeasonRepository{store: s} }

// SeedSeason installs an active season, the state migrations guarantee in
// the SQL store.
func (s *Store) SeedSeason(number int, startedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seasons[number] = season.Season{
		Number:    number,
		StartedAt: startedAt,
		Active:    true,
	}
}

package player

import (
	"fmt"
	"time"

	"github.com/shiroseschnee/bullet-royale/internal/domain/match"
)

// Player is one tracked account. Score and streak are the mutable standing
// for the active season; the lifetime counters and max streak survive season
// rotation. Score never goes below zero and max streak never trails the
// current streak.
type Player struct {
	ID         string
	LichessID  string
	Username   string
	Score      int
	Streak     int
	MaxStreak  int
	Wins       int
	Draws      int
	Losses     int
	SyncedAt   *time.Time
	CreatedAt  time.Time
}

func (p Player) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("player id is required")
	}
	if p.LichessID == "" {
		return fmt.Errorf("player lichess id is required")
	}
	if p.Username == "" {
		return fmt.Errorf("player username is required")
	}
	if p.Score < 0 {
		return fmt.Errorf("player score must not be negative")
	}
	if p.Streak < 0 {
		return fmt.Errorf("player streak must not be negative")
	}
	if p.MaxStreak < p.Streak {
		return fmt.Errorf("player max streak must not trail the current streak")
	}

	return nil
}

// GamesPlayed is the lifetime counted-match total.
func (p Player) GamesPlayed() int {
	return p.Wins + p.Draws + p.Losses
}

// Principal identifies the logged-in player on authenticated requests.
type Principal struct {
	PlayerID  string
	LichessID string
	Username  string
}

// Standing is one leaderboard row with its assigned rank.
type Standing struct {
	Rank int
	Player
}

// NetEffect is the aggregate result of one reconciliation run, applied as a
// single atomic update together with its new match records. Checkpoint is the
// played-at of the last fetched match, never wall-clock now.
type NetEffect struct {
	ScoreDelta  int
	FinalStreak int
	Wins        int
	Draws       int
	Losses      int
	Checkpoint  time.Time
	Records     []match.Record
}

func (e NetEffect) NewMatches() int {
	return len(e.Records)
}

package season

import (
	"errors"
	"time"
)

// ErrNoActiveSeason signals a broken system invariant: exactly one season
// must be active at all times. Rotation aborts on it rather than repairing.
var ErrNoActiveSeason = errors.New("no active season")

// Season is one bounded ranking epoch.
type Season struct {
	Number    int
	StartedAt time.Time
	EndedAt   *time.Time
	Active    bool
}

// Ranking is one immutable snapshot row written at rotation time. Only
// players who scored during the season get a row; ranks run 1..K with ties
// broken by player id.
type Ranking struct {
	SeasonNumber int
	PlayerID     string
	Username     string
	Rank         int
	Score        int
	MaxStreak    int
	Wins         int
	Draws        int
	Losses       int
}

package match

import (
	"fmt"
	"time"

	"github.com/shiroseschnee/bullet-royale/internal/domain/scoring"
)

// Record is one counted match, written exactly once. The external id comes
// from the game server and is globally unique; re-syncing an overlapping time
// window must never record the same match twice.
type Record struct {
	ExternalID     string
	PlayerID       string
	Side           string
	Outcome        scoring.Outcome
	PlayerRating   int
	OpponentName   string
	OpponentRating int
	ScoreDelta     int
	StreakAfter    int
	PlayedAt       time.Time
}

func (r Record) Validate() error {
	if r.ExternalID == "" {
		return fmt.Errorf("match external id is required")
	}
	if r.PlayerID == "" {
		return fmt.Errorf("match player id is required")
	}
	if _, ok := scoring.AllOutcomes[r.Outcome]; !ok {
		return fmt.Errorf("invalid match outcome: %s", r.Outcome)
	}
	if r.PlayedAt.IsZero() {
		return fmt.Errorf("match played-at is required")
	}

	return nil
}

package domain

import "time"

const (
	// DefaultLevel is used when a submission does not name a level.
	DefaultLevel = 1
	// MaxLevel is the largest level the ledger column can hold.
	MaxLevel = 2147483647
	// MaxScore caps the score of a single play session.
	MaxScore int64 = 1_000_000_000
)

// ScoreEntry is one immutable play session in the score ledger.
type ScoreEntry struct {
	ID         int64
	UserID     int64
	Level      int
	Score      int64
	RecordedAt time.Time
}

// Aggregates are the per-user values derived from the ledger:
// BestScore is the maximum and TotalScore the sum of all the user's entries.
type Aggregates struct {
	BestScore  int64
	TotalScore int64
}

// RankingEntry is one row of the leaderboard.
type RankingEntry struct {
	Username  string
	BestScore int64
}

// ScoreResult is returned after a score submission is committed.
type ScoreResult struct {
	Entry        *ScoreEntry
	Updated      bool
	BestScore    int64
	TotalScore   int64
	PerLevelBest map[int]int64
	Ranking      []RankingEntry
}

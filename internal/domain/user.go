package domain

import "time"

// User represents a registered player stored in the database.
type User struct {
	ID            int64
	Username      string
	PasswordHash  string
	BestScore     int64
	TotalScore    int64
	LevelUnlocked int
	CreatedAt     time.Time
}

// Profile is a user together with their best score per level.
type Profile struct {
	User         *User
	PerLevelBest map[int]int64
}

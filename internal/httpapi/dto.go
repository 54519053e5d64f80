package httpapi

import (
	"github.com/Proton-105/scoreboard/internal/domain"
)

type credentialsRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// scoreRequest uses pointers so a missing field is distinguishable from zero.
type scoreRequest struct {
	UserID *int64 `json:"user_id" binding:"required"`
	Score  *int64 `json:"score" binding:"required,min=0,max=1000000000"`
	Level  int    `json:"level" binding:"omitempty,min=1,max=2147483647"`
}

type userResponse struct {
	ID            int64  `json:"id"`
	Username      string `json:"username"`
	BestScore     int64  `json:"best_score"`
	TotalScore    int64  `json:"total_score"`
	LevelUnlocked int    `json:"level_unlocked"`
}

type rankingEntryResponse struct {
	Username  string `json:"username"`
	BestScore int64  `json:"best_score"`
}

type authResponse struct {
	Success bool         `json:"success"`
	User    userResponse `json:"user"`
}

type profileResponse struct {
	Success      bool          `json:"success"`
	User         userResponse  `json:"user"`
	PerLevelBest map[int]int64 `json:"per_level_best"`
}

type scoreResponse struct {
	Success      bool                   `json:"success"`
	Updated      bool                   `json:"updated"`
	BestScore    int64                  `json:"best_score"`
	TotalScore   int64                  `json:"total_score"`
	PerLevelBest map[int]int64          `json:"per_level_best"`
	Ranking      []rankingEntryResponse `json:"ranking"`
}

type rankingResponse struct {
	Success bool                   `json:"success"`
	Ranking []rankingEntryResponse `json:"ranking"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code"`
}

func toUserResponse(u *domain.User) userResponse {
	return userResponse{
		ID:            u.ID,
		Username:      u.Username,
		BestScore:     u.BestScore,
		TotalScore:    u.TotalScore,
		LevelUnlocked: u.LevelUnlocked,
	}
}

func toRanking(entries []domain.RankingEntry) []rankingEntryResponse {
	out := make([]rankingEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, rankingEntryResponse{Username: e.Username, BestScore: e.BestScore})
	}
	return out
}

func nonNilLevels(m map[int]int64) map[int]int64 {
	if m == nil {
		return map[int]int64{}
	}
	return m
}

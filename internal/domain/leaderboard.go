package domain

import (
	"errors"
	"time"
)

// LeaderboardRoom is the hub room leaderboard subscribers join.
const LeaderboardRoom = "leaderboard"

// ErrInvalidUser is returned when a score update names no user.
var ErrInvalidUser = errors.New("userId required")

// LeaderboardScore is a user's running score.
type LeaderboardScore struct {
	ID          uint      `json:"-"`
	UserID      string    `json:"userId"`
	DisplayName string    `json:"displayName"`
	Score       int       `json:"score"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// LeaderboardEntry is one ranked row of a top list.
type LeaderboardEntry struct {
	Rank        int       `json:"rank"`
	UserID      string    `json:"userId"`
	DisplayName string    `json:"displayName"`
	Score       int       `json:"score"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Rank numbers scores from 1 in the given order.
func Rank(scores []LeaderboardScore) []LeaderboardEntry {
	entries := make([]LeaderboardEntry, len(scores))
	for i, s := range scores {
		entries[i] = LeaderboardEntry{
			Rank:        i + 1,
			UserID:      s.UserID,
			DisplayName: s.DisplayName,
			Score:       s.Score,
			UpdatedAt:   s.UpdatedAt,
		}
	}
	return entries
}

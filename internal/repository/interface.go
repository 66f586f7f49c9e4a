package repository

import (
	"context"
	"errors"

	"github.com/weiawesome/cycredit-chat/internal/domain"
)

var ErrNotFound = errors.New("record not found")

// MessageRepository persists chat messages.
type MessageRepository interface {
	// Save stores msg, assigns its ID (and CreatedAt if zero) and returns it.
	Save(ctx context.Context, msg *domain.ChatMessage) (*domain.ChatMessage, error)
	// Recent returns at most limit messages of a room, newest first.
	Recent(ctx context.Context, scope, channel string, limit int) ([]domain.ChatMessage, error)
	Close() error
}

// LeaderboardRepository persists leaderboard scores.
type LeaderboardRepository interface {
	FindByUserID(ctx context.Context, userID string) (*domain.LeaderboardScore, error)
	// Top returns at most limit scores ordered by score desc, then updated_at asc.
	Top(ctx context.Context, limit int) ([]domain.LeaderboardScore, error)
	// Update loads the user's score (a zero score if none exists), applies
	// mutate and stores the result atomically.
	Update(ctx context.Context, userID string, mutate func(*domain.LeaderboardScore)) (*domain.LeaderboardScore, error)
}

// IDGenerator supplies ids for stores without auto-increment keys.
type IDGenerator interface {
	NextID() (int64, error)
}

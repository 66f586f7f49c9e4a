package service

import (
	"context"

	"github.com/weiawesome/cycredit-chat/internal/domain"
	"github.com/weiawesome/cycredit-chat/internal/hub"
)

// ChatService handles the lifecycle and messages of chat connections.
type ChatService interface {
	HandleConnect(ctx context.Context, client *hub.Client) error
	HandleMessage(ctx context.Context, client *hub.Client, payload []byte) (*domain.ChatMessage, error)
	HandleDisconnect(ctx context.Context, client *hub.Client) error
	OnlineCount(scope, channel string) int
}

// HistoryService serves recent messages of a room.
type HistoryService interface {
	GetHistory(ctx context.Context, scope, channel string, limit int) ([]domain.ChatMessage, error)
}

// LeaderboardService maintains scores and pushes the top list to subscribers.
type LeaderboardService interface {
	Top(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error)
	AddScore(ctx context.Context, userID, displayName string, delta int) (*domain.LeaderboardScore, error)
	SetScore(ctx context.Context, userID, displayName string, score int) (*domain.LeaderboardScore, error)
	HandleConnect(ctx context.Context, client *hub.Client) error
	HandleDisconnect(ctx context.Context, client *hub.Client) error
}

// RoomPublisher forwards an encoded room frame to other instances.
type RoomPublisher interface {
	Publish(ctx context.Context, eventType, roomKey string, payload []byte) error
}

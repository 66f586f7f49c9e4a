package repository

import (
	"time"

	"github.com/weiawesome/cycredit-chat/internal/domain"
)

// ChatMessageModel is the GORM model of chat_messages.
type ChatMessageModel struct {
	ID         int64     `gorm:"primaryKey;autoIncrement"`
	Scope      string    `gorm:"size:16;not null;index:idx_chat_messages_room,priority:1"`
	Channel    string    `gorm:"size:64;not null;index:idx_chat_messages_room,priority:2"`
	FromUserID *int64    `gorm:"column:from_user_id"`
	Username   string    `gorm:"size:64;not null"`
	Content    string    `gorm:"size:2000;not null"`
	CreatedAt  time.Time `gorm:"not null"`
}

func (ChatMessageModel) TableName() string {
	return "chat_messages"
}

func (m *ChatMessageModel) ToDomain() domain.ChatMessage {
	return domain.ChatMessage{
		ID:         m.ID,
		Scope:      m.Scope,
		Channel:    m.Channel,
		FromUserID: m.FromUserID,
		Username:   m.Username,
		Content:    m.Content,
		CreatedAt:  m.CreatedAt.UTC(),
	}
}

func chatMessageToModel(msg *domain.ChatMessage) *ChatMessageModel {
	return &ChatMessageModel{
		ID:         msg.ID,
		Scope:      msg.Scope,
		Channel:    msg.Channel,
		FromUserID: msg.FromUserID,
		Username:   msg.Username,
		Content:    msg.Content,
		CreatedAt:  msg.CreatedAt,
	}
}

// LeaderboardScoreModel is the GORM model of leaderboard_scores.
type LeaderboardScoreModel struct {
	ID          uint      `gorm:"primaryKey"`
	UserID      string    `gorm:"size:64;not null;uniqueIndex"`
	DisplayName string    `gorm:"size:128"`
	Score       int       `gorm:"not null;default:0;index"`
	UpdatedAt   time.Time `gorm:"not null"`
}

func (LeaderboardScoreModel) TableName() string {
	return "leaderboard_scores"
}

func (m *LeaderboardScoreModel) ToDomain() domain.LeaderboardScore {
	return domain.LeaderboardScore{
		ID:          m.ID,
		UserID:      m.UserID,
		DisplayName: m.DisplayName,
		Score:       m.Score,
		UpdatedAt:   m.UpdatedAt.UTC(),
	}
}

// Models lists every GORM model for auto-migration.
func Models() []interface{} {
	return []interface{}{&ChatMessageModel{}, &LeaderboardScoreModel{}}
}

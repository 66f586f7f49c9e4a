package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/weiawesome/cycredit-chat/internal/audit"
	"github.com/weiawesome/cycredit-chat/internal/domain"
	"github.com/weiawesome/cycredit-chat/internal/hub"
	"github.com/weiawesome/cycredit-chat/internal/repository"
	"github.com/weiawesome/cycredit-chat/pkg/log"
	"github.com/weiawesome/cycredit-chat/pkg/pubsub"
)

// LeaderboardSize is the number of rows in a top list.
const LeaderboardSize = 20

type leaderboardService struct {
	repo      repository.LeaderboardRepository
	hub       *hub.Hub
	publisher RoomPublisher
}

// NewLeaderboardService wires the leaderboard. publisher may be nil.
func NewLeaderboardService(repo repository.LeaderboardRepository, h *hub.Hub, publisher RoomPublisher) LeaderboardService {
	return &leaderboardService{repo: repo, hub: h, publisher: publisher}
}

func (s *leaderboardService) Top(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	scores, err := s.repo.Top(ctx, LeaderboardSize)
	if err != nil {
		return nil, fmt.Errorf("load leaderboard: %w", err)
	}
	if limit > 0 && limit < len(scores) {
		scores = scores[:limit]
	}
	return domain.Rank(scores), nil
}

func (s *leaderboardService) AddScore(ctx context.Context, userID, displayName string, delta int) (*domain.LeaderboardScore, error) {
	return s.update(ctx, userID, displayName, func(current int) int { return current + delta }, fmt.Sprintf("add %d", delta))
}

func (s *leaderboardService) SetScore(ctx context.Context, userID, displayName string, score int) (*domain.LeaderboardScore, error) {
	return s.update(ctx, userID, displayName, func(int) int { return score }, fmt.Sprintf("set %d", score))
}

func (s *leaderboardService) update(ctx context.Context, userID, displayName string, next func(int) int, detail string) (*domain.LeaderboardScore, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, domain.ErrInvalidUser
	}
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		displayName = "User " + userID
	}

	saved, err := s.repo.Update(ctx, userID, func(row *domain.LeaderboardScore) {
		row.DisplayName = displayName
		row.Score = max(0, next(row.Score))
	})
	if err != nil {
		return nil, fmt.Errorf("update score: %w", err)
	}

	audit.LogScore(ctx, userID, saved.Score, detail)
	s.broadcastTop(ctx)
	return saved, nil
}

// broadcastTop pushes the current top list to every leaderboard subscriber.
func (s *leaderboardService) broadcastTop(ctx context.Context) {
	l := log.Ctx(ctx)

	data, err := s.encodeTop(ctx)
	if err != nil {
		l.Warn().Err(err).Msg("leaderboard broadcast skipped")
		return
	}

	s.hub.Broadcast(domain.LeaderboardRoom, data)
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, pubsub.EventLeaderboardUpdate, domain.LeaderboardRoom, data); err != nil {
			l.Warn().Err(err).Msg("relay publish failed")
		}
	}
}

func (s *leaderboardService) encodeTop(ctx context.Context) ([]byte, error) {
	top, err := s.Top(ctx, 0)
	if err != nil {
		return nil, err
	}
	return json.Marshal(top)
}

func (s *leaderboardService) HandleConnect(ctx context.Context, c *hub.Client) error {
	if !c.MarkEstablished() {
		return fmt.Errorf("connection %s already closed", c.ID)
	}
	s.hub.Join(c, domain.LeaderboardRoom)
	audit.Log(ctx, audit.ActionBoardConnect, c.ID, domain.LeaderboardRoom, "", "leaderboard subscriber connected")

	data, err := s.encodeTop(ctx)
	if err != nil {
		return fmt.Errorf("initial leaderboard: %w", err)
	}
	return c.Enqueue(data)
}

func (s *leaderboardService) HandleDisconnect(ctx context.Context, c *hub.Client) error {
	s.hub.Leave(c)
	c.Close()
	return nil
}

package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/weiawesome/cycredit-chat/internal/audit"
	"github.com/weiawesome/cycredit-chat/internal/cache"
	"github.com/weiawesome/cycredit-chat/internal/domain"
	"github.com/weiawesome/cycredit-chat/internal/hub"
	"github.com/weiawesome/cycredit-chat/internal/repository"
	"github.com/weiawesome/cycredit-chat/pkg/log"
	"github.com/weiawesome/cycredit-chat/pkg/pubsub"
)

type chatService struct {
	hub       *hub.Hub
	repo      repository.MessageRepository
	cache     cache.MessageCache
	publisher RoomPublisher
	now       func() time.Time
}

// NewChatService wires the chat flow. msgCache and publisher may be nil.
func NewChatService(
	h *hub.Hub,
	repo repository.MessageRepository,
	msgCache cache.MessageCache,
	publisher RoomPublisher,
) ChatService {
	if msgCache == nil {
		msgCache = cache.NoopCache{}
	}
	return &chatService{
		hub:       h,
		repo:      repo,
		cache:     msgCache,
		publisher: publisher,
		now:       time.Now,
	}
}

func (s *chatService) HandleConnect(ctx context.Context, c *hub.Client) error {
	if !c.MarkEstablished() {
		return fmt.Errorf("connection %s already closed", c.ID)
	}

	attrs := c.Resolved()
	s.hub.Join(c, attrs.RoomKey())

	audit.Log(ctx, audit.ActionConnect, c.ID, attrs.RoomKey(), attrs.Username, "chat connection established")
	return nil
}

func (s *chatService) HandleMessage(ctx context.Context, c *hub.Client, payload []byte) (*domain.ChatMessage, error) {
	l := log.Ctx(ctx)

	in, err := domain.ParseInbound(payload)
	if err != nil {
		l.Warn().Err(err).Str(log.FieldConnID, c.ID).Msg("dropping malformed chat payload")
		return nil, err
	}

	attrs := c.Resolved()
	msg := &domain.ChatMessage{
		Scope:      attrs.Scope,
		Channel:    attrs.Channel,
		FromUserID: in.FromUserID.Ptr(),
		Username:   in.Username.Or(attrs.Username),
		Content:    in.Content,
		CreatedAt:  s.now().UTC().Truncate(time.Microsecond),
	}

	saved, err := s.repo.Save(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("persist chat message: %w", err)
	}

	roomKey := saved.RoomKey()
	if err := s.cache.Invalidate(ctx, roomKey); err != nil {
		l.Warn().Err(err).Str(log.FieldRoom, roomKey).Msg("history cache invalidation failed")
	}

	data, err := json.Marshal(saved)
	if err != nil {
		return nil, fmt.Errorf("encode chat message: %w", err)
	}

	recipients := s.hub.Broadcast(roomKey, data)
	l.Debug().
		Int64(log.FieldMessageID, saved.ID).
		Str(log.FieldRoom, roomKey).
		Int("recipients", recipients).
		Msg("chat message broadcast")

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, pubsub.EventChatMessage, roomKey, data); err != nil {
			l.Warn().Err(err).Int64(log.FieldMessageID, saved.ID).Msg("relay publish failed")
		}
	}

	audit.Log(ctx, audit.ActionSendMessage, c.ID, roomKey, saved.Username, "chat message sent")
	return saved, nil
}

func (s *chatService) HandleDisconnect(ctx context.Context, c *hub.Client) error {
	room := c.Room()
	s.hub.Leave(c)
	c.Close()

	if room != "" {
		audit.Log(ctx, audit.ActionDisconnect, c.ID, room, c.Resolved().Username, "chat connection closed")
	}
	return nil
}

func (s *chatService) OnlineCount(scope, channel string) int {
	return s.hub.RoomClientCount(domain.RoomKey(scope, channel))
}

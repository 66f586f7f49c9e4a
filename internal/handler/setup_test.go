package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/weiawesome/cycredit-chat/internal/config"
	"github.com/weiawesome/cycredit-chat/internal/domain"
	"github.com/weiawesome/cycredit-chat/internal/generator"
	"github.com/weiawesome/cycredit-chat/internal/hub"
	"github.com/weiawesome/cycredit-chat/internal/repository"
	"github.com/weiawesome/cycredit-chat/internal/service"
	"github.com/weiawesome/cycredit-chat/pkg/database"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	hub         *hub.Hub
	messages    *repository.GormMessageRepository
	chat        service.ChatService
	history     service.HistoryService
	leaderboard service.LeaderboardService
	router      *gin.Engine
	mux         http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db, err := database.New(&database.Config{
		Driver:       "sqlite",
		FilePath:     filepath.Join(t.TempDir(), "chat.db"),
		MaxOpenConns: 1,
		LogLevel:     "silent",
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := database.AutoMigrate(db, repository.Models()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { database.Close(db) })

	ids, err := generator.New(generator.Options{Kind: "uuid"})
	if err != nil {
		t.Fatal(err)
	}

	s := &testServer{hub: hub.NewHub(), messages: repository.NewGormMessageRepository(db)}
	s.chat = service.NewChatService(s.hub, s.messages, nil, nil)
	s.history = service.NewHistoryService(s.messages, nil, time.Minute, service.MaxHistoryLimit)
	s.leaderboard = service.NewLeaderboardService(repository.NewGormLeaderboardRepository(db), s.hub, nil)

	s.router = gin.New()
	NewHTTPHandler(s.history, s.chat, service.DefaultHistoryLimit).RegisterRoutes(s.router)
	NewLeaderboardHandler(s.leaderboard).RegisterRoutes(s.router)

	wsCfg := config.WebSocketConfig{
		PingInterval:   time.Second,
		PongWait:       5 * time.Second,
		WriteWait:      time.Second,
		MaxMessageSize: 4096,
		SendBuffer:     16,
	}
	s.mux = NewRouter(NewWSHandler(s.chat, s.leaderboard, ids, wsCfg), s.router)
	t.Cleanup(s.hub.Shutdown)

	return s
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) seed(t *testing.T, scope, channel string, contents ...string) {
	t.Helper()
	for _, content := range contents {
		if _, err := s.messages.Save(context.Background(), &domain.ChatMessage{
			Scope: scope, Channel: channel, Username: "seed", Content: content,
			CreatedAt: time.Now().UTC(),
		}); err != nil {
			t.Fatal(err)
		}
	}
}

type failingHistory struct{}

func (failingHistory) GetHistory(context.Context, string, string, int) ([]domain.ChatMessage, error) {
	return nil, errors.New("store unavailable")
}

package handler

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/weiawesome/cycredit-chat/internal/domain"
)

func dial(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", path, err)
	}
	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Fatalf("dial %s: status %d", path, resp.StatusCode)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func readMessage(t *testing.T, conn *websocket.Conn) domain.ChatMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg domain.ChatMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

// expectSilence leaves conn unreadable; call it last.
func expectSilence(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	_, data, err := conn.ReadMessage()
	if err == nil {
		t.Fatalf("unexpected frame %s", data)
	}
	var netErr net.Error
	if !errors.As(err, &netErr) || !netErr.Timeout() {
		t.Fatalf("read failed: %v", err)
	}
}

func TestChatBroadcastToRoom(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.mux)
	defer srv.Close()

	alice := dial(t, srv, "/ws/chat/public/global/alice")
	bob := dial(t, srv, "/ws/chat/public/global/bob")
	carol := dial(t, srv, "/ws/chat/guild/g1/carol")
	waitFor(t, "clients to join", func() bool {
		return s.chat.OnlineCount("public", "global") == 2 && s.chat.OnlineCount("guild", "g1") == 1
	})

	if err := alice.WriteMessage(websocket.TextMessage, []byte(`{"content":"hi","fromUserId":5}`)); err != nil {
		t.Fatal(err)
	}

	for name, conn := range map[string]*websocket.Conn{"alice": alice, "bob": bob} {
		msg := readMessage(t, conn)
		if msg.Content != "hi" || msg.Username != "alice" || msg.Scope != "public" || msg.Channel != "global" {
			t.Errorf("%s received %+v", name, msg)
		}
		if msg.FromUserID == nil || *msg.FromUserID != 5 {
			t.Errorf("%s fromUserId = %v", name, msg.FromUserID)
		}
		if msg.ID == 0 || msg.CreatedAt.IsZero() {
			t.Errorf("%s missing id or createdAt: %+v", name, msg)
		}
	}
	expectSilence(t, carol)

	history, err := s.history.GetHistory(context.Background(), "public", "global", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 1 || history[0].Content != "hi" {
		t.Errorf("history = %+v", history)
	}
}

func TestChatUsernameOverrideAndDefaults(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.mux)
	defer srv.Close()

	conn := dial(t, srv, "/ws/chat")
	waitFor(t, "client to join", func() bool { return s.chat.OnlineCount("public", "global") == 1 })

	conn.WriteMessage(websocket.TextMessage, []byte(`{"content":"x","username":"override"}`))
	msg := readMessage(t, conn)
	if msg.Username != "override" || msg.FromUserID != nil {
		t.Errorf("received %+v", msg)
	}

	conn.WriteMessage(websocket.TextMessage, []byte(`{"content":"y"}`))
	if msg := readMessage(t, conn); msg.Username != "user" {
		t.Errorf("default username = %q", msg.Username)
	}
}

func TestChatMalformedPayloadKeepsConnection(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.mux)
	defer srv.Close()

	conn := dial(t, srv, "/ws/chat/public/global/alice")
	waitFor(t, "client to join", func() bool { return s.chat.OnlineCount("public", "global") == 1 })

	// Frames are handled in order, so the first frame back proves the
	// malformed one was dropped without a reply.
	conn.WriteMessage(websocket.TextMessage, []byte(`[1,2,3]`))
	conn.WriteMessage(websocket.TextMessage, []byte(`{"content":"still here"}`))
	if msg := readMessage(t, conn); msg.Content != "still here" {
		t.Errorf("received %+v", msg)
	}
}

func TestChatDisconnectLeavesRoom(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.mux)
	defer srv.Close()

	conn := dial(t, srv, "/ws/chat/public/global/alice")
	waitFor(t, "client to join", func() bool { return s.chat.OnlineCount("public", "global") == 1 })

	conn.Close()
	waitFor(t, "client to leave", func() bool { return s.chat.OnlineCount("public", "global") == 0 })
}

func TestLeaderboardSocket(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.mux)
	defer srv.Close()

	if _, err := s.leaderboard.SetScore(context.Background(), "u1", "Uno", 10); err != nil {
		t.Fatal(err)
	}

	conn := dial(t, srv, "/ws/leaderboard")
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var top []domain.LeaderboardEntry
	if err := conn.ReadJSON(&top); err != nil {
		t.Fatal(err)
	}
	if len(top) != 1 || top[0].UserID != "u1" || top[0].Rank != 1 {
		t.Errorf("initial top = %+v", top)
	}

	// Client frames are ignored.
	conn.WriteMessage(websocket.TextMessage, []byte(`{"content":"hello"}`))

	if _, err := s.leaderboard.AddScore(context.Background(), "u2", "Dos", 20); err != nil {
		t.Fatal(err)
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&top); err != nil {
		t.Fatal(err)
	}
	if len(top) != 2 || top[0].UserID != "u2" {
		t.Errorf("updated top = %+v", top)
	}
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://app.example.com"})

	req := httptest.NewRequest(http.MethodGet, "/ws/chat", nil)
	if !check(req) {
		t.Error("request without Origin rejected")
	}
	req.Header.Set("Origin", "https://app.example.com")
	if !check(req) {
		t.Error("allowed origin rejected")
	}
	req.Header.Set("Origin", "https://evil.example.com")
	if check(req) {
		t.Error("foreign origin accepted")
	}

	open := originChecker(nil)
	if !open(req) {
		t.Error("empty allow list should accept every origin")
	}
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/weiawesome/cycredit-chat/internal/domain"
	"github.com/weiawesome/cycredit-chat/internal/hub"
)

func TestAddScoreClampsAtZero(t *testing.T) {
	svc := NewLeaderboardService(newFakeLeaderboardRepo(), hub.NewHub(), nil)
	ctx := context.Background()

	s, err := svc.AddScore(ctx, " u1 ", "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if s.UserID != "u1" || s.Score != 10 || s.DisplayName != "User u1" {
		t.Errorf("after add: %+v", s)
	}

	s, _ = svc.AddScore(ctx, "u1", "Uno", -25)
	if s.Score != 0 {
		t.Errorf("score = %d, want 0", s.Score)
	}
	if s.DisplayName != "Uno" {
		t.Errorf("display name = %q, want Uno", s.DisplayName)
	}

	s, _ = svc.AddScore(ctx, "u1", "  ", 3)
	if s.DisplayName != "User u1" {
		t.Errorf("blank display name gave %q, want User u1", s.DisplayName)
	}
}

func TestSetScore(t *testing.T) {
	svc := NewLeaderboardService(newFakeLeaderboardRepo(), hub.NewHub(), nil)

	s, err := svc.SetScore(context.Background(), "u2", "Two", -4)
	if err != nil {
		t.Fatal(err)
	}
	if s.Score != 0 {
		t.Errorf("score = %d, want 0", s.Score)
	}
	s, _ = svc.SetScore(context.Background(), "u2", "Two", 42)
	if s.Score != 42 {
		t.Errorf("score = %d, want 42", s.Score)
	}
}

func TestBlankUserRejected(t *testing.T) {
	svc := NewLeaderboardService(newFakeLeaderboardRepo(), hub.NewHub(), nil)
	if _, err := svc.AddScore(context.Background(), "  ", "x", 1); !errors.Is(err, domain.ErrInvalidUser) {
		t.Errorf("err = %v, want ErrInvalidUser", err)
	}
}

func TestTopOrderingAndLimit(t *testing.T) {
	svc := NewLeaderboardService(newFakeLeaderboardRepo(), hub.NewHub(), nil)
	ctx := context.Background()

	svc.SetScore(ctx, "a", "", 10)
	svc.SetScore(ctx, "b", "", 30)
	svc.SetScore(ctx, "c", "", 10)

	top, err := svc.Top(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"b", "a", "c"}
	for i, w := range want {
		if top[i].UserID != w || top[i].Rank != i+1 {
			t.Errorf("top[%d] = %+v, want %s rank %d", i, top[i], w, i+1)
		}
	}

	top, _ = svc.Top(ctx, 2)
	if len(top) != 2 {
		t.Errorf("len(Top(2)) = %d", len(top))
	}
}

func TestSubscribersReceiveTopOnConnectAndUpdate(t *testing.T) {
	h := hub.NewHub()
	pub := &fakePublisher{}
	svc := NewLeaderboardService(newFakeLeaderboardRepo(), h, pub)
	ctx := context.Background()

	svc.SetScore(ctx, "a", "Alpha", 5)

	c := newClient("watcher", domain.Attributes{})
	if err := svc.HandleConnect(ctx, c); err != nil {
		t.Fatal(err)
	}

	var initial []domain.LeaderboardEntry
	if err := json.Unmarshal(<-c.Send(), &initial); err != nil {
		t.Fatal(err)
	}
	if len(initial) != 1 || initial[0].DisplayName != "Alpha" {
		t.Errorf("initial top = %+v", initial)
	}

	svc.AddScore(ctx, "b", "Beta", 9)

	var updated []domain.LeaderboardEntry
	if err := json.Unmarshal(<-c.Send(), &updated); err != nil {
		t.Fatal(err)
	}
	if len(updated) != 2 || updated[0].UserID != "b" || updated[0].Rank != 1 {
		t.Errorf("updated top = %+v", updated)
	}

	if len(pub.events) != 2 {
		t.Errorf("published %d leaderboard events, want 2", len(pub.events))
	}

	svc.HandleDisconnect(ctx, c)
	if h.RoomClientCount(domain.LeaderboardRoom) != 0 {
		t.Error("subscriber still registered")
	}
}

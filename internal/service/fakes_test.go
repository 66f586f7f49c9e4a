package service

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/weiawesome/cycredit-chat/internal/cache"
	"github.com/weiawesome/cycredit-chat/internal/domain"
	"github.com/weiawesome/cycredit-chat/internal/repository"
)

var errStoreDown = errors.New("store down")

type fakeMessageRepo struct {
	mu          sync.Mutex
	messages    []domain.ChatMessage
	nextID      int64
	failSave    bool
	recentCalls []int
}

func (r *fakeMessageRepo) Save(_ context.Context, msg *domain.ChatMessage) (*domain.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failSave {
		return nil, errStoreDown
	}
	r.nextID++
	saved := *msg
	saved.ID = r.nextID
	r.messages = append(r.messages, saved)
	return &saved, nil
}

func (r *fakeMessageRepo) Recent(_ context.Context, scope, channel string, limit int) ([]domain.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recentCalls = append(r.recentCalls, limit)

	var out []domain.ChatMessage
	for i := len(r.messages) - 1; i >= 0 && len(out) < limit; i-- {
		m := r.messages[i]
		if m.Scope == scope && m.Channel == channel {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *fakeMessageRepo) Close() error { return nil }

func (r *fakeMessageRepo) saved() []domain.ChatMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.ChatMessage(nil), r.messages...)
}

func (r *fakeMessageRepo) calls() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.recentCalls...)
}

// memCache is an in-process MessageCache.
type memCache struct {
	mu       sync.Mutex
	versions map[string]int64
	data     map[string][]domain.ChatMessage
	sets     chan struct{}
}

func newMemCache() *memCache {
	return &memCache{
		versions: make(map[string]int64),
		data:     make(map[string][]domain.ChatMessage),
		sets:     make(chan struct{}, 16),
	}
}

func (c *memCache) key(room string, v int64) string {
	return room + "#" + strconv.FormatInt(v, 10)
}

func (c *memCache) Version(_ context.Context, room string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.versions[room], nil
}

func (c *memCache) Get(_ context.Context, room string, v int64) ([]domain.ChatMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	msgs, ok := c.data[c.key(room, v)]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return msgs, nil
}

func (c *memCache) Set(_ context.Context, room string, v int64, msgs []domain.ChatMessage, _ time.Duration) error {
	c.mu.Lock()
	c.data[c.key(room, v)] = msgs
	c.mu.Unlock()
	c.sets <- struct{}{}
	return nil
}

func (c *memCache) Invalidate(_ context.Context, room string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.versions[room]++
	return nil
}

func (c *memCache) Close() error { return nil }

type published struct {
	eventType string
	room      string
	payload   []byte
}

type fakePublisher struct {
	mu     sync.Mutex
	events []published
}

func (p *fakePublisher) Publish(_ context.Context, eventType, room string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{eventType, room, payload})
	return nil
}

type fakeLeaderboardRepo struct {
	mu     sync.Mutex
	scores map[string]domain.LeaderboardScore
	clock  time.Time
}

func newFakeLeaderboardRepo() *fakeLeaderboardRepo {
	return &fakeLeaderboardRepo{
		scores: make(map[string]domain.LeaderboardScore),
		clock:  time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (r *fakeLeaderboardRepo) FindByUserID(_ context.Context, userID string) (*domain.LeaderboardScore, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.scores[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &s, nil
}

func (r *fakeLeaderboardRepo) Top(_ context.Context, limit int) ([]domain.LeaderboardScore, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.LeaderboardScore, 0, len(r.scores))
	for _, s := range r.scores {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].UpdatedAt.Before(out[j].UpdatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeLeaderboardRepo) Update(_ context.Context, userID string, mutate func(*domain.LeaderboardScore)) (*domain.LeaderboardScore, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.scores[userID]
	if !ok {
		s = domain.LeaderboardScore{UserID: userID}
	}
	mutate(&s)
	r.clock = r.clock.Add(time.Second)
	s.UpdatedAt = r.clock
	r.scores[userID] = s
	return &s, nil
}

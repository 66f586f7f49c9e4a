package relay

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/weiawesome/cycredit-chat/internal/config"
	"github.com/weiawesome/cycredit-chat/internal/domain"
	"github.com/weiawesome/cycredit-chat/internal/hub"
	"github.com/weiawesome/cycredit-chat/pkg/pubsub"
)

// memPubSub delivers every published event to every pattern subscriber.
type memPubSub struct {
	mu       sync.Mutex
	subs     []chan *pubsub.Event
	channels []string
}

func (m *memPubSub) Publish(_ context.Context, channel string, ev *pubsub.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels = append(m.channels, channel)
	for _, s := range m.subs {
		s <- ev
	}
	return nil
}

func (m *memPubSub) Subscribe(ctx context.Context, _ string) (<-chan *pubsub.Event, error) {
	return m.SubscribePattern(ctx, "")
}

func (m *memPubSub) SubscribePattern(_ context.Context, _ string) (<-chan *pubsub.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan *pubsub.Event, 16)
	m.subs = append(m.subs, ch)
	return ch, nil
}

func (m *memPubSub) Unsubscribe(context.Context, string) error { return nil }
func (m *memPubSub) Close() error                              { return nil }

func newClient(id string) *hub.Client {
	return hub.NewClient(id, nil, domain.Attributes{}, config.WebSocketConfig{SendBuffer: 8})
}

func TestRelayDeliversAcrossInstances(t *testing.T) {
	bus := &memPubSub{}

	hubA, hubB := hub.NewHub(), hub.NewHub()
	relayA := New(bus, hubA, "a")
	relayB := New(bus, hubB, "b")

	ctx := context.Background()
	if err := relayA.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer relayA.Stop()
	if err := relayB.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer relayB.Stop()

	onA := newClient("on-a")
	onB := newClient("on-b")
	hubA.Join(onA, "public:global")
	hubB.Join(onB, "public:global")

	if err := relayA.Publish(ctx, pubsub.EventChatMessage, "public:global", []byte(`{"id":1}`)); err != nil {
		t.Fatalf("Publish error: %v", err)
	}

	select {
	case msg := <-onB.Send():
		if string(msg) != `{"id":1}` {
			t.Errorf("instance b received %s", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("instance b did not receive relayed message")
	}

	// The publishing instance has already delivered locally and must not
	// deliver its own event twice.
	time.Sleep(50 * time.Millisecond)
	if len(onA.Send()) != 0 {
		t.Error("origin instance delivered its own event")
	}

	if got := bus.channels[0]; got != "chat:room:public:global" {
		t.Errorf("published on %q", got)
	}
}

func TestDeliverIgnoresUnknownTypes(t *testing.T) {
	h := hub.NewHub()
	c := newClient("c")
	h.Join(c, "public:global")
	r := New(&memPubSub{}, h, "self")

	if r.Deliver(&pubsub.Event{Type: "other", Room: "public:global", Origin: "x"}) {
		t.Error("unknown event type delivered")
	}
	if r.Deliver(&pubsub.Event{Type: pubsub.EventChatMessage, Room: "public:global", Origin: "self"}) {
		t.Error("own event delivered")
	}
	if !r.Deliver(&pubsub.Event{Type: pubsub.EventChatMessage, Room: "public:global", Origin: "x", Payload: []byte(`1`)}) {
		t.Error("foreign event not delivered")
	}
	if len(c.Send()) != 1 {
		t.Errorf("queued = %d, want 1", len(c.Send()))
	}
}

func TestStartTwiceFails(t *testing.T) {
	r := New(&memPubSub{}, hub.NewHub(), "a")
	if err := r.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer r.Stop()
	if err := r.Start(context.Background()); err == nil {
		t.Error("second Start should fail")
	}
}

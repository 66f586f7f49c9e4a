package relay

import (
	"context"
	"fmt"
	"sync"

	"github.com/weiawesome/cycredit-chat/internal/hub"
	"github.com/weiawesome/cycredit-chat/pkg/log"
	"github.com/weiawesome/cycredit-chat/pkg/pubsub"
)

// Relay mirrors room broadcasts across instances. Each instance publishes
// what it delivered locally and delivers what other instances published.
type Relay struct {
	ps         pubsub.PubSub
	hub        *hub.Hub
	instanceID string

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func New(ps pubsub.PubSub, h *hub.Hub, instanceID string) *Relay {
	return &Relay{ps: ps, hub: h, instanceID: instanceID}
}

// Publish sends an already-encoded room frame to the other instances.
func (r *Relay) Publish(ctx context.Context, eventType, roomKey string, payload []byte) error {
	event, err := pubsub.NewEvent(eventType, roomKey, r.instanceID, payload)
	if err != nil {
		return fmt.Errorf("build relay event: %w", err)
	}
	if err := r.ps.Publish(ctx, pubsub.RoomChannel(roomKey), event); err != nil {
		return fmt.Errorf("publish relay event: %w", err)
	}
	return nil
}

// Start subscribes to every room channel and delivers foreign events to
// the local hub until Stop is called.
func (r *Relay) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return fmt.Errorf("relay already started")
	}

	subCtx, cancel := context.WithCancel(ctx)
	events, err := r.ps.SubscribePattern(subCtx, pubsub.PatternChatRoom)
	if err != nil {
		cancel()
		return fmt.Errorf("subscribe relay: %w", err)
	}

	r.cancel = cancel
	r.done = make(chan struct{})
	go r.consume(subCtx, events, r.done)

	l := log.L()
	l.Info().Str(log.FieldInstance, r.instanceID).Msg("relay started")
	return nil
}

func (r *Relay) consume(ctx context.Context, events <-chan *pubsub.Event, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			r.Deliver(ev)
		}
	}
}

// Deliver broadcasts ev to the local room unless this instance published it.
// It reports whether the event was delivered.
func (r *Relay) Deliver(ev *pubsub.Event) bool {
	if ev == nil || ev.Origin == r.instanceID || ev.Room == "" {
		return false
	}
	switch ev.Type {
	case pubsub.EventChatMessage, pubsub.EventLeaderboardUpdate:
		n := r.hub.Broadcast(ev.Room, ev.Payload)
		l := log.L()
		l.Debug().Str(log.FieldRoom, ev.Room).Str("origin", ev.Origin).Int("recipients", n).Msg("relayed event delivered")
		return true
	default:
		return false
	}
}

// Stop cancels the subscription and waits for the consumer to exit.
func (r *Relay) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel = nil
	r.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

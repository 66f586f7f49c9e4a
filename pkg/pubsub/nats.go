package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/weiawesome/cycredit-chat/pkg/log"
)

// NATSPubSub implements PubSub on core NATS subjects.
type NATSPubSub struct {
	conn          *nats.Conn
	subscriptions map[string]*nats.Subscription
	mu            sync.Mutex
}

// NewNATSPubSub connects to NATS with unlimited reconnects.
func NewNATSPubSub(cfg NATSConfig) (*NATSPubSub, error) {
	wait := cfg.ReconnectWait
	if wait <= 0 {
		wait = 2 * time.Second
	}
	name := cfg.Name
	if name == "" {
		name = "chat-server"
	}

	l := log.L()
	opts := []nats.Option{
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(wait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				l.Warn().Err(err).Msg("nats disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			l.Info().Str("url", nc.ConnectedUrl()).Msg("nats reconnected")
		}),
	}
	if cfg.User != "" {
		opts = append(opts, nats.UserInfo(cfg.User, cfg.Password))
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}

	return &NATSPubSub{
		conn:          conn,
		subscriptions: make(map[string]*nats.Subscription),
	}, nil
}

var subjectReplacer = strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_")

// channelToSubject maps "chat:room:public:global" to "chat.room.public.global"
// and the pattern "chat:room:*" to "chat.room.>".
func channelToSubject(channel string) string {
	parts := strings.Split(channel, ":")
	for i, p := range parts {
		if p == "*" && i == len(parts)-1 {
			parts[i] = ">"
			continue
		}
		if p == "" {
			p = "_"
		}
		parts[i] = subjectReplacer.Replace(p)
	}
	return strings.Join(parts, ".")
}

// Publish publishes an event on the subject derived from channel.
func (n *NATSPubSub) Publish(ctx context.Context, channel string, event *Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return n.conn.Publish(channelToSubject(channel), data)
}

// Subscribe subscribes to a single channel.
func (n *NATSPubSub) Subscribe(ctx context.Context, channel string) (<-chan *Event, error) {
	return n.subscribe(ctx, channel)
}

// SubscribePattern subscribes to every channel under a trailing '*' pattern.
func (n *NATSPubSub) SubscribePattern(ctx context.Context, pattern string) (<-chan *Event, error) {
	return n.subscribe(ctx, pattern)
}

func (n *NATSPubSub) subscribe(ctx context.Context, key string) (<-chan *Event, error) {
	eventCh := make(chan *Event, 100)
	l := log.L()

	var (
		closeOnce sync.Once
		sendMu    sync.Mutex
		closed    bool
	)
	closeCh := func() {
		closeOnce.Do(func() {
			sendMu.Lock()
			closed = true
			close(eventCh)
			sendMu.Unlock()
		})
	}

	sub, err := n.conn.Subscribe(channelToSubject(key), func(msg *nats.Msg) {
		var event Event
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			l.Warn().Err(err).Str("subject", msg.Subject).Msg("nats pubsub: dropping undecodable event")
			return
		}

		sendMu.Lock()
		defer sendMu.Unlock()
		if closed {
			return
		}
		select {
		case eventCh <- &event:
		default:
			l.Warn().Str("subject", msg.Subject).Msg("nats pubsub: subscriber full, event dropped")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", key, err)
	}

	n.mu.Lock()
	if existing, ok := n.subscriptions[key]; ok {
		existing.Unsubscribe()
	}
	n.subscriptions[key] = sub
	n.mu.Unlock()

	go func() {
		<-ctx.Done()
		sub.Unsubscribe()
		closeCh()
	}()

	return eventCh, nil
}

// Unsubscribe unsubscribes from a channel or pattern.
func (n *NATSPubSub) Unsubscribe(ctx context.Context, channel string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if sub, ok := n.subscriptions[channel]; ok {
		delete(n.subscriptions, channel)
		return sub.Unsubscribe()
	}
	return nil
}

// Close drains the connection.
func (n *NATSPubSub) Close() error {
	n.mu.Lock()
	for key, sub := range n.subscriptions {
		sub.Unsubscribe()
		delete(n.subscriptions, key)
	}
	n.mu.Unlock()

	return n.conn.Drain()
}

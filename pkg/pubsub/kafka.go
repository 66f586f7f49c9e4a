package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/weiawesome/cycredit-chat/pkg/log"
)

const (
	headerEventType = "event-type"
	headerOrigin    = "origin"

	kafkaPollMs         = 250
	kafkaFlushTimeoutMs = 5000
)

// channelToTopicAndKey maps a relay channel to a Kafka topic and message key.
//
//	"chat:room:public:global" → topic "chat-room-events", key "public:global"
func channelToTopicAndKey(channel string) (topic, key string, err error) {
	prefix, rest, err := splitChannel(channel)
	if err != nil {
		return "", "", err
	}
	return prefix + "-room-events", rest, nil
}

// kafkaSubscription is one consumer goroutine. The goroutine owns the
// consumer and closes it on exit; done is closed after that.
type kafkaSubscription struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func (s *kafkaSubscription) stop() {
	s.cancel()
	<-s.done
}

// KafkaPubSub implements PubSub on Kafka. All rooms of a prefix share one
// topic keyed by room, so per-room ordering holds within a partition.
type KafkaPubSub struct {
	producer *kafka.Producer
	config   KafkaConfig

	mu      sync.Mutex
	subs    map[string]*kafkaSubscription
	topics  map[string]bool
	reports chan struct{}
}

// NewKafkaPubSub creates a new Kafka-based PubSub instance.
func NewKafkaPubSub(cfg KafkaConfig) (*KafkaPubSub, error) {
	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": cfg.Brokers,
		"acks":              "1",
		"linger.ms":         5,
		"compression.type":  "snappy",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	k := &KafkaPubSub{
		producer: p,
		config:   cfg,
		subs:     make(map[string]*kafkaSubscription),
		topics:   make(map[string]bool),
		reports:  make(chan struct{}),
	}
	go k.watchDeliveries()
	return k, nil
}

func (k *KafkaPubSub) watchDeliveries() {
	defer close(k.reports)

	l := log.L()
	for e := range k.producer.Events() {
		switch ev := e.(type) {
		case *kafka.Message:
			if ev.TopicPartition.Error != nil {
				l.Error().Err(ev.TopicPartition.Error).Str("key", string(ev.Key)).Msg("kafka relay delivery failed")
			}
		case kafka.Error:
			l.Warn().Err(ev).Msg("kafka producer error")
		}
	}
}

// ensureTopic creates topic once per process; an existing topic is fine.
func (k *KafkaPubSub) ensureTopic(ctx context.Context, topic string) error {
	k.mu.Lock()
	known := k.topics[topic]
	k.mu.Unlock()
	if known {
		return nil
	}

	admin, err := kafka.NewAdminClientFromProducer(k.producer)
	if err != nil {
		return fmt.Errorf("failed to create admin client: %w", err)
	}
	defer admin.Close()

	partitions := k.config.Partitions
	if partitions <= 0 {
		partitions = 4
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	results, err := admin.CreateTopics(ctx, []kafka.TopicSpecification{{
		Topic:             topic,
		NumPartitions:     partitions,
		ReplicationFactor: 1,
	}})
	if err != nil {
		return fmt.Errorf("failed to create topic: %w", err)
	}
	for _, r := range results {
		if code := r.Error.Code(); code != kafka.ErrNoError && code != kafka.ErrTopicAlreadyExists {
			return fmt.Errorf("create topic %s: %v", r.Topic, r.Error)
		}
	}

	k.mu.Lock()
	k.topics[topic] = true
	k.mu.Unlock()
	return nil
}

// Publish produces event to the channel's topic, keyed by room. Delivery is
// asynchronous; failures are logged by the delivery watcher.
func (k *KafkaPubSub) Publish(ctx context.Context, channel string, event *Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	topic, key, err := channelToTopicAndKey(channel)
	if err != nil {
		return fmt.Errorf("failed to parse channel: %w", err)
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Key:            []byte(key),
		Value:          data,
		Headers: []kafka.Header{
			{Key: headerEventType, Value: []byte(event.Type)},
			{Key: headerOrigin, Value: []byte(event.Origin)},
		},
	}
	if err := k.producer.Produce(msg, nil); err != nil {
		return fmt.Errorf("failed to produce message: %w", err)
	}
	return nil
}

// Subscribe receives the events of a single room channel.
func (k *KafkaPubSub) Subscribe(ctx context.Context, channel string) (<-chan *Event, error) {
	topic, key, err := channelToTopicAndKey(channel)
	if err != nil {
		return nil, fmt.Errorf("failed to parse channel: %w", err)
	}
	return k.subscribe(ctx, channel, topic, key)
}

// SubscribePattern receives every event on the pattern's topic, e.g. all
// rooms for "chat:room:*".
func (k *KafkaPubSub) SubscribePattern(ctx context.Context, pattern string) (<-chan *Event, error) {
	topic, _, err := channelToTopicAndKey(pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to parse pattern: %w", err)
	}
	return k.subscribe(ctx, pattern, topic, "")
}

func (k *KafkaPubSub) subscribe(ctx context.Context, subKey, topic, onlyKey string) (<-chan *Event, error) {
	if err := k.ensureTopic(ctx, topic); err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Str("topic", topic).Msg("kafka topic check failed, subscribing anyway")
	}

	if err := k.Unsubscribe(ctx, subKey); err != nil {
		return nil, err
	}

	// Each instance needs every event, so the group is per instance and per
	// subscription.
	group := k.config.GroupID
	if group == "" {
		group = "chat-relay"
	}
	group += "-" + sanitizeGroupID(subKey)

	c, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers":       k.config.Brokers,
		"group.id":                group,
		"auto.offset.reset":       "latest",
		"enable.auto.commit":      true,
		"auto.commit.interval.ms": 5000,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka consumer: %w", err)
	}
	if err := c.Subscribe(topic, nil); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to subscribe to topic %s: %w", topic, err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &kafkaSubscription{cancel: cancel, done: make(chan struct{})}
	out := make(chan *Event, 100)

	k.mu.Lock()
	k.subs[subKey] = sub
	k.mu.Unlock()

	go func() {
		defer close(sub.done)
		defer close(out)
		defer c.Close()
		k.poll(subCtx, c, out, onlyKey)
	}()
	return out, nil
}

func (k *KafkaPubSub) poll(ctx context.Context, c *kafka.Consumer, out chan<- *Event, onlyKey string) {
	l := log.L()
	for ctx.Err() == nil {
		switch e := c.Poll(kafkaPollMs).(type) {
		case nil:
		case *kafka.Message:
			if onlyKey != "" && string(e.Key) != onlyKey {
				continue
			}
			var event Event
			if err := json.Unmarshal(e.Value, &event); err != nil {
				l.Warn().Err(err).Str("topic", *e.TopicPartition.Topic).Msg("dropping undecodable relay event")
				continue
			}
			select {
			case out <- &event:
			case <-ctx.Done():
				return
			default:
				l.Warn().Str("key", string(e.Key)).Msg("relay subscriber full, event dropped")
			}
		case kafka.Error:
			l.Error().Err(e).Int("code", int(e.Code())).Bool("fatal", e.IsFatal()).Msg("kafka consumer error")
			if e.IsFatal() {
				return
			}
		}
	}
}

// Unsubscribe stops the subscription registered under channel, if any, and
// waits for its consumer to close.
func (k *KafkaPubSub) Unsubscribe(ctx context.Context, channel string) error {
	k.mu.Lock()
	sub, ok := k.subs[channel]
	delete(k.subs, channel)
	k.mu.Unlock()

	if ok {
		sub.stop()
	}
	return nil
}

// Close stops every subscription, flushes pending messages and closes the
// producer.
func (k *KafkaPubSub) Close() error {
	k.mu.Lock()
	subs := k.subs
	k.subs = make(map[string]*kafkaSubscription)
	k.mu.Unlock()

	for _, sub := range subs {
		sub.stop()
	}

	if remaining := k.producer.Flush(kafkaFlushTimeoutMs); remaining > 0 {
		l := log.L()
		l.Warn().Int("pending", remaining).Msg("kafka producer closed with undelivered messages")
	}
	k.producer.Close()
	<-k.reports
	return nil
}

var groupIDRegexp = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

func sanitizeGroupID(s string) string {
	return strings.Trim(groupIDRegexp.ReplaceAllString(s, "-"), "-")
}

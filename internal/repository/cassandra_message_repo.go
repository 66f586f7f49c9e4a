package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gocql/gocql"

	"github.com/weiawesome/cycredit-chat/internal/config"
	"github.com/weiawesome/cycredit-chat/internal/domain"
	"github.com/weiawesome/cycredit-chat/pkg/log"
)

const cassandraSchema = `CREATE TABLE IF NOT EXISTS chat_messages_by_room (
	scope text,
	channel text,
	id bigint,
	from_user_id bigint,
	username text,
	content text,
	created_at timestamp,
	PRIMARY KEY ((scope, channel), id)
) WITH CLUSTERING ORDER BY (id DESC)`

// CassandraMessageRepository stores messages partitioned by room and
// clustered by snowflake id, newest first.
type CassandraMessageRepository struct {
	session *gocql.Session
	ids     IDGenerator
}

func NewCassandraMessageRepository(cfg config.CassandraConfig, ids IDGenerator) (*CassandraMessageRepository, error) {
	cluster := gocql.NewCluster(cfg.Hosts...)
	cluster.Keyspace = cfg.Keyspace
	cluster.Consistency = parseConsistency(cfg.Consistency)
	cluster.ConnectTimeout = cfg.ConnectTimeout
	cluster.Timeout = cfg.Timeout
	if cfg.NumConns > 0 {
		cluster.NumConns = cfg.NumConns
	}
	if cfg.Username != "" && cfg.Password != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: cfg.Username,
			Password: cfg.Password,
		}
	}
	cluster.RetryPolicy = &gocql.ExponentialBackoffRetryPolicy{
		NumRetries: 3,
		Min:        100 * time.Millisecond,
		Max:        2 * time.Second,
	}

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create cassandra session: %w", err)
	}

	if err := session.Query(cassandraSchema).Exec(); err != nil {
		session.Close()
		return nil, fmt.Errorf("failed to create chat_messages_by_room: %w", err)
	}

	return &CassandraMessageRepository{session: session, ids: ids}, nil
}

func (r *CassandraMessageRepository) Save(ctx context.Context, msg *domain.ChatMessage) (*domain.ChatMessage, error) {
	l := log.Ctx(ctx)

	id, err := r.ids.NextID()
	if err != nil {
		return nil, fmt.Errorf("generate message id: %w", err)
	}

	saved := *msg
	saved.ID = id
	if saved.CreatedAt.IsZero() {
		saved.CreatedAt = time.Now().UTC()
	}
	// Cassandra timestamps carry millisecond precision.
	saved.CreatedAt = saved.CreatedAt.Truncate(time.Millisecond)

	err = r.session.Query(
		`INSERT INTO chat_messages_by_room (scope, channel, id, from_user_id, username, content, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		saved.Scope, saved.Channel, saved.ID, saved.FromUserID, saved.Username, saved.Content, saved.CreatedAt,
	).WithContext(ctx).Exec()
	if err != nil {
		l.Error().Err(err).Str(log.FieldRoom, saved.RoomKey()).Msg("failed to insert chat message")
		return nil, fmt.Errorf("failed to insert message: %w", err)
	}
	return &saved, nil
}

func (r *CassandraMessageRepository) Recent(ctx context.Context, scope, channel string, limit int) ([]domain.ChatMessage, error) {
	iter := r.session.Query(
		`SELECT id, from_user_id, username, content, created_at
		 FROM chat_messages_by_room
		 WHERE scope = ? AND channel = ?
		 ORDER BY id DESC
		 LIMIT ?`,
		scope, channel, limit,
	).WithContext(ctx).Iter()

	messages := make([]domain.ChatMessage, 0, limit)
	var (
		id         int64
		fromUserID *int64
		username   string
		content    string
		createdAt  time.Time
	)
	for iter.Scan(&id, &fromUserID, &username, &content, &createdAt) {
		messages = append(messages, domain.ChatMessage{
			ID:         id,
			Scope:      scope,
			Channel:    channel,
			FromUserID: fromUserID,
			Username:   username,
			Content:    content,
			CreatedAt:  createdAt.UTC(),
		})
		fromUserID = nil
	}

	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}
	return messages, nil
}

func (r *CassandraMessageRepository) Close() error {
	r.session.Close()
	return nil
}

func parseConsistency(s string) gocql.Consistency {
	switch strings.ToUpper(s) {
	case "ANY":
		return gocql.Any
	case "ONE":
		return gocql.One
	case "TWO":
		return gocql.Two
	case "QUORUM":
		return gocql.Quorum
	case "ALL":
		return gocql.All
	case "LOCAL_ONE":
		return gocql.LocalOne
	case "EACH_QUORUM":
		return gocql.EachQuorum
	default:
		return gocql.LocalQuorum
	}
}

package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/weiawesome/cycredit-chat/internal/config"
	"github.com/weiawesome/cycredit-chat/internal/domain"
	"github.com/weiawesome/cycredit-chat/pkg/log"
)

type mongoMessage struct {
	ID         int64     `bson:"_id"`
	Scope      string    `bson:"scope"`
	Channel    string    `bson:"channel"`
	FromUserID *int64    `bson:"from_user_id"`
	Username   string    `bson:"username"`
	Content    string    `bson:"content"`
	CreatedAt  time.Time `bson:"created_at"`
}

// MongoMessageRepository stores messages in one collection keyed by
// snowflake id.
type MongoMessageRepository struct {
	client     *mongo.Client
	collection *mongo.Collection
	ids        IDGenerator
	timeout    time.Duration
}

func NewMongoMessageRepository(ctx context.Context, cfg config.MongoConfig, ids IDGenerator) (*MongoMessageRepository, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	coll := client.Database(cfg.Database).Collection(cfg.Collection)
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "scope", Value: 1},
			{Key: "channel", Value: 1},
			{Key: "_id", Value: -1},
		},
		Options: options.Index().SetName("idx_room_recent"),
	})
	if err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to create mongo index: %w", err)
	}

	return &MongoMessageRepository{
		client:     client,
		collection: coll,
		ids:        ids,
		timeout:    cfg.Timeout,
	}, nil
}

func (r *MongoMessageRepository) Save(ctx context.Context, msg *domain.ChatMessage) (*domain.ChatMessage, error) {
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
	// BSON datetimes carry millisecond precision.
	saved.CreatedAt = saved.CreatedAt.Truncate(time.Millisecond)

	_, err = r.collection.InsertOne(ctx, mongoMessage{
		ID:         saved.ID,
		Scope:      saved.Scope,
		Channel:    saved.Channel,
		FromUserID: saved.FromUserID,
		Username:   saved.Username,
		Content:    saved.Content,
		CreatedAt:  saved.CreatedAt,
	})
	if err != nil {
		l.Error().Err(err).Str(log.FieldRoom, saved.RoomKey()).Msg("failed to insert chat message")
		return nil, fmt.Errorf("failed to insert message: %w", err)
	}
	return &saved, nil
}

func (r *MongoMessageRepository) Recent(ctx context.Context, scope, channel string, limit int) ([]domain.ChatMessage, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, bson.M{"scope": scope, "channel": channel}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer cursor.Close(ctx)

	messages := make([]domain.ChatMessage, 0, limit)
	for cursor.Next(ctx) {
		var doc mongoMessage
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode message: %w", err)
		}
		messages = append(messages, domain.ChatMessage{
			ID:         doc.ID,
			Scope:      doc.Scope,
			Channel:    doc.Channel,
			FromUserID: doc.FromUserID,
			Username:   doc.Username,
			Content:    doc.Content,
			CreatedAt:  doc.CreatedAt.UTC(),
		})
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}
	return messages, nil
}

func (r *MongoMessageRepository) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	return r.client.Disconnect(ctx)
}

package repositories

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// Redis key prefixes
	conversationKeyPrefix   = "conversation:"
	userConversationsPrefix = "user:conversations:"
	messageListKeyPrefix    = "messages:"
)

// RedisMessageRepository implements MessageRepository using Redis. Each
// conversation is a JSON blob under its own key plus a list of serialized
// messages, appended in arrival order.
type RedisMessageRepository struct {
	client *redis.Client
}

// NewRedisMessageRepository creates a new Redis-based message repository
func NewRedisMessageRepository(client *redis.Client) *RedisMessageRepository {
	return &RedisMessageRepository{
		client: client,
	}
}

// CreateConversation stores a new conversation row and indexes it under
// the owning user.
func (r *RedisMessageRepository) CreateConversation(ctx context.Context, userID, title string) (*Conversation, error) {
	if userID == "" {
		return nil, NewMessageRepositoryError("create_conversation", "", nil, "user_id is required")
	}

	convo := &Conversation{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		CreatedAt: time.Now(),
	}

	convoJSON, err := json.Marshal(convo)
	if err != nil {
		return nil, NewMessageRepositoryError("create_conversation", convo.ID, err, "")
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, conversationKeyPrefix+convo.ID, convoJSON, 0)
	pipe.SAdd(ctx, userConversationsPrefix+userID, convo.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, NewMessageRepositoryError("create_conversation", convo.ID, err, "")
	}

	return convo, nil
}

// Append stores one message at the tail of its conversation's list.
func (r *RedisMessageRepository) Append(ctx context.Context, msg *Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	msgJSON, err := json.Marshal(msg)
	if err != nil {
		return NewMessageRepositoryError("append", msg.ConversationID, err, "failed to marshal message")
	}

	if err := r.client.RPush(ctx, messageListKeyPrefix+msg.ConversationID, msgJSON).Err(); err != nil {
		return NewMessageRepositoryError("append", msg.ConversationID, err, "")
	}
	return nil
}

// ListByConversation returns messages in append order, capped at limit
// (0 means all).
func (r *RedisMessageRepository) ListByConversation(ctx context.Context, conversationID string, limit int) ([]*Message, error) {
	if conversationID == "" {
		return nil, NewMessageRepositoryError("list", "", nil, "conversation_id is required")
	}

	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}

	raw, err := r.client.LRange(ctx, messageListKeyPrefix+conversationID, 0, stop).Result()
	if err != nil {
		return nil, NewMessageRepositoryError("list", conversationID, err, "")
	}

	messages := make([]*Message, 0, len(raw))
	for _, entry := range raw {
		var msg Message
		if err := json.Unmarshal([]byte(entry), &msg); err != nil {
			return nil, NewMessageRepositoryError("list", conversationID, err, "failed to unmarshal message")
		}
		messages = append(messages, &msg)
	}
	return messages, nil
}

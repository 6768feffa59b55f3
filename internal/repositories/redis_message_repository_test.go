package repositories

import (
	"context"
	"fmt"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis creates a test Redis client
func setupTestRedis(t *testing.T) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // Use separate DB for testing
	})

	// Ping to ensure connection
	ctx := context.Background()
	err := client.Ping(ctx).Err()
	require.NoError(t, err, "Redis must be running for tests")

	// Flush test database
	err = client.FlushDB(ctx).Err()
	require.NoError(t, err)

	return client
}

func TestNewRedisMessageRepository(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	repo := NewRedisMessageRepository(client)
	assert.NotNil(t, repo)
	assert.Equal(t, client, repo.client)
}

func TestRedisMessageRepository_CreateConversation(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()
	repo := NewRedisMessageRepository(client)
	ctx := context.Background()

	t.Run("successful creation", func(t *testing.T) {
		convo, err := repo.CreateConversation(ctx, "user-1", "U-Anchors")
		require.NoError(t, err)
		require.NotNil(t, convo)
		assert.NotEmpty(t, convo.ID)
		assert.Equal(t, "user-1", convo.UserID)
		assert.Equal(t, "U-Anchors", convo.Title)
		assert.NotZero(t, convo.CreatedAt)

		// Verify the user index
		members, err := client.SMembers(ctx, userConversationsPrefix+"user-1").Result()
		require.NoError(t, err)
		assert.Contains(t, members, convo.ID)
	})

	t.Run("missing user id fails", func(t *testing.T) {
		_, err := repo.CreateConversation(ctx, "", "U-Anchors")
		assert.Error(t, err)
	})

	t.Run("conversations get distinct ids", func(t *testing.T) {
		first, err := repo.CreateConversation(ctx, "user-2", "U-Anchors")
		require.NoError(t, err)
		second, err := repo.CreateConversation(ctx, "user-2", "U-Anchors")
		require.NoError(t, err)
		assert.NotEqual(t, first.ID, second.ID)
	})
}

func TestRedisMessageRepository_AppendAndList(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()
	repo := NewRedisMessageRepository(client)
	ctx := context.Background()

	convo, err := repo.CreateConversation(ctx, "user-1", "U-Anchors")
	require.NoError(t, err)

	t.Run("append assigns id and timestamp", func(t *testing.T) {
		msg := &Message{
			ConversationID: convo.ID,
			UserID:         "user-1",
			Role:           "user",
			Content:        "what is the u2400?",
		}
		err := repo.Append(ctx, msg)
		require.NoError(t, err)
		assert.NotEmpty(t, msg.ID)
		assert.NotZero(t, msg.CreatedAt)
	})

	t.Run("list preserves append order", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			msg := &Message{
				ConversationID: convo.ID,
				UserID:         "user-1",
				Role:           "assistant",
				Content:        fmt.Sprintf("answer %d", i),
				Meta:           map[string]interface{}{"type": "u_anchors_answer"},
			}
			require.NoError(t, repo.Append(ctx, msg))
		}

		messages, err := repo.ListByConversation(ctx, convo.ID, 0)
		require.NoError(t, err)
		require.Len(t, messages, 4)
		assert.Equal(t, "what is the u2400?", messages[0].Content)
		assert.Equal(t, "answer 0", messages[1].Content)
		assert.Equal(t, "answer 2", messages[3].Content)
		assert.Equal(t, "u_anchors_answer", messages[1].Meta["type"])
	})

	t.Run("list respects limit", func(t *testing.T) {
		messages, err := repo.ListByConversation(ctx, convo.ID, 2)
		require.NoError(t, err)
		assert.Len(t, messages, 2)
	})

	t.Run("unknown conversation returns empty list", func(t *testing.T) {
		messages, err := repo.ListByConversation(ctx, "no-such-conversation", 0)
		require.NoError(t, err)
		assert.Empty(t, messages)
	})

	t.Run("missing conversation id fails", func(t *testing.T) {
		_, err := repo.ListByConversation(ctx, "", 0)
		assert.Error(t, err)
	})
}

func TestMessageValidate(t *testing.T) {
	tests := []struct {
		name    string
		msg     Message
		wantErr bool
	}{
		{
			name: "valid message",
			msg: Message{
				ConversationID: "conv-1",
				UserID:         "user-1",
				Role:           "user",
				Content:        "hello",
			},
			wantErr: false,
		},
		{
			name: "assistant message may be empty",
			msg: Message{
				ConversationID: "conv-1",
				UserID:         "user-1",
				Role:           "assistant",
				Content:        "",
			},
			wantErr: false,
		},
		{
			name:    "missing conversation id",
			msg:     Message{UserID: "user-1", Role: "user", Content: "hello"},
			wantErr: true,
		},
		{
			name:    "missing user id",
			msg:     Message{ConversationID: "conv-1", Role: "user", Content: "hello"},
			wantErr: true,
		},
		{
			name:    "bad role",
			msg:     Message{ConversationID: "conv-1", UserID: "user-1", Role: "robot", Content: "hello"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.msg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

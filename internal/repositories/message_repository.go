package repositories

import (
	"context"
	"fmt"
	"time"
)

// Message is one persisted conversation turn. Meta carries a "type" tag
// plus the documents/snippets surfaced for the turn so the UI can
// rehydrate without re-querying the search service.
type Message struct {
	ID             string                 `json:"id"`
	ConversationID string                 `json:"conversation_id"`
	UserID         string                 `json:"user_id"`
	Role           string                 `json:"role"` // "user" or "assistant"
	Content        string                 `json:"content"`
	Meta           map[string]interface{} `json:"meta,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
}

// Validate checks required fields before a write.
func (m *Message) Validate() error {
	if m.ConversationID == "" {
		return InvalidMessageError("", "conversation_id is required")
	}
	if m.UserID == "" {
		return InvalidMessageError(m.ConversationID, "user_id is required")
	}
	if m.Role != "user" && m.Role != "assistant" {
		return InvalidMessageError(m.ConversationID, "role must be user or assistant")
	}
	return nil
}

// Conversation groups messages for one user thread.
type Conversation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// MessageRepository is the append-only conversation store. The chat
// pipeline only ever appends within a turn; reads serve the history
// endpoint, never the turn that wrote them.
type MessageRepository interface {
	CreateConversation(ctx context.Context, userID, title string) (*Conversation, error)
	Append(ctx context.Context, msg *Message) error
	ListByConversation(ctx context.Context, conversationID string, limit int) ([]*Message, error)
}

// MessageRepositoryError represents errors from the message store
type MessageRepositoryError struct {
	Operation      string
	ConversationID string
	Err            error
	Message        string
}

func (e *MessageRepositoryError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	prefix := e.Operation
	if e.ConversationID != "" {
		prefix += " (conversation: " + e.ConversationID + ")"
	}
	if e.Err != nil {
		return prefix + ": " + e.Err.Error()
	}
	return prefix + ": unknown error"
}

func (e *MessageRepositoryError) Unwrap() error {
	return e.Err
}

// NewMessageRepositoryError creates a new message repository error
func NewMessageRepositoryError(operation, conversationID string, err error, message string) *MessageRepositoryError {
	return &MessageRepositoryError{
		Operation:      operation,
		ConversationID: conversationID,
		Err:            err,
		Message:        message,
	}
}

// InvalidMessageError marks a message that failed validation.
func InvalidMessageError(conversationID, reason string) error {
	return NewMessageRepositoryError(
		"validate_message",
		conversationID,
		nil,
		fmt.Sprintf("invalid message: %s", reason),
	)
}

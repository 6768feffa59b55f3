package models

import "strings"

// ChatMessage represents a single message in a conversation
type ChatMessage struct {
	Role    string `json:"role"`    // "user", "assistant", or "system"
	Content string `json:"content"` // The message content
}

// ChatTurnRequest represents the incoming chat request from the frontend.
// Clients either send a full messages array or a single loose message field.
type ChatTurnRequest struct {
	Mode           string        `json:"mode,omitempty"`           // "" (normal) or "docs"
	ConversationID string        `json:"conversationId,omitempty"` // opaque, optional
	Messages       []ChatMessage `json:"messages,omitempty"`
	Message        string        `json:"message,omitempty"`
}

// ExtractUserText resolves the latest user utterance from a turn.
// The most recent user-role message wins; the loose message field is the
// fallback for older clients. Returns "" when nothing is resolvable.
func (r *ChatTurnRequest) ExtractUserText() string {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == "user" {
			if text := strings.TrimSpace(r.Messages[i].Content); text != "" {
				return text
			}
		}
	}
	return strings.TrimSpace(r.Message)
}

// IsDocsMode reports whether the client explicitly asked for documents only.
func (r *ChatTurnRequest) IsDocsMode() bool {
	return strings.TrimSpace(r.Mode) == "docs"
}

// ChatResponse represents the response sent back to the frontend.
// Answer is empty exactly when the turn resolved to the docs-only branch;
// every other branch carries a non-empty string. Errors ride in-band so the
// UI can always render something.
type ChatResponse struct {
	ConversationID  string                `json:"conversationId,omitempty"`
	Answer          string                `json:"answer"`
	FoldersUsed     []string              `json:"foldersUsed,omitempty"`
	RecommendedDocs []RecommendedDocument `json:"recommendedDocs"`
	SiteSnippets    []SiteSnippet         `json:"siteSnippets"`
	Error           string                `json:"error,omitempty"`
}

// BasicResponse is the generic status envelope for utility endpoints
type BasicResponse struct {
	Message string `json:"message"`
	Status  string `json:"status"` // "success" or "error"
}

package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"sales-copilot/internal/repositories"
)

const historyLimit = 500

// HistoryHandler serves persisted conversation turns for UI rehydration
type HistoryHandler struct {
	messages repositories.MessageRepository
	logger   *log.Logger
}

// NewHistoryHandler creates a new history handler
func NewHistoryHandler(messages repositories.MessageRepository, logger *log.Logger) *HistoryHandler {
	return &HistoryHandler{
		messages: messages,
		logger:   logger,
	}
}

// HistoryResponse is the envelope returned by the history endpoint
type HistoryResponse struct {
	ConversationID string                  `json:"conversationId"`
	Messages       []*repositories.Message `json:"messages"`
}

// History returns the persisted messages of one conversation
// @Summary Conversation history
// @Description List persisted turns for a conversation, oldest first. Legacy assistant rows with docs payloads stored in content are normalized into meta.
// @Tags chat
// @Produce json
// @Param conversationId query string true "Conversation ID"
// @Success 200 {object} HistoryResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/chat/history [get]
func (h *HistoryHandler) History(w http.ResponseWriter, r *http.Request) {
	conversationID := strings.TrimSpace(r.URL.Query().Get("conversationId"))
	if conversationID == "" {
		h.sendError(w, http.StatusBadRequest, "Missing conversationId")
		return
	}

	rows, err := h.messages.ListByConversation(r.Context(), conversationID, historyLimit)
	if err != nil {
		h.logger.Printf("Failed to list conversation %s: %v", conversationID, err)
		h.sendError(w, http.StatusInternalServerError, "Failed to load history")
		return
	}

	for _, row := range rows {
		normalizeRow(row)
	}

	h.sendJSON(w, http.StatusOK, HistoryResponse{
		ConversationID: conversationID,
		Messages:       rows,
	})
}

// normalizeRow migrates legacy assistant rows that stored the docs payload
// as JSON in content (ex: {type, recommendedDocs, foldersUsed, answer})
// into meta, so the UI can rehydrate the docs button uniformly.
func normalizeRow(row *repositories.Message) {
	if row.Meta == nil {
		row.Meta = map[string]interface{}{}
	}
	if len(row.Meta) > 0 || row.Role != "assistant" {
		return
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(row.Content), &parsed); err != nil {
		return
	}

	metaType, _ := parsed["type"].(string)
	docs, hasDocs := parsed["recommendedDocs"].([]interface{})
	if !hasDocs || (metaType != "docs_only" && metaType != "assistant_with_docs") {
		return
	}

	row.Meta = map[string]interface{}{
		"type":            metaType,
		"recommendedDocs": docs,
	}
	if folders, ok := parsed["foldersUsed"].([]interface{}); ok {
		row.Meta["foldersUsed"] = folders
	} else {
		row.Meta["foldersUsed"] = []interface{}{}
	}

	if metaType == "assistant_with_docs" {
		answer, _ := parsed["answer"].(string)
		row.Content = answer
	} else {
		row.Content = ""
	}
}

func (h *HistoryHandler) sendJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Printf("Failed to encode response: %v", err)
	}
}

func (h *HistoryHandler) sendError(w http.ResponseWriter, status int, message string) {
	h.sendJSON(w, status, ErrorResponse{Error: message})
}

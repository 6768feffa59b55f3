package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"sales-copilot/internal/models"
	"sales-copilot/internal/services"
)

// ChatHandler handles HTTP requests for the chat pipeline
type ChatHandler struct {
	pipeline *services.ChatPipeline
	logger   *log.Logger
}

// NewChatHandler creates a new chat handler
func NewChatHandler(pipeline *services.ChatPipeline, logger *log.Logger) *ChatHandler {
	return &ChatHandler{
		pipeline: pipeline,
		logger:   logger,
	}
}

// ErrorResponse is the error envelope for non-chat endpoints
type ErrorResponse struct {
	Error string `json:"error"`
}

// Chat handles one chat turn
// @Summary Chat with the sales co-pilot
// @Description Run one chat turn through the routing and grounding pipeline. Errors are carried in-band; the endpoint always answers 200.
// @Tags chat
// @Accept json
// @Produce json
// @Param request body models.ChatTurnRequest true "Chat turn with messages and optional mode/conversationId"
// @Success 200 {object} models.ChatResponse
// @Router /api/chat [post]
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	h.logger.Printf("Chat request from %s", r.RemoteAddr)

	// Decode failures still produce a ChatResponse: the pipeline treats an
	// empty turn as a soft error, and the UI renders the guidance string.
	var req models.ChatTurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Printf("Failed to decode chat request: %v", err)
		req = models.ChatTurnRequest{}
	}

	// Identity is resolved upstream; an absent user id just disables
	// persistence for the turn.
	userID := r.Header.Get("X-User-Id")

	resp := h.pipeline.Handle(r.Context(), userID, &req)

	h.sendJSON(w, http.StatusOK, resp)
}

func (h *ChatHandler) sendJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Printf("Failed to encode response: %v", err)
	}
}

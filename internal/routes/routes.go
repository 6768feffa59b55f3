package routes

import (
	"net/http"

	"github.com/gorilla/mux"

	"sales-copilot/internal/handlers"
)

// Handlers bundles everything the router needs
type Handlers struct {
	Health  http.HandlerFunc
	Chat    *handlers.ChatHandler
	History *handlers.HistoryHandler
}

// RegisterRoutes sets up all application routes
func RegisterRoutes(router *mux.Router, h *Handlers) {
	router.HandleFunc("/health", h.Health).Methods(http.MethodGet)

	router.HandleFunc("/api/chat", h.Chat.Chat).Methods(http.MethodPost, http.MethodOptions)

	// History is only wired when persistence is available.
	if h.History != nil {
		router.HandleFunc("/api/chat/history", h.History.History).Methods(http.MethodGet)
	}
}

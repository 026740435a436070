package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// IdentityResolver resolves the team behind a request or a session token.
// TeamFromRequest returns Anonymous and no error when the request carries no session.
type IdentityResolver interface {
	TeamFromRequest(r *http.Request) (string, error)
	TeamFromToken(token string) (string, error)
}

// WebSocketHandler handles WebSocket upgrade requests
type WebSocketHandler struct {
	connectionManager *ConnectionManager
	resolver          IdentityResolver
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(cm *ConnectionManager, resolver IdentityResolver) *WebSocketHandler {
	return &WebSocketHandler{
		connectionManager: cm,
		resolver:          resolver,
	}
}

// HandleConnection upgrades the request and registers the socket under the
// caller's team, or as an anonymous viewer.
func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	team, err := h.resolver.TeamFromRequest(r)
	if err != nil {
		log.Info().Err(err).Msg("rejected WebSocket session")
		http.Error(w, "invalid session", http.StatusUnauthorized)
		return
	}

	if err := h.connectionManager.UpgradeConnection(w, r, team, h.resolver.TeamFromToken); err != nil {
		// The upgrader has already written the HTTP error.
		log.Error().
			Err(err).
			Str("team", team).
			Msg("failed to upgrade WebSocket connection")
		return
	}
}

// HandleConnectionStats returns statistics about active connections
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	stats := h.connectionManager.GetConnectionStats()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(stats); err != nil {
		log.Error().Err(err).Msg("failed to write connection stats")
	}
}

// RegisterRoutes registers WebSocket routes
func (h *WebSocketHandler) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.HandleConnection)
	r.Get("/ws/stats", h.HandleConnectionStats)
}

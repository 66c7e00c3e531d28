package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// WebSocketHandler upgrades viewer connections for an auction.
type WebSocketHandler struct {
	manager *ConnectionManager
}

func NewWebSocketHandler(manager *ConnectionManager) *WebSocketHandler {
	return &WebSocketHandler{manager: manager}
}

// HandleAuctionConnection upgrades /ws/auction?auction_id=<uuid> requests.
func (h *WebSocketHandler) HandleAuctionConnection(w http.ResponseWriter, r *http.Request) {
	auctionIDStr := r.URL.Query().Get("auction_id")
	if auctionIDStr == "" {
		http.Error(w, "auction_id is required", http.StatusBadRequest)
		return
	}
	auctionID, err := uuid.Parse(auctionIDStr)
	if err != nil {
		http.Error(w, "invalid auction_id format", http.StatusBadRequest)
		return
	}

	if err := h.manager.Upgrade(w, r, auctionID); err != nil {
		log.Error().
			Err(err).
			Str("auction_id", auctionID.String()).
			Msg("failed to upgrade websocket connection")
		return
	}
}

// HandleStats reports connected viewer counts per auction.
func (h *WebSocketHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	h.manager.mu.RLock()
	counts := make(map[string]int, len(h.manager.connections))
	total := 0
	for id, conns := range h.manager.connections {
		counts[id.String()] = len(conns)
		total += len(conns)
	}
	h.manager.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"total_connections": total,
		"auctions":          counts,
	})
}

// RegisterRoutes mounts the websocket endpoints on the mux.
func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws/auction", h.HandleAuctionConnection)
	mux.HandleFunc("/ws/stats", h.HandleStats)
}

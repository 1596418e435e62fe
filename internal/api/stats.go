package api

import (
	"net/http"

	"github.com/storyforge-cloud/email-capture-service/internal/store"
	ws "github.com/storyforge-cloud/email-capture-service/internal/websocket"
)

type StatsHandler struct {
	store store.SubscriberStore
	hub   *ws.Hub
}

func NewStatsHandler(s store.SubscriberStore, hub *ws.Hub) *StatsHandler {
	return &StatsHandler{store: s, hub: hub}
}

// Stats returns aggregated subscriber counts for the ops dashboard.
func (h *StatsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.Stats(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	type statsResponse struct {
		store.SubscriberStats
		WebSocketClients int `json:"websocket_clients"`
	}

	clients := 0
	if h.hub != nil {
		clients = h.hub.ClientCount()
	}

	respondJSON(w, http.StatusOK, statsResponse{
		SubscriberStats:  *stats,
		WebSocketClients: clients,
	})
}

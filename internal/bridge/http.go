package bridge

import (
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Status is the /status response.
type Status struct {
	Clients    int `json:"clients"`
	MaxClients int `json:"max_clients"`
}

// Handler returns the HTTP routes: /ws, /levels, /status and, with a registry, /metrics.
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.ServeWS)
	mux.HandleFunc("/levels", h.handleLevels)
	mux.HandleFunc("/status", h.handleStatus)
	if h.registry != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(h.registry, promhttp.HandlerOpts{Registry: h.registry}))
	}
	return mux
}

func (h *Hub) handleLevels(w http.ResponseWriter, r *http.Request) {
	if h.levels == nil {
		http.Error(w, "levels unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, snapshot(h.levels))
}

func (h *Hub) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, Status{
		Clients:    h.clients.Count(),
		MaxClients: h.clients.config.MaxClients,
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

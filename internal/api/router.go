// Package api serves the HTTP surface: health, version, raw inventories,
// unified backup views, and the websocket upgrade.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/vaultscope/vaultscope/internal/metrics"
	"github.com/vaultscope/vaultscope/internal/models"
	"github.com/vaultscope/vaultscope/internal/websocket"
)

// Router is the top-level HTTP handler.
type Router struct {
	mux     *http.ServeMux
	state   *models.State
	wsHub   *websocket.Hub
	version string
	now     func() time.Time
}

// NewRouter wires all routes. wsHub may be nil; the websocket endpoint
// then answers 503.
func NewRouter(state *models.State, wsHub *websocket.Hub, version string) *Router {
	r := &Router{
		mux:     http.NewServeMux(),
		state:   state,
		wsHub:   wsHub,
		version: version,
		now:     time.Now,
	}

	r.mux.HandleFunc("/api/health", r.handleHealth)
	r.mux.HandleFunc("/api/version", r.handleVersion)
	r.mux.HandleFunc("/api/backups", r.handleBackupsRaw)
	r.mux.HandleFunc("/api/backups/unified", r.handleBackupsUnified)
	r.mux.HandleFunc("/api/backups/chart", r.handleBackupsChart)
	r.mux.HandleFunc("/ws", r.handleWebSocket)

	return r
}

// ServeHTTP adds the security headers every response carries.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
	r.mux.ServeHTTP(w, req)
}

func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	metrics.RequestsTotal.WithLabelValues("health").Inc()

	snap := r.state.GetSnapshot()
	writeJSON(w, map[string]interface{}{
		"status":     "ok",
		"lastUpdate": snap.LastUpdate,
		"connection": snap.Connection,
	})
}

func (r *Router) handleVersion(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	metrics.RequestsTotal.WithLabelValues("version").Inc()

	writeJSON(w, map[string]string{"version": r.version})
}

// handleBackupsRaw exposes the unprocessed per-source inventories, mostly
// for debugging what the pollers reported.
func (r *Router) handleBackupsRaw(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	metrics.RequestsTotal.WithLabelValues("backups_raw").Inc()

	snap := r.state.GetSnapshot()
	writeJSON(w, map[string]interface{}{
		"storageBackups": snap.PVEBackups.StorageBackups,
		"guestSnapshots": snap.PVEBackups.GuestSnapshots,
		"pbsBackups":     snap.PBSBackups,
		"pmgBackups":     snap.PMGBackups,
	})
}

func (r *Router) handleWebSocket(w http.ResponseWriter, req *http.Request) {
	if r.wsHub == nil {
		http.Error(w, "websocket unavailable", http.StatusServiceUnavailable)
		return
	}
	metrics.RequestsTotal.WithLabelValues("ws").Inc()
	r.wsHub.HandleWebSocket(w, req)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

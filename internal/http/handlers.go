package http

import (
	"context"
	"net/http"
	"time"

	"fintrack/internal/log"
)

// handleHealth is the liveness probe.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": s.deps.Now().UTC().Format(time.RFC3339),
	})
}

// handleReady checks the database and the outcome of the last
// materialization run.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status, code := "ready", http.StatusOK
	checks := map[string]string{"storage": "ok", "sync": "ok"}

	if err := s.deps.Repo.Ping(ctx); err != nil {
		log.FromContext(ctx).WarnContext(ctx, "Readiness: storage unavailable", log.FieldError, err)
		checks["storage"] = "unavailable"
		status, code = "not_ready", http.StatusServiceUnavailable
	}
	if snap := s.deps.SyncState.Snapshot(); !s.deps.SyncState.Healthy() {
		checks["sync"] = snap.LastError
		status, code = "not_ready", http.StatusServiceUnavailable
	}

	writeJSON(w, code, map[string]any{"status": status, "checks": checks})
}

func (s *Server) handleSyncState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.SyncState.Snapshot())
}

// handleSyncReload re-runs materialization and reports the resulting state.
func (s *Server) handleSyncReload(w http.ResponseWriter, r *http.Request) {
	s.runRecurring(r.Context())
	writeJSON(w, http.StatusOK, s.deps.SyncState.Snapshot())
}

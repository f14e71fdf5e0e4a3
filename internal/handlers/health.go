package handlers

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"media-catalog/internal/catalog"
	"media-catalog/internal/scanner"
	"media-catalog/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusDegraded = "degraded"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`

	Database string         `json:"database"`
	Scanner  scanner.Status `json:"scanner"`
	Stats    *catalog.Stats `json:"stats,omitempty"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`
}

// HealthCheck returns the health status of the service. The database
// is pinged on every call; a failed ping downgrades the status and the
// response code.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	response := HealthResponse{
		Status:       statusHealthy,
		Version:      startup.Version,
		Database:     "ok",
		Scanner:      h.scanner.GetStatus(),
		GoVersion:    runtime.Version(),
		NumCPU:       runtime.NumCPU(),
		NumGoroutine: runtime.NumGoroutine(),
	}

	code := http.StatusOK
	if err := h.cat.DB().PingContext(ctx); err != nil {
		response.Status = statusDegraded
		response.Database = err.Error()
		code = http.StatusServiceUnavailable
	} else if stats, err := h.cat.CalculateStats(ctx); err == nil {
		response.Stats = &stats
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	writeJSON(w, response)
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	// For HEAD requests, only send headers (no body)
	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{
			"status": "alive",
		})
	}
}

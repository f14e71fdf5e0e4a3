package handlers

import (
	"net/http"

	"media-catalog/internal/logging"
)

// TriggerScan kicks off a full catalog scan in the background. A scan
// already in progress is reported rather than queued; the scanner only
// ever runs one pass at a time.
func (h *Handlers) TriggerScan(w http.ResponseWriter, _ *http.Request) {
	if h.scanner.IsScanning() {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		writeJSON(w, map[string]string{"status": "already running"})
		return
	}

	logging.Info("Scan triggered via API")
	h.scanner.TriggerScan()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, map[string]string{"status": "scan started"})
}

// ScanStatus reports the scanner's current state.
func (h *Handlers) ScanStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, h.scanner.GetStatus())
}

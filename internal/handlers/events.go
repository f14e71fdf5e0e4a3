package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"media-catalog/internal/logging"
	"media-catalog/internal/notify"
)

// heartbeatInterval keeps idle SSE connections alive through proxies.
const heartbeatInterval = 30 * time.Second

// Events streams debounced catalog change signals over SSE. The tier
// query parameter selects the subscription tier; it defaults to public.
// Restricted subscribers also receive public signals.
func (h *Handlers) Events(w http.ResponseWriter, r *http.Request) {
	tier := notify.TierPublic
	switch r.URL.Query().Get("tier") {
	case "", string(notify.TierPublic):
	case string(notify.TierRestricted):
		tier = notify.TierRestricted
	default:
		writeJSONError(w, "unknown tier", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSONError(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	sub := h.hub.Subscribe(tier)
	defer h.hub.Unsubscribe(sub.ID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	// Initial comment so the client sees the stream is open.
	fmt.Fprintf(w, ": connected tier=%s\n\n", tier)
	flusher.Flush()

	logging.Debug("SSE subscriber %s connected (tier %s)", sub.ID, tier)

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			logging.Debug("SSE subscriber %s disconnected", sub.ID)
			return

		case sig, open := <-sub.C:
			if !open {
				return
			}
			payload, err := json.Marshal(sig)
			if err != nil {
				logging.Error("failed to encode change signal: %v", err)
				continue
			}
			fmt.Fprintf(w, "event: change\ndata: %s\n\n", payload)
			flusher.Flush()

		case <-heartbeat.C:
			fmt.Fprint(w, ": heartbeat\n\n")
			flusher.Flush()
		}
	}
}

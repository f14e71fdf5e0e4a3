package handlers

import (
	"net/http"

	"media-catalog/internal/catalog"
	"media-catalog/internal/logging"

	"github.com/gorilla/mux"
)

// ContentResponse is the catalog view of one checksum: the content row
// plus every location that references it.
type ContentResponse struct {
	Content   *catalog.Content   `json:"content"`
	Locations []catalog.Location `json:"locations"`
}

// GetContent returns the catalog entry for a checksum, read-only. Meant
// for debugging and for clients that already hold a checksum from a
// listing.
func (h *Handlers) GetContent(w http.ResponseWriter, r *http.Request) {
	checksum := mux.Vars(r)["checksum"]
	if !checksumPattern.MatchString(checksum) {
		writeJSONError(w, "invalid checksum", http.StatusBadRequest)
		return
	}

	content, err := h.cat.GetContent(r.Context(), checksum)
	if err != nil {
		logging.Error("Content lookup failed for %s: %v", checksum, err)
		writeJSONError(w, "content lookup failed", http.StatusInternalServerError)
		return
	}
	if content == nil {
		writeJSONError(w, "content not found", http.StatusNotFound)
		return
	}

	locations, err := h.cat.LocationsForChecksum(r.Context(), checksum)
	if err != nil {
		logging.Error("Location lookup failed for %s: %v", checksum, err)
		writeJSONError(w, "content lookup failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, ContentResponse{Content: content, Locations: locations})
}

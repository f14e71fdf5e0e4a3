package handlers

import (
	"errors"
	"net/http"
	"regexp"

	"media-catalog/internal/assets"
	"media-catalog/internal/logging"

	"github.com/gorilla/mux"
)

// checksumPattern matches a hex SHA-256 digest.
var checksumPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

func parseKind(s string) (assets.Kind, bool) {
	switch assets.Kind(s) {
	case assets.KindThumb:
		return assets.KindThumb, true
	case assets.KindPreview:
		return assets.KindPreview, true
	}
	return "", false
}

// GetAsset serves a derived asset for a content checksum. A cache hit
// serves the file directly; a miss queues a build and answers 202 so
// the client can retry after the asset lands.
func (h *Handlers) GetAsset(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	checksum := vars["checksum"]
	kindStr := vars["kind"]

	if !checksumPattern.MatchString(checksum) {
		writeJSONError(w, "invalid checksum", http.StatusBadRequest)
		return
	}

	kind, ok := parseKind(kindStr)
	if !ok {
		writeJSONError(w, "unknown asset kind", http.StatusBadRequest)
		return
	}

	path, pending, err := h.cache.GetOrBuild(checksum, kind)
	if err != nil {
		if errors.Is(err, assets.ErrUnknownKind) {
			writeJSONError(w, "unknown asset kind", http.StatusBadRequest)
			return
		}
		logging.Error("Asset lookup failed for %s/%s: %v", checksum, kind, err)
		writeJSONError(w, "asset lookup failed", http.StatusInternalServerError)
		return
	}

	if pending {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", "2")
		w.WriteHeader(http.StatusAccepted)
		writeJSON(w, map[string]string{
			"status": "pending",
			"detail": "asset not ready yet",
		})
		return
	}

	// Assets are content-addressed, so the response never changes for
	// a given URL.
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	http.ServeFile(w, r, path)
}

// PurgeAssets deletes every cached asset of the given kind and reports
// how many files were removed.
func (h *Handlers) PurgeAssets(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	kind, ok := parseKind(vars["kind"])
	if !ok {
		writeJSONError(w, "unknown asset kind", http.StatusBadRequest)
		return
	}

	removed, err := h.cache.Purge(kind)
	if err != nil {
		logging.Error("Asset purge failed for kind %s: %v", kind, err)
		writeJSONError(w, "purge failed", http.StatusInternalServerError)
		return
	}

	logging.Info("Purged %d cached %s asset(s)", removed, kind)
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]interface{}{
		"kind":    string(kind),
		"removed": removed,
	})
}

package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"media-catalog/internal/assets"
	"media-catalog/internal/catalog"
	"media-catalog/internal/checksum"
	"media-catalog/internal/ffmpeg"
	"media-catalog/internal/ingest"
	"media-catalog/internal/metadata"
	"media-catalog/internal/notify"
	"media-catalog/internal/scanner"
)

type testEnv struct {
	h      *Handlers
	cat    *catalog.Catalog
	cache  *assets.Cache
	hub    *notify.Hub
	router *mux.Router
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cat, err := catalog.Open(context.Background(), filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("catalog.Open failed: %v", err)
	}
	t.Cleanup(func() { cat.Close() })

	hub := notify.NewHub(20 * time.Millisecond)
	hub.Start()
	t.Cleanup(hub.Stop)

	ing := ingest.New(cat, metadata.NewExtractor(ffmpeg.New()), hub)
	scan := scanner.New(cat, ing)
	t.Cleanup(scan.Stop)

	cache, err := assets.New(cat, ffmpeg.New(), hub, nil, assets.Options{
		CacheDir:  t.TempDir(),
		ThumbSize: 64,
		Workers:   1,
	})
	if err != nil {
		t.Fatalf("assets.New failed: %v", err)
	}
	t.Cleanup(cache.Stop)

	h := New(cat, scan, cache, hub)

	r := mux.NewRouter()
	r.HandleFunc("/healthz", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/livez", h.LivenessCheck).Methods(http.MethodGet, http.MethodHead)
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/assets/purge/{kind}", h.PurgeAssets).Methods(http.MethodPost)
	api.HandleFunc("/assets/{checksum}/{kind}", h.GetAsset).Methods(http.MethodGet)
	api.HandleFunc("/contents/{checksum}", h.GetContent).Methods(http.MethodGet)
	api.HandleFunc("/scan", h.TriggerScan).Methods(http.MethodPost)
	api.HandleFunc("/scan", h.ScanStatus).Methods(http.MethodGet)
	api.HandleFunc("/events", h.Events).Methods(http.MethodGet)

	return &testEnv{h: h, cat: cat, cache: cache, hub: hub, router: r}
}

func (e *testEnv) do(t *testing.T, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

// seedContent catalogs a real PNG so asset builds have a source file.
func seedContent(t *testing.T, cat *catalog.Catalog, dir, name string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	if err := png.Encode(f, image.NewRGBA(image.Rect(0, 0, 16, 16))); err != nil {
		f.Close()
		t.Fatalf("encode png: %v", err)
	}
	f.Close()

	cs, err := checksum.File(path)
	if err != nil {
		t.Fatalf("checksum: %v", err)
	}

	tx, err := cat.BeginBatch()
	if err != nil {
		t.Fatalf("BeginBatch failed: %v", err)
	}
	content := &catalog.Content{
		Checksum:     cs,
		Width:        16,
		Height:       16,
		Metadata:     map[string]string{"mime_type": "image/png"},
		DateCreated:  time.Now(),
		DateModified: time.Now(),
	}
	if err := cat.InsertContent(tx, content); err != nil {
		t.Fatalf("InsertContent failed: %v", err)
	}
	loc := catalog.Location{Checksum: cs, Directory: dir, Filename: name}
	if err := cat.InsertLocation(tx, &loc); err != nil {
		t.Fatalf("InsertLocation failed: %v", err)
	}
	if err := cat.EndBatch(tx, nil); err != nil {
		t.Fatalf("EndBatch failed: %v", err)
	}
	return cs
}

func TestGetAssetValidation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		target string
		want   int
	}{
		{"malformed checksum", "/api/assets/nothex/thumb", http.StatusBadRequest},
		{"uppercase checksum", "/api/assets/" + strings.Repeat("AB", 32) + "/thumb", http.StatusBadRequest},
		{"short checksum", "/api/assets/" + strings.Repeat("ab", 16) + "/thumb", http.StatusBadRequest},
		{"unknown kind", "/api/assets/" + strings.Repeat("ab", 32) + "/poster", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, tt.target)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestGetAssetPendingThenServed(t *testing.T) {
	env := newTestEnv(t)
	cs := seedContent(t, env.cat, t.TempDir(), "src.png")

	rec := env.do(t, http.MethodGet, "/api/assets/"+cs+"/thumb")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("miss status = %d, want 202", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "2" {
		t.Errorf("Retry-After = %q, want 2", rec.Header().Get("Retry-After"))
	}
	var pending map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &pending); err != nil {
		t.Fatalf("bad pending body: %v", err)
	}
	if pending["status"] != "pending" {
		t.Errorf("pending body = %v", pending)
	}

	// Draining the worker pool guarantees the queued build finished.
	env.cache.Stop()

	rec = env.do(t, http.MethodGet, "/api/assets/"+cs+"/thumb")
	if rec.Code != http.StatusOK {
		t.Fatalf("hit status = %d, want 200", rec.Code)
	}
	if cc := rec.Header().Get("Cache-Control"); !strings.Contains(cc, "immutable") {
		t.Errorf("Cache-Control = %q, want immutable", cc)
	}
	if rec.Body.Len() == 0 {
		t.Error("empty asset body")
	}
}

func TestPurgeAssetsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	cs := seedContent(t, env.cat, t.TempDir(), "src.png")

	env.do(t, http.MethodGet, "/api/assets/"+cs+"/thumb")
	env.cache.Stop()

	rec := env.do(t, http.MethodPost, "/api/assets/purge/thumb")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Kind    string `json:"kind"`
		Removed int    `json:"removed"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if body.Kind != "thumb" || body.Removed != 1 {
		t.Errorf("body = %+v, want kind thumb removed 1", body)
	}

	if rec := env.do(t, http.MethodPost, "/api/assets/purge/everything"); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown kind status = %d, want 400", rec.Code)
	}
}

func TestGetContentEndpoint(t *testing.T) {
	env := newTestEnv(t)
	cs := seedContent(t, env.cat, t.TempDir(), "pic.png")

	if rec := env.do(t, http.MethodGet, "/api/contents/zzz"); rec.Code != http.StatusBadRequest {
		t.Errorf("malformed checksum status = %d, want 400", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/api/contents/"+strings.Repeat("ff", 32)); rec.Code != http.StatusNotFound {
		t.Errorf("unknown checksum status = %d, want 404", rec.Code)
	}

	rec := env.do(t, http.MethodGet, "/api/contents/"+cs)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body ContentResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if body.Content == nil || body.Content.Checksum != cs {
		t.Errorf("content = %+v, want checksum %s", body.Content, cs)
	}
	if len(body.Locations) != 1 {
		t.Errorf("got %d locations, want 1", len(body.Locations))
	}
}

func TestScanEndpoints(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/scan")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("trigger status = %d, want 202", rec.Code)
	}

	// The empty catalog makes the pass essentially instant.
	deadline := time.After(5 * time.Second)
	for {
		rec = env.do(t, http.MethodGet, "/api/scan")
		if rec.Code != http.StatusOK {
			t.Fatalf("status endpoint = %d, want 200", rec.Code)
		}
		var status scanner.Status
		if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
			t.Fatalf("bad status body: %v", err)
		}
		if !status.Scanning && !status.LastScanTime.IsZero() {
			return
		}
		select {
		case <-deadline:
			t.Fatal("triggered scan never finished")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t)
	seedContent(t, env.cat, t.TempDir(), "pic.png")

	rec := env.do(t, http.MethodGet, "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if body.Status != statusHealthy {
		t.Errorf("status = %q, want %q", body.Status, statusHealthy)
	}
	if body.Database != "ok" {
		t.Errorf("database = %q, want ok", body.Database)
	}
	if body.Stats == nil || body.Stats.TotalContents != 1 {
		t.Errorf("stats = %+v, want 1 content", body.Stats)
	}
	if body.GoVersion == "" || body.NumCPU == 0 {
		t.Error("system info missing")
	}
}

func TestLivenessCheck(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/livez")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if body["status"] != "alive" {
		t.Errorf("body = %v", body)
	}

	rec = env.do(t, http.MethodHead, "/livez")
	if rec.Code != http.StatusOK {
		t.Errorf("HEAD status = %d, want 200", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("HEAD returned a body of %d bytes", rec.Body.Len())
	}
}

func TestEventsRejectsUnknownTier(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/events?tier=secret")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestEventsStream(t *testing.T) {
	env := newTestEnv(t)

	srv := httptest.NewServer(env.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/events?tier=public", nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("read greeting: %v", err)
	}
	if !strings.HasPrefix(line, ": connected tier=public") {
		t.Errorf("greeting = %q", line)
	}

	env.hub.Schedule(notify.TierPublic)

	var event, data string
	for event == "" || data == "" {
		line, err = reader.ReadString('\n')
		if err != nil {
			t.Fatalf("read event: %v", err)
		}
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event: "))
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimSpace(strings.TrimPrefix(line, "data: "))
		}
	}

	if event != "change" {
		t.Errorf("event = %q, want change", event)
	}
	var sig notify.Signal
	if err := json.Unmarshal([]byte(data), &sig); err != nil {
		t.Fatalf("bad signal payload %q: %v", data, err)
	}
	if sig.Tier != notify.TierPublic {
		t.Errorf("signal tier = %q, want public", sig.Tier)
	}
}

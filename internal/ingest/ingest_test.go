package ingest

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"media-catalog/internal/catalog"
	"media-catalog/internal/ffmpeg"
	"media-catalog/internal/metadata"
	"media-catalog/internal/notify"
)

func newTestIngestor(t *testing.T) (*Ingestor, *catalog.Catalog, *notify.Hub) {
	t.Helper()

	cat, err := catalog.Open(context.Background(), filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("catalog.Open failed: %v", err)
	}
	t.Cleanup(func() { cat.Close() })

	hub := notify.NewHub(20 * time.Millisecond)
	hub.Start()
	t.Cleanup(hub.Stop)

	extractor := metadata.NewExtractor(ffmpeg.New())
	return New(cat, extractor, hub), cat, hub
}

func writeTestPNG(t *testing.T, dir, name string) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 6))
	for i := range img.Pix {
		img.Pix[i] = byte(i)
	}
	img.Set(0, 0, color.White)

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return path
}

func TestIngestNewFile(t *testing.T) {
	ing, cat, hub := newTestIngestor(t)
	ctx := context.Background()

	dir := t.TempDir()
	path := writeTestPNG(t, dir, "photo.png")

	sub := hub.Subscribe(notify.TierRestricted)
	defer hub.Unsubscribe(sub.ID)

	outcome, err := ing.IngestFile(ctx, path)
	if err != nil {
		t.Fatalf("IngestFile failed: %v", err)
	}
	if outcome != OutcomeNew {
		t.Fatalf("outcome = %q, want %q", outcome, OutcomeNew)
	}

	loc, err := cat.GetLocation(ctx, dir, "photo.png")
	if err != nil {
		t.Fatalf("GetLocation failed: %v", err)
	}
	if loc == nil {
		t.Fatal("no location row after ingest")
	}

	content, err := cat.GetContent(ctx, loc.Checksum)
	if err != nil {
		t.Fatalf("GetContent failed: %v", err)
	}
	if content == nil {
		t.Fatal("no content row after ingest")
	}
	if content.Width != 8 || content.Height != 6 {
		t.Errorf("dimensions = %dx%d, want 8x6", content.Width, content.Height)
	}
	if content.IsVideo {
		t.Error("png flagged as video")
	}
	if content.Metadata["mime_type"] != "image/png" {
		t.Errorf("mime_type = %q", content.Metadata["mime_type"])
	}

	// A directory not tracked as a root notifies restricted.
	select {
	case sig := <-sub.C:
		if sig.Tier != notify.TierRestricted {
			t.Errorf("signal tier = %q, want restricted", sig.Tier)
		}
	case <-time.After(time.Second):
		t.Error("no change signal after ingest")
	}
}

func TestIngestSamePathIdempotent(t *testing.T) {
	ing, cat, _ := newTestIngestor(t)
	ctx := context.Background()

	dir := t.TempDir()
	path := writeTestPNG(t, dir, "photo.png")

	if outcome, err := ing.IngestFile(ctx, path); err != nil || outcome != OutcomeNew {
		t.Fatalf("first ingest: outcome %q, err %v", outcome, err)
	}

	outcome, err := ing.IngestFile(ctx, path)
	if err != nil {
		t.Fatalf("re-ingest failed: %v", err)
	}
	if outcome != OutcomeDuplicate {
		t.Errorf("re-ingest outcome = %q, want %q", outcome, OutcomeDuplicate)
	}

	loc, err := cat.GetLocation(ctx, dir, "photo.png")
	if err != nil {
		t.Fatalf("GetLocation failed: %v", err)
	}
	locs, err := cat.LocationsForChecksum(ctx, loc.Checksum)
	if err != nil {
		t.Fatalf("LocationsForChecksum failed: %v", err)
	}
	if len(locs) != 1 {
		t.Errorf("got %d locations after re-ingest, want 1", len(locs))
	}
}

func TestIngestSameBytesNewLocation(t *testing.T) {
	ing, cat, _ := newTestIngestor(t)
	ctx := context.Background()

	dir := t.TempDir()
	path := writeTestPNG(t, dir, "orig.png")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	copyPath := filepath.Join(dir, "copy.png")
	if err := os.WriteFile(copyPath, data, 0o644); err != nil {
		t.Fatalf("write copy: %v", err)
	}

	if outcome, err := ing.IngestFile(ctx, path); err != nil || outcome != OutcomeNew {
		t.Fatalf("first ingest: outcome %q, err %v", outcome, err)
	}
	outcome, err := ing.IngestFile(ctx, copyPath)
	if err != nil {
		t.Fatalf("copy ingest failed: %v", err)
	}
	if outcome != OutcomeDuplicate {
		t.Errorf("copy outcome = %q, want %q", outcome, OutcomeDuplicate)
	}

	loc, err := cat.GetLocation(ctx, dir, "orig.png")
	if err != nil {
		t.Fatalf("GetLocation failed: %v", err)
	}
	locs, err := cat.LocationsForChecksum(ctx, loc.Checksum)
	if err != nil {
		t.Fatalf("LocationsForChecksum failed: %v", err)
	}
	if len(locs) != 2 {
		t.Errorf("got %d locations for shared checksum, want 2", len(locs))
	}

	checksums, err := cat.AllChecksums(ctx)
	if err != nil {
		t.Fatalf("AllChecksums failed: %v", err)
	}
	if len(checksums) != 1 {
		t.Errorf("got %d content rows for identical bytes, want 1", len(checksums))
	}
}

func TestIngestUnsupportedExtension(t *testing.T) {
	ing, cat, _ := newTestIngestor(t)
	ctx := context.Background()

	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	outcome, err := ing.IngestFile(ctx, path)
	if err != nil {
		t.Fatalf("IngestFile failed: %v", err)
	}
	if outcome != OutcomeUnsupported {
		t.Errorf("outcome = %q, want %q", outcome, OutcomeUnsupported)
	}

	if loc, _ := cat.GetLocation(ctx, dir, "notes.txt"); loc != nil {
		t.Error("unsupported file was cataloged")
	}
}

func TestIngestMissingFile(t *testing.T) {
	ing, _, _ := newTestIngestor(t)

	outcome, err := ing.IngestFile(context.Background(), filepath.Join(t.TempDir(), "ghost.png"))
	if outcome != OutcomeError {
		t.Errorf("outcome = %q, want %q", outcome, OutcomeError)
	}
	if err == nil {
		t.Error("no error for missing file")
	}
}

func TestPrimeKnownChecksums(t *testing.T) {
	ing, cat, _ := newTestIngestor(t)
	ctx := context.Background()

	dir := t.TempDir()
	path := writeTestPNG(t, dir, "seed.png")
	if outcome, err := ing.IngestFile(ctx, path); err != nil || outcome != OutcomeNew {
		t.Fatalf("seed ingest: outcome %q, err %v", outcome, err)
	}

	// A fresh pipeline against the same store, as after a restart.
	fresh := New(cat, metadata.NewExtractor(ffmpeg.New()), nil)
	if err := fresh.PrimeKnownChecksums(ctx); err != nil {
		t.Fatalf("PrimeKnownChecksums failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	copyPath := filepath.Join(dir, "again.png")
	if err := os.WriteFile(copyPath, data, 0o644); err != nil {
		t.Fatalf("write copy: %v", err)
	}

	outcome, err := fresh.IngestFile(ctx, copyPath)
	if err != nil {
		t.Fatalf("IngestFile failed: %v", err)
	}
	if outcome != OutcomeDuplicate {
		t.Errorf("primed re-ingest outcome = %q, want %q", outcome, OutcomeDuplicate)
	}
}

func TestIngestNotifiesOnRootTier(t *testing.T) {
	ing, cat, hub := newTestIngestor(t)
	ctx := context.Background()

	dir := t.TempDir()
	if _, err := cat.EnsureRoot(ctx, &catalog.WatchedRoot{Path: dir, Visibility: catalog.VisibilityPublic}); err != nil {
		t.Fatalf("EnsureRoot failed: %v", err)
	}
	path := writeTestPNG(t, dir, "public.png")

	sub := hub.Subscribe(notify.TierPublic)
	defer hub.Unsubscribe(sub.ID)

	if outcome, err := ing.IngestFile(ctx, path); err != nil || outcome != OutcomeNew {
		t.Fatalf("ingest: outcome %q, err %v", outcome, err)
	}

	select {
	case sig := <-sub.C:
		if sig.Tier != notify.TierPublic {
			t.Errorf("signal tier = %q, want public", sig.Tier)
		}
	case <-time.After(time.Second):
		t.Error("public subscriber missed the change signal")
	}
}

func TestTierFor(t *testing.T) {
	tests := []struct {
		v    catalog.Visibility
		want notify.Tier
	}{
		{catalog.VisibilityPublic, notify.TierPublic},
		{catalog.VisibilityRestricted, notify.TierRestricted},
		{catalog.Visibility(""), notify.TierRestricted},
	}
	for _, tt := range tests {
		if got := TierFor(tt.v); got != tt.want {
			t.Errorf("TierFor(%q) = %q, want %q", tt.v, got, tt.want)
		}
	}
}

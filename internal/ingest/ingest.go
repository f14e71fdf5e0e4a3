package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"media-catalog/internal/catalog"
	"media-catalog/internal/checksum"
	"media-catalog/internal/filesystem"
	"media-catalog/internal/logging"
	"media-catalog/internal/mediatypes"
	"media-catalog/internal/metadata"
	"media-catalog/internal/metrics"
	"media-catalog/internal/notify"
)

// Outcome classifies one ingest attempt.
type Outcome string

const (
	// OutcomeNew means a new Content row was created for the file.
	OutcomeNew Outcome = "new"
	// OutcomeDuplicate means the file's location or checksum was
	// already cataloged, including losing a concurrent-insert race.
	OutcomeDuplicate Outcome = "duplicate"
	// OutcomeUnsupported means the file's media type is not ingested.
	OutcomeUnsupported Outcome = "skipped-unsupported"
	// OutcomeError means the attempt failed and will be retried on the
	// next scan or watch event.
	OutcomeError Outcome = "error"
)

// Ingestor is the shared pipeline the Scanner and the Watcher push
// discovered files through. It owns the in-memory known-checksums
// working set; the set is an optimization only, the store's unique
// constraints are the source of truth.
type Ingestor struct {
	cat       *catalog.Catalog
	extractor *metadata.Extractor
	hub       *notify.Hub

	mu    sync.Mutex
	known map[string]struct{}
}

// New creates an Ingestor. Call PrimeKnownChecksums before the first
// scan to warm the fast path.
func New(cat *catalog.Catalog, extractor *metadata.Extractor, hub *notify.Hub) *Ingestor {
	return &Ingestor{
		cat:       cat,
		extractor: extractor,
		hub:       hub,
		known:     make(map[string]struct{}),
	}
}

// TierFor maps a root's visibility to the notification tier its
// changes are announced on.
func TierFor(v catalog.Visibility) notify.Tier {
	if v == catalog.VisibilityPublic {
		return notify.TierPublic
	}
	return notify.TierRestricted
}

// PrimeKnownChecksums loads every stored checksum into the working
// set, so re-scanning known content skips the store round-trip.
func (g *Ingestor) PrimeKnownChecksums(ctx context.Context) error {
	checksums, err := g.cat.AllChecksums(ctx)
	if err != nil {
		return fmt.Errorf("failed to load known checksums: %w", err)
	}

	g.mu.Lock()
	for _, cs := range checksums {
		g.known[cs] = struct{}{}
	}
	size := len(g.known)
	g.mu.Unlock()

	metrics.KnownChecksums.Set(float64(size))
	logging.Info("Primed known-checksum set with %d entries", size)
	return nil
}

func (g *Ingestor) isKnown(cs string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.known[cs]
	return ok
}

func (g *Ingestor) markKnown(cs string) {
	g.mu.Lock()
	g.known[cs] = struct{}{}
	size := len(g.known)
	g.mu.Unlock()
	metrics.KnownChecksums.Set(float64(size))
}

// IngestFile catalogs the file at path: dedup by checksum, Content and
// Location insert, search-index update and change notification, all
// committed as one transaction per file. Idempotent: an already-known
// location is a no-op reported as duplicate. Failures never propagate
// past the returned outcome; the next scan retries.
func (g *Ingestor) IngestFile(ctx context.Context, path string) (Outcome, error) {
	start := time.Now()
	outcome, err := g.ingest(ctx, path)
	metrics.IngestTotal.WithLabelValues(string(outcome)).Inc()
	metrics.IngestDuration.Observe(time.Since(start).Seconds())
	return outcome, err
}

func (g *Ingestor) ingest(ctx context.Context, path string) (Outcome, error) {
	dir := filepath.Dir(path)
	name := filepath.Base(path)

	existing, err := g.cat.GetLocation(ctx, dir, name)
	if err != nil {
		return OutcomeError, fmt.Errorf("location lookup for %s: %w", path, err)
	}
	if existing != nil {
		return OutcomeDuplicate, nil
	}

	if !mediatypes.IsSupported(path) {
		return OutcomeUnsupported, nil
	}

	cs, err := checksum.File(path)
	if err != nil {
		// Unavailable checksum: skip the file, the next scan retries.
		logging.Warn("Checksum unavailable for %s: %v", path, err)
		return OutcomeError, err
	}

	isNewContent, content, err := g.resolveContent(ctx, path, cs)
	if err != nil {
		return OutcomeError, err
	}

	loc := &catalog.Location{
		Checksum:  cs,
		Directory: dir,
		Filename:  name,
	}

	tx, err := g.cat.BeginBatch()
	if err != nil {
		return OutcomeError, fmt.Errorf("begin ingest tx for %s: %w", path, err)
	}

	err = func() error {
		if isNewContent {
			if insErr := g.cat.InsertContent(tx, content); insErr != nil {
				return insErr
			}
		}
		if insErr := g.cat.InsertLocation(tx, loc); insErr != nil {
			return insErr
		}
		return g.cat.UpsertSearchEntry(tx, loc, content)
	}()

	if endErr := g.cat.EndBatch(tx, err); endErr != nil {
		if catalog.IsUniqueConstraintErr(endErr) {
			// Another ingestion path won the race; its row is as good
			// as ours.
			logging.Debug("Concurrent insert for %s, already present", path)
			g.markKnown(cs)
			return OutcomeDuplicate, nil
		}
		return OutcomeError, fmt.Errorf("ingest commit for %s: %w", path, endErr)
	}

	g.markKnown(cs)

	visibility := g.cat.VisibilityForDirectory(ctx, dir)
	if g.hub != nil {
		g.hub.Schedule(TierFor(visibility))
	}

	if isNewContent {
		logging.Debug("Ingested new content %s at %s (%dx%d)", cs, path, content.Width, content.Height)
		return OutcomeNew, nil
	}
	logging.Debug("Ingested duplicate content %s at %s", cs, path)
	return OutcomeDuplicate, nil
}

// resolveContent decides whether cs needs a new Content row and builds
// it from extractor output plus file timestamps when it does. The
// in-memory set answers the common case; the store is the fallback.
func (g *Ingestor) resolveContent(ctx context.Context, path, cs string) (bool, *catalog.Content, error) {
	if g.isKnown(cs) {
		content, err := g.cat.GetContent(ctx, cs)
		if err != nil {
			return false, nil, fmt.Errorf("content lookup for %s: %w", cs, err)
		}
		if content != nil {
			return false, content, nil
		}
		// Stale working-set entry; fall through and rebuild.
	} else {
		exists, err := g.cat.ContentExists(ctx, cs)
		if err != nil {
			return false, nil, fmt.Errorf("content lookup for %s: %w", cs, err)
		}
		if exists {
			g.markKnown(cs)
			content, err := g.cat.GetContent(ctx, cs)
			if err != nil {
				return false, nil, err
			}
			return false, content, nil
		}
	}

	info, err := filesystem.StatWithRetry(path, filesystem.DefaultRetryConfig())
	if err != nil {
		return false, nil, fmt.Errorf("stat %s: %w", path, err)
	}
	created, modified := filesystem.FileTimes(info)

	fileType := mediatypes.TypeOf(path)
	result := g.extractor.Extract(ctx, path, fileType)
	if result.Fields == nil {
		result.Fields = map[string]string{}
	}
	result.Fields["mime_type"] = mediatypes.GuessMimeType(path)

	content := &catalog.Content{
		Checksum:     cs,
		IsVideo:      fileType == mediatypes.FileTypeVideo,
		Width:        result.Width,
		Height:       result.Height,
		Metadata:     result.Fields,
		DateCreated:  created,
		DateModified: modified,
	}
	return true, content, nil
}

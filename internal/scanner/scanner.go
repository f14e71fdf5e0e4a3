package scanner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"media-catalog/internal/catalog"
	"media-catalog/internal/filesystem"
	"media-catalog/internal/ingest"
	"media-catalog/internal/logging"
	"media-catalog/internal/metrics"
)

// ErrScanInProgress is returned when ScanAll is called while another
// pass is still running.
var ErrScanInProgress = errors.New("scan already in progress")

// Scanner runs the full-catalog reconciliation pass: orphan cleanup,
// folder-tag inheritance, then a depth-first walk of every active root
// feeding discovered files through the shared ingest pipeline. At most
// one pass runs at a time.
type Scanner struct {
	cat *catalog.Catalog
	ing *ingest.Ingestor

	scanMu       sync.Mutex
	isScanning   bool
	lastScanTime time.Time
	lastScanErr  error

	stopChan chan struct{}
	stopOnce sync.Once

	filesSeen atomic.Int64
	newFiles  atomic.Int64
	startTime time.Time
}

// Status describes the scanner for health output.
type Status struct {
	Scanning     bool      `json:"scanning"`
	LastScanTime time.Time `json:"lastScanTime,omitempty"`
	LastScanErr  string    `json:"lastScanError,omitempty"`
	FilesSeen    int64     `json:"filesSeen"`
	NewFiles     int64     `json:"newFiles"`
}

// New creates a Scanner over the given catalog and ingest pipeline.
func New(cat *catalog.Catalog, ing *ingest.Ingestor) *Scanner {
	return &Scanner{
		cat:       cat,
		ing:       ing,
		stopChan:  make(chan struct{}),
		startTime: time.Now(),
	}
}

// Stop aborts a running pass at the next file boundary. Progress
// committed so far stays committed.
func (s *Scanner) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
}

// tryStartScan attempts to mark a pass as running; false means another
// pass holds the slot.
func (s *Scanner) tryStartScan() bool {
	s.scanMu.Lock()
	defer s.scanMu.Unlock()
	if s.isScanning {
		return false
	}
	s.isScanning = true
	return true
}

func (s *Scanner) finishScan(err error) {
	s.scanMu.Lock()
	defer s.scanMu.Unlock()
	s.isScanning = false
	s.lastScanTime = time.Now()
	s.lastScanErr = err
}

// GetStatus returns a snapshot for health reporting.
func (s *Scanner) GetStatus() Status {
	s.scanMu.Lock()
	defer s.scanMu.Unlock()

	st := Status{
		Scanning:     s.isScanning,
		LastScanTime: s.lastScanTime,
		FilesSeen:    s.filesSeen.Load(),
		NewFiles:     s.newFiles.Load(),
	}
	if s.lastScanErr != nil {
		st.LastScanErr = s.lastScanErr.Error()
	}
	return st
}

// IsScanning reports whether a pass is currently running.
func (s *Scanner) IsScanning() bool {
	s.scanMu.Lock()
	defer s.scanMu.Unlock()
	return s.isScanning
}

// TriggerScan starts a pass in the background, ignoring the request if
// one is already running.
func (s *Scanner) TriggerScan() {
	go func() {
		if err := s.ScanAll(context.Background()); err != nil && !errors.Is(err, ErrScanInProgress) {
			logging.Error("Triggered scan failed: %v", err)
		}
	}()
}

// ScanAll runs one full reconciliation pass, synchronously. It is
// idempotent and safe to run while the watcher is live: whichever path
// discovers a file first wins, the loser's insert is a benign
// duplicate. Every file commits individually, so an interrupted pass
// leaves a valid, resumable catalog.
func (s *Scanner) ScanAll(ctx context.Context) error {
	if !s.tryStartScan() {
		logging.Info("Scan already in progress, skipping")
		return ErrScanInProgress
	}

	metrics.ScanIsRunning.Set(1)
	metrics.ScanRunsTotal.Inc()
	start := time.Now()
	logging.Info("Starting full catalog scan")

	s.filesSeen.Store(0)
	s.newFiles.Store(0)

	err := s.scan(ctx)
	s.finishScan(err)

	duration := time.Since(start)
	metrics.ScanIsRunning.Set(0)
	metrics.ScanLastRunTimestamp.Set(float64(time.Now().Unix()))
	metrics.ScanLastRunDuration.Set(duration.Seconds())

	if err != nil {
		metrics.ScanErrors.Inc()
		logging.Error("Scan failed after %v: %v", duration, err)
		return err
	}

	logging.Info("Scan complete: %d files seen, %d new, in %v",
		s.filesSeen.Load(), s.newFiles.Load(), duration)
	return nil
}

func (s *Scanner) scan(ctx context.Context) error {
	// Consistency maintenance first, so the walk starts from a clean
	// catalog.
	if err := s.cleanupOrphans(ctx); err != nil {
		logging.Error("Orphan cleanup failed: %v", err)
		metrics.ScanErrors.Inc()
	}
	if err := s.applyFolderTags(ctx); err != nil {
		logging.Error("Folder-tag sweep failed: %v", err)
		metrics.ScanErrors.Inc()
	}

	if err := s.ing.PrimeKnownChecksums(ctx); err != nil {
		return err
	}

	// Snapshot the roots once; ListRoots sorts by path so parents
	// precede children. Subdirectories tracked at snapshot time are
	// pruned from the walk; roots auto-registered during this pass are
	// descended into within the same pass.
	roots, err := s.cat.ActiveRoots(ctx)
	if err != nil {
		return fmt.Errorf("failed to list roots: %w", err)
	}

	tracked := make(map[string]bool, len(roots))
	for _, r := range roots {
		tracked[r.Path] = true
	}

	for i := range roots {
		select {
		case <-s.stopChan:
			logging.Info("Scan stopped")
			return nil
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		root := roots[i]
		info, statErr := os.Stat(root.Path)
		if statErr != nil {
			logging.Warn("Skipping root %s: %v", root.Path, statErr)
			continue
		}
		if !info.IsDir() {
			logging.Warn("Skipping root %s: not a directory", root.Path)
			continue
		}

		if walkErr := s.walkDirectory(ctx, root.Path, tracked); walkErr != nil {
			logging.Error("Walk of root %s failed: %v", root.Path, walkErr)
			metrics.ScanErrors.Inc()
		}
	}

	return nil
}

// walkDirectory processes one directory: ingests its files in
// ascending creation-time order, auto-registers unknown
// subdirectories, then descends depth-first.
func (s *Scanner) walkDirectory(ctx context.Context, dir string, tracked map[string]bool) error {
	entries, err := filesystem.ReadDirWithRetry(dir, filesystem.DefaultRetryConfig())
	if err != nil {
		return fmt.Errorf("read dir %s: %w", dir, err)
	}

	type fileEntry struct {
		name    string
		created time.Time
	}
	var files []fileEntry
	var subdirs []string

	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if entry.IsDir() {
			subdirs = append(subdirs, name)
			continue
		}

		info, infoErr := entry.Info()
		if infoErr != nil {
			logging.Warn("Failed to stat %s: %v", filepath.Join(dir, name), infoErr)
			continue
		}
		created, _ := filesystem.FileTimes(info)
		files = append(files, fileEntry{name: name, created: created})
	}

	// Deterministic, reproducible scan order.
	sort.Slice(files, func(i, j int) bool {
		if files[i].created.Equal(files[j].created) {
			return files[i].name < files[j].name
		}
		return files[i].created.Before(files[j].created)
	})

	for _, f := range files {
		select {
		case <-s.stopChan:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		path := filepath.Join(dir, f.name)
		s.filesSeen.Add(1)
		metrics.ScanFilesSeen.Inc()

		outcome, ingErr := s.ing.IngestFile(ctx, path)
		if ingErr != nil {
			logging.Warn("Ingest of %s failed: %v", path, ingErr)
			continue
		}
		if outcome == ingest.OutcomeNew {
			s.newFiles.Add(1)
			metrics.ScanNewFiles.Inc()
		}
	}

	sort.Strings(subdirs)
	for _, name := range subdirs {
		sub := filepath.Join(dir, name)

		if tracked[sub] {
			// A separately configured root; its own walk covers it.
			continue
		}

		if err := s.autoRegisterRoot(ctx, sub, dir); err != nil {
			logging.Error("Failed to auto-register root %s: %v", sub, err)
			metrics.ScanErrors.Inc()
			continue
		}

		if err := s.walkDirectory(ctx, sub, tracked); err != nil {
			logging.Error("Walk of %s failed: %v", sub, err)
			metrics.ScanErrors.Inc()
		}
	}

	return nil
}

// autoRegisterRoot records a newly observed subdirectory as an
// implicit, restricted watched root and commits immediately, so a
// crash mid-scan loses no prior progress. Roots registered earlier
// (including by a concurrent pass) are left untouched.
func (s *Scanner) autoRegisterRoot(ctx context.Context, path, parent string) error {
	root := &catalog.WatchedRoot{
		Path:        path,
		ShortName:   filepath.Base(path),
		Description: "Auto-added: " + filepath.Base(path),
		Parent:      parent,
		Visibility:  catalog.VisibilityRestricted,
	}

	created, err := s.cat.EnsureRoot(ctx, root)
	if err != nil {
		return err
	}
	if created {
		metrics.ScanRootsAutoRegistered.Inc()
		logging.Info("Auto-registered watched root %s (restricted)", path)
	}
	return nil
}

// cleanupOrphans removes locations whose directory is no longer among
// the tracked roots. Re-ingestion is the only way back in.
func (s *Scanner) cleanupOrphans(ctx context.Context) error {
	roots, err := s.cat.ListRoots(ctx)
	if err != nil {
		return err
	}

	removed, err := s.cat.DeleteOrphanLocations(ctx, roots)
	if err != nil {
		return err
	}
	if removed > 0 {
		metrics.ScanOrphansRemoved.Add(float64(removed))
		logging.Info("Orphan cleanup removed %d locations", removed)
	}
	return nil
}

// applyFolderTags reconciles tag inheritance: content under a tagged
// root gains the root's tags. The sweep only adds associations.
func (s *Scanner) applyFolderTags(ctx context.Context) error {
	roots, err := s.cat.ListRoots(ctx)
	if err != nil {
		return err
	}

	var total int64
	for i := range roots {
		added, tagErr := s.cat.ApplyFolderTags(ctx, &roots[i])
		if tagErr != nil {
			logging.Warn("Folder-tag sweep for %s failed: %v", roots[i].Path, tagErr)
			continue
		}
		total += added
	}

	if total > 0 {
		metrics.ScanFolderTagsApplied.Add(float64(total))
		logging.Info("Folder-tag sweep added %d associations", total)
	}
	return nil
}

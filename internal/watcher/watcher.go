package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"media-catalog/internal/catalog"
	"media-catalog/internal/checksum"
	"media-catalog/internal/ingest"
	"media-catalog/internal/logging"
	"media-catalog/internal/mediatypes"
	"media-catalog/internal/metrics"
	"media-catalog/internal/notify"
)

// renameWindow is how long a rename-away event waits for its matching
// create before being treated as a plain delete. Kernel rename pairs
// arrive within milliseconds; the window only needs to outlast event
// delivery jitter.
const renameWindow = 2 * time.Second

// pendingRename is a Location that just disappeared under a rename and
// may yet reappear at a new path.
type pendingRename struct {
	loc *catalog.Location
	at  time.Time
}

// Watcher applies live filesystem deltas to the catalog: creates are
// ingested, deletes remove the matching Location, renames become moves
// when the content reappears within the window. One fsnotify
// subscription per outermost root covers every nested root beneath it.
type Watcher struct {
	cat *catalog.Catalog
	ing *ingest.Ingestor
	hub *notify.Hub

	fsw      *fsnotify.Watcher
	stopChan chan struct{}
	stopOnce sync.Once
	doneCh   chan struct{}

	mu      sync.Mutex
	pending []pendingRename

	watched int
}

// New creates a Watcher over the shared catalog and ingest pipeline.
func New(cat *catalog.Catalog, ing *ingest.Ingestor, hub *notify.Hub) *Watcher {
	return &Watcher{
		cat:      cat,
		ing:      ing,
		hub:      hub,
		stopChan: make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start subscribes to the active roots, collapsed to their outermost
// ancestors, and launches the event loop.
func (w *Watcher) Start(ctx context.Context) error {
	roots, err := w.cat.ActiveRoots(ctx)
	if err != nil {
		return fmt.Errorf("failed to list roots: %w", err)
	}

	w.fsw, err = fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create filesystem watcher: %w", err)
	}

	collapsed := catalog.CollapseRoots(roots)
	for _, root := range collapsed {
		count := w.addRecursive(root.Path)
		logging.Info("Watching root %s (%d directories)", root.Path, count)
	}
	metrics.WatcherWatchedDirectories.Set(float64(w.watched))

	go w.run()
	return nil
}

// Stop shuts down the event loop and the filesystem subscription.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopChan)
		if w.fsw != nil {
			if err := w.fsw.Close(); err != nil {
				logging.Warn("Failed to close filesystem watcher: %v", err)
			}
		}
	})
	<-w.doneCh
}

// addRecursive adds dir and every non-hidden subdirectory to the
// subscription, returning how many were added.
func (w *Watcher) addRecursive(dir string) int {
	added := 0
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			logging.Warn("Watcher walk error at %s: %v", path, err)
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		if strings.HasPrefix(info.Name(), ".") && path != dir {
			return filepath.SkipDir
		}
		if addErr := w.fsw.Add(path); addErr != nil {
			logging.Warn("Failed to watch %s: %v", path, addErr)
			metrics.WatcherErrors.Inc()
			return nil
		}
		added++
		return nil
	})
	if err != nil {
		logging.Error("Failed to walk %s for watching: %v", dir, err)
		metrics.WatcherErrors.Inc()
	}
	w.watched += added
	return added
}

// run is the event-dispatch loop. A short ticker expires pending
// renames whose matching create never arrived.
func (w *Watcher) run() {
	defer close(w.doneCh)

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logging.Error("Watcher error: %v", err)
			metrics.WatcherErrors.Inc()

		case <-ticker.C:
			w.expirePendingRenames()

		case <-w.stopChan:
			return
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	// Hidden files and directories are not cataloged.
	if strings.Contains(event.Name, "/.") {
		return
	}

	metrics.WatcherEventsTotal.WithLabelValues(eventType(event.Op)).Inc()
	ctx := context.Background()

	switch {
	case event.Op&fsnotify.Create != 0:
		w.handleCreate(ctx, event.Name)
	case event.Op&fsnotify.Remove != 0:
		w.handleDelete(ctx, event.Name)
	case event.Op&fsnotify.Rename != 0:
		w.handleRenameAway(ctx, event.Name)
	}
}

func eventType(op fsnotify.Op) string {
	switch {
	case op&fsnotify.Create != 0:
		return "create"
	case op&fsnotify.Write != 0:
		return "write"
	case op&fsnotify.Remove != 0:
		return "remove"
	case op&fsnotify.Rename != 0:
		return "rename"
	case op&fsnotify.Chmod != 0:
		return "chmod"
	default:
		return "unknown"
	}
}

// handleCreate ingests a new supported file, first checking whether it
// completes a pending rename. New directories join the subscription
// but are never registered as roots; that authority stays with the
// scanner.
func (w *Watcher) handleCreate(ctx context.Context, path string) {
	info, err := os.Stat(path)
	if err != nil {
		// Vanished between event and stat; the next scan retries.
		return
	}

	if info.IsDir() {
		count := w.addRecursive(path)
		metrics.WatcherWatchedDirectories.Add(float64(count))
		logging.Debug("Watching new directory %s", path)
		return
	}

	if !mediatypes.IsSupported(path) {
		return
	}

	if w.completeRename(ctx, path) {
		return
	}

	dir := filepath.Dir(path)
	root, err := w.cat.GetRootByPath(ctx, dir)
	if err != nil {
		logging.Error("Root lookup for %s failed: %v", dir, err)
		metrics.WatcherErrors.Inc()
		return
	}
	if root == nil || root.Ignored {
		// Untracked directory: the next scanner pass registers it and
		// picks the file up.
		logging.Debug("Ignoring %s: directory not tracked as a watched root", path)
		return
	}

	if _, err := w.ing.IngestFile(ctx, path); err != nil {
		logging.Warn("Watcher ingest of %s failed: %v", path, err)
	}
}

// handleDelete removes the matching Location. A miss is a benign
// no-op: an API-driven permanent delete may have removed the row
// before the filesystem event arrived, and then no second notification
// is owed.
func (w *Watcher) handleDelete(ctx context.Context, path string) {
	dir := filepath.Dir(path)
	name := filepath.Base(path)

	removed, err := w.cat.DeleteLocation(ctx, dir, name)
	if err != nil {
		logging.Error("Failed to delete location %s: %v", path, err)
		metrics.WatcherErrors.Inc()
		return
	}
	if !removed {
		logging.Debug("Delete of %s: no location on record, ignoring", path)
		return
	}

	logging.Debug("Removed location for %s", path)
	w.hub.Schedule(ingest.TierFor(w.cat.VisibilityForDirectory(ctx, dir)))
}

// handleRenameAway records the vanished Location so a matching create
// can turn the pair into a move. If no create follows, the expiry
// sweep treats it as a delete.
func (w *Watcher) handleRenameAway(ctx context.Context, path string) {
	dir := filepath.Dir(path)
	name := filepath.Base(path)

	loc, err := w.cat.GetLocation(ctx, dir, name)
	if err != nil {
		logging.Error("Location lookup for renamed %s failed: %v", path, err)
		metrics.WatcherErrors.Inc()
		return
	}
	if loc == nil {
		return
	}

	w.mu.Lock()
	w.pending = append(w.pending, pendingRename{loc: loc, at: time.Now()})
	w.mu.Unlock()
}

// completeRename matches a created file against the pending renames by
// checksum and, on a hit, updates the Location to the new pair. The
// notification goes to the more-visible of the source and destination
// tiers.
func (w *Watcher) completeRename(ctx context.Context, newPath string) bool {
	w.mu.Lock()
	hasPending := len(w.pending) > 0
	w.mu.Unlock()
	if !hasPending {
		return false
	}

	cs, err := checksum.File(newPath)
	if err != nil {
		return false
	}

	w.mu.Lock()
	var match *catalog.Location
	for i, p := range w.pending {
		if p.loc.Checksum == cs {
			match = p.loc
			w.pending = append(w.pending[:i], w.pending[i+1:]...)
			break
		}
	}
	w.mu.Unlock()

	if match == nil {
		return false
	}

	oldDir := match.Directory
	newDir := filepath.Dir(newPath)
	newName := filepath.Base(newPath)

	if err := w.cat.MoveLocation(ctx, match, newDir, newName); err != nil {
		logging.Error("Failed to move location %s/%s to %s: %v",
			oldDir, match.Filename, newPath, err)
		metrics.WatcherErrors.Inc()
		return false
	}

	logging.Debug("Moved location %s -> %s", filepath.Join(oldDir, newName), newPath)

	tier := catalog.MoreVisible(
		w.cat.VisibilityForDirectory(ctx, oldDir),
		w.cat.VisibilityForDirectory(ctx, newDir),
	)
	w.hub.Schedule(ingest.TierFor(tier))
	return true
}

// expirePendingRenames downgrades stale pending renames to deletes.
func (w *Watcher) expirePendingRenames() {
	cutoff := time.Now().Add(-renameWindow)

	w.mu.Lock()
	var expired []*catalog.Location
	kept := w.pending[:0]
	for _, p := range w.pending {
		if p.at.Before(cutoff) {
			expired = append(expired, p.loc)
		} else {
			kept = append(kept, p)
		}
	}
	w.pending = kept
	w.mu.Unlock()

	ctx := context.Background()
	for _, loc := range expired {
		w.handleDelete(ctx, filepath.Join(loc.Directory, loc.Filename))
	}
}

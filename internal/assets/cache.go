package assets

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/disintegration/imaging"

	"media-catalog/internal/catalog"
	"media-catalog/internal/ffmpeg"
	"media-catalog/internal/ingest"
	"media-catalog/internal/logging"
	"media-catalog/internal/memory"
	"media-catalog/internal/metrics"
	"media-catalog/internal/notify"
)

// Kind is a derived-asset flavor.
type Kind string

const (
	// KindThumb is the small gallery thumbnail.
	KindThumb Kind = "thumb"
	// KindPreview is the larger lightbox preview.
	KindPreview Kind = "preview"
)

// Default bounding sizes, overridable through settings.
const (
	DefaultThumbSize   = 400
	DefaultPreviewSize = 1024
)

// jpegQuality for the fallback encoder.
const jpegQuality = 85

// ErrUnknownKind is returned for a kind outside thumb/preview.
var ErrUnknownKind = fmt.Errorf("unknown asset kind")

type buildJob struct {
	checksum string
	kind     Kind
}

// Cache generates and publishes derived assets under the naming
// contract {checksum}_{kind}.{ext}. Published files are immutable, so
// the hit path needs no lock; the in-flight set guarantees at most one
// concurrent build per key, and failed builds publish nothing so the
// next request retries.
type Cache struct {
	cacheDir string
	cat      *catalog.Catalog
	prober   *ffmpeg.Prober
	hub      *notify.Hub
	mem      *memory.Monitor

	sizes map[Kind]int

	mu       sync.Mutex
	inflight map[string]struct{}

	jobs     chan buildJob
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// Options configures a Cache.
type Options struct {
	CacheDir    string
	ThumbSize   int
	PreviewSize int
	Workers     int
}

// New creates the cache directory if needed and starts the build
// worker pool. mem may be nil when no memory backpressure is wanted.
func New(cat *catalog.Catalog, prober *ffmpeg.Prober, hub *notify.Hub, mem *memory.Monitor, opts Options) (*Cache, error) {
	if err := os.MkdirAll(opts.CacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create asset cache dir: %w", err)
	}

	if opts.ThumbSize <= 0 {
		opts.ThumbSize = DefaultThumbSize
	}
	if opts.PreviewSize <= 0 {
		opts.PreviewSize = DefaultPreviewSize
	}
	if opts.Workers <= 0 {
		opts.Workers = 2
	}

	c := &Cache{
		cacheDir: opts.CacheDir,
		cat:      cat,
		prober:   prober,
		hub:      hub,
		mem:      mem,
		sizes: map[Kind]int{
			KindThumb:   opts.ThumbSize,
			KindPreview: opts.PreviewSize,
		},
		inflight: make(map[string]struct{}),
		jobs:     make(chan buildJob, 256),
	}

	for i := 0; i < opts.Workers; i++ {
		c.wg.Add(1)
		go c.worker()
	}

	logging.Info("Derived asset cache at %s (thumb=%d, preview=%d, workers=%d)",
		opts.CacheDir, opts.ThumbSize, opts.PreviewSize, opts.Workers)
	return c, nil
}

// Stop drains the worker pool. In-flight builds run to completion.
func (c *Cache) Stop() {
	c.stopOnce.Do(func() { close(c.jobs) })
	c.wg.Wait()
}

// PublishedPath returns the on-disk path of the asset for (checksum,
// kind) and whether it exists. Extension depends on which encoder
// published it, so both are probed.
func (c *Cache) PublishedPath(checksum string, kind Kind) (string, bool) {
	for _, ext := range []string{"webp", "jpg"} {
		path := filepath.Join(c.cacheDir, fmt.Sprintf("%s_%s.%s", checksum, kind, ext))
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
	}
	return "", false
}

func buildKey(checksum string, kind Kind) string {
	return checksum + "|" + string(kind)
}

// GetOrBuild returns the published asset path on a hit. On a miss it
// enqueues a background build, unless one is already in flight for the
// same key, and reports pending either way; interactive callers show a
// placeholder and retry.
func (c *Cache) GetOrBuild(checksum string, kind Kind) (path string, pending bool, err error) {
	if _, ok := c.sizes[kind]; !ok {
		return "", false, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}

	if path, ok := c.PublishedPath(checksum, kind); ok {
		metrics.AssetCacheHits.Inc()
		return path, false, nil
	}
	metrics.AssetCacheMisses.Inc()

	key := buildKey(checksum, kind)
	c.mu.Lock()
	if _, building := c.inflight[key]; building {
		c.mu.Unlock()
		return "", true, nil
	}
	c.inflight[key] = struct{}{}
	c.mu.Unlock()

	metrics.AssetBuildsInFlight.Inc()

	select {
	case c.jobs <- buildJob{checksum: checksum, kind: kind}:
	default:
		// Queue full: drop the marker so a later request re-enqueues.
		c.clearInflight(key)
		logging.Warn("Asset build queue full, deferring %s %s", kind, checksum)
	}

	return "", true, nil
}

func (c *Cache) clearInflight(key string) {
	c.mu.Lock()
	delete(c.inflight, key)
	c.mu.Unlock()
	metrics.AssetBuildsInFlight.Dec()
}

func (c *Cache) worker() {
	defer c.wg.Done()
	for job := range c.jobs {
		c.runBuild(job)
	}
}

func (c *Cache) runBuild(job buildJob) {
	key := buildKey(job.checksum, job.kind)
	defer c.clearInflight(key)

	start := time.Now()
	assetType, err := c.build(job)

	status := "success"
	if err != nil {
		status = "error"
		logging.Warn("Asset build failed for %s %s: %v", job.kind, job.checksum, err)
	}
	metrics.AssetBuildsTotal.WithLabelValues(string(job.kind), assetType, status).Inc()
	metrics.AssetBuildDuration.WithLabelValues(string(job.kind)).Observe(time.Since(start).Seconds())
}

// build decodes the source, resizes preserving aspect ratio, encodes
// and publishes via temp-file plus atomic rename. It returns the asset
// type label for metrics.
func (c *Cache) build(job buildJob) (string, error) {
	if c.mem != nil {
		c.mem.WaitIfPaused()
	}

	ctx := context.Background()

	content, err := c.cat.GetContent(ctx, job.checksum)
	if err != nil {
		return "unknown", fmt.Errorf("content lookup: %w", err)
	}
	if content == nil {
		return "unknown", fmt.Errorf("no content for checksum %s", job.checksum)
	}

	assetType := "image"
	if content.IsVideo {
		assetType = "video"
	}

	srcPath, srcDir, err := c.sourceFile(ctx, job.checksum)
	if err != nil {
		return assetType, err
	}

	size := c.sizes[job.kind]

	// Vips shrinks during decode and encodes webp in one pipeline;
	// everything else goes through the constrained Go decoders and a
	// jpeg fallback.
	if !content.IsVideo && IsVipsAvailable() {
		data, vipsErr := renderWithVips(srcPath, size)
		if vipsErr == nil {
			if err := c.publish(job, "webp", data); err != nil {
				return assetType, err
			}
			c.notifyBuilt(ctx, srcDir)
			return assetType, nil
		}
		logging.Debug("Vips render of %s failed: %v, falling back", srcPath, vipsErr)
	}

	var img image.Image
	if content.IsVideo {
		img, err = c.prober.ExtractFrame(ctx, srcPath)
	} else {
		img, err = loadImageConstrained(srcPath)
		if err != nil && c.prober != nil && ffmpeg.Available() {
			// Formats the registered Go decoders cannot handle.
			logging.Debug("Go decode of %s failed: %v, trying ffmpeg", srcPath, err)
			img, err = c.prober.DecodeImage(ctx, srcPath)
		}
	}
	if err != nil {
		return assetType, fmt.Errorf("decode %s: %w", srcPath, err)
	}

	resized := imaging.Fit(img, size, size, imaging.Lanczos)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return assetType, fmt.Errorf("encode: %w", err)
	}

	if err := c.publish(job, "jpg", buf.Bytes()); err != nil {
		return assetType, err
	}
	c.notifyBuilt(ctx, srcDir)
	return assetType, nil
}

// sourceFile picks a live Location for the checksum whose file still
// exists on disk.
func (c *Cache) sourceFile(ctx context.Context, checksum string) (path, dir string, err error) {
	locs, err := c.cat.LocationsForChecksum(ctx, checksum)
	if err != nil {
		return "", "", fmt.Errorf("location lookup: %w", err)
	}

	for _, loc := range locs {
		if loc.Deleted {
			continue
		}
		p := filepath.Join(loc.Directory, loc.Filename)
		if _, statErr := os.Stat(p); statErr == nil {
			return p, loc.Directory, nil
		}
	}
	return "", "", fmt.Errorf("no readable source file for checksum %s", checksum)
}

// publish writes data to a temp file in the cache directory and
// renames it into place, so readers never observe a partial asset.
func (c *Cache) publish(job buildJob, ext string, data []byte) error {
	final := filepath.Join(c.cacheDir, fmt.Sprintf("%s_%s.%s", job.checksum, job.kind, ext))

	tmp, err := os.CreateTemp(c.cacheDir, ".build-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod temp file: %w", err)
	}

	if err := os.Rename(tmpName, final); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("publish %s: %w", final, err)
	}

	logging.Debug("Published asset %s", final)
	return nil
}

func (c *Cache) notifyBuilt(ctx context.Context, srcDir string) {
	if c.hub == nil {
		return
	}
	c.hub.Schedule(ingest.TierFor(c.cat.VisibilityForDirectory(ctx, srcDir)))
}

// Purge deletes every published asset of the given kind and returns
// the count. Assets are re-derivable, so purging is safe at any time
// and needs no catalog changes.
func (c *Cache) Purge(kind Kind) (int, error) {
	if _, ok := c.sizes[kind]; !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}

	entries, err := os.ReadDir(c.cacheDir)
	if err != nil {
		return 0, fmt.Errorf("read cache dir: %w", err)
	}

	pattern := fmt.Sprintf("*_%s.*", kind)
	count := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		matched, matchErr := filepath.Match(pattern, entry.Name())
		if matchErr != nil || !matched {
			continue
		}
		if err := os.Remove(filepath.Join(c.cacheDir, entry.Name())); err != nil {
			logging.Warn("Failed to purge %s: %v", entry.Name(), err)
			continue
		}
		count++
	}

	metrics.AssetsPurgedTotal.WithLabelValues(string(kind)).Add(float64(count))
	logging.Info("Purged %d %s assets", count, kind)
	return count, nil
}

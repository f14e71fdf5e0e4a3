package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"media-catalog/internal/assets"
	"media-catalog/internal/catalog"
	"media-catalog/internal/config"
	"media-catalog/internal/ffmpeg"
	"media-catalog/internal/filesystem"
	"media-catalog/internal/handlers"
	"media-catalog/internal/ingest"
	"media-catalog/internal/logging"
	"media-catalog/internal/memory"
	"media-catalog/internal/metadata"
	"media-catalog/internal/metrics"
	"media-catalog/internal/middleware"
	"media-catalog/internal/notify"
	"media-catalog/internal/scanner"
	"media-catalog/internal/startup"
	"media-catalog/internal/watcher"
	"media-catalog/internal/workers"

	"github.com/gorilla/mux"
)

func main() {
	startTime := time.Now()

	cfg, err := config.Load(os.Getenv("MEDIA_CATALOG_CONFIG"))
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	logging.SetLevel(logging.ParseLevel(cfg.LogLevel))
	if cfg.LogFile != "" {
		logging.ConfigureFile(logging.FileConfig{
			Path:       cfg.LogFile,
			MaxSizeMB:  cfg.LogMaxSizeMB,
			MaxBackups: cfg.LogMaxBackups,
			MaxAgeDays: cfg.LogMaxAgeDays,
			Compress:   true,
		})
	}

	startup.LogConfig(cfg)

	if err := startup.PrepareDirectories(cfg); err != nil {
		startup.LogFatal("Directory setup failed: %v", err)
	}

	// Label filesystem retry metrics by the volume they hit. Roots are
	// usually distinct NFS mounts; cache and database live elsewhere.
	volumes := map[string]string{
		"cache":    cfg.AssetCacheDir,
		"database": filepath.Dir(cfg.DatabasePath),
	}
	for _, rc := range cfg.Roots {
		volumes[filepath.Base(rc.Path)] = rc.Path
	}
	filesystem.SetDefaultVolumeResolver(filesystem.NewVolumeResolver(volumes))
	filesystem.SetObserver(metrics.NewFilesystemObserver())

	// Configure GOMEMLIMIT from container limits and start the monitor
	// that build workers use for backpressure.
	memory.ConfigureFromEnv()
	memMonitor := memory.NewMonitor(memory.DefaultConfig())
	memMonitor.Start()

	ctx := context.Background()

	// Open the catalog database (runs migrations).
	catStart := time.Now()
	cat, err := catalog.Open(ctx, cfg.DatabasePath)
	if err != nil {
		startup.LogFatal("Failed to open catalog: %v", err)
	}
	defer cat.Close()
	startup.LogCatalogInit(time.Since(catStart))

	if err := seedCatalog(ctx, cat, cfg); err != nil {
		startup.LogFatal("Failed to seed catalog: %v", err)
	}

	// Change notification hub.
	hub := notify.NewHub(cfg.DebounceDelay)
	hub.Start()

	// Ingest pipeline shared by scanner and watcher.
	prober := ffmpeg.New()
	ing := ingest.New(cat, metadata.NewExtractor(prober), hub)
	if err := ing.PrimeKnownChecksums(ctx); err != nil {
		logging.Warn("Failed to prime known checksums: %v", err)
	}

	// Scanner.
	scan := scanner.New(cat, ing)
	startup.LogScannerInit(cfg.ScanOnStart)
	if cfg.ScanOnStart {
		scan.TriggerScan()
	}

	// Filesystem watcher.
	var watch *watcher.Watcher
	if cfg.WatchEnabled {
		watch = watcher.New(cat, ing, hub)
		if err := watch.Start(ctx); err != nil {
			logging.Error("Failed to start watcher: %v", err)
			watch = nil
		}
	}
	startup.LogWatcherInit(watch != nil, len(cfg.Roots))

	// Derived asset cache.
	assetWorkers := cfg.AssetWorkers
	if assetWorkers <= 0 {
		assetWorkers = workers.ForCPU(8)
	}
	if err := assets.InitVips(); err != nil {
		logging.Warn("libvips init failed, falling back to pure-Go decoding: %v", err)
	}
	cache, err := assets.New(cat, prober, hub, memMonitor, assets.Options{
		CacheDir:    cfg.AssetCacheDir,
		ThumbSize:   cat.GetSettingInt(ctx, catalog.SettingThumbSize, cfg.ThumbSize),
		PreviewSize: cat.GetSettingInt(ctx, catalog.SettingPreviewSize, cfg.PreviewSize),
		Workers:     assetWorkers,
	})
	if err != nil {
		startup.LogFatal("Failed to initialize asset cache: %v", err)
	}
	startup.LogAssetCacheInit(assetWorkers)

	// Periodic stats collection for Prometheus.
	metrics.InitializeMetrics()
	collector := metrics.NewCollector(cat, 30*time.Second)
	collector.Start()

	// HTTP facade.
	h := handlers.New(cat, scan, cache, hub)
	router := setupRouter(h)
	startup.LogHTTPRoutes(router)

	loggedHandler := middleware.Logger(middleware.DefaultLoggingConfig())(router)
	meteredHandler := middleware.Metrics(middleware.DefaultMetricsConfig())(loggedHandler)
	handler := middleware.Compression(middleware.DefaultCompressionConfig())(meteredHandler)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	go handleShutdown(srv, scan, watch, cache, hub, collector, memMonitor)

	startup.LogServerStarted(cfg.Port, time.Since(startTime))
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		startup.LogFatal("Server error: %v", err)
	}
}

// seedCatalog registers configured roots and default settings without
// clobbering rows that already exist. Tags named on a root are attached
// so scan passes can inherit them onto content.
func seedCatalog(ctx context.Context, cat *catalog.Catalog, cfg *config.Config) error {
	for _, rc := range cfg.Roots {
		abs, err := filepath.Abs(rc.Path)
		if err != nil {
			return err
		}
		root := &catalog.WatchedRoot{
			Path:       abs,
			ShortName:  filepath.Base(abs),
			Visibility: rc.Visibility,
			Basepath:   true,
			BuiltIn:    true,
		}
		created, err := cat.EnsureRoot(ctx, root)
		if err != nil {
			return err
		}
		if created {
			logging.Info("Registered root %s (%s)", abs, rc.Visibility)
		}

		if len(rc.Tags) == 0 {
			continue
		}
		stored, err := cat.GetRootByPath(ctx, abs)
		if err != nil || stored == nil {
			logging.Warn("Cannot attach tags to root %s: %v", abs, err)
			continue
		}
		for _, tag := range rc.Tags {
			if err := cat.AddTagToRoot(ctx, stored.ID, tag); err != nil {
				logging.Warn("Failed to attach tag %q to root %s: %v", tag, abs, err)
			}
		}
	}

	if err := cat.SeedSetting(ctx, catalog.SettingThumbSize, strconv.Itoa(cfg.ThumbSize)); err != nil {
		return err
	}
	return cat.SeedSetting(ctx, catalog.SettingPreviewSize, strconv.Itoa(cfg.PreviewSize))
}

func setupRouter(h *handlers.Handlers) *mux.Router {
	r := mux.NewRouter()

	// Health, version, and metrics routes
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")
	r.Handle("/metrics", h.MetricsHandler()).Methods("GET")

	// API routes
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/assets/purge/{kind}", h.PurgeAssets).Methods("POST")
	api.HandleFunc("/assets/{checksum}/{kind}", h.GetAsset).Methods("GET")
	api.HandleFunc("/contents/{checksum}", h.GetContent).Methods("GET")
	api.HandleFunc("/scan", h.TriggerScan).Methods("POST")
	api.HandleFunc("/scan", h.ScanStatus).Methods("GET")
	api.HandleFunc("/events", h.Events).Methods("GET")

	return r
}

func handleShutdown(srv *http.Server, scan *scanner.Scanner, watch *watcher.Watcher,
	cache *assets.Cache, hub *notify.Hub, collector *metrics.Collector, mem *memory.Monitor,
) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	startup.LogShutdownStep("Stopping scanner")
	scan.Stop()
	startup.LogShutdownStepComplete("Scanner stopped")

	if watch != nil {
		startup.LogShutdownStep("Stopping watcher")
		watch.Stop()
		startup.LogShutdownStepComplete("Watcher stopped")
	}

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	startup.LogShutdownStep("Stopping asset builds")
	cache.Stop()
	assets.ShutdownVips()
	startup.LogShutdownStepComplete("Asset builds stopped")

	startup.LogShutdownStep("Stopping notification hub")
	hub.Stop()
	startup.LogShutdownStepComplete("Notification hub stopped")

	collector.Stop()
	mem.Stop()

	startup.LogShutdownComplete()
}

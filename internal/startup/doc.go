// Package startup handles application initialization and
// startup/shutdown logging.
//
// Configuration itself lives in the config package; this package
// validates the directories the service needs and provides consistent
// logging throughout the application lifecycle.
//
// # Directory Setup
//
// [PrepareDirectories] validates and creates required directories:
//   - Database directory: required, must be writable
//   - Asset cache directory: required, must be writable
//   - Watched roots: checked but only warned about, since a share may
//     mount after the service starts
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo]:
//   - Version: Application version
//   - Commit: Git commit hash
//   - BuildTime: Build timestamp
//   - GoVersion: Go compiler version
//
// # Lifecycle Logging
//
// The package provides structured logging functions for consistent output:
//   - [LogConfig]: Banner, system information, and loaded configuration
//   - [LogCatalogInit]: Catalog database initialization timing
//   - [LogAssetCacheInit]: Asset cache setup and FFmpeg availability
//   - [LogScannerInit]: Scanner configuration
//   - [LogWatcherInit]: Filesystem watcher status
//   - [LogHTTPRoutes]: Registered HTTP routes (debug level)
//   - [LogServerStarted]: Server endpoints and startup duration
//   - [LogShutdownInitiated]: Graceful shutdown start
//   - [LogShutdownComplete]: Shutdown completion
//
// # Example Usage
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    startup.LogFatal("Configuration error: %v", err)
//	}
//	startup.LogConfig(cfg)
//	if err := startup.PrepareDirectories(cfg); err != nil {
//	    startup.LogFatal("Directory setup failed: %v", err)
//	}
//
//	// Initialize components...
//	startup.LogCatalogInit(time.Since(catStart))
//
//	// Start server...
//	startup.LogServerStarted(cfg.Port, time.Since(startTime))
//
//	// On shutdown...
//	startup.LogShutdownInitiated("SIGTERM")
//	// ... cleanup ...
//	startup.LogShutdownComplete()
package startup

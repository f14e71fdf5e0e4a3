// Package filesystem provides filesystem helpers hardened against NFS
// stale-handle errors.
//
// Media libraries frequently live on network mounts. When a file or
// directory handle goes stale (server restart, export change), the kernel
// returns ESTALE and a plain os.Stat or os.Open fails even though the
// path is perfectly valid. StatWithRetry, OpenWithRetry and
// ReadDirWithRetry wrap the corresponding os calls with a bounded
// exponential-backoff retry loop that retries only on ESTALE; all other
// errors return immediately.
//
// # Volume labels
//
// Metrics are labeled by logical volume ("media", "cache", "database")
// resolved from the path via longest-prefix matching:
//
//	filesystem.SetDefaultVolumeResolver(filesystem.NewVolumeResolver(map[string]string{
//	    "media":    cfg.MediaRootsParent,
//	    "cache":    cfg.CacheDir,
//	    "database": filepath.Dir(cfg.DatabasePath),
//	}))
//
// # Metrics
//
// Recording goes through the Observer interface, implemented by the
// metrics package and installed with SetObserver at startup. A nil
// observer disables recording, which keeps unit tests quiet.
package filesystem

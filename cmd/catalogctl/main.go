package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"media-catalog/internal/assets"
	"media-catalog/internal/catalog"
	"media-catalog/internal/config"
	"media-catalog/internal/ffmpeg"
	"media-catalog/internal/ingest"
	"media-catalog/internal/logging"
	"media-catalog/internal/mediatypes"
	"media-catalog/internal/metadata"
	"media-catalog/internal/notify"
	"media-catalog/internal/scanner"

	"github.com/spf13/cobra"
)

const defaultTimeout = 30 * time.Second

var (
	flagConfig     string
	flagDB         string
	flagKind       string
	flagPath       string
	flagDir        string
	flagAll        bool
	flagVisibility string
	flagName       string
	flagRestore    bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// openCatalog loads configuration and opens the catalog database. The
// caller must defer cat.Close(). The --db flag overrides the configured
// database path so the tool can be pointed at any catalog file.
func openCatalog(ctx context.Context) (*catalog.Catalog, *config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	dbPath := cfg.DatabasePath
	if flagDB != "" {
		dbPath = flagDB
	}

	cat, err := catalog.Open(ctx, dbPath)
	if err != nil {
		return nil, nil, fmt.Errorf("opening catalog %s: %w", dbPath, err)
	}
	return cat, cfg, nil
}

var rootCmd = &cobra.Command{
	Use:   "catalogctl",
	Short: "Maintenance operations for the media catalog",
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run a full catalog scan",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		cat, _, err := openCatalog(ctx)
		if err != nil {
			return err
		}
		defer cat.Close()

		hub := notify.NewHub(notify.DefaultDebounce)
		hub.Start()
		defer hub.Stop()

		ing := ingest.New(cat, metadata.NewExtractor(ffmpeg.New()), hub)
		if err := ing.PrimeKnownChecksums(ctx); err != nil {
			logging.Warn("Failed to prime known checksums: %v", err)
		}

		scan := scanner.New(cat, ing)
		start := time.Now()
		if err := scan.ScanAll(ctx); err != nil {
			return fmt.Errorf("scan failed: %w", err)
		}

		status := scan.GetStatus()
		fmt.Printf("Scan complete in %v: %d file(s) seen, %d new\n",
			time.Since(start).Round(time.Millisecond), status.FilesSeen, status.NewFiles)
		return nil
	},
}

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete cached derived assets of one kind",
	RunE: func(cmd *cobra.Command, _ []string) error {
		kind := assets.Kind(flagKind)
		if kind != assets.KindThumb && kind != assets.KindPreview {
			return fmt.Errorf("unknown kind %q (want %s or %s)", flagKind, assets.KindThumb, assets.KindPreview)
		}

		ctx := cmd.Context()
		cat, cfg, err := openCatalog(ctx)
		if err != nil {
			return err
		}
		defer cat.Close()

		cache, err := assets.New(cat, ffmpeg.New(), nil, nil, assets.Options{
			CacheDir:    cfg.AssetCacheDir,
			ThumbSize:   cfg.ThumbSize,
			PreviewSize: cfg.PreviewSize,
			Workers:     1,
		})
		if err != nil {
			return fmt.Errorf("opening asset cache: %w", err)
		}
		defer cache.Stop()

		removed, err := cache.Purge(kind)
		if err != nil {
			return fmt.Errorf("purge failed: %w", err)
		}
		fmt.Printf("Removed %d cached %s asset(s)\n", removed, kind)
		return nil
	},
}

var reprocessCmd = &cobra.Command{
	Use:   "reprocess",
	Short: "Re-extract metadata for cataloged content",
	Long: `Re-runs metadata extraction over existing catalog entries and
updates dimensions and embedded fields in place. The mime_type key is
preserved; a file that no longer decodes keeps its stale metadata.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		set := 0
		for _, v := range []bool{flagPath != "", flagDir != "", flagAll} {
			if v {
				set++
			}
		}
		if set != 1 {
			return fmt.Errorf("exactly one of --path, --dir, or --all is required")
		}

		ctx := cmd.Context()
		cat, _, err := openCatalog(ctx)
		if err != nil {
			return err
		}
		defer cat.Close()

		r := &reprocessor{cat: cat, extractor: metadata.NewExtractor(ffmpeg.New())}

		switch {
		case flagPath != "":
			err = r.reprocessPath(ctx, flagPath)
		case flagDir != "":
			err = r.reprocessDir(ctx, flagDir)
		default:
			err = r.reprocessAll(ctx)
		}
		if err != nil {
			return err
		}
		fmt.Printf("Reprocessed %d content(s), %d kept stale metadata\n", r.updated, r.stale)
		return nil
	},
}

var ftsRebuildCmd = &cobra.Command{
	Use:   "fts-rebuild",
	Short: "Drop and repopulate the full-text search index",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		cat, _, err := openCatalog(ctx)
		if err != nil {
			return err
		}
		defer cat.Close()

		start := time.Now()
		n, err := cat.RebuildSearchIndex(ctx, 500)
		if err != nil {
			return fmt.Errorf("rebuild failed: %w", err)
		}
		fmt.Printf("Search index rebuilt: %d entries in %v\n", n, time.Since(start).Round(time.Millisecond))
		return nil
	},
}

var vacuumCmd = &cobra.Command{
	Use:   "vacuum",
	Short: "Compact the catalog database",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cat, _, err := openCatalog(cmd.Context())
		if err != nil {
			return err
		}
		defer cat.Close()

		start := time.Now()
		if err := cat.Vacuum(); err != nil {
			return fmt.Errorf("vacuum failed: %w", err)
		}
		fmt.Printf("Vacuum complete in %v\n", time.Since(start).Round(time.Millisecond))
		return nil
	},
}

var rootsCmd = &cobra.Command{
	Use:   "roots",
	Short: "Inspect and edit watched roots",
}

var rootsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List watched roots",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		cat, _, err := openCatalog(ctx)
		if err != nil {
			return err
		}
		defer cat.Close()

		roots, err := cat.ListRoots(ctx)
		if err != nil {
			return err
		}
		if len(roots) == 0 {
			fmt.Println("No watched roots")
			return nil
		}
		for _, root := range roots {
			flags := []string{string(root.Visibility)}
			if root.Ignored {
				flags = append(flags, "ignored")
			}
			if root.Basepath {
				flags = append(flags, "basepath")
			}
			fmt.Printf("%6d  %-50s [%s]\n", root.ID, root.Path, strings.Join(flags, ", "))
		}
		return nil
	},
}

var rootsAddCmd = &cobra.Command{
	Use:   "add <path>",
	Short: "Register a directory as a watched root",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		visibility := catalog.Visibility(flagVisibility)
		if visibility != catalog.VisibilityPublic && visibility != catalog.VisibilityRestricted {
			return fmt.Errorf("unknown visibility %q", flagVisibility)
		}

		abs, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}
		if info, err := os.Stat(abs); err != nil || !info.IsDir() {
			return fmt.Errorf("%s is not a directory", abs)
		}

		ctx := cmd.Context()
		cat, _, err := openCatalog(ctx)
		if err != nil {
			return err
		}
		defer cat.Close()

		name := flagName
		if name == "" {
			name = filepath.Base(abs)
		}
		created, err := cat.EnsureRoot(ctx, &catalog.WatchedRoot{
			Path:       abs,
			ShortName:  name,
			Visibility: visibility,
			Basepath:   true,
		})
		if err != nil {
			return err
		}
		if !created {
			fmt.Printf("Root %s already registered\n", abs)
			return nil
		}
		fmt.Printf("Added root %s (%s)\n", abs, visibility)
		return nil
	},
}

var rootsIgnoreCmd = &cobra.Command{
	Use:   "ignore <path>",
	Short: "Exclude a root from scans and watching",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		abs, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		cat, _, err := openCatalog(ctx)
		if err != nil {
			return err
		}
		defer cat.Close()

		if err := cat.SetRootIgnored(ctx, abs, !flagRestore); err != nil {
			return err
		}
		if flagRestore {
			fmt.Printf("Root %s restored\n", abs)
		} else {
			fmt.Printf("Root %s ignored\n", abs)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to config file")
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "override the catalog database path")

	purgeCmd.Flags().StringVar(&flagKind, "kind", "", "asset kind to purge (thumb or preview)")
	_ = purgeCmd.MarkFlagRequired("kind")

	reprocessCmd.Flags().StringVar(&flagPath, "path", "", "reprocess the content behind one file path")
	reprocessCmd.Flags().StringVar(&flagDir, "dir", "", "reprocess every location under a directory")
	reprocessCmd.Flags().BoolVar(&flagAll, "all", false, "reprocess the entire catalog")

	rootsAddCmd.Flags().StringVar(&flagVisibility, "visibility", string(catalog.VisibilityRestricted), "root visibility (public or restricted)")
	rootsAddCmd.Flags().StringVar(&flagName, "name", "", "display name for the root")
	rootsIgnoreCmd.Flags().BoolVar(&flagRestore, "restore", false, "un-ignore the root instead")

	rootsCmd.AddCommand(rootsListCmd, rootsAddCmd, rootsIgnoreCmd)
	rootCmd.AddCommand(scanCmd, purgeCmd, reprocessCmd, ftsRebuildCmd, vacuumCmd, rootsCmd)
}

// reprocessor re-runs metadata extraction over existing content rows.
type reprocessor struct {
	cat       *catalog.Catalog
	extractor *metadata.Extractor

	updated int
	stale   int
}

func (r *reprocessor) reprocessPath(ctx context.Context, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	loc, err := r.cat.GetLocation(ctx, filepath.Dir(abs), filepath.Base(abs))
	if err != nil {
		return err
	}
	if loc == nil {
		return fmt.Errorf("%s is not cataloged", abs)
	}
	return r.reprocessContent(ctx, loc.Checksum, abs)
}

func (r *reprocessor) reprocessDir(ctx context.Context, dir string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	locs, err := r.cat.LocationsUnderDirectory(ctx, abs)
	if err != nil {
		return err
	}

	seen := make(map[string]bool, len(locs))
	for _, loc := range locs {
		if loc.Deleted || seen[loc.Checksum] {
			continue
		}
		seen[loc.Checksum] = true
		if err := r.reprocessContent(ctx, loc.Checksum, filepath.Join(loc.Directory, loc.Filename)); err != nil {
			logging.Warn("Reprocess failed for %s: %v", loc.Checksum, err)
		}
	}
	return nil
}

func (r *reprocessor) reprocessAll(ctx context.Context) error {
	checksums, err := r.cat.AllChecksums(ctx)
	if err != nil {
		return err
	}
	for _, cs := range checksums {
		if err := r.reprocessContent(ctx, cs, ""); err != nil {
			logging.Warn("Reprocess failed for %s: %v", cs, err)
		}
	}
	return nil
}

// reprocessContent re-extracts metadata for one checksum. path may be
// empty, in which case the first live location is used. The mime_type
// key survives the rewrite, re-derived from the filename when the old
// row lacks one; a file that yields nothing on re-extraction keeps its
// old metadata so a corrupt file cannot erase good data.
func (r *reprocessor) reprocessContent(ctx context.Context, checksum, path string) error {
	content, err := r.cat.GetContent(ctx, checksum)
	if err != nil {
		return err
	}
	if content == nil {
		return fmt.Errorf("content %s not found", checksum)
	}

	if path == "" {
		locs, err := r.cat.LocationsForChecksum(ctx, checksum)
		if err != nil {
			return err
		}
		for _, loc := range locs {
			if !loc.Deleted {
				path = filepath.Join(loc.Directory, loc.Filename)
				break
			}
		}
		if path == "" {
			return fmt.Errorf("no live location for %s", checksum)
		}
	}

	extractCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	result := r.extractor.Extract(extractCtx, path, mediatypes.TypeOf(path))
	cancel()

	if len(result.Fields) == 0 && result.Width == 0 && result.Height == 0 {
		logging.Warn("Re-extraction yielded nothing for %s, keeping stale metadata", path)
		r.stale++
		return nil
	}

	if mime, ok := content.Metadata["mime_type"]; ok {
		result.Fields["mime_type"] = mime
	} else {
		result.Fields["mime_type"] = mediatypes.GuessMimeType(path)
	}

	if err := r.cat.UpdateContentMetadata(ctx, checksum, result.Fields, result.Width, result.Height); err != nil {
		return err
	}
	if err := r.refreshSearchEntries(ctx, checksum); err != nil {
		logging.Warn("Search index refresh failed for %s: %v", checksum, err)
	}
	r.updated++
	return nil
}

// refreshSearchEntries rewrites the FTS rows for every live location of
// a checksum after its metadata changed.
func (r *reprocessor) refreshSearchEntries(ctx context.Context, checksum string) error {
	content, err := r.cat.GetContent(ctx, checksum)
	if err != nil || content == nil {
		return err
	}
	locs, err := r.cat.LocationsForChecksum(ctx, checksum)
	if err != nil {
		return err
	}

	tx, err := r.cat.BeginBatch()
	if err != nil {
		return err
	}
	for i := range locs {
		if locs[i].Deleted {
			continue
		}
		if err := r.cat.UpsertSearchEntry(tx, &locs[i], content); err != nil {
			return r.cat.EndBatch(tx, err)
		}
	}
	return r.cat.EndBatch(tx, nil)
}

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"media-catalog/internal/catalog"
)

// RootConfig is one configured watched root.
type RootConfig struct {
	Path       string             `mapstructure:"path"`
	Visibility catalog.Visibility `mapstructure:"visibility"`
	Tags       []string           `mapstructure:"tags"`
}

// Config holds every runtime setting of the catalog service.
type Config struct {
	DatabasePath  string        `mapstructure:"database_path"`
	AssetCacheDir string        `mapstructure:"asset_cache_dir"`
	Roots         []RootConfig  `mapstructure:"roots"`
	DebounceDelay time.Duration `mapstructure:"debounce_delay"`
	ThumbSize     int           `mapstructure:"thumb_size"`
	PreviewSize   int           `mapstructure:"preview_size"`
	AssetWorkers  int           `mapstructure:"asset_workers"`
	Port          string        `mapstructure:"port"`
	WatchEnabled  bool          `mapstructure:"watch_enabled"`
	ScanOnStart   bool          `mapstructure:"scan_on_start"`

	LogLevel      string `mapstructure:"log_level"`
	LogFile       string `mapstructure:"log_file"`
	LogMaxSizeMB  int    `mapstructure:"log_max_size_mb"`
	LogMaxBackups int    `mapstructure:"log_max_backups"`
	LogMaxAgeDays int    `mapstructure:"log_max_age_days"`
}

func setDefaults() {
	viper.SetDefault("database_path", "/data/catalog.db")
	viper.SetDefault("asset_cache_dir", "/data/assets")
	viper.SetDefault("debounce_delay", "1500ms")
	viper.SetDefault("thumb_size", 400)
	viper.SetDefault("preview_size", 1024)
	viper.SetDefault("asset_workers", 0) // 0 = size from CPU count
	viper.SetDefault("port", "8080")
	viper.SetDefault("watch_enabled", true)
	viper.SetDefault("scan_on_start", true)

	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_file", "")
	viper.SetDefault("log_max_size_mb", 100)
	viper.SetDefault("log_max_backups", 3)
	viper.SetDefault("log_max_age_days", 28)
}

// Load reads configuration from an optional config file, .env files
// and MEDIA_CATALOG_* environment variables, in ascending precedence.
// configPath may be empty to use the default search path.
func Load(configPath string) (*Config, error) {
	for _, envFile := range []string{".env", ".env.local"} {
		// Missing .env files are fine.
		_ = godotenv.Load(envFile)
	}

	setDefaults()

	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/media-catalog")
		viper.AddConfigPath("$HOME/.media-catalog")
	}

	viper.SetEnvPrefix("MEDIA_CATALOG")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Roots may also arrive as a flat env string:
	// MEDIA_CATALOG_ROOTS="/photos:public,/archive:restricted"
	if len(cfg.Roots) == 0 {
		if raw := viper.GetString("roots"); raw != "" {
			roots, err := ParseRootsString(raw)
			if err != nil {
				return nil, err
			}
			cfg.Roots = roots
		}
	}

	for i := range cfg.Roots {
		if cfg.Roots[i].Visibility == "" {
			cfg.Roots[i].Visibility = catalog.VisibilityRestricted
		}
		if err := validateVisibility(cfg.Roots[i].Visibility); err != nil {
			return nil, fmt.Errorf("root %s: %w", cfg.Roots[i].Path, err)
		}
	}

	return &cfg, nil
}

// ParseRootsString parses the comma-separated "path:visibility" form.
// Visibility defaults to restricted when omitted.
func ParseRootsString(raw string) ([]RootConfig, error) {
	var roots []RootConfig
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		root := RootConfig{Visibility: catalog.VisibilityRestricted}
		if idx := strings.LastIndex(part, ":"); idx > 0 {
			root.Path = part[:idx]
			root.Visibility = catalog.Visibility(part[idx+1:])
		} else {
			root.Path = part
		}

		if err := validateVisibility(root.Visibility); err != nil {
			return nil, fmt.Errorf("root %s: %w", root.Path, err)
		}
		roots = append(roots, root)
	}
	return roots, nil
}

func validateVisibility(v catalog.Visibility) error {
	switch v {
	case catalog.VisibilityPublic, catalog.VisibilityRestricted:
		return nil
	default:
		return fmt.Errorf("invalid visibility %q (want public or restricted)", v)
	}
}

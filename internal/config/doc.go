// Package config loads runtime settings from a config file, .env
// files and MEDIA_CATALOG_* environment variables, with sensible
// defaults for everything but the watched roots.
package config

package catalog

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"
)

// Setting keys for the derived-asset bounding sizes.
const (
	SettingThumbSize   = "thumbnail_size"
	SettingPreviewSize = "preview_size"
)

// GetSetting returns the value stored for key, or "" when unset.
func (c *Catalog) GetSetting(ctx context.Context, key string) (string, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_setting", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var value string
	err = c.db.QueryRowContext(ctx,
		"SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		err = nil
		return "", nil
	}
	return value, err
}

// SetSetting stores value under key, replacing any previous value.
func (c *Catalog) SetSetting(ctx context.Context, key, value string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("set_setting", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = c.db.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value)
	return err
}

// SeedSetting stores value under key only when the key is unset, so
// admin-edited values survive restarts.
func (c *Catalog) SeedSetting(ctx context.Context, key, value string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("seed_setting", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = c.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO settings (key, value) VALUES (?, ?)", key, value)
	return err
}

// GetSettingInt returns the integer stored for key, falling back to
// def when the key is unset or not a number.
func (c *Catalog) GetSettingInt(ctx context.Context, key string, def int) int {
	value, err := c.GetSetting(ctx, key)
	if err != nil || value == "" {
		return def
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return n
}

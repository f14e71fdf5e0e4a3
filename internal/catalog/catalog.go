package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3" // registers the sqlite3 driver

	"media-catalog/internal/catalog/migrations"
	"media-catalog/internal/logging"
	"media-catalog/internal/metrics"
)

// Default timeout for catalog operations
const defaultTimeout = 5 * time.Second

// Catalog owns the Content and Location rows and everything else that
// lives in the relational store: watched roots, tags, settings and the
// search index. Every goroutine gets its own connection from the
// database/sql pool; WAL mode plus busy_timeout gives a single writer
// with bounded waits.
type Catalog struct {
	db     *sql.DB
	dbPath string
}

// Open opens (and creates, if necessary) the catalog database at dbPath
// and brings the schema to the latest migration version. The parent
// directory must already exist and be writable.
func Open(ctx context.Context, dbPath string) (*Catalog, error) {
	logging.Info("Catalog database path: %s", dbPath)

	// busy_timeout prevents "database is locked" errors when the
	// scanner, watcher and asset builders write concurrently.
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000&_temp_store=MEMORY&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)

	if err := migrations.MigrateUp(db); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after migration failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to migrate database schema: %w", err)
	}

	c := &Catalog{
		db:     db,
		dbPath: dbPath,
	}

	logging.Info("Catalog database initialized at %s", dbPath)
	return c, nil
}

// Close closes the database connection pool.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// DB exposes the underlying pool for migrations tooling and tests.
func (c *Catalog) DB() *sql.DB {
	return c.db
}

// BeginBatch starts a transaction. The caller must finish it with
// EndBatch.
func (c *Catalog) BeginBatch() (*sql.Tx, error) {
	// Background context: the transaction lifetime is managed by
	// EndBatch, not by a timeout that would cancel it on return.
	return c.db.BeginTx(context.Background(), nil)
}

// EndBatch commits the transaction when err is nil, otherwise rolls it
// back and returns the original error.
func (c *Catalog) EndBatch(tx *sql.Tx, err error) error {
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, fmt.Errorf("rollback also failed: %w", rbErr))
		}
		return err
	}
	return tx.Commit()
}

// IsUniqueConstraintErr reports whether err is a SQLite uniqueness
// violation. Ingestion treats those as "another writer got there
// first", never as a failure.
func IsUniqueConstraintErr(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint &&
			(sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
				sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey)
	}
	// Driver-independent fallback used by tests with wrapped errors.
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Vacuum optimizes the database.
func (c *Catalog) Vacuum() error {
	start := time.Now()
	var err error
	defer func() { recordQuery("vacuum", start, err) }()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	_, err = c.db.ExecContext(ctx, "VACUUM")
	return err
}

// recordQuery records database query metrics
func recordQuery(operation string, start time.Time, err error) {
	duration := time.Since(start).Seconds()
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(duration)
}

// UpdateDBMetrics refreshes the connection and file-size gauges.
func (c *Catalog) UpdateDBMetrics() {
	stats := c.db.Stats()
	metrics.DBConnectionsOpen.Set(float64(stats.OpenConnections))

	for suffix, label := range map[string]string{"": "main", "-wal": "wal", "-shm": "shm"} {
		if info, err := os.Stat(c.dbPath + suffix); err == nil {
			metrics.DBSizeBytes.WithLabelValues(label).Set(float64(info.Size()))
		}
	}
}

package catalog

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

const locationColumns = "id, checksum, directory, filename, deleted, scanned_at"

func scanLocation(row interface{ Scan(...interface{}) error }) (Location, error) {
	var l Location
	var scannedAt int64
	err := row.Scan(&l.ID, &l.Checksum, &l.Directory, &l.Filename, &l.Deleted, &scannedAt)
	if err != nil {
		return Location{}, err
	}
	l.ScannedAt = time.Unix(scannedAt, 0).UTC()
	return l, nil
}

// GetLocation returns the Location for the (directory, filename) pair,
// or nil when none exists.
func (c *Catalog) GetLocation(ctx context.Context, directory, filename string) (*Location, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_location", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	row := c.db.QueryRowContext(ctx,
		"SELECT "+locationColumns+" FROM locations WHERE directory = ? AND filename = ?",
		directory, filename)
	l, err := scanLocation(row)
	if errors.Is(err, sql.ErrNoRows) {
		err = nil
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// InsertLocation inserts a Location row inside tx and returns its id.
// A duplicate (directory, filename) surfaces as a uniqueness violation.
func (c *Catalog) InsertLocation(tx *sql.Tx, loc *Location) error {
	res, err := tx.ExecContext(context.Background(), `
		INSERT INTO locations (checksum, directory, filename, deleted, scanned_at)
		VALUES (?, ?, ?, ?, strftime('%s', 'now'))`,
		loc.Checksum, loc.Directory, loc.Filename, loc.Deleted,
	)
	if err != nil {
		return err
	}
	loc.ID, err = res.LastInsertId()
	return err
}

// LocationsForChecksum returns every Location referencing checksum.
func (c *Catalog) LocationsForChecksum(ctx context.Context, checksum string) ([]Location, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("locations_for_checksum", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := c.db.QueryContext(ctx,
		"SELECT "+locationColumns+" FROM locations WHERE checksum = ? ORDER BY id", checksum)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var locs []Location
	for rows.Next() {
		l, scanErr := scanLocation(rows)
		if scanErr != nil {
			err = scanErr
			return nil, scanErr
		}
		locs = append(locs, l)
	}
	err = rows.Err()
	return locs, err
}

// LocationsUnderDirectory returns every Location whose directory
// matches dir exactly. Subdirectories are their own watched roots, so a
// tree is covered piecewise.
func (c *Catalog) LocationsUnderDirectory(ctx context.Context, dir string) ([]Location, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("locations_under_directory", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := c.db.QueryContext(ctx,
		"SELECT "+locationColumns+" FROM locations WHERE directory = ? ORDER BY id", dir)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var locs []Location
	for rows.Next() {
		l, scanErr := scanLocation(rows)
		if scanErr != nil {
			err = scanErr
			return nil, scanErr
		}
		locs = append(locs, l)
	}
	err = rows.Err()
	return locs, err
}

// DeleteLocation removes the Location for (directory, filename) and its
// search-index row in one transaction. The Content row stays: other
// locations or a future re-discovery may still reference it. Returns
// false when no matching Location existed.
func (c *Catalog) DeleteLocation(ctx context.Context, directory, filename string) (bool, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("delete_location", start, err) }()

	loc, err := c.GetLocation(ctx, directory, filename)
	if err != nil {
		return false, err
	}
	if loc == nil {
		return false, nil
	}

	tx, err := c.BeginBatch()
	if err != nil {
		return false, err
	}

	err = c.deleteLocationTx(tx, loc.ID)
	if endErr := c.EndBatch(tx, err); endErr != nil {
		err = endErr
		return false, endErr
	}
	return true, nil
}

func (c *Catalog) deleteLocationTx(tx *sql.Tx, locationID int64) error {
	if _, err := tx.ExecContext(context.Background(),
		"DELETE FROM locations WHERE id = ?", locationID); err != nil {
		return err
	}
	return c.deleteSearchEntry(tx, locationID)
}

// MoveLocation updates a Location to a new (directory, filename) pair
// and refreshes its search-index row. The checksum is untouched.
func (c *Catalog) MoveLocation(ctx context.Context, loc *Location, newDir, newName string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("move_location", start, err) }()

	tx, err := c.BeginBatch()
	if err != nil {
		return err
	}

	err = func() error {
		if _, execErr := tx.ExecContext(context.Background(),
			"UPDATE locations SET directory = ?, filename = ?, scanned_at = strftime('%s', 'now') WHERE id = ?",
			newDir, newName, loc.ID); execErr != nil {
			return execErr
		}

		moved := *loc
		moved.Directory = newDir
		moved.Filename = newName

		content, getErr := c.GetContent(ctx, loc.Checksum)
		if getErr != nil {
			return getErr
		}
		return c.upsertSearchEntry(tx, &moved, content)
	}()

	if err = c.EndBatch(tx, err); err != nil {
		return err
	}

	loc.Directory = newDir
	loc.Filename = newName
	return nil
}

// SetLocationDeleted flips the soft-delete flag on a Location.
func (c *Catalog) SetLocationDeleted(ctx context.Context, directory, filename string, deleted bool) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("set_location_deleted", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := c.db.ExecContext(ctx,
		"UPDATE locations SET deleted = ? WHERE directory = ? AND filename = ?",
		deleted, directory, filename)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		err = sql.ErrNoRows
	}
	return err
}

// PermanentDeleteLocation removes a Location and, when it was the last
// reference, cascades to the Content row. Returns whether the Content
// was removed too.
func (c *Catalog) PermanentDeleteLocation(ctx context.Context, directory, filename string) (contentRemoved bool, err error) {
	start := time.Now()
	defer func() { recordQuery("permanent_delete_location", start, err) }()

	loc, err := c.GetLocation(ctx, directory, filename)
	if err != nil {
		return false, err
	}
	if loc == nil {
		return false, sql.ErrNoRows
	}

	tx, err := c.BeginBatch()
	if err != nil {
		return false, err
	}

	err = c.deleteLocationTx(tx, loc.ID)
	if err == nil {
		contentRemoved, err = c.deleteContentIfUnreferenced(tx, loc.Checksum)
	}
	err = c.EndBatch(tx, err)
	return contentRemoved, err
}

// DeleteOrphanLocations removes every Location whose directory is no
// longer among the active watched roots, along with its search-index
// row. Returns the number of locations removed.
func (c *Catalog) DeleteOrphanLocations(ctx context.Context, roots []WatchedRoot) (int64, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("delete_orphan_locations", start, err) }()

	tracked := make(map[string]bool, len(roots))
	for _, r := range roots {
		tracked[r.Path] = true
	}

	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	rows, err := c.db.QueryContext(ctx, "SELECT id, directory FROM locations")
	if err != nil {
		return 0, err
	}

	var orphans []int64
	for rows.Next() {
		var id int64
		var dir string
		if scanErr := rows.Scan(&id, &dir); scanErr != nil {
			rows.Close()
			err = scanErr
			return 0, scanErr
		}
		if !tracked[dir] {
			orphans = append(orphans, id)
		}
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return 0, err
	}
	if len(orphans) == 0 {
		return 0, nil
	}

	tx, err := c.BeginBatch()
	if err != nil {
		return 0, err
	}
	for _, id := range orphans {
		if err = c.deleteLocationTx(tx, id); err != nil {
			break
		}
	}
	if err = c.EndBatch(tx, err); err != nil {
		return 0, err
	}
	return int64(len(orphans)), nil
}

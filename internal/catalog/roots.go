package catalog

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"
	"time"
)

const rootColumns = "id, path, short_name, description, parent, ignored, visibility, basepath, built_in, created_at"

func scanRoot(row interface{ Scan(...interface{}) error }) (WatchedRoot, error) {
	var r WatchedRoot
	var createdAt int64
	err := row.Scan(&r.ID, &r.Path, &r.ShortName, &r.Description, &r.Parent,
		&r.Ignored, &r.Visibility, &r.Basepath, &r.BuiltIn, &createdAt)
	if err != nil {
		return WatchedRoot{}, err
	}
	r.CreatedAt = time.Unix(createdAt, 0).UTC()
	return r, nil
}

// ListRoots returns every watched root, sorted by path so that parents
// precede their children.
func (c *Catalog) ListRoots(ctx context.Context) ([]WatchedRoot, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_roots", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := c.db.QueryContext(ctx, "SELECT "+rootColumns+" FROM watched_roots ORDER BY path")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roots []WatchedRoot
	for rows.Next() {
		r, scanErr := scanRoot(rows)
		if scanErr != nil {
			err = scanErr
			return nil, scanErr
		}
		roots = append(roots, r)
	}
	err = rows.Err()
	return roots, err
}

// ActiveRoots returns all roots that are not marked ignored, sorted by
// path.
func (c *Catalog) ActiveRoots(ctx context.Context) ([]WatchedRoot, error) {
	roots, err := c.ListRoots(ctx)
	if err != nil {
		return nil, err
	}
	active := roots[:0]
	for _, r := range roots {
		if !r.Ignored {
			active = append(active, r)
		}
	}
	return active, nil
}

// GetRootByPath returns the root whose path matches exactly, or nil if
// none is tracked.
func (c *Catalog) GetRootByPath(ctx context.Context, path string) (*WatchedRoot, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_root_by_path", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	row := c.db.QueryRowContext(ctx, "SELECT "+rootColumns+" FROM watched_roots WHERE path = ?", path)
	r, err := scanRoot(row)
	if errors.Is(err, sql.ErrNoRows) {
		err = nil
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// InsertRoot inserts a new watched root. A duplicate path is reported
// through IsUniqueConstraintErr.
func (c *Catalog) InsertRoot(ctx context.Context, r *WatchedRoot) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("insert_root", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if r.Visibility == "" {
		r.Visibility = VisibilityRestricted
	}

	res, err := c.db.ExecContext(ctx, `
		INSERT INTO watched_roots (path, short_name, description, parent, ignored, visibility, basepath, built_in)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Path, r.ShortName, r.Description, r.Parent, r.Ignored, r.Visibility, r.Basepath, r.BuiltIn,
	)
	if err != nil {
		return err
	}
	r.ID, err = res.LastInsertId()
	return err
}

// EnsureRoot inserts the root unless a root with the same path already
// exists. Used to seed configured roots at startup without clobbering
// admin edits. Returns true when a new row was created.
func (c *Catalog) EnsureRoot(ctx context.Context, r *WatchedRoot) (bool, error) {
	existing, err := c.GetRootByPath(ctx, r.Path)
	if err != nil {
		return false, err
	}
	if existing != nil {
		*r = *existing
		return false, nil
	}
	if err := c.InsertRoot(ctx, r); err != nil {
		if IsUniqueConstraintErr(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// SetRootIgnored flips the ignored flag. Ignored roots are never
// scanned or watched.
func (c *Catalog) SetRootIgnored(ctx context.Context, path string, ignored bool) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("set_root_ignored", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := c.db.ExecContext(ctx,
		"UPDATE watched_roots SET ignored = ? WHERE path = ?", ignored, path)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		err = sql.ErrNoRows
	}
	return err
}

// VisibilityForDirectory returns the tier of the root whose path equals
// dir. Directories not tracked as roots count as restricted: an unknown
// audience never widens a notification.
func (c *Catalog) VisibilityForDirectory(ctx context.Context, dir string) Visibility {
	root, err := c.GetRootByPath(ctx, dir)
	if err != nil || root == nil {
		return VisibilityRestricted
	}
	return root.Visibility
}

// CollapseRoots reduces a set of roots to their outermost ancestors, so
// one filesystem subscription covers every nested root beneath it. The
// input must be sorted by path (parents first), as ListRoots returns.
func CollapseRoots(roots []WatchedRoot) []WatchedRoot {
	var collapsed []WatchedRoot
	for _, r := range roots {
		nested := false
		for _, outer := range collapsed {
			if isSubpath(outer.Path, r.Path) {
				nested = true
				break
			}
		}
		if !nested {
			collapsed = append(collapsed, r)
		}
	}
	sort.Slice(collapsed, func(i, j int) bool { return collapsed[i].Path < collapsed[j].Path })
	return collapsed
}

// isSubpath reports whether child is inside parent (or equal to it).
func isSubpath(parent, child string) bool {
	if parent == child {
		return true
	}
	if !strings.HasSuffix(parent, "/") {
		parent += "/"
	}
	return strings.HasPrefix(child, parent)
}

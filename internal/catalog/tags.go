package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// GetOrCreateTag returns the tag named name, creating it if necessary.
// Names are case-insensitive.
func (c *Catalog) GetOrCreateTag(ctx context.Context, name string) (*Tag, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_or_create_tag", start, err) }()

	name = strings.TrimSpace(name)
	if name == "" {
		err = fmt.Errorf("tag name cannot be empty")
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var tag Tag
	err = c.db.QueryRowContext(ctx,
		"SELECT id, name, restricted, built_in, internal FROM tags WHERE name = ? COLLATE NOCASE",
		name).Scan(&tag.ID, &tag.Name, &tag.Restricted, &tag.BuiltIn, &tag.Internal)
	if err == nil {
		return &tag, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	res, err := c.db.ExecContext(ctx, "INSERT INTO tags (name) VALUES (?)", name)
	if err != nil {
		if IsUniqueConstraintErr(err) {
			// Concurrent creation; re-read the winner.
			err = c.db.QueryRowContext(ctx,
				"SELECT id, name, restricted, built_in, internal FROM tags WHERE name = ? COLLATE NOCASE",
				name).Scan(&tag.ID, &tag.Name, &tag.Restricted, &tag.BuiltIn, &tag.Internal)
			if err != nil {
				return nil, err
			}
			return &tag, nil
		}
		return nil, err
	}

	tag.ID, err = res.LastInsertId()
	if err != nil {
		return nil, err
	}
	tag.Name = name
	return &tag, nil
}

// ListTags returns every tag ordered by name.
func (c *Catalog) ListTags(ctx context.Context) ([]Tag, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_tags", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := c.db.QueryContext(ctx,
		"SELECT id, name, restricted, built_in, internal FROM tags ORDER BY name COLLATE NOCASE")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tags []Tag
	for rows.Next() {
		var t Tag
		if scanErr := rows.Scan(&t.ID, &t.Name, &t.Restricted, &t.BuiltIn, &t.Internal); scanErr != nil {
			err = scanErr
			return nil, scanErr
		}
		tags = append(tags, t)
	}
	err = rows.Err()
	return tags, err
}

// TagsForContent returns the tag names attached to checksum, sorted.
func (c *Catalog) TagsForContent(ctx context.Context, checksum string) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT t.name FROM tags t
		JOIN content_tags ct ON ct.tag_id = t.id
		WHERE ct.checksum = ?
		ORDER BY t.name COLLATE NOCASE`, checksum)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// AddTagToContent attaches the named tag to checksum. Adding a tag that
// is already attached is a no-op; returns true when a new association
// was created.
func (c *Catalog) AddTagToContent(ctx context.Context, checksum, tagName string) (bool, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("add_tag_to_content", start, err) }()

	tag, err := c.GetOrCreateTag(ctx, tagName)
	if err != nil {
		return false, err
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := c.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO content_tags (checksum, tag_id) VALUES (?, ?)",
		checksum, tag.ID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// RemoveTagFromContent detaches the named tag from checksum.
func (c *Catalog) RemoveTagFromContent(ctx context.Context, checksum, tagName string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("remove_tag_from_content", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = c.db.ExecContext(ctx, `
		DELETE FROM content_tags WHERE checksum = ? AND tag_id IN
		(SELECT id FROM tags WHERE name = ? COLLATE NOCASE)`,
		checksum, tagName)
	return err
}

// TagsForRoot returns the tag names attached to a watched root.
func (c *Catalog) TagsForRoot(ctx context.Context, rootID int64) ([]string, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("tags_for_root", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := c.db.QueryContext(ctx, `
		SELECT t.name FROM tags t
		JOIN root_tags rt ON rt.tag_id = t.id
		WHERE rt.root_id = ?
		ORDER BY t.name COLLATE NOCASE`, rootID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if scanErr := rows.Scan(&name); scanErr != nil {
			err = scanErr
			return nil, scanErr
		}
		names = append(names, name)
	}
	err = rows.Err()
	return names, err
}

// AddTagToRoot attaches the named tag to a watched root. Content under
// the root inherits it on the next reconciliation sweep, not through a
// live trigger.
func (c *Catalog) AddTagToRoot(ctx context.Context, rootID int64, tagName string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("add_tag_to_root", start, err) }()

	tag, err := c.GetOrCreateTag(ctx, tagName)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = c.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO root_tags (root_id, tag_id) VALUES (?, ?)",
		rootID, tag.ID)
	return err
}

// ApplyFolderTags adds the root's tags to every Content reachable
// through a Location directly in the root's directory. It only ever
// adds associations: tags a user attached elsewhere are never removed.
// Returns the number of associations created.
func (c *Catalog) ApplyFolderTags(ctx context.Context, root *WatchedRoot) (int64, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("apply_folder_tags", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	res, err := c.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO content_tags (checksum, tag_id)
		SELECT DISTINCT l.checksum, rt.tag_id
		FROM root_tags rt
		JOIN locations l ON l.directory = ?
		WHERE rt.root_id = ?`,
		root.Path, root.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

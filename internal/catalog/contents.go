package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// encodeMetadata serializes the metadata map for storage. A nil map
// becomes the empty JSON object.
func encodeMetadata(m map[string]string) (string, error) {
	if m == nil {
		m = map[string]string{}
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// InsertContent inserts a new Content row inside tx. A duplicate
// checksum surfaces as a uniqueness violation for the caller to treat
// as a benign race.
func (c *Catalog) InsertContent(tx *sql.Tx, content *Content) error {
	metadataJSON, err := encodeMetadata(content.Metadata)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(context.Background(), `
		INSERT INTO contents (checksum, is_video, width, height, metadata, date_created, date_modified, date_indexed)
		VALUES (?, ?, ?, ?, ?, ?, ?, strftime('%s', 'now'))`,
		content.Checksum, content.IsVideo, content.Width, content.Height,
		metadataJSON, content.DateCreated.Unix(), content.DateModified.Unix(),
	)
	return err
}

// GetContent returns the Content for checksum including its tags, or
// nil when the checksum is unknown.
func (c *Catalog) GetContent(ctx context.Context, checksum string) (*Content, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_content", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var content Content
	var metadataJSON string
	var created, modified, indexed int64
	var width, height sql.NullInt64

	err = c.db.QueryRowContext(ctx, `
		SELECT checksum, is_video, width, height, metadata, date_created, date_modified, date_indexed
		FROM contents WHERE checksum = ?`, checksum).Scan(
		&content.Checksum, &content.IsVideo, &width, &height,
		&metadataJSON, &created, &modified, &indexed,
	)
	if errors.Is(err, sql.ErrNoRows) {
		err = nil
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	content.Width = int(width.Int64)
	content.Height = int(height.Int64)
	content.DateCreated = time.Unix(created, 0).UTC()
	content.DateModified = time.Unix(modified, 0).UTC()
	content.DateIndexed = time.Unix(indexed, 0).UTC()

	if err = json.Unmarshal([]byte(metadataJSON), &content.Metadata); err != nil {
		return nil, err
	}

	content.Tags, err = c.TagsForContent(ctx, checksum)
	if err != nil {
		return nil, err
	}

	return &content, nil
}

// ContentExists reports whether a Content row exists for checksum; the
// slow path behind the in-memory known-checksums set.
func (c *Catalog) ContentExists(ctx context.Context, checksum string) (bool, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("content_exists", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var one int
	err = c.db.QueryRowContext(ctx,
		"SELECT 1 FROM contents WHERE checksum = ?", checksum).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		err = nil
		return false, nil
	}
	return err == nil, err
}

// AllChecksums returns every known checksum, used to prime the
// in-memory working set at startup and at scan start.
func (c *Catalog) AllChecksums(ctx context.Context) ([]string, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("all_checksums", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	rows, err := c.db.QueryContext(ctx, "SELECT checksum FROM contents")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var checksums []string
	for rows.Next() {
		var cs string
		if scanErr := rows.Scan(&cs); scanErr != nil {
			err = scanErr
			return nil, scanErr
		}
		checksums = append(checksums, cs)
	}
	err = rows.Err()
	return checksums, err
}

// UpdateContentMetadata replaces the metadata blob and dimensions of an
// existing Content row. Used by reprocessing; timestamps are preserved.
func (c *Catalog) UpdateContentMetadata(ctx context.Context, checksum string, metadata map[string]string, width, height int) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("update_content_metadata", start, err) }()

	metadataJSON, err := encodeMetadata(metadata)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := c.db.ExecContext(ctx, `
		UPDATE contents SET metadata = ?, width = ?, height = ? WHERE checksum = ?`,
		metadataJSON, width, height, checksum)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		err = sql.ErrNoRows
	}
	return err
}

// deleteContentIfUnreferenced removes the Content row for checksum when
// no Location references it anymore. Runs inside tx as the second half
// of a permanent delete.
func (c *Catalog) deleteContentIfUnreferenced(tx *sql.Tx, checksum string) (bool, error) {
	var refs int
	err := tx.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM locations WHERE checksum = ?", checksum).Scan(&refs)
	if err != nil {
		return false, err
	}
	if refs > 0 {
		return false, nil
	}

	if _, err := tx.ExecContext(context.Background(),
		"DELETE FROM content_tags WHERE checksum = ?", checksum); err != nil {
		return false, err
	}
	_, err = tx.ExecContext(context.Background(),
		"DELETE FROM contents WHERE checksum = ?", checksum)
	return err == nil, err
}

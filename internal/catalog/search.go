package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"media-catalog/internal/logging"
)

// searchFields is the flattened, indexable form of one Location: its
// path parts, the generation parameters pulled out of the content
// metadata by name, and everything else collapsed into full_text.
type searchFields struct {
	Directory      string
	Filename       string
	Prompt         string
	NegativePrompt string
	Model          string
	Sampler        string
	Scheduler      string
	Loras          string
	Upscaler       string
	Application    string
	FullText       string
}

// flattenForSearch builds the search row for a Location from its
// Content metadata and tags. Tag names become part of full_text so a
// tag search matches without a join.
func flattenForSearch(loc *Location, content *Content) searchFields {
	f := searchFields{
		Directory: loc.Directory,
		Filename:  loc.Filename,
	}

	var meta map[string]string
	var tags []string
	if content != nil {
		meta = content.Metadata
		tags = content.Tags
	}

	var rest []string
	for key, value := range meta {
		switch key {
		case "sui_image_params":
			flattenImageParams(value, &f)
			f.Application = "swarmui"
		case "parameters":
			// A1111-style single text blob; keep it searchable whole.
			f.Prompt = value
			f.Application = "a1111"
		case "prompt":
			if f.Prompt == "" {
				f.Prompt = value
			}
		case "application", "Software":
			if f.Application == "" {
				f.Application = value
			}
		default:
			rest = append(rest, value)
		}
	}

	rest = append(rest, tags...)
	sort.Strings(rest)
	f.FullText = strings.Join(rest, " ")
	return f
}

// flattenImageParams extracts the named generation parameters from a
// sui_image_params JSON blob. A malformed blob degrades to indexing the
// raw text.
func flattenImageParams(raw string, f *searchFields) {
	var params map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &params); err != nil {
		f.FullText = raw
		return
	}

	str := func(key string) string {
		v, ok := params[key]
		if !ok {
			return ""
		}
		switch t := v.(type) {
		case string:
			return t
		case []interface{}:
			parts := make([]string, 0, len(t))
			for _, e := range t {
				parts = append(parts, fmt.Sprintf("%v", e))
			}
			return strings.Join(parts, ", ")
		default:
			return fmt.Sprintf("%v", t)
		}
	}

	f.Prompt = str("prompt")
	f.NegativePrompt = str("negativeprompt")
	f.Model = str("model")
	f.Sampler = str("sampler")
	f.Scheduler = str("scheduler")
	f.Loras = str("loras")
	f.Upscaler = str("upscaler")
}

// upsertSearchEntry writes the search row for loc inside tx, replacing
// any previous row. The rowid is the location id.
func (c *Catalog) upsertSearchEntry(tx *sql.Tx, loc *Location, content *Content) error {
	if err := c.deleteSearchEntry(tx, loc.ID); err != nil {
		return err
	}

	f := flattenForSearch(loc, content)
	_, err := tx.ExecContext(context.Background(), `
		INSERT INTO locations_fts (rowid, directory, filename, prompt, negative_prompt, model, sampler, scheduler, loras, upscaler, application, full_text)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		loc.ID, f.Directory, f.Filename, f.Prompt, f.NegativePrompt,
		f.Model, f.Sampler, f.Scheduler, f.Loras, f.Upscaler,
		f.Application, f.FullText,
	)
	return err
}

// UpsertSearchEntry is the transactional search-index update exposed to
// the ingestion pipeline, so step 7 commits with the rest of the file.
func (c *Catalog) UpsertSearchEntry(tx *sql.Tx, loc *Location, content *Content) error {
	return c.upsertSearchEntry(tx, loc, content)
}

func (c *Catalog) deleteSearchEntry(tx *sql.Tx, locationID int64) error {
	_, err := tx.ExecContext(context.Background(),
		"DELETE FROM locations_fts WHERE rowid = ?", locationID)
	return err
}

// RebuildSearchIndex drops every search row and repopulates the index
// from the locations table in batches. Safe to run while the catalog is
// live; each batch commits independently.
func (c *Catalog) RebuildSearchIndex(ctx context.Context, batchSize int) (int64, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("rebuild_search_index", start, err) }()

	if batchSize <= 0 {
		batchSize = 500
	}

	if _, err = c.db.ExecContext(ctx, "DELETE FROM locations_fts"); err != nil {
		return 0, err
	}

	var total int64
	var lastID int64
	for {
		rows, queryErr := c.db.QueryContext(ctx,
			"SELECT "+locationColumns+" FROM locations WHERE id > ? ORDER BY id LIMIT ?",
			lastID, batchSize)
		if queryErr != nil {
			err = queryErr
			return total, queryErr
		}

		var batch []Location
		for rows.Next() {
			l, scanErr := scanLocation(rows)
			if scanErr != nil {
				rows.Close()
				err = scanErr
				return total, scanErr
			}
			batch = append(batch, l)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return total, err
		}
		if len(batch) == 0 {
			return total, nil
		}

		tx, txErr := c.BeginBatch()
		if txErr != nil {
			err = txErr
			return total, txErr
		}
		for i := range batch {
			loc := &batch[i]
			content, getErr := c.GetContent(ctx, loc.Checksum)
			if getErr != nil {
				logging.Warn("Search rebuild: failed to load content %s: %v", loc.Checksum, getErr)
			}
			if err = c.upsertSearchEntry(tx, loc, content); err != nil {
				break
			}
		}
		if err = c.EndBatch(tx, err); err != nil {
			return total, err
		}

		total += int64(len(batch))
		lastID = batch[len(batch)-1].ID
		logging.Debug("Search rebuild: %d rows reindexed", total)
	}
}

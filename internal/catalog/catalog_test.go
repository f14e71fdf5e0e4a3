package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func openTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	cat, err := Open(context.Background(), filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { cat.Close() })
	return cat
}

// testChecksum builds a syntactically valid 64-hex checksum from one
// distinguishing byte.
func testChecksum(b byte) string {
	return strings.Repeat(fmt.Sprintf("%02x", b), 32)
}

// mustIngest writes a Content row (first location only) plus a Location
// and its search entry in one transaction, mirroring the ingestion
// pipeline's batch shape.
func mustIngest(t *testing.T, cat *Catalog, checksum, dir, name string, content *Content) Location {
	t.Helper()

	if content == nil {
		content = &Content{
			Checksum:     checksum,
			DateCreated:  time.Now(),
			DateModified: time.Now(),
		}
	}
	content.Checksum = checksum

	tx, err := cat.BeginBatch()
	if err != nil {
		t.Fatalf("BeginBatch failed: %v", err)
	}

	exists, err := cat.ContentExists(context.Background(), checksum)
	if err != nil {
		t.Fatalf("ContentExists failed: %v", err)
	}
	if !exists {
		if err := cat.InsertContent(tx, content); err != nil {
			t.Fatalf("InsertContent failed: %v", err)
		}
	}

	loc := Location{Checksum: checksum, Directory: dir, Filename: name}
	if err := cat.InsertLocation(tx, &loc); err != nil {
		t.Fatalf("InsertLocation failed: %v", err)
	}
	if err := cat.UpsertSearchEntry(tx, &loc, content); err != nil {
		t.Fatalf("UpsertSearchEntry failed: %v", err)
	}
	if err := cat.EndBatch(tx, nil); err != nil {
		t.Fatalf("EndBatch failed: %v", err)
	}
	return loc
}

func TestOpenCreatesSchema(t *testing.T) {
	cat := openTestCatalog(t)

	stats, err := cat.CalculateStats(context.Background())
	if err != nil {
		t.Fatalf("CalculateStats on fresh catalog failed: %v", err)
	}
	if stats.TotalContents != 0 || stats.TotalLocations != 0 {
		t.Errorf("fresh catalog stats = %+v, want zeros", stats)
	}
	if err := cat.DB().Ping(); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestMoreVisible(t *testing.T) {
	tests := []struct {
		a, b, want Visibility
	}{
		{VisibilityPublic, VisibilityPublic, VisibilityPublic},
		{VisibilityPublic, VisibilityRestricted, VisibilityPublic},
		{VisibilityRestricted, VisibilityPublic, VisibilityPublic},
		{VisibilityRestricted, VisibilityRestricted, VisibilityRestricted},
	}
	for _, tt := range tests {
		if got := MoreVisible(tt.a, tt.b); got != tt.want {
			t.Errorf("MoreVisible(%q, %q) = %q, want %q", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestCollapseRoots(t *testing.T) {
	tests := []struct {
		name  string
		paths []string
		want  []string
	}{
		{
			name:  "nested child folds into parent",
			paths: []string{"/media", "/media/photos"},
			want:  []string{"/media"},
		},
		{
			name:  "siblings stay separate",
			paths: []string{"/media/photos", "/media/videos"},
			want:  []string{"/media/photos", "/media/videos"},
		},
		{
			name:  "prefix without separator is not a parent",
			paths: []string{"/media", "/mediastore"},
			want:  []string{"/media", "/mediastore"},
		},
		{
			name:  "deeply nested",
			paths: []string{"/a", "/a/b", "/a/b/c", "/d"},
			want:  []string{"/a", "/d"},
		},
		{
			name:  "empty",
			paths: nil,
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			roots := make([]WatchedRoot, len(tt.paths))
			for i, p := range tt.paths {
				roots[i] = WatchedRoot{Path: p}
			}
			got := CollapseRoots(roots)
			if len(got) != len(tt.want) {
				t.Fatalf("collapsed to %d roots, want %d", len(got), len(tt.want))
			}
			for i, r := range got {
				if r.Path != tt.want[i] {
					t.Errorf("collapsed[%d] = %q, want %q", i, r.Path, tt.want[i])
				}
			}
		})
	}
}

func TestEnsureRootIdempotent(t *testing.T) {
	cat := openTestCatalog(t)
	ctx := context.Background()

	root := WatchedRoot{Path: "/media/photos", ShortName: "photos", Visibility: VisibilityPublic, Basepath: true}
	created, err := cat.EnsureRoot(ctx, &root)
	if err != nil {
		t.Fatalf("EnsureRoot failed: %v", err)
	}
	if !created {
		t.Error("first EnsureRoot did not create")
	}
	if root.ID == 0 {
		t.Error("EnsureRoot left ID unset")
	}

	again := WatchedRoot{Path: "/media/photos", Visibility: VisibilityRestricted}
	created, err = cat.EnsureRoot(ctx, &again)
	if err != nil {
		t.Fatalf("second EnsureRoot failed: %v", err)
	}
	if created {
		t.Error("second EnsureRoot created a duplicate")
	}
	if again.ID != root.ID {
		t.Errorf("second EnsureRoot returned ID %d, want existing %d", again.ID, root.ID)
	}
	if again.Visibility != VisibilityPublic {
		t.Errorf("existing visibility %q was clobbered to %q", VisibilityPublic, again.Visibility)
	}

	roots, err := cat.ListRoots(ctx)
	if err != nil {
		t.Fatalf("ListRoots failed: %v", err)
	}
	if len(roots) != 1 {
		t.Errorf("got %d roots, want 1", len(roots))
	}
}

func TestRootIgnoredExcludedFromActive(t *testing.T) {
	cat := openTestCatalog(t)
	ctx := context.Background()

	for _, p := range []string{"/media/a", "/media/b"} {
		if _, err := cat.EnsureRoot(ctx, &WatchedRoot{Path: p}); err != nil {
			t.Fatalf("EnsureRoot(%s) failed: %v", p, err)
		}
	}

	if err := cat.SetRootIgnored(ctx, "/media/a", true); err != nil {
		t.Fatalf("SetRootIgnored failed: %v", err)
	}

	active, err := cat.ActiveRoots(ctx)
	if err != nil {
		t.Fatalf("ActiveRoots failed: %v", err)
	}
	if len(active) != 1 || active[0].Path != "/media/b" {
		t.Errorf("active roots = %+v, want only /media/b", active)
	}

	if err := cat.SetRootIgnored(ctx, "/media/a", false); err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	active, err = cat.ActiveRoots(ctx)
	if err != nil {
		t.Fatalf("ActiveRoots failed: %v", err)
	}
	if len(active) != 2 {
		t.Errorf("got %d active roots after restore, want 2", len(active))
	}

	if err := cat.SetRootIgnored(ctx, "/no/such/root", true); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("ignoring unknown root: err = %v, want sql.ErrNoRows", err)
	}
}

func TestVisibilityForDirectory(t *testing.T) {
	cat := openTestCatalog(t)
	ctx := context.Background()

	if _, err := cat.EnsureRoot(ctx, &WatchedRoot{Path: "/media/pub", Visibility: VisibilityPublic}); err != nil {
		t.Fatalf("EnsureRoot failed: %v", err)
	}

	if got := cat.VisibilityForDirectory(ctx, "/media/pub"); got != VisibilityPublic {
		t.Errorf("tracked public root: got %q", got)
	}
	if got := cat.VisibilityForDirectory(ctx, "/media/unknown"); got != VisibilityRestricted {
		t.Errorf("untracked directory: got %q, want restricted", got)
	}
}

func TestContentRoundtrip(t *testing.T) {
	cat := openTestCatalog(t)
	ctx := context.Background()

	checksum := testChecksum(0x01)
	created := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	content := &Content{
		Checksum:     checksum,
		IsVideo:      false,
		Width:        1920,
		Height:       1080,
		Metadata:     map[string]string{"mime_type": "image/png", "prompt": "a sunset"},
		DateCreated:  created,
		DateModified: created,
	}
	mustIngest(t, cat, checksum, "/media/photos", "sunset.png", content)

	got, err := cat.GetContent(ctx, checksum)
	if err != nil {
		t.Fatalf("GetContent failed: %v", err)
	}
	if got == nil {
		t.Fatal("GetContent returned nil for ingested checksum")
	}
	if got.Width != 1920 || got.Height != 1080 {
		t.Errorf("dimensions = %dx%d, want 1920x1080", got.Width, got.Height)
	}
	if got.Metadata["prompt"] != "a sunset" {
		t.Errorf("metadata = %v", got.Metadata)
	}
	if !got.DateCreated.Equal(created) {
		t.Errorf("DateCreated = %v, want %v", got.DateCreated, created)
	}
	if got.DateIndexed.IsZero() {
		t.Error("DateIndexed not set on insert")
	}

	missing, err := cat.GetContent(ctx, testChecksum(0xff))
	if err != nil {
		t.Fatalf("GetContent for unknown checksum errored: %v", err)
	}
	if missing != nil {
		t.Error("GetContent returned a row for an unknown checksum")
	}
}

func TestDuplicateInsertsAreUniqueConstraintErrs(t *testing.T) {
	cat := openTestCatalog(t)
	checksum := testChecksum(0x02)
	mustIngest(t, cat, checksum, "/media", "a.jpg", nil)

	tx, err := cat.BeginBatch()
	if err != nil {
		t.Fatalf("BeginBatch failed: %v", err)
	}
	err = cat.InsertContent(tx, &Content{Checksum: checksum, DateCreated: time.Now(), DateModified: time.Now()})
	if !IsUniqueConstraintErr(err) {
		t.Errorf("duplicate content: IsUniqueConstraintErr(%v) = false", err)
	}
	_ = cat.EndBatch(tx, err)

	tx, err = cat.BeginBatch()
	if err != nil {
		t.Fatalf("BeginBatch failed: %v", err)
	}
	err = cat.InsertLocation(tx, &Location{Checksum: checksum, Directory: "/media", Filename: "a.jpg"})
	if !IsUniqueConstraintErr(err) {
		t.Errorf("duplicate location: IsUniqueConstraintErr(%v) = false", err)
	}
	_ = cat.EndBatch(tx, err)

	if IsUniqueConstraintErr(nil) {
		t.Error("IsUniqueConstraintErr(nil) = true")
	}
	if IsUniqueConstraintErr(errors.New("boom")) {
		t.Error("IsUniqueConstraintErr reported an unrelated error")
	}
}

func TestLocationsQueries(t *testing.T) {
	cat := openTestCatalog(t)
	ctx := context.Background()

	checksum := testChecksum(0x03)
	mustIngest(t, cat, checksum, "/media/a", "one.jpg", nil)
	mustIngest(t, cat, checksum, "/media/b", "copy.jpg", nil)
	mustIngest(t, cat, testChecksum(0x04), "/media/a", "two.jpg", nil)

	byChecksum, err := cat.LocationsForChecksum(ctx, checksum)
	if err != nil {
		t.Fatalf("LocationsForChecksum failed: %v", err)
	}
	if len(byChecksum) != 2 {
		t.Errorf("got %d locations for checksum, want 2", len(byChecksum))
	}

	byDir, err := cat.LocationsUnderDirectory(ctx, "/media/a")
	if err != nil {
		t.Fatalf("LocationsUnderDirectory failed: %v", err)
	}
	if len(byDir) != 2 {
		t.Errorf("got %d locations under /media/a, want 2", len(byDir))
	}

	loc, err := cat.GetLocation(ctx, "/media/b", "copy.jpg")
	if err != nil {
		t.Fatalf("GetLocation failed: %v", err)
	}
	if loc == nil || loc.Checksum != checksum {
		t.Errorf("GetLocation = %+v, want checksum %s", loc, checksum)
	}

	checksums, err := cat.AllChecksums(ctx)
	if err != nil {
		t.Fatalf("AllChecksums failed: %v", err)
	}
	if len(checksums) != 2 {
		t.Errorf("got %d checksums, want 2", len(checksums))
	}
}

func TestMoveLocation(t *testing.T) {
	cat := openTestCatalog(t)
	ctx := context.Background()

	checksum := testChecksum(0x05)
	loc := mustIngest(t, cat, checksum, "/media/old", "before.jpg", nil)

	if err := cat.MoveLocation(ctx, &loc, "/media/new", "after.jpg"); err != nil {
		t.Fatalf("MoveLocation failed: %v", err)
	}
	if loc.Directory != "/media/new" || loc.Filename != "after.jpg" {
		t.Errorf("in-memory location not updated: %+v", loc)
	}

	if old, _ := cat.GetLocation(ctx, "/media/old", "before.jpg"); old != nil {
		t.Error("old location row still present after move")
	}
	moved, err := cat.GetLocation(ctx, "/media/new", "after.jpg")
	if err != nil {
		t.Fatalf("GetLocation failed: %v", err)
	}
	if moved == nil || moved.ID != loc.ID || moved.Checksum != checksum {
		t.Errorf("moved row = %+v, want id %d checksum %s", moved, loc.ID, checksum)
	}
}

func TestDeleteLocationKeepsContent(t *testing.T) {
	cat := openTestCatalog(t)
	ctx := context.Background()

	checksum := testChecksum(0x06)
	mustIngest(t, cat, checksum, "/media", "only.jpg", nil)

	removed, err := cat.DeleteLocation(ctx, "/media", "only.jpg")
	if err != nil {
		t.Fatalf("DeleteLocation failed: %v", err)
	}
	if !removed {
		t.Error("DeleteLocation reported no row removed")
	}

	exists, err := cat.ContentExists(ctx, checksum)
	if err != nil {
		t.Fatalf("ContentExists failed: %v", err)
	}
	if !exists {
		t.Error("Content row removed with its last location; soft delete must keep it")
	}

	removed, err = cat.DeleteLocation(ctx, "/media", "only.jpg")
	if err != nil {
		t.Fatalf("second DeleteLocation errored: %v", err)
	}
	if removed {
		t.Error("second DeleteLocation reported a removal")
	}
}

func TestPermanentDeleteCascadesOnLastReference(t *testing.T) {
	cat := openTestCatalog(t)
	ctx := context.Background()

	checksum := testChecksum(0x07)
	mustIngest(t, cat, checksum, "/media/a", "dup.jpg", nil)
	mustIngest(t, cat, checksum, "/media/b", "dup.jpg", nil)

	contentRemoved, err := cat.PermanentDeleteLocation(ctx, "/media/a", "dup.jpg")
	if err != nil {
		t.Fatalf("PermanentDeleteLocation failed: %v", err)
	}
	if contentRemoved {
		t.Error("content removed while a second location still references it")
	}

	contentRemoved, err = cat.PermanentDeleteLocation(ctx, "/media/b", "dup.jpg")
	if err != nil {
		t.Fatalf("PermanentDeleteLocation failed: %v", err)
	}
	if !contentRemoved {
		t.Error("content not removed with its last reference")
	}
	if got, _ := cat.GetContent(ctx, checksum); got != nil {
		t.Error("content row survived a full cascade")
	}

	if _, err := cat.PermanentDeleteLocation(ctx, "/media/b", "dup.jpg"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("deleting a missing location: err = %v, want sql.ErrNoRows", err)
	}
}

func TestSetLocationDeleted(t *testing.T) {
	cat := openTestCatalog(t)
	ctx := context.Background()

	mustIngest(t, cat, testChecksum(0x08), "/media", "gone.jpg", nil)

	if err := cat.SetLocationDeleted(ctx, "/media", "gone.jpg", true); err != nil {
		t.Fatalf("SetLocationDeleted failed: %v", err)
	}
	loc, err := cat.GetLocation(ctx, "/media", "gone.jpg")
	if err != nil {
		t.Fatalf("GetLocation failed: %v", err)
	}
	if loc == nil || !loc.Deleted {
		t.Errorf("location = %+v, want Deleted = true", loc)
	}

	if err := cat.SetLocationDeleted(ctx, "/media", "missing.jpg", true); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("flagging a missing location: err = %v, want sql.ErrNoRows", err)
	}
}

func TestDeleteOrphanLocations(t *testing.T) {
	cat := openTestCatalog(t)
	ctx := context.Background()

	mustIngest(t, cat, testChecksum(0x09), "/media/kept", "a.jpg", nil)
	mustIngest(t, cat, testChecksum(0x0a), "/media/removed", "b.jpg", nil)
	mustIngest(t, cat, testChecksum(0x0b), "/media/removed", "c.jpg", nil)

	roots := []WatchedRoot{{Path: "/media/kept"}}
	n, err := cat.DeleteOrphanLocations(ctx, roots)
	if err != nil {
		t.Fatalf("DeleteOrphanLocations failed: %v", err)
	}
	if n != 2 {
		t.Errorf("removed %d orphans, want 2", n)
	}

	left, err := cat.LocationsUnderDirectory(ctx, "/media/removed")
	if err != nil {
		t.Fatalf("LocationsUnderDirectory failed: %v", err)
	}
	if len(left) != 0 {
		t.Errorf("%d orphan locations survived", len(left))
	}
	kept, err := cat.LocationsUnderDirectory(ctx, "/media/kept")
	if err != nil {
		t.Fatalf("LocationsUnderDirectory failed: %v", err)
	}
	if len(kept) != 1 {
		t.Errorf("tracked location count = %d, want 1", len(kept))
	}

	n, err = cat.DeleteOrphanLocations(ctx, roots)
	if err != nil {
		t.Fatalf("second pass failed: %v", err)
	}
	if n != 0 {
		t.Errorf("second pass removed %d, want 0", n)
	}
}

func TestUpdateContentMetadata(t *testing.T) {
	cat := openTestCatalog(t)
	ctx := context.Background()

	checksum := testChecksum(0x0c)
	content := &Content{
		Checksum:     checksum,
		Metadata:     map[string]string{"mime_type": "image/jpeg"},
		DateCreated:  time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		DateModified: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	mustIngest(t, cat, checksum, "/media", "re.jpg", content)

	updated := map[string]string{"mime_type": "image/jpeg", "prompt": "reprocessed"}
	if err := cat.UpdateContentMetadata(ctx, checksum, updated, 800, 600); err != nil {
		t.Fatalf("UpdateContentMetadata failed: %v", err)
	}

	got, err := cat.GetContent(ctx, checksum)
	if err != nil {
		t.Fatalf("GetContent failed: %v", err)
	}
	if got.Width != 800 || got.Height != 600 {
		t.Errorf("dimensions = %dx%d, want 800x600", got.Width, got.Height)
	}
	if got.Metadata["prompt"] != "reprocessed" {
		t.Errorf("metadata = %v", got.Metadata)
	}
	if !got.DateCreated.Equal(content.DateCreated) {
		t.Error("DateCreated changed during metadata update")
	}

	if err := cat.UpdateContentMetadata(ctx, testChecksum(0xfe), nil, 0, 0); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("updating unknown checksum: err = %v, want sql.ErrNoRows", err)
	}
}

func TestSettings(t *testing.T) {
	cat := openTestCatalog(t)
	ctx := context.Background()

	if v, err := cat.GetSetting(ctx, SettingThumbSize); err != nil || v != "" {
		t.Errorf("unset key: value %q, err %v", v, err)
	}

	if err := cat.SeedSetting(ctx, SettingThumbSize, "400"); err != nil {
		t.Fatalf("SeedSetting failed: %v", err)
	}
	if err := cat.SetSetting(ctx, SettingThumbSize, "512"); err != nil {
		t.Fatalf("SetSetting failed: %v", err)
	}
	if err := cat.SeedSetting(ctx, SettingThumbSize, "400"); err != nil {
		t.Fatalf("re-seed failed: %v", err)
	}

	if got := cat.GetSettingInt(ctx, SettingThumbSize, 400); got != 512 {
		t.Errorf("seed clobbered an admin-set value: got %d, want 512", got)
	}
	if got := cat.GetSettingInt(ctx, SettingPreviewSize, 1024); got != 1024 {
		t.Errorf("unset key fallback = %d, want 1024", got)
	}

	if err := cat.SetSetting(ctx, "junk", "not-a-number"); err != nil {
		t.Fatalf("SetSetting failed: %v", err)
	}
	if got := cat.GetSettingInt(ctx, "junk", 7); got != 7 {
		t.Errorf("non-numeric value fallback = %d, want 7", got)
	}
}

func TestContentTags(t *testing.T) {
	cat := openTestCatalog(t)
	ctx := context.Background()

	checksum := testChecksum(0x0d)
	mustIngest(t, cat, checksum, "/media", "tagged.jpg", nil)

	added, err := cat.AddTagToContent(ctx, checksum, "vacation")
	if err != nil {
		t.Fatalf("AddTagToContent failed: %v", err)
	}
	if !added {
		t.Error("first add reported no new association")
	}

	added, err = cat.AddTagToContent(ctx, checksum, "Vacation")
	if err != nil {
		t.Fatalf("case-variant add failed: %v", err)
	}
	if added {
		t.Error("case-variant add created a second association")
	}

	if _, err := cat.AddTagToContent(ctx, checksum, "beach"); err != nil {
		t.Fatalf("AddTagToContent failed: %v", err)
	}

	names, err := cat.TagsForContent(ctx, checksum)
	if err != nil {
		t.Fatalf("TagsForContent failed: %v", err)
	}
	if len(names) != 2 || names[0] != "beach" || names[1] != "vacation" {
		t.Errorf("tags = %v, want [beach vacation]", names)
	}

	got, err := cat.GetContent(ctx, checksum)
	if err != nil {
		t.Fatalf("GetContent failed: %v", err)
	}
	if len(got.Tags) != 2 {
		t.Errorf("GetContent tags = %v, want 2 entries", got.Tags)
	}

	if err := cat.RemoveTagFromContent(ctx, checksum, "VACATION"); err != nil {
		t.Fatalf("RemoveTagFromContent failed: %v", err)
	}
	names, err = cat.TagsForContent(ctx, checksum)
	if err != nil {
		t.Fatalf("TagsForContent failed: %v", err)
	}
	if len(names) != 1 || names[0] != "beach" {
		t.Errorf("tags after remove = %v, want [beach]", names)
	}

	if _, err := cat.GetOrCreateTag(ctx, "   "); err == nil {
		t.Error("blank tag name accepted")
	}
}

func TestApplyFolderTags(t *testing.T) {
	cat := openTestCatalog(t)
	ctx := context.Background()

	root := WatchedRoot{Path: "/media/holiday"}
	if _, err := cat.EnsureRoot(ctx, &root); err != nil {
		t.Fatalf("EnsureRoot failed: %v", err)
	}
	if err := cat.AddTagToRoot(ctx, root.ID, "holiday"); err != nil {
		t.Fatalf("AddTagToRoot failed: %v", err)
	}

	inside := testChecksum(0x0e)
	outside := testChecksum(0x0f)
	mustIngest(t, cat, inside, "/media/holiday", "in.jpg", nil)
	mustIngest(t, cat, outside, "/media/other", "out.jpg", nil)

	n, err := cat.ApplyFolderTags(ctx, &root)
	if err != nil {
		t.Fatalf("ApplyFolderTags failed: %v", err)
	}
	if n != 1 {
		t.Errorf("created %d associations, want 1", n)
	}

	names, err := cat.TagsForContent(ctx, inside)
	if err != nil {
		t.Fatalf("TagsForContent failed: %v", err)
	}
	if len(names) != 1 || names[0] != "holiday" {
		t.Errorf("tags inside root = %v, want [holiday]", names)
	}
	names, err = cat.TagsForContent(ctx, outside)
	if err != nil {
		t.Fatalf("TagsForContent failed: %v", err)
	}
	if len(names) != 0 {
		t.Errorf("content outside the root picked up tags: %v", names)
	}

	// Sweeps are add-only and repeatable.
	n, err = cat.ApplyFolderTags(ctx, &root)
	if err != nil {
		t.Fatalf("second sweep failed: %v", err)
	}
	if n != 0 {
		t.Errorf("second sweep created %d associations, want 0", n)
	}

	rootTags, err := cat.TagsForRoot(ctx, root.ID)
	if err != nil {
		t.Fatalf("TagsForRoot failed: %v", err)
	}
	if len(rootTags) != 1 || rootTags[0] != "holiday" {
		t.Errorf("root tags = %v, want [holiday]", rootTags)
	}
}

func countSearchMatches(t *testing.T, cat *Catalog, query string) int {
	t.Helper()
	var n int
	err := cat.DB().QueryRow(
		"SELECT COUNT(*) FROM locations_fts WHERE locations_fts MATCH ?", query).Scan(&n)
	if err != nil {
		t.Fatalf("search query %q failed: %v", query, err)
	}
	return n
}

func TestSearchIndex(t *testing.T) {
	cat := openTestCatalog(t)
	ctx := context.Background()

	content := &Content{
		Checksum:     testChecksum(0x10),
		Metadata:     map[string]string{"sui_image_params": `{"prompt":"misty mountain lake","model":"flux-dev"}`},
		DateCreated:  time.Now(),
		DateModified: time.Now(),
	}
	mustIngest(t, cat, content.Checksum, "/media/art", "lake.png", content)
	mustIngest(t, cat, testChecksum(0x11), "/media/art", "plain.png", nil)

	if n := countSearchMatches(t, cat, "misty"); n != 1 {
		t.Errorf("prompt search matched %d rows, want 1", n)
	}
	if n := countSearchMatches(t, cat, `model:"flux-dev"`); n != 1 {
		t.Errorf("model column search matched %d rows, want 1", n)
	}
	if n := countSearchMatches(t, cat, "lake"); n != 1 {
		t.Errorf("filename/prompt search matched %d rows, want 1", n)
	}

	reindexed, err := cat.RebuildSearchIndex(ctx, 1)
	if err != nil {
		t.Fatalf("RebuildSearchIndex failed: %v", err)
	}
	if reindexed != 2 {
		t.Errorf("reindexed %d rows, want 2", reindexed)
	}
	if n := countSearchMatches(t, cat, "misty"); n != 1 {
		t.Errorf("after rebuild: prompt search matched %d rows, want 1", n)
	}
}

func TestFlattenForSearch(t *testing.T) {
	loc := &Location{ID: 1, Directory: "/media/art", Filename: "gen.png"}

	t.Run("swarmui params", func(t *testing.T) {
		content := &Content{
			Metadata: map[string]string{
				"sui_image_params": `{"prompt":"a castle","negativeprompt":"blurry","model":"sdxl","loras":["detail","style"]}`,
			},
			Tags: []string{"fantasy"},
		}
		f := flattenForSearch(loc, content)
		if f.Prompt != "a castle" {
			t.Errorf("Prompt = %q", f.Prompt)
		}
		if f.NegativePrompt != "blurry" {
			t.Errorf("NegativePrompt = %q", f.NegativePrompt)
		}
		if f.Model != "sdxl" {
			t.Errorf("Model = %q", f.Model)
		}
		if f.Loras != "detail, style" {
			t.Errorf("Loras = %q", f.Loras)
		}
		if f.Application != "swarmui" {
			t.Errorf("Application = %q", f.Application)
		}
		if !strings.Contains(f.FullText, "fantasy") {
			t.Errorf("tags missing from full text: %q", f.FullText)
		}
	})

	t.Run("a1111 parameters blob", func(t *testing.T) {
		content := &Content{
			Metadata: map[string]string{"parameters": "a boat, Steps: 20, Sampler: Euler"},
		}
		f := flattenForSearch(loc, content)
		if f.Prompt != "a boat, Steps: 20, Sampler: Euler" {
			t.Errorf("Prompt = %q", f.Prompt)
		}
		if f.Application != "a1111" {
			t.Errorf("Application = %q", f.Application)
		}
	})

	t.Run("malformed params degrade to raw text", func(t *testing.T) {
		content := &Content{
			Metadata: map[string]string{"sui_image_params": "not json"},
		}
		f := flattenForSearch(loc, content)
		if f.FullText != "not json" {
			t.Errorf("FullText = %q, want the raw blob", f.FullText)
		}
	})

	t.Run("nil content", func(t *testing.T) {
		f := flattenForSearch(loc, nil)
		if f.Directory != "/media/art" || f.Filename != "gen.png" {
			t.Errorf("path fields = %q/%q", f.Directory, f.Filename)
		}
	})
}

func TestCalculateStats(t *testing.T) {
	cat := openTestCatalog(t)
	ctx := context.Background()

	video := &Content{Checksum: testChecksum(0x12), IsVideo: true, DateCreated: time.Now(), DateModified: time.Now()}
	mustIngest(t, cat, video.Checksum, "/media", "clip.mp4", video)
	mustIngest(t, cat, testChecksum(0x13), "/media", "pic.jpg", nil)
	mustIngest(t, cat, testChecksum(0x13), "/media/b", "pic.jpg", nil)

	if _, err := cat.EnsureRoot(ctx, &WatchedRoot{Path: "/media"}); err != nil {
		t.Fatalf("EnsureRoot failed: %v", err)
	}

	stats, err := cat.CalculateStats(ctx)
	if err != nil {
		t.Fatalf("CalculateStats failed: %v", err)
	}
	if stats.TotalContents != 2 {
		t.Errorf("TotalContents = %d, want 2", stats.TotalContents)
	}
	if stats.TotalVideos != 1 || stats.TotalImages != 1 {
		t.Errorf("videos/images = %d/%d, want 1/1", stats.TotalVideos, stats.TotalImages)
	}
	if stats.TotalLocations != 3 {
		t.Errorf("TotalLocations = %d, want 3", stats.TotalLocations)
	}
	if stats.TotalRoots != 1 {
		t.Errorf("TotalRoots = %d, want 1", stats.TotalRoots)
	}
}

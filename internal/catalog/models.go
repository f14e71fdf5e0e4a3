package catalog

import "time"

// Visibility is the audience tier of a watched root and of the change
// notifications produced for content under it.
type Visibility string

const (
	// VisibilityPublic marks a root whose content is visible to everyone.
	VisibilityPublic Visibility = "public"
	// VisibilityRestricted marks a root visible to privileged viewers only.
	VisibilityRestricted Visibility = "restricted"
)

// MoreVisible returns the broader of two tiers. Public implies
// restricted visibility, so public wins.
func MoreVisible(a, b Visibility) Visibility {
	if a == VisibilityPublic || b == VisibilityPublic {
		return VisibilityPublic
	}
	return VisibilityRestricted
}

// WatchedRoot is a directory tree under ingestion, either configured
// explicitly or auto-discovered by a scan pass.
type WatchedRoot struct {
	ID          int64      `json:"id"`
	Path        string     `json:"path"`
	ShortName   string     `json:"shortName,omitempty"`
	Description string     `json:"description,omitempty"`
	Parent      string     `json:"parent,omitempty"`
	Ignored     bool       `json:"ignored"`
	Visibility  Visibility `json:"visibility"`
	Basepath    bool       `json:"basepath"`
	BuiltIn     bool       `json:"builtIn"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// Content is the catalog entry for one unique checksum of media bytes.
// Timestamps come from the first-seen file.
type Content struct {
	Checksum     string            `json:"checksum"`
	IsVideo      bool              `json:"isVideo"`
	Width        int               `json:"width,omitempty"`
	Height       int               `json:"height,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	DateCreated  time.Time         `json:"dateCreated"`
	DateModified time.Time         `json:"dateModified"`
	DateIndexed  time.Time         `json:"dateIndexed"`
	Tags         []string          `json:"tags,omitempty"`
}

// Location is one filesystem instance (directory, filename) pointing at
// a Content entry by checksum.
type Location struct {
	ID        int64     `json:"id"`
	Checksum  string    `json:"checksum"`
	Directory string    `json:"directory"`
	Filename  string    `json:"filename"`
	Deleted   bool      `json:"deleted"`
	ScannedAt time.Time `json:"scannedAt"`
}

// Tag is a label attachable to contents and to watched roots.
type Tag struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Restricted bool   `json:"restricted"`
	BuiltIn    bool   `json:"builtIn"`
	Internal   bool   `json:"internal"`
}

// Stats holds catalog-wide counts for health output and the metrics
// collector.
type Stats struct {
	TotalContents  int `json:"totalContents"`
	TotalImages    int `json:"totalImages"`
	TotalVideos    int `json:"totalVideos"`
	TotalLocations int `json:"totalLocations"`
	TotalRoots     int `json:"totalRoots"`
	TotalTags      int `json:"totalTags"`
}

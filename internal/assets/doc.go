// Package assets generates and caches derived renditions (thumbnails
// and previews) of cataloged content. Keys follow the public naming
// contract {checksum}_{kind}.{ext}; files publish via temp-write plus
// atomic rename and are immutable afterwards, so reads never lock. An
// in-flight set gives at-most-one concurrent build per key, and a
// failed build publishes nothing so the next request simply retries.
package assets

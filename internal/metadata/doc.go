// Package metadata derives dimensions and embedded textual metadata from
// media files.
//
// Images are decoded in-process: image.DecodeConfig supplies dimensions
// cheaply (header only, no pixel decode), EXIF tags are read from JPEGs,
// and PNG text chunks are read directly since that is where image
// generation tools record their parameters. Video dimensions come from
// ffprobe via the ffmpeg package; no embedded metadata is extracted from
// video containers.
//
// Extraction never fails a caller. A corrupt or unsupported file yields
// an empty field map and zero dimensions so ingestion can still catalog
// it; every value is sanitized to valid UTF-8 before it reaches storage.
package metadata

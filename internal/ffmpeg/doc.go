// Package ffmpeg wraps the external ffmpeg and ffprobe binaries for the
// two operations the catalog needs from video files: probing stream
// dimensions and extracting a representative frame for thumbnailing.
//
// Frames are piped out as PNG over stdout rather than written to disk,
// and every invocation runs under a context timeout so a wedged decoder
// cannot stall an ingest or build worker indefinitely.
package ffmpeg

package metadata

import (
	"context"
	"image"
	"os"
	"strings"

	// Register decoders for dimension probing.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"media-catalog/internal/ffmpeg"
	"media-catalog/internal/logging"
	"media-catalog/internal/mediatypes"
)

// Result is the extracted description of one media file. Zero Width and
// Height mean the dimensions could not be determined.
type Result struct {
	Fields map[string]string
	Width  int
	Height int
}

// Extractor derives dimensions and embedded textual metadata for media
// files. Image formats are decoded in-process; video dimensions come
// from ffprobe.
type Extractor struct {
	prober *ffmpeg.Prober
}

// NewExtractor creates an Extractor that probes video files through the
// given Prober.
func NewExtractor(prober *ffmpeg.Prober) *Extractor {
	return &Extractor{prober: prober}
}

// Extract returns metadata and dimensions for the file at path. It never
// fails: any decode or probe problem is logged and yields an empty
// field map with zero dimensions, so a corrupt file still gets cataloged.
func (e *Extractor) Extract(ctx context.Context, path string, fileType mediatypes.FileType) Result {
	switch fileType {
	case mediatypes.FileTypeVideo:
		return e.extractVideo(ctx, path)
	case mediatypes.FileTypeImage:
		return e.extractImage(path)
	default:
		return Result{Fields: map[string]string{}}
	}
}

func (e *Extractor) extractVideo(ctx context.Context, path string) Result {
	res := Result{Fields: map[string]string{}}

	if e.prober == nil {
		logging.Warn("No video prober configured, skipping dimensions for %s", path)
		return res
	}

	w, h, err := e.prober.Probe(ctx, path)
	if err != nil {
		logging.Warn("Failed to probe video %s: %v", path, err)
		return res
	}
	res.Width = w
	res.Height = h
	return res
}

func (e *Extractor) extractImage(path string) Result {
	res := Result{Fields: map[string]string{}}

	f, err := os.Open(path)
	if err != nil {
		logging.Warn("Failed to open %s for metadata: %v", path, err)
		return res
	}
	cfg, format, err := image.DecodeConfig(f)
	f.Close()
	if err != nil {
		logging.Warn("Failed to decode header of %s: %v", path, err)
		return res
	}

	res.Width = cfg.Width
	res.Height = cfg.Height
	res.Fields["format"] = format

	var embedded map[string]string
	switch format {
	case "png":
		embedded, err = pngTextFields(path)
	case "jpeg":
		embedded, err = exifFields(path)
	}
	if err != nil {
		logging.Debug("No embedded metadata for %s: %v", path, err)
	}
	for k, v := range embedded {
		res.Fields[sanitize(k)] = sanitize(v)
	}

	return res
}

// sanitize forces a value into display-safe UTF-8: invalid sequences are
// replaced and NUL bytes stripped so the result survives JSON encoding
// and the search index.
func sanitize(s string) string {
	s = strings.ToValidUTF8(s, "�")
	return strings.ReplaceAll(s, "\x00", "")
}

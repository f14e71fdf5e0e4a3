package metadata

import (
	"os"
	"strings"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"
)

// exifFields returns the EXIF tags of a JPEG file as a flat string map.
// Files without an EXIF segment return an error, which callers treat as
// "no embedded metadata".
func exifFields(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return nil, err
	}

	collector := &exifCollector{fields: make(map[string]string)}
	if err := x.Walk(collector); err != nil {
		return collector.fields, err
	}
	return collector.fields, nil
}

type exifCollector struct {
	fields map[string]string
}

func (c *exifCollector) Walk(name exif.FieldName, tag *tiff.Tag) error {
	var value string
	if tag.Format() == tiff.StringVal {
		s, err := tag.StringVal()
		if err != nil {
			return nil
		}
		value = s
	} else {
		value = tag.String()
	}

	value = strings.TrimSpace(strings.Trim(value, "\x00"))
	if value != "" {
		c.fields[string(name)] = value
	}
	return nil
}

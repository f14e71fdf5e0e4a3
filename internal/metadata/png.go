package metadata

import (
	"bufio"
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

var pngSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// maxTextChunk caps how much of a single text chunk is read. Generation
// parameters from image tools run to a few kilobytes; anything beyond
// this is not worth indexing.
const maxTextChunk = 1 << 20

// pngTextFields returns the textual chunks (tEXt, zTXt, iTXt) of a PNG
// file keyed by chunk keyword. Image tools store generation parameters
// here, which is what makes screenshots of the same pixels searchable.
func pngTextFields(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := bufio.NewReader(f)

	sig := make([]byte, len(pngSignature))
	if _, err := io.ReadFull(r, sig); err != nil {
		return nil, err
	}
	if !bytes.Equal(sig, pngSignature) {
		return nil, fmt.Errorf("not a PNG file")
	}

	fields := make(map[string]string)
	header := make([]byte, 8)

	for {
		if _, err := io.ReadFull(r, header); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				break
			}
			return fields, err
		}
		length := binary.BigEndian.Uint32(header[:4])
		chunkType := string(header[4:8])

		if chunkType == "IEND" {
			break
		}

		isText := chunkType == "tEXt" || chunkType == "zTXt" || chunkType == "iTXt"
		if !isText || length > maxTextChunk {
			// Skip data + CRC
			if _, err := r.Discard(int(length) + 4); err != nil {
				return fields, err
			}
			continue
		}

		data := make([]byte, length)
		if _, err := io.ReadFull(r, data); err != nil {
			return fields, err
		}
		// CRC is not verified; a corrupt trailing chunk should not cost
		// us the fields already read.
		if _, err := r.Discard(4); err != nil {
			return fields, err
		}

		key, value, err := decodeTextChunk(chunkType, data)
		if err != nil {
			continue
		}
		if key != "" && value != "" {
			fields[key] = value
		}
	}

	return fields, nil
}

func decodeTextChunk(chunkType string, data []byte) (string, string, error) {
	switch chunkType {
	case "tEXt":
		key, rest, ok := bytes.Cut(data, []byte{0})
		if !ok {
			return "", "", fmt.Errorf("malformed tEXt chunk")
		}
		return latin1String(key), latin1String(rest), nil

	case "zTXt":
		key, rest, ok := bytes.Cut(data, []byte{0})
		if !ok || len(rest) < 1 {
			return "", "", fmt.Errorf("malformed zTXt chunk")
		}
		// rest[0] is the compression method; only deflate (0) exists
		value, err := inflate(rest[1:])
		if err != nil {
			return "", "", err
		}
		return latin1String(key), latin1String(value), nil

	case "iTXt":
		key, rest, ok := bytes.Cut(data, []byte{0})
		if !ok || len(rest) < 2 {
			return "", "", fmt.Errorf("malformed iTXt chunk")
		}
		compressed := rest[0] == 1
		rest = rest[2:]
		// Skip language tag and translated keyword
		if _, rest, ok = bytes.Cut(rest, []byte{0}); !ok {
			return "", "", fmt.Errorf("malformed iTXt chunk")
		}
		if _, rest, ok = bytes.Cut(rest, []byte{0}); !ok {
			return "", "", fmt.Errorf("malformed iTXt chunk")
		}
		if compressed {
			value, err := inflate(rest)
			if err != nil {
				return "", "", err
			}
			return string(key), string(value), nil
		}
		return string(key), string(rest), nil
	}
	return "", "", fmt.Errorf("not a text chunk")
}

func inflate(data []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(io.LimitReader(zr, maxTextChunk))
}

// latin1String converts Latin-1 bytes (the tEXt/zTXt charset) to UTF-8.
func latin1String(b []byte) string {
	runes := make([]rune, len(b))
	for i, c := range b {
		runes[i] = rune(c)
	}
	return string(runes)
}

package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"media-catalog/internal/filesystem"
)

// blockSize is the read granularity for streaming digests.
const blockSize = 64 * 1024

// File computes the SHA-256 digest of the file at path, streaming the
// contents in fixed-size blocks. The digest is returned as a lowercase
// hex string. Any I/O failure returns an empty string and the error;
// callers treat that as "checksum unavailable" and skip the file.
func File(path string) (string, error) {
	f, err := filesystem.OpenWithRetry(path, filesystem.DefaultRetryConfig())
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, blockSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

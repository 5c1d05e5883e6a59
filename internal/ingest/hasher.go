package ingest

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/zeebo/blake3"
)

const hashBufferSize = 4 * 1024 * 1024

// HashFile computes the hex-encoded BLAKE3 hash of the whole file. The hash
// is the catalog's content identity: identical bytes at different paths map
// to the same logical entity.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	hasher := blake3.New()
	buf := make([]byte, hashBufferSize)
	if _, err := io.CopyBuffer(hasher, f, buf); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// Package digest fingerprints build artifacts for integrity logging.
//
// Files are streamed through SHA-256 in fixed 4096-byte blocks so memory use
// stays bounded regardless of artifact size. Digests are lowercase hex.
package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
)

// BlockSize is the read size used when streaming content into the hash.
const BlockSize = 4096

// Algorithm names the hash for logs and records.
const Algorithm = "sha256"

// File returns the hex digest of the file at path.
func File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	sum, err := Reader(f)
	if err != nil {
		return "", fmt.Errorf("digest %s: %w", path, err)
	}
	return sum, nil
}

// Reader returns the hex digest of everything readable from r.
func Reader(r io.Reader) (string, error) {
	hasher := sha256.New()
	buf := make([]byte, BlockSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			hasher.Write(buf[:n])
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// Bytes returns the hex digest of data.
func Bytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Package fingerprint computes SHA-256 content fingerprints of files on a
// pool of worker goroutines, matching results back by correlation id.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
)

// Digest streams r through SHA-256 and returns the 0x-prefixed lower-case hex digest
func Digest(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("failed to read content: %w", err)
	}
	var sum [sha256.Size]byte
	copy(sum[:], h.Sum(nil))
	return FormatHash(sum), nil
}

// DigestBytes fingerprints an in-memory byte slice
func DigestBytes(b []byte) string {
	return FormatHash(sha256.Sum256(b))
}

// FormatHash renders a 32-byte digest as "0x" + 64 lower-case hex digits
func FormatHash(sum [sha256.Size]byte) string {
	return "0x" + hex.EncodeToString(sum[:])
}

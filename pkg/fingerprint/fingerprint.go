// Package fingerprint computes content fingerprints used as cache keys.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// Size is the length of a fingerprint in hex characters.
const Size = sha256.Size * 2

// Bytes returns the lowercase hex SHA-256 digest of data.
func Bytes(data []byte) string {
	sum := sha256.Sum256(data)

	return hex.EncodeToString(sum[:])
}

// String returns the fingerprint of s.
func String(s string) string {
	return Bytes([]byte(s))
}

// File streams the file at path through SHA-256.
func File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("fingerprint %s: %w", path, err)
	}
	defer f.Close()

	return Reader(f)
}

// Reader fingerprints everything read from r.
func Reader(r io.Reader) (string, error) {
	h := sha256.New()

	_, err := io.Copy(h, r)
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

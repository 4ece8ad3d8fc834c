// Package hash computes streaming MD5 digests of files on disk.
//
// Files are read in fixed-size blocks so arbitrarily large installers
// never have to fit in memory. The incremental entry points exist for
// resumed downloads: the existing prefix of a partial file is fed into
// a context that then continues over freshly downloaded bytes.
package hash

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
)

// blockSize is the read granularity for file hashing.
const blockSize = 512 * 1024

// New returns a fresh incremental MD5 context.
func New() hash.Hash {
	return md5.New()
}

// Hex returns the lowercase hex digest of an incremental context.
func Hex(h hash.Hash) string {
	return hex.EncodeToString(h.Sum(nil))
}

// SumFile computes the MD5 digest of the file at path and returns it as
// a lowercase hex string. The file is streamed; it is never loaded into
// memory at once.
func SumFile(path string) (string, error) {
	h := New()
	if _, err := FeedFile(h, path); err != nil {
		return "", err
	}
	return Hex(h), nil
}

// FeedFile streams the entire file at path into h and returns the
// number of bytes consumed. On error the context must be considered
// poisoned; no partial success is reported.
func FeedFile(h hash.Hash, path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("hash %s: %w", path, err)
	}
	defer f.Close()

	buf := make([]byte, blockSize)
	n, err := io.CopyBuffer(h, f, buf)
	if err != nil {
		return n, fmt.Errorf("hash %s: %w", path, err)
	}
	return n, nil
}

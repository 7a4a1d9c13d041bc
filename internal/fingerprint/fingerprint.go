// Package fingerprint computes the cheap, observable-version hash FileDB
// uses to decide whether a source file needs re-merging. It deliberately
// hashes path+mtime rather than file contents: the corpus is
// immutable-by-convention (seeds are append-only), so a full content hash
// would cost far more than it buys.
package fingerprint

import (
	"fmt"
	"os"

	"github.com/DavidAce/h5mbl/internal/hash"
)

// Hasher produces the 32-character hex fingerprint FileDB stores alongside
// each FileId. The default implementation is CRC32C-based; tests and
// alternate backends can substitute their own.
type Hasher interface {
	Hash(path string, mtime int64) string
}

// Default is the CRC32C-based Hasher used outside of tests.
var Default Hasher = crc32cHasher{}

type crc32cHasher struct{}

func (crc32cHasher) Hash(path string, mtime int64) string {
	return Hash(path, mtime)
}

// Hash returns the fingerprint of one observable file version: the
// CRC32C checksum of "path\nmtime", rendered as a fixed-width 32-character
// hex string to match the FileId.hash on-disk width.
func Hash(path string, mtime int64) string {
	sum := hash.CRC32C([]byte(fmt.Sprintf("%s\n%d", path, mtime)))
	return fmt.Sprintf("%032x", sum)
}

// Stat returns the fingerprint of path as it currently stands on disk,
// using its modification time as the observable-version marker.
func Stat(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("fingerprint: stat %s: %w", path, err)
	}
	return Hash(path, info.ModTime().UnixNano()), nil
}

package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Key returns prefix + ":" + the hex SHA-256 of parts. Each part is written
// with %v and terminated by a NUL byte, so ("ab", "c") and ("a", "bc") hash
// differently.
func Key(prefix string, parts ...any) string {
	h := sha256.New()
	for _, p := range parts {
		fmt.Fprintf(h, "%v\x00", p)
	}
	return prefix + ":" + hex.EncodeToString(h.Sum(nil))
}

// Hash is the hex SHA-256 of data.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

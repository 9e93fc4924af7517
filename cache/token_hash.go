package cache

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashToken derives the fixed-length cache key for a token value. Storing
// hashes keeps raw bearer tokens out of the cache backend.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

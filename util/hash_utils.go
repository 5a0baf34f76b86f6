package util

import (
	"github.com/OneOfOne/xxhash"
)

// HashCode hashes a key to a 64-bit bucket id.
func HashCode(key []byte) uint64 {
	h := xxhash.New64()
	h.Write(key)
	return h.Sum64()
}

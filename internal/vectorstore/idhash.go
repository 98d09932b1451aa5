package vectorstore

import (
	"hash/fnv"
	"math"
)

// idSentinel is the ANN engine's "not found" label; results carrying it are
// dropped during resolution.
const idSentinel int64 = -1

// InternalID derives the numeric key used by the ANN engine from an external
// document id: FNV-1a 64-bit folded into the non-negative int64 range.
// The mapping is surjective, not injective — two distinct ids can collide —
// so the metadata side table keeps the authoritative external id per slot
// and writes detect collisions (last write wins, with a logged warning).
func InternalID(id string) int64 {
	h := fnv.New64a()
	h.Write([]byte(id))
	return int64(h.Sum64() & math.MaxInt64)
}

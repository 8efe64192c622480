package engine

import (
	"hash/fnv"
	"math/rand"
	"strconv"
)

// deriveRand builds a table's random sub-stream from the model seed and the
// table name. Hashing the pair means a table's stream is independent of how
// many other tables exist and of generation order, which is what makes
// per-table output reproducible in both batch and streaming modes.
func deriveRand(seed int64, table string) *rand.Rand {
	h := fnv.New64a()
	h.Write([]byte(strconv.FormatInt(seed, 10)))
	h.Write([]byte{0})
	h.Write([]byte(table))
	return rand.New(rand.NewSource(int64(h.Sum64())))
}

package core

import (
	"crypto/rand"
	"encoding/binary"
)

// newSeed returns a fresh random session seed, shared with clients for
// deterministic RNG. Falls back to a fixed seed only if the system
// entropy source is unavailable, which should never happen in practice.
func newSeed() int64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 1
	}
	return int64(binary.LittleEndian.Uint64(buf[:]) &^ (1 << 63))
}

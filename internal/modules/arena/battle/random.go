package battle

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand/v2"
)

// RNG is the source of every roll in a battle. Rolls are drawn in a fixed
// order (hit, crit, block, jitter) so a seed replays a battle exactly.
type RNG interface {
	Float64() float64
}

// NewRNG returns a deterministic generator for seed.
func NewRNG(seed int64) RNG {
	return rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))
}

// NewSeed generates a battle seed using crypto/rand.
func NewSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}

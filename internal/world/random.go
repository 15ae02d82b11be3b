package world

import (
	"hash/fnv"
	"math/rand"
)

// RNGFactory produces the world's RNG from its seed.
type RNGFactory func(rootSeed, label string) *rand.Rand

// DeterministicSeedValue hashes a root seed and label into an RNG seed.
func DeterministicSeedValue(rootSeed, label string) int64 {
	hasher := fnv.New64a()
	hasher.Write([]byte(rootSeed))
	hasher.Write([]byte{0})
	hasher.Write([]byte(label))
	sum := hasher.Sum64()
	if sum == 0 {
		sum = 1
	}
	return int64(sum)
}

func NewDeterministicRNG(rootSeed, label string) *rand.Rand {
	return rand.New(rand.NewSource(DeterministicSeedValue(rootSeed, label)))
}

// randomInt returns an integer in [-limit, limit].
func randomInt(rng *rand.Rand, limit int) int {
	if limit <= 0 {
		return 0
	}
	return rng.Intn(2*limit+1) - limit
}

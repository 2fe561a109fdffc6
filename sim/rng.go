package sim

import (
	"fmt"
	"hash/fnv"
	"math/rand"
)

// RunKey identifies a reproducible run. Two runs with the same key and
// configuration draw identical particle sets, motions and tuning samples.
type RunKey int64

// NewRunKey creates a RunKey from a seed value.
func NewRunKey(seed int64) RunKey {
	return RunKey(seed)
}

const (
	// SubsystemGenerator seeds initial particle placement. It uses the
	// master seed directly.
	SubsystemGenerator = "generator"

	// SubsystemMotion seeds per-iteration particle drift in the driver.
	SubsystemMotion = "motion"

	// SubsystemTuning seeds candidate sampling in randomized strategies.
	SubsystemTuning = "tuning"
)

// SubsystemRank returns the subsystem name for distributed rank N.
func SubsystemRank(rank int) string {
	return fmt.Sprintf("rank_%d", rank)
}

// PartitionedRNG provides deterministic, isolated RNG instances per subsystem.
//
// Derivation:
//   - SubsystemGenerator uses the master seed directly
//   - every other subsystem uses masterSeed XOR fnv1a64(subsystemName)
//
// Not thread-safe.
type PartitionedRNG struct {
	key        RunKey
	subsystems map[string]*rand.Rand
}

// NewPartitionedRNG creates a PartitionedRNG from a RunKey.
func NewPartitionedRNG(key RunKey) *PartitionedRNG {
	return &PartitionedRNG{
		key:        key,
		subsystems: make(map[string]*rand.Rand),
	}
}

// ForSubsystem returns the cached RNG for the named subsystem, creating it on
// first use. Never returns nil.
func (p *PartitionedRNG) ForSubsystem(name string) *rand.Rand {
	if rng, ok := p.subsystems[name]; ok {
		return rng
	}
	seed := int64(p.key)
	if name != SubsystemGenerator {
		seed ^= fnv1a64(name)
	}
	rng := rand.New(rand.NewSource(seed))
	p.subsystems[name] = rng
	return rng
}

// Key returns the RunKey used to create this PartitionedRNG.
func (p *PartitionedRNG) Key() RunKey {
	return p.key
}

func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}

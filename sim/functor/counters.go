package functor

import (
	"sync"
	"sync/atomic"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/mdtune/mdtune/sim"
)

// FlopsPerKernelCall is the floating point operation count of one
// Lennard-Jones kernel evaluation inside the cutoff, newton3 excluded.
const FlopsPerKernelCall = 18

// FlopsPerDistanceCalculation is the cost of one squared distance.
const FlopsPerDistanceCalculation = 8

// FlopCounter counts distance calculations and kernel calls without
// computing forces. It is not used for tuning.
type FlopCounter struct {
	cutoffSq             float64
	distanceCalculations atomic.Int64
	kernelCalls          atomic.Int64
}

// NewFlopCounter returns a counter for the given cutoff.
func NewFlopCounter(cutoff float64) *FlopCounter {
	return &FlopCounter{cutoffSq: cutoff * cutoff}
}

func (f *FlopCounter) count(dr2 float64) {
	f.distanceCalculations.Add(1)
	if dr2 <= f.cutoffSq {
		f.kernelCalls.Add(1)
	}
}

func (f *FlopCounter) AoSFunctor(i, j *sim.Particle, _ bool) {
	if i.IsDummy() || j.IsDummy() {
		return
	}
	f.count(r3.Norm2(r3.Sub(i.R, j.R)))
}

func soaDistanceSquared(a *sim.SoA, i int, b *sim.SoA, j int) float64 {
	dx, dy, dz := a.X[i]-b.X[j], a.Y[i]-b.Y[j], a.Z[i]-b.Z[j]
	return dx*dx + dy*dy + dz*dz
}

func (f *FlopCounter) SoAFunctorSingle(soa *sim.SoA, _ bool) {
	for i := 0; i < soa.Len(); i++ {
		for j := i + 1; j < soa.Len(); j++ {
			f.count(soaDistanceSquared(soa, i, soa, j))
		}
	}
}

func (f *FlopCounter) SoAFunctorPair(soa1, soa2 *sim.SoA, _ bool) {
	for i := 0; i < soa1.Len(); i++ {
		for j := 0; j < soa2.Len(); j++ {
			f.count(soaDistanceSquared(soa1, i, soa2, j))
		}
	}
}

func (f *FlopCounter) SoAFunctorVerlet(soa *sim.SoA, index int, neighbors []int, _ bool) {
	for _, j := range neighbors {
		f.count(soaDistanceSquared(soa, index, soa, j))
	}
}

func (f *FlopCounter) AllowsNewton3() bool    { return true }
func (f *FlopCounter) AllowsNonNewton3() bool { return true }

// IsAppropriateClusterSize accepts clusters in the AoS layout only.
func (f *FlopCounter) IsAppropriateClusterSize(_ int, layout sim.DataLayoutOption) bool {
	return layout == sim.AoS
}

func (f *FlopCounter) DistanceCalculations() int64 { return f.distanceCalculations.Load() }
func (f *FlopCounter) KernelCalls() int64          { return f.kernelCalls.Load() }

// Flops estimates the floating point operations counted so far.
func (f *FlopCounter) Flops() int64 {
	return f.DistanceCalculations()*FlopsPerDistanceCalculation + f.KernelCalls()*FlopsPerKernelCall
}

// HitRate is the fraction of distance calculations inside the cutoff.
func (f *FlopCounter) HitRate() float64 {
	d := f.DistanceCalculations()
	if d == 0 {
		return 0
	}
	return float64(f.KernelCalls()) / float64(d)
}

// Pair is an unordered particle pair, Lo < Hi.
type Pair struct {
	Lo, Hi int64
}

func makePair(a, b int64) Pair {
	if a > b {
		a, b = b, a
	}
	return Pair{Lo: a, Hi: b}
}

// PairCounter records every pair within cutoff it is called with, keyed by
// particle IDs. Pairs of two halo particles are ignored. Newton3 and
// non-Newton3 modes can be toggled off to exercise mode pruning.
type PairCounter struct {
	cutoffSq float64
	newton3  bool
	noN3     bool

	mu    sync.Mutex
	calls map[Pair]int
	owned map[int64]bool
}

// NewPairCounter returns a counter accepting both Newton3 modes.
func NewPairCounter(cutoff float64) *PairCounter {
	return &PairCounter{
		cutoffSq: cutoff * cutoff,
		newton3:  true,
		noN3:     true,
		calls:    map[Pair]int{},
		owned:    map[int64]bool{},
	}
}

// WithNewton3Modes restricts the modes the counter reports as supported.
func (c *PairCounter) WithNewton3Modes(newton3, nonNewton3 bool) *PairCounter {
	c.newton3, c.noN3 = newton3, nonNewton3
	return c
}

func (c *PairCounter) record(ida, idb int64, sa, sb sim.OwnershipState, dr2 float64) {
	if sa == sim.Dummy || sb == sim.Dummy || (sa == sim.Halo && sb == sim.Halo) {
		return
	}
	if dr2 > c.cutoffSq {
		return
	}
	c.mu.Lock()
	c.calls[makePair(ida, idb)]++
	c.owned[ida] = c.owned[ida] || sa == sim.Owned
	c.owned[idb] = c.owned[idb] || sb == sim.Owned
	c.mu.Unlock()
}

func (c *PairCounter) AoSFunctor(i, j *sim.Particle, _ bool) {
	c.record(i.ID, j.ID, i.Ownership, j.Ownership, r3.Norm2(r3.Sub(i.R, j.R)))
}

func (c *PairCounter) soa(a *sim.SoA, i int, b *sim.SoA, j int) {
	c.record(a.ID[i], b.ID[j], a.Ownership[i], b.Ownership[j], soaDistanceSquared(a, i, b, j))
}

func (c *PairCounter) SoAFunctorSingle(soa *sim.SoA, newton3 bool) {
	for i := 0; i < soa.Len(); i++ {
		for j := 0; j < soa.Len(); j++ {
			if j == i || (newton3 && j < i) {
				continue
			}
			c.soa(soa, i, soa, j)
		}
	}
}

func (c *PairCounter) SoAFunctorPair(soa1, soa2 *sim.SoA, _ bool) {
	for i := 0; i < soa1.Len(); i++ {
		for j := 0; j < soa2.Len(); j++ {
			c.soa(soa1, i, soa2, j)
		}
	}
}

func (c *PairCounter) SoAFunctorVerlet(soa *sim.SoA, index int, neighbors []int, _ bool) {
	for _, j := range neighbors {
		c.soa(soa, index, soa, j)
	}
}

func (c *PairCounter) AllowsNewton3() bool    { return c.newton3 }
func (c *PairCounter) AllowsNonNewton3() bool { return c.noN3 }

func (c *PairCounter) IsAppropriateClusterSize(int, sim.DataLayoutOption) bool { return true }

// Pairs returns the distinct pairs seen.
func (c *PairCounter) Pairs() map[Pair]bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[Pair]bool, len(c.calls))
	for p := range c.calls {
		out[p] = true
	}
	return out
}

// Calls returns how often each pair was seen.
func (c *PairCounter) Calls() map[Pair]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[Pair]int, len(c.calls))
	for p, n := range c.calls {
		out[p] = n
	}
	return out
}

// BothOwned reports whether both particles of p were seen as owned.
func (c *PairCounter) BothOwned(p Pair) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.owned[p.Lo] && c.owned[p.Hi]
}

// Reset forgets all recorded pairs.
func (c *PairCounter) Reset() {
	c.mu.Lock()
	c.calls = map[Pair]int{}
	c.owned = map[int64]bool{}
	c.mu.Unlock()
}

// Package functor provides pairwise interaction kernels: a Lennard-Jones
// force functor and two instrumentation functors used by tests and the
// flop-rate report.
package functor

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/mdtune/mdtune/sim"
)

// LJ is the 12-6 Lennard-Jones force between equal particles, truncated at
// Cutoff. When Globals is set it also sums the potential energy and virial of
// owned particles.
type LJ struct {
	Epsilon float64
	Sigma   float64
	Cutoff  float64
	// Shift subtracts the potential at the cutoff so energy is continuous.
	Shift   bool
	Globals bool

	cutoffSq float64
	eps24    float64
	sigmaSq  float64
	shift6   float64

	mu     sync.Mutex
	upot   float64
	virial float64
}

// NewLJ returns a Lennard-Jones functor.
func NewLJ(epsilon, sigma, cutoff float64) *LJ {
	f := &LJ{Epsilon: epsilon, Sigma: sigma, Cutoff: cutoff}
	f.precompute()
	return f
}

func (f *LJ) precompute() {
	f.cutoffSq = f.Cutoff * f.Cutoff
	f.eps24 = 24 * f.Epsilon
	f.sigmaSq = f.Sigma * f.Sigma
	if f.Shift {
		lj6 := math.Pow(f.sigmaSq/f.cutoffSq, 3)
		f.shift6 = 6 * (lj6*lj6 - lj6)
	}
}

// kernel returns the scalar force factor and the pair potential for squared
// distance dr2. ok is false beyond the cutoff.
func (f *LJ) kernel(dr2 float64) (fac, upot float64, ok bool) {
	if dr2 > f.cutoffSq || dr2 == 0 {
		return 0, 0, false
	}
	invdr2 := 1 / dr2
	lj2 := f.sigmaSq * invdr2
	lj6 := lj2 * lj2 * lj2
	lj12 := lj6 * lj6
	fac = f.eps24 * (lj12 + lj12 - lj6) * invdr2
	if f.Globals {
		upot = f.eps24*(lj12-lj6)/6 - f.eps24*f.shift6/36
	}
	return fac, upot, true
}

// accumulate adds a pair's energy and virial, weighted by how many of its
// particles are owned and receive the force in this call.
func (f *LJ) accumulate(upot float64, dr r3.Vec, fr r3.Vec, weight float64) {
	if weight == 0 {
		return
	}
	f.mu.Lock()
	f.upot += upot * weight
	f.virial += r3.Dot(dr, fr) * weight
	f.mu.Unlock()
}

func ownedWeight(i, j sim.OwnershipState, newton3 bool) float64 {
	w := 0.0
	if i == sim.Owned {
		w += 0.5
	}
	if newton3 && j == sim.Owned {
		w += 0.5
	}
	return w
}

func (f *LJ) AoSFunctor(i, j *sim.Particle, newton3 bool) {
	if i.IsDummy() || j.IsDummy() {
		return
	}
	dr := r3.Sub(i.R, j.R)
	fac, upot, ok := f.kernel(r3.Norm2(dr))
	if !ok {
		return
	}
	fr := r3.Scale(fac, dr)
	i.AddF(fr)
	if newton3 {
		j.SubF(fr)
	}
	if f.Globals {
		f.accumulate(upot, dr, fr, ownedWeight(i.Ownership, j.Ownership, newton3))
	}
}

func (f *LJ) soaPair(a *sim.SoA, i int, b *sim.SoA, j int, newton3 bool) {
	if a.Ownership[i] == sim.Dummy || b.Ownership[j] == sim.Dummy {
		return
	}
	dr := r3.Vec{X: a.X[i] - b.X[j], Y: a.Y[i] - b.Y[j], Z: a.Z[i] - b.Z[j]}
	fac, upot, ok := f.kernel(r3.Norm2(dr))
	if !ok {
		return
	}
	fx, fy, fz := dr.X*fac, dr.Y*fac, dr.Z*fac
	a.FX[i] += fx
	a.FY[i] += fy
	a.FZ[i] += fz
	if newton3 {
		b.FX[j] -= fx
		b.FY[j] -= fy
		b.FZ[j] -= fz
	}
	if f.Globals {
		f.accumulate(upot, dr, r3.Vec{X: fx, Y: fy, Z: fz}, ownedWeight(a.Ownership[i], b.Ownership[j], newton3))
	}
}

func (f *LJ) SoAFunctorSingle(soa *sim.SoA, newton3 bool) {
	n := soa.Len()
	for i := 0; i < n; i++ {
		if newton3 {
			for j := i + 1; j < n; j++ {
				f.soaPair(soa, i, soa, j, true)
			}
			continue
		}
		for j := 0; j < n; j++ {
			if i != j {
				f.soaPair(soa, i, soa, j, false)
			}
		}
	}
}

func (f *LJ) SoAFunctorPair(soa1, soa2 *sim.SoA, newton3 bool) {
	for i := 0; i < soa1.Len(); i++ {
		for j := 0; j < soa2.Len(); j++ {
			f.soaPair(soa1, i, soa2, j, newton3)
		}
	}
}

func (f *LJ) SoAFunctorVerlet(soa *sim.SoA, index int, neighbors []int, newton3 bool) {
	for _, j := range neighbors {
		f.soaPair(soa, index, soa, j, newton3)
	}
}

func (f *LJ) AllowsNewton3() bool    { return true }
func (f *LJ) AllowsNonNewton3() bool { return true }

func (f *LJ) IsAppropriateClusterSize(clusterSize int, _ sim.DataLayoutOption) bool {
	return clusterSize > 0
}

// ResetGlobals zeroes the energy and virial sums.
func (f *LJ) ResetGlobals() {
	f.mu.Lock()
	f.upot, f.virial = 0, 0
	f.mu.Unlock()
}

// PotentialEnergy returns the summed potential energy of owned particles.
func (f *LJ) PotentialEnergy() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.upot
}

// Virial returns the summed virial of owned particles.
func (f *LJ) Virial() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.virial
}

// WithGlobals enables energy and virial accumulation and returns f.
func (f *LJ) WithGlobals(shift bool) *LJ {
	f.Globals = true
	f.Shift = shift
	f.precompute()
	return f
}

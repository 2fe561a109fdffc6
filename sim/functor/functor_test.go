package functor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/mdtune/mdtune/sim"
)

func particlesAt(xs ...float64) []sim.Particle {
	out := make([]sim.Particle, len(xs))
	for i, x := range xs {
		out[i] = sim.NewParticle(int64(i), r3.Vec{X: x}, r3.Vec{})
	}
	return out
}

func TestLJ_AoSNewton3AppliesEqualAndOpposite(t *testing.T) {
	// GIVEN two particles one sigma apart
	f := NewLJ(1, 1, 2.5)
	ps := particlesAt(0, 1)

	// WHEN the pair is evaluated with newton3
	f.AoSFunctor(&ps[0], &ps[1], true)

	// THEN forces are repulsive and opposite
	assert.Less(t, ps[0].F.X, 0.0)
	assert.InDelta(t, -ps[0].F.X, ps[1].F.X, 1e-12)
	// 24*(2-1)/1 = 24 at r = sigma
	assert.InDelta(t, -24.0, ps[0].F.X, 1e-12)
}

func TestLJ_NonNewton3UpdatesFirstOnly(t *testing.T) {
	f := NewLJ(1, 1, 2.5)
	ps := particlesAt(0, 1.2)
	f.AoSFunctor(&ps[0], &ps[1], false)
	assert.NotZero(t, ps[0].F.X)
	assert.Zero(t, ps[1].F.X)
}

func TestLJ_IgnoresPairsBeyondCutoffAndDummies(t *testing.T) {
	tests := []struct {
		name  string
		x     float64
		dummy bool
	}{
		{"beyond cutoff", 2.6, false},
		{"dummy partner", 1.1, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := NewLJ(1, 1, 2.5)
			ps := particlesAt(0, tc.x)
			if tc.dummy {
				ps[1].Ownership = sim.Dummy
			}
			f.AoSFunctor(&ps[0], &ps[1], true)
			assert.Equal(t, r3.Vec{}, ps[0].F)
			assert.Equal(t, r3.Vec{}, ps[1].F)
		})
	}
}

func TestLJ_SoAMatchesAoS(t *testing.T) {
	for _, newton3 := range []bool{true, false} {
		// GIVEN the same particle row in both layouts
		f := NewLJ(1, 1, 2.5)
		aos := particlesAt(0, 1.1, 2.3, 3.0, 3.9)
		var soa sim.SoA
		soaParticles := particlesAt(0, 1.1, 2.3, 3.0, 3.9)
		soa.Load(soaParticles)

		// WHEN all pairs are evaluated
		for i := range aos {
			for j := range aos {
				if i == j || (newton3 && j < i) {
					continue
				}
				f.AoSFunctor(&aos[i], &aos[j], newton3)
			}
		}
		f.SoAFunctorSingle(&soa, newton3)
		soa.Extract(soaParticles)

		// THEN forces agree
		for i := range aos {
			assert.InDelta(t, aos[i].F.X, soaParticles[i].F.X, 1e-9, "newton3=%t particle %d", newton3, i)
		}
	}
}

func TestLJ_SoAPairAndVerletMatchSingle(t *testing.T) {
	f := NewLJ(1, 1, 2.5)
	all := particlesAt(0, 1.1, 2.3, 3.0)
	var single sim.SoA
	single.Load(all)
	f.SoAFunctorSingle(&single, true)

	var a, b sim.SoA
	a.Load(all[:2])
	b.Load(all[2:])
	f.SoAFunctorSingle(&a, true)
	f.SoAFunctorSingle(&b, true)
	f.SoAFunctorPair(&a, &b, true)

	var verlet sim.SoA
	verlet.Load(all)
	f.SoAFunctorVerlet(&verlet, 0, []int{1, 2, 3}, true)
	f.SoAFunctorVerlet(&verlet, 1, []int{2, 3}, true)
	f.SoAFunctorVerlet(&verlet, 2, []int{3}, true)

	for i := 0; i < 4; i++ {
		var got float64
		if i < 2 {
			got = a.FX[i]
		} else {
			got = b.FX[i-2]
		}
		assert.InDelta(t, single.FX[i], got, 1e-9)
		assert.InDelta(t, single.FX[i], verlet.FX[i], 1e-9)
	}
}

func TestLJ_GlobalsIndependentOfNewton3(t *testing.T) {
	// GIVEN an owned pair and an owned-halo pair
	ps := particlesAt(0, 1.1, -1.0)
	ps[2].Ownership = sim.Halo

	n3 := NewLJ(1, 1, 2.5).WithGlobals(true)
	n3.AoSFunctor(&ps[0], &ps[1], true)
	n3.AoSFunctor(&ps[0], &ps[2], true)

	noN3 := NewLJ(1, 1, 2.5).WithGlobals(true)
	noN3.AoSFunctor(&ps[0], &ps[1], false)
	noN3.AoSFunctor(&ps[1], &ps[0], false)
	noN3.AoSFunctor(&ps[0], &ps[2], false)
	noN3.AoSFunctor(&ps[2], &ps[0], false)

	// THEN both modes report the same energy and virial
	assert.InDelta(t, n3.PotentialEnergy(), noN3.PotentialEnergy(), 1e-12)
	assert.InDelta(t, n3.Virial(), noN3.Virial(), 1e-12)
	assert.NotZero(t, n3.PotentialEnergy())

	n3.ResetGlobals()
	assert.Zero(t, n3.PotentialEnergy())
}

func TestLJ_ShiftedPotentialVanishesAtCutoff(t *testing.T) {
	f := NewLJ(1, 1, 2.5).WithGlobals(true)
	ps := particlesAt(0, 2.5)
	f.AoSFunctor(&ps[0], &ps[1], true)
	assert.InDelta(t, 0, f.PotentialEnergy(), 1e-12)
}

func TestFlopCounter_CountsDistancesAndKernelCalls(t *testing.T) {
	// GIVEN particles at 0, 1 and 3 with cutoff 1.5
	f := NewFlopCounter(1.5)
	var soa sim.SoA
	soa.Load(particlesAt(0, 1, 3))

	// WHEN all pairs are evaluated once
	f.SoAFunctorSingle(&soa, true)

	// THEN three distances and one hit are counted
	assert.Equal(t, int64(3), f.DistanceCalculations())
	assert.Equal(t, int64(1), f.KernelCalls())
	assert.Equal(t, int64(3*FlopsPerDistanceCalculation+FlopsPerKernelCall), f.Flops())
	assert.InDelta(t, 1.0/3, f.HitRate(), 1e-12)
	assert.True(t, f.IsAppropriateClusterSize(4, sim.AoS))
	assert.False(t, f.IsAppropriateClusterSize(4, sim.SoALayout))
}

func TestPairCounter_IgnoresHaloHaloAndDuplicatesByID(t *testing.T) {
	c := NewPairCounter(2)
	ps := particlesAt(0, 1, 1.5)
	ps[1].Ownership = sim.Halo
	ps[2].Ownership = sim.Halo

	c.AoSFunctor(&ps[0], &ps[1], false)
	c.AoSFunctor(&ps[1], &ps[0], false)
	c.AoSFunctor(&ps[1], &ps[2], false)

	require.Len(t, c.Pairs(), 1)
	assert.Equal(t, 2, c.Calls()[Pair{Lo: 0, Hi: 1}])
	assert.False(t, c.BothOwned(Pair{Lo: 0, Hi: 1}))

	c.Reset()
	assert.Empty(t, c.Pairs())
}

func TestPairCounter_Newton3Modes(t *testing.T) {
	c := NewPairCounter(1).WithNewton3Modes(false, true)
	assert.False(t, sim.AllowsNewton3Mode(c, sim.Newton3Enabled))
	assert.True(t, sim.AllowsNewton3Mode(c, sim.Newton3Disabled))
}

package cmd

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/mdtune/mdtune/sim"
	"github.com/mdtune/mdtune/sim/autotuner"
	"github.com/mdtune/mdtune/sim/container"
	"github.com/mdtune/mdtune/sim/functor"
	"github.com/mdtune/mdtune/sim/generator"
	"github.com/mdtune/mdtune/sim/tuning"
)

type ownerPair struct{ lo, hi int64 }

// periodicPairs is the brute force set of owned pairs within cutoff under
// the minimum image convention.
func periodicPairs(owned []sim.Particle, size r3.Vec, cutoff float64) map[ownerPair]bool {
	minImage := func(d, l float64) float64 { return d - l*math.Round(d/l) }
	out := map[ownerPair]bool{}
	for i := range owned {
		for j := i + 1; j < len(owned); j++ {
			d := r3.Sub(owned[i].R, owned[j].R)
			d = r3.Vec{X: minImage(d.X, size.X), Y: minImage(d.Y, size.Y), Z: minImage(d.Z, size.Z)}
			if r3.Norm2(d) <= cutoff*cutoff {
				lo, hi := owned[i].ID, owned[j].ID
				out[ownerPair{min(lo, hi), max(lo, hi)}] = true
			}
		}
	}
	return out
}

func TestDriver_PeriodicPairsSurviveDriftBetweenRebuilds(t *testing.T) {
	// GIVEN verlet lists rebuilt every eight steps and a drift that keeps
	// every particle within skin/2 of its rebuild position
	params := container.Params{
		BoxMax: r3.Vec{X: 6, Y: 6, Z: 6},
		Cutoff: 1.5,
		Skin:   0.3,
	}
	rebuildFrequency := 8
	maxStep := 0.01
	require.NoError(t, checkDrift(maxStep, params.Skin, rebuildFrequency))

	cfg := sim.NewConfiguration(sim.VerletLists, 1, sim.VLListIteration, sim.AoS, sim.Newton3Enabled)
	strategy, err := tuning.NewFullSearch([]sim.Configuration{cfg})
	require.NoError(t, err)
	counter := functor.NewPairCounter(params.Cutoff)
	at, err := autotuner.New(autotuner.Config{TuningInterval: 100, NumSamples: 1, RebuildFrequency: rebuildFrequency},
		params, strategy, counter)
	require.NoError(t, err)
	owned := generator.Uniform(rand.New(rand.NewSource(11)), 150, params.BoxMin, params.BoxMax, 0)
	d, err := newDriver(at, params, owned, rand.New(rand.NewSource(12)), maxStep)
	require.NoError(t, err)

	size := r3.Sub(params.BoxMax, params.BoxMin)
	owner := func(id int64) int64 {
		if id < d.haloBase {
			return id
		}
		o, _ := generator.HaloImageSource(d.haloBase, id)
		return o
	}
	for step := 0; step < 20; step++ {
		var before []sim.Particle
		at.ForEach(sim.OwnedOnly, func(p *sim.Particle) { before = append(before, *p) })
		want := periodicPairs(before, size, params.Cutoff)

		// WHEN the driver takes a step
		counter.Reset()
		require.NoError(t, d.step())

		// THEN every periodic pair was seen through an owned or halo copy
		got := map[ownerPair]bool{}
		for p := range counter.Pairs() {
			a, b := owner(p.Lo), owner(p.Hi)
			if a != b {
				got[ownerPair{min(a, b), max(a, b)}] = true
			}
		}
		assert.Equal(t, want, got, "step %d", step)
	}
}

package autotuner

import (
	"math/rand"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/mdtune/mdtune/sim"
	"github.com/mdtune/mdtune/sim/container"
	"github.com/mdtune/mdtune/sim/functor"
	"github.com/mdtune/mdtune/sim/generator"
	"github.com/mdtune/mdtune/sim/trace"
	"github.com/mdtune/mdtune/sim/tuning"
)

var box = container.Params{
	BoxMin: r3.Vec{},
	BoxMax: r3.Vec{X: 6, Y: 6, Z: 6},
	Cutoff: 1.5,
	Skin:   0.3,
}

// fakeClock advances by cost() between the two reads around each pass.
type fakeClock struct {
	t     time.Time
	calls int
	cost  func() time.Duration
}

func (c *fakeClock) now() time.Time {
	c.calls++
	if c.calls%2 == 0 {
		c.t = c.t.Add(c.cost())
	}
	return c.t
}

func space(t *testing.T, opts sim.SearchSpaceOptions) []sim.Configuration {
	t.Helper()
	s, err := sim.PopulateSearchSpace(opts)
	require.NoError(t, err)
	return s
}

// linkedCellsSpace has 8 configurations, 2 of which (c01 with newton3)
// are never applicable.
func linkedCellsSpace(t *testing.T) []sim.Configuration {
	return space(t, sim.SearchSpaceOptions{
		Containers:      []sim.ContainerOption{sim.LinkedCells},
		CellSizeFactors: []float64{1},
		Traversals:      []sim.TraversalOption{sim.LCC08, sim.LCC01},
		DataLayouts:     sim.AllDataLayoutOptions(),
		Newton3:         sim.AllNewton3Options(),
	})
}

func addUniform(t *testing.T, at *AutoTuner, n int) {
	t.Helper()
	rng := rand.New(rand.NewSource(3))
	for _, p := range generator.Uniform(rng, n, box.BoxMin, box.BoxMax, 0) {
		require.NoError(t, at.AddParticle(p))
	}
}

func TestAutoTuner_ConvergesToFastestConfiguration(t *testing.T) {
	// GIVEN a full search where one configuration is ten times faster
	configs := linkedCellsSpace(t)
	target := sim.NewConfiguration(sim.LinkedCells, 1, sim.LCC08, sim.SoALayout, sim.Newton3Enabled)
	strategy, err := tuning.NewFullSearch(configs)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	tt := trace.NewTuningTrace(trace.TraceConfig{Level: trace.TraceLevelSamples})
	var at *AutoTuner
	clock := &fakeClock{cost: func() time.Duration {
		if at.Configuration() == target {
			return 10 * time.Microsecond
		}
		return 100 * time.Microsecond
	}}
	cfg := Config{TuningInterval: 10, NumSamples: 2, Selector: "fastest-abs", RebuildFrequency: 5}
	at, err = New(cfg, box, strategy, functor.NewLJ(1, 1, box.Cutoff),
		WithMetrics(metrics), WithTrace(tt), WithClock(clock.now))
	require.NoError(t, err)
	addUniform(t, at, 40)
	require.True(t, at.IsTuning())

	// WHEN iterating until the phase ends
	iterations := 0
	for at.IsTuning() && iterations < 100 {
		require.NoError(t, at.IteratePairwise())
		iterations++
	}

	// THEN the fast configuration is selected after two samples of each
	// applicable configuration
	require.False(t, at.IsTuning())
	assert.Equal(t, target, at.Configuration())
	assert.Equal(t, 1, at.Phases())
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.invalidConfigs))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.tuningPhases))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.selected.WithLabelValues("linked-cells", "1", "lc-c08", "soa", "enabled")))

	require.Len(t, tt.Phases, 1)
	phase := tt.Phases[0]
	assert.Equal(t, target.String(), phase.Selected)
	assert.Equal(t, int64(10000), phase.SelectedTimeNs)
	assert.Equal(t, 2, phase.InvalidCount)
	assert.Len(t, phase.Candidates, 6)
	assert.Equal(t, target.String(), phase.Candidates[0].Configuration)

	valid, invalid := 0, 0
	for _, s := range tt.Samples {
		if s.Invalid {
			invalid++
		} else {
			valid++
		}
	}
	assert.Equal(t, 12, valid)
	assert.Equal(t, 2, invalid)

	assert.Equal(t, uint64(12), passes(t, reg, "tuning"))

	// AND the next phase starts after the tuning interval of steady passes
	for !at.IsTuning() && iterations < 100 {
		assert.Equal(t, target, at.Configuration())
		require.NoError(t, at.IteratePairwise())
		iterations++
	}
	assert.True(t, at.IsTuning())
	assert.Equal(t, uint64(cfg.TuningInterval), passes(t, reg, "steady"))
}

// passes returns the number of timed passes recorded in mode.
func passes(t *testing.T, reg *prometheus.Registry, mode string) uint64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != "mdtune_iteration_duration_seconds" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "mode" && l.GetValue() == mode {
					return m.GetHistogram().GetSampleCount()
				}
			}
		}
	}
	return 0
}

func TestAutoTuner_PrunesNewton3ModesTheFunctorRejects(t *testing.T) {
	// GIVEN a functor that only supports newton3 disabled
	strategy, err := tuning.NewFullSearch(linkedCellsSpace(t))
	require.NoError(t, err)
	f := functor.NewPairCounter(box.Cutoff).WithNewton3Modes(false, true)
	tt := trace.NewTuningTrace(trace.TraceConfig{Level: trace.TraceLevelPhases})

	// WHEN a phase runs
	at, err := New(Config{TuningInterval: 10, NumSamples: 1, RebuildFrequency: 5}, box, strategy, f, WithTrace(tt))
	require.NoError(t, err)
	addUniform(t, at, 20)
	for i := 0; i < 4; i++ {
		assert.Equal(t, sim.Newton3Disabled, at.Configuration().Newton3)
		require.NoError(t, at.IteratePairwise())
	}

	// THEN the four newton3-off configurations were tested and none rejected
	assert.False(t, at.IsTuning())
	require.Len(t, tt.Phases, 1)
	assert.Len(t, tt.Phases[0].Candidates, 4)
	assert.Zero(t, tt.Phases[0].InvalidCount)
	assert.Empty(t, tt.Samples, "phases level records no samples")
}

func TestAutoTuner_FunctorSupportingNoModeFails(t *testing.T) {
	strategy, err := tuning.NewFullSearch(linkedCellsSpace(t))
	require.NoError(t, err)
	_, err = New(DefaultConfig(), box, strategy, functor.NewPairCounter(box.Cutoff).WithNewton3Modes(false, false))
	assert.ErrorIs(t, err, sim.ErrSearchSpaceEmpty)
}

func TestAutoTuner_ContainerSwitchesPreserveParticlesAndPairs(t *testing.T) {
	// GIVEN one configuration per container kind
	configs := space(t, sim.SearchSpaceOptions{
		Containers:      []sim.ContainerOption{sim.DirectSum, sim.LinkedCells, sim.VerletLists},
		CellSizeFactors: []float64{1},
		Traversals:      []sim.TraversalOption{sim.DSSequential, sim.LCC08, sim.VLListIteration},
		DataLayouts:     []sim.DataLayoutOption{sim.AoS},
		Newton3:         []sim.Newton3Option{sim.Newton3Disabled},
	})
	require.Len(t, configs, 3)
	strategy, err := tuning.NewFullSearch(configs)
	require.NoError(t, err)
	f := functor.NewPairCounter(box.Cutoff)
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	at, err := New(Config{TuningInterval: 5, NumSamples: 1, RebuildFrequency: 5}, box, strategy, f, WithMetrics(metrics))
	require.NoError(t, err)
	addUniform(t, at, 60)

	// WHEN every container takes a pass
	var kinds []sim.ContainerOption
	var pairs []int
	for i := 0; i < 3; i++ {
		f.Reset()
		require.NoError(t, at.IteratePairwise())
		kinds = append(kinds, at.Container().Kind())
		pairs = append(pairs, len(f.Pairs()))
		assert.Equal(t, 60, at.NumParticles())
	}

	// THEN all of them found the same pairs
	assert.Equal(t, []sim.ContainerOption{sim.DirectSum, sim.LinkedCells, sim.VerletLists}, kinds)
	assert.Greater(t, pairs[0], 0)
	assert.Equal(t, []int{pairs[0], pairs[0], pairs[0]}, pairs)
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.containerSwitches))
	assert.GreaterOrEqual(t, testutil.ToFloat64(metrics.rebuilds), 3.0)
	assert.Equal(t, 60.0, testutil.ToFloat64(metrics.particles))
}

func TestAutoTuner_TrivialSpaceNeverTunes(t *testing.T) {
	configs := linkedCellsSpace(t)[:1]
	strategy, err := tuning.NewFullSearch(configs)
	require.NoError(t, err)
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	at, err := New(Config{TuningInterval: 3, NumSamples: 2, RebuildFrequency: 4}, box, strategy,
		functor.NewLJ(1, 1, box.Cutoff), WithMetrics(metrics))
	require.NoError(t, err)
	addUniform(t, at, 10)

	for i := 0; i < 20; i++ {
		assert.False(t, at.IsTuning())
		require.NoError(t, at.IteratePairwise())
	}
	assert.Equal(t, 20, at.Iteration())
	assert.Zero(t, at.Phases())
	assert.Zero(t, testutil.ToFloat64(metrics.tuningPhases))
	// a rebuild every four passes
	assert.Equal(t, 5.0, testutil.ToFloat64(metrics.rebuilds))
}

func TestAutoTuner_InapplicableSelectionFailsOutsideTuning(t *testing.T) {
	// GIVEN only c01 with newton3, which never applies
	configs := space(t, sim.SearchSpaceOptions{
		Containers:      []sim.ContainerOption{sim.LinkedCells},
		CellSizeFactors: []float64{1},
		Traversals:      []sim.TraversalOption{sim.LCC01},
		DataLayouts:     []sim.DataLayoutOption{sim.AoS},
		Newton3:         []sim.Newton3Option{sim.Newton3Enabled},
	})
	strategy, err := tuning.NewFullSearch(configs)
	require.NoError(t, err)
	at, err := New(DefaultConfig(), box, strategy, functor.NewLJ(1, 1, box.Cutoff))
	require.NoError(t, err)

	err = at.IteratePairwise()
	assert.ErrorIs(t, err, sim.ErrInvalidConfiguration)
}

func TestAutoTuner_UpdateContainer(t *testing.T) {
	// GIVEN a trivial space rebuilding every three passes
	strategy, err := tuning.NewFullSearch(linkedCellsSpace(t)[:1])
	require.NoError(t, err)
	at, err := New(Config{TuningInterval: 10, NumSamples: 1, RebuildFrequency: 3}, box, strategy,
		functor.NewLJ(1, 1, box.Cutoff))
	require.NoError(t, err)
	require.NoError(t, at.AddParticle(sim.NewParticle(1, r3.Vec{X: 5.95, Y: 3, Z: 3}, r3.Vec{})))
	require.NoError(t, at.AddParticle(sim.NewParticle(2, r3.Vec{X: 3, Y: 3, Z: 3}, r3.Vec{})))
	require.NoError(t, at.IteratePairwise())

	// WHEN a particle drifts out and a halo particle is added between rebuilds
	at.ForEach(sim.OwnedOnly, func(p *sim.Particle) {
		if p.ID == 1 {
			p.R.X = 6.05
		}
	})
	halo := sim.Particle{ID: 3, R: r3.Vec{X: -0.5, Y: 3, Z: 3}, Ownership: sim.Halo}
	require.NoError(t, at.AddHaloParticle(halo))
	leaving, err := at.UpdateContainer()

	// THEN nothing is re-binned and the halo particle stays
	require.NoError(t, err)
	assert.Empty(t, leaving)
	assert.Equal(t, 3, at.NumParticles())

	// AND once a rebuild is due the drifted particle leaves
	require.NoError(t, at.IteratePairwise())
	require.NoError(t, at.IteratePairwise())
	leaving, err = at.UpdateContainer()
	require.NoError(t, err)
	require.Len(t, leaving, 1)
	assert.Equal(t, int64(1), leaving[0].ID)
	assert.Equal(t, 1, at.NumParticles())
}

// advance prepares the next pass the way a periodic driver does: leaving
// particles and a fresh halo on rebuild steps, in-place halo moves otherwise.
func advance(t *testing.T, at *AutoTuner, haloBase int64) {
	t.Helper()
	if !at.RebuildDue() {
		leaving, err := at.UpdateContainer()
		require.NoError(t, err)
		require.Empty(t, leaving)
		generator.RefreshHalo(at.ForEach, box.BoxMin, box.BoxMax, haloBase)
		return
	}
	leaving, err := at.UpdateContainer()
	require.NoError(t, err)
	for _, p := range leaving {
		p.R = generator.Wrap(p.R, box.BoxMin, box.BoxMax)
		require.NoError(t, at.AddParticle(p))
	}
	addHalo(t, at, haloBase)
}

func addHalo(t *testing.T, at *AutoTuner, haloBase int64) {
	t.Helper()
	var owned []sim.Particle
	at.ForEach(sim.OwnedOnly, func(p *sim.Particle) { owned = append(owned, *p) })
	for _, h := range generator.PeriodicHalo(owned, box.BoxMin, box.BoxMax, box.InteractionLength(), haloBase) {
		require.NoError(t, at.AddHaloParticle(h))
	}
}

func TestAutoTuner_HaloRefreshKeepsRebuildCadence(t *testing.T) {
	tests := []struct {
		traversal sim.TraversalOption
		newton3   sim.Newton3Option
	}{
		{sim.DSSequential, sim.Newton3Enabled},
		{sim.LCC08, sim.Newton3Enabled},
		{sim.VLListIteration, sim.Newton3Enabled},
		{sim.VCLClusterIteration, sim.Newton3Disabled},
		{sim.OTC18, sim.Newton3Enabled},
	}
	for _, tc := range tests {
		kind := sim.ContainerOf(tc.traversal)
		t.Run(kind.String(), func(t *testing.T) {
			// GIVEN one configuration rebuilding every four passes and a
			// periodic halo
			cfg := sim.NewConfiguration(kind, 1, tc.traversal, sim.AoS, tc.newton3)
			strategy, err := tuning.NewFullSearch([]sim.Configuration{cfg})
			require.NoError(t, err)
			metrics := NewMetrics(prometheus.NewRegistry())
			at, err := New(Config{TuningInterval: 10, NumSamples: 1, RebuildFrequency: 4}, box, strategy,
				functor.NewPairCounter(box.Cutoff), WithMetrics(metrics))
			require.NoError(t, err)
			const n = 100
			addUniform(t, at, n)
			addHalo(t, at, n)

			for pass := 0; pass < 8; pass++ {
				require.NoError(t, at.IteratePairwise())
				switch pass {
				case 0:
					// WHEN one particle moves further than skin/2 right after
					// the first rebuild
					at.ForEach(sim.OwnedOnly, func(p *sim.Particle) {
						if p.ID == 0 {
							p.R.X += 0.6 * box.Skin * sign(3-p.R.X)
						}
					})
				case 1:
					// THEN the next pass still ran on the old structures
					assert.False(t, at.Container().CheckNeighborListsAreValid(), "rebuilt before the cadence")
				case 4:
					assert.True(t, at.Container().CheckNeighborListsAreValid(), "rebuilt on the cadence")
				}
				advance(t, at, n)
			}

			// AND exactly the cadence rebuilds happened over eight passes
			assert.Equal(t, 2.0, testutil.ToFloat64(metrics.rebuilds))
			assert.Equal(t, 0.0, testutil.ToFloat64(metrics.containerSwitches))
		})
	}
}

func sign(x float64) float64 {
	if x < 0 {
		return -1
	}
	return 1
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	strategy, err := tuning.NewFullSearch(linkedCellsSpace(t))
	require.NoError(t, err)
	_, err = New(Config{}, box, strategy, functor.NewLJ(1, 1, box.Cutoff))
	assert.Error(t, err)
}

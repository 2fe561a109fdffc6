package tuning

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mdtune/mdtune/sim"
)

// fourConfigs is linked cells with c08 in both layouts and Newton3 modes.
func fourConfigs(t *testing.T) []sim.Configuration {
	t.Helper()
	space, err := sim.PopulateSearchSpace(sim.SearchSpaceOptions{
		Containers:      []sim.ContainerOption{sim.LinkedCells},
		CellSizeFactors: []float64{1},
		Traversals:      []sim.TraversalOption{sim.LCC08},
		DataLayouts:     sim.AllDataLayoutOptions(),
		Newton3:         sim.AllNewton3Options(),
	})
	require.NoError(t, err)
	require.Len(t, space, 4)
	return space
}

func TestPredictiveTuning_BootstrapThenNearOptimumThenStale(t *testing.T) {
	// GIVEN the default space where one configuration is 100x faster
	space := defaultSpace(t)
	target := space[7]
	p, err := NewPredictiveTuning(space, DefaultPredictiveConfig())
	require.NoError(t, err)
	timeOf := oracle(space, target)

	// WHEN nine phases run
	var perPhase []int
	it := 0
	for phase := 0; phase < 9; phase++ {
		if phase > 0 {
			require.NoError(t, p.Reset(it))
		}
		perPhase = append(perPhase, len(runPhase(t, p, timeOf, &it)))
		assert.Equal(t, target, p.CurrentConfiguration(), "phase %d", phase)
	}

	// THEN the first two phases test everything, later phases only the
	// optimum, until the others have gone untested for more than five phases
	n := len(space)
	assert.Equal(t, []int{n, n, 1, 1, 1, 1, 1, n, 1}, perPhase)
}

func TestPredictiveTuning_ReselectsWhenOptimalSetIsInvalid(t *testing.T) {
	space := fourConfigs(t)
	times := map[sim.Configuration]int64{space[0]: 100, space[1]: 110, space[2]: 500, space[3]: 1000}
	timeOf := func(c sim.Configuration) int64 { return times[c] }
	p, err := NewPredictiveTuning(space, DefaultPredictiveConfig())
	require.NoError(t, err)

	// GIVEN two bootstrap phases
	it := 0
	runPhase(t, p, timeOf, &it)
	require.NoError(t, p.Reset(it))
	runPhase(t, p, timeOf, &it)
	require.NoError(t, p.Reset(it))

	// WHEN both near-optimal configurations turn out invalid
	assert.Equal(t, space[0], p.CurrentConfiguration())
	more, err := p.Tune(true)
	require.NoError(t, err)
	require.True(t, more)
	assert.Equal(t, space[1], p.CurrentConfiguration())
	more, err = p.Tune(true)
	require.NoError(t, err)
	require.True(t, more)

	// THEN the next best prediction is tested and selected
	assert.Equal(t, space[2], p.CurrentConfiguration())
	p.AddEvidence(timeOf(space[2]), it)
	more, err = p.Tune(false)
	require.NoError(t, err)
	assert.False(t, more)
	assert.Equal(t, space[2], p.CurrentConfiguration())
}

func TestPredictiveTuning_AllInvalidEmptiesSpace(t *testing.T) {
	p, err := NewPredictiveTuning(fourConfigs(t), DefaultPredictiveConfig())
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		more, err := p.Tune(true)
		require.NoError(t, err)
		require.True(t, more)
	}
	_, err = p.Tune(true)
	assert.ErrorIs(t, err, sim.ErrSearchSpaceEmpty)
}

func TestPredictiveTuning_LinePrediction(t *testing.T) {
	c := fourConfigs(t)[0]
	tests := []struct {
		name       string
		samples    []timedSample
		phaseBegin int
		want       float64
		ok         bool
	}{
		{"no samples", nil, 20, 0, false},
		{"single sample", []timedSample{{5, 40}}, 20, 40, true},
		{"rising", []timedSample{{0, 100}, {10, 200}}, 20, 300, true},
		{"uses last two", []timedSample{{0, 900}, {10, 100}, {20, 150}}, 40, 250, true},
		{"clamped", []timedSample{{0, 200}, {10, 100}}, 30, 1, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := &PredictiveTuning{history: map[sim.Configuration][]timedSample{c: tc.samples}, phaseBegin: tc.phaseBegin}
			got, ok := p.linePrediction(c)
			assert.Equal(t, tc.ok, ok)
			assert.InDelta(t, tc.want, got, 1e-9)
		})
	}
}

func TestPredictiveTuning_EvidenceIsMean(t *testing.T) {
	p, err := NewPredictiveTuning(fourConfigs(t), DefaultPredictiveConfig())
	require.NoError(t, err)
	c := p.CurrentConfiguration()
	p.AddEvidence(100, 0)
	p.AddEvidence(300, 1)

	got, ok := p.Evidence(c)
	require.True(t, ok)
	assert.Equal(t, 200.0, got)
	_, ok = p.Evidence(fourConfigs(t)[3])
	assert.False(t, ok)
}

func TestPredictiveTuning_TrivialSpace(t *testing.T) {
	space := fourConfigs(t)[:1]
	p, err := NewPredictiveTuning(space, DefaultPredictiveConfig())
	require.NoError(t, err)
	assert.True(t, p.SearchSpaceIsTrivial())
	it := 0
	for phase := 0; phase < 4; phase++ {
		assert.Len(t, runPhase(t, p, func(sim.Configuration) int64 { return 3 }, &it), 1)
		require.NoError(t, p.Reset(it))
	}
	assert.Equal(t, space[0], p.CurrentConfiguration())
}

func TestPredictiveConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultPredictiveConfig().Validate())
	assert.Error(t, PredictiveConfig{RelativeOptimumRange: 0.9}.Validate())
	assert.Error(t, PredictiveConfig{RelativeOptimumRange: 1, MaxTuningIterationsWithoutTest: -1}.Validate())
}

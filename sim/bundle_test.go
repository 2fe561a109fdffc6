package sim

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempYAML(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadTuningBundle_ValidYAML(t *testing.T) {
	yaml := `
strategy: predictive-tuning
selector: fastest-median
tuning_interval: 500
num_samples: 3
rebuild_frequency: 10
allowed:
  containers: [linked-cells, verlet-cluster-lists]
  cell_size_factors: [1, 2]
  traversals: [lc-c08, lc-sliced, vcl-cluster-iteration]
  data_layouts: [aos, soa]
  newton3: [enabled]
predictive:
  relative_optimum_range: 1.5
  max_tuning_iterations_without_test: 3
`
	bundle, err := LoadTuningBundle(writeTempYAML(t, yaml))
	require.NoError(t, err)
	require.NoError(t, bundle.Validate())

	assert.Equal(t, "predictive-tuning", bundle.Strategy)
	assert.Equal(t, "fastest-median", bundle.Selector)
	require.NotNil(t, bundle.TuningInterval)
	assert.Equal(t, 500, *bundle.TuningInterval)
	assert.Equal(t, []ContainerOption{LinkedCells, VerletClusterLists}, bundle.Allowed.Containers)
	assert.Equal(t, []TraversalOption{LCC08, LCSliced, VCLClusterIteration}, bundle.Allowed.Traversals)
	assert.Equal(t, []DataLayoutOption{AoS, SoALayout}, bundle.Allowed.DataLayouts)
	assert.Equal(t, []Newton3Option{Newton3Enabled}, bundle.Allowed.Newton3)
	require.NotNil(t, bundle.Predictive.RelativeOptimumRange)
	assert.Equal(t, 1.5, *bundle.Predictive.RelativeOptimumRange)
	assert.Nil(t, bundle.Bayesian.MaxEvidence)
}

func TestLoadTuningBundle_UnknownKeyIsRejected(t *testing.T) {
	// GIVEN a YAML file with a misspelled key
	path := writeTempYAML(t, "strategy: full-search\ntuning_intervall: 10\n")

	// WHEN loading it
	_, err := LoadTuningBundle(path)

	// THEN strict parsing reports the typo
	assert.Error(t, err)
}

func TestLoadTuningBundle_UnknownOptionName(t *testing.T) {
	path := writeTempYAML(t, "allowed:\n  containers: [linked-cellz]\n")
	_, err := LoadTuningBundle(path)
	assert.Error(t, err)
}

func TestLoadTuningBundle_MissingFile(t *testing.T) {
	_, err := LoadTuningBundle(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorContains(t, err, "reading tuning config")
}

func TestTuningBundle_Validate_Rejects(t *testing.T) {
	intPtr := func(v int) *int { return &v }
	floatPtr := func(v float64) *float64 { return &v }

	tests := []struct {
		name   string
		bundle TuningBundle
	}{
		{"unknown strategy", TuningBundle{Strategy: "simulated-annealing"}},
		{"unknown selector", TuningBundle{Selector: "fastest-mode"}},
		{"unknown acquisition", TuningBundle{Bayesian: BayesianBundle{Acquisition: "ei"}}},
		{"zero tuning interval", TuningBundle{TuningInterval: intPtr(0)}},
		{"zero samples", TuningBundle{NumSamples: intPtr(0)}},
		{"zero rebuild frequency", TuningBundle{RebuildFrequency: intPtr(0)}},
		{"small cell size factor", TuningBundle{Allowed: AllowedOptions{CellSizeFactors: []float64{0.5}}}},
		{"optimum range below one", TuningBundle{Predictive: PredictiveBundle{RelativeOptimumRange: floatPtr(0.9)}}},
		{"negative sigma", TuningBundle{Bayesian: BayesianBundle{Sigma: floatPtr(-1)}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.bundle.Validate())
		})
	}
}

func TestTuningBundle_SearchSpaceOptions_DefaultsFillEmptyLists(t *testing.T) {
	// GIVEN a bundle that only restricts containers
	b := TuningBundle{Allowed: AllowedOptions{Containers: []ContainerOption{DirectSum}}}

	// WHEN converting to search space options
	opts := b.SearchSpaceOptions()

	// THEN unset lists allow everything
	assert.Equal(t, []ContainerOption{DirectSum}, opts.Containers)
	assert.Equal(t, []float64{1}, opts.CellSizeFactors)
	assert.Equal(t, AllTraversalOptions(), opts.Traversals)
	assert.Equal(t, AllNewton3Options(), opts.Newton3)
}

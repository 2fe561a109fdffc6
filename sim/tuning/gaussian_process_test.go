package tuning

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGaussianProcess_PriorWithoutEvidence(t *testing.T) {
	gp := NewGaussianProcess(2, []float64{1}, 0.01)
	assert.Equal(t, 0.0, gp.PredictMean([]float64{3}))
	assert.Equal(t, 2.0, gp.PredictVar([]float64{3}))
}

func TestGaussianProcess_InterpolatesEvidence(t *testing.T) {
	// GIVEN two evidences with little noise
	gp := NewGaussianProcess(1, []float64{1, 1}, 1e-8)
	require.NoError(t, gp.AddEvidence([]float64{0, 0}, 0.5))
	require.NoError(t, gp.AddEvidence([]float64{3, 0}, -0.25))
	assert.Equal(t, 2, gp.NumEvidence())

	// THEN the posterior passes through them with almost no variance
	assert.InDelta(t, 0.5, gp.PredictMean([]float64{0, 0}), 1e-6)
	assert.InDelta(t, -0.25, gp.PredictMean([]float64{3, 0}), 1e-6)
	assert.InDelta(t, 0, gp.PredictVar([]float64{0, 0}), 1e-6)

	// AND far away it reverts to the prior
	assert.InDelta(t, 0, gp.PredictMean([]float64{40, 40}), 1e-9)
	assert.InDelta(t, 1, gp.PredictVar([]float64{40, 40}), 1e-9)
}

func TestGaussianProcess_AcquisitionOrdering(t *testing.T) {
	gp := NewGaussianProcess(1, []float64{0.5}, 0.001)
	require.NoError(t, gp.AddEvidence([]float64{0}, 1))
	x := []float64{1.5}
	lcb := gp.Acquisition(AcquisitionLCB, x)
	mean := gp.Acquisition(AcquisitionMean, x)
	ucb := gp.Acquisition(AcquisitionUCB, x)
	assert.Less(t, lcb, mean)
	assert.Less(t, mean, ucb)
	assert.Panics(t, func() { gp.Acquisition("pi", x) })
}

func TestGaussianProcess_ArgMinAcquisition(t *testing.T) {
	// GIVEN a high output at 0 and a low one at 4
	gp := NewGaussianProcess(1, []float64{1}, 1e-6)
	require.NoError(t, gp.AddEvidence([]float64{0}, 1))
	require.NoError(t, gp.AddEvidence([]float64{4}, -1))

	// THEN the mean is minimized at the low evidence
	samples := [][]float64{{0}, {4}, {0.1}}
	assert.Equal(t, 1, gp.ArgMinAcquisition(AcquisitionMean, samples))
}

func TestGaussianProcess_SingularCovarianceIsRejected(t *testing.T) {
	// GIVEN no noise and a repeated input
	gp := NewGaussianProcess(1, []float64{1}, 0)
	require.NoError(t, gp.AddEvidence([]float64{1}, 1))

	// WHEN the same input is added again
	err := gp.AddEvidence([]float64{1}, 2)

	// THEN it is rejected and the model is unchanged
	assert.Error(t, err)
	assert.Equal(t, 1, gp.NumEvidence())
	assert.InDelta(t, 1, gp.PredictMean([]float64{1}), 1e-9)
}

func TestGaussianProcess_DimensionMismatch(t *testing.T) {
	gp := NewGaussianProcess(1, []float64{1, 1}, 0.1)
	assert.Error(t, gp.AddEvidence([]float64{1}, 0))
	assert.Panics(t, func() { NewGaussianProcess(0, nil, 0) })

	gp.Clear()
	assert.Equal(t, 0, gp.NumEvidence())
}

func TestBayesianConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultBayesianConfig().Validate())
	for _, mutate := range []func(*BayesianConfig){
		func(c *BayesianConfig) { c.MaxEvidence = 0 },
		func(c *BayesianConfig) { c.CandidateSamples = 0 },
		func(c *BayesianConfig) { c.Acquisition = "" },
		func(c *BayesianConfig) { c.Theta = 0 },
		func(c *BayesianConfig) { c.Sigma = -1 },
	} {
		c := DefaultBayesianConfig()
		mutate(&c)
		assert.Error(t, c.Validate())
	}
}

package tuning

import (
	"fmt"
	"math/rand"

	"github.com/sirupsen/logrus"

	"github.com/mdtune/mdtune/sim"
)

// BayesianConfig holds the Bayesian-search parameters.
type BayesianConfig struct {
	MaxEvidence      int         // measurements per phase, default: 10
	CandidateSamples int         // candidates scored per step, default: 1000
	Acquisition      Acquisition // default: lcb
	Theta            float64     // kernel amplitude, default: 1
	Sigma            float64     // fixed noise, default: 0.001
}

// DefaultBayesianConfig returns the default Bayesian-search parameters.
func DefaultBayesianConfig() BayesianConfig {
	return BayesianConfig{
		MaxEvidence:      10,
		CandidateSamples: 1000,
		Acquisition:      AcquisitionLCB,
		Theta:            1,
		Sigma:            0.001,
	}
}

// Validate checks names and parameter ranges.
func (c BayesianConfig) Validate() error {
	if c.MaxEvidence < 1 {
		return fmt.Errorf("max evidence must be >= 1, got %d", c.MaxEvidence)
	}
	if c.CandidateSamples < 1 {
		return fmt.Errorf("candidate samples must be >= 1, got %d", c.CandidateSamples)
	}
	if c.Acquisition == "" || !sim.ValidAcquisitionFunctions[string(c.Acquisition)] {
		return fmt.Errorf("unknown acquisition function %q", c.Acquisition)
	}
	if c.Theta <= 0 {
		return fmt.Errorf("theta must be positive, got %f", c.Theta)
	}
	if c.Sigma < 0 {
		return fmt.Errorf("sigma must be non-negative, got %f", c.Sigma)
	}
	return nil
}

// numFeatures is the length of a configuration's feature vector.
const numFeatures = 5

// features encodes c as the option indices plus the cell size factor.
func features(c sim.Configuration) []float64 {
	return []float64{
		float64(c.Container),
		c.CellSizeFactor,
		float64(c.Traversal),
		float64(c.DataLayout),
		float64(c.Newton3),
	}
}

// BayesianSearch models traversal time over the configuration features with
// a Gaussian process and tests the candidate minimizing the acquisition
// function, until MaxEvidence measurements were taken or every configuration
// was tested. The fastest measured configuration wins.
type BayesianSearch struct {
	config BayesianConfig
	space  []sim.Configuration
	rng    *rand.Rand
	gp     *GaussianProcess

	current sim.Configuration
	tested  map[sim.Configuration]int64
}

// NewBayesianSearch creates a Bayesian search over space drawing candidates
// from rng.
func NewBayesianSearch(space []sim.Configuration, config BayesianConfig, rng *rand.Rand) (*BayesianSearch, error) {
	sorted, err := sortedCopy(space)
	if err != nil {
		return nil, err
	}
	dimScale := make([]float64, numFeatures)
	for i := range dimScale {
		dimScale[i] = 1
	}
	b := &BayesianSearch{
		config: config,
		space:  sorted,
		rng:    rng,
		gp:     NewGaussianProcess(config.Theta, dimScale, config.Sigma),
		tested: map[sim.Configuration]int64{},
	}
	logrus.Debugf("bayesian search: %d configurations, acquisition %s", len(sorted), config.Acquisition)
	return b, b.Reset(0)
}

func (b *BayesianSearch) CurrentConfiguration() sim.Configuration { return b.current }
func (b *BayesianSearch) SearchSpaceIsEmpty() bool                { return len(b.space) == 0 }
func (b *BayesianSearch) SearchSpaceIsTrivial() bool              { return len(b.space) == 1 }

func (b *BayesianSearch) AddEvidence(timeNs int64, _ int) {
	b.tested[b.current] = timeNs
	if err := b.gp.AddEvidence(features(b.current), float64(timeNs)/1e9); err != nil {
		logrus.Warnf("bayesian search: model ignores %s: %v", b.current, err)
	}
}

func (b *BayesianSearch) Reset(_ int) error {
	b.gp.Clear()
	clear(b.tested)
	b.current = b.space[b.rng.Intn(len(b.space))]
	return nil
}

func (b *BayesianSearch) Tune(currentInvalid bool) (bool, error) {
	if currentInvalid {
		b.space, _ = removeConfig(b.space, b.current)
		if len(b.space) == 0 {
			return false, fmt.Errorf("bayesian search: %w: last configuration %s was invalid",
				sim.ErrSearchSpaceEmpty, b.current)
		}
	}

	untested := b.untested()
	if len(b.tested) >= b.config.MaxEvidence || len(untested) == 0 {
		return false, b.selectOptimum()
	}

	candidates := untested
	if len(untested) > b.config.CandidateSamples {
		candidates = make([]sim.Configuration, b.config.CandidateSamples)
		for i := range candidates {
			candidates[i] = untested[b.rng.Intn(len(untested))]
		}
	}
	samples := make([][]float64, len(candidates))
	for i, c := range candidates {
		samples[i] = features(c)
	}
	b.current = candidates[b.gp.ArgMinAcquisition(b.config.Acquisition, samples)]
	return true, nil
}

func (b *BayesianSearch) untested() []sim.Configuration {
	var out []sim.Configuration
	for _, c := range b.space {
		if _, ok := b.tested[c]; !ok {
			out = append(out, c)
		}
	}
	return out
}

func (b *BayesianSearch) selectOptimum() error {
	best, bestTime, ok := fastest(b.space, func(c sim.Configuration) (float64, bool) {
		t, ok := b.tested[c]
		return float64(t), ok
	})
	if !ok {
		return fmt.Errorf("bayesian search: %w: none of %d configurations was measured",
			sim.ErrInsufficientEvidence, len(b.space))
	}
	b.current = best
	logrus.Debugf("bayesian search: selected %s (%.0f ns) after %d measurements", best, bestTime, len(b.tested))
	return nil
}

func (b *BayesianSearch) RemoveNewton3Option(mode sim.Newton3Option) error {
	var cursor int
	b.space, cursor = removeMode(b.space, max(indexOf(b.space, b.current), 0), mode)
	for c := range b.tested {
		if c.Newton3 == mode {
			delete(b.tested, c)
		}
	}
	if len(b.space) == 0 {
		return emptiedBy(mode)
	}
	if b.current.Newton3 == mode {
		b.current = b.space[cursor]
	}
	return nil
}

// removeConfig drops c from list and reports whether it was present.
func removeConfig(list []sim.Configuration, c sim.Configuration) ([]sim.Configuration, bool) {
	i := indexOf(list, c)
	if i < 0 {
		return list, false
	}
	return append(list[:i:i], list[i+1:]...), true
}

package sim

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// TuningBundle holds the tuning configuration, loadable from a YAML file.
// Nil pointer fields mean "not set in YAML" and leave defaults untouched.
// Empty option lists mean "allow every option".
type TuningBundle struct {
	Strategy         string           `yaml:"strategy"`
	Selector         string           `yaml:"selector"`
	TuningInterval   *int             `yaml:"tuning_interval"`
	NumSamples       *int             `yaml:"num_samples"`
	RebuildFrequency *int             `yaml:"rebuild_frequency"`
	Allowed          AllowedOptions   `yaml:"allowed"`
	Predictive       PredictiveBundle `yaml:"predictive"`
	Bayesian         BayesianBundle   `yaml:"bayesian"`
}

// AllowedOptions lists the option sets the search space is built from.
type AllowedOptions struct {
	Containers      []ContainerOption  `yaml:"containers"`
	CellSizeFactors []float64          `yaml:"cell_size_factors"`
	Traversals      []TraversalOption  `yaml:"traversals"`
	DataLayouts     []DataLayoutOption `yaml:"data_layouts"`
	Newton3         []Newton3Option    `yaml:"newton3"`
}

// PredictiveBundle holds predictive-tuning parameters.
type PredictiveBundle struct {
	RelativeOptimumRange           *float64 `yaml:"relative_optimum_range"`
	MaxTuningIterationsWithoutTest *int     `yaml:"max_tuning_iterations_without_test"`
}

// BayesianBundle holds Bayesian-search parameters.
type BayesianBundle struct {
	MaxEvidence      *int     `yaml:"max_evidence"`
	CandidateSamples *int     `yaml:"candidate_samples"`
	Acquisition      string   `yaml:"acquisition"`
	Theta            *float64 `yaml:"theta"`
	Sigma            *float64 `yaml:"sigma"`
}

// LoadTuningBundle reads and strictly parses a YAML tuning configuration.
// Unknown keys are errors so that typos do not silently fall back to defaults.
func LoadTuningBundle(path string) (*TuningBundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading tuning config: %w", err)
	}
	var bundle TuningBundle
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&bundle); err != nil {
		return nil, fmt.Errorf("parsing tuning config: %w", err)
	}
	return &bundle, nil
}

// ValidTuningStrategies is the set of recognized tuning strategy names.
// Shared by Validate() and tuning.NewStrategy().
var ValidTuningStrategies = map[string]bool{
	"":                        true,
	"full-search":             true,
	"full-search-distributed": true,
	"bayesian-search":         true,
	"predictive-tuning":       true,
}

// ValidSelectorStrategies is the set of recognized sample reductions.
var ValidSelectorStrategies = map[string]bool{"": true, "fastest-abs": true, "fastest-mean": true, "fastest-median": true}

// ValidAcquisitionFunctions is the set of recognized Bayesian acquisition functions.
var ValidAcquisitionFunctions = map[string]bool{"": true, "ucb": true, "lcb": true, "mean": true}

// Validate checks names and parameter ranges in the bundle.
func (b *TuningBundle) Validate() error {
	if !ValidTuningStrategies[b.Strategy] {
		return fmt.Errorf("unknown tuning strategy %q", b.Strategy)
	}
	if !ValidSelectorStrategies[b.Selector] {
		return fmt.Errorf("unknown selector strategy %q", b.Selector)
	}
	if !ValidAcquisitionFunctions[b.Bayesian.Acquisition] {
		return fmt.Errorf("unknown acquisition function %q", b.Bayesian.Acquisition)
	}
	if b.TuningInterval != nil && *b.TuningInterval < 1 {
		return fmt.Errorf("tuning_interval must be >= 1, got %d", *b.TuningInterval)
	}
	if b.NumSamples != nil && *b.NumSamples < 1 {
		return fmt.Errorf("num_samples must be >= 1, got %d", *b.NumSamples)
	}
	if b.RebuildFrequency != nil && *b.RebuildFrequency < 1 {
		return fmt.Errorf("rebuild_frequency must be >= 1, got %d", *b.RebuildFrequency)
	}
	for _, csf := range b.Allowed.CellSizeFactors {
		if !validCellSizeFactor(csf) {
			return fmt.Errorf("cell_size_factors: %v must be finite and >= 1", csf)
		}
	}
	if r := b.Predictive.RelativeOptimumRange; r != nil && *r < 1 {
		return fmt.Errorf("relative_optimum_range must be >= 1, got %f", *r)
	}
	if m := b.Predictive.MaxTuningIterationsWithoutTest; m != nil && *m < 0 {
		return fmt.Errorf("max_tuning_iterations_without_test must be non-negative, got %d", *m)
	}
	if m := b.Bayesian.MaxEvidence; m != nil && *m < 1 {
		return fmt.Errorf("max_evidence must be >= 1, got %d", *m)
	}
	if s := b.Bayesian.CandidateSamples; s != nil && *s < 1 {
		return fmt.Errorf("candidate_samples must be >= 1, got %d", *s)
	}
	if th := b.Bayesian.Theta; th != nil && *th <= 0 {
		return fmt.Errorf("theta must be positive, got %f", *th)
	}
	if s := b.Bayesian.Sigma; s != nil && *s < 0 {
		return fmt.Errorf("sigma must be non-negative, got %f", *s)
	}
	return nil
}

// SearchSpaceOptions returns the allowed option sets, filling empty lists
// from DefaultSearchSpaceOptions.
func (b *TuningBundle) SearchSpaceOptions() SearchSpaceOptions {
	opts := DefaultSearchSpaceOptions()
	if len(b.Allowed.Containers) > 0 {
		opts.Containers = b.Allowed.Containers
	}
	if len(b.Allowed.CellSizeFactors) > 0 {
		opts.CellSizeFactors = b.Allowed.CellSizeFactors
	}
	if len(b.Allowed.Traversals) > 0 {
		opts.Traversals = b.Allowed.Traversals
	}
	if len(b.Allowed.DataLayouts) > 0 {
		opts.DataLayouts = b.Allowed.DataLayouts
	}
	if len(b.Allowed.Newton3) > 0 {
		opts.Newton3 = b.Allowed.Newton3
	}
	return opts
}

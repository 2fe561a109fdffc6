package autotuner

import (
	"fmt"

	"github.com/mdtune/mdtune/sim"
)

// Config holds the orchestrator cadences.
type Config struct {
	// TuningInterval is the number of steady iterations between the end of
	// one tuning phase and the start of the next.
	TuningInterval int // default: 100

	// NumSamples is the number of measurements per configuration, reduced
	// by Selector into one evidence.
	NumSamples int // default: 3

	// Selector names the sample reduction: fastest-abs, fastest-mean or
	// fastest-median. Empty means fastest-abs.
	Selector string

	// RebuildFrequency is the number of iterations between neighbor list
	// rebuilds.
	RebuildFrequency int // default: 10

	// Workers caps the goroutines of parallel traversals. Zero means
	// GOMAXPROCS.
	Workers int
}

// DefaultConfig returns the default cadences.
func DefaultConfig() Config {
	return Config{
		TuningInterval:   100,
		NumSamples:       3,
		Selector:         "fastest-abs",
		RebuildFrequency: 10,
	}
}

// ConfigFromBundle overlays the cadences set in b on DefaultConfig.
func ConfigFromBundle(b *sim.TuningBundle) Config {
	cfg := DefaultConfig()
	if b == nil {
		return cfg
	}
	if b.TuningInterval != nil {
		cfg.TuningInterval = *b.TuningInterval
	}
	if b.NumSamples != nil {
		cfg.NumSamples = *b.NumSamples
	}
	if b.Selector != "" {
		cfg.Selector = b.Selector
	}
	if b.RebuildFrequency != nil {
		cfg.RebuildFrequency = *b.RebuildFrequency
	}
	return cfg
}

// Validate checks names and ranges.
func (c Config) Validate() error {
	if c.TuningInterval < 1 {
		return fmt.Errorf("tuning interval must be >= 1, got %d", c.TuningInterval)
	}
	if c.NumSamples < 1 {
		return fmt.Errorf("num samples must be >= 1, got %d", c.NumSamples)
	}
	if !sim.ValidSelectorStrategies[c.Selector] {
		return fmt.Errorf("unknown selector strategy %q", c.Selector)
	}
	if c.RebuildFrequency < 1 {
		return fmt.Errorf("rebuild frequency must be >= 1, got %d", c.RebuildFrequency)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", c.Workers)
	}
	return nil
}

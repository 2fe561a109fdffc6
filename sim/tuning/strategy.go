// Package tuning implements the strategies that choose which Configuration
// the next pairwise pass runs with, driven by measured traversal times.
//
// A strategy cycles through candidate configurations during a tuning phase.
// The orchestrator runs the current candidate, reports its time through
// AddEvidence and calls Tune to advance. Tune returns false once the phase
// has ended, at which point CurrentConfiguration is the selected optimum
// until the next Reset.
package tuning

import (
	"fmt"
	"math/rand"

	"github.com/mdtune/mdtune/sim"
	"github.com/mdtune/mdtune/sim/collective"
)

// Strategy is a tuning state machine. Implementations are not safe for
// concurrent use; the orchestrator goroutine owns them.
type Strategy interface {
	// CurrentConfiguration returns the configuration to run next, or the
	// selected optimum after Tune returned false.
	CurrentConfiguration() sim.Configuration

	// AddEvidence records the reduced traversal time of the current
	// configuration measured at the given iteration.
	AddEvidence(timeNs int64, iteration int)

	// Tune advances to the next candidate. currentInvalid marks the
	// current configuration as not applicable; it recorded no evidence.
	// Returns true while more candidates remain in this phase.
	Tune(currentInvalid bool) (bool, error)

	// Reset starts a new tuning phase beginning at iteration.
	Reset(iteration int) error

	// RemoveNewton3Option drops every configuration using mode. The
	// current configuration is moved to a survivor if it was removed.
	RemoveNewton3Option(mode sim.Newton3Option) error

	SearchSpaceIsEmpty() bool
	SearchSpaceIsTrivial() bool
}

// Options carries what individual strategies need beyond the search space.
type Options struct {
	Predictive PredictiveConfig
	Bayesian   BayesianConfig

	// Comm is the rank group for full-search-distributed. Nil means a
	// single rank.
	Comm collective.Communicator

	// RNG draws Bayesian candidate samples. Nil means the tuning
	// subsystem RNG of run key 0.
	RNG *rand.Rand
}

// DefaultOptions returns default parameters for every strategy.
func DefaultOptions() Options {
	return Options{
		Predictive: DefaultPredictiveConfig(),
		Bayesian:   DefaultBayesianConfig(),
	}
}

// OptionsFromBundle overlays the parameters set in b on DefaultOptions.
func OptionsFromBundle(b *sim.TuningBundle) Options {
	opts := DefaultOptions()
	if b == nil {
		return opts
	}
	if r := b.Predictive.RelativeOptimumRange; r != nil {
		opts.Predictive.RelativeOptimumRange = *r
	}
	if m := b.Predictive.MaxTuningIterationsWithoutTest; m != nil {
		opts.Predictive.MaxTuningIterationsWithoutTest = *m
	}
	if m := b.Bayesian.MaxEvidence; m != nil {
		opts.Bayesian.MaxEvidence = *m
	}
	if s := b.Bayesian.CandidateSamples; s != nil {
		opts.Bayesian.CandidateSamples = *s
	}
	if b.Bayesian.Acquisition != "" {
		opts.Bayesian.Acquisition = Acquisition(b.Bayesian.Acquisition)
	}
	if th := b.Bayesian.Theta; th != nil {
		opts.Bayesian.Theta = *th
	}
	if s := b.Bayesian.Sigma; s != nil {
		opts.Bayesian.Sigma = *s
	}
	return opts
}

// NewStrategy creates a tuning strategy by name over space.
// Valid names are defined in sim.ValidTuningStrategies (bundle.go).
// An empty string defaults to full-search.
// Panics on unrecognized names.
func NewStrategy(name string, space []sim.Configuration, opts Options) (Strategy, error) {
	if !sim.ValidTuningStrategies[name] {
		panic(fmt.Sprintf("unknown tuning strategy %q", name))
	}
	switch name {
	case "", "full-search":
		return NewFullSearch(space)
	case "full-search-distributed":
		comm := opts.Comm
		if comm == nil {
			comm = collective.Self{}
		}
		return NewFullSearchDistributed(space, comm)
	case "predictive-tuning":
		if err := opts.Predictive.Validate(); err != nil {
			return nil, err
		}
		return NewPredictiveTuning(space, opts.Predictive)
	case "bayesian-search":
		if err := opts.Bayesian.Validate(); err != nil {
			return nil, err
		}
		rng := opts.RNG
		if rng == nil {
			rng = sim.NewPartitionedRNG(sim.NewRunKey(0)).ForSubsystem(sim.SubsystemTuning)
		}
		return NewBayesianSearch(space, opts.Bayesian, rng)
	default:
		panic(fmt.Sprintf("unhandled tuning strategy %q", name))
	}
}

// sortedCopy returns a sorted copy of space, or ErrSearchSpaceEmpty.
func sortedCopy(space []sim.Configuration) ([]sim.Configuration, error) {
	if len(space) == 0 {
		return nil, fmt.Errorf("%w: strategy created without configurations", sim.ErrSearchSpaceEmpty)
	}
	out := append([]sim.Configuration(nil), space...)
	sim.SortConfigurations(out)
	return out, nil
}

// removeMode drops the configurations using mode from list. It returns the
// shortened list and the index of the first survivor at or after cursor,
// wrapping to 0 when no survivor follows.
func removeMode(list []sim.Configuration, cursor int, mode sim.Newton3Option) ([]sim.Configuration, int) {
	out := make([]sim.Configuration, 0, len(list))
	next := -1
	for i, c := range list {
		if c.Newton3 == mode {
			continue
		}
		if next < 0 && i >= cursor {
			next = len(out)
		}
		out = append(out, c)
	}
	if next < 0 {
		next = 0
	}
	return out, next
}

// fastest returns the candidate with the smallest time. Candidates without
// a time are skipped. Candidates must be sorted so that exact ties go to the
// configuration that sorts first.
func fastest(candidates []sim.Configuration, timeOf func(sim.Configuration) (float64, bool)) (sim.Configuration, float64, bool) {
	var (
		best     sim.Configuration
		bestTime float64
		found    bool
	)
	for _, c := range candidates {
		t, ok := timeOf(c)
		if !ok {
			continue
		}
		if !found || t < bestTime {
			best, bestTime, found = c, t, true
		}
	}
	return best, bestTime, found
}

func indexOf(list []sim.Configuration, c sim.Configuration) int {
	for i, x := range list {
		if x == c {
			return i
		}
	}
	return -1
}

func emptiedBy(mode sim.Newton3Option) error {
	return fmt.Errorf("%w: removing all configurations with newton3=%s", sim.ErrSearchSpaceEmpty, mode)
}

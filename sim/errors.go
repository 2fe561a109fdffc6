package sim

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by containers, traversals, tuning strategies and the
// orchestrator. Callers match with errors.Is.
var (
	// ErrSearchSpaceEmpty means no valid configuration remains after
	// filtering or pruning. Fatal.
	ErrSearchSpaceEmpty = errors.New("search space is empty")

	// ErrIncompatibleTraversal means a traversal was paired with a container
	// whose topology it cannot walk. Fatal, indicates a bug.
	ErrIncompatibleTraversal = errors.New("traversal is incompatible with container")

	// ErrInvalidConfiguration means the functor rejected the configuration's
	// Newton3 mode, data layout or cluster size at execution time.
	// Recoverable: the configuration is skipped without evidence.
	ErrInvalidConfiguration = errors.New("configuration is not applicable")

	// ErrInsufficientEvidence means an optimum was requested before any
	// measurement was recorded. Fatal.
	ErrInsufficientEvidence = errors.New("no evidence recorded")

	// ErrParticleOutsideBox means an owned particle was added outside
	// [boxMin, boxMax).
	ErrParticleOutsideBox = errors.New("particle is outside the container box")

	// ErrHaloInsideBox means a halo particle was added inside
	// [boxMin, boxMax).
	ErrHaloInsideBox = errors.New("halo particle is inside the container box")

	// ErrInvalidParticlePosition means a particle position is NaN, infinite
	// or outside the domain during a rebuild. Fatal.
	ErrInvalidParticlePosition = errors.New("invalid particle position")

	// ErrInvalidOption means an option name or value is not recognized.
	ErrInvalidOption = errors.New("invalid option")
)

// ConfigurationError attaches the offending configuration to an error.
type ConfigurationError struct {
	Config  Configuration
	Wrapped error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%v (configuration %s)", e.Wrapped, e.Config)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Wrapped
}

// WithConfiguration wraps err with the configuration it occurred under.
// Returns nil for a nil err.
func WithConfiguration(err error, c Configuration) error {
	if err == nil {
		return nil
	}
	return &ConfigurationError{Config: c, Wrapped: err}
}

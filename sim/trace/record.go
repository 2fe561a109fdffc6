// Package trace records what the auto-tuner measured and decided.
// It has no dependencies on sim/ and stores pure data types. Configurations
// are recorded by their string form.
package trace

// SampleRecord captures one measured (or rejected) iteration during tuning.
type SampleRecord struct {
	Iteration     int
	Phase         int
	Configuration string
	TimeNs        int64  // 0 when Invalid
	Invalid       bool   // configuration was not applicable
	Reason        string // why it was invalid
}

// CandidateTime is one configuration's reduced time within a phase.
type CandidateTime struct {
	Configuration string
	TimeNs        int64
}

// PhaseRecord captures the outcome of one tuning phase.
type PhaseRecord struct {
	Phase          int
	StartIteration int
	EndIteration   int
	Selected       string
	SelectedTimeNs int64           // 0 if the selection was not measured this phase
	Candidates     []CandidateTime // sorted by time ascending
	InvalidCount   int
}

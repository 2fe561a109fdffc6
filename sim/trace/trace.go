package trace

// TraceLevel controls the verbosity of tuning traces.
type TraceLevel string

const (
	// TraceLevelNone disables tracing (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelPhases captures one record per tuning phase.
	TraceLevelPhases TraceLevel = "phases"
	// TraceLevelSamples captures every tuning sample as well as phases.
	TraceLevelSamples TraceLevel = "samples"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:    true,
	TraceLevelPhases:  true,
	TraceLevelSamples: true,
	"":                true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// TraceConfig controls trace collection behavior.
type TraceConfig struct {
	Level TraceLevel
}

// TuningTrace collects tuning records during a run.
type TuningTrace struct {
	Config  TraceConfig
	Samples []SampleRecord
	Phases  []PhaseRecord
}

// NewTuningTrace creates a TuningTrace ready for recording.
func NewTuningTrace(config TraceConfig) *TuningTrace {
	return &TuningTrace{
		Config:  config,
		Samples: make([]SampleRecord, 0),
		Phases:  make([]PhaseRecord, 0),
	}
}

// Enabled reports whether anything is recorded. Safe on a nil trace.
func (tt *TuningTrace) Enabled() bool {
	return tt != nil && tt.Config.Level != TraceLevelNone && tt.Config.Level != ""
}

// RecordSample appends a sample record when the level includes samples.
func (tt *TuningTrace) RecordSample(record SampleRecord) {
	if tt.Enabled() && tt.Config.Level == TraceLevelSamples {
		tt.Samples = append(tt.Samples, record)
	}
}

// RecordPhase appends a phase record.
func (tt *TuningTrace) RecordPhase(record PhaseRecord) {
	if tt.Enabled() {
		tt.Phases = append(tt.Phases, record)
	}
}

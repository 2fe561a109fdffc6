package trace

import (
	"testing"
)

func TestTuningTrace_RecordSample_AppendsRecord(t *testing.T) {
	// GIVEN a trace configured for samples
	tt := NewTuningTrace(TraceConfig{Level: TraceLevelSamples})

	// WHEN a sample record is recorded
	tt.RecordSample(SampleRecord{
		Iteration:     3,
		Configuration: "lc-c08",
		TimeNs:        1500,
	})

	// THEN the trace contains one sample record with correct data
	if len(tt.Samples) != 1 {
		t.Fatalf("expected 1 sample, got %d", len(tt.Samples))
	}
	if tt.Samples[0].Configuration != "lc-c08" {
		t.Errorf("expected configuration lc-c08, got %s", tt.Samples[0].Configuration)
	}
	if tt.Samples[0].Invalid {
		t.Error("expected invalid=false")
	}
}

func TestTuningTrace_PhasesLevel_SkipsSamples(t *testing.T) {
	// GIVEN a trace configured for phases only
	tt := NewTuningTrace(TraceConfig{Level: TraceLevelPhases})

	// WHEN a sample and a phase are recorded
	tt.RecordSample(SampleRecord{Iteration: 1, Configuration: "ds", TimeNs: 10})
	tt.RecordPhase(PhaseRecord{Phase: 0, Selected: "ds", SelectedTimeNs: 10})

	// THEN only the phase is kept
	if len(tt.Samples) != 0 {
		t.Errorf("expected no samples, got %d", len(tt.Samples))
	}
	if len(tt.Phases) != 1 || tt.Phases[0].Selected != "ds" {
		t.Error("phase record mismatch")
	}
}

func TestTuningTrace_NoneAndNil_RecordNothing(t *testing.T) {
	tt := NewTuningTrace(TraceConfig{Level: TraceLevelNone})
	tt.RecordSample(SampleRecord{Iteration: 1})
	tt.RecordPhase(PhaseRecord{Phase: 0})
	if len(tt.Samples) != 0 || len(tt.Phases) != 0 {
		t.Error("expected nothing recorded at level none")
	}

	var nilTrace *TuningTrace
	if nilTrace.Enabled() {
		t.Error("nil trace must be disabled")
	}
	nilTrace.RecordSample(SampleRecord{})
	nilTrace.RecordPhase(PhaseRecord{})
}

func TestTuningTrace_MultipleRecords_PreservesOrder(t *testing.T) {
	// GIVEN a trace
	tt := NewTuningTrace(TraceConfig{Level: TraceLevelSamples})

	// WHEN multiple records are added
	tt.RecordSample(SampleRecord{Iteration: 1, Configuration: "a", TimeNs: 100})
	tt.RecordSample(SampleRecord{Iteration: 2, Configuration: "b", Invalid: true, Reason: "newton3"})
	tt.RecordPhase(PhaseRecord{Phase: 0, Selected: "a"})

	// THEN order is preserved
	if len(tt.Samples) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(tt.Samples))
	}
	if tt.Samples[0].Iteration != 1 || tt.Samples[1].Iteration != 2 {
		t.Error("sample order not preserved")
	}
	if len(tt.Phases) != 1 || tt.Phases[0].Selected != "a" {
		t.Error("phase record mismatch")
	}
}

func TestIsValidTraceLevel_ValidLevels(t *testing.T) {
	tests := []struct {
		level string
		valid bool
	}{
		{"none", true},
		{"phases", true},
		{"samples", true},
		{"", true}, // empty defaults to none
		{"decisions", false},
		{"foobar", false},
		{"NONE", false}, // case-sensitive
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			if got := IsValidTraceLevel(tt.level); got != tt.valid {
				t.Errorf("IsValidTraceLevel(%q) = %v, want %v", tt.level, got, tt.valid)
			}
		})
	}
}

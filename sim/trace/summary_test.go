package trace

import (
	"math"
	"testing"
)

func TestSummarize_EmptyTrace_ZeroValues(t *testing.T) {
	// GIVEN an empty trace
	tt := NewTuningTrace(TraceConfig{Level: TraceLevelSamples})

	// WHEN summarized
	summary := Summarize(tt)

	// THEN all counts are zero
	if summary.TotalSamples != 0 || summary.InvalidCount != 0 {
		t.Errorf("expected 0 samples, got %d (%d invalid)", summary.TotalSamples, summary.InvalidCount)
	}
	if summary.Phases != 0 || summary.UniqueOptima != 0 {
		t.Error("expected 0 phases and optima")
	}
	if summary.MeanSelectedTimeNs != 0 || summary.MedianSampleTimeNs != 0 {
		t.Error("expected 0 time statistics")
	}
	if len(summary.OptimumDistribution) != 0 {
		t.Error("expected empty optimum distribution")
	}
}

func TestSummarize_NilTrace_ZeroValues(t *testing.T) {
	summary := Summarize(nil)
	if summary.TotalSamples != 0 || summary.OptimumDistribution == nil {
		t.Error("expected zero summary with initialized distribution")
	}
}

func TestSummarize_PopulatedTrace_CorrectStatistics(t *testing.T) {
	// GIVEN samples with one invalid and two phases selecting different optima
	tt := NewTuningTrace(TraceConfig{Level: TraceLevelSamples})
	tt.RecordSample(SampleRecord{Iteration: 0, Configuration: "a", TimeNs: 300})
	tt.RecordSample(SampleRecord{Iteration: 1, Configuration: "b", Invalid: true})
	tt.RecordSample(SampleRecord{Iteration: 2, Configuration: "c", TimeNs: 100})
	tt.RecordSample(SampleRecord{Iteration: 3, Configuration: "d", TimeNs: 200})
	tt.RecordPhase(PhaseRecord{Phase: 0, Selected: "c", SelectedTimeNs: 100})
	tt.RecordPhase(PhaseRecord{Phase: 1, Selected: "c", SelectedTimeNs: 140})
	tt.RecordPhase(PhaseRecord{Phase: 2, Selected: "d"})

	// WHEN summarized
	summary := Summarize(tt)

	// THEN counts and statistics match
	if summary.TotalSamples != 4 {
		t.Errorf("expected 4 samples, got %d", summary.TotalSamples)
	}
	if summary.InvalidCount != 1 {
		t.Errorf("expected 1 invalid, got %d", summary.InvalidCount)
	}
	if summary.MedianSampleTimeNs != 200 {
		t.Errorf("expected median 200, got %f", summary.MedianSampleTimeNs)
	}
	if math.Abs(summary.MeanSelectedTimeNs-120) > 1e-9 {
		t.Errorf("expected mean selected time 120, got %f", summary.MeanSelectedTimeNs)
	}
	if summary.Phases != 3 || summary.UniqueOptima != 2 {
		t.Errorf("expected 3 phases with 2 optima, got %d and %d", summary.Phases, summary.UniqueOptima)
	}
	if summary.OptimumDistribution["c"] != 2 {
		t.Errorf("expected c selected twice, got %d", summary.OptimumDistribution["c"])
	}
}

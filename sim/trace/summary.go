package trace

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// TraceSummary aggregates statistics from a TuningTrace.
type TraceSummary struct {
	TotalSamples        int
	InvalidCount        int
	Phases              int
	MeanSelectedTimeNs  float64
	MedianSampleTimeNs  float64
	UniqueOptima        int
	OptimumDistribution map[string]int // configuration → phases it was selected in
}

// Summarize computes aggregate statistics from a TuningTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(tt *TuningTrace) *TraceSummary {
	summary := &TraceSummary{
		OptimumDistribution: make(map[string]int),
	}
	if tt == nil {
		return summary
	}

	summary.TotalSamples = len(tt.Samples)
	var times []float64
	for _, s := range tt.Samples {
		if s.Invalid {
			summary.InvalidCount++
			continue
		}
		times = append(times, float64(s.TimeNs))
	}
	if len(times) > 0 {
		sort.Float64s(times)
		summary.MedianSampleTimeNs = stat.Quantile(0.5, stat.Empirical, times, nil)
	}

	summary.Phases = len(tt.Phases)
	var selected []float64
	for _, p := range tt.Phases {
		summary.OptimumDistribution[p.Selected]++
		if p.SelectedTimeNs > 0 {
			selected = append(selected, float64(p.SelectedTimeNs))
		}
	}
	if len(selected) > 0 {
		summary.MeanSelectedTimeNs = stat.Mean(selected, nil)
	}

	summary.UniqueOptima = len(summary.OptimumDistribution)

	return summary
}

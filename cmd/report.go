package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/guptarohit/asciigraph"

	"github.com/mdtune/mdtune/sim"
	"github.com/mdtune/mdtune/sim/autotuner"
	"github.com/mdtune/mdtune/sim/functor"
	"github.com/mdtune/mdtune/sim/trace"
)

// runReport is the JSON summary printed at the end of a run.
type runReport struct {
	Iterations        int                 `json:"iterations"`
	OwnedParticles    int                 `json:"owned_particles"`
	Configuration     string              `json:"configuration"`
	TuningPhases      int                 `json:"tuning_phases"`
	StillTuning       bool                `json:"still_tuning"`
	PotentialEnergy   float64             `json:"potential_energy"`
	WallTimeS         float64             `json:"wall_time_s"`
	InvalidConfigs    int                 `json:"invalid_configurations"`
	MedianSampleNs    float64             `json:"median_sample_ns"`
	MeanSelectedNs    float64             `json:"mean_selected_ns"`
	OptimumPhaseCount map[string]int      `json:"optimum_phase_count"`
	Phases            []trace.PhaseRecord `json:"phases,omitempty"`
}

func newRunReport(at *autotuner.AutoTuner, tt *trace.TuningTrace, lj *functor.LJ, wall time.Duration) *runReport {
	owned := 0
	at.ForEach(sim.OwnedOnly, func(*sim.Particle) { owned++ })
	summary := trace.Summarize(tt)
	return &runReport{
		Iterations:        at.Iteration(),
		OwnedParticles:    owned,
		Configuration:     at.Configuration().String(),
		TuningPhases:      at.Phases(),
		StillTuning:       at.IsTuning(),
		PotentialEnergy:   lj.PotentialEnergy(),
		WallTimeS:         wall.Seconds(),
		InvalidConfigs:    summary.InvalidCount,
		MedianSampleNs:    summary.MedianSampleTimeNs,
		MeanSelectedNs:    summary.MeanSelectedTimeNs,
		OptimumPhaseCount: summary.OptimumDistribution,
		Phases:            tt.Phases,
	}
}

// write prints the report as JSON and, when plot is set, the per-iteration
// traversal times as an ASCII graph.
func (r *runReport) write(out io.Writer, iterationTimes []float64, plot bool) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	fmt.Fprintln(out, "=== Tuning Summary ===")
	fmt.Fprintln(out, string(data))
	if plot && len(iterationTimes) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, asciigraph.Plot(iterationTimes,
			asciigraph.Height(12),
			asciigraph.Width(80),
			asciigraph.Caption("traversal time per iteration (µs)"),
		))
	}
	return nil
}

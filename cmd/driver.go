package cmd

import (
	"fmt"
	"math/rand"
	"sort"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/mdtune/mdtune/sim"
	"github.com/mdtune/mdtune/sim/autotuner"
	"github.com/mdtune/mdtune/sim/container"
	"github.com/mdtune/mdtune/sim/generator"
)

// driver advances a periodic particle system through the auto-tuner. Each
// step runs one force pass and drifts the owned particles. Before a rebuild
// the container is updated, leaving particles are re-inserted at their
// periodic image and the halo is regenerated; between rebuilds the halo
// particles follow their owners in place.
type driver struct {
	at       *autotuner.AutoTuner
	params   container.Params
	motion   *rand.Rand
	maxStep  float64
	haloBase int64

	// iterationTimes holds the wall time of each pass in microseconds.
	iterationTimes []float64
}

func newDriver(at *autotuner.AutoTuner, params container.Params, owned []sim.Particle, motion *rand.Rand, maxStep float64) (*driver, error) {
	d := &driver{at: at, params: params, motion: motion, maxStep: maxStep}
	for _, p := range owned {
		if err := at.AddParticle(p); err != nil {
			return nil, fmt.Errorf("adding particle %d: %w", p.ID, err)
		}
		d.haloBase = max(d.haloBase, p.ID+1)
	}
	if err := d.addHalo(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *driver) addHalo() error {
	var owned []sim.Particle
	d.at.ForEach(sim.OwnedOnly, func(p *sim.Particle) { owned = append(owned, *p) })
	halo := generator.PeriodicHalo(owned, d.params.BoxMin, d.params.BoxMax, d.params.InteractionLength(), d.haloBase)
	for _, h := range halo {
		if err := d.at.AddHaloParticle(h); err != nil {
			return fmt.Errorf("adding halo image %d: %w", h.ID, err)
		}
	}
	return nil
}

func (d *driver) step() error {
	start := time.Now()
	if err := d.at.IteratePairwise(); err != nil {
		return err
	}
	d.iterationTimes = append(d.iterationTimes, float64(time.Since(start).Microseconds()))

	// drift in ID order so the motion does not depend on the container
	var owned []*sim.Particle
	d.at.ForEach(sim.OwnedOnly, func(p *sim.Particle) { owned = append(owned, p) })
	sort.Slice(owned, func(i, j int) bool { return owned[i].ID < owned[j].ID })
	for _, p := range owned {
		generator.Drift(p, d.motion, d.maxStep)
		p.F = r3.Vec{}
	}
	if !d.at.RebuildDue() {
		generator.RefreshHalo(d.at.ForEach, d.params.BoxMin, d.params.BoxMax, d.haloBase)
		return nil
	}
	leaving, err := d.at.UpdateContainer()
	if err != nil {
		return err
	}
	for _, p := range leaving {
		p.R = generator.Wrap(p.R, d.params.BoxMin, d.params.BoxMax)
		if err := d.at.AddParticle(p); err != nil {
			return fmt.Errorf("re-inserting particle %d: %w", p.ID, err)
		}
	}
	return d.addHalo()
}

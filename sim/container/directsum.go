package container

import (
	"sync"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/mdtune/mdtune/sim"
)

// DirectSumTopology is what direct-sum traversals walk.
type DirectSumTopology struct {
	Owned *Cell
	Halo  *Cell
}

func (*DirectSumTopology) topology() {}

// DirectSum stores owned and halo particles in one cell each and checks every
// pair. It is the reference the other containers are tested against.
type DirectSum struct {
	params  Params
	mu      sync.Mutex
	owned   Cell
	halo    Cell
	tracker displacementTracker
}

// NewDirectSum returns an empty direct-sum container.
func NewDirectSum(p Params) *DirectSum {
	p = p.withDefaults()
	p.validate()
	d := &DirectSum{params: p, tracker: newDisplacementTracker(p.Skin)}
	d.owned.Min, d.owned.Max = p.BoxMin, p.BoxMax
	d.halo.Min, d.halo.Max = p.HaloMin(), p.HaloMax()
	return d
}

func (d *DirectSum) Kind() sim.ContainerOption { return sim.DirectSum }
func (d *DirectSum) Params() Params            { return d.params }

func (d *DirectSum) AddParticle(p sim.Particle) error {
	if err := checkOwned(d.params, p); err != nil {
		return err
	}
	p.Ownership = sim.Owned
	d.mu.Lock()
	d.owned.add(p)
	d.mu.Unlock()
	return nil
}

func (d *DirectSum) AddHaloParticle(p sim.Particle) error {
	if err := checkHalo(d.params, p); err != nil {
		return err
	}
	p.Ownership = sim.Halo
	d.mu.Lock()
	d.halo.add(p)
	d.mu.Unlock()
	return nil
}

func (d *DirectSum) DeleteHaloParticles() { d.halo.clear() }

func (d *DirectSum) UpdateContainer() ([]sim.Particle, error) {
	d.DeleteHaloParticles()
	var leaving []sim.Particle
	kept := d.owned.Particles[:0]
	for _, p := range d.owned.Particles {
		if !sim.IsFinite(p.R) {
			return nil, checkOwned(d.params, p)
		}
		if sim.InBox(p.R, d.params.BoxMin, d.params.BoxMax) {
			kept = append(kept, p)
		} else {
			leaving = append(leaving, p)
		}
	}
	d.owned.Particles = kept
	return leaving, nil
}

func (d *DirectSum) RebuildNeighborLists(bool) (Geometry, error) {
	for _, c := range []*Cell{&d.owned, &d.halo} {
		for i := range c.Particles {
			if err := checkRebuildPosition(d.params, &c.Particles[i]); err != nil {
				return Geometry{}, err
			}
		}
	}
	d.tracker.snapshot(d.ForEach)
	return Geometry{
		RegionLength:                r3.Sub(d.params.BoxMax, d.params.BoxMin),
		RegionsPerDim:               [3]int{1, 1, 1},
		NumRegions:                  2,
		RegionsPerInteractionLength: 1,
	}, nil
}

func (d *DirectSum) CheckNeighborListsAreValid() bool { return d.tracker.valid(d.ForEach) }

func (d *DirectSum) IteratePairwise(t Traversal) error {
	return iteratePairwise(sim.DirectSum, &DirectSumTopology{Owned: &d.owned, Halo: &d.halo}, t)
}

func (d *DirectSum) NumParticles() int { return d.owned.Len() + d.halo.Len() }

func (d *DirectSum) ForEach(behavior sim.IteratorBehavior, fn func(p *sim.Particle)) {
	d.owned.forEach(behavior, fn)
	d.halo.forEach(behavior, fn)
}

func (d *DirectSum) ForEachInRegion(lo, hi r3.Vec, behavior sim.IteratorBehavior, fn func(p *sim.Particle)) {
	d.owned.forEachInRegion(lo, hi, behavior, fn)
	d.halo.forEachInRegion(lo, hi, behavior, fn)
}

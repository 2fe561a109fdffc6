package container

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/mdtune/mdtune/sim"
)

// Cell is a region's particle storage plus the SoA buffer traversals load
// it into.
type Cell struct {
	Particles []sim.Particle
	SoA       sim.SoA
	Min, Max  r3.Vec
}

// Len returns the number of stored particles.
func (c *Cell) Len() int { return len(c.Particles) }

func (c *Cell) add(p sim.Particle) { c.Particles = append(c.Particles, p) }

func (c *Cell) clear() { c.Particles = c.Particles[:0] }

func (c *Cell) forEach(behavior sim.IteratorBehavior, fn func(p *sim.Particle)) {
	for i := range c.Particles {
		if behavior.Contains(&c.Particles[i]) {
			fn(&c.Particles[i])
		}
	}
}

func (c *Cell) forEachInRegion(lo, hi r3.Vec, behavior sim.IteratorBehavior, fn func(p *sim.Particle)) {
	for i := range c.Particles {
		p := &c.Particles[i]
		if behavior.Contains(p) && sim.InBox(p.R, lo, hi) {
			fn(p)
		}
	}
}

func (c *Cell) count() int {
	n := 0
	for i := range c.Particles {
		if !c.Particles[i].IsDummy() {
			n++
		}
	}
	return n
}

// displacementTracker remembers owned positions at the last rebuild.
type displacementTracker struct {
	positions  map[int64]r3.Vec
	halfSkinSq float64
}

func newDisplacementTracker(skin float64) displacementTracker {
	return displacementTracker{halfSkinSq: skin * skin / 4}
}

func (d *displacementTracker) snapshot(forEach func(sim.IteratorBehavior, func(*sim.Particle))) {
	d.positions = make(map[int64]r3.Vec, len(d.positions))
	forEach(sim.OwnedOnly, func(p *sim.Particle) {
		d.positions[p.ID] = p.R
	})
}

// valid is false before the first snapshot. A particle exactly skin/2 away
// from its snapshot is still valid.
func (d *displacementTracker) valid(forEach func(sim.IteratorBehavior, func(*sim.Particle))) bool {
	if d.positions == nil {
		return false
	}
	ok := true
	forEach(sim.OwnedOnly, func(p *sim.Particle) {
		if !ok {
			return
		}
		old, seen := d.positions[p.ID]
		if !seen || r3.Norm2(r3.Sub(p.R, old)) > d.halfSkinSq {
			ok = false
		}
	})
	return ok
}

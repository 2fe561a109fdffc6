// Package container implements the spatial containers particles live in
// between traversals: direct sum, linked cells, verlet lists, verlet cluster
// lists and octree. A container exposes its region topology to a Traversal
// and rebuilds derived neighbor structures on request.
package container

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/mdtune/mdtune/sim"
)

// DefaultClusterSize is the cluster width of verlet cluster lists.
const DefaultClusterSize = 4

// Params describes the local domain and interaction range of a container.
type Params struct {
	BoxMin, BoxMax r3.Vec
	Cutoff         float64
	Skin           float64
	CellSizeFactor float64
	ClusterSize    int // verlet cluster lists only; 0 means DefaultClusterSize
}

// InteractionLength returns cutoff + skin.
func (p Params) InteractionLength() float64 { return p.Cutoff + p.Skin }

// HaloMin returns the lower corner of the box extended by the interaction length.
func (p Params) HaloMin() r3.Vec {
	il := p.InteractionLength()
	return r3.Sub(p.BoxMin, r3.Vec{X: il, Y: il, Z: il})
}

// HaloMax returns the upper corner of the box extended by the interaction length.
func (p Params) HaloMax() r3.Vec {
	il := p.InteractionLength()
	return r3.Add(p.BoxMax, r3.Vec{X: il, Y: il, Z: il})
}

func (p Params) validate() {
	if !(p.Cutoff > 0) || math.IsInf(p.Cutoff, 0) {
		panic(fmt.Sprintf("container: cutoff must be positive, got %v", p.Cutoff))
	}
	if p.Skin < 0 || math.IsNaN(p.Skin) {
		panic(fmt.Sprintf("container: skin must be non-negative, got %v", p.Skin))
	}
	if !(p.BoxMax.X > p.BoxMin.X && p.BoxMax.Y > p.BoxMin.Y && p.BoxMax.Z > p.BoxMin.Z) {
		panic(fmt.Sprintf("container: empty box [%v, %v)", p.BoxMin, p.BoxMax))
	}
}

func (p Params) withDefaults() Params {
	if p.CellSizeFactor == 0 {
		p.CellSizeFactor = 1
	}
	if p.ClusterSize == 0 {
		p.ClusterSize = DefaultClusterSize
	}
	return p
}

// Geometry is the derived partitioning a rebuild produces.
type Geometry struct {
	RegionLength                r3.Vec // cell length, tower side length or smallest leaf edge
	RegionsPerDim               [3]int
	NumRegions                  int // cells, clusters or leaves
	RegionsPerInteractionLength int
}

// Container is the common contract of all spatial containers.
//
// Callers serialize UpdateContainer, AddParticle and AddHaloParticle with
// IteratePairwise; a container does not isolate them from each other.
type Container interface {
	Kind() sim.ContainerOption
	Params() Params

	// AddParticle inserts an owned particle. Safe for concurrent use.
	AddParticle(p sim.Particle) error
	// AddHaloParticle inserts a halo copy. Safe for concurrent use.
	AddHaloParticle(p sim.Particle) error
	DeleteHaloParticles()

	// UpdateContainer drops halo particles, re-bins drifted owned particles
	// and returns the owned particles that left the box.
	UpdateContainer() ([]sim.Particle, error)

	// RebuildNeighborLists re-derives the partitioning and cached neighbor
	// relations for the given Newton3 mode.
	RebuildNeighborLists(newton3 bool) (Geometry, error)

	// CheckNeighborListsAreValid reports whether no owned particle moved
	// more than skin/2 since the last rebuild.
	CheckNeighborListsAreValid() bool

	IteratePairwise(t Traversal) error

	// NumParticles counts owned and halo particles, never dummies.
	NumParticles() int
	ForEach(behavior sim.IteratorBehavior, fn func(p *sim.Particle))
	ForEachInRegion(lo, hi r3.Vec, behavior sim.IteratorBehavior, fn func(p *sim.Particle))
}

// New returns an empty container of the given kind. Panics on an unknown kind
// or invalid parameters.
func New(kind sim.ContainerOption, p Params) Container {
	p = p.withDefaults()
	p.validate()
	switch kind {
	case sim.DirectSum:
		return NewDirectSum(p)
	case sim.LinkedCells:
		return NewLinkedCells(p)
	case sim.VerletLists:
		return NewVerletLists(p)
	case sim.VerletClusterLists:
		return NewVerletClusterLists(p)
	case sim.Octree:
		return NewOctree(p)
	}
	panic(fmt.Sprintf("container: unknown container kind %v", kind))
}

// Collect returns copies of the particles matching behavior.
func Collect(c Container, behavior sim.IteratorBehavior) []sim.Particle {
	out := make([]sim.Particle, 0, c.NumParticles())
	c.ForEach(behavior, func(p *sim.Particle) {
		out = append(out, *p)
	})
	return out
}

// Migrate copies every owned and halo particle of from into to.
func Migrate(from, to Container) error {
	var err error
	from.ForEach(sim.OwnedOrHalo, func(p *sim.Particle) {
		if err != nil {
			return
		}
		if p.IsOwned() {
			err = to.AddParticle(*p)
		} else {
			err = to.AddHaloParticle(*p)
		}
	})
	return err
}

func checkOwned(p Params, part sim.Particle) error {
	if !sim.IsFinite(part.R) {
		return fmt.Errorf("%w: particle %d at %v", sim.ErrInvalidParticlePosition, part.ID, part.R)
	}
	if !sim.InBox(part.R, p.BoxMin, p.BoxMax) {
		return fmt.Errorf("%w: particle %d at %v, box [%v, %v)", sim.ErrParticleOutsideBox, part.ID, part.R, p.BoxMin, p.BoxMax)
	}
	return nil
}

func checkHalo(p Params, part sim.Particle) error {
	if !sim.IsFinite(part.R) {
		return fmt.Errorf("%w: halo particle %d at %v", sim.ErrInvalidParticlePosition, part.ID, part.R)
	}
	if sim.InBox(part.R, p.BoxMin, p.BoxMax) {
		return fmt.Errorf("%w: particle %d at %v, box [%v, %v)", sim.ErrHaloInsideBox, part.ID, part.R, p.BoxMin, p.BoxMax)
	}
	return nil
}

// checkRebuildPosition rejects particles a rebuild cannot place: non-finite
// positions and owned particles beyond the halo region.
func checkRebuildPosition(p Params, part *sim.Particle) error {
	if !sim.IsFinite(part.R) {
		return fmt.Errorf("%w: particle %d at %v", sim.ErrInvalidParticlePosition, part.ID, part.R)
	}
	if part.IsOwned() && !inClosedBox(part.R, p.HaloMin(), p.HaloMax()) {
		return fmt.Errorf("%w: owned particle %d at %v is outside the domain [%v, %v]",
			sim.ErrInvalidParticlePosition, part.ID, part.R, p.HaloMin(), p.HaloMax())
	}
	return nil
}

func inClosedBox(r, lo, hi r3.Vec) bool {
	return r.X >= lo.X && r.X <= hi.X &&
		r.Y >= lo.Y && r.Y <= hi.Y &&
		r.Z >= lo.Z && r.Z <= hi.Z
}

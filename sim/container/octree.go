package container

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/mdtune/mdtune/sim"
)

// octreeLeafCapacity is the particle count above which a leaf splits.
const octreeLeafCapacity = 16

const noNode = -1

// Octant bits: x contributes 4, y 2 and z 1. A set bit selects the upper half.
const (
	octantX = 4
	octantY = 2
	octantZ = 1
)

var octantAxisBits = [3]int{octantX, octantY, octantZ}

type octreeNode struct {
	parent   int
	octant   int
	children [8]int
	leaf     bool
	cell     Cell
}

// octreeArena is a pointer-free octree: nodes refer to each other by index.
type octreeArena struct {
	nodes         []octreeNode
	minLeafLength float64
}

func newOctreeArena(lo, hi r3.Vec, minLeafLength float64) *octreeArena {
	a := &octreeArena{minLeafLength: minLeafLength}
	a.newNode(noNode, 0, lo, hi)
	return a
}

func (a *octreeArena) newNode(parent, octant int, lo, hi r3.Vec) int {
	n := octreeNode{parent: parent, octant: octant, leaf: true}
	for i := range n.children {
		n.children[i] = noNode
	}
	n.cell.Min, n.cell.Max = lo, hi
	a.nodes = append(a.nodes, n)
	return len(a.nodes) - 1
}

func (a *octreeArena) center(n int) r3.Vec {
	return r3.Scale(0.5, r3.Add(a.nodes[n].cell.Min, a.nodes[n].cell.Max))
}

// childOctant returns the octant of n that r falls into. Points outside the
// node are clamped onto its nearest child.
func (a *octreeArena) childOctant(n int, r r3.Vec) int {
	c := a.center(n)
	oct := 0
	if r.X >= c.X {
		oct |= octantX
	}
	if r.Y >= c.Y {
		oct |= octantY
	}
	if r.Z >= c.Z {
		oct |= octantZ
	}
	return oct
}

func (a *octreeArena) canSplit(n int) bool {
	size := r3.Sub(a.nodes[n].cell.Max, a.nodes[n].cell.Min)
	return size.X/2 >= a.minLeafLength && size.Y/2 >= a.minLeafLength && size.Z/2 >= a.minLeafLength
}

func (a *octreeArena) insert(p sim.Particle) {
	n := 0
	for !a.nodes[n].leaf {
		n = a.nodes[n].children[a.childOctant(n, p.R)]
	}
	a.nodes[n].cell.add(p)
	if a.nodes[n].cell.Len() > octreeLeafCapacity && a.canSplit(n) {
		a.split(n)
	}
}

func (a *octreeArena) split(n int) {
	lo, hi := a.nodes[n].cell.Min, a.nodes[n].cell.Max
	c := a.center(n)
	for oct := 0; oct < 8; oct++ {
		clo, chi := lo, c
		if oct&octantX != 0 {
			clo.X, chi.X = c.X, hi.X
		}
		if oct&octantY != 0 {
			clo.Y, chi.Y = c.Y, hi.Y
		}
		if oct&octantZ != 0 {
			clo.Z, chi.Z = c.Z, hi.Z
		}
		child := a.newNode(n, oct, clo, chi)
		a.nodes[n].children[oct] = child
	}
	particles := a.nodes[n].cell.Particles
	a.nodes[n].cell.Particles = nil
	a.nodes[n].leaf = false
	for _, p := range particles {
		child := a.nodes[n].children[a.childOctant(n, p.R)]
		a.nodes[child].cell.add(p)
	}
	for oct := 0; oct < 8; oct++ {
		child := a.nodes[n].children[oct]
		if a.nodes[child].cell.Len() > octreeLeafCapacity && a.canSplit(child) {
			a.split(child)
		}
	}
}

// leaves appends the leaves below n in depth-first child order.
func (a *octreeArena) leaves(n int, out []int) []int {
	if a.nodes[n].leaf {
		return append(out, n)
	}
	for _, c := range a.nodes[n].children {
		out = a.leaves(c, out)
	}
	return out
}

// leavesWithin appends the leaves below n whose box lies within dist of
// [lo, hi].
func (a *octreeArena) leavesWithin(n int, lo, hi r3.Vec, distSq float64, out []int) []int {
	cell := &a.nodes[n].cell
	if sim.BoxDistanceSquared(lo, hi, cell.Min, cell.Max) > distSq {
		return out
	}
	if a.nodes[n].leaf {
		return append(out, n)
	}
	for _, c := range a.nodes[n].children {
		out = a.leavesWithin(c, lo, hi, distSq, out)
	}
	return out
}

func (a *octreeArena) particles() []sim.Particle {
	var out []sim.Particle
	for _, n := range a.leaves(0, nil) {
		out = append(out, a.nodes[n].cell.Particles...)
	}
	return out
}

func (a *octreeArena) count() int {
	n := 0
	for _, l := range a.leaves(0, nil) {
		n += a.nodes[l].cell.count()
	}
	return n
}

// Octree keeps owned particles in one octree over the halo-extended box and
// halo particles in a second one. Leaves never get smaller than the
// interaction length times the cell size factor.
type Octree struct {
	params  Params
	mu      sync.Mutex
	owned   *octreeArena
	halo    *octreeArena
	topo    OctreeTopology
	built   bool
	dirty   bool
	tracker displacementTracker
}

// NewOctree returns an empty octree container.
func NewOctree(p Params) *Octree {
	p = p.withDefaults()
	p.validate()
	o := &Octree{params: p, tracker: newDisplacementTracker(p.Skin)}
	o.owned = o.newArena(nil)
	o.halo = o.newArena(nil)
	return o
}

func (o *Octree) minLeafLength() float64 {
	return o.params.InteractionLength() * o.params.CellSizeFactor
}

// newArena returns an empty tree whose root spans the halo-extended box and
// every given particle.
func (o *Octree) newArena(particles []sim.Particle) *octreeArena {
	lo, hi := o.params.HaloMin(), o.params.HaloMax()
	for _, p := range particles {
		lo = r3.Vec{X: math.Min(lo.X, p.R.X), Y: math.Min(lo.Y, p.R.Y), Z: math.Min(lo.Z, p.R.Z)}
		hi = r3.Vec{X: math.Max(hi.X, p.R.X), Y: math.Max(hi.Y, p.R.Y), Z: math.Max(hi.Z, p.R.Z)}
	}
	return newOctreeArena(lo, hi, o.minLeafLength())
}

func (o *Octree) Kind() sim.ContainerOption { return sim.Octree }
func (o *Octree) Params() Params            { return o.params }

// Topology exposes the leaves and neighbor relations of the last rebuild.
func (o *Octree) Topology() *OctreeTopology { return &o.topo }

func (o *Octree) AddParticle(p sim.Particle) error {
	if err := checkOwned(o.params, p); err != nil {
		return err
	}
	p.Ownership = sim.Owned
	o.mu.Lock()
	o.owned.insert(p)
	o.dirty = true
	o.mu.Unlock()
	return nil
}

func (o *Octree) AddHaloParticle(p sim.Particle) error {
	if err := checkHalo(o.params, p); err != nil {
		return err
	}
	p.Ownership = sim.Halo
	o.mu.Lock()
	o.halo.insert(p)
	o.dirty = true
	o.mu.Unlock()
	return nil
}

func (o *Octree) DeleteHaloParticles() {
	o.halo = o.newArena(nil)
	o.dirty = true
}

func (o *Octree) UpdateContainer() ([]sim.Particle, error) {
	o.DeleteHaloParticles()
	var kept, leaving []sim.Particle
	for _, p := range o.owned.particles() {
		if !sim.IsFinite(p.R) {
			return nil, checkOwned(o.params, p)
		}
		if sim.InBox(p.R, o.params.BoxMin, o.params.BoxMax) {
			kept = append(kept, p)
		} else {
			leaving = append(leaving, p)
		}
	}
	o.owned = o.newArena(nil)
	for _, p := range kept {
		o.owned.insert(p)
	}
	return leaving, nil
}

// RebuildNeighborLists rebuilds both trees from scratch and recomputes the
// leaf neighbor relations.
func (o *Octree) RebuildNeighborLists(bool) (Geometry, error) {
	owned, halo := o.owned.particles(), o.halo.particles()
	for _, set := range [][]sim.Particle{owned, halo} {
		for i := range set {
			if err := checkRebuildPosition(o.params, &set[i]); err != nil {
				return Geometry{}, err
			}
		}
	}
	o.owned = o.newArena(owned)
	for _, p := range owned {
		o.owned.insert(p)
	}
	o.halo = o.newArena(halo)
	for _, p := range halo {
		o.halo.insert(p)
	}
	o.topo = buildOctreeTopology(o.owned, o.halo, o.params.InteractionLength())
	o.built = true
	o.dirty = false
	o.tracker.snapshot(o.ForEach)

	smallest := math.Inf(1)
	for _, leaf := range o.topo.Leaves {
		size := r3.Sub(leaf.Cell.Max, leaf.Cell.Min)
		smallest = math.Min(smallest, math.Min(size.X, math.Min(size.Y, size.Z)))
	}
	return Geometry{
		RegionLength:                r3.Vec{X: smallest, Y: smallest, Z: smallest},
		RegionsPerDim:               [3]int{1, 1, 1},
		NumRegions:                  len(o.topo.Leaves),
		RegionsPerInteractionLength: 1,
	}, nil
}

func (o *Octree) CheckNeighborListsAreValid() bool { return o.tracker.valid(o.ForEach) }

func (o *Octree) IteratePairwise(t Traversal) error {
	if !o.built || o.dirty {
		if _, err := o.RebuildNeighborLists(t.UseNewton3()); err != nil {
			return err
		}
	}
	return iteratePairwise(sim.Octree, &o.topo, t)
}

func (o *Octree) NumParticles() int { return o.owned.count() + o.halo.count() }

func (o *Octree) ForEach(behavior sim.IteratorBehavior, fn func(p *sim.Particle)) {
	for _, a := range []*octreeArena{o.owned, o.halo} {
		for _, n := range a.leaves(0, nil) {
			a.nodes[n].cell.forEach(behavior, fn)
		}
	}
}

func (o *Octree) ForEachInRegion(lo, hi r3.Vec, behavior sim.IteratorBehavior, fn func(p *sim.Particle)) {
	for _, a := range []*octreeArena{o.owned, o.halo} {
		for _, n := range a.leavesWithin(0, lo, hi, 0, nil) {
			a.nodes[n].cell.forEachInRegion(lo, hi, behavior, fn)
		}
	}
}

package traversal

import (
	"github.com/mdtune/mdtune/sim/container"
)

type octreeTraversal struct {
	base
	topo *container.OctreeTopology
}

func (t *octreeTraversal) Bind(topo container.Topology) error {
	ot, ok := topo.(*container.OctreeTopology)
	if !ok {
		return wrongTopology(t.kind, topo)
	}
	t.topo = ot
	return nil
}

func (t *octreeTraversal) InitTraversal() {
	if t.soa() {
		for _, leaf := range t.topo.Leaves {
			leaf.Cell.SoA.Load(leaf.Cell.Particles)
		}
	}
}

func (t *octreeTraversal) EndTraversal() {
	if t.soa() {
		for _, leaf := range t.topo.Leaves {
			leaf.Cell.SoA.Extract(leaf.Cell.Particles)
		}
	}
}

// otC18 visits each owned leaf with itself, with every halo neighbor and
// with owned neighbors of higher ID. Newton3 only.
type otC18 struct {
	octreeTraversal
}

func (t *otC18) IsApplicable() bool {
	return t.newton3 && t.functorAllows()
}

func (t *otC18) TraverseParticlePairs() {
	for i := 0; i < t.topo.NumOwnedLeaves; i++ {
		leaf := t.topo.Leaves[i].Cell
		t.processCell(leaf)
		for _, j := range t.topo.Neighbors[i] {
			other := t.topo.Leaves[j]
			if other.Halo || j > i {
				t.processCellPair(leaf, other.Cell, false)
			}
		}
	}
}

// otC01 visits each owned leaf with itself and all neighbors, writing only
// to the owned leaf, so leaves run in parallel. Non-Newton3 only.
type otC01 struct {
	octreeTraversal
}

func (t *otC01) IsApplicable() bool {
	return !t.newton3 && t.functorAllows()
}

func (t *otC01) TraverseParticlePairs() {
	parallelFor(t.numWorkers(), t.topo.NumOwnedLeaves, func(i int) {
		leaf := t.topo.Leaves[i].Cell
		t.processCell(leaf)
		for _, j := range t.topo.Neighbors[i] {
			t.processCellPair(leaf, t.topo.Leaves[j].Cell, false)
		}
	})
}

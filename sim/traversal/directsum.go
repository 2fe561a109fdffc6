package traversal

import (
	"github.com/mdtune/mdtune/sim/container"
)

// dsSequential checks every owned pair and every owned-halo pair.
type dsSequential struct {
	base
	topo *container.DirectSumTopology
}

func (t *dsSequential) IsApplicable() bool { return t.functorAllows() }

func (t *dsSequential) Bind(topo container.Topology) error {
	ds, ok := topo.(*container.DirectSumTopology)
	if !ok {
		return wrongTopology(t.kind, topo)
	}
	t.topo = ds
	return nil
}

func (t *dsSequential) InitTraversal() {
	if t.soa() {
		t.topo.Owned.SoA.Load(t.topo.Owned.Particles)
		t.topo.Halo.SoA.Load(t.topo.Halo.Particles)
	}
}

func (t *dsSequential) TraverseParticlePairs() {
	t.processCell(t.topo.Owned)
	t.processCellPair(t.topo.Owned, t.topo.Halo, false)
}

func (t *dsSequential) EndTraversal() {
	if t.soa() {
		t.topo.Owned.SoA.Extract(t.topo.Owned.Particles)
		t.topo.Halo.SoA.Extract(t.topo.Halo.Particles)
	}
}

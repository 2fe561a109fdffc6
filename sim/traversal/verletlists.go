package traversal

import (
	"fmt"

	"github.com/mdtune/mdtune/sim"
	"github.com/mdtune/mdtune/sim/container"
)

// vlListIteration walks the per-particle neighbor lists. Without newton3
// each particle only writes itself, so particles run in parallel.
type vlListIteration struct {
	base
	lists  *container.VerletListTopology
	soaBuf sim.SoA
}

func (t *vlListIteration) IsApplicable() bool { return t.functorAllows() }

func (t *vlListIteration) Bind(topo container.Topology) error {
	vl, ok := topo.(*container.VerletListTopology)
	if !ok {
		return wrongTopology(t.kind, topo)
	}
	if vl.Newton3 != t.newton3 {
		return fmt.Errorf("%w: neighbor lists built for newton3=%t", sim.ErrInvalidConfiguration, vl.Newton3)
	}
	t.lists = vl
	return nil
}

func (t *vlListIteration) InitTraversal() {
	if t.soa() {
		t.soaBuf.LoadRefs(t.lists.Refs)
	}
}

func (t *vlListIteration) TraverseParticlePairs() {
	refs, neighbors := t.lists.Refs, t.lists.Neighbors
	visit := func(i int) {
		if t.soa() {
			if len(neighbors[i]) > 0 {
				t.functor.SoAFunctorVerlet(&t.soaBuf, i, neighbors[i], t.newton3)
			}
			return
		}
		for _, j := range neighbors[i] {
			t.functor.AoSFunctor(refs[i], refs[j], t.newton3)
		}
	}
	if t.newton3 {
		for i := range refs {
			visit(i)
		}
		return
	}
	parallelFor(t.numWorkers(), len(refs), visit)
}

func (t *vlListIteration) EndTraversal() {
	if t.soa() {
		t.soaBuf.ExtractRefs(t.lists.Refs)
	}
}

package container

import (
	"fmt"

	"github.com/mdtune/mdtune/sim"
)

// Traversal walks a container topology and feeds candidate pairs to a
// functor. Implementations live in sim/traversal.
type Traversal interface {
	Kind() sim.TraversalOption
	DataLayout() sim.DataLayoutOption
	UseNewton3() bool

	// IsApplicable reports whether the traversal supports its data layout and
	// Newton3 mode with its functor.
	IsApplicable() bool

	// Bind hands the container topology to the traversal. It fails with
	// sim.ErrIncompatibleTraversal when the topology has the wrong shape.
	Bind(topology Topology) error

	InitTraversal()
	TraverseParticlePairs()
	EndTraversal()
}

// Topology is one of *DirectSumTopology, *CellGrid, *VerletListTopology,
// *ClusterTopology or *OctreeTopology.
type Topology interface {
	topology()
}

// iteratePairwise is the shared IteratePairwise body: compatibility check,
// applicability check, then the traversal lifecycle.
func iteratePairwise(kind sim.ContainerOption, topo Topology, t Traversal) error {
	if !sim.IsCompatible(kind, t.Kind()) {
		return fmt.Errorf("%w: %s cannot traverse %s", sim.ErrIncompatibleTraversal, t.Kind(), kind)
	}
	if !t.IsApplicable() {
		return fmt.Errorf("%w: %s with layout %s and newton3=%t", sim.ErrInvalidConfiguration,
			t.Kind(), t.DataLayout(), t.UseNewton3())
	}
	if err := t.Bind(topo); err != nil {
		return err
	}
	t.InitTraversal()
	t.TraverseParticlePairs()
	t.EndTraversal()
	return nil
}

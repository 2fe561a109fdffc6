package traversal

import (
	"fmt"

	"github.com/mdtune/mdtune/sim"
	"github.com/mdtune/mdtune/sim/container"
)

// clusterTraversal binds to verlet cluster lists.
type clusterTraversal struct {
	base
	topo *container.ClusterTopology
}

func (t *clusterTraversal) clusterApplicable() bool {
	return t.functorAllows() && t.functor.IsAppropriateClusterSize(t.clusterSize, t.layout)
}

func (t *clusterTraversal) Bind(topo container.Topology) error {
	ct, ok := topo.(*container.ClusterTopology)
	if !ok {
		return wrongTopology(t.kind, topo)
	}
	if ct.Newton3 != t.newton3 {
		return fmt.Errorf("%w: cluster lists built for newton3=%t", sim.ErrInvalidConfiguration, ct.Newton3)
	}
	if ct.ClusterSize != t.clusterSize {
		return fmt.Errorf("%w: container cluster size %d, traversal expects %d",
			sim.ErrInvalidConfiguration, ct.ClusterSize, t.clusterSize)
	}
	t.topo = ct
	return nil
}

func (t *clusterTraversal) InitTraversal() {
	if t.soa() {
		for _, tower := range t.topo.Towers {
			tower.LoadSoA()
		}
	}
}

func (t *clusterTraversal) EndTraversal() {
	if t.soa() {
		for _, tower := range t.topo.Towers {
			tower.ExtractSoA()
		}
	}
}

// processCluster evaluates the pairs inside cluster c of tower ti and with
// every cluster on its neighbor list.
func (t *clusterTraversal) processCluster(ti, c int) {
	tower := t.topo.Towers[ti]
	if t.soa() {
		own := tower.ClusterSoA(c)
		t.functor.SoAFunctorSingle(own, t.newton3)
		for _, ref := range t.topo.Neighbors[ti][c] {
			t.functor.SoAFunctorPair(own, t.topo.Towers[ref.Tower].ClusterSoA(ref.Cluster), t.newton3)
		}
		return
	}
	own := tower.Cluster(c)
	t.aosSingle(own)
	for _, ref := range t.topo.Neighbors[ti][c] {
		t.aosPair(own, t.topo.Towers[ref.Tower].Cluster(ref.Cluster), false)
	}
}

// vclClusterIteration visits clusters in order. Without newton3 each
// cluster only writes itself and the thread partition ranges run in
// parallel; with newton3 it runs sequentially.
type vclClusterIteration struct {
	clusterTraversal
}

func (t *vclClusterIteration) IsApplicable() bool { return t.clusterApplicable() }

func (t *vclClusterIteration) TraverseParticlePairs() {
	if t.newton3 {
		for ti, tower := range t.topo.Towers {
			for c := 0; c < tower.NumClusters(); c++ {
				t.processCluster(ti, c)
			}
		}
		return
	}
	ranges := t.topo.Partition
	parallelFor(t.numWorkers(), len(ranges), func(i int) {
		t.topo.ForEachClusterInRange(ranges[i], t.processCluster)
	})
}

// vclC06 colors towers with a stride of 2n+1 per axis, n being the towers
// per interaction length. Towers of one color are far enough apart that
// their writes never overlap, so each color runs in parallel.
type vclC06 struct {
	clusterTraversal
}

func (t *vclC06) IsApplicable() bool { return t.clusterApplicable() }

func (t *vclC06) TraverseParticlePairs() {
	stride := 2*t.topo.TowersPerInteractionLength + 1
	dims := t.topo.TowersPerDim
	for cy := 0; cy < stride; cy++ {
		for cx := 0; cx < stride; cx++ {
			var towers []int
			for y := cy; y < dims[1]; y += stride {
				for x := cx; x < dims[0]; x += stride {
					towers = append(towers, t.topo.TowerIndex(x, y))
				}
			}
			parallelFor(t.numWorkers(), len(towers), func(i int) {
				ti := towers[i]
				for c := 0; c < t.topo.Towers[ti].NumClusters(); c++ {
					t.processCluster(ti, c)
				}
			})
		}
	}
}

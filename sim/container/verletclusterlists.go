package container

import (
	"math"
	"runtime"
	"sync"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/mdtune/mdtune/sim"
)

// minPairsPerWorker is the smallest amount of cluster-pair work handed to a
// worker by the cluster thread partition.
const minPairsPerWorker = 1000

// ClusterRef addresses cluster Cluster of tower Tower.
type ClusterRef struct {
	Tower, Cluster int
}

// ClusterRange is a contiguous run of clusters in tower-major order, possibly
// spanning several towers.
type ClusterRange struct {
	StartTower   int
	StartCluster int
	NumClusters  int
}

// ClusterTopology is what cluster traversals walk.
type ClusterTopology struct {
	Towers                     []*ClusterTower
	TowersPerDim               [2]int
	TowerSideLength            float64
	TowersPerInteractionLength int
	ClusterSize                int
	// Neighbors[t][c] lists the partner clusters of cluster c in tower t.
	// With Newton3 lists a pair appears only under its smaller ClusterRef.
	Neighbors [][][]ClusterRef
	Newton3   bool
	Partition []ClusterRange
}

func (*ClusterTopology) topology() {}

// TowerIndex returns the linear index of tower (x, y).
func (t *ClusterTopology) TowerIndex(x, y int) int { return y*t.TowersPerDim[0] + x }

// TowerCoords is the inverse of TowerIndex.
func (t *ClusterTopology) TowerCoords(i int) (x, y int) {
	return i % t.TowersPerDim[0], i / t.TowersPerDim[0]
}

// ForEachClusterInRange calls fn for every cluster of r in order.
func (t *ClusterTopology) ForEachClusterInRange(r ClusterRange, fn func(tower, cluster int)) {
	tower, cluster := r.StartTower, r.StartCluster
	for n := 0; n < r.NumClusters; n++ {
		for cluster >= t.Towers[tower].NumClusters() {
			tower++
			cluster = 0
		}
		fn(tower, cluster)
		cluster++
	}
}

func (t *ClusterTopology) numClusters() int {
	n := 0
	for _, tw := range t.Towers {
		n += tw.NumClusters()
	}
	return n
}

// VerletClusterLists groups particles into z-sorted clusters inside towers on
// an xy grid and caches cluster-cluster neighbor lists.
type VerletClusterLists struct {
	params  Params
	mu      sync.Mutex
	pending []sim.Particle
	topo    ClusterTopology
	built   bool
	dirty   bool
	tracker displacementTracker
}

// NewVerletClusterLists returns an empty verlet-cluster-lists container.
func NewVerletClusterLists(p Params) *VerletClusterLists {
	p = p.withDefaults()
	p.validate()
	return &VerletClusterLists{params: p, tracker: newDisplacementTracker(p.Skin)}
}

func (v *VerletClusterLists) Kind() sim.ContainerOption { return sim.VerletClusterLists }
func (v *VerletClusterLists) Params() Params            { return v.params }

// Topology exposes the towers and lists of the last rebuild.
func (v *VerletClusterLists) Topology() *ClusterTopology { return &v.topo }

func (v *VerletClusterLists) AddParticle(p sim.Particle) error {
	if err := checkOwned(v.params, p); err != nil {
		return err
	}
	p.Ownership = sim.Owned
	v.appendPending(p)
	return nil
}

func (v *VerletClusterLists) AddHaloParticle(p sim.Particle) error {
	if err := checkHalo(v.params, p); err != nil {
		return err
	}
	p.Ownership = sim.Halo
	v.appendPending(p)
	return nil
}

func (v *VerletClusterLists) appendPending(p sim.Particle) {
	v.mu.Lock()
	v.pending = append(v.pending, p)
	v.dirty = true
	v.mu.Unlock()
}

// collectAll empties the towers into pending.
func (v *VerletClusterLists) collectAll() {
	for _, t := range v.topo.Towers {
		v.pending = append(v.pending, t.CollectAllActualParticles()...)
	}
	v.topo.Towers = nil
	v.topo.Neighbors = nil
	v.dirty = true
}

func (v *VerletClusterLists) DeleteHaloParticles() {
	v.collectAll()
	kept := v.pending[:0]
	for _, p := range v.pending {
		if p.IsOwned() {
			kept = append(kept, p)
		}
	}
	v.pending = kept
}

func (v *VerletClusterLists) UpdateContainer() ([]sim.Particle, error) {
	v.DeleteHaloParticles()
	var leaving []sim.Particle
	kept := v.pending[:0]
	for _, p := range v.pending {
		if !sim.IsFinite(p.R) {
			return nil, checkOwned(v.params, p)
		}
		if sim.InBox(p.R, v.params.BoxMin, v.params.BoxMax) {
			kept = append(kept, p)
		} else {
			leaving = append(leaving, p)
		}
	}
	v.pending = kept
	return leaving, nil
}

// RebuildNeighborLists re-towers every particle, regenerates clusters and
// recomputes cluster neighbor lists.
func (v *VerletClusterLists) RebuildNeighborLists(newton3 bool) (Geometry, error) {
	v.collectAll()
	for i := range v.pending {
		if err := checkRebuildPosition(v.params, &v.pending[i]); err != nil {
			return Geometry{}, err
		}
	}
	all := v.pending
	v.pending = nil

	il := v.params.InteractionLength()
	haloMin, haloMax := v.params.HaloMin(), v.params.HaloMax()
	extent := r3.Sub(haloMax, haloMin)
	side := estimateTowerSideLength(extent, len(all), v.params.ClusterSize)

	topo := ClusterTopology{
		TowerSideLength:            side,
		TowersPerInteractionLength: int(math.Ceil(il / side)),
		ClusterSize:                v.params.ClusterSize,
		Newton3:                    newton3,
	}
	topo.TowersPerDim[0] = maxInt(1, int(math.Ceil(extent.X/side)))
	topo.TowersPerDim[1] = maxInt(1, int(math.Ceil(extent.Y/side)))
	topo.Towers = make([]*ClusterTower, topo.TowersPerDim[0]*topo.TowersPerDim[1])
	for i := range topo.Towers {
		topo.Towers[i] = NewClusterTower(v.params.ClusterSize)
	}
	for _, p := range all {
		x := clampInt(int(math.Floor((p.R.X-haloMin.X)/side)), 0, topo.TowersPerDim[0]-1)
		y := clampInt(int(math.Floor((p.R.Y-haloMin.Y)/side)), 0, topo.TowersPerDim[1]-1)
		topo.Towers[topo.TowerIndex(x, y)].AddParticle(p)
	}
	dummyStartX := haloMax.X + 8*il
	for _, t := range topo.Towers {
		t.GenerateClusters()
		t.FillUpWithDummyParticles(dummyStartX, 2*il)
	}

	topo.Neighbors = buildClusterNeighbors(&topo, il)
	topo.Partition = clusterThreadPartition(&topo, runtime.GOMAXPROCS(0))

	v.topo = topo
	v.built = true
	v.dirty = false
	v.tracker.snapshot(v.ForEach)
	return Geometry{
		RegionLength:                r3.Vec{X: side, Y: side, Z: extent.Z},
		RegionsPerDim:               [3]int{topo.TowersPerDim[0], topo.TowersPerDim[1], 1},
		NumRegions:                  topo.numClusters(),
		RegionsPerInteractionLength: topo.TowersPerInteractionLength,
	}, nil
}

// estimateTowerSideLength picks a square tower edge so that a tower holds
// about one cluster per interaction-length of height at uniform density.
func estimateTowerSideLength(extent r3.Vec, numParticles, clusterSize int) float64 {
	if numParticles == 0 {
		return math.Max(extent.X, extent.Y)
	}
	volume := extent.X * extent.Y * extent.Z
	density := float64(numParticles) / volume
	return math.Cbrt(float64(clusterSize) / density)
}

func buildClusterNeighbors(topo *ClusterTopology, il float64) [][][]ClusterRef {
	ilSq := il * il
	n := topo.TowersPerInteractionLength
	neighbors := make([][][]ClusterRef, len(topo.Towers))
	for ti, tower := range topo.Towers {
		neighbors[ti] = make([][]ClusterRef, tower.NumClusters())
		tx, ty := topo.TowerCoords(ti)
		for ci := 0; ci < tower.NumClusters(); ci++ {
			lo1, hi1, ok := tower.ClusterBounds(ci)
			if !ok {
				continue
			}
			owned1 := tower.ClusterHasOwned(ci)
			for y := maxInt(0, ty-n); y <= minInt(topo.TowersPerDim[1]-1, ty+n); y++ {
				for x := maxInt(0, tx-n); x <= minInt(topo.TowersPerDim[0]-1, tx+n); x++ {
					tj := topo.TowerIndex(x, y)
					other := topo.Towers[tj]
					for cj := 0; cj < other.NumClusters(); cj++ {
						if tj == ti && cj == ci {
							continue
						}
						if topo.Newton3 && (tj < ti || (tj == ti && cj < ci)) {
							continue
						}
						if !owned1 && !other.ClusterHasOwned(cj) {
							continue
						}
						lo2, hi2, ok := other.ClusterBounds(cj)
						if ok && sim.BoxDistanceSquared(lo1, hi1, lo2, hi2) <= ilSq {
							neighbors[ti][ci] = append(neighbors[ti][ci], ClusterRef{Tower: tj, Cluster: cj})
						}
					}
				}
			}
		}
	}
	return neighbors
}

// clusterThreadPartition cuts the clusters into contiguous ranges of roughly
// equal pair work, at least minPairsPerWorker pairs each.
func clusterThreadPartition(topo *ClusterTopology, numWorkers int) []ClusterRange {
	total := 0
	for ti := range topo.Towers {
		for ci := range topo.Neighbors[ti] {
			total += len(topo.Neighbors[ti][ci]) + 1
		}
	}
	perWorker := maxInt(minPairsPerWorker, (total+numWorkers-1)/maxInt(numWorkers, 1))

	var ranges []ClusterRange
	current := ClusterRange{StartTower: -1}
	work := 0
	for ti := range topo.Towers {
		for ci := range topo.Neighbors[ti] {
			if current.StartTower < 0 {
				current = ClusterRange{StartTower: ti, StartCluster: ci}
			}
			current.NumClusters++
			work += len(topo.Neighbors[ti][ci]) + 1
			if work >= perWorker {
				ranges = append(ranges, current)
				current = ClusterRange{StartTower: -1}
				work = 0
			}
		}
	}
	if current.StartTower >= 0 {
		ranges = append(ranges, current)
	}
	return ranges
}

func (v *VerletClusterLists) CheckNeighborListsAreValid() bool { return v.tracker.valid(v.ForEach) }

// IteratePairwise rebuilds first when particles were added since the last
// rebuild or the traversal needs lists of the other Newton3 mode.
func (v *VerletClusterLists) IteratePairwise(t Traversal) error {
	if !v.built || v.dirty || v.topo.Newton3 != t.UseNewton3() {
		if _, err := v.RebuildNeighborLists(t.UseNewton3()); err != nil {
			return err
		}
	}
	return iteratePairwise(sim.VerletClusterLists, &v.topo, t)
}

func (v *VerletClusterLists) NumParticles() int {
	n := len(v.pending)
	for _, t := range v.topo.Towers {
		n += t.NumActualParticles()
	}
	return n
}

func (v *VerletClusterLists) ForEach(behavior sim.IteratorBehavior, fn func(p *sim.Particle)) {
	for _, t := range v.topo.Towers {
		t.ForEach(behavior, fn)
	}
	for i := range v.pending {
		if behavior.Contains(&v.pending[i]) {
			fn(&v.pending[i])
		}
	}
}

func (v *VerletClusterLists) ForEachInRegion(lo, hi r3.Vec, behavior sim.IteratorBehavior, fn func(p *sim.Particle)) {
	v.ForEach(behavior, func(p *sim.Particle) {
		if sim.InBox(p.R, lo, hi) {
			fn(p)
		}
	})
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

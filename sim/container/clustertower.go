package container

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/mdtune/mdtune/sim"
)

// ClusterTower is a column of particles over one xy grid square, sorted by z
// and cut into clusters of fixed width. The tail of the last cluster is
// padded with dummies.
type ClusterTower struct {
	particles   []sim.Particle
	clusterSize int
	numDummies  int
	numClusters int
	soa         sim.SoA
}

// NewClusterTower returns an empty tower for clusters of the given width.
func NewClusterTower(clusterSize int) *ClusterTower {
	if clusterSize < 1 {
		panic("container: cluster size must be positive")
	}
	return &ClusterTower{clusterSize: clusterSize}
}

// AddParticle appends p. Call GenerateClusters afterwards.
func (t *ClusterTower) AddParticle(p sim.Particle) {
	t.particles = append(t.particles, p)
}

// Clear drops all particles and clusters.
func (t *ClusterTower) Clear() {
	t.particles = t.particles[:0]
	t.numDummies = 0
	t.numClusters = 0
}

// GenerateClusters sorts the particles by z and pads the last cluster with
// copies of the last particle. Returns the number of clusters.
func (t *ClusterTower) GenerateClusters() int {
	t.numClusters = 0
	t.numDummies = 0
	n := len(t.particles)
	if n == 0 {
		return 0
	}
	sort.SliceStable(t.particles, func(i, j int) bool {
		if t.particles[i].R.Z != t.particles[j].R.Z {
			return t.particles[i].R.Z < t.particles[j].R.Z
		}
		return t.particles[i].ID < t.particles[j].ID
	})
	if rest := n % t.clusterSize; rest != 0 {
		t.numDummies = t.clusterSize - rest
	}
	last := t.particles[n-1]
	for i := 0; i < t.numDummies; i++ {
		t.particles = append(t.particles, last)
	}
	t.numClusters = len(t.particles) / t.clusterSize
	return t.numClusters
}

// FillUpWithDummyParticles turns the padding copies into dummies placed at
// x = dummyStartX and z = dummyDistZ * k, far apart from each other and from
// real particles.
func (t *ClusterTower) FillUpWithDummyParticles(dummyStartX, dummyDistZ float64) {
	n := len(t.particles)
	for k := 1; k <= t.numDummies; k++ {
		t.particles[n-k] = sim.Particle{
			ID:        math.MaxInt64,
			R:         r3.Vec{X: dummyStartX, Z: dummyDistZ * float64(k)},
			Ownership: sim.Dummy,
		}
	}
}

func (t *ClusterTower) NumActualParticles() int { return len(t.particles) - t.numDummies }
func (t *ClusterTower) NumDummyParticles() int  { return t.numDummies }
func (t *ClusterTower) NumClusters() int        { return t.numClusters }
func (t *ClusterTower) ClusterSize() int        { return t.clusterSize }

// Cluster returns the particles of cluster i, dummies included.
func (t *ClusterTower) Cluster(i int) []sim.Particle {
	return t.particles[i*t.clusterSize : (i+1)*t.clusterSize]
}

// ClusterBounds returns the bounding box of the real particles of cluster i.
// ok is false for a cluster of dummies only.
func (t *ClusterTower) ClusterBounds(i int) (lo, hi r3.Vec, ok bool) {
	for _, p := range t.Cluster(i) {
		if p.IsDummy() {
			continue
		}
		if !ok {
			lo, hi, ok = p.R, p.R, true
			continue
		}
		lo = r3.Vec{X: math.Min(lo.X, p.R.X), Y: math.Min(lo.Y, p.R.Y), Z: math.Min(lo.Z, p.R.Z)}
		hi = r3.Vec{X: math.Max(hi.X, p.R.X), Y: math.Max(hi.Y, p.R.Y), Z: math.Max(hi.Z, p.R.Z)}
	}
	return lo, hi, ok
}

// ClusterHasOwned reports whether cluster i contains an owned particle.
func (t *ClusterTower) ClusterHasOwned(i int) bool {
	for _, p := range t.Cluster(i) {
		if p.IsOwned() {
			return true
		}
	}
	return false
}

// ForEach visits the real particles; dummies are never visited.
func (t *ClusterTower) ForEach(behavior sim.IteratorBehavior, fn func(p *sim.Particle)) {
	for i := 0; i < t.NumActualParticles(); i++ {
		if behavior.Contains(&t.particles[i]) {
			fn(&t.particles[i])
		}
	}
}

// CollectAllActualParticles returns the real particles and empties the tower.
func (t *ClusterTower) CollectAllActualParticles() []sim.Particle {
	out := make([]sim.Particle, t.NumActualParticles())
	copy(out, t.particles)
	t.Clear()
	return out
}

// LoadSoA fills the tower's SoA buffer, dummies included, and returns it.
// Cluster i occupies entries [i*size, (i+1)*size).
func (t *ClusterTower) LoadSoA() *sim.SoA {
	t.soa.Load(t.particles)
	return &t.soa
}

// SoA returns the buffer filled by the last LoadSoA.
func (t *ClusterTower) SoA() *sim.SoA { return &t.soa }

// ClusterSoA returns the SoA view of cluster i.
func (t *ClusterTower) ClusterSoA(i int) *sim.SoA {
	return t.soa.View(i*t.clusterSize, (i+1)*t.clusterSize)
}

// ExtractSoA writes the SoA forces back into the particles.
func (t *ClusterTower) ExtractSoA() { t.soa.Extract(t.particles) }

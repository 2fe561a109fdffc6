package container

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/mdtune/mdtune/sim"
)

// VerletListTopology is what verlet-list traversals walk. Neighbors[i] holds
// indices into Refs of the partners of Refs[i]. With Newton3 lists every
// unordered pair appears once; otherwise in both directions.
type VerletListTopology struct {
	Grid      *CellGrid
	Refs      []*sim.Particle
	Neighbors [][]int
	Newton3   bool
}

func (*VerletListTopology) topology() {}

// VerletLists caches per-particle neighbor lists built over a linked-cells
// grid. Lists include partners up to cutoff + skin so they stay complete
// while no particle moves more than skin/2.
type VerletLists struct {
	*LinkedCells
	lists VerletListTopology
	built bool
	dirty bool
}

// NewVerletLists returns an empty verlet-lists container.
func NewVerletLists(p Params) *VerletLists {
	return &VerletLists{LinkedCells: NewLinkedCells(p)}
}

func (v *VerletLists) Kind() sim.ContainerOption { return sim.VerletLists }

func (v *VerletLists) AddParticle(p sim.Particle) error {
	if err := v.LinkedCells.AddParticle(p); err != nil {
		return err
	}
	v.markDirty()
	return nil
}

func (v *VerletLists) AddHaloParticle(p sim.Particle) error {
	if err := v.LinkedCells.AddHaloParticle(p); err != nil {
		return err
	}
	v.markDirty()
	return nil
}

func (v *VerletLists) markDirty() {
	v.mu.Lock()
	v.dirty = true
	v.mu.Unlock()
}

func (v *VerletLists) DeleteHaloParticles() {
	v.LinkedCells.DeleteHaloParticles()
	v.dirty = true
}

func (v *VerletLists) UpdateContainer() ([]sim.Particle, error) {
	v.dirty = true
	return v.LinkedCells.UpdateContainer()
}

func (v *VerletLists) RebuildNeighborLists(newton3 bool) (Geometry, error) {
	geom, err := v.LinkedCells.RebuildNeighborLists(newton3)
	if err != nil {
		return Geometry{}, err
	}
	v.buildLists(newton3)
	return geom, nil
}

func (v *VerletLists) buildLists(newton3 bool) {
	g := v.grid
	cellStart := make([]int, g.NumCells()+1)
	refs := make([]*sim.Particle, 0, v.NumParticles())
	for i := range g.Cells {
		cellStart[i] = len(refs)
		for j := range g.Cells[i].Particles {
			refs = append(refs, &g.Cells[i].Particles[j])
		}
	}
	cellStart[g.NumCells()] = len(refs)

	ilSq := v.params.InteractionLength() * v.params.InteractionLength()
	neighbors := make([][]int, len(refs))
	for ci := range g.Cells {
		c := g.Coords(ci)
		for dz := -1; dz <= 1; dz++ {
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					x, y, z := c[0]+dx, c[1]+dy, c[2]+dz
					if x < 0 || y < 0 || z < 0 || x >= g.CellsPerDim[0] || y >= g.CellsPerDim[1] || z >= g.CellsPerDim[2] {
						continue
					}
					cj := g.Index(x, y, z)
					if newton3 && cj < ci {
						continue
					}
					for i := cellStart[ci]; i < cellStart[ci+1]; i++ {
						for j := cellStart[cj]; j < cellStart[cj+1]; j++ {
							if i == j || (newton3 && ci == cj && j < i) {
								continue
							}
							if refs[i].IsHalo() && refs[j].IsHalo() {
								continue
							}
							if r3.Norm2(r3.Sub(refs[i].R, refs[j].R)) <= ilSq {
								neighbors[i] = append(neighbors[i], j)
							}
						}
					}
				}
			}
		}
	}
	v.lists = VerletListTopology{Grid: g, Refs: refs, Neighbors: neighbors, Newton3: newton3}
	v.built = true
	v.dirty = false
}

func (v *VerletLists) IteratePairwise(t Traversal) error {
	if !v.built || v.dirty || v.lists.Newton3 != t.UseNewton3() {
		if _, err := v.RebuildNeighborLists(t.UseNewton3()); err != nil {
			return err
		}
	}
	return iteratePairwise(sim.VerletLists, &v.lists, t)
}

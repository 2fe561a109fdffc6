package container

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/mdtune/mdtune/sim"
)

// CellGrid is a regular grid of cells covering the box plus one halo layer on
// every side. Cell edges are at least the interaction length times the cell
// size factor.
type CellGrid struct {
	Cells       []Cell
	CellsPerDim [3]int // including the halo layers
	CellLength  r3.Vec
	Origin      r3.Vec // lower corner of cell (0, 0, 0)
}

func (*CellGrid) topology() {}

func newCellGrid(p Params) *CellGrid {
	minLength := p.InteractionLength() * p.CellSizeFactor
	box := r3.Sub(p.BoxMax, p.BoxMin)
	g := &CellGrid{}
	lengths := [3]float64{}
	for d := 0; d < 3; d++ {
		extent := sim.Component(box, d)
		n := int(math.Floor(extent / minLength))
		if n < 1 {
			n = 1
		}
		g.CellsPerDim[d] = n + 2
		lengths[d] = math.Max(extent/float64(n), minLength)
	}
	g.CellLength = r3.Vec{X: lengths[0], Y: lengths[1], Z: lengths[2]}
	g.Origin = r3.Sub(p.BoxMin, g.CellLength)
	g.Cells = make([]Cell, g.NumCells())
	for i := range g.Cells {
		c := g.Coords(i)
		g.Cells[i].Min = r3.Vec{
			X: g.Origin.X + float64(c[0])*g.CellLength.X,
			Y: g.Origin.Y + float64(c[1])*g.CellLength.Y,
			Z: g.Origin.Z + float64(c[2])*g.CellLength.Z,
		}
		g.Cells[i].Max = r3.Add(g.Cells[i].Min, g.CellLength)
	}
	return g
}

// NumCells returns the total number of cells including halo cells.
func (g *CellGrid) NumCells() int {
	return g.CellsPerDim[0] * g.CellsPerDim[1] * g.CellsPerDim[2]
}

// Index returns the linear index of cell (x, y, z); x varies fastest.
func (g *CellGrid) Index(x, y, z int) int {
	return (z*g.CellsPerDim[1]+y)*g.CellsPerDim[0] + x
}

// Coords is the inverse of Index.
func (g *CellGrid) Coords(i int) [3]int {
	x := i % g.CellsPerDim[0]
	y := (i / g.CellsPerDim[0]) % g.CellsPerDim[1]
	z := i / (g.CellsPerDim[0] * g.CellsPerDim[1])
	return [3]int{x, y, z}
}

// CoordsOf returns the cell coordinates containing r, clamped to the grid.
func (g *CellGrid) CoordsOf(r r3.Vec) [3]int {
	var c [3]int
	for d := 0; d < 3; d++ {
		v := int(math.Floor((sim.Component(r, d) - sim.Component(g.Origin, d)) / sim.Component(g.CellLength, d)))
		c[d] = clampInt(v, 0, g.CellsPerDim[d]-1)
	}
	return c
}

// CellIndexOf returns the linear index of the cell containing r.
func (g *CellGrid) CellIndexOf(r r3.Vec) int {
	c := g.CoordsOf(r)
	return g.Index(c[0], c[1], c[2])
}

// IsHaloCell reports whether cell i lies in the outer halo layer.
func (g *CellGrid) IsHaloCell(i int) bool {
	c := g.Coords(i)
	for d := 0; d < 3; d++ {
		if c[d] == 0 || c[d] == g.CellsPerDim[d]-1 {
			return true
		}
	}
	return false
}

func (g *CellGrid) forEach(behavior sim.IteratorBehavior, fn func(p *sim.Particle)) {
	for i := range g.Cells {
		g.Cells[i].forEach(behavior, fn)
	}
}

func (g *CellGrid) forEachInRegion(lo, hi r3.Vec, behavior sim.IteratorBehavior, fn func(p *sim.Particle)) {
	from, to := g.CoordsOf(lo), g.CoordsOf(hi)
	for z := from[2]; z <= to[2]; z++ {
		for y := from[1]; y <= to[1]; y++ {
			for x := from[0]; x <= to[0]; x++ {
				g.Cells[g.Index(x, y, z)].forEachInRegion(lo, hi, behavior, fn)
			}
		}
	}
}

// rebin moves every particle into the cell containing it. Relative order
// within a destination cell follows the cell scan order.
func (g *CellGrid) rebin(p Params) error {
	var all []sim.Particle
	for i := range g.Cells {
		for j := range g.Cells[i].Particles {
			if err := checkRebuildPosition(p, &g.Cells[i].Particles[j]); err != nil {
				return err
			}
		}
	}
	for i := range g.Cells {
		all = append(all, g.Cells[i].Particles...)
		g.Cells[i].clear()
	}
	for _, part := range all {
		g.Cells[g.CellIndexOf(part.R)].add(part)
	}
	return nil
}

func (g *CellGrid) geometry(il float64) Geometry {
	return Geometry{
		RegionLength:                g.CellLength,
		RegionsPerDim:               g.CellsPerDim,
		NumRegions:                  g.NumCells(),
		RegionsPerInteractionLength: int(math.Ceil(il / math.Min(g.CellLength.X, math.Min(g.CellLength.Y, g.CellLength.Z)))),
	}
}

// LinkedCells bins particles into a CellGrid; traversals visit neighboring
// cell pairs only.
type LinkedCells struct {
	params  Params
	mu      sync.Mutex
	grid    *CellGrid
	tracker displacementTracker
}

// NewLinkedCells returns an empty linked-cells container.
func NewLinkedCells(p Params) *LinkedCells {
	p = p.withDefaults()
	p.validate()
	return &LinkedCells{params: p, grid: newCellGrid(p), tracker: newDisplacementTracker(p.Skin)}
}

func (l *LinkedCells) Kind() sim.ContainerOption { return sim.LinkedCells }
func (l *LinkedCells) Params() Params            { return l.params }

// Grid exposes the cell grid.
func (l *LinkedCells) Grid() *CellGrid { return l.grid }

func (l *LinkedCells) AddParticle(p sim.Particle) error {
	if err := checkOwned(l.params, p); err != nil {
		return err
	}
	p.Ownership = sim.Owned
	idx := l.grid.CellIndexOf(p.R)
	l.mu.Lock()
	l.grid.Cells[idx].add(p)
	l.mu.Unlock()
	return nil
}

func (l *LinkedCells) AddHaloParticle(p sim.Particle) error {
	if err := checkHalo(l.params, p); err != nil {
		return err
	}
	p.Ownership = sim.Halo
	idx := l.grid.CellIndexOf(p.R)
	l.mu.Lock()
	l.grid.Cells[idx].add(p)
	l.mu.Unlock()
	return nil
}

func (l *LinkedCells) DeleteHaloParticles() { deleteHalo(l.grid.Cells) }

func (l *LinkedCells) UpdateContainer() ([]sim.Particle, error) {
	l.DeleteHaloParticles()
	leaving, err := extractLeaving(l.params, l.grid.Cells)
	if err != nil {
		return nil, err
	}
	if err := l.grid.rebin(l.params); err != nil {
		return nil, err
	}
	return leaving, nil
}

func (l *LinkedCells) RebuildNeighborLists(bool) (Geometry, error) {
	if err := l.grid.rebin(l.params); err != nil {
		return Geometry{}, err
	}
	l.tracker.snapshot(l.ForEach)
	return l.grid.geometry(l.params.InteractionLength()), nil
}

func (l *LinkedCells) CheckNeighborListsAreValid() bool { return l.tracker.valid(l.ForEach) }

func (l *LinkedCells) IteratePairwise(t Traversal) error {
	return iteratePairwise(sim.LinkedCells, l.grid, t)
}

func (l *LinkedCells) NumParticles() int {
	n := 0
	for i := range l.grid.Cells {
		n += l.grid.Cells[i].count()
	}
	return n
}

func (l *LinkedCells) ForEach(behavior sim.IteratorBehavior, fn func(p *sim.Particle)) {
	l.grid.forEach(behavior, fn)
}

func (l *LinkedCells) ForEachInRegion(lo, hi r3.Vec, behavior sim.IteratorBehavior, fn func(p *sim.Particle)) {
	l.grid.forEachInRegion(lo, hi, behavior, fn)
}

func deleteHalo(cells []Cell) {
	for i := range cells {
		kept := cells[i].Particles[:0]
		for _, p := range cells[i].Particles {
			if p.IsOwned() {
				kept = append(kept, p)
			}
		}
		cells[i].Particles = kept
	}
}

// extractLeaving removes owned particles outside the box from cells and
// returns them. Non-finite positions are fatal.
func extractLeaving(p Params, cells []Cell) ([]sim.Particle, error) {
	var leaving []sim.Particle
	for i := range cells {
		kept := cells[i].Particles[:0]
		for _, part := range cells[i].Particles {
			if !sim.IsFinite(part.R) {
				return nil, checkOwned(p, part)
			}
			if part.IsOwned() && !sim.InBox(part.R, p.BoxMin, p.BoxMax) {
				leaving = append(leaving, part)
				continue
			}
			kept = append(kept, part)
		}
		cells[i].Particles = kept
	}
	return leaving, nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

package traversal

import (
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/mdtune/mdtune/sim/container"
)

// c08Pairs is the base step of the c08 stencil as offsets within a 2x2x2
// block: the base cell itself plus 13 cell pairs, so every pair of
// neighboring cells is handled by exactly one block.
var c08Pairs = func() [][2][3]int {
	o := [3]int{0, 0, 0}
	x := [3]int{1, 0, 0}
	y := [3]int{0, 1, 0}
	z := [3]int{0, 0, 1}
	xy := [3]int{1, 1, 0}
	xz := [3]int{1, 0, 1}
	yz := [3]int{0, 1, 1}
	xyz := [3]int{1, 1, 1}
	return [][2][3]int{
		{o, o}, {o, y}, {y, z}, {o, z}, {o, yz},
		{x, yz}, {x, y}, {x, z}, {o, x}, {o, xy},
		{xy, z}, {y, xz}, {o, xz}, {o, xyz},
	}
}()

// cellGridTraversal binds to a linked-cells grid.
type cellGridTraversal struct {
	base
	grid *container.CellGrid
}

func (t *cellGridTraversal) Bind(topo container.Topology) error {
	g, ok := topo.(*container.CellGrid)
	if !ok {
		return wrongTopology(t.kind, topo)
	}
	t.grid = g
	return nil
}

func (t *cellGridTraversal) InitTraversal() {
	if t.soa() {
		loadCells(t.grid.Cells)
	}
}

func (t *cellGridTraversal) EndTraversal() {
	if t.soa() {
		extractCells(t.grid.Cells)
	}
}

// c08Step processes the block whose lower corner is cell c.
func (t *cellGridTraversal) c08Step(c [3]int) {
	g := t.grid
	cell := func(off [3]int) *container.Cell {
		return &g.Cells[g.Index(c[0]+off[0], c[1]+off[1], c[2]+off[2])]
	}
	for _, p := range c08Pairs {
		if p[0] == p[1] {
			t.processCell(cell(p[0]))
			continue
		}
		t.processCellPair(cell(p[0]), cell(p[1]), true)
	}
}

// lcC08 colors base cells by coordinate parity into eight colors. Blocks of
// one color never overlap and run in parallel.
type lcC08 struct {
	cellGridTraversal
}

func (t *lcC08) IsApplicable() bool { return t.functorAllows() }

func (t *lcC08) TraverseParticlePairs() {
	d := t.grid.CellsPerDim
	for color := 0; color < 8; color++ {
		cx, cy, cz := color>>2&1, color>>1&1, color&1
		var bases [][3]int
		for z := cz; z < d[2]-1; z += 2 {
			for y := cy; y < d[1]-1; y += 2 {
				for x := cx; x < d[0]-1; x += 2 {
					bases = append(bases, [3]int{x, y, z})
				}
			}
		}
		parallelFor(t.numWorkers(), len(bases), func(i int) {
			t.c08Step(bases[i])
		})
	}
}

// lcC01 handles every inner cell with all 26 neighbors and writes only to
// the base cell, so all cells run in parallel. Requires non-Newton3.
type lcC01 struct {
	cellGridTraversal
}

func (t *lcC01) IsApplicable() bool { return !t.newton3 && t.functorAllows() }

func (t *lcC01) TraverseParticlePairs() {
	g := t.grid
	d := g.CellsPerDim
	var inner []int
	for i := range g.Cells {
		if !g.IsHaloCell(i) {
			inner = append(inner, i)
		}
	}
	parallelFor(t.numWorkers(), len(inner), func(k int) {
		ci := inner[k]
		c := g.Coords(ci)
		t.processCell(&g.Cells[ci])
		for dz := -1; dz <= 1; dz++ {
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					if dx == 0 && dy == 0 && dz == 0 {
						continue
					}
					x, y, z := c[0]+dx, c[1]+dy, c[2]+dz
					if x < 0 || y < 0 || z < 0 || x >= d[0] || y >= d[1] || z >= d[2] {
						continue
					}
					t.processCellPair(&g.Cells[ci], &g.Cells[g.Index(x, y, z)], false)
				}
			}
		}
	})
}

// lcSliced cuts the grid into slabs along its longest dimension, one
// goroutine per slab, each running c08 base steps layer by layer. Adjacent
// slabs share a boundary layer guarded by a lock held only while the first
// or last layer of a slab is processed. The balanced variant places slab
// boundaries by particle count instead of layer count.
type lcSliced struct {
	cellGridTraversal
	balanced bool
}

func (t *lcSliced) IsApplicable() bool { return t.functorAllows() }

func (t *lcSliced) TraverseParticlePairs() {
	d := t.grid.CellsPerDim
	dim := 0
	for k := 1; k < 3; k++ {
		if d[k] > d[dim] {
			dim = k
		}
	}
	a, b := (dim+1)%3, (dim+2)%3
	layers := d[dim] - 1
	numSlices := max(1, min(t.numWorkers(), layers/2))
	var bounds []int
	if t.balanced {
		bounds = balancedSliceBounds(t.layerLoads(dim), numSlices)
	} else {
		bounds = uniformSliceBounds(layers, numSlices)
	}
	numSlices = len(bounds) - 1

	layer := func(l int) {
		for j := 0; j < d[b]-1; j++ {
			for i := 0; i < d[a]-1; i++ {
				var c [3]int
				c[dim], c[a], c[b] = l, i, j
				t.c08Step(c)
			}
		}
	}

	locks := make([]sync.Mutex, numSlices+1)
	var g errgroup.Group
	for s := 0; s < numSlices; s++ {
		s := s
		g.Go(func() error {
			start, end := bounds[s], bounds[s+1]
			for l := start; l < end; l++ {
				first := l == start && s > 0
				last := l == end-1 && s < numSlices-1
				switch {
				case first:
					locks[s].Lock()
					layer(l)
					locks[s].Unlock()
				case last:
					locks[s+1].Lock()
					layer(l)
					locks[s+1].Unlock()
				default:
					layer(l)
				}
			}
			return nil
		})
	}
	_ = g.Wait()
}

// layerLoads counts the particles in each base layer along dim.
func (t *lcSliced) layerLoads(dim int) []int {
	g := t.grid
	loads := make([]int, g.CellsPerDim[dim]-1)
	for i := range g.Cells {
		l := g.Coords(i)[dim]
		if l < len(loads) {
			loads[l] += g.Cells[i].Len()
		}
	}
	return loads
}

// uniformSliceBounds splits n layers into slices of near equal thickness.
// Slice s covers [bounds[s], bounds[s+1]).
func uniformSliceBounds(n, slices int) []int {
	bounds := make([]int, slices+1)
	thickness, rest := n/slices, n%slices
	for s := 0; s < slices; s++ {
		bounds[s+1] = bounds[s] + thickness
		if s < rest {
			bounds[s+1]++
		}
	}
	return bounds
}

// balancedSliceBounds splits layers into at most slices slices of near equal
// load, each at least two layers thick when there is more than one.
func balancedSliceBounds(loads []int, slices int) []int {
	n := len(loads)
	if slices <= 1 || n < 4 {
		return []int{0, n}
	}
	total := 0
	for _, l := range loads {
		total += l
	}
	bounds := []int{0}
	acc := 0
	for l := 0; l < n; l++ {
		acc += loads[l]
		cut := len(bounds)
		if cut == slices {
			break
		}
		thickness := l + 1 - bounds[cut-1]
		remainingLayers := n - (l + 1)
		remainingSlices := slices - cut
		if thickness >= 2 && remainingLayers >= 2*remainingSlices && acc*slices >= total*cut {
			bounds = append(bounds, l+1)
		}
	}
	return append(bounds, n)
}

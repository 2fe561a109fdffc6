package traversal

import (
	"github.com/mdtune/mdtune/sim"
	"github.com/mdtune/mdtune/sim/container"
)

// processCell evaluates all pairs inside one cell.
func (b *base) processCell(c *container.Cell) {
	if b.soa() {
		b.functor.SoAFunctorSingle(&c.SoA, b.newton3)
		return
	}
	b.aosSingle(c.Particles)
}

func (b *base) aosSingle(ps []sim.Particle) {
	for i := range ps {
		if b.newton3 {
			for j := i + 1; j < len(ps); j++ {
				b.functor.AoSFunctor(&ps[i], &ps[j], true)
			}
			continue
		}
		for j := range ps {
			if i != j {
				b.functor.AoSFunctor(&ps[i], &ps[j], false)
			}
		}
	}
}

// processCellPair evaluates all pairs between two cells. Without newton3 the
// second cell only receives forces when bothWays is set.
func (b *base) processCellPair(c1, c2 *container.Cell, bothWays bool) {
	if b.soa() {
		b.functor.SoAFunctorPair(&c1.SoA, &c2.SoA, b.newton3)
		if !b.newton3 && bothWays {
			b.functor.SoAFunctorPair(&c2.SoA, &c1.SoA, false)
		}
		return
	}
	b.aosPair(c1.Particles, c2.Particles, bothWays)
}

func (b *base) aosPair(p1, p2 []sim.Particle, bothWays bool) {
	for i := range p1 {
		for j := range p2 {
			b.functor.AoSFunctor(&p1[i], &p2[j], b.newton3)
			if !b.newton3 && bothWays {
				b.functor.AoSFunctor(&p2[j], &p1[i], false)
			}
		}
	}
}

func loadCells(cells []container.Cell) {
	for i := range cells {
		cells[i].SoA.Load(cells[i].Particles)
	}
}

func extractCells(cells []container.Cell) {
	for i := range cells {
		cells[i].SoA.Extract(cells[i].Particles)
	}
}

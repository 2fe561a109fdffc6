package generator

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/mdtune/mdtune/sim"
)

// imagesPerParticle is the number of shift vectors in {-1, 0, 1}^3.
const imagesPerParticle = 27

// PeriodicHalo returns the periodic images of owned that lie within il of
// the box [boxMin, boxMax). Images are chosen by the particle's offset from
// each face, so a particle that drifted just past a face still gets its
// image on the opposite side even though that image falls inside the box.
// Image IDs are HaloImageID(base, owner, shift); base must exceed every
// owned ID.
func PeriodicHalo(owned []sim.Particle, boxMin, boxMax r3.Vec, il float64, base int64) []sim.Particle {
	size := r3.Sub(boxMax, boxMin)
	var out []sim.Particle
	for _, p := range owned {
		xs := axisShifts(p.R.X, boxMin.X, boxMax.X, il)
		ys := axisShifts(p.R.Y, boxMin.Y, boxMax.Y, il)
		zs := axisShifts(p.R.Z, boxMin.Z, boxMax.Z, il)
		for _, sz := range zs {
			for _, sy := range ys {
				for _, sx := range xs {
					shift := [3]int{sx, sy, sz}
					if shift == ([3]int{}) {
						continue
					}
					out = append(out, sim.Particle{
						ID:        HaloImageID(base, p.ID, shift),
						R:         ImagePosition(p.R, shift, size),
						V:         p.V,
						Ownership: sim.Halo,
					})
				}
			}
		}
	}
	return out
}

// RefreshHalo moves every halo particle forEach visits to the image of its
// owner's current position, keeping neighbor structures that reference the
// halo particles valid. Halo IDs must come from PeriodicHalo with the same
// base; a halo particle whose owner is not visited keeps its position.
func RefreshHalo(forEach func(sim.IteratorBehavior, func(*sim.Particle)), boxMin, boxMax r3.Vec, base int64) {
	owners := map[int64]r3.Vec{}
	forEach(sim.OwnedOnly, func(p *sim.Particle) { owners[p.ID] = p.R })
	size := r3.Sub(boxMax, boxMin)
	forEach(sim.HaloOnly, func(h *sim.Particle) {
		owner, shift := HaloImageSource(base, h.ID)
		if r, ok := owners[owner]; ok {
			h.R = ImagePosition(r, shift, size)
		}
	})
}

// axisShifts returns the shifts along one axis whose image lands in the halo
// layer: +1 for coordinates within il of the lower face, -1 within il of the
// upper face.
func axisShifts(v, lo, hi, il float64) []int {
	shifts := []int{0}
	if v-lo < il {
		shifts = append(shifts, 1)
	}
	if hi-v <= il {
		shifts = append(shifts, -1)
	}
	return shifts
}

// HaloImageID returns the ID of owner's image under shift.
func HaloImageID(base, owner int64, shift [3]int) int64 {
	s := (shift[0] + 1) + 3*(shift[1]+1) + 9*(shift[2]+1)
	return base + owner*imagesPerParticle + int64(s)
}

// HaloImageSource inverts HaloImageID.
func HaloImageSource(base, id int64) (owner int64, shift [3]int) {
	k := id - base
	owner, s := k/imagesPerParticle, int(k%imagesPerParticle)
	return owner, [3]int{s%3 - 1, (s/3)%3 - 1, s/9 - 1}
}

// ImagePosition returns r shifted by whole box lengths.
func ImagePosition(r r3.Vec, shift [3]int, size r3.Vec) r3.Vec {
	return r3.Vec{
		X: r.X + float64(shift[0])*size.X,
		Y: r.Y + float64(shift[1])*size.Y,
		Z: r.Z + float64(shift[2])*size.Z,
	}
}

// Wrap maps r back into [boxMin, boxMax) periodically.
func Wrap(r, boxMin, boxMax r3.Vec) r3.Vec {
	wrap := func(v, lo, hi float64) float64 {
		l := hi - lo
		v = lo + math.Mod(v-lo, l)
		if v < lo {
			v += l
		}
		if v >= hi {
			v = lo
		}
		return v
	}
	return r3.Vec{
		X: wrap(r.X, boxMin.X, boxMax.X),
		Y: wrap(r.Y, boxMin.Y, boxMax.Y),
		Z: wrap(r.Z, boxMin.Z, boxMax.Z),
	}
}

// Drift moves p by a random step of at most maxStep along each axis.
func Drift(p *sim.Particle, rng *rand.Rand, maxStep float64) {
	step := func() float64 { return (2*rng.Float64() - 1) * maxStep }
	p.R = r3.Add(p.R, r3.Vec{X: step(), Y: step(), Z: step()})
}

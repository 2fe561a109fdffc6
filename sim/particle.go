package sim

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// OwnershipState says whether a particle belongs to this domain, is a copy
// from a neighboring domain, or is synthetic padding.
type OwnershipState uint8

const (
	// Dummy particles pad clusters to a fixed width. They never interact
	// and never appear in public iteration.
	Dummy OwnershipState = iota
	Owned
	Halo
)

func (s OwnershipState) String() string {
	switch s {
	case Dummy:
		return "dummy"
	case Owned:
		return "owned"
	case Halo:
		return "halo"
	}
	return "unknown"
}

// Particle is the unit stored in containers.
type Particle struct {
	ID        int64
	R         r3.Vec // position
	V         r3.Vec // velocity
	F         r3.Vec // accumulated force
	Ownership OwnershipState
}

// NewParticle returns an owned particle at r with velocity v.
func NewParticle(id int64, r, v r3.Vec) Particle {
	return Particle{ID: id, R: r, V: v, Ownership: Owned}
}

func (p *Particle) IsOwned() bool { return p.Ownership == Owned }
func (p *Particle) IsHalo() bool  { return p.Ownership == Halo }
func (p *Particle) IsDummy() bool { return p.Ownership == Dummy }

// AddF adds f to the accumulated force.
func (p *Particle) AddF(f r3.Vec) { p.F = r3.Add(p.F, f) }

// SubF subtracts f from the accumulated force.
func (p *Particle) SubF(f r3.Vec) { p.F = r3.Sub(p.F, f) }

// IteratorBehavior selects which particles an iteration visits. Dummies are
// never visited.
type IteratorBehavior uint8

const (
	OwnedOnly   IteratorBehavior = 1 << iota
	HaloOnly
	OwnedOrHalo = OwnedOnly | HaloOnly
)

// Contains reports whether p is visited under behavior b.
func (b IteratorBehavior) Contains(p *Particle) bool {
	switch p.Ownership {
	case Owned:
		return b&OwnedOnly != 0
	case Halo:
		return b&HaloOnly != 0
	}
	return false
}

// InBox reports whether r lies in the half-open box [lo, hi).
func InBox(r, lo, hi r3.Vec) bool {
	return r.X >= lo.X && r.X < hi.X &&
		r.Y >= lo.Y && r.Y < hi.Y &&
		r.Z >= lo.Z && r.Z < hi.Z
}

// IsFinite reports whether every component of r is a finite number.
func IsFinite(r r3.Vec) bool {
	return !math.IsNaN(r.X) && !math.IsInf(r.X, 0) &&
		!math.IsNaN(r.Y) && !math.IsInf(r.Y, 0) &&
		!math.IsNaN(r.Z) && !math.IsInf(r.Z, 0)
}

// Component returns r's coordinate along axis d (0=x, 1=y, 2=z).
func Component(r r3.Vec, d int) float64 {
	switch d {
	case 0:
		return r.X
	case 1:
		return r.Y
	}
	return r.Z
}

// BoxDistanceSquared returns the squared distance between the axis-aligned
// boxes [lo1, hi1] and [lo2, hi2], zero if they overlap.
func BoxDistanceSquared(lo1, hi1, lo2, hi2 r3.Vec) float64 {
	var sum float64
	for d := 0; d < 3; d++ {
		gap := math.Max(Component(lo2, d)-Component(hi1, d), Component(lo1, d)-Component(hi2, d))
		if gap > 0 {
			sum += gap * gap
		}
	}
	return sum
}

// Package generator places particles for benchmark runs: uniform, lattice
// and gaussian clouds, periodic halo images and random drift between
// iterations. Generation is deterministic given the RunKey.
package generator

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/mdtune/mdtune/sim"
)

// Object kinds.
const (
	KindUniform  = "uniform"
	KindGrid     = "grid"
	KindGaussian = "gaussian"
)

var validKinds = map[string]bool{KindUniform: true, KindGrid: true, KindGaussian: true}

// Object describes one particle cloud.
type Object struct {
	Kind         string     `yaml:"kind"`
	NumParticles int        `yaml:"num_particles"` // uniform, gaussian
	Min          [3]float64 `yaml:"min"`           // uniform bounds, grid origin
	Max          [3]float64 `yaml:"max"`           // uniform bounds
	PerDim       [3]int     `yaml:"particles_per_dim"`
	Spacing      float64    `yaml:"spacing"`
	Mean         [3]float64 `yaml:"mean"`
	Sigma        float64    `yaml:"sigma"`
	Velocity     [3]float64 `yaml:"velocity"`
}

// Spec lists the clouds of a run.
type Spec struct {
	Objects []Object `yaml:"objects"`
}

func vec(a [3]float64) r3.Vec { return r3.Vec{X: a[0], Y: a[1], Z: a[2]} }

// Validate checks every object against the box [boxMin, boxMax).
func (s *Spec) Validate(boxMin, boxMax r3.Vec) error {
	if len(s.Objects) == 0 {
		return fmt.Errorf("no objects")
	}
	for i, o := range s.Objects {
		if !validKinds[o.Kind] {
			return fmt.Errorf("object %d: unknown kind %q", i, o.Kind)
		}
		switch o.Kind {
		case KindUniform:
			if o.NumParticles <= 0 {
				return fmt.Errorf("object %d: num_particles must be positive, got %d", i, o.NumParticles)
			}
			lo, hi := vec(o.Min), vec(o.Max)
			if !(hi.X > lo.X && hi.Y > lo.Y && hi.Z > lo.Z) {
				return fmt.Errorf("object %d: empty region [%v, %v)", i, lo, hi)
			}
			if !sim.InBox(lo, boxMin, boxMax) || hi.X > boxMax.X || hi.Y > boxMax.Y || hi.Z > boxMax.Z {
				return fmt.Errorf("object %d: region [%v, %v) exceeds box [%v, %v)", i, lo, hi, boxMin, boxMax)
			}
		case KindGrid:
			if o.PerDim[0] <= 0 || o.PerDim[1] <= 0 || o.PerDim[2] <= 0 || o.Spacing <= 0 {
				return fmt.Errorf("object %d: grid needs positive particles_per_dim and spacing", i)
			}
			origin := vec(o.Min)
			last := r3.Add(origin, r3.Scale(o.Spacing, r3.Vec{
				X: float64(o.PerDim[0] - 1), Y: float64(o.PerDim[1] - 1), Z: float64(o.PerDim[2] - 1),
			}))
			if !sim.InBox(origin, boxMin, boxMax) || !sim.InBox(last, boxMin, boxMax) {
				return fmt.Errorf("object %d: grid [%v, %v] exceeds box [%v, %v)", i, origin, last, boxMin, boxMax)
			}
		case KindGaussian:
			if o.NumParticles <= 0 || o.Sigma <= 0 {
				return fmt.Errorf("object %d: gaussian needs positive num_particles and sigma", i)
			}
			if !sim.InBox(vec(o.Mean), boxMin, boxMax) {
				return fmt.Errorf("object %d: mean %v outside box", i, vec(o.Mean))
			}
		}
	}
	return nil
}

// Generate creates the owned particles of spec with IDs 0, 1, 2, ...
func Generate(spec *Spec, key sim.RunKey, boxMin, boxMax r3.Vec) ([]sim.Particle, error) {
	if err := spec.Validate(boxMin, boxMax); err != nil {
		return nil, fmt.Errorf("invalid particle spec: %w", err)
	}
	rng := sim.NewPartitionedRNG(key).ForSubsystem(sim.SubsystemGenerator)
	var out []sim.Particle
	for _, o := range spec.Objects {
		v := vec(o.Velocity)
		switch o.Kind {
		case KindUniform:
			out = appendUniform(out, rng, o.NumParticles, vec(o.Min), vec(o.Max), v)
		case KindGrid:
			out = appendGrid(out, o.PerDim, o.Spacing, vec(o.Min), v)
		case KindGaussian:
			out = appendGaussian(out, rng, o.NumParticles, vec(o.Mean), o.Sigma, boxMin, boxMax, v)
		}
	}
	return out, nil
}

func appendUniform(out []sim.Particle, rng *rand.Rand, n int, lo, hi, v r3.Vec) []sim.Particle {
	size := r3.Sub(hi, lo)
	for i := 0; i < n; i++ {
		r := r3.Vec{
			X: lo.X + rng.Float64()*size.X,
			Y: lo.Y + rng.Float64()*size.Y,
			Z: lo.Z + rng.Float64()*size.Z,
		}
		out = append(out, sim.NewParticle(int64(len(out)), r, v))
	}
	return out
}

func appendGrid(out []sim.Particle, perDim [3]int, spacing float64, origin, v r3.Vec) []sim.Particle {
	for z := 0; z < perDim[2]; z++ {
		for y := 0; y < perDim[1]; y++ {
			for x := 0; x < perDim[0]; x++ {
				r := r3.Add(origin, r3.Scale(spacing, r3.Vec{X: float64(x), Y: float64(y), Z: float64(z)}))
				out = append(out, sim.NewParticle(int64(len(out)), r, v))
			}
		}
	}
	return out
}

// appendGaussian redraws samples that fall outside the box.
func appendGaussian(out []sim.Particle, rng *rand.Rand, n int, mean r3.Vec, sigma float64, boxMin, boxMax, v r3.Vec) []sim.Particle {
	for i := 0; i < n; {
		r := r3.Vec{
			X: mean.X + rng.NormFloat64()*sigma,
			Y: mean.Y + rng.NormFloat64()*sigma,
			Z: mean.Z + rng.NormFloat64()*sigma,
		}
		if !sim.InBox(r, boxMin, boxMax) {
			continue
		}
		out = append(out, sim.NewParticle(int64(len(out)), r, v))
		i++
	}
	return out
}

// Uniform returns n owned particles spread uniformly over [lo, hi) with IDs
// starting at firstID.
func Uniform(rng *rand.Rand, n int, lo, hi r3.Vec, firstID int64) []sim.Particle {
	out := appendUniform(nil, rng, n, lo, hi, r3.Vec{})
	for i := range out {
		out[i].ID += firstID
	}
	return out
}

// Package traversal implements the pair traversals of every container kind.
// A traversal is built for one functor, data layout and Newton3 mode, bound
// to a container topology and then run through its Init, Traverse and End
// phases by the container.
package traversal

import (
	"fmt"

	"github.com/mdtune/mdtune/sim"
	"github.com/mdtune/mdtune/sim/container"
)

// Option customizes a traversal.
type Option func(*base)

// WithClusterSize sets the cluster width cluster traversals check against
// the functor. Defaults to container.DefaultClusterSize.
func WithClusterSize(n int) Option {
	return func(b *base) { b.clusterSize = n }
}

// WithWorkers caps the goroutines a parallel traversal uses. Zero means
// GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(b *base) { b.workers = n }
}

// New returns the traversal of the given kind. It fails with
// sim.ErrInvalidOption for an unknown kind.
func New(kind sim.TraversalOption, f sim.Functor, layout sim.DataLayoutOption, newton3 sim.Newton3Option, opts ...Option) (container.Traversal, error) {
	b := base{
		kind:        kind,
		functor:     f,
		layout:      layout,
		newton3:     newton3.Bool(),
		clusterSize: container.DefaultClusterSize,
	}
	for _, o := range opts {
		o(&b)
	}
	switch kind {
	case sim.DSSequential:
		return &dsSequential{base: b}, nil
	case sim.LCC08:
		return &lcC08{cellGridTraversal{base: b}}, nil
	case sim.LCC01:
		return &lcC01{cellGridTraversal{base: b}}, nil
	case sim.LCSliced:
		return &lcSliced{cellGridTraversal: cellGridTraversal{base: b}}, nil
	case sim.LCSlicedBalanced:
		return &lcSliced{cellGridTraversal: cellGridTraversal{base: b}, balanced: true}, nil
	case sim.VLListIteration:
		return &vlListIteration{base: b}, nil
	case sim.VCLClusterIteration:
		return &vclClusterIteration{clusterTraversal{base: b}}, nil
	case sim.VCLC06:
		return &vclC06{clusterTraversal{base: b}}, nil
	case sim.OTC18:
		return &otC18{octreeTraversal{base: b}}, nil
	case sim.OTC01:
		return &otC01{octreeTraversal{base: b}}, nil
	}
	return nil, fmt.Errorf("%w: traversal %d", sim.ErrInvalidOption, kind)
}

// ForConfiguration returns the traversal cfg names.
func ForConfiguration(cfg sim.Configuration, f sim.Functor, opts ...Option) (container.Traversal, error) {
	return New(cfg.Traversal, f, cfg.DataLayout, cfg.Newton3, opts...)
}

// base carries what every traversal shares.
type base struct {
	kind        sim.TraversalOption
	functor     sim.Functor
	layout      sim.DataLayoutOption
	newton3     bool
	clusterSize int
	workers     int
}

func (b *base) Kind() sim.TraversalOption         { return b.kind }
func (b *base) DataLayout() sim.DataLayoutOption { return b.layout }
func (b *base) UseNewton3() bool                 { return b.newton3 }

// functorAllows reports whether the functor supports the traversal's mode.
func (b *base) functorAllows() bool {
	return sim.AllowsNewton3Mode(b.functor, sim.Newton3FromBool(b.newton3))
}

func (b *base) soa() bool { return b.layout == sim.SoALayout }

func wrongTopology(kind sim.TraversalOption, topo container.Topology) error {
	return fmt.Errorf("%w: %s cannot walk %T", sim.ErrIncompatibleTraversal, kind, topo)
}

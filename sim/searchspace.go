package sim

import (
	"fmt"
	"math"
	"sort"
)

// SearchSpaceOptions are the allowed option sets a search space is built from.
// Duplicates are ignored and order does not matter.
type SearchSpaceOptions struct {
	Containers      []ContainerOption
	CellSizeFactors []float64
	Traversals      []TraversalOption
	DataLayouts     []DataLayoutOption
	Newton3         []Newton3Option
}

// DefaultSearchSpaceOptions allows every option with cell size factor 1.
func DefaultSearchSpaceOptions() SearchSpaceOptions {
	return SearchSpaceOptions{
		Containers:      AllContainerOptions(),
		CellSizeFactors: []float64{1},
		Traversals:      AllTraversalOptions(),
		DataLayouts:     AllDataLayoutOptions(),
		Newton3:         AllNewton3Options(),
	}
}

func (o SearchSpaceOptions) String() string {
	return fmt.Sprintf("containers=%v cellSizeFactors=%v traversals=%v dataLayouts=%v newton3=%v",
		o.Containers, o.CellSizeFactors, o.Traversals, o.DataLayouts, o.Newton3)
}

// PopulateSearchSpace enumerates the Cartesian product of the allowed option
// sets, keeping only configurations whose traversal is compatible with their
// container. The result is sorted in Configuration order, which is the
// enumeration order container → cell size factor → traversal → data layout →
// Newton3. An empty result is ErrSearchSpaceEmpty.
func PopulateSearchSpace(opts SearchSpaceOptions) ([]Configuration, error) {
	csfs, err := sortedCellSizeFactors(opts.CellSizeFactors)
	if err != nil {
		return nil, err
	}
	allowedTraversals := make(map[TraversalOption]bool, len(opts.Traversals))
	for _, t := range opts.Traversals {
		allowedTraversals[t] = true
	}
	layouts := sortedUnique(opts.DataLayouts)
	newton3 := sortedUnique(opts.Newton3)

	var space []Configuration
	for _, c := range sortedUnique(opts.Containers) {
		for _, csf := range csfs {
			for _, t := range CompatibleTraversals(c) {
				if !allowedTraversals[t] {
					continue
				}
				for _, l := range layouts {
					for _, n3 := range newton3 {
						space = append(space, NewConfiguration(c, csf, t, l, n3))
					}
				}
			}
		}
	}
	if len(space) == 0 {
		return nil, fmt.Errorf("%w: no compatible configuration for %s", ErrSearchSpaceEmpty, opts)
	}
	return space, nil
}

// RemoveNewton3 returns space without the configurations using mode. The
// input slice is not modified.
func RemoveNewton3(space []Configuration, mode Newton3Option) []Configuration {
	out := make([]Configuration, 0, len(space))
	for _, c := range space {
		if c.Newton3 != mode {
			out = append(out, c)
		}
	}
	return out
}

// ContainersOf returns the distinct container kinds used in space.
func ContainersOf(space []Configuration) []ContainerOption {
	var out []ContainerOption
	for _, c := range space {
		out = append(out, c.Container)
	}
	return sortedUnique(out)
}

func validCellSizeFactor(csf float64) bool {
	return !math.IsNaN(csf) && !math.IsInf(csf, 0) && csf >= 1
}

func sortedCellSizeFactors(in []float64) ([]float64, error) {
	seen := make(map[float64]bool, len(in))
	out := make([]float64, 0, len(in))
	for _, csf := range in {
		if !validCellSizeFactor(csf) {
			return nil, fmt.Errorf("%w: cell size factor %v must be finite and >= 1", ErrInvalidOption, csf)
		}
		if !seen[csf] {
			seen[csf] = true
			out = append(out, csf)
		}
	}
	sort.Float64s(out)
	return out, nil
}

package sim

import (
	"fmt"
	"sort"
	"strings"
)

// ContainerOption identifies a spatial container kind.
type ContainerOption int

const (
	DirectSum ContainerOption = iota
	LinkedCells
	VerletLists
	VerletClusterLists
	Octree

	numContainerOptions
)

var containerNames = map[ContainerOption]string{
	DirectSum:          "direct-sum",
	LinkedCells:        "linked-cells",
	VerletLists:        "verlet-lists",
	VerletClusterLists: "verlet-cluster-lists",
	Octree:             "octree",
}

// TraversalOption identifies a traversal kind. Every traversal belongs to
// exactly one container kind, see CompatibleTraversals.
type TraversalOption int

const (
	DSSequential TraversalOption = iota
	LCC08
	LCC01
	LCSliced
	LCSlicedBalanced
	VLListIteration
	VCLClusterIteration
	VCLC06
	OTC18
	OTC01

	numTraversalOptions
)

var traversalNames = map[TraversalOption]string{
	DSSequential:        "ds-sequential",
	LCC08:               "lc-c08",
	LCC01:               "lc-c01",
	LCSliced:            "lc-sliced",
	LCSlicedBalanced:    "lc-sliced-balanced",
	VLListIteration:     "vl-list-iteration",
	VCLClusterIteration: "vcl-cluster-iteration",
	VCLC06:              "vcl-c06",
	OTC18:               "ot-c18",
	OTC01:               "ot-c01",
}

// DataLayoutOption selects array-of-structures or structure-of-arrays.
type DataLayoutOption int

const (
	AoS DataLayoutOption = iota
	SoALayout

	numDataLayoutOptions
)

var dataLayoutNames = map[DataLayoutOption]string{
	AoS:       "aos",
	SoALayout: "soa",
}

// Newton3Option selects whether a pair is evaluated once and applied to both
// particles (enabled) or evaluated per particle (disabled).
type Newton3Option int

const (
	Newton3Disabled Newton3Option = iota
	Newton3Enabled

	numNewton3Options
)

var newton3Names = map[Newton3Option]string{
	Newton3Disabled: "disabled",
	Newton3Enabled:  "enabled",
}

func (o ContainerOption) String() string  { return optionName(containerNames, o) }
func (o TraversalOption) String() string  { return optionName(traversalNames, o) }
func (o DataLayoutOption) String() string { return optionName(dataLayoutNames, o) }
func (o Newton3Option) String() string    { return optionName(newton3Names, o) }

// Bool reports whether Newton3 is enabled.
func (o Newton3Option) Bool() bool { return o == Newton3Enabled }

// Newton3FromBool maps a symmetry flag to its option value.
func Newton3FromBool(enabled bool) Newton3Option {
	if enabled {
		return Newton3Enabled
	}
	return Newton3Disabled
}

func (o ContainerOption) MarshalText() ([]byte, error)  { return []byte(o.String()), nil }
func (o TraversalOption) MarshalText() ([]byte, error)  { return []byte(o.String()), nil }
func (o DataLayoutOption) MarshalText() ([]byte, error) { return []byte(o.String()), nil }
func (o Newton3Option) MarshalText() ([]byte, error)    { return []byte(o.String()), nil }

func (o *ContainerOption) UnmarshalText(text []byte) (err error) {
	*o, err = ParseContainerOption(string(text))
	return err
}

func (o *TraversalOption) UnmarshalText(text []byte) (err error) {
	*o, err = ParseTraversalOption(string(text))
	return err
}

func (o *DataLayoutOption) UnmarshalText(text []byte) (err error) {
	*o, err = ParseDataLayoutOption(string(text))
	return err
}

func (o *Newton3Option) UnmarshalText(text []byte) (err error) {
	*o, err = ParseNewton3Option(string(text))
	return err
}

// ParseContainerOption returns the container kind with the given name.
func ParseContainerOption(name string) (ContainerOption, error) {
	return parseOption("container", containerNames, name)
}

// ParseTraversalOption returns the traversal kind with the given name.
func ParseTraversalOption(name string) (TraversalOption, error) {
	return parseOption("traversal", traversalNames, name)
}

// ParseDataLayoutOption returns the data layout with the given name.
func ParseDataLayoutOption(name string) (DataLayoutOption, error) {
	return parseOption("data layout", dataLayoutNames, name)
}

// ParseNewton3Option returns the Newton3 mode with the given name.
func ParseNewton3Option(name string) (Newton3Option, error) {
	return parseOption("newton3", newton3Names, name)
}

// AllContainerOptions returns every container kind in ascending order.
func AllContainerOptions() []ContainerOption { return allOptions(numContainerOptions) }

// AllTraversalOptions returns every traversal kind in ascending order.
func AllTraversalOptions() []TraversalOption { return allOptions(numTraversalOptions) }

// AllDataLayoutOptions returns every data layout in ascending order.
func AllDataLayoutOptions() []DataLayoutOption { return allOptions(numDataLayoutOptions) }

// AllNewton3Options returns both Newton3 modes, disabled first.
func AllNewton3Options() []Newton3Option { return allOptions(numNewton3Options) }

func optionName[T ~int](names map[T]string, o T) string {
	if name, ok := names[o]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", int(o))
}

func parseOption[T ~int](kind string, names map[T]string, name string) (T, error) {
	want := strings.ToLower(strings.TrimSpace(name))
	for o, n := range names {
		if n == want {
			return o, nil
		}
	}
	valid := make([]string, 0, len(names))
	for _, n := range names {
		valid = append(valid, n)
	}
	sort.Strings(valid)
	return 0, fmt.Errorf("%w: %s %q (valid: %s)", ErrInvalidOption, kind, name, strings.Join(valid, ", "))
}

func allOptions[T ~int](n T) []T {
	out := make([]T, 0, int(n))
	for o := T(0); o < n; o++ {
		out = append(out, o)
	}
	return out
}

// sortedUnique returns a sorted copy of opts without duplicates.
func sortedUnique[T ~int](opts []T) []T {
	seen := make(map[T]bool, len(opts))
	out := make([]T, 0, len(opts))
	for _, o := range opts {
		if !seen[o] {
			seen[o] = true
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

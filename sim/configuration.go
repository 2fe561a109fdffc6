package sim

import (
	"fmt"
	"sort"
)

// Configuration is one point of the tuning search space. It is a plain value:
// comparable with == and usable as a map key.
type Configuration struct {
	Container      ContainerOption  `yaml:"container"`
	CellSizeFactor float64          `yaml:"cell_size_factor"`
	Traversal      TraversalOption  `yaml:"traversal"`
	DataLayout     DataLayoutOption `yaml:"data_layout"`
	Newton3        Newton3Option    `yaml:"newton3"`
}

// NewConfiguration builds a Configuration. It does not check compatibility,
// use IsValid for that.
func NewConfiguration(container ContainerOption, cellSizeFactor float64, traversal TraversalOption,
	layout DataLayoutOption, newton3 Newton3Option) Configuration {
	return Configuration{
		Container:      container,
		CellSizeFactor: cellSizeFactor,
		Traversal:      traversal,
		DataLayout:     layout,
		Newton3:        newton3,
	}
}

// Compare orders configurations by container, cell size factor, traversal,
// data layout and Newton3 mode, in that order. Returns -1, 0 or 1.
func (c Configuration) Compare(o Configuration) int {
	switch {
	case c.Container != o.Container:
		return cmpInt(int(c.Container), int(o.Container))
	case c.CellSizeFactor != o.CellSizeFactor:
		if c.CellSizeFactor < o.CellSizeFactor {
			return -1
		}
		return 1
	case c.Traversal != o.Traversal:
		return cmpInt(int(c.Traversal), int(o.Traversal))
	case c.DataLayout != o.DataLayout:
		return cmpInt(int(c.DataLayout), int(o.DataLayout))
	case c.Newton3 != o.Newton3:
		return cmpInt(int(c.Newton3), int(o.Newton3))
	}
	return 0
}

// Less reports whether c sorts before o.
func (c Configuration) Less(o Configuration) bool { return c.Compare(o) < 0 }

// IsValid reports whether the traversal belongs to the container and the cell
// size factor is usable.
func (c Configuration) IsValid() bool {
	return IsCompatible(c.Container, c.Traversal) && validCellSizeFactor(c.CellSizeFactor)
}

func (c Configuration) String() string {
	return fmt.Sprintf("{Container: %s, CellSizeFactor: %g, Traversal: %s, DataLayout: %s, Newton3: %s}",
		c.Container, c.CellSizeFactor, c.Traversal, c.DataLayout, c.Newton3)
}

// SortConfigurations sorts configs in place in Configuration order.
func SortConfigurations(configs []Configuration) {
	sort.Slice(configs, func(i, j int) bool { return configs[i].Less(configs[j]) })
}

func cmpInt(a, b int) int {
	if a < b {
		return -1
	}
	return 1
}

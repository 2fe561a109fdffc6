package sim

// compatibility is the static container × traversal relation. A traversal is
// only ever run against the container kind whose topology it walks.
var compatibility = [numContainerOptions][numTraversalOptions]bool{
	DirectSum: {
		DSSequential: true,
	},
	LinkedCells: {
		LCC08:            true,
		LCC01:            true,
		LCSliced:         true,
		LCSlicedBalanced: true,
	},
	VerletLists: {
		VLListIteration: true,
	},
	VerletClusterLists: {
		VCLClusterIteration: true,
		VCLC06:              true,
	},
	Octree: {
		OTC18: true,
		OTC01: true,
	},
}

// IsCompatible reports whether traversal t can walk container c.
func IsCompatible(c ContainerOption, t TraversalOption) bool {
	if c < 0 || c >= numContainerOptions || t < 0 || t >= numTraversalOptions {
		return false
	}
	return compatibility[c][t]
}

// CompatibleTraversals returns the traversals usable with container c in
// ascending order.
func CompatibleTraversals(c ContainerOption) []TraversalOption {
	var out []TraversalOption
	for t := TraversalOption(0); t < numTraversalOptions; t++ {
		if IsCompatible(c, t) {
			out = append(out, t)
		}
	}
	return out
}

// ContainerOf returns the container kind traversal t belongs to.
// Panics if t is not a known traversal.
func ContainerOf(t TraversalOption) ContainerOption {
	for c := ContainerOption(0); c < numContainerOptions; c++ {
		if IsCompatible(c, t) {
			return c
		}
	}
	panic("sim: traversal " + t.String() + " has no container")
}

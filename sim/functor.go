package sim

// Functor evaluates a pairwise interaction. Traversals call it for every
// candidate pair, the functor itself applies the cutoff.
//
// Newton3 semantics: with newton3 the functor updates both particles of a
// pair; without it only the first one. Dummy particles must be skipped.
//
// Parallel traversals call a functor concurrently on disjoint particles, so
// any shared state inside a functor (counters, sums) must be synchronized.
type Functor interface {
	// AoSFunctor handles the pair (i, j).
	AoSFunctor(i, j *Particle, newton3 bool)

	// SoAFunctorSingle handles all pairs within soa. With newton3 every
	// unordered pair is evaluated once; without it every ordered pair is
	// evaluated and only the first particle updated.
	SoAFunctorSingle(soa *SoA, newton3 bool)

	// SoAFunctorPair handles all pairs (i in soa1, j in soa2).
	SoAFunctorPair(soa1, soa2 *SoA, newton3 bool)

	// SoAFunctorVerlet handles the pairs (index, n) for every n in neighbors.
	SoAFunctorVerlet(soa *SoA, index int, neighbors []int, newton3 bool)

	AllowsNewton3() bool
	AllowsNonNewton3() bool

	// IsAppropriateClusterSize reports whether the functor can process
	// clusters of the given width in the given layout.
	IsAppropriateClusterSize(clusterSize int, layout DataLayoutOption) bool
}

// AllowsNewton3Mode reports whether f supports the given mode.
func AllowsNewton3Mode(f Functor, mode Newton3Option) bool {
	if mode == Newton3Enabled {
		return f.AllowsNewton3()
	}
	return f.AllowsNonNewton3()
}

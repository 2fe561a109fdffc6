package autotuner

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// reduceSamples collapses the measurements of one configuration into the
// single time handed to the strategy. The median of an even count is the
// lower middle sample. samples must not be empty.
func reduceSamples(selector string, samples []int64) int64 {
	xs := make([]float64, len(samples))
	for i, s := range samples {
		xs[i] = float64(s)
	}
	var v float64
	switch selector {
	case "", "fastest-abs":
		v = floats.Min(xs)
	case "fastest-mean":
		v = stat.Mean(xs, nil)
	case "fastest-median":
		sort.Float64s(xs)
		v = stat.Quantile(0.5, stat.Empirical, xs, nil)
	default:
		panic(fmt.Sprintf("unhandled selector strategy %q", selector))
	}
	return int64(math.Round(v))
}

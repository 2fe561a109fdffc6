package tuning

import (
	"errors"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Acquisition names a function scoring a candidate from the GP posterior.
// Candidates are ranked by minimizing it since smaller times are better.
type Acquisition string

const (
	// AcquisitionUCB is mean + standard deviation.
	AcquisitionUCB Acquisition = "ucb"
	// AcquisitionLCB is mean - standard deviation.
	AcquisitionLCB Acquisition = "lcb"
	// AcquisitionMean is the posterior mean.
	AcquisitionMean Acquisition = "mean"
)

// GaussianProcess is a GP regressor with a squared-exponential kernel
//
//	k(a, b) = theta * exp(-sum_d dimScale[d] * (a[d]-b[d])^2)
//
// and fixed noise sigma on the diagonal. The covariance is extended by one
// row and column per evidence and inverted densely.
type GaussianProcess struct {
	theta    float64
	dimScale []float64
	sigma    float64

	inputs  [][]float64
	outputs []float64
	cov     *mat.Dense
	covInv  *mat.Dense
	weights *mat.VecDense
}

// NewGaussianProcess creates an empty GP over len(dimScale)-dimensional
// inputs.
func NewGaussianProcess(theta float64, dimScale []float64, sigma float64) *GaussianProcess {
	if theta <= 0 {
		panic(fmt.Sprintf("gaussian process: theta must be positive, got %f", theta))
	}
	return &GaussianProcess{
		theta:    theta,
		dimScale: append([]float64(nil), dimScale...),
		sigma:    sigma,
	}
}

// Clear drops all evidence.
func (g *GaussianProcess) Clear() {
	g.inputs, g.outputs = nil, nil
	g.cov, g.covInv, g.weights = nil, nil, nil
}

// NumEvidence returns the number of recorded evidences.
func (g *GaussianProcess) NumEvidence() int { return len(g.inputs) }

func (g *GaussianProcess) kernel(a, b []float64) float64 {
	r := make([]float64, len(a))
	floats.SubTo(r, a, b)
	floats.Mul(r, r)
	return g.theta * math.Exp(-floats.Dot(r, g.dimScale))
}

func (g *GaussianProcess) kernelVector(x []float64) *mat.VecDense {
	k := make([]float64, len(g.inputs))
	for i, in := range g.inputs {
		k[i] = g.kernel(x, in)
	}
	return mat.NewVecDense(len(k), k)
}

// AddEvidence records output y at input x. A singular covariance rejects
// the evidence and leaves the GP unchanged; an ill-conditioned one is
// accepted with a warning.
func (g *GaussianProcess) AddEvidence(x []float64, y float64) error {
	if len(x) != len(g.dimScale) {
		return fmt.Errorf("gaussian process: input has %d dimensions, want %d", len(x), len(g.dimScale))
	}
	n := len(g.inputs) + 1
	cov := mat.NewDense(n, n, nil)
	if g.cov != nil {
		cov.Slice(0, n-1, 0, n-1).(*mat.Dense).Copy(g.cov)
	}
	for i, in := range g.inputs {
		k := g.kernel(x, in)
		cov.Set(n-1, i, k)
		cov.Set(i, n-1, k)
	}
	cov.Set(n-1, n-1, g.kernel(x, x)+g.sigma)

	var inv mat.Dense
	if err := inv.Inverse(cov); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) || math.IsInf(float64(cond), 1) {
			return fmt.Errorf("gaussian process: inverting covariance: %w", err)
		}
		logrus.Warnf("gaussian process: covariance is ill-conditioned (%v)", err)
	}

	outputs := append(append([]float64(nil), g.outputs...), y)
	var w mat.VecDense
	w.MulVec(&inv, mat.NewVecDense(n, outputs))

	g.inputs = append(g.inputs, append([]float64(nil), x...))
	g.outputs = outputs
	g.cov, g.covInv, g.weights = cov, &inv, &w
	return nil
}

// PredictMean returns the posterior mean at x, 0 without evidence.
func (g *GaussianProcess) PredictMean(x []float64) float64 {
	if len(g.inputs) == 0 {
		return 0
	}
	return mat.Dot(g.kernelVector(x), g.weights)
}

// PredictVar returns the posterior variance at x.
func (g *GaussianProcess) PredictVar(x []float64) float64 {
	if len(g.inputs) == 0 {
		return g.kernel(x, x)
	}
	k := g.kernelVector(x)
	return g.kernel(x, x) - mat.Inner(k, g.covInv, k)
}

// Acquisition scores x under a.
func (g *GaussianProcess) Acquisition(a Acquisition, x []float64) float64 {
	switch a {
	case AcquisitionUCB:
		return g.PredictMean(x) + math.Sqrt(max(g.PredictVar(x), 0))
	case AcquisitionLCB:
		return g.PredictMean(x) - math.Sqrt(max(g.PredictVar(x), 0))
	case AcquisitionMean:
		return g.PredictMean(x)
	default:
		panic(fmt.Sprintf("gaussian process: unknown acquisition function %q", a))
	}
}

// ArgMinAcquisition returns the index of the sample with the smallest
// acquisition value. The first sample wins ties. samples must not be empty.
func (g *GaussianProcess) ArgMinAcquisition(a Acquisition, samples [][]float64) int {
	best, bestVal := -1, 0.0
	for i, s := range samples {
		if v := g.Acquisition(a, s); best < 0 || v < bestVal {
			best, bestVal = i, v
		}
	}
	return best
}

// Package testutil provides shared test infrastructure for the mdtune
// packages. It holds the golden Lennard-Jones dataset types and assertion
// helpers used across sim/ test packages.
package testutil

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/mdtune/mdtune/sim"
)

// GoldenDataset represents the structure of testdata/goldendataset.json.
type GoldenDataset struct {
	Tests []GoldenTestCase `json:"tests"`
}

// GoldenTestCase is an owned particle set without halo and the brute force
// Lennard-Jones result over all pairs within the cutoff.
type GoldenTestCase struct {
	Name      string           `json:"name"`
	BoxMin    [3]float64       `json:"box_min"`
	BoxMax    [3]float64       `json:"box_max"`
	Cutoff    float64          `json:"cutoff"`
	Skin      float64          `json:"skin"`
	Epsilon   float64          `json:"epsilon"`
	Sigma     float64          `json:"sigma"`
	Shift     bool             `json:"shift"`
	Particles []GoldenParticle `json:"particles"`
	Expected  GoldenExpected   `json:"expected"`
}

// GoldenParticle is one owned particle at rest.
type GoldenParticle struct {
	ID int64      `json:"id"`
	R  [3]float64 `json:"r"`
}

// GoldenExpected holds the reference results. Forces are indexed like
// Particles.
type GoldenExpected struct {
	PotentialEnergy float64      `json:"potential_energy"`
	Virial          float64      `json:"virial"`
	Forces          [][3]float64 `json:"forces"`
}

// Vec converts a JSON triple.
func Vec(a [3]float64) r3.Vec { return r3.Vec{X: a[0], Y: a[1], Z: a[2]} }

// OwnedParticles returns the case's particles as owned sim particles.
func (tc GoldenTestCase) OwnedParticles() []sim.Particle {
	out := make([]sim.Particle, len(tc.Particles))
	for i, p := range tc.Particles {
		out[i] = sim.NewParticle(p.ID, Vec(p.R), r3.Vec{})
	}
	return out
}

// LoadGoldenDataset loads the golden dataset from the testdata directory.
// The path is resolved relative to this source file: sim/internal/testutil/ → testdata/.
func LoadGoldenDataset(t *testing.T) *GoldenDataset {
	t.Helper()

	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("Failed to get current file path")
	}
	// Navigate from sim/internal/testutil/ to repo root testdata/
	path := filepath.Join(filepath.Dir(thisFile), "..", "..", "..", "testdata", "goldendataset.json")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read golden dataset: %v", err)
	}

	var dataset GoldenDataset
	if err := json.Unmarshal(data, &dataset); err != nil {
		t.Fatalf("Failed to parse golden dataset: %v", err)
	}
	if len(dataset.Tests) == 0 {
		t.Fatal("Golden dataset has no test cases")
	}
	return &dataset
}

// AssertFloat64Equal compares two float64 values with relative tolerance.
func AssertFloat64Equal(t *testing.T, name string, want, got, relTol float64) {
	t.Helper()
	if want == 0 && got == 0 {
		return
	}
	diff := math.Abs(want - got)
	maxVal := math.Max(math.Abs(want), math.Abs(got))
	if diff/maxVal > relTol {
		t.Errorf("%s: got %v, want %v (diff=%v, relDiff=%v)", name, got, want, diff, diff/maxVal)
	}
}

// AssertVecEqual compares two vectors. The tolerance is relative to the
// length of want and absolute below length 1.
func AssertVecEqual(t *testing.T, name string, want, got r3.Vec, tol float64) {
	t.Helper()
	diff := r3.Norm(r3.Sub(want, got))
	if diff > tol*math.Max(1, r3.Norm(want)) {
		t.Errorf("%s: got %v, want %v (diff=%v)", name, got, want, diff)
	}
}

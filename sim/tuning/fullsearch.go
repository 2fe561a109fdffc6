package tuning

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/mdtune/mdtune/sim"
)

// FullSearch tests every configuration once per phase and selects the
// fastest.
type FullSearch struct {
	space  []sim.Configuration
	cursor int
	times  map[sim.Configuration]int64
}

// NewFullSearch creates a full search over space.
func NewFullSearch(space []sim.Configuration) (*FullSearch, error) {
	sorted, err := sortedCopy(space)
	if err != nil {
		return nil, err
	}
	logrus.Debugf("full search: %d configurations", len(sorted))
	return &FullSearch{space: sorted, times: map[sim.Configuration]int64{}}, nil
}

func (f *FullSearch) CurrentConfiguration() sim.Configuration { return f.space[f.cursor] }
func (f *FullSearch) SearchSpaceIsEmpty() bool                { return len(f.space) == 0 }
func (f *FullSearch) SearchSpaceIsTrivial() bool              { return len(f.space) == 1 }

func (f *FullSearch) AddEvidence(timeNs int64, _ int) {
	f.times[f.space[f.cursor]] = timeNs
}

func (f *FullSearch) Tune(_ bool) (bool, error) {
	f.cursor++
	if f.cursor < len(f.space) {
		return true, nil
	}
	f.cursor = 0
	best, bestTime, ok := fastest(f.space, func(c sim.Configuration) (float64, bool) {
		t, ok := f.times[c]
		return float64(t), ok
	})
	if !ok {
		return false, fmt.Errorf("full search: %w: none of %d configurations was measured",
			sim.ErrInsufficientEvidence, len(f.space))
	}
	f.cursor = indexOf(f.space, best)
	logrus.Debugf("full search: selected %s (%.0f ns)", best, bestTime)
	return false, nil
}

func (f *FullSearch) Reset(_ int) error {
	clear(f.times)
	f.cursor = 0
	return nil
}

func (f *FullSearch) RemoveNewton3Option(mode sim.Newton3Option) error {
	f.space, f.cursor = removeMode(f.space, f.cursor, mode)
	for c := range f.times {
		if c.Newton3 == mode {
			delete(f.times, c)
		}
	}
	if len(f.space) == 0 {
		return emptiedBy(mode)
	}
	return nil
}

package tuning

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"

	"github.com/mdtune/mdtune/sim"
)

// PredictiveConfig holds the predictive-tuning parameters.
type PredictiveConfig struct {
	// RelativeOptimumRange selects configurations whose predicted time is
	// within this factor of the best prediction.
	RelativeOptimumRange float64 // default: 1.2

	// MaxTuningIterationsWithoutTest forces a re-test of a configuration
	// that has not been tested for more than this many tuning phases.
	MaxTuningIterationsWithoutTest int // default: 5
}

// DefaultPredictiveConfig returns the default predictive-tuning parameters.
func DefaultPredictiveConfig() PredictiveConfig {
	return PredictiveConfig{
		RelativeOptimumRange:           1.2,
		MaxTuningIterationsWithoutTest: 5,
	}
}

// Validate checks parameter ranges.
func (c PredictiveConfig) Validate() error {
	if c.RelativeOptimumRange < 1 {
		return fmt.Errorf("relative optimum range must be >= 1, got %f", c.RelativeOptimumRange)
	}
	if c.MaxTuningIterationsWithoutTest < 0 {
		return fmt.Errorf("max tuning iterations without test must be non-negative, got %d",
			c.MaxTuningIterationsWithoutTest)
	}
	return nil
}

type timedSample struct {
	iteration int
	timeNs    int64
}

type predictivePhase int

const (
	testingOptimal predictivePhase = iota
	testingTooLong
)

// PredictiveTuning extrapolates each configuration's time from its last two
// measurements and only re-tests configurations predicted to be near the
// optimum, plus those not tested for too many phases. The first two phases
// test the whole space to build the history.
type PredictiveTuning struct {
	config PredictiveConfig
	space  []sim.Configuration

	history  map[sim.Configuration][]timedSample
	lastTest map[sim.Configuration]int // phase counter at the last test

	predictions map[sim.Configuration]float64
	valid       map[sim.Configuration]bool
	optimal     []sim.Configuration
	tooLong     []sim.Configuration

	// bootstrap is set while the whole space is tested.
	bootstrap bool
	phase     predictivePhase
	cursor    int
	current   sim.Configuration

	phases     int // completed tuning phases
	phaseBegin int // iteration the current phase started at
	validFound bool
}

// NewPredictiveTuning creates a predictive tuning strategy over space.
func NewPredictiveTuning(space []sim.Configuration, config PredictiveConfig) (*PredictiveTuning, error) {
	sorted, err := sortedCopy(space)
	if err != nil {
		return nil, err
	}
	p := &PredictiveTuning{
		config:   config,
		space:    sorted,
		history:  map[sim.Configuration][]timedSample{},
		lastTest: map[sim.Configuration]int{},
	}
	logrus.Debugf("predictive tuning: %d configurations", len(sorted))
	return p, p.Reset(0)
}

func (p *PredictiveTuning) CurrentConfiguration() sim.Configuration { return p.current }
func (p *PredictiveTuning) SearchSpaceIsEmpty() bool                { return len(p.space) == 0 }
func (p *PredictiveTuning) SearchSpaceIsTrivial() bool              { return len(p.space) == 1 }

// Evidence returns the mean of all times recorded for c.
func (p *PredictiveTuning) Evidence(c sim.Configuration) (float64, bool) {
	samples := p.history[c]
	if len(samples) == 0 {
		return 0, false
	}
	times := make([]float64, len(samples))
	for i, s := range samples {
		times[i] = float64(s.timeNs)
	}
	return stat.Mean(times, nil), true
}

func (p *PredictiveTuning) AddEvidence(timeNs int64, iteration int) {
	p.history[p.current] = append(p.history[p.current], timedSample{iteration: iteration, timeNs: timeNs})
	p.lastTest[p.current] = p.phases
}

func (p *PredictiveTuning) Reset(iteration int) error {
	p.predictions = map[sim.Configuration]float64{}
	p.valid = make(map[sim.Configuration]bool, len(p.space))
	for _, c := range p.space {
		p.valid[c] = true
	}
	p.optimal, p.tooLong = nil, nil
	p.validFound = false
	p.phaseBegin = iteration
	p.phase = testingOptimal
	p.cursor = 0

	p.selectOptimalSearchSpace()
	p.current = p.active()[0]
	return nil
}

// active returns the list the cursor walks.
func (p *PredictiveTuning) active() []sim.Configuration {
	switch {
	case p.phase == testingTooLong:
		return p.tooLong
	case p.bootstrap:
		return p.space
	default:
		return p.optimal
	}
}

func (p *PredictiveTuning) setActive(list []sim.Configuration) {
	switch {
	case p.phase == testingTooLong:
		p.tooLong = list
	case p.bootstrap:
		p.space = list
	default:
		p.optimal = list
	}
}

func (p *PredictiveTuning) selectOptimalSearchSpace() {
	p.bootstrap = len(p.space) == 1 || p.phases < 2
	if p.bootstrap {
		return
	}
	for _, c := range p.space {
		if pred, ok := p.linePrediction(c); ok {
			p.predictions[c] = pred
		}
	}
	optimum, ok := p.bestPrediction()
	if !ok {
		p.bootstrap = true
		return
	}
	for _, c := range p.space {
		pred, ok := p.predictions[c]
		switch {
		case ok && pred/optimum <= p.config.RelativeOptimumRange:
			p.optimal = append(p.optimal, c)
		case !ok || p.phases-p.lastTest[c] > p.config.MaxTuningIterationsWithoutTest:
			p.tooLong = append(p.tooLong, c)
		}
	}
	logrus.Debugf("predictive tuning: phase %d tests %d near-optimal and %d stale configurations",
		p.phases, len(p.optimal), len(p.tooLong))
}

// linePrediction extrapolates the line through c's last two samples to the
// start of the current phase. A single sample predicts itself.
func (p *PredictiveTuning) linePrediction(c sim.Configuration) (float64, bool) {
	s := p.history[c]
	switch len(s) {
	case 0:
		return 0, false
	case 1:
		return float64(s[0].timeNs), true
	}
	last, prev := s[len(s)-1], s[len(s)-2]
	if last.iteration == prev.iteration {
		return float64(last.timeNs), true
	}
	gradient := float64(last.timeNs-prev.timeNs) / float64(last.iteration-prev.iteration)
	delta := float64(p.phaseBegin - last.iteration)
	return max(float64(last.timeNs)+gradient*delta, 1), true
}

func (p *PredictiveTuning) bestPrediction() (float64, bool) {
	_, best, ok := fastest(p.space, func(c sim.Configuration) (float64, bool) {
		pred, ok := p.predictions[c]
		return pred, ok
	})
	return best, ok
}

func (p *PredictiveTuning) Tune(currentInvalid bool) (bool, error) {
	if !currentInvalid {
		p.validFound = true
	}
	p.cursor++
	if list := p.active(); p.cursor < len(list) {
		p.current = list[p.cursor]
		return true, nil
	}
	if p.phase == testingTooLong {
		return false, p.finishPhase()
	}
	if p.validFound {
		if len(p.tooLong) == 0 {
			return false, p.finishPhase()
		}
		p.phase, p.cursor = testingTooLong, 0
		p.current = p.tooLong[0]
		return true, nil
	}
	if err := p.reselectOptimalSearchSpace(); err != nil {
		return false, err
	}
	p.cursor = 0
	p.current = p.active()[0]
	return true, nil
}

// reselectOptimalSearchSpace replaces a tested set that turned out entirely
// invalid by the next best predictions.
func (p *PredictiveTuning) reselectOptimalSearchSpace() error {
	for _, c := range p.active() {
		delete(p.predictions, c)
		delete(p.valid, c)
	}
	p.optimal = nil
	p.bootstrap = false

	var valid []sim.Configuration
	for _, c := range p.space {
		if p.valid[c] {
			valid = append(valid, c)
		}
	}
	switch {
	case len(valid) == 0:
		return fmt.Errorf("predictive tuning: %w: every configuration was invalid", sim.ErrSearchSpaceEmpty)
	case len(valid) == 1:
		p.optimal = valid
		p.tooLong = removeFrom(p.tooLong, valid)
		return nil
	case len(p.predictions) == 0:
		return fmt.Errorf("predictive tuning: %w: no valid configuration with a prediction left (%d untested)",
			sim.ErrSearchSpaceEmpty, len(valid))
	}

	optimum, _ := p.bestPrediction()
	for _, c := range p.space {
		if pred, ok := p.predictions[c]; ok && pred/optimum <= p.config.RelativeOptimumRange {
			p.optimal = append(p.optimal, c)
		}
	}
	p.tooLong = removeFrom(p.tooLong, p.optimal)
	logrus.Debugf("predictive tuning: reselected %d configurations", len(p.optimal))
	return nil
}

func (p *PredictiveTuning) finishPhase() error {
	best, err := p.selectOptimalConfiguration()
	p.phases++
	if err != nil {
		return err
	}
	p.current = best
	logrus.Debugf("predictive tuning: selected %s", best)
	return nil
}

// selectOptimalConfiguration picks the fastest configuration measured in the
// current phase among those the phase tested.
func (p *PredictiveTuning) selectOptimalConfiguration() (sim.Configuration, error) {
	if len(p.space) == 1 {
		return p.space[0], nil
	}
	candidates := p.space
	if !p.bootstrap {
		candidates = append(append([]sim.Configuration(nil), p.optimal...), p.tooLong...)
		sim.SortConfigurations(candidates)
	}
	best, _, ok := fastest(candidates, func(c sim.Configuration) (float64, bool) {
		s := p.history[c]
		if len(s) == 0 || s[len(s)-1].iteration < p.phaseBegin {
			return 0, false
		}
		return float64(s[len(s)-1].timeNs), true
	})
	if !ok {
		return sim.Configuration{}, fmt.Errorf("predictive tuning: %w: nothing measured since iteration %d",
			sim.ErrInsufficientEvidence, p.phaseBegin)
	}
	return best, nil
}

func (p *PredictiveTuning) RemoveNewton3Option(mode sim.Newton3Option) error {
	list, cursor := removeMode(p.active(), p.cursor, mode)
	p.setActive(list)
	p.cursor = cursor
	p.space = sim.RemoveNewton3(p.space, mode)
	p.optimal = sim.RemoveNewton3(p.optimal, mode)
	p.tooLong = sim.RemoveNewton3(p.tooLong, mode)
	for c := range p.valid {
		if c.Newton3 == mode {
			delete(p.valid, c)
			delete(p.predictions, c)
		}
	}
	if len(p.space) == 0 {
		return emptiedBy(mode)
	}
	if len(p.active()) == 0 {
		p.phase, p.bootstrap, p.cursor = testingOptimal, true, 0
	}
	p.current = p.active()[p.cursor]
	return nil
}

func removeFrom(list, drop []sim.Configuration) []sim.Configuration {
	out := list[:0:0]
	for _, c := range list {
		if indexOf(drop, c) < 0 {
			out = append(out, c)
		}
	}
	return out
}

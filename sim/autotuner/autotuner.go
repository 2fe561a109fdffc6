// Package autotuner runs the pairwise pass with whichever configuration the
// tuning strategy proposes. During a tuning phase it times every pass,
// reduces the samples of each candidate and reports them to the strategy;
// between phases it runs the selected optimum.
package autotuner

import (
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/mdtune/mdtune/sim"
	"github.com/mdtune/mdtune/sim/container"
	"github.com/mdtune/mdtune/sim/trace"
	"github.com/mdtune/mdtune/sim/traversal"
	"github.com/mdtune/mdtune/sim/tuning"
)

// Option customizes an AutoTuner.
type Option func(*AutoTuner)

// WithMetrics records Prometheus metrics.
func WithMetrics(m *Metrics) Option {
	return func(a *AutoTuner) { a.metrics = m }
}

// WithTrace records tuning samples and phases into t.
func WithTrace(t *trace.TuningTrace) Option {
	return func(a *AutoTuner) { a.trace = t }
}

// WithClock replaces the monotonic clock around each pass.
func WithClock(now func() time.Time) Option {
	return func(a *AutoTuner) { a.now = now }
}

// AutoTuner owns the particle container and the tuning strategy. It is not
// safe for concurrent use.
type AutoTuner struct {
	config   Config
	params   container.Params
	strategy tuning.Strategy
	functor  sim.Functor
	metrics  *Metrics
	trace    *trace.TuningTrace
	now      func() time.Time

	container    container.Container
	built        bool
	builtNewton3 bool
	sinceRebuild int
	lastRun      sim.Configuration

	iteration    int
	tuning       bool
	sinceTuning  int
	phase        int
	phaseStart   int
	samples      []int64
	sampleConfig sim.Configuration
	phaseTimes   map[sim.Configuration]int64
	phaseInvalid int
}

// New creates an AutoTuner for the domain described by params. Newton3 modes
// the functor cannot handle are removed from the strategy up front. A
// non-trivial search space starts tuning at iteration 0.
func New(config Config, params container.Params, strategy tuning.Strategy, f sim.Functor, opts ...Option) (*AutoTuner, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	a := &AutoTuner{
		config:     config,
		params:     params,
		strategy:   strategy,
		functor:    f,
		now:        time.Now,
		phaseTimes: map[sim.Configuration]int64{},
	}
	for _, o := range opts {
		o(a)
	}
	for _, mode := range sim.AllNewton3Options() {
		if sim.AllowsNewton3Mode(f, mode) {
			continue
		}
		logrus.Infof("functor does not support newton3=%s, removing it from the search space", mode)
		if err := strategy.RemoveNewton3Option(mode); err != nil {
			return nil, err
		}
	}
	if strategy.SearchSpaceIsEmpty() {
		return nil, fmt.Errorf("autotuner: %w", sim.ErrSearchSpaceEmpty)
	}
	cfg := strategy.CurrentConfiguration()
	a.container = container.New(cfg.Container, a.paramsFor(cfg))
	if !strategy.SearchSpaceIsTrivial() {
		if err := a.startPhase(); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (a *AutoTuner) paramsFor(cfg sim.Configuration) container.Params {
	p := a.params
	p.CellSizeFactor = cfg.CellSizeFactor
	return p
}

// Container returns the current container.
func (a *AutoTuner) Container() container.Container { return a.container }

// Configuration returns the configuration the next pass runs with.
func (a *AutoTuner) Configuration() sim.Configuration { return a.strategy.CurrentConfiguration() }

// Iteration returns the number of completed passes.
func (a *AutoTuner) Iteration() int { return a.iteration }

// IsTuning reports whether a tuning phase is in progress.
func (a *AutoTuner) IsTuning() bool { return a.tuning }

// Phases returns the number of completed tuning phases.
func (a *AutoTuner) Phases() int { return a.phase }

func (a *AutoTuner) AddParticle(p sim.Particle) error     { return a.container.AddParticle(p) }
func (a *AutoTuner) AddHaloParticle(p sim.Particle) error { return a.container.AddHaloParticle(p) }
func (a *AutoTuner) NumParticles() int                    { return a.container.NumParticles() }

func (a *AutoTuner) ForEach(behavior sim.IteratorBehavior, fn func(p *sim.Particle)) {
	a.container.ForEach(behavior, fn)
}

func (a *AutoTuner) ForEachInRegion(lo, hi r3.Vec, behavior sim.IteratorBehavior, fn func(p *sim.Particle)) {
	a.container.ForEachInRegion(lo, hi, behavior, fn)
}

// UpdateContainer prepares the container for the next pass. When the next
// pass rebuilds, halo particles are dropped, drifted particles are re-binned
// and the owned particles that left the box are returned. Otherwise the
// container is left untouched so its neighbor lists stay valid; callers move
// the retained halo particles in place through ForEach instead of adding new
// ones.
func (a *AutoTuner) UpdateContainer() ([]sim.Particle, error) {
	if !a.RebuildDue() {
		return nil, nil
	}
	leaving, err := a.container.UpdateContainer()
	if err != nil {
		return nil, fmt.Errorf("updating container: %w", err)
	}
	a.built = false
	return leaving, nil
}

// RebuildDue reports whether the next pass rebuilds neighbor lists: on the
// rebuild cadence and whenever the configuration changes.
func (a *AutoTuner) RebuildDue() bool {
	return !a.built ||
		a.sinceRebuild >= a.config.RebuildFrequency ||
		a.strategy.CurrentConfiguration() != a.lastRun
}

// IteratePairwise runs one pass of the functor over all particle pairs.
func (a *AutoTuner) IteratePairwise() error {
	cfg, tr, err := a.selectApplicable()
	if err != nil {
		return err
	}
	if err := a.prepareContainer(cfg); err != nil {
		return err
	}

	start := a.now()
	err = a.container.IteratePairwise(tr)
	elapsed := a.now().Sub(start)
	if err != nil {
		return fmt.Errorf("iteration %d: %w", a.iteration, sim.WithConfiguration(err, cfg))
	}
	a.lastRun = cfg
	a.metrics.observeIteration(elapsed.Seconds(), a.tuning, a.container.NumParticles())

	wasTuning := a.tuning
	if a.tuning {
		if err := a.addSample(cfg, elapsed.Nanoseconds()); err != nil {
			return err
		}
	}

	a.iteration++
	a.sinceRebuild++
	if !wasTuning {
		a.sinceTuning++
	}
	if !a.tuning && a.sinceTuning >= a.config.TuningInterval && !a.strategy.SearchSpaceIsTrivial() {
		return a.startPhase()
	}
	return nil
}

// selectApplicable returns the first configuration the strategy proposes
// that the functor can run, skipping and reporting the others.
func (a *AutoTuner) selectApplicable() (sim.Configuration, container.Traversal, error) {
	opts := []traversal.Option{traversal.WithWorkers(a.config.Workers)}
	if a.params.ClusterSize > 0 {
		opts = append(opts, traversal.WithClusterSize(a.params.ClusterSize))
	}
	for {
		cfg := a.strategy.CurrentConfiguration()
		tr, err := traversal.ForConfiguration(cfg, a.functor, opts...)
		if err != nil {
			return cfg, nil, sim.WithConfiguration(err, cfg)
		}
		if tr.IsApplicable() {
			return cfg, tr, nil
		}
		if err := a.rejectConfiguration(cfg); err != nil {
			return cfg, nil, err
		}
	}
}

func (a *AutoTuner) rejectConfiguration(cfg sim.Configuration) error {
	a.phaseInvalid++
	a.metrics.observeInvalid()
	reason := "traversal not applicable"
	if !sim.AllowsNewton3Mode(a.functor, cfg.Newton3) {
		reason = "functor does not support newton3=" + cfg.Newton3.String()
	}
	a.trace.RecordSample(trace.SampleRecord{
		Iteration:     a.iteration,
		Phase:         a.phase,
		Configuration: cfg.String(),
		Invalid:       true,
		Reason:        reason,
	})

	if !sim.AllowsNewton3Mode(a.functor, cfg.Newton3) {
		logrus.Warnf("%s: %s, removing the mode", cfg, reason)
		return a.strategy.RemoveNewton3Option(cfg.Newton3)
	}
	if !a.tuning {
		return fmt.Errorf("selected configuration: %w", sim.WithConfiguration(sim.ErrInvalidConfiguration, cfg))
	}
	logrus.Warnf("skipping %s: %s", cfg, reason)
	more, err := a.strategy.Tune(true)
	if err != nil {
		return fmt.Errorf("tuning phase %d: %w", a.phase, err)
	}
	if !more {
		a.finishPhase()
	}
	return nil
}

// prepareContainer switches to cfg's container kind and cell size factor and
// rebuilds neighbor lists when due.
func (a *AutoTuner) prepareContainer(cfg sim.Configuration) error {
	if a.container.Kind() != cfg.Container || a.container.Params().CellSizeFactor != cfg.CellSizeFactor {
		next := container.New(cfg.Container, a.paramsFor(cfg))
		if err := container.Migrate(a.container, next); err != nil {
			return fmt.Errorf("migrating particles: %w", sim.WithConfiguration(err, cfg))
		}
		logrus.Debugf("switched container %s -> %s (cell size factor %g)", a.container.Kind(), cfg.Container, cfg.CellSizeFactor)
		a.container = next
		a.built = false
		a.metrics.observeSwitch()
	}

	newton3 := cfg.Newton3.Bool()
	if a.built && a.builtNewton3 == newton3 && a.sinceRebuild < a.config.RebuildFrequency {
		return nil
	}
	geom, err := a.container.RebuildNeighborLists(newton3)
	if err != nil {
		return fmt.Errorf("rebuilding neighbor lists: %w", sim.WithConfiguration(err, cfg))
	}
	a.built, a.builtNewton3, a.sinceRebuild = true, newton3, 0
	a.metrics.observeRebuild()
	logrus.Debugf("rebuilt %s: %d regions of %v", cfg.Container, geom.NumRegions, geom.RegionLength)
	return nil
}

func (a *AutoTuner) addSample(cfg sim.Configuration, ns int64) error {
	if cfg != a.sampleConfig {
		a.samples = a.samples[:0]
		a.sampleConfig = cfg
	}
	a.samples = append(a.samples, ns)
	a.trace.RecordSample(trace.SampleRecord{
		Iteration:     a.iteration,
		Phase:         a.phase,
		Configuration: cfg.String(),
		TimeNs:        ns,
	})
	if len(a.samples) < a.config.NumSamples {
		return nil
	}

	reduced := reduceSamples(a.config.Selector, a.samples)
	a.samples = a.samples[:0]
	a.phaseTimes[cfg] = reduced
	a.strategy.AddEvidence(reduced, a.iteration)
	logrus.Debugf("tuning: %s took %d ns", cfg, reduced)

	more, err := a.strategy.Tune(false)
	if err != nil {
		return fmt.Errorf("tuning phase %d: %w", a.phase, err)
	}
	if !more {
		a.finishPhase()
	}
	return nil
}

func (a *AutoTuner) startPhase() error {
	if err := a.strategy.Reset(a.iteration); err != nil {
		return fmt.Errorf("starting tuning phase %d: %w", a.phase, err)
	}
	a.tuning = true
	a.phaseStart = a.iteration
	a.phaseTimes = map[sim.Configuration]int64{}
	a.phaseInvalid = 0
	a.samples = a.samples[:0]
	a.sampleConfig = sim.Configuration{}
	logrus.Infof("tuning phase %d starts at iteration %d", a.phase, a.iteration)
	return nil
}

func (a *AutoTuner) finishPhase() {
	selected := a.strategy.CurrentConfiguration()
	candidates := make([]trace.CandidateTime, 0, len(a.phaseTimes))
	for c, t := range a.phaseTimes {
		candidates = append(candidates, trace.CandidateTime{Configuration: c.String(), TimeNs: t})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].TimeNs != candidates[j].TimeNs {
			return candidates[i].TimeNs < candidates[j].TimeNs
		}
		return candidates[i].Configuration < candidates[j].Configuration
	})
	a.trace.RecordPhase(trace.PhaseRecord{
		Phase:          a.phase,
		StartIteration: a.phaseStart,
		EndIteration:   a.iteration,
		Selected:       selected.String(),
		SelectedTimeNs: a.phaseTimes[selected],
		Candidates:     candidates,
		InvalidCount:   a.phaseInvalid,
	})
	a.metrics.observePhase(selected)
	logrus.Infof("tuning phase %d finished after %d iterations: selected %s",
		a.phase, a.iteration-a.phaseStart+1, selected)

	a.tuning = false
	a.sinceTuning = 0
	a.phase++
}

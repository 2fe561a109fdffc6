package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/mdtune/mdtune/sim"
	"github.com/mdtune/mdtune/sim/autotuner"
	"github.com/mdtune/mdtune/sim/container"
	"github.com/mdtune/mdtune/sim/functor"
	"github.com/mdtune/mdtune/sim/generator"
	"github.com/mdtune/mdtune/sim/trace"
	"github.com/mdtune/mdtune/sim/tuning"
)

// loadBundle reads the tuning config at path, or returns an empty bundle
// when path is empty. A non-empty strategy overrides the file's.
func loadBundle(path, strategy string) (*sim.TuningBundle, error) {
	bundle := &sim.TuningBundle{}
	if path != "" {
		var err error
		if bundle, err = sim.LoadTuningBundle(path); err != nil {
			return nil, err
		}
	}
	if strategy != "" {
		bundle.Strategy = strategy
	}
	if err := bundle.Validate(); err != nil {
		return nil, fmt.Errorf("invalid tuning config: %w", err)
	}
	return bundle, nil
}

// runSimulation runs cfg.Iterations force iterations through the auto-tuner
// and writes the report to out.
func runSimulation(cfg RunConfig, out io.Writer) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	bundle, err := loadBundle(cfg.TuningPath, cfg.Strategy)
	if err != nil {
		return err
	}
	space, err := sim.PopulateSearchSpace(bundle.SearchSpaceOptions())
	if err != nil {
		return err
	}
	atConfig := autotuner.ConfigFromBundle(bundle)
	atConfig.Workers = cfg.Workers
	if err := checkDrift(cfg.MaxStep, cfg.Skin, atConfig.RebuildFrequency); err != nil {
		return err
	}

	key := sim.NewRunKey(cfg.Seed)
	rng := sim.NewPartitionedRNG(key)
	opts := tuning.OptionsFromBundle(bundle)
	opts.RNG = rng.ForSubsystem(sim.SubsystemTuning)
	strategy, err := tuning.NewStrategy(bundle.Strategy, space, opts)
	if err != nil {
		return err
	}

	params := container.Params{
		BoxMax:      r3.Vec{X: cfg.Box[0], Y: cfg.Box[1], Z: cfg.Box[2]},
		Cutoff:      cfg.Cutoff,
		Skin:        cfg.Skin,
		ClusterSize: cfg.ClusterSize,
	}
	spec, err := particleSpec(cfg)
	if err != nil {
		return err
	}
	owned, err := generator.Generate(spec, key, params.BoxMin, params.BoxMax)
	if err != nil {
		return err
	}

	var metrics *autotuner.Metrics
	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		metrics = autotuner.NewMetrics(reg)
		srv := serveMetrics(cfg.MetricsAddr, reg)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}()
	}
	tt := trace.NewTuningTrace(trace.TraceConfig{Level: trace.TraceLevel(cfg.TraceLevel)})
	lj := functor.NewLJ(cfg.Epsilon, cfg.Sigma, cfg.Cutoff).WithGlobals(false)

	at, err := autotuner.New(atConfig, params, strategy, lj, autotuner.WithMetrics(metrics), autotuner.WithTrace(tt))
	if err != nil {
		return err
	}
	d, err := newDriver(at, params, owned, rng.ForSubsystem(sim.SubsystemMotion), cfg.MaxStep)
	if err != nil {
		return err
	}

	logrus.Infof("Starting run: %d particles, %d iterations, %d configurations, strategy %q",
		len(owned), cfg.Iterations, len(space), bundle.Strategy)
	startTime := time.Now()
	for i := 0; i < cfg.Iterations; i++ {
		lj.ResetGlobals()
		if err := d.step(); err != nil {
			return fmt.Errorf("iteration %d: %w", i, err)
		}
	}

	report := newRunReport(at, tt, lj, time.Since(startTime))
	return report.write(out, d.iterationTimes, cfg.Plot)
}

// serveMetrics exposes reg on addr/metrics in the background.
func serveMetrics(addr string, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logrus.Infof("Serving metrics on http://%s/metrics", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Errorf("metrics server: %v", err)
		}
	}()
	return srv
}

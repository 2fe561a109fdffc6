package autotuner

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mdtune/mdtune/sim"
)

// Metrics are the orchestrator's Prometheus collectors. Labels are bounded
// by the option enums. A nil *Metrics records nothing.
type Metrics struct {
	iterationSeconds  *prometheus.HistogramVec
	tuningPhases      prometheus.Counter
	invalidConfigs    prometheus.Counter
	rebuilds          prometheus.Counter
	containerSwitches prometheus.Counter
	particles         prometheus.Gauge
	selected          *prometheus.GaugeVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		iterationSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mdtune_iteration_duration_seconds",
			Help:    "Time spent in one pairwise traversal",
			Buckets: prometheus.ExponentialBuckets(1e-5, 4, 10),
		}, []string{"mode"}), // "tuning" or "steady"
		tuningPhases: f.NewCounter(prometheus.CounterOpts{
			Name: "mdtune_tuning_phases_total",
			Help: "Completed tuning phases",
		}),
		invalidConfigs: f.NewCounter(prometheus.CounterOpts{
			Name: "mdtune_invalid_configurations_total",
			Help: "Configurations skipped as not applicable",
		}),
		rebuilds: f.NewCounter(prometheus.CounterOpts{
			Name: "mdtune_neighbor_list_rebuilds_total",
			Help: "Neighbor list rebuilds",
		}),
		containerSwitches: f.NewCounter(prometheus.CounterOpts{
			Name: "mdtune_container_switches_total",
			Help: "Particle migrations to a new container",
		}),
		particles: f.NewGauge(prometheus.GaugeOpts{
			Name: "mdtune_particles",
			Help: "Owned and halo particles in the container",
		}),
		selected: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mdtune_selected_configuration",
			Help: "1 for the configuration selected by the last tuning phase",
		}, []string{"container", "cell_size_factor", "traversal", "data_layout", "newton3"}),
	}
}

func (m *Metrics) observeIteration(seconds float64, tuning bool, particles int) {
	if m == nil {
		return
	}
	mode := "steady"
	if tuning {
		mode = "tuning"
	}
	m.iterationSeconds.WithLabelValues(mode).Observe(seconds)
	m.particles.Set(float64(particles))
}

func (m *Metrics) observePhase(c sim.Configuration) {
	if m == nil {
		return
	}
	m.tuningPhases.Inc()
	m.selected.Reset()
	m.selected.WithLabelValues(
		c.Container.String(),
		strconv.FormatFloat(c.CellSizeFactor, 'g', -1, 64),
		c.Traversal.String(),
		c.DataLayout.String(),
		c.Newton3.String(),
	).Set(1)
}

func (m *Metrics) observeInvalid() {
	if m != nil {
		m.invalidConfigs.Inc()
	}
}

func (m *Metrics) observeRebuild() {
	if m != nil {
		m.rebuilds.Inc()
	}
}

func (m *Metrics) observeSwitch() {
	if m != nil {
		m.containerSwitches.Inc()
	}
}

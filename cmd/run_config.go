package cmd

import (
	"fmt"
	"math"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/mdtune/mdtune/sim/trace"
)

// RunConfig holds the settings of one `mdtune run`. Each field can come from
// a flag, an MDTUNE_* environment variable or the run YAML file, in that
// order of precedence.
type RunConfig struct {
	Seed         int64
	Iterations   int
	Box          [3]float64 // box is [0, Box)
	Cutoff       float64
	Skin         float64
	Epsilon      float64
	Sigma        float64
	MaxStep      float64 // per-axis drift per iteration
	NumParticles int     // uniform cloud used without a particles file

	ParticlesPath string
	TuningPath    string
	Strategy      string // overrides the tuning config's strategy when set
	Workers       int
	ClusterSize   int

	TraceLevel  string
	MetricsAddr string
	Plot        bool
}

// registerRunFlags defines the run flags on fs.
func registerRunFlags(fs *pflag.FlagSet) {
	fs.Int64("seed", 42, "Seed for particle generation, drift and randomized tuning")
	fs.Int("iterations", 1000, "Number of force iterations")
	fs.Float64("box-x", 10, "Box length along x")
	fs.Float64("box-y", 10, "Box length along y")
	fs.Float64("box-z", 10, "Box length along z")
	fs.Float64("cutoff", 2.5, "Interaction cutoff radius")
	fs.Float64("skin", 0.3, "Verlet skin added to the cutoff")
	fs.Float64("epsilon", 1, "Lennard-Jones well depth")
	fs.Float64("sigma", 1, "Lennard-Jones zero-crossing distance")
	fs.Float64("max-step", 0.005, "Maximum random drift per axis and iteration")
	fs.Int("num-particles", 1000, "Particles in the default uniform cloud")

	fs.String("particles", "", "YAML particle spec (default: uniform cloud of --num-particles)")
	fs.String("tuning-config", "", "YAML tuning config (default: full search over all configurations)")
	fs.String("strategy", "", "Tuning strategy (full-search, full-search-distributed, predictive-tuning, bayesian-search)")
	fs.Int("workers", 0, "Goroutines per parallel traversal (0 = GOMAXPROCS)")
	fs.Int("cluster-size", 4, "Particles per cluster in verlet cluster lists")

	fs.String("trace-level", "phases", "Tuning trace detail (none, phases, samples)")
	fs.String("metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :2112")
	fs.Bool("plot", false, "Plot the traversal time per iteration")
}

// newRunViper binds fs to a fresh viper instance reading MDTUNE_* variables
// and, when configPath is set, the run YAML file.
func newRunViper(fs *pflag.FlagSet, configPath string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("MDTUNE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("binding flags: %w", err)
	}
	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading run config: %w", err)
		}
	}
	return v, nil
}

// readRunConfig resolves every run setting from v.
func readRunConfig(v *viper.Viper) RunConfig {
	return RunConfig{
		Seed:          v.GetInt64("seed"),
		Iterations:    v.GetInt("iterations"),
		Box:           [3]float64{v.GetFloat64("box-x"), v.GetFloat64("box-y"), v.GetFloat64("box-z")},
		Cutoff:        v.GetFloat64("cutoff"),
		Skin:          v.GetFloat64("skin"),
		Epsilon:       v.GetFloat64("epsilon"),
		Sigma:         v.GetFloat64("sigma"),
		MaxStep:       v.GetFloat64("max-step"),
		NumParticles:  v.GetInt("num-particles"),
		ParticlesPath: v.GetString("particles"),
		TuningPath:    v.GetString("tuning-config"),
		Strategy:      v.GetString("strategy"),
		Workers:       v.GetInt("workers"),
		ClusterSize:   v.GetInt("cluster-size"),
		TraceLevel:    v.GetString("trace-level"),
		MetricsAddr:   v.GetString("metrics-addr"),
		Plot:          v.GetBool("plot"),
	}
}

// Validate checks ranges and names.
func (c RunConfig) Validate() error {
	if c.Iterations < 1 {
		return fmt.Errorf("iterations must be >= 1, got %d", c.Iterations)
	}
	for i, l := range c.Box {
		if !(l > 0) || math.IsInf(l, 0) {
			return fmt.Errorf("box length %d must be positive and finite, got %v", i, l)
		}
	}
	if !(c.Cutoff > 0) {
		return fmt.Errorf("cutoff must be positive, got %v", c.Cutoff)
	}
	if c.Skin < 0 {
		return fmt.Errorf("skin must be non-negative, got %v", c.Skin)
	}
	if !(c.Epsilon > 0) || !(c.Sigma > 0) {
		return fmt.Errorf("epsilon and sigma must be positive, got %v and %v", c.Epsilon, c.Sigma)
	}
	if c.MaxStep < 0 {
		return fmt.Errorf("max-step must be non-negative, got %v", c.MaxStep)
	}
	if c.ParticlesPath == "" && c.NumParticles < 1 {
		return fmt.Errorf("num-particles must be >= 1 without a particles file, got %d", c.NumParticles)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", c.Workers)
	}
	if c.ClusterSize < 1 {
		return fmt.Errorf("cluster-size must be >= 1, got %d", c.ClusterSize)
	}
	if !trace.IsValidTraceLevel(c.TraceLevel) {
		return fmt.Errorf("unknown trace level %q", c.TraceLevel)
	}
	return nil
}

// checkDrift verifies that particles cannot move further than half the skin
// between two neighbor list rebuilds.
func checkDrift(maxStep, skin float64, rebuildFrequency int) error {
	if d := maxStep * math.Sqrt(3) * float64(rebuildFrequency); d > skin/2 {
		return fmt.Errorf("max-step %v over %d iterations moves up to %.4g, more than half the skin %v",
			maxStep, rebuildFrequency, d, skin)
	}
	return nil
}

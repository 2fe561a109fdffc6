package autotuner

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mdtune/mdtune/sim"
)

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	for name, mutate := range map[string]func(*Config){
		"tuning interval":   func(c *Config) { c.TuningInterval = 0 },
		"num samples":       func(c *Config) { c.NumSamples = 0 },
		"selector":          func(c *Config) { c.Selector = "fastest-mode" },
		"rebuild frequency": func(c *Config) { c.RebuildFrequency = 0 },
		"workers":           func(c *Config) { c.Workers = -2 },
	} {
		c := DefaultConfig()
		mutate(&c)
		assert.Error(t, c.Validate(), name)
	}
}

func TestConfigFromBundle_OverlaysSetFields(t *testing.T) {
	interval, samples := 40, 5
	b := &sim.TuningBundle{TuningInterval: &interval, NumSamples: &samples, Selector: "fastest-median"}

	cfg := ConfigFromBundle(b)

	assert.Equal(t, 40, cfg.TuningInterval)
	assert.Equal(t, 5, cfg.NumSamples)
	assert.Equal(t, "fastest-median", cfg.Selector)
	assert.Equal(t, DefaultConfig().RebuildFrequency, cfg.RebuildFrequency)
	assert.Equal(t, DefaultConfig(), ConfigFromBundle(nil))
}

func TestReduceSamples(t *testing.T) {
	tests := []struct {
		selector string
		samples  []int64
		want     int64
	}{
		{"", []int64{30, 10, 20}, 10},
		{"fastest-abs", []int64{30, 10, 20}, 10},
		{"fastest-mean", []int64{30, 10, 20}, 20},
		{"fastest-mean", []int64{1, 2}, 2},
		{"fastest-median", []int64{50, 10, 20}, 20},
		{"fastest-median", []int64{40, 10, 30, 20}, 20},
		{"fastest-median", []int64{7}, 7},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, reduceSamples(tc.selector, tc.samples), "%s %v", tc.selector, tc.samples)
	}
	assert.Panics(t, func() { reduceSamples("slowest", []int64{1}) })
}

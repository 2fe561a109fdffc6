package cmd

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mdtune/mdtune/sim/generator"
)

// loadParticleSpec parses a particle spec YAML file.
// Uses strict field checking so typos in object keys are errors.
func loadParticleSpec(path string) (*generator.Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading particle spec: %w", err)
	}
	var spec generator.Spec
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&spec); err != nil {
		return nil, fmt.Errorf("parsing particle spec: %w", err)
	}
	return &spec, nil
}

// particleSpec returns the spec from cfg.ParticlesPath, or a uniform cloud
// of cfg.NumParticles filling the box.
func particleSpec(cfg RunConfig) (*generator.Spec, error) {
	if cfg.ParticlesPath != "" {
		return loadParticleSpec(cfg.ParticlesPath)
	}
	return &generator.Spec{Objects: []generator.Object{{
		Kind:         generator.KindUniform,
		NumParticles: cfg.NumParticles,
		Max:          cfg.Box,
	}}}, nil
}

// Package sim provides the core types of the mdtune pairwise-interaction engine.
//
// # Reading Guide
//
// Start with these files:
//   - configuration.go: the Configuration tuple and its total order
//   - compatibility.go: the static container × traversal table
//   - searchspace.go: search-space enumeration and Newton3 pruning
//   - functor.go: the pairwise functor contract traversals call into
//
// # Architecture
//
// The sim package defines value types and interfaces; implementations live in
// sub-packages:
//   - sim/container/: spatial containers and their neighbor-list rebuilders
//   - sim/traversal/: traversals over container topologies
//   - sim/tuning/: tuning strategies (full, distributed, Bayesian, predictive)
//   - sim/collective/: message passing for distributed tuning
//   - sim/autotuner/: the orchestrator driving tuning phases
//   - sim/functor/: Lennard-Jones, flop and pair counting functors
//   - sim/generator/: particle generators and periodic halos
//   - sim/trace/: tuning decision traces
//
// Option sets and strategy parameters are passed explicitly through
// SearchSpaceOptions and TuningBundle; there is no process-wide registry.
package sim

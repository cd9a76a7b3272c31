// Package agent runs the node lifecycle against the configuration service.
// A run builds the node's identity, registers or loads its credential,
// authenticates, applies attribute files, saves the node and hands the
// compiled resource graph to the execution engine.
//
// A run is strictly sequential and is never resumed. Any failure ends the run
// in StateFailed with a StepError naming the step that failed; a later run
// starts over from StateStart.
package agent

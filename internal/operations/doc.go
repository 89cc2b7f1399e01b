// Package operations orchestrates the analysis of uploaded datasets.
//
// The Orchestrator runs a single file through a fixed sequence of
// steps: parse, validate, then the four insight stages. Progress is
// broadcast over the websocket hub after each step, results are
// persisted before the completion event goes out, and any failure is
// recorded as a failed run without crashing the worker.
//
// The Queue is a bounded worker pool in front of the Orchestrator.
// Enqueue is fire and forget from the caller's point of view; a
// per-file in-flight guard rejects a second run for a file whose
// analysis has not finished yet.
package operations

// Package services defines shared utilities consumed by the pipeline
// orchestrator, its collaborators, and the reference stage handlers.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, pipeline names, stage names, and
//     attempt numbers for logging and audit correlation.
//   - Structured error markers plus the Wrap helper so configuration,
//     policy, handler, and persistence failures can be classified with
//     errors.Is instead of string matching.
//   - Details, which unpacks a wrapped error into the fields the logging
//     layer emits.
//
// Use these helpers when wiring new stage logic so operational behaviour
// (error handling, observability, retries) stays uniform across the pipeline.
package services

// Package pipeline hosts the stage registry and the orchestrator that runs
// registered stages in order against a payload.
//
// Each Execute call walks the registry sequentially. External stages consult
// the compliance gate before their handler is invoked; handlers are retried
// with a fixed delay under their RetryPolicy; a failed required stage causes
// every later stage to be recorded as skipped. Stage-level failures never
// surface as an error from Execute. They are captured in the RunReport, which
// is optionally persisted to the artifact store, and every attempt is written
// to the audit sink followed by one terminal pipeline_complete entry.
package pipeline

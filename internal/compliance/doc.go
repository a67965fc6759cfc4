// Package compliance decides which actions a pipeline may perform under the
// current operating mode and validates records against data rules.
//
// The Gate is consulted by the orchestrator before every stage flagged as
// external. TEST and DRY_RUN deny those stages outright; LIVE permits them.
// The Checker applies RequiredFields and FieldFormat rules to map-shaped
// records and reports issues with a severity so callers decide what is fatal.
package compliance

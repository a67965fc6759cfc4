// Package stage defines the contract between the pipeline orchestrator and
// the handlers it runs: a single payload-to-payload capability plus optional
// health and logger hooks.
package stage

// Package main hosts the surplus CLI entrypoint and command graph.
//
// The Cobra command tree loads configuration once, builds pipelines from YAML
// manifests, runs them under the configured operating mode, and exposes the
// run history, audit log, and artifact store for inspection. Heavy lifting
// lives in the internal packages; commands here only wire and render.
package main

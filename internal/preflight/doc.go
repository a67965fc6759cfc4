// Package preflight provides readiness checks for the filesystem paths,
// record source, and history database that pipeline runs depend on.
//
// The CLI "surplus check" command runs RunAll next to the per-stage health
// checks. Network probes are gated by their config toggles.
package preflight

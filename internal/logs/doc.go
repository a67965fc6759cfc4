// Package logs reads the per-run JSON log files written by pipeline runs.
//
// Tail returns the last lines of a file and supports follow mode with a
// bounded wait; Parse and Filter turn raw lines into Events so the CLI can
// show one stage's history without loading whole files into memory.
package logs

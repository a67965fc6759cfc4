// Package testsupport builds isolated configs and opens stores rooted in
// per-test temp directories.
package testsupport

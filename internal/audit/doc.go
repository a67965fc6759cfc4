// Package audit records append-only structured entries describing what a
// pipeline did, under which mode, and with what result.
//
// FileSink persists entries as JSON lines and serializes appends with both an
// in-process mutex and an advisory file lock, so several processes can share
// one audit file without interleaving lines. MemorySink backs tests and
// dry wiring. Find and Load give operators a query surface over persisted
// entries; the orchestrator itself only ever writes.
package audit

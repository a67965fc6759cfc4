package testsupport

import (
	"testing"

	"surplus/internal/artifact"
	"surplus/internal/audit"
	"surplus/internal/compliance"
	"surplus/internal/config"
	"surplus/internal/runstore"
)

// MustOpenRunStore opens a runstore.Store for tests and registers cleanup.
func MustOpenRunStore(t testing.TB, cfg *config.Config) *runstore.Store {
	t.Helper()

	store, err := runstore.Open(cfg)
	if err != nil {
		t.Fatalf("open run store: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

// MustOpenArtifactStore opens the configured artifact store.
func MustOpenArtifactStore(t testing.TB, cfg *config.Config) *artifact.FSStore {
	t.Helper()

	store, err := artifact.NewFSStore(cfg.Paths.ArtifactDir)
	if err != nil {
		t.Fatalf("open artifact store: %v", err)
	}
	return store
}

// MustOpenAuditSink opens the configured audit file sink.
func MustOpenAuditSink(t testing.TB, cfg *config.Config) *audit.FileSink {
	t.Helper()

	sink, err := audit.NewFileSink(cfg.AuditFile())
	if err != nil {
		t.Fatalf("open audit sink: %v", err)
	}
	return sink
}

// MustNewGate builds the mode gate for the configured operating mode.
func MustNewGate(t testing.TB, cfg *config.Config) *compliance.ModeGate {
	t.Helper()

	gate, err := compliance.NewModeGate(cfg.OperatingMode())
	if err != nil {
		t.Fatalf("new gate: %v", err)
	}
	return gate
}

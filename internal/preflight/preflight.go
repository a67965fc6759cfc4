package preflight

import (
	"context"

	"surplus/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// Network probes only run when the matching feature is configured.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Artifact directory", cfg.Paths.ArtifactDir),
		CheckDirectoryAccess("Audit directory", cfg.Paths.AuditDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
	}

	// Fixtures are the only record source while the network is off.
	if !cfg.NetworkEnabled() {
		results = append(results, CheckDirectoryAccess("Fixtures directory", cfg.Paths.FixturesDir))
	} else {
		results = append(results, CheckEndpoint(ctx, "Record source", cfg.Fetch.BaseURL, cfg.Fetch.UserAgent))
	}

	if cfg.Pipeline.RecordHistory {
		results = append(results, CheckRunStore(ctx, cfg))
	}

	results = append(results, CheckWebhook(cfg))
	return results
}

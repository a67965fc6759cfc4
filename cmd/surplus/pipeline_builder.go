package main

import (
	"fmt"
	"log/slog"
	"strings"

	"surplus/internal/artifact"
	"surplus/internal/audit"
	"surplus/internal/compliance"
	"surplus/internal/config"
	"surplus/internal/manifest"
	"surplus/internal/notifications"
	"surplus/internal/pipeline"
	"surplus/internal/runstore"
	"surplus/internal/stages"
)

type buildOptions struct {
	manifestPath string
	noPersist    bool
	noHistory    bool
	dryBuild     bool
}

// builtPipeline bundles an orchestrator with the resources it holds open.
type builtPipeline struct {
	manifest *manifest.Manifest
	orch     *pipeline.Orchestrator
	gate     *compliance.ModeGate
	notifier notifications.Service
	history  *runstore.Store
}

func (b *builtPipeline) Close() {
	if b != nil && b.history != nil {
		_ = b.history.Close()
	}
}

// buildPipeline loads the manifest and wires every collaborator from cfg.
// dryBuild skips the audit, artifact, and history stores so validation
// commands never write anything.
func buildPipeline(cfg *config.Config, logger *slog.Logger, opts buildOptions) (*builtPipeline, error) {
	path := strings.TrimSpace(opts.manifestPath)
	if path == "" {
		return nil, fmt.Errorf("pipeline manifest is required (use --pipeline)")
	}
	m, err := manifest.Load(path)
	if err != nil {
		return nil, err
	}
	gate, err := compliance.NewModeGate(cfg.OperatingMode())
	if err != nil {
		return nil, err
	}
	notifier := notifications.NewService(cfg)
	catalog, err := stages.NewCatalog(stages.Deps{Config: cfg, Notifier: notifier, Logger: logger})
	if err != nil {
		return nil, err
	}

	built := &builtPipeline{manifest: m, gate: gate, notifier: notifier}
	pipelineOpts := pipeline.Options{
		Name:           m.Name,
		Gate:           gate,
		Logger:         logger,
		Actor:          cfg.Run.Actor,
		RetryDelay:     cfg.RetryDelay(),
		StageLogLevels: cfg.Logging.StageOverrides,
	}
	if !opts.dryBuild {
		sink, err := audit.NewFileSink(cfg.AuditFile())
		if err != nil {
			return nil, err
		}
		pipelineOpts.Audit = sink
		pipelineOpts.RunLogDir = cfg.Paths.LogDir
		pipelineOpts.RunLogLevel = cfg.Logging.Level
		if cfg.Pipeline.PersistReports && !opts.noPersist {
			store, err := artifact.NewFSStore(cfg.Paths.ArtifactDir)
			if err != nil {
				return nil, err
			}
			pipelineOpts.Artifacts = store
		}
		if cfg.Pipeline.RecordHistory && !opts.noHistory {
			history, err := runstore.Open(cfg)
			if err != nil {
				return nil, fmt.Errorf("open run history: %w", err)
			}
			built.history = history
			pipelineOpts.Recorder = history
		}
	}

	orch, err := pipeline.New(pipelineOpts)
	if err != nil {
		built.Close()
		return nil, err
	}
	if err := m.Build(orch, catalog); err != nil {
		built.Close()
		return nil, err
	}
	built.orch = orch
	return built, nil
}

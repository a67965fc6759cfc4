package pipeline

import (
	"context"
	"log/slog"

	"surplus/internal/audit"
	"surplus/internal/logging"
)

func (o *Orchestrator) record(ctx context.Context, logger *slog.Logger, report *RunReport, entry audit.Entry) {
	if o.sink == nil {
		return
	}
	entry.Actor = o.actor
	entry.Mode = report.Mode
	entry.RunID = report.RunID
	if err := o.sink.Record(ctx, entry); err != nil {
		report.Persistence.AuditFailures++
		logging.WarnWithContext(
			logger,
			"audit entry not recorded",
			"audit_write_failed",
			logging.String("action", entry.Action),
			logging.String("result", string(entry.Result)),
			logging.String(logging.FieldImpact, "audit trail for this run is incomplete"),
			logging.String(logging.FieldErrorHint, "check audit_dir permissions and free space"),
			logging.Error(err),
		)
	}
}

func (o *Orchestrator) persistReport(ctx context.Context, logger *slog.Logger, report *RunReport) {
	if o.artifacts == nil {
		return
	}
	id, err := o.artifacts.Put(ctx, report)
	if err != nil {
		report.Persistence.ArtifactError = err.Error()
		logging.ErrorWithContext(
			logger,
			"run report not persisted",
			"artifact_write_failed",
			logging.String(logging.FieldErrorHint, "check artifact_dir permissions and free space"),
			logging.Error(err),
		)
		return
	}
	report.ArtifactID = id
	logger.Debug(
		"run report persisted",
		logging.String(logging.FieldEventType, "artifact_persisted"),
		logging.String("artifact_id", id),
	)
}

func (o *Orchestrator) recordTerminal(ctx context.Context, logger *slog.Logger, report *RunReport) {
	result := audit.ResultOK
	if report.Status != StatusOK {
		result = audit.ResultError
	}
	counts := report.Counts()
	details := map[string]any{
		"status":         string(report.Status),
		"duration_ms":    report.FinishedAt.Sub(report.StartedAt).Milliseconds(),
		"stage_count":    len(report.StageResults),
		"stages_ok":      counts[StageOK],
		"stages_error":   counts[StageError],
		"stages_skipped": counts[StageSkipped],
	}
	if report.ArtifactID != "" {
		details["artifact_id"] = report.ArtifactID
	}
	if report.Persistence.ArtifactError != "" {
		details["artifact_error"] = report.Persistence.ArtifactError
	}
	if report.Canceled {
		details["canceled"] = true
	}
	objectID := report.Pipeline
	if objectID == "" {
		objectID = report.RunID
	}
	o.record(ctx, logger, report, audit.Entry{
		Action:     ActionPipelineComplete,
		ObjectType: objectPipeline,
		ObjectID:   objectID,
		Result:     result,
		Details:    details,
	})
}

func (o *Orchestrator) recordHistory(ctx context.Context, logger *slog.Logger, report *RunReport) {
	if o.recorder == nil {
		return
	}
	if err := o.recorder.RecordRun(ctx, report); err != nil {
		report.Persistence.HistoryError = err.Error()
		logging.WarnWithContext(
			logger,
			"run history not recorded",
			"history_write_failed",
			logging.String(logging.FieldImpact, "run will not appear in run listings"),
			logging.String(logging.FieldErrorHint, "check state_dir permissions"),
			logging.Error(err),
		)
	}
}

// runLogger tees the orchestrator logger into a per-run JSON file when a run
// log directory is configured.
func (o *Orchestrator) runLogger(runID string) (*slog.Logger, func()) {
	if o.runLogDir == "" {
		return o.logger, func() {}
	}
	handler, closer, err := logging.OpenRunLog(o.runLogDir, runID, o.runLogLevel)
	if err != nil {
		logging.WarnWithContext(
			o.logger,
			"run log unavailable",
			"run_log_open_failed",
			logging.String(logging.FieldImpact, "run continues without a dedicated log file"),
			logging.Error(err),
		)
		return o.logger, func() {}
	}
	handler = handler.WithAttrs([]slog.Attr{slog.String(logging.FieldComponent, "pipeline")})
	return logging.TeeLogger(o.logger, handler), func() { _ = closer.Close() }
}

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"surplus/internal/audit"
	"surplus/internal/logging"
	"surplus/internal/services"
	"surplus/internal/stage"
)

const (
	objectStage    = "stage"
	objectPipeline = "pipeline"

	// ActionPipelineComplete is the action of the terminal audit entry.
	ActionPipelineComplete = "pipeline_complete"
)

// Execute runs every registered stage in order against payload and returns
// the resulting report. Stage failures, policy denials, and collaborator
// failures are captured in the report; Execute does not return them as
// errors. The first call freezes the registry.
func (o *Orchestrator) Execute(ctx context.Context, payload stage.Payload) (*RunReport, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	o.runMu.Lock()
	defer o.runMu.Unlock()

	stages := o.freeze()
	runID := uuid.NewString()
	started := o.now()

	runCtx := services.WithPipeline(services.WithRunID(ctx, runID), o.name)
	// Audit, artifact and history writes outlive caller cancellation.
	persistCtx := context.WithoutCancel(runCtx)

	base, closeRunLog := o.runLogger(runID)
	defer closeRunLog()
	logger := logging.WithContext(runCtx, base)

	if payload == nil {
		payload = stage.Payload{}
	}
	report := &RunReport{
		RunID:        runID,
		Pipeline:     o.name,
		Mode:         o.gate.Mode(),
		StartedAt:    started.UTC(),
		StageResults: make([]StageResult, 0, len(stages)),
	}

	logger.Info(
		"pipeline started",
		logging.String(logging.FieldEventType, "pipeline_start"),
		logging.Int("stage_count", len(stages)),
		logging.String("mode", report.Mode.String()),
	)

	current := payload
	fatal := false
	for _, s := range stages {
		if !fatal {
			if err := ctx.Err(); err != nil {
				report.Canceled = true
				fatal = true
				logging.WarnWithContext(
					logger,
					"pipeline canceled",
					"pipeline_canceled",
					logging.String(logging.FieldStage, s.Name),
					logging.Error(err),
					logging.String(logging.FieldImpact, "remaining stages are skipped"),
					logging.String(logging.FieldErrorHint, "raise the run timeout or rerun the pipeline"),
				)
			}
		}
		if fatal {
			reason := "earlier required stage failed"
			if report.Canceled {
				reason = "run canceled"
			}
			report.StageResults = append(report.StageResults, o.skip(runCtx, base, s, reason))
			continue
		}
		result, out := o.runStage(runCtx, persistCtx, base, report, s, current)
		report.StageResults = append(report.StageResults, result)
		switch {
		case result.Status == StageOK:
			current = out
		case s.Required:
			fatal = true
		}
	}

	report.Output = current
	report.Status = resolveStatus(report.StageResults)
	finished := o.now()
	report.FinishedAt = finished.UTC()
	report.Duration = Duration(finished.Sub(started))

	o.persistReport(persistCtx, logger, report)
	o.recordTerminal(persistCtx, logger, report)
	o.recordHistory(persistCtx, logger, report)
	o.setLast(report.StageResults)

	counts := report.Counts()
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "pipeline_complete"),
		logging.String("status", string(report.Status)),
		logging.Int("stages_ok", counts[StageOK]),
		logging.Int("stages_error", counts[StageError]),
		logging.Int("stages_skipped", counts[StageSkipped]),
		logging.Duration("pipeline_duration", finished.Sub(started)),
	}
	if report.ArtifactID != "" {
		attrs = append(attrs, logging.String("artifact_id", report.ArtifactID))
	}
	if report.Persistence.Failed() {
		attrs = append(attrs, logging.Alert("persistence_degraded"))
	}
	logger.Info("pipeline completed", logging.Args(attrs...)...)
	return report, nil
}

func (o *Orchestrator) runStage(ctx, persistCtx context.Context, base *slog.Logger, report *RunReport, s Stage, in stage.Payload) (StageResult, stage.Payload) {
	stageCtx := services.WithStage(ctx, s.Name)
	logger := logging.WithContext(stageCtx, logging.WithStageLevel(base, o.stageLogLevels, s.Name))
	if aware, ok := s.Handler.(stage.LoggerAware); ok {
		aware.SetLogger(logger)
	}

	start := o.now()
	result := StageResult{
		StageName: s.Name,
		Required:  s.Required,
		StartedAt: start.UTC(),
	}

	if s.External && !o.gate.IsAllowed(s.Name) {
		err := o.gate.AssertAllowed(s.Name)
		if err == nil {
			err = services.Wrap(services.ErrPolicyDenied, s.Name, "gate", "action not allowed in mode "+o.gate.Mode().String(), nil)
		}
		result.Status = StageError
		result.AttemptsUsed = 1
		result.Denied = true
		result.Err = err
		result.ErrorDetail = err.Error()
		result.ErrorKind = errorKind(err)
		result.Duration = Duration(o.now().Sub(start))
		logging.WarnWithContext(
			logger,
			"stage blocked by compliance gate",
			"stage_denied",
			logging.String("mode", o.gate.Mode().String()),
			logging.Bool("required", s.Required),
			logging.String(logging.FieldImpact, "external action not performed"),
			logging.String(logging.FieldErrorHint, "run in LIVE mode to perform external actions"),
		)
		o.record(persistCtx, logger, report, audit.Entry{
			Action:     s.Name,
			ObjectType: objectStage,
			ObjectID:   s.Name,
			Result:     audit.ResultDenied,
			Details: map[string]any{
				"attempt":  1,
				"required": s.Required,
				"reason":   err.Error(),
			},
		})
		return result, nil
	}

	maxAttempts := s.Retry.attempts()
	logger.Info(
		"stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.Int("max_attempts", maxAttempts),
		logging.Bool("required", s.Required),
		logging.Bool("external", s.External),
	)

	var (
		lastErr   error
		lastCause error
	)
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		attemptCtx := services.WithAttempt(stageCtx, attempt)
		attemptStart := o.now()
		out, err := invoke(attemptCtx, s.Handler, in.Clone())
		elapsed := o.now().Sub(attemptStart)
		result.AttemptsUsed = attempt

		if err == nil {
			if out == nil {
				out = stage.Payload{}
			}
			o.record(persistCtx, logger, report, audit.Entry{
				Action:     s.Name,
				ObjectType: objectStage,
				ObjectID:   s.Name,
				Result:     audit.ResultOK,
				Details: map[string]any{
					"attempt":      attempt,
					"max_attempts": maxAttempts,
					"duration_ms":  elapsed.Milliseconds(),
				},
			})
			result.Status = StageOK
			result.Output = out
			result.Duration = Duration(o.now().Sub(start))
			logger.Info(
				"stage completed",
				logging.String(logging.FieldEventType, "stage_complete"),
				logging.Int("attempts_used", attempt),
				logging.Duration("stage_duration", o.now().Sub(start)),
			)
			return result, out
		}

		lastCause = err
		lastErr = services.Wrap(services.ErrHandler, s.Name, fmt.Sprintf("attempt %d/%d", attempt, maxAttempts), "", err)
		o.record(persistCtx, logger, report, audit.Entry{
			Action:     s.Name,
			ObjectType: objectStage,
			ObjectID:   s.Name,
			Result:     audit.ResultError,
			Details: map[string]any{
				"attempt":      attempt,
				"max_attempts": maxAttempts,
				"duration_ms":  elapsed.Milliseconds(),
				"error":        err.Error(),
			},
		})
		if attempt == maxAttempts {
			break
		}
		logger.Warn(
			"stage attempt failed",
			logging.String(logging.FieldEventType, "stage_attempt_failed"),
			logging.Int(logging.FieldAttempt, attempt),
			logging.Int("max_attempts", maxAttempts),
			logging.Duration("retry_delay", o.retryDelay),
			logging.Error(err),
		)
		if waitErr := o.sleep(stageCtx, o.retryDelay); waitErr != nil {
			logger.Debug("retry wait interrupted", logging.Error(waitErr))
			break
		}
	}

	result.Status = StageError
	result.Err = lastErr
	result.ErrorDetail = lastErr.Error()
	result.ErrorKind = errorKind(lastCause)
	result.Duration = Duration(o.now().Sub(start))
	logging.ErrorWithContext(
		logger,
		"stage failed",
		"stage_failure",
		logging.Int("attempts_used", result.AttemptsUsed),
		logging.Bool("required", s.Required),
		logging.String(logging.FieldErrorKind, result.ErrorKind),
		logging.String("error_message", errorMessage(lastCause)),
		logging.Error(lastErr),
	)
	return result, nil
}

func (o *Orchestrator) skip(ctx context.Context, base *slog.Logger, s Stage, reason string) StageResult {
	logger := logging.WithContext(services.WithStage(ctx, s.Name), base)
	logger.Info(
		"stage skipped",
		logging.String(logging.FieldEventType, "stage_skipped"),
		logging.String("reason", reason),
	)
	return StageResult{StageName: s.Name, Status: StageSkipped, Required: s.Required}
}

// invoke calls h and converts a panic into a handler failure.
func invoke(ctx context.Context, h stage.Handler, in stage.Payload) (out stage.Payload, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = services.Wrap(services.ErrHandler, "", "handle", fmt.Sprintf("handler panicked: %v", r), nil)
		}
	}()
	return h.Handle(ctx, in)
}

func errorKind(err error) string {
	if err == nil {
		return ""
	}
	if kind := services.Details(err).Kind; kind != "" {
		return kind
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "canceled"
	}
	return "handler_failure"
}

func errorMessage(err error) string {
	if err == nil {
		return ""
	}
	details := services.Details(err)
	if details.Message != "" {
		return details.Message
	}
	return err.Error()
}

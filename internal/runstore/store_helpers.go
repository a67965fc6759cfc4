package runstore

import (
	"database/sql"
	"strings"
	"time"

	"surplus/internal/compliance"
	"surplus/internal/pipeline"
)

const runColumns = "run_id, pipeline, mode, status, artifact_id, started_at, finished_at, duration_ms, stage_count, canceled, artifact_error, audit_failures"

func scanRun(scanner interface{ Scan(dest ...any) error }) (*Run, error) {
	var (
		runID         string
		pipelineName  sql.NullString
		mode          string
		status        string
		artifactID    sql.NullString
		startedRaw    string
		finishedRaw   string
		durationMS    int64
		stageCount    int
		canceled      int
		artifactError sql.NullString
		auditFailures int
	)
	if err := scanner.Scan(
		&runID,
		&pipelineName,
		&mode,
		&status,
		&artifactID,
		&startedRaw,
		&finishedRaw,
		&durationMS,
		&stageCount,
		&canceled,
		&artifactError,
		&auditFailures,
	); err != nil {
		return nil, err
	}
	return &Run{
		RunID:         runID,
		Pipeline:      pipelineName.String,
		Mode:          compliance.Mode(mode),
		Status:        pipeline.Status(status),
		ArtifactID:    artifactID.String,
		StartedAt:     parseTime(startedRaw),
		FinishedAt:    parseTime(finishedRaw),
		Duration:      time.Duration(durationMS) * time.Millisecond,
		StageCount:    stageCount,
		Canceled:      canceled != 0,
		ArtifactError: artifactError.String,
		AuditFailures: auditFailures,
	}, nil
}

func parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return ts
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func escapeLike(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(value)
}

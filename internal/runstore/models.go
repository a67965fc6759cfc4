package runstore

import (
	"time"

	"surplus/internal/compliance"
	"surplus/internal/pipeline"
)

// Run is one row of run history with its stage rows.
type Run struct {
	RunID         string          `json:"run_id"`
	Pipeline      string          `json:"pipeline"`
	Mode          compliance.Mode `json:"mode"`
	Status        pipeline.Status `json:"status"`
	ArtifactID    string          `json:"artifact_id,omitempty"`
	StartedAt     time.Time       `json:"started_at"`
	FinishedAt    time.Time       `json:"finished_at"`
	Duration      time.Duration   `json:"duration_ns"`
	StageCount    int             `json:"stage_count"`
	Canceled      bool            `json:"canceled,omitempty"`
	ArtifactError string          `json:"artifact_error,omitempty"`
	AuditFailures int             `json:"audit_failures,omitempty"`
	Stages        []StageRow      `json:"stages,omitempty"`
}

// StageRow is the stored summary of one stage result.
type StageRow struct {
	Position     int                  `json:"position"`
	Name         string               `json:"stage_name"`
	Status       pipeline.StageStatus `json:"status"`
	Required     bool                 `json:"required"`
	AttemptsUsed int                  `json:"attempts_used"`
	Duration     time.Duration        `json:"duration_ns"`
	Denied       bool                 `json:"denied,omitempty"`
	ErrorKind    string               `json:"error_kind,omitempty"`
	ErrorDetail  string               `json:"error_detail,omitempty"`
}

// ListOptions filters List results. Zero values match everything.
type ListOptions struct {
	Status   pipeline.Status
	Pipeline string
	Limit    int
}

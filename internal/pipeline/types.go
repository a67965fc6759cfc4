package pipeline

import (
	"time"

	"surplus/internal/compliance"
	"surplus/internal/stage"
)

// RetryPolicy bounds how many times a stage handler is invoked.
type RetryPolicy struct {
	Enabled     bool `json:"enabled" yaml:"enabled"`
	MaxAttempts int  `json:"max_attempts" yaml:"max_attempts"`
}

// NoRetry runs a handler exactly once.
var NoRetry = RetryPolicy{}

// Retry returns an enabled policy allowing up to attempts invocations.
func Retry(attempts int) RetryPolicy {
	return RetryPolicy{Enabled: true, MaxAttempts: attempts}
}

func (p RetryPolicy) attempts() int {
	if !p.Enabled || p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// Stage is one registered unit of work.
type Stage struct {
	Name        string
	Description string
	Handler     stage.Handler
	Required    bool
	Retry       RetryPolicy
	// External stages are checked against the compliance gate before the
	// handler runs. Register sets it for handlers implementing
	// stage.ExternalAction.
	External bool
}

// Status is the overall outcome of a run.
type Status string

const (
	StatusOK      Status = "ok"
	StatusPartial Status = "partial"
	StatusFailed  Status = "failed"
)

// StageStatus is the outcome of one stage within a run.
type StageStatus string

const (
	StageOK      StageStatus = "ok"
	StageError   StageStatus = "error"
	StageSkipped StageStatus = "skipped"
)

// Duration marshals as a Go duration string ("1.5s") so persisted reports
// stay readable.
type Duration time.Duration

func (d Duration) String() string { return time.Duration(d).String() }

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// StageResult records what happened to one stage. Output is set only when
// Status is ok; ErrorDetail only when Status is error.
type StageResult struct {
	StageName    string        `json:"stage_name"`
	Status       StageStatus   `json:"status"`
	AttemptsUsed int           `json:"attempts_used"`
	Duration     Duration      `json:"duration"`
	Output       stage.Payload `json:"output,omitempty"`
	ErrorDetail  string        `json:"error_detail,omitempty"`
	ErrorKind    string        `json:"error_kind,omitempty"`
	Denied       bool          `json:"denied,omitempty"`
	Required     bool          `json:"required"`
	StartedAt    time.Time     `json:"started_at,omitzero"`

	// Err is the last failure, kept for errors.Is/As by in-process callers.
	Err error `json:"-"`
}

// Persistence reports collaborator failures that did not abort the run.
type Persistence struct {
	ArtifactError string `json:"artifact_error,omitempty"`
	AuditFailures int    `json:"audit_failures,omitempty"`
	HistoryError  string `json:"history_error,omitempty"`
}

// Failed reports whether any collaborator write failed.
func (p Persistence) Failed() bool {
	return p.ArtifactError != "" || p.AuditFailures > 0 || p.HistoryError != ""
}

// RunReport is the result of one Execute call.
type RunReport struct {
	RunID        string          `json:"run_id"`
	Pipeline     string          `json:"pipeline,omitempty"`
	Mode         compliance.Mode `json:"mode"`
	Status       Status          `json:"status"`
	Output       stage.Payload   `json:"output"`
	StageResults []StageResult   `json:"stage_results"`
	ArtifactID   string          `json:"artifact_id,omitempty"`
	StartedAt    time.Time       `json:"started_at"`
	FinishedAt   time.Time       `json:"finished_at"`
	Duration     Duration        `json:"duration"`
	Canceled     bool            `json:"canceled,omitempty"`
	Persistence  Persistence     `json:"persistence"`
}

// StageResult returns the result recorded for name.
func (r *RunReport) StageResult(name string) (StageResult, bool) {
	if r == nil {
		return StageResult{}, false
	}
	for _, result := range r.StageResults {
		if result.StageName == name {
			return result, true
		}
	}
	return StageResult{}, false
}

// TotalAttempts sums handler invocations across stages; a denial counts as one.
func (r *RunReport) TotalAttempts() int {
	if r == nil {
		return 0
	}
	total := 0
	for _, result := range r.StageResults {
		total += result.AttemptsUsed
	}
	return total
}

// Counts tallies stage results by status.
func (r *RunReport) Counts() map[StageStatus]int {
	counts := map[StageStatus]int{StageOK: 0, StageError: 0, StageSkipped: 0}
	if r == nil {
		return counts
	}
	for _, result := range r.StageResults {
		counts[result.Status]++
	}
	return counts
}

// resolveStatus applies the run status rule: ok when every stage is ok,
// failed when any required stage errored or never ran, partial otherwise.
func resolveStatus(results []StageResult) Status {
	allOK := true
	for _, result := range results {
		if result.Required && result.Status != StageOK {
			return StatusFailed
		}
		if result.Status != StageOK {
			allOK = false
		}
	}
	if allOK {
		return StatusOK
	}
	return StatusPartial
}

package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"surplus/internal/artifact"
	"surplus/internal/audit"
	"surplus/internal/compliance"
	"surplus/internal/logging"
	"surplus/internal/services"
	"surplus/internal/stage"
)

// Recorder receives every finished report, typically a run history store.
type Recorder interface {
	RecordRun(ctx context.Context, report *RunReport) error
}

// Options wires the orchestrator's collaborators. Gate is required; a nil
// Artifacts store disables report persistence and a nil Audit sink disables
// audit recording.
type Options struct {
	Name       string
	Gate       compliance.Gate
	Audit      audit.Sink
	Artifacts  artifact.Store
	Recorder   Recorder
	Logger     *slog.Logger
	Actor      string
	RetryDelay time.Duration

	// RunLogDir, when set, receives one JSON log file per run.
	RunLogDir   string
	RunLogLevel string
	// StageLogLevels overrides the log level for individual stages.
	StageLogLevels map[string]string
}

// Orchestrator owns a stage registry and executes it. It holds no
// process-wide state; distinct orchestrators may run concurrently.
type Orchestrator struct {
	name       string
	gate       compliance.Gate
	sink       audit.Sink
	artifacts  artifact.Store
	recorder   Recorder
	logger     *slog.Logger
	actor      string
	retryDelay time.Duration

	runLogDir      string
	runLogLevel    string
	stageLogLevels map[string]string

	// sleep waits between attempts; replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time

	mu     sync.Mutex
	stages []Stage
	index  map[string]int
	frozen bool
	last   []StageResult

	runMu sync.Mutex
}

// New constructs an orchestrator from opts.
func New(opts Options) (*Orchestrator, error) {
	if opts.Gate == nil {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "new", "compliance gate is required", nil)
	}
	if opts.RetryDelay < 0 {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "new", "retry delay must be >= 0", nil)
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	actor := strings.TrimSpace(opts.Actor)
	if actor == "" {
		actor = "surplus"
	}
	return &Orchestrator{
		name:           strings.TrimSpace(opts.Name),
		gate:           opts.Gate,
		sink:           opts.Audit,
		artifacts:      opts.Artifacts,
		recorder:       opts.Recorder,
		logger:         logging.NewComponentLogger(logger, "pipeline"),
		actor:          actor,
		retryDelay:     opts.RetryDelay,
		runLogDir:      strings.TrimSpace(opts.RunLogDir),
		runLogLevel:    opts.RunLogLevel,
		stageLogLevels: opts.StageLogLevels,
		sleep:          sleepContext,
		now:            time.Now,
		index:          make(map[string]int),
	}, nil
}

// Name returns the pipeline name used in logs and audit entries.
func (o *Orchestrator) Name() string {
	return o.name
}

// Mode returns the operating mode of the orchestrator's gate.
func (o *Orchestrator) Mode() compliance.Mode {
	return o.gate.Mode()
}

// Register appends s to the registry. It fails on duplicate names, invalid
// retry policies, missing handlers, or once Execute has been called.
func (o *Orchestrator) Register(s Stage) error {
	s.Name = strings.TrimSpace(s.Name)
	if s.Name == "" {
		return services.Wrap(services.ErrConfiguration, "pipeline", "register", "stage name is required", nil)
	}
	if s.Handler == nil {
		return services.Wrap(services.ErrConfiguration, s.Name, "register", "stage handler is required", nil)
	}
	if s.Retry.Enabled && s.Retry.MaxAttempts < 1 {
		return &InvalidRetryPolicyError{Stage: s.Name, MaxAttempts: s.Retry.MaxAttempts}
	}
	if ext, ok := s.Handler.(stage.ExternalAction); ok && ext.External() {
		s.External = true
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.frozen {
		return ErrRegistryFrozen
	}
	if _, exists := o.index[s.Name]; exists {
		return &DuplicateStageError{Name: s.Name}
	}
	o.index[s.Name] = len(o.stages)
	o.stages = append(o.stages, s)
	return nil
}

// MustRegister registers every stage and panics on the first failure.
func (o *Orchestrator) MustRegister(stages ...Stage) {
	for _, s := range stages {
		if err := o.Register(s); err != nil {
			panic(err)
		}
	}
}

// Stages returns a copy of the registry in registration order.
func (o *Orchestrator) Stages() []Stage {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Stage(nil), o.stages...)
}

// StageResults returns the results of the most recent run.
func (o *Orchestrator) StageResults() []StageResult {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]StageResult(nil), o.last...)
}

// StageResult returns the most recent result for name.
func (o *Orchestrator) StageResult(name string) (StageResult, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, result := range o.last {
		if result.StageName == name {
			return result, true
		}
	}
	return StageResult{}, false
}

// Health reports readiness for every registered stage. Handlers that do not
// implement stage.HealthChecker are reported ready.
func (o *Orchestrator) Health(ctx context.Context) []stage.Health {
	stages := o.Stages()
	out := make([]stage.Health, 0, len(stages))
	for _, s := range stages {
		checker, ok := s.Handler.(stage.HealthChecker)
		if !ok {
			out = append(out, stage.Healthy(s.Name))
			continue
		}
		health := checker.HealthCheck(ctx)
		if health.Name == "" {
			health.Name = s.Name
		}
		out = append(out, health)
	}
	return out
}

func (o *Orchestrator) freeze() []Stage {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.frozen = true
	return append([]Stage(nil), o.stages...)
}

func (o *Orchestrator) setLast(results []StageResult) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.last = append([]StageResult(nil), results...)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

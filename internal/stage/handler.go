package stage

import (
	"context"
	"log/slog"
)

// Payload is the value threaded from one stage to the next.
type Payload map[string]any

// Clone returns a deep copy of nested maps and slices so a handler cannot
// mutate the upstream payload seen by a later attempt.
func (p Payload) Clone() Payload {
	if p == nil {
		return nil
	}
	out := make(Payload, len(p))
	for k, v := range p {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch typed := v.(type) {
	case Payload:
		return typed.Clone()
	case map[string]any:
		return map[string]any(Payload(typed).Clone())
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		return append([]string(nil), typed...)
	default:
		return v
	}
}

// Handler transforms a payload or fails. Handlers are treated as opaque by the
// orchestrator.
type Handler interface {
	Handle(ctx context.Context, in Payload) (Payload, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, in Payload) (Payload, error)

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, in Payload) (Payload, error) {
	return f(ctx, in)
}

// HealthChecker is implemented by handlers that can report readiness.
type HealthChecker interface {
	HealthCheck(ctx context.Context) Health
}

// ExternalAction is implemented by handlers whose work always leaves the
// process. Such stages are gated regardless of how they were registered.
type ExternalAction interface {
	External() bool
}

// LoggerAware handlers receive the stage-scoped logger before each run.
type LoggerAware interface {
	SetLogger(logger *slog.Logger)
}

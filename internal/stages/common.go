package stages

import (
	"fmt"
	"log/slog"
	"strings"

	"surplus/internal/logging"
	"surplus/internal/services"
	"surplus/internal/stage"
)

const (
	KeySource     = "source"
	KeyRecord     = "record"
	KeyFetch      = "fetch"
	KeyFields     = "fields"
	KeyMissing    = "missing_fields"
	KeyValidation = "validation"
	KeyNotifiedAt = "notified_at"
)

// loggerHolder implements stage.LoggerAware for embedding handlers.
type loggerHolder struct {
	logger *slog.Logger
}

func (h *loggerHolder) SetLogger(logger *slog.Logger) {
	h.logger = logger
}

func (h *loggerHolder) log() *slog.Logger {
	if h.logger == nil {
		return logging.NewNop()
	}
	return h.logger
}

func mapValue(in stage.Payload, stageName, key string) (map[string]any, error) {
	raw, ok := in[key]
	if !ok || raw == nil {
		return nil, services.Wrap(services.ErrValidation, stageName, "read payload", fmt.Sprintf("payload has no %q", key), nil)
	}
	switch typed := raw.(type) {
	case map[string]any:
		return typed, nil
	case stage.Payload:
		return map[string]any(typed), nil
	default:
		return nil, services.Wrap(services.ErrValidation, stageName, "read payload", fmt.Sprintf("payload %q is %T, want object", key, raw), nil)
	}
}

func stringValue(value any) (string, bool) {
	switch typed := value.(type) {
	case nil:
		return "", false
	case string:
		return typed, true
	case fmt.Stringer:
		return typed.String(), true
	case float64, float32, int, int64, bool:
		return fmt.Sprint(typed), true
	default:
		return "", false
	}
}

func stringList(value any) []string {
	switch typed := value.(type) {
	case []string:
		return typed
	case []any:
		out := make([]string, 0, len(typed))
		for _, item := range typed {
			if s, ok := stringValue(item); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
		return out
	case string:
		if strings.TrimSpace(typed) == "" {
			return nil
		}
		parts := strings.Split(typed, ",")
		out := make([]string, 0, len(parts))
		for _, part := range parts {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	default:
		return nil
	}
}

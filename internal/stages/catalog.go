package stages

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"surplus/internal/compliance"
	"surplus/internal/config"
	"surplus/internal/fixtures"
	"surplus/internal/logging"
	"surplus/internal/notifications"
	"surplus/internal/services"
	"surplus/internal/stage"
)

// Handler names accepted by Catalog.Resolve.
const (
	HandlerFetch     = "fetch"
	HandlerExtract   = "extract"
	HandlerNormalize = "normalize"
	HandlerValidate  = "validate"
	HandlerNotify    = "notify"
)

// Deps carries the collaborators shared by handlers built from one catalog.
// Nil members are derived from Config.
type Deps struct {
	Config   *config.Config
	Fetcher  fixtures.Fetcher
	Notifier notifications.Service
	Checker  *compliance.Checker
	Logger   *slog.Logger
}

// Catalog turns handler names and manifest params into stage handlers.
type Catalog struct {
	deps    Deps
	logger  *slog.Logger
	checker *compliance.Checker
}

// NewCatalog resolves default collaborators from deps.Config.
func NewCatalog(deps Deps) (*Catalog, error) {
	if deps.Fetcher == nil && deps.Config != nil {
		deps.Fetcher = fixtures.NewFetcher(deps.Config)
	}
	if deps.Notifier == nil {
		deps.Notifier = notifications.NewService(deps.Config)
	}
	checker := deps.Checker
	if checker == nil {
		checker = compliance.NewChecker()
		if deps.Config != nil {
			rules, err := compliance.RulesFromConfig(deps.Config.Compliance.RequiredFields, deps.Config.Compliance.FieldFormats)
			if err != nil {
				return nil, services.Wrap(services.ErrConfiguration, "stages", "build checker", "invalid compliance rules", err)
			}
			for _, rule := range rules {
				checker.Add(rule)
			}
		}
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Catalog{deps: deps, logger: logger, checker: checker}, nil
}

// Names lists the handlers this catalog can build.
func (c *Catalog) Names() []string {
	names := []string{HandlerFetch, HandlerExtract, HandlerNormalize, HandlerValidate, HandlerNotify}
	sort.Strings(names)
	return names
}

// Resolve builds the handler registered under name.
func (c *Catalog) Resolve(name string, params map[string]any) (stage.Handler, error) {
	var handler interface {
		stage.Handler
		stage.LoggerAware
	}
	switch strings.ToLower(strings.TrimSpace(name)) {
	case HandlerFetch:
		if c.deps.Fetcher == nil {
			return nil, services.Wrap(services.ErrConfiguration, "stages", "resolve", "fetch requires a fetcher or config", nil)
		}
		handler = NewFetch(c.deps.Fetcher)
	case HandlerExtract:
		extract := NewExtract(stringList(params["fields"]))
		if raw, ok := params["threshold"]; ok {
			threshold, ok := toFloat(raw)
			if !ok || threshold <= 0 || threshold > 1 {
				return nil, services.Wrap(services.ErrConfiguration, "stages", "resolve", fmt.Sprintf("extract threshold %v must be in (0,1]", raw), nil)
			}
			extract.Threshold = threshold
		}
		handler = extract
	case HandlerNormalize:
		handler = NewNormalize()
	case HandlerValidate:
		checker, err := c.checkerFor(params)
		if err != nil {
			return nil, err
		}
		handler = NewValidate(checker)
	case HandlerNotify:
		handler = NewNotify(c.deps.Notifier)
	default:
		return nil, services.Wrap(services.ErrConfiguration, "stages", "resolve", fmt.Sprintf("unknown handler %q", name), nil)
	}
	handler.SetLogger(logging.NewComponentLogger(c.logger, "stage."+strings.ToLower(strings.TrimSpace(name))))
	return handler, nil
}

// checkerFor uses manifest-level rules when present and the configured
// checker otherwise.
func (c *Catalog) checkerFor(params map[string]any) (*compliance.Checker, error) {
	required := stringList(params["required_fields"])
	formats := map[string]string{}
	if raw, ok := params["field_formats"].(map[string]any); ok {
		for field, pattern := range raw {
			text, ok := stringValue(pattern)
			if !ok {
				return nil, services.Wrap(services.ErrConfiguration, "stages", "resolve", fmt.Sprintf("field_formats.%s must be a string", field), nil)
			}
			formats[field] = text
		}
	}
	if len(required) == 0 && len(formats) == 0 {
		return c.checker, nil
	}
	rules, err := compliance.RulesFromConfig(required, formats)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "stages", "resolve", "invalid validate params", err)
	}
	return compliance.NewChecker(rules...), nil
}

func toFloat(value any) (float64, bool) {
	switch typed := value.(type) {
	case float64:
		return typed, true
	case float32:
		return float64(typed), true
	case int:
		return float64(typed), true
	case int64:
		return float64(typed), true
	default:
		return 0, false
	}
}

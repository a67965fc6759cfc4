package compliance

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"surplus/internal/services"
)

// Severity ranks a rule violation.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Rule validates one aspect of a record. Check returns an empty string when
// the record passes.
type Rule interface {
	Name() string
	Severity() Severity
	Check(record map[string]any) string
}

// Issue is one rule violation.
type Issue struct {
	Rule     string   `json:"rule"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// Checker applies an ordered set of rules.
type Checker struct {
	rules []Rule
}

// NewChecker builds a checker from rules; nil rules are ignored.
func NewChecker(rules ...Rule) *Checker {
	c := &Checker{}
	for _, rule := range rules {
		c.Add(rule)
	}
	return c
}

// Add appends a rule.
func (c *Checker) Add(rule Rule) {
	if rule == nil {
		return
	}
	c.rules = append(c.rules, rule)
}

// Len returns the number of rules.
func (c *Checker) Len() int {
	return len(c.rules)
}

// Validate runs every rule against data. Non-map data yields one issue per rule.
func (c *Checker) Validate(data any) []Issue {
	record, ok := data.(map[string]any)
	var issues []Issue
	for _, rule := range c.rules {
		var message string
		if !ok {
			message = "data must be a map of fields"
		} else {
			message = rule.Check(record)
		}
		if message == "" {
			continue
		}
		issues = append(issues, Issue{Rule: rule.Name(), Severity: rule.Severity(), Message: message})
	}
	return issues
}

// HasErrors reports whether any issue has error severity.
func HasErrors(issues []Issue) bool {
	for _, issue := range issues {
		if issue.Severity == SeverityError {
			return true
		}
	}
	return false
}

// ValidationError wraps error-severity issues so callers can fail a stage.
type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		parts = append(parts, fmt.Sprintf("%s: %s", issue.Rule, issue.Message))
	}
	return "data validation failed: " + strings.Join(parts, "; ")
}

// Is lets errors.Is(err, services.ErrValidation) match.
func (e *ValidationError) Is(target error) bool {
	return target == services.ErrValidation
}

// Enforce validates data and returns a *ValidationError when any issue has
// error severity. Warnings are returned alongside a nil error.
func (c *Checker) Enforce(data any) ([]Issue, error) {
	issues := c.Validate(data)
	if !HasErrors(issues) {
		return issues, nil
	}
	errs := make([]Issue, 0, len(issues))
	for _, issue := range issues {
		if issue.Severity == SeverityError {
			errs = append(errs, issue)
		}
	}
	return issues, &ValidationError{Issues: errs}
}

// RequiredFields fails when any listed field is absent or empty.
type RequiredFields struct {
	Fields []string
	Level  Severity
}

func (r RequiredFields) Name() string { return "required_fields" }

func (r RequiredFields) Severity() Severity { return severityOrDefault(r.Level) }

func (r RequiredFields) Check(record map[string]any) string {
	var missing []string
	for _, field := range r.Fields {
		if isEmptyValue(record[field]) {
			missing = append(missing, field)
		}
	}
	if len(missing) == 0 {
		return ""
	}
	return "missing required fields: " + strings.Join(missing, ", ")
}

// FieldFormat fails when a present string field does not match Pattern.
// Absent fields pass; pair with RequiredFields to demand presence.
type FieldFormat struct {
	Field   string
	Pattern *regexp.Regexp
	Message string
	Level   Severity
}

// NewFieldFormat compiles pattern for field.
func NewFieldFormat(field, pattern string) (FieldFormat, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return FieldFormat{}, services.Wrap(services.ErrConfiguration, "compliance", "field format",
			fmt.Sprintf("invalid pattern for %s", field), err)
	}
	return FieldFormat{Field: field, Pattern: re}, nil
}

func (r FieldFormat) Name() string { return "format_" + r.Field }

func (r FieldFormat) Severity() Severity { return severityOrDefault(r.Level) }

func (r FieldFormat) Check(record map[string]any) string {
	value, ok := record[r.Field]
	if !ok || value == nil || r.Pattern == nil {
		return ""
	}
	text, ok := value.(string)
	if !ok {
		text = fmt.Sprint(value)
	}
	if r.Pattern.MatchString(text) {
		return ""
	}
	message := r.Message
	if message == "" {
		message = fmt.Sprintf("does not match %s", r.Pattern.String())
	}
	return r.Field + ": " + message
}

// RulesFromConfig builds rules for required fields and field formats. Formats
// are applied in field-name order so issue output is deterministic.
func RulesFromConfig(required []string, formats map[string]string) ([]Rule, error) {
	var rules []Rule
	if len(required) > 0 {
		rules = append(rules, RequiredFields{Fields: append([]string(nil), required...)})
	}
	fields := make([]string, 0, len(formats))
	for field := range formats {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	for _, field := range fields {
		rule, err := NewFieldFormat(field, formats[field])
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func severityOrDefault(level Severity) Severity {
	if level == "" {
		return SeverityError
	}
	return level
}

func isEmptyValue(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case []any:
		return len(v) == 0
	case map[string]any:
		return len(v) == 0
	case bool:
		return !v
	default:
		return false
	}
}

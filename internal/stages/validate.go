package stages

import (
	"context"

	"surplus/internal/compliance"
	"surplus/internal/logging"
	"surplus/internal/stage"
)

// Validate applies compliance rules to payload["fields"]. Error-severity
// issues fail the stage; warnings are recorded in payload["validation"].
type Validate struct {
	loggerHolder
	Checker *compliance.Checker
}

// NewValidate returns a validate handler using checker.
func NewValidate(checker *compliance.Checker) *Validate {
	if checker == nil {
		checker = compliance.NewChecker()
	}
	return &Validate{Checker: checker}
}

func (v *Validate) Handle(_ context.Context, in stage.Payload) (stage.Payload, error) {
	fields, err := mapValue(in, "validate", KeyFields)
	if err != nil {
		return nil, err
	}
	issues, err := v.Checker.Enforce(fields)
	if err != nil {
		return nil, err
	}
	out := in.Clone()
	if len(issues) == 0 {
		delete(out, KeyValidation)
		return out, nil
	}
	recorded := make([]any, 0, len(issues))
	for _, issue := range issues {
		recorded = append(recorded, map[string]any{
			"rule":     issue.Rule,
			"severity": string(issue.Severity),
			"message":  issue.Message,
		})
	}
	out[KeyValidation] = recorded
	v.log().Info("record passed with warnings", logging.Int("warning_count", len(issues)))
	return out, nil
}

// HealthCheck reports an unconfigured checker as not ready.
func (v *Validate) HealthCheck(context.Context) stage.Health {
	if v.Checker == nil || v.Checker.Len() == 0 {
		return stage.Unhealthy("validate", "no compliance rules configured")
	}
	return stage.Healthy("validate")
}

package compliance_test

import (
	"errors"
	"strings"
	"testing"

	"surplus/internal/compliance"
	"surplus/internal/services"
)

func TestRequiredFields(t *testing.T) {
	checker := compliance.NewChecker(compliance.RequiredFields{Fields: []string{"case_number", "owner_name", "amount"}})

	issues := checker.Validate(map[string]any{"case_number": "21-CV-100", "owner_name": "  "})
	if len(issues) != 1 {
		t.Fatalf("expected one issue, got %+v", issues)
	}
	if issues[0].Rule != "required_fields" || issues[0].Severity != compliance.SeverityError {
		t.Fatalf("unexpected issue %+v", issues[0])
	}
	if !strings.Contains(issues[0].Message, "owner_name, amount") {
		t.Fatalf("expected missing fields listed, got %q", issues[0].Message)
	}

	if issues := checker.Validate(map[string]any{"case_number": "x", "owner_name": "y", "amount": 12.5}); len(issues) != 0 {
		t.Fatalf("expected no issues, got %+v", issues)
	}
}

func TestValidateRejectsNonMap(t *testing.T) {
	checker := compliance.NewChecker(compliance.RequiredFields{Fields: []string{"a"}})
	issues := checker.Validate([]string{"a"})
	if len(issues) != 1 || !strings.Contains(issues[0].Message, "map") {
		t.Fatalf("expected non-map issue, got %+v", issues)
	}
}

func TestFieldFormat(t *testing.T) {
	rule, err := compliance.NewFieldFormat("case_number", `^[0-9]{2}-[A-Z]{2}-[0-9]+$`)
	if err != nil {
		t.Fatalf("NewFieldFormat: %v", err)
	}
	rule.Level = compliance.SeverityWarning
	checker := compliance.NewChecker(rule)

	if issues := checker.Validate(map[string]any{}); len(issues) != 0 {
		t.Fatalf("absent field should pass, got %+v", issues)
	}
	if issues := checker.Validate(map[string]any{"case_number": "21-CV-100"}); len(issues) != 0 {
		t.Fatalf("valid field should pass, got %+v", issues)
	}
	issues := checker.Validate(map[string]any{"case_number": "bogus"})
	if len(issues) != 1 || issues[0].Rule != "format_case_number" || issues[0].Severity != compliance.SeverityWarning {
		t.Fatalf("unexpected issues %+v", issues)
	}

	if _, err := compliance.NewFieldFormat("x", "("); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error for bad pattern, got %v", err)
	}
}

func TestEnforce(t *testing.T) {
	format, err := compliance.NewFieldFormat("zip", `^[0-9]{5}$`)
	if err != nil {
		t.Fatalf("NewFieldFormat: %v", err)
	}
	format.Level = compliance.SeverityWarning
	checker := compliance.NewChecker(compliance.RequiredFields{Fields: []string{"owner_name"}}, format, nil)
	if checker.Len() != 2 {
		t.Fatalf("expected nil rule to be ignored, got %d rules", checker.Len())
	}

	issues, err := checker.Enforce(map[string]any{"owner_name": "Ada", "zip": "abc"})
	if err != nil {
		t.Fatalf("warnings should not fail: %v", err)
	}
	if len(issues) != 1 {
		t.Fatalf("expected one warning, got %+v", issues)
	}

	_, err = checker.Enforce(map[string]any{"zip": "12345"})
	var validationErr *compliance.ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if !errors.Is(err, services.ErrValidation) {
		t.Fatal("expected ValidationError to match ErrValidation")
	}
	if len(validationErr.Issues) != 1 || validationErr.Issues[0].Rule != "required_fields" {
		t.Fatalf("unexpected validation issues %+v", validationErr.Issues)
	}
}

func TestRulesFromConfig(t *testing.T) {
	rules, err := compliance.RulesFromConfig([]string{"case_number"}, map[string]string{
		"zip":         `^[0-9]{5}$`,
		"case_number": `^[0-9]`,
	})
	if err != nil {
		t.Fatalf("RulesFromConfig: %v", err)
	}
	names := make([]string, 0, len(rules))
	for _, rule := range rules {
		names = append(names, rule.Name())
	}
	if got := strings.Join(names, ","); got != "required_fields,format_case_number,format_zip" {
		t.Fatalf("unexpected rule order %q", got)
	}

	if _, err := compliance.RulesFromConfig(nil, map[string]string{"x": "["}); err == nil {
		t.Fatal("expected invalid pattern to fail")
	}
}

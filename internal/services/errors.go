package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrConfiguration = errors.New("configuration error")
	ErrPolicyDenied  = errors.New("policy denied")
	ErrHandler       = errors.New("handler failure")
	ErrValidation    = errors.New("validation error")
	ErrNotFound      = errors.New("not found")
	ErrPersistence   = errors.New("persistence failure")
	ErrExternal      = errors.New("external service error")
	ErrTransient     = errors.New("transient failure")
)

var markers = []error{
	ErrConfiguration,
	ErrPolicyDenied,
	ErrHandler,
	ErrValidation,
	ErrNotFound,
	ErrPersistence,
	ErrExternal,
	ErrTransient,
}

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	if marker == nil {
		marker = ErrTransient
	}
	detail := &detailError{
		marker:    marker,
		stage:     strings.TrimSpace(stage),
		operation: strings.TrimSpace(operation),
		message:   strings.TrimSpace(message),
		cause:     err,
	}
	return detail
}

// ErrorDetails is the structured view of a wrapped error used for logging and
// stage result reporting.
type ErrorDetails struct {
	Kind      string
	Stage     string
	Operation string
	Message   string
	Cause     error
}

// Details unpacks err into its classification fields. Errors that were not
// produced by Wrap still report a Kind when they match one of the markers.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{}
	}
	var detail *detailError
	if errors.As(err, &detail) {
		return ErrorDetails{
			Kind:      kindOf(detail.marker),
			Stage:     detail.stage,
			Operation: detail.operation,
			Message:   detail.message,
			Cause:     detail.cause,
		}
	}
	for _, marker := range markers {
		if errors.Is(err, marker) {
			return ErrorDetails{Kind: kindOf(marker), Message: err.Error()}
		}
	}
	return ErrorDetails{Message: err.Error()}
}

func kindOf(marker error) string {
	if marker == nil {
		return ""
	}
	return strings.ReplaceAll(marker.Error(), " ", "_")
}

type detailError struct {
	marker    error
	stage     string
	operation string
	message   string
	cause     error
}

func (e *detailError) Error() string {
	detail := buildDetail(e.stage, e.operation, e.message)
	if e.cause != nil {
		return fmt.Sprintf("%v: %s: %v", e.marker, detail, e.cause)
	}
	return fmt.Sprintf("%v: %s", e.marker, detail)
}

func (e *detailError) Unwrap() []error {
	if e.cause == nil {
		return []error{e.marker}
	}
	return []error{e.marker, e.cause}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage != "" {
		parts = append(parts, stage)
	}
	if operation != "" {
		parts = append(parts, operation)
	}
	if message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}

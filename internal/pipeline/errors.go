package pipeline

import (
	"errors"
	"fmt"

	"surplus/internal/services"
)

// ErrRegistryFrozen is returned by Register once Execute has been called.
var ErrRegistryFrozen = services.Wrap(services.ErrConfiguration, "pipeline", "register", "registry is frozen after execution starts", nil)

// DuplicateStageError reports a second registration under an existing name.
type DuplicateStageError struct {
	Name string
}

func (e *DuplicateStageError) Error() string {
	return fmt.Sprintf("stage %q already registered", e.Name)
}

// Is lets errors.Is(err, services.ErrConfiguration) match.
func (e *DuplicateStageError) Is(target error) bool {
	return target == services.ErrConfiguration
}

// InvalidRetryPolicyError reports an enabled policy with fewer than one attempt.
type InvalidRetryPolicyError struct {
	Stage       string
	MaxAttempts int
}

func (e *InvalidRetryPolicyError) Error() string {
	return fmt.Sprintf("stage %q: retry policy enabled with max_attempts=%d (must be >= 1)", e.Stage, e.MaxAttempts)
}

// Is lets errors.Is(err, services.ErrConfiguration) match.
func (e *InvalidRetryPolicyError) Is(target error) bool {
	return target == services.ErrConfiguration
}

// IsConfigurationError reports whether err is a registration-time failure.
func IsConfigurationError(err error) bool {
	return errors.Is(err, services.ErrConfiguration)
}

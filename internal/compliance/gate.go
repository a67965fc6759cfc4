package compliance

import (
	"fmt"

	"surplus/internal/services"
)

// Gate answers whether an external action is permitted.
type Gate interface {
	IsAllowed(action string) bool
	AssertAllowed(action string) error
	Mode() Mode
}

// PolicyDeniedError reports an action blocked by the operating mode.
type PolicyDeniedError struct {
	Action string
	Mode   Mode
}

func (e *PolicyDeniedError) Error() string {
	return fmt.Sprintf("action %q is blocked in mode=%s; switch to LIVE mode to perform this action", e.Action, e.Mode)
}

// Is lets errors.Is(err, services.ErrPolicyDenied) match.
func (e *PolicyDeniedError) Is(target error) bool {
	return target == services.ErrPolicyDenied
}

// ModeGate permits external actions only in LIVE mode.
type ModeGate struct {
	mode Mode
}

// NewModeGate validates mode and returns a gate bound to it.
func NewModeGate(mode Mode) (*ModeGate, error) {
	parsed, err := ParseMode(string(mode))
	if err != nil {
		return nil, err
	}
	return &ModeGate{mode: parsed}, nil
}

// Mode returns the gate's operating mode.
func (g *ModeGate) Mode() Mode {
	return g.mode
}

// IsAllowed reports whether action may run. The gate is only consulted for
// actions flagged external, so every such action is blocked outside LIVE.
func (g *ModeGate) IsAllowed(string) bool {
	return g.mode == ModeLive
}

// AssertAllowed returns a *PolicyDeniedError when action is blocked.
func (g *ModeGate) AssertAllowed(action string) error {
	if g.IsAllowed(action) {
		return nil
	}
	return &PolicyDeniedError{Action: action, Mode: g.mode}
}

package compliance_test

import (
	"errors"
	"strings"
	"testing"

	"surplus/internal/compliance"
	"surplus/internal/services"
)

func TestParseMode(t *testing.T) {
	cases := map[string]compliance.Mode{
		"TEST":    compliance.ModeTest,
		"test":    compliance.ModeTest,
		"dry-run": compliance.ModeDryRun,
		" LIVE ":  compliance.ModeLive,
	}
	for input, want := range cases {
		got, err := compliance.ParseMode(input)
		if err != nil {
			t.Fatalf("ParseMode(%q) returned error: %v", input, err)
		}
		if got != want {
			t.Fatalf("ParseMode(%q) = %v, want %v", input, got, want)
		}
	}

	_, err := compliance.ParseMode("PRODUCTION")
	if err == nil {
		t.Fatal("expected invalid mode to fail")
	}
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestModeGateBlocksOutsideLive(t *testing.T) {
	for _, mode := range []compliance.Mode{compliance.ModeTest, compliance.ModeDryRun} {
		gate, err := compliance.NewModeGate(mode)
		if err != nil {
			t.Fatalf("NewModeGate(%v): %v", mode, err)
		}
		if gate.IsAllowed("send_notification") {
			t.Fatalf("expected send_notification blocked in %v", mode)
		}
		err = gate.AssertAllowed("send_notification")
		var denied *compliance.PolicyDeniedError
		if !errors.As(err, &denied) {
			t.Fatalf("expected PolicyDeniedError, got %v", err)
		}
		if denied.Action != "send_notification" || denied.Mode != mode {
			t.Fatalf("unexpected denial fields: %+v", denied)
		}
		if !errors.Is(err, services.ErrPolicyDenied) {
			t.Fatalf("expected denial to match ErrPolicyDenied")
		}
		if !strings.Contains(err.Error(), string(mode)) {
			t.Fatalf("expected mode in message %q", err.Error())
		}
	}
}

func TestModeGatePermitsLive(t *testing.T) {
	gate, err := compliance.NewModeGate(compliance.ModeLive)
	if err != nil {
		t.Fatalf("NewModeGate: %v", err)
	}
	if !gate.IsAllowed("submit_form") {
		t.Fatal("expected LIVE to permit actions")
	}
	if err := gate.AssertAllowed("submit_form"); err != nil {
		t.Fatalf("AssertAllowed returned %v", err)
	}
	if gate.Mode() != compliance.ModeLive {
		t.Fatalf("unexpected mode %v", gate.Mode())
	}
}

func TestNewModeGateRejectsInvalidMode(t *testing.T) {
	if _, err := compliance.NewModeGate("STAGING"); err == nil {
		t.Fatal("expected error for invalid mode")
	}
}

func TestModeUnmarshalText(t *testing.T) {
	var mode compliance.Mode
	if err := mode.UnmarshalText([]byte("dry_run")); err != nil {
		t.Fatalf("UnmarshalText: %v", err)
	}
	if mode != compliance.ModeDryRun {
		t.Fatalf("unexpected mode %v", mode)
	}
	if err := mode.UnmarshalText([]byte("nope")); err == nil {
		t.Fatal("expected error for invalid text")
	}
}

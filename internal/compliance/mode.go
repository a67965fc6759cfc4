package compliance

import (
	"fmt"
	"strings"

	"surplus/internal/services"
)

// Mode is the operating mode a pipeline runs under.
type Mode string

const (
	ModeTest   Mode = "TEST"
	ModeDryRun Mode = "DRY_RUN"
	ModeLive   Mode = "LIVE"
)

// Modes lists every valid mode in increasing order of side effects.
var Modes = []Mode{ModeTest, ModeDryRun, ModeLive}

// ParseMode accepts a mode name in any case, with '-' or '_' separators.
func ParseMode(value string) (Mode, error) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	normalized = strings.ReplaceAll(normalized, "-", "_")
	for _, mode := range Modes {
		if string(mode) == normalized {
			return mode, nil
		}
	}
	return "", services.Wrap(services.ErrConfiguration, "compliance", "parse mode",
		fmt.Sprintf("invalid mode %q; must be TEST, DRY_RUN, or LIVE", value), nil)
}

func (m Mode) String() string {
	return string(m)
}

// Valid reports whether m is one of the known modes.
func (m Mode) Valid() bool {
	_, err := ParseMode(string(m))
	return err == nil
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

package logs

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"surplus/internal/logging"
)

// RunLogPath returns the per-run log file written by the orchestrator.
func RunLogPath(logDir, runID string) string {
	return filepath.Join(logDir, "runs", runID+".log")
}

// Event is one decoded run log line.
type Event struct {
	Time      time.Time
	Level     string
	Message   string
	Stage     string
	EventType string
	Attempt   int
	Fields    map[string]any
}

// Parse decodes a JSON log line. Lines that are not JSON objects become an
// info event carrying the raw text.
func Parse(line string) Event {
	var raw map[string]any
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return Event{Level: "info", Message: strings.TrimSpace(line)}
	}
	ev := Event{Fields: make(map[string]any, len(raw))}
	for key, value := range raw {
		switch key {
		case "ts":
			if text, ok := value.(string); ok {
				ev.Time, _ = time.Parse(time.RFC3339Nano, text)
			}
		case "level":
			ev.Level, _ = value.(string)
		case "msg":
			ev.Message, _ = value.(string)
		case logging.FieldStage:
			ev.Stage, _ = value.(string)
		case logging.FieldEventType:
			ev.EventType, _ = value.(string)
		case logging.FieldAttempt:
			if n, ok := value.(float64); ok {
				ev.Attempt = int(n)
			}
		default:
			ev.Fields[key] = value
		}
	}
	return ev
}

// Filter selects events; empty fields match everything. MinLevel compares by
// slog severity.
type Filter struct {
	Stage     string
	EventType string
	MinLevel  string
}

// Match reports whether ev passes f.
func (f Filter) Match(ev Event) bool {
	if f.Stage != "" && ev.Stage != f.Stage {
		return false
	}
	if f.EventType != "" && ev.EventType != f.EventType {
		return false
	}
	if f.MinLevel != "" && logging.ParseLevel(ev.Level) < logging.ParseLevel(f.MinLevel) {
		return false
	}
	return true
}

// Format renders ev on one line for terminal output.
func Format(ev Event) string {
	var b strings.Builder
	if !ev.Time.IsZero() {
		b.WriteString(ev.Time.Local().Format("15:04:05.000"))
		b.WriteByte(' ')
	}
	fmt.Fprintf(&b, "%-5s", strings.ToUpper(ev.Level))
	if ev.Stage != "" {
		fmt.Fprintf(&b, " [%s", ev.Stage)
		if ev.Attempt > 0 {
			fmt.Fprintf(&b, " #%d", ev.Attempt)
		}
		b.WriteByte(']')
	}
	b.WriteByte(' ')
	b.WriteString(ev.Message)
	if errText, ok := ev.Fields["error"].(string); ok && errText != "" {
		b.WriteString(": ")
		b.WriteString(errText)
	}
	return b.String()
}

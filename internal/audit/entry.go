package audit

import (
	"context"
	"time"

	"surplus/internal/compliance"
)

// Result is the outcome recorded on an entry.
type Result string

const (
	ResultOK     Result = "ok"
	ResultError  Result = "error"
	ResultDenied Result = "denied"
)

// Entry is one audit record.
type Entry struct {
	Timestamp  time.Time       `json:"timestamp"`
	Action     string          `json:"action"`
	Actor      string          `json:"actor"`
	ObjectType string          `json:"object_type"`
	ObjectID   string          `json:"object_id"`
	Result     Result          `json:"result"`
	Details    map[string]any  `json:"details"`
	Mode       compliance.Mode `json:"mode,omitempty"`
	RunID      string          `json:"run_id,omitempty"`
}

// Sink accepts audit entries. Implementations must not reorder or drop
// entries they acknowledged with a nil error.
type Sink interface {
	Record(ctx context.Context, entry Entry) error
}

// Filter selects entries; zero-valued fields match everything.
type Filter struct {
	Action     string
	Actor      string
	ObjectType string
	ObjectID   string
	RunID      string
	Result     Result
	Since      time.Time
	Limit      int
}

// Match reports whether entry satisfies every populated field of f.
func (f Filter) Match(entry Entry) bool {
	if f.Action != "" && entry.Action != f.Action {
		return false
	}
	if f.Actor != "" && entry.Actor != f.Actor {
		return false
	}
	if f.ObjectType != "" && entry.ObjectType != f.ObjectType {
		return false
	}
	if f.ObjectID != "" && entry.ObjectID != f.ObjectID {
		return false
	}
	if f.RunID != "" && entry.RunID != f.RunID {
		return false
	}
	if f.Result != "" && entry.Result != f.Result {
		return false
	}
	if !f.Since.IsZero() && entry.Timestamp.Before(f.Since) {
		return false
	}
	return true
}

// Find returns the entries matching f in their original order. A positive
// Limit keeps only the most recent matches.
func Find(entries []Entry, f Filter) []Entry {
	matched := make([]Entry, 0, len(entries))
	for _, entry := range entries {
		if f.Match(entry) {
			matched = append(matched, entry)
		}
	}
	if f.Limit > 0 && len(matched) > f.Limit {
		matched = matched[len(matched)-f.Limit:]
	}
	return matched
}

func stamp(entry Entry) Entry {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	if entry.Details == nil {
		entry.Details = map[string]any{}
	}
	return entry
}

package logging_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"surplus/internal/logging"
)

func TestCleanupOldLogs(t *testing.T) {
	dir := t.TempDir()
	oldLog := filepath.Join(dir, "old.log")
	newLog := filepath.Join(dir, "new.log")
	keep := filepath.Join(dir, "current.log")
	other := filepath.Join(dir, "notes.txt")
	for _, path := range []string{oldLog, newLog, keep, other} {
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
	past := time.Now().AddDate(0, 0, -10)
	for _, path := range []string{oldLog, keep, other} {
		if err := os.Chtimes(path, past, past); err != nil {
			t.Fatalf("chtimes %s: %v", path, err)
		}
	}

	logging.CleanupOldLogs(logging.NewNop(), 5, logging.RetentionTarget{Dir: dir, Pattern: "*.log", Exclude: []string{keep}})

	if _, err := os.Stat(oldLog); !os.IsNotExist(err) {
		t.Fatalf("expected old log removed, got %v", err)
	}
	for _, path := range []string{newLog, keep, other} {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("expected %s to remain: %v", path, err)
		}
	}
}

func TestCleanupOldLogsDisabled(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "old.log")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	past := time.Now().AddDate(0, 0, -100)
	if err := os.Chtimes(path, past, past); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	logging.CleanupOldLogs(nil, 0, logging.RetentionTarget{Dir: dir})
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected file retained when retention disabled: %v", err)
	}
}

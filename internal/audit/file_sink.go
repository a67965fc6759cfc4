package audit

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"surplus/internal/services"
)

const lockRetryDelay = 10 * time.Millisecond

// FileSink appends entries to a JSONL file.
type FileSink struct {
	path string
	mu   sync.Mutex
	lock *flock.Flock
}

// NewFileSink prepares path for appends, creating its directory.
func NewFileSink(path string) (*FileSink, error) {
	if path == "" {
		return nil, services.Wrap(services.ErrConfiguration, "audit", "open sink", "audit path is empty", nil)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, services.Wrap(services.ErrPersistence, "audit", "open sink", "create audit directory", err)
	}
	return &FileSink{
		path: path,
		lock: flock.New(path + ".lock"),
	}, nil
}

// Path returns the JSONL file location.
func (s *FileSink) Path() string {
	return s.path
}

// Record appends entry as one JSON line.
func (s *FileSink) Record(ctx context.Context, entry Entry) error {
	line, err := json.Marshal(stamp(entry))
	if err != nil {
		return services.Wrap(services.ErrPersistence, "audit", "record", "encode entry", err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	locked, err := s.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return services.Wrap(services.ErrPersistence, "audit", "record", "acquire audit lock", err)
	}
	if !locked {
		return services.Wrap(services.ErrPersistence, "audit", "record", "audit lock unavailable", nil)
	}
	defer func() {
		_ = s.lock.Unlock()
	}()

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return services.Wrap(services.ErrPersistence, "audit", "record", "open audit file", err)
	}
	if _, err := file.Write(line); err != nil {
		_ = file.Close()
		return services.Wrap(services.ErrPersistence, "audit", "record", "append entry", err)
	}
	if err := file.Close(); err != nil {
		return services.Wrap(services.ErrPersistence, "audit", "record", "close audit file", err)
	}
	return nil
}

// Find loads the file under a shared lock and returns matching entries. The
// read lock uses its own handle so it never releases a writer's lock.
func (s *FileSink) Find(ctx context.Context, f Filter) ([]Entry, error) {
	reader := flock.New(s.lock.Path())
	locked, err := reader.TryRLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, "audit", "find", "acquire audit lock", err)
	}
	if locked {
		defer func() {
			_ = reader.Unlock()
		}()
	}
	entries, err := Load(s.path)
	if err != nil {
		return nil, err
	}
	return Find(entries, f), nil
}

// Load reads every entry from a JSONL audit file. A missing file yields no
// entries; blank lines are skipped.
func Load(path string) ([]Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, services.Wrap(services.ErrPersistence, "audit", "load", "open audit file", err)
	}
	defer file.Close()

	var entries []Entry
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(line, &entry); err != nil {
			return nil, services.Wrap(services.ErrPersistence, "audit", "load",
				fmt.Sprintf("decode line %d", lineNo), err)
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, services.Wrap(services.ErrPersistence, "audit", "load", "scan audit file", err)
	}
	return entries, nil
}

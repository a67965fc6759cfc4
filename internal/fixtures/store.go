package fixtures

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"surplus/internal/fileutil"
	"surplus/internal/services"
)

// NotFoundError reports a missing fixture file.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("fixture not found: %s", e.Path)
}

// Is lets errors.Is(err, services.ErrNotFound) match.
func (e *NotFoundError) Is(target error) bool {
	return target == services.ErrNotFound
}

// Store reads and writes fixture files under a root directory.
type Store struct {
	root string
}

// NewStore returns a store rooted at root. The directory need not exist.
func NewStore(root string) *Store {
	return &Store{root: root}
}

// Root returns the fixture directory.
func (s *Store) Root() string {
	return s.root
}

// Path resolves relative under the root and checks it exists.
func (s *Store) Path(relative string) (string, error) {
	path, err := s.resolve(relative)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", &NotFoundError{Path: path}
		}
		return "", services.Wrap(services.ErrPersistence, "fixtures", "stat", path, err)
	}
	if info.IsDir() {
		return "", &NotFoundError{Path: path}
	}
	return path, nil
}

// ReadBytes returns the raw fixture contents.
func (s *Store) ReadBytes(relative string) ([]byte, error) {
	path, err := s.Path(relative)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, "fixtures", "read", path, err)
	}
	return data, nil
}

// ReadText returns the fixture contents as a string.
func (s *Store) ReadText(relative string) (string, error) {
	data, err := s.ReadBytes(relative)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// LoadRecord decodes the JSON fixture recorded for source.
func (s *Store) LoadRecord(source string) (map[string]any, error) {
	data, err := s.ReadBytes(RecordName(source))
	if err != nil {
		return nil, err
	}
	var record map[string]any
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, services.Wrap(services.ErrValidation, "fixtures", "decode", RecordName(source), err)
	}
	return record, nil
}

// SaveRecord writes record as the fixture for source.
func (s *Store) SaveRecord(source string, record map[string]any) (string, error) {
	path, err := s.resolve(RecordName(source))
	if err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "fixtures", "encode", source, err)
	}
	if err := fileutil.WriteFileAtomic(path, append(data, '\n'), 0o644); err != nil {
		return "", services.Wrap(services.ErrPersistence, "fixtures", "save", path, err)
	}
	return path, nil
}

// RecordName is the fixture file name used for source.
func RecordName(source string) string {
	return strings.TrimSpace(source) + ".json"
}

func (s *Store) resolve(relative string) (string, error) {
	relative = strings.TrimSpace(relative)
	if relative == "" {
		return "", services.Wrap(services.ErrValidation, "fixtures", "resolve", "fixture name is empty", nil)
	}
	if strings.TrimSpace(s.root) == "" {
		return "", services.Wrap(services.ErrConfiguration, "fixtures", "resolve", "fixtures directory is not configured", nil)
	}
	cleaned := filepath.Clean(filepath.FromSlash(relative))
	if filepath.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", services.Wrap(services.ErrValidation, "fixtures", "resolve", fmt.Sprintf("fixture %q escapes the fixtures directory", relative), nil)
	}
	return filepath.Join(s.root, cleaned), nil
}

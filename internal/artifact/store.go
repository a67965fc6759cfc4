// Package artifact implements a content-addressed store for pipeline outputs.
//
// Artifacts are identified by the hex SHA-256 digest of their canonical bytes
// (compact JSON for structured values), so identical outputs always map to the
// same identifier and rewrites are no-ops. Objects are sharded by the first two
// hex characters of the digest and written via temp-file rename.
package artifact

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"surplus/internal/fileutil"
	"surplus/internal/services"
)

// Store persists payloads under content-derived identifiers.
type Store interface {
	Put(ctx context.Context, v any) (string, error)
	Get(ctx context.Context, id string, out any) error
}

// NotFoundError reports a missing artifact.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("artifact %s not found", e.ID)
}

// Is lets errors.Is(err, services.ErrNotFound) match.
func (e *NotFoundError) Is(target error) bool {
	return target == services.ErrNotFound
}

const (
	jsonExt = ".json"
	blobExt = ".bin"
)

// FSStore keeps artifacts on the local filesystem under root/objects.
type FSStore struct {
	root string
}

// NewFSStore creates the object directory under root.
func NewFSStore(root string) (*FSStore, error) {
	if strings.TrimSpace(root) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "artifact", "open store", "artifact directory is empty", nil)
	}
	if err := os.MkdirAll(filepath.Join(root, "objects"), 0o755); err != nil {
		return nil, services.Wrap(services.ErrPersistence, "artifact", "open store", "create object directory", err)
	}
	return &FSStore{root: root}, nil
}

// Root returns the store's base directory.
func (s *FSStore) Root() string {
	return s.root
}

// ID returns the identifier v would be stored under without writing it.
func ID(v any) (string, error) {
	data, err := canonical(v)
	if err != nil {
		return "", err
	}
	return digest(data), nil
}

// Put stores v as JSON. The identifier is the digest of its compact encoding;
// the file holds an indented copy for human review.
func (s *FSStore) Put(ctx context.Context, v any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := canonical(v)
	if err != nil {
		return "", err
	}
	id := digest(data)
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, data, "", "  "); err != nil {
		return "", services.Wrap(services.ErrPersistence, "artifact", "put", "indent payload", err)
	}
	pretty.WriteByte('\n')
	if err := s.write(id, jsonExt, pretty.Bytes()); err != nil {
		return "", err
	}
	return id, nil
}

// PutBytes stores raw bytes under their digest.
func (s *FSStore) PutBytes(ctx context.Context, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id := digest(data)
	if err := s.write(id, blobExt, data); err != nil {
		return "", err
	}
	return id, nil
}

// Get decodes the JSON artifact id into out.
func (s *FSStore) Get(ctx context.Context, id string, out any) error {
	data, err := s.GetBytes(ctx, id)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return services.Wrap(services.ErrPersistence, "artifact", "get", "decode "+id, err)
	}
	return nil
}

// GetBytes returns the stored bytes for id.
func (s *FSStore) GetBytes(ctx context.Context, id string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.Path(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, "artifact", "get", "read "+id, err)
	}
	return data, nil
}

// Has reports whether id is stored.
func (s *FSStore) Has(id string) bool {
	_, err := s.Path(id)
	return err == nil
}

// Path resolves id to its file, returning *NotFoundError when absent.
func (s *FSStore) Path(id string) (string, error) {
	id = strings.ToLower(strings.TrimSpace(id))
	if !validID(id) {
		return "", &NotFoundError{ID: id}
	}
	for _, ext := range []string{jsonExt, blobExt} {
		path := s.objectPath(id, ext)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
	}
	return "", &NotFoundError{ID: id}
}

// List returns every stored identifier in sorted order.
func (s *FSStore) List(ctx context.Context) ([]string, error) {
	var ids []string
	objects := filepath.Join(s.root, "objects")
	err := filepath.WalkDir(objects, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		id := strings.TrimSuffix(strings.TrimSuffix(name, jsonExt), blobExt)
		if validID(id) {
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, services.Wrap(services.ErrPersistence, "artifact", "list", "walk objects", err)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *FSStore) write(id, ext string, data []byte) error {
	path := s.objectPath(id, ext)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := fileutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return services.Wrap(services.ErrPersistence, "artifact", "put", "write "+id, err)
	}
	return nil
}

func (s *FSStore) objectPath(id, ext string) string {
	return filepath.Join(s.root, "objects", id[:2], id+ext)
}

func canonical(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, "artifact", "put", "encode payload", err)
	}
	return data, nil
}

func digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func validID(id string) bool {
	if len(id) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(id)
	return err == nil
}

package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/kinship-net/kinship/internal/model"
)

// FileStore persists the policy document as a single JSON file.
// Mutations are serialized across processes with an advisory flock on
// a sidecar .lock file and committed with an atomic tmp+rename
// replace, so readers never observe a partial write.
type FileStore struct {
	path string
	mu   sync.Mutex // serializes writers within this process
}

// NewFileStore creates the parent directory if needed and returns a
// store backed by path.
func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, &model.StorageError{Op: "create directory", Err: err}
	}
	return &FileStore{path: path}, nil
}

// DefaultPath returns the default store location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "kinship", "policy.json")
	}
	return filepath.Join(home, ".kinship", "policy.json")
}

// Read loads the current document. A missing file is an empty
// document, not an error.
func (s *FileStore) Read() (*Document, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewDocument(), nil
		}
		return nil, &model.StorageError{Op: "read", Err: err}
	}
	doc := NewDocument()
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, &model.StorageError{Op: "decode", Err: err}
	}
	return doc, nil
}

// Update runs mutate under the cross-process lock and commits the
// result atomically. Domain errors from the mutator (e.g. an RBAC
// cycle) pass through unwrapped; nothing is written in that case.
func (s *FileStore) Update(mutate func(*Document) error) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	unlock, err := s.lock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	doc, err := s.Read()
	if err != nil {
		return nil, err
	}
	if err := mutate(doc); err != nil {
		return nil, err
	}
	if err := s.commit(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// lock takes an exclusive advisory flock on the sidecar lock file.
func (s *FileStore) lock() (func(), error) {
	lockPath := s.path + ".lock"
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, &model.StorageError{Op: "open lock", Err: err}
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		f.Close()
		return nil, &model.StorageError{Op: "flock", Err: err}
	}
	return func() {
		_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)
		_ = f.Close()
	}, nil
}

// commit writes the document to a temp file and renames it into
// place. Rename is atomic on POSIX filesystems.
func (s *FileStore) commit(doc *Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return &model.StorageError{Op: "encode", Err: err}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0600); err != nil {
		return &model.StorageError{Op: "write temp", Err: err}
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return &model.StorageError{Op: "rename", Err: fmt.Errorf("%s: %w", tmp, err)}
	}
	return nil
}

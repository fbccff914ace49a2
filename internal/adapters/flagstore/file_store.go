package flagstore

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/espenbo/sparkedge/internal/ports"
)

// FileStore persists the command flag as TRUE/FALSE text in a single file,
// matching what supervisory tooling expects to find on the node. A missing
// file reads as false.
type FileStore struct {
	mu   sync.Mutex
	path string
}

func New(path string) (*FileStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return &FileStore{path: path}, nil
}

func (s *FileStore) Read() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return strings.EqualFold(strings.TrimSpace(string(data)), "TRUE"), nil
}

func (s *FileStore) Write(v bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	text := "FALSE"
	if v {
		text = "TRUE"
	}
	return os.WriteFile(s.path, []byte(text), 0o644)
}

var _ ports.FlagStore = (*FileStore)(nil)

package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"sync"

	"github.com/IshaanNene/commentgoat/internal/types"
)

// FileStore keeps flags in a JSON object on disk. Every Save rewrites the
// file through a temp file and rename.
type FileStore struct {
	path   string
	values map[string]bool
	mu     sync.Mutex
	logger *slog.Logger
}

// NewFileStore opens (or lazily creates) the JSON file at path.
func NewFileStore(path string, logger *slog.Logger) (*FileStore, error) {
	s := &FileStore{
		path:   path,
		values: make(map[string]bool),
		logger: logger.With("component", "file_settings"),
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return s, nil
	case err != nil:
		return nil, &types.StorageError{Backend: s.Name(), Err: fmt.Errorf("read %s: %w", path, err)}
	}

	if len(data) > 0 {
		if err := json.Unmarshal(data, &s.values); err != nil {
			return nil, &types.StorageError{Backend: s.Name(), Err: fmt.Errorf("decode %s: %w", path, err)}
		}
	}
	s.logger.Debug("settings loaded", "path", path, "keys", len(s.values))
	return s, nil
}

func (s *FileStore) Name() string { return "file" }

func (s *FileStore) Load(_ context.Context, key string) (bool, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *FileStore) Save(_ context.Context, key string, value bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, had := s.values[key]
	s.values[key] = value
	if err := s.flush(); err != nil {
		if had {
			s.values[key] = prev
		} else {
			delete(s.values, key)
		}
		return err
	}
	return nil
}

func (s *FileStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.values
	s.values = make(map[string]bool)
	if err := s.flush(); err != nil {
		s.values = old
		return err
	}
	return nil
}

func (s *FileStore) All(_ context.Context) (map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.values), nil
}

func (s *FileStore) Close() error { return nil }

// flush writes the current map. Caller holds mu.
func (s *FileStore) flush() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return &types.StorageError{Backend: s.Name(), Err: fmt.Errorf("create settings dir: %w", err)}
	}

	data, err := json.MarshalIndent(s.values, "", "  ")
	if err != nil {
		return &types.StorageError{Backend: s.Name(), Err: err}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return &types.StorageError{Backend: s.Name(), Err: fmt.Errorf("write settings: %w", err)}
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return &types.StorageError{Backend: s.Name(), Err: fmt.Errorf("rename settings: %w", err)}
	}
	return nil
}

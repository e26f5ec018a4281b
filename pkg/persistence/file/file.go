// Package file provides file-based persistence for engine state.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/vaultpilot/automations/pkg/persistence"
)

// Store persists engine state as a single JSON document. Writes go through a
// temp file and rename so a crash mid-save never truncates the previous state.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore creates a file store at the given path. A "file://" prefix is
// stripped for symmetry with URL-style configuration.
func NewStore(path string) *Store {
	return &Store{path: strings.Replace(path, "file://", "", 1)}
}

// Load reads the state file. A missing file yields an empty default state.
func (s *Store) Load(_ context.Context) (*persistence.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return persistence.NewState(), nil
		}

		return nil, persistence.NewStateError("Load", s.path, err)
	}

	state := persistence.NewState()
	if err := json.Unmarshal(data, state); err != nil {
		return nil, persistence.NewStateError("Load", s.path, err)
	}

	if state.Automations == nil {
		state.Automations = persistence.NewState().Automations
	}

	return state, nil
}

// Save rewrites the state file wholesale.
func (s *Store) Save(_ context.Context, state *persistence.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return persistence.NewStateError("Save", s.path, err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return persistence.NewStateError("Save", s.path, err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return persistence.NewStateError("Save", s.path, err)
	}

	if err := os.Rename(tmp, s.path); err != nil {
		return persistence.NewStateError("Save", s.path, err)
	}

	return nil
}

// Close is a no-op for file-based persistence.
func (s *Store) Close(_ context.Context) error {
	return nil
}

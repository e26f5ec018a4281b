// Package notes provides a filesystem-backed note store for standalone
// deployments. Embedded hosts supply their own protocol.NoteStore instead.
package notes

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Store writes notes beneath a vault root directory.
type Store struct {
	root string
}

func NewStore(root string) *Store {
	return &Store{root: root}
}

// CreateNote writes a new note; it fails if the path already exists.
func (s *Store) CreateNote(_ context.Context, path, content string) error {
	full := filepath.Join(s.root, path)

	if _, err := os.Stat(full); err == nil {
		return fmt.Errorf("note %q already exists", path)
	}

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("failed to create note directory: %w", err)
	}

	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write note %q: %w", path, err)
	}

	return nil
}

// UpdateNote overwrites the note, creating it if absent.
func (s *Store) UpdateNote(_ context.Context, path, content string) error {
	full := filepath.Join(s.root, path)

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("failed to create note directory: %w", err)
	}

	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write note %q: %w", path, err)
	}

	return nil
}

package eventsource

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// taskFile is the on-disk shape of the task registry
type taskFile struct {
	Tasks   []*Task   `json:"tasks"`
	Version string    `json:"version"`
	SavedAt time.Time `json:"saved_at"`
}

// Store persists the task registry as a JSON file. Writes go through a temp
// file and rename so a crash mid-write never corrupts the registry.
type Store struct {
	path string
}

// NewStore creates a store backed by the given file path
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads all persisted tasks. A missing file is an empty registry.
func (s *Store) Load() ([]*Task, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read task registry: %w", err)
	}

	var file taskFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse task registry: %w", err)
	}

	return file.Tasks, nil
}

// Save writes all tasks to disk atomically
func (s *Store) Save(tasks []*Task) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create task registry directory: %w", err)
	}

	file := taskFile{
		Tasks:   tasks,
		Version: "1.0",
		SavedAt: time.Now(),
	}

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal task registry: %w", err)
	}

	tempFile := s.path + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write task registry: %w", err)
	}

	if err := os.Rename(tempFile, s.path); err != nil {
		return fmt.Errorf("failed to replace task registry: %w", err)
	}

	return nil
}

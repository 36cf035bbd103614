package infra

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/racingplus/client/internal/domain"
)

// FileInstanceRegistry implements domain.InstanceRegistry using a JSON file.
// Only the process holding the single-instance lock writes it.
type FileInstanceRegistry struct {
	path string
}

// NewFileInstanceRegistry creates a registry at path.
func NewFileInstanceRegistry(path string) *FileInstanceRegistry {
	return &FileInstanceRegistry{path: path}
}

// Path returns the registry file path.
func (r *FileInstanceRegistry) Path() string {
	return r.path
}

// Register records the primary instance.
func (r *FileInstanceRegistry) Register(entry domain.InstanceEntry) error {
	if entry.Version == 0 {
		entry.Version = 1
	}
	if entry.StartedAt == 0 {
		entry.StartedAt = time.Now().Unix()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0755); err != nil {
		return fmt.Errorf("failed to create registry directory: %w", err)
	}
	return atomicWriteFile(r.path, data, 0600)
}

// Get returns the recorded instance, or nil if none is registered.
func (r *FileInstanceRegistry) Get() (*domain.InstanceEntry, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var entry domain.InstanceEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// Clear removes the registry file.
func (r *FileInstanceRegistry) Clear() error {
	if err := os.Remove(r.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Ensure FileInstanceRegistry implements domain.InstanceRegistry.
var _ domain.InstanceRegistry = (*FileInstanceRegistry)(nil)

package infra

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/racingplus/client/internal/domain"
)

// SettingsFileName is the settings file name inside the settings directory.
const SettingsFileName = "settings.json"

// FileSettingsStore implements domain.SettingsStore using a JSON file.
// The UI layer writes the same file, so every mutation reloads first and
// writes are serialized through a lock file.
type FileSettingsStore struct {
	path string
	lock *flock.Flock
}

// NewFileSettingsStore creates a store backed by path.
func NewFileSettingsStore(path string) *FileSettingsStore {
	return &FileSettingsStore{
		path: path,
		lock: flock.New(path + ".lock"),
	}
}

// Path returns the settings file path.
func (s *FileSettingsStore) Path() string {
	return s.path
}

// Load reads the settings, creating an empty record on first run.
func (s *FileSettingsStore) Load() (domain.Settings, error) {
	settings, err := s.read()
	if err == nil {
		return settings, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return domain.Settings{}, err
	}

	if err := s.withLock(func() error {
		// Another writer may have created it while we waited
		if _, statErr := os.Stat(s.path); statErr == nil {
			return nil
		}
		return s.write(domain.Settings{})
	}); err != nil {
		return domain.Settings{}, err
	}
	return s.read()
}

// Update reloads the settings, applies fn and saves synchronously.
// Last writer wins; there is no transactional guarantee beyond the file lock.
func (s *FileSettingsStore) Update(fn func(*domain.Settings) error) (domain.Settings, error) {
	var updated domain.Settings
	err := s.withLock(func() error {
		current, err := s.read()
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		if current.Extra == nil {
			current.Extra = make(map[string]json.RawMessage)
		}
		if err := fn(&current); err != nil {
			return err
		}
		if err := s.write(current); err != nil {
			return err
		}
		updated = current
		return nil
	})
	return updated, err
}

func (s *FileSettingsStore) read() (domain.Settings, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return domain.Settings{}, err
	}

	var settings domain.Settings
	if len(data) == 0 {
		return settings, nil
	}
	if err := json.Unmarshal(data, &settings); err != nil {
		return domain.Settings{}, fmt.Errorf("failed to parse settings %s: %w", s.path, err)
	}
	return settings, nil
}

func (s *FileSettingsStore) withLock(fn func() error) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock settings: %w", err)
	}
	defer func() { _ = s.lock.Unlock() }()
	return fn()
}

// write saves the record atomically (write + rename).
func (s *FileSettingsStore) write(settings domain.Settings) error {
	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}
	return atomicWriteFile(s.path, data, 0644)
}

// Ensure FileSettingsStore implements domain.SettingsStore.
var _ domain.SettingsStore = (*FileSettingsStore)(nil)

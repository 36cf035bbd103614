package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/racingplus/client/internal/domain"
	"github.com/racingplus/client/internal/infra"
)

// FileName is the config file looked up when no path is given.
const FileName = "racingplus.toml"

// Paths contains file locations. Relative values are resolved against the data directory.
type Paths struct {
	SourceRoot    string `toml:"source_root"`
	SettingsFile  string `toml:"settings_file"`
	LogFile       string `toml:"log_file"`
	LockFile      string `toml:"lock_file"`
	RegistryFile  string `toml:"registry_file"`
	PendingUpdate string `toml:"pending_update"`
}

// Shell configures the bridge to the UI shell.
type Shell struct {
	Listen  string   `toml:"listen"`
	Command string   `toml:"command"`
	Args    []string `toml:"args"`
}

// Worker describes how to launch one worker kind.
type Worker struct {
	Command string   `toml:"command"`
	Args    []string `toml:"args"`
	Dir     string   `toml:"dir"`
	Policy  string   `toml:"policy"`
}

// Workers holds the per-kind worker settings.
type Workers struct {
	AuthHelper Worker `toml:"auth_helper"`
	LogWatcher Worker `toml:"log_watcher"`
	Launcher   Worker `toml:"launcher"`
}

// For returns the settings of kind.
func (w *Workers) For(kind domain.WorkerKind) *Worker {
	switch kind {
	case domain.KindAuthHelper:
		return &w.AuthHelper
	case domain.KindLogWatcher:
		return &w.LogWatcher
	case domain.KindLauncher:
		return &w.Launcher
	}
	return nil
}

// Update configures the release check.
type Update struct {
	Enabled    bool   `toml:"enabled"`
	Owner      string `toml:"owner"`
	Repo       string `toml:"repo"`
	BinaryName string `toml:"binary_name"`
}

// Hotkeys toggles global shortcut registration.
type Hotkeys struct {
	Enabled bool `toml:"enabled"`
}

// SingleInstance configures the single-instance guard.
type SingleInstance struct {
	Enabled            bool `toml:"enabled"`
	WaitTimeoutSeconds int  `toml:"wait_timeout_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Level string `toml:"level"`
}

// Config encapsulates all configuration values for the coordinator.
type Config struct {
	Mode           string         `toml:"mode"`
	Paths          Paths          `toml:"paths"`
	Shell          Shell          `toml:"shell"`
	Workers        Workers        `toml:"workers"`
	Update         Update         `toml:"update"`
	Hotkeys        Hotkeys        `toml:"hotkeys"`
	SingleInstance SingleInstance `toml:"single_instance"`
	Logging        Logging        `toml:"logging"`

	// Launch is filled in by Load from Mode and the executable location.
	Launch *infra.LaunchPaths `toml:"-"`
}

// IsDev reports whether the coordinator runs from a source tree.
func (c *Config) IsDev() bool {
	return c.Launch != nil && c.Launch.IsDev()
}

// WorkerSpec converts the worker settings of kind into a spawn spec.
func (c *Config) WorkerSpec(kind domain.WorkerKind) domain.WorkerSpec {
	w := c.Workers.For(kind)
	return domain.WorkerSpec{
		Kind:    kind,
		Command: w.Command,
		Args:    append([]string(nil), w.Args...),
		Dir:     w.Dir,
	}
}

// Policies returns the restart policy of every worker kind.
func (c *Config) Policies() map[domain.WorkerKind]domain.RestartPolicy {
	out := make(map[domain.WorkerKind]domain.RestartPolicy, len(domain.AllWorkerKinds))
	for _, kind := range domain.AllWorkerKinds {
		out[kind] = domain.RestartPolicy(c.Workers.For(kind).Policy)
	}
	return out
}

// Load locates, parses, and validates a configuration file. The returned config
// has its launch mode resolved and every path made absolute.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	projectPath, err := filepath.Abs(FileName)
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	if exe, err := os.Executable(); err == nil {
		installedPath := filepath.Join(filepath.Dir(exe), FileName)
		if info, err := os.Stat(installedPath); err == nil && !info.IsDir() {
			return installedPath, true, nil
		}
	}

	return projectPath, false, nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// resolveUnder anchors a relative path at base; absolute and "~" paths are expanded as-is.
func resolveUnder(base, pathValue string) (string, error) {
	if pathValue == "" || filepath.IsAbs(pathValue) || strings.HasPrefix(pathValue, "~") {
		return expandPath(pathValue)
	}
	return filepath.Clean(filepath.Join(base, pathValue)), nil
}

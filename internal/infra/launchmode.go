package infra

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LaunchMode represents how the coordinator was launched.
type LaunchMode string

const (
	// LaunchModeProduction resolves workers and assets relative to the installed executable
	LaunchModeProduction LaunchMode = "production"
	// LaunchModeDevelopment resolves workers and assets relative to the source tree
	LaunchModeDevelopment LaunchMode = "development"
)

// DevEnvVar switches the coordinator into development mode when set to a truthy value.
const DevEnvVar = "RACINGPLUS_DEV"

// LaunchPaths holds the directories derived from the launch mode.
type LaunchPaths struct {
	Mode           LaunchMode
	ExecutablePath string
	// Root is where worker programs and the assets folder are looked up.
	Root string
	// DataDir holds the settings file, log file, lock and registry.
	DataDir string
}

// IsDev reports whether the paths were resolved for development.
func (p *LaunchPaths) IsDev() bool {
	return p.Mode == LaunchModeDevelopment
}

// AssetsDir returns the assets folder under the root.
func (p *LaunchPaths) AssetsDir() string {
	return filepath.Join(p.Root, "assets")
}

// Resolve joins a relative path onto the root. Absolute paths are returned unchanged.
func (p *LaunchPaths) Resolve(rel string) string {
	if rel == "" || filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(p.Root, rel)
}

// DetectLaunchMode reads the development toggle from the environment.
func DetectLaunchMode() LaunchMode {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(DevEnvVar))) {
	case "1", "true", "yes", "on":
		return LaunchModeDevelopment
	}
	return LaunchModeProduction
}

// ParseLaunchMode converts a config value into a LaunchMode.
func ParseLaunchMode(s string) (LaunchMode, error) {
	switch LaunchMode(strings.ToLower(strings.TrimSpace(s))) {
	case LaunchModeProduction, "prod", "":
		return LaunchModeProduction, nil
	case LaunchModeDevelopment, "dev":
		return LaunchModeDevelopment, nil
	}
	return "", fmt.Errorf("unknown launch mode %q", s)
}

// ResolveLaunchPaths derives roots for the given mode.
// Development uses sourceRoot (or the working directory); production uses the
// executable directory for programs and its parent for user data.
func ResolveLaunchPaths(mode LaunchMode, sourceRoot string) (*LaunchPaths, error) {
	executable, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable path: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(executable); err == nil {
		executable = resolved
	}
	return resolveLaunchPaths(mode, sourceRoot, executable)
}

func resolveLaunchPaths(mode LaunchMode, sourceRoot, executable string) (*LaunchPaths, error) {
	paths := &LaunchPaths{Mode: mode, ExecutablePath: executable}

	switch mode {
	case LaunchModeDevelopment:
		root := sourceRoot
		if root == "" {
			wd, err := os.Getwd()
			if err != nil {
				return nil, fmt.Errorf("failed to get working directory: %w", err)
			}
			root = wd
		}
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, err
		}
		paths.Root = abs
		paths.DataDir = abs
	case LaunchModeProduction:
		exeDir := filepath.Dir(executable)
		paths.Root = exeDir
		paths.DataDir = filepath.Dir(exeDir)
	default:
		return nil, fmt.Errorf("unknown launch mode %q", mode)
	}
	return paths, nil
}

// String returns a human-readable description of the mode.
func (m LaunchMode) String() string {
	switch m {
	case LaunchModeDevelopment:
		return "development (source tree)"
	case LaunchModeProduction:
		return "production (installed)"
	default:
		return "unknown"
	}
}

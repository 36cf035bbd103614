package config

import (
	"fmt"
	"strings"

	"github.com/racingplus/client/internal/domain"
	"github.com/racingplus/client/internal/infra"
)

func (c *Config) normalize() error {
	if err := c.normalizeMode(); err != nil {
		return err
	}
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeWorkers(); err != nil {
		return err
	}
	c.normalizeShell()
	c.normalizeDevelopment()
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	return nil
}

func (c *Config) normalizeMode() error {
	mode, err := infra.ParseLaunchMode(c.Mode)
	if err != nil {
		return fmt.Errorf("mode: %w", err)
	}
	if infra.DetectLaunchMode() == infra.LaunchModeDevelopment {
		mode = infra.LaunchModeDevelopment
	}
	c.Mode = string(mode)

	sourceRoot, err := expandPath(c.Paths.SourceRoot)
	if err != nil {
		return fmt.Errorf("paths.source_root: %w", err)
	}
	c.Paths.SourceRoot = sourceRoot

	launch, err := infra.ResolveLaunchPaths(mode, sourceRoot)
	if err != nil {
		return err
	}
	c.Launch = launch
	return nil
}

func (c *Config) normalizePaths() error {
	base := c.Launch.DataDir
	fields := []struct {
		name  string
		value *string
	}{
		{"paths.settings_file", &c.Paths.SettingsFile},
		{"paths.log_file", &c.Paths.LogFile},
		{"paths.lock_file", &c.Paths.LockFile},
		{"paths.registry_file", &c.Paths.RegistryFile},
		{"paths.pending_update", &c.Paths.PendingUpdate},
	}
	for _, f := range fields {
		resolved, err := resolveUnder(base, strings.TrimSpace(*f.value))
		if err != nil {
			return fmt.Errorf("%s: %w", f.name, err)
		}
		*f.value = resolved
	}
	return nil
}

func (c *Config) normalizeWorkers() error {
	root := c.Launch.Root
	for _, kind := range domain.AllWorkerKinds {
		w := c.Workers.For(kind)
		w.Command = strings.TrimSpace(w.Command)
		// Bare names are looked up on PATH by os/exec
		if strings.ContainsAny(w.Command, `/\`) {
			resolved, err := resolveUnder(root, w.Command)
			if err != nil {
				return fmt.Errorf("workers.%s.command: %w", kind, err)
			}
			w.Command = resolved
		}
		if strings.TrimSpace(w.Dir) == "" {
			w.Dir = root
		} else {
			resolved, err := resolveUnder(root, w.Dir)
			if err != nil {
				return fmt.Errorf("workers.%s.dir: %w", kind, err)
			}
			w.Dir = resolved
		}
		w.Policy = strings.ToLower(strings.TrimSpace(w.Policy))
		if w.Policy == "" {
			w.Policy = string(domain.DefaultPolicy(kind))
		}
	}
	return nil
}

func (c *Config) normalizeShell() {
	c.Shell.Listen = strings.TrimSpace(c.Shell.Listen)
	if c.Shell.Listen == "" {
		c.Shell.Listen = defaultShellListen
	}
	c.Shell.Command = strings.TrimSpace(c.Shell.Command)
	if strings.ContainsAny(c.Shell.Command, `/\`) && c.Launch != nil {
		if resolved, err := resolveUnder(c.Launch.Root, c.Shell.Command); err == nil {
			c.Shell.Command = resolved
		}
	}
}

// normalizeDevelopment turns off the single-instance guard and the
// update check when running from a source tree.
func (c *Config) normalizeDevelopment() {
	if !c.IsDev() {
		return
	}
	c.SingleInstance.Enabled = false
	c.Update.Enabled = false
}

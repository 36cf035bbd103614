package config

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/racingplus/client/internal/domain"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateWorkers(); err != nil {
		return err
	}
	if err := c.validateShell(); err != nil {
		return err
	}
	if err := c.validateUpdate(); err != nil {
		return err
	}
	if err := c.validateSingleInstance(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateWorkers() error {
	for _, kind := range domain.AllWorkerKinds {
		w := c.Workers.For(kind)
		if w.Command == "" {
			return fmt.Errorf("workers.%s.command must be set", kind)
		}
		if !domain.RestartPolicy(w.Policy).Valid() {
			return fmt.Errorf("workers.%s.policy: unknown policy %q (want %q or %q)",
				kind, w.Policy, domain.PolicySingle, domain.PolicySupersede)
		}
	}
	return nil
}

func (c *Config) validateShell() error {
	if _, _, err := net.SplitHostPort(c.Shell.Listen); err != nil {
		return fmt.Errorf("shell.listen: %w", err)
	}
	return nil
}

func (c *Config) validateUpdate() error {
	if !c.Update.Enabled {
		return nil
	}
	if strings.TrimSpace(c.Update.Owner) == "" || strings.TrimSpace(c.Update.Repo) == "" {
		return errors.New("update.owner and update.repo are required when updates are enabled")
	}
	if strings.TrimSpace(c.Update.BinaryName) == "" {
		return errors.New("update.binary_name is required when updates are enabled")
	}
	return nil
}

func (c *Config) validateSingleInstance() error {
	if c.SingleInstance.WaitTimeoutSeconds < 0 {
		return errors.New("single_instance.wait_timeout_seconds must be >= 0")
	}
	if c.SingleInstance.Enabled && (c.Paths.LockFile == "" || c.Paths.RegistryFile == "") {
		return errors.New("paths.lock_file and paths.registry_file are required for the single-instance guard")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
		return nil
	}
	return fmt.Errorf("logging.level: unknown level %q", c.Logging.Level)
}

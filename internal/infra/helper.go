package infra

import (
	"os"
	"os/exec"

	"go.uber.org/zap"
)

// CommandRunner abstracts command execution for testing
type CommandRunner interface {
	// Start launches a command without waiting for it.
	Start(name string, args ...string) error
}

// RealCommandRunner starts real system commands and reaps them in the background.
type RealCommandRunner struct {
	logger *zap.Logger
}

// NewCommandRunner creates a runner that logs helper exits to logger.
func NewCommandRunner(logger *zap.Logger) *RealCommandRunner {
	return &RealCommandRunner{logger: logger}
}

// Start executes a command fire-and-forget.
func (r *RealCommandRunner) Start(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() {
		err := cmd.Wait()
		if r.logger != nil && err != nil {
			r.logger.Debug("helper exited", zap.String("helper", name), zap.Error(err))
		}
	}()
	return nil
}

// FileChecker abstracts file system checks for testing
type FileChecker interface {
	Exists(path string) bool
}

// RealFileChecker checks real filesystem
type RealFileChecker struct{}

// Exists checks if a file/directory exists
func (r *RealFileChecker) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

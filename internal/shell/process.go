package shell

import (
	"fmt"
	"os"
	"os/exec"

	"go.uber.org/zap"
)

// URLEnvVar tells the shell process where to connect.
const URLEnvVar = "RACINGPLUS_SHELL_URL"

// Process describes the shell program to launch.
type Process struct {
	Command string
	Args    []string
	Dir     string
}

// Launch starts the shell and calls onExit from a background goroutine when it ends.
func Launch(p Process, wsURL string, onExit func(error), logger *zap.Logger) (*exec.Cmd, error) {
	cmd := exec.Command(p.Command, p.Args...)
	cmd.Dir = p.Dir
	cmd.Env = append(os.Environ(), URLEnvVar+"="+wsURL)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start shell: %w", err)
	}
	logger.Info("shell started", zap.String("command", p.Command), zap.Int("pid", cmd.Process.Pid))

	go func() {
		err := cmd.Wait()
		if err != nil {
			logger.Warn("shell exited", zap.Error(err))
		} else {
			logger.Info("shell exited")
		}
		if onExit != nil {
			onExit(err)
		}
	}()
	return cmd, nil
}

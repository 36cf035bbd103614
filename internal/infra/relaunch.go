package infra

import (
	"os"
	"os/exec"
	"sync"

	"go.uber.org/zap"

	"github.com/racingplus/client/internal/domain"
)

// WaitForLockFlag tells a relaunched coordinator to wait for the previous
// instance to release the single-instance lock instead of redirecting to it.
const WaitForLockFlag = "--wait-for-lock"

// AppController implements domain.AppControl for the running process.
type AppController struct {
	quit       func()
	executable string
	args       []string
	logger     *zap.Logger
	once       sync.Once
}

// NewAppController creates a controller. quit cancels the coordinator;
// args are the command-line arguments (without argv[0]) reused on relaunch.
func NewAppController(quit func(), args []string, logger *zap.Logger) *AppController {
	executable, err := os.Executable()
	if err != nil {
		executable = os.Args[0]
	}
	return &AppController{
		quit:       quit,
		executable: executable,
		args:       relaunchArgs(args),
		logger:     logger,
	}
}

// Quit asks the coordinator to shut down. Only the first call has an effect.
func (c *AppController) Quit() {
	c.once.Do(func() {
		c.logger.Info("quit requested")
		c.quit()
	})
}

// Relaunch self-execs a detached copy of the coordinator.
// The new process runs independently of this one.
func (c *AppController) Relaunch() error {
	cmd := exec.Command(c.executable, c.args...)
	cmd.SysProcAttr = detachedProcAttr()

	// No stdin/stdout/stderr - fully detached
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return err
	}
	c.logger.Info("relaunched", zap.Int("pid", cmd.Process.Pid), zap.Strings("args", c.args))
	return cmd.Process.Release()
}

func relaunchArgs(args []string) []string {
	out := make([]string, 0, len(args)+1)
	for _, a := range args {
		if a != WaitForLockFlag {
			out = append(out, a)
		}
	}
	return append(out, WaitForLockFlag)
}

// Ensure AppController implements domain.AppControl.
var _ domain.AppControl = (*AppController)(nil)

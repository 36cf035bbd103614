// Package instance keeps a single coordinator running per user. A second
// launch asks the primary to focus its window and then exits.
package instance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"github.com/racingplus/client/internal/domain"
	"github.com/racingplus/client/internal/infra"
)

// Outcome is the result of a claim.
type Outcome int

const (
	// OutcomePrimary means this process holds the lock and should run.
	OutcomePrimary Outcome = iota
	// OutcomeRedirected means another instance was asked to focus; this one must exit.
	OutcomeRedirected
)

func (o Outcome) String() string {
	if o == OutcomePrimary {
		return "primary"
	}
	return "redirected"
}

const defaultRetryDelay = 200 * time.Millisecond

// FocusNotifier asks the primary instance to bring its window forward.
type FocusNotifier interface {
	RequestFocus(ctx context.Context, entry domain.InstanceEntry) error
}

// Options configures a Guard.
type Options struct {
	LockPath   string
	ControlURL string
	AppVersion string
	// WaitForLock retries the lock until WaitTimeout instead of redirecting
	// immediately. Used by relaunches racing the exiting instance.
	WaitForLock bool
	WaitTimeout time.Duration
	RetryDelay  time.Duration
}

// Guard owns the single-instance lock.
type Guard struct {
	lock     *flock.Flock
	registry domain.InstanceRegistry
	notifier FocusNotifier
	procs    domain.ProcessManager
	opts     Options
	logger   *zap.Logger
	held     bool
}

// NewGuard creates a guard. A nil procs uses the gopsutil process manager.
func NewGuard(registry domain.InstanceRegistry, notifier FocusNotifier, procs domain.ProcessManager, opts Options, logger *zap.Logger) *Guard {
	if procs == nil {
		procs = infra.NewProcessManager()
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = defaultRetryDelay
	}
	return &Guard{
		lock:     flock.New(opts.LockPath),
		registry: registry,
		notifier: notifier,
		procs:    procs,
		opts:     opts,
		logger:   logger.Named("instance"),
	}
}

// Claim acquires the lock or redirects to the running primary.
func (g *Guard) Claim(ctx context.Context) (Outcome, error) {
	if g.held {
		return OutcomePrimary, nil
	}

	ok, err := g.acquire(ctx)
	if err != nil {
		return OutcomePrimary, fmt.Errorf("acquire instance lock: %w", err)
	}
	if ok {
		g.held = true
		g.record()
		g.logger.Info("single-instance lock acquired", zap.String("lock", g.opts.LockPath))
		return OutcomePrimary, nil
	}

	g.redirect(ctx)
	return OutcomeRedirected, nil
}

// SetControlURL updates the address recorded for later launches.
func (g *Guard) SetControlURL(url string) {
	g.opts.ControlURL = url
	if g.held {
		g.record()
	}
}

func (g *Guard) record() {
	entry := domain.InstanceEntry{
		PID:        g.procs.GetCurrentPID(),
		ControlURL: g.opts.ControlURL,
		AppVersion: g.opts.AppVersion,
	}
	if err := g.registry.Register(entry); err != nil {
		g.logger.Warn("failed to record primary instance", zap.Error(err))
	}
}

func (g *Guard) acquire(ctx context.Context) (bool, error) {
	if !g.opts.WaitForLock {
		return g.lock.TryLock()
	}

	waitCtx := ctx
	if g.opts.WaitTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, g.opts.WaitTimeout)
		defer cancel()
	}
	g.logger.Info("waiting for previous instance to exit", zap.Duration("timeout", g.opts.WaitTimeout))
	ok, err := g.lock.TryLockContext(waitCtx, g.opts.RetryDelay)
	if errors.Is(err, context.DeadlineExceeded) {
		return false, nil
	}
	return ok, err
}

// redirect sends exactly one focus request to the primary.
func (g *Guard) redirect(ctx context.Context) {
	entry, err := g.registry.Get()
	if err != nil {
		g.logger.Warn("failed to read primary instance record", zap.Error(err))
		return
	}
	if entry == nil {
		g.logger.Warn("another instance holds the lock but has not registered")
		return
	}
	if !g.procs.IsRunning(entry.PID) {
		g.logger.Warn("recorded primary instance is not running", zap.Int("pid", entry.PID))
	}
	if err := g.notifier.RequestFocus(ctx, *entry); err != nil {
		g.logger.Warn("focus request to primary failed", zap.Int("pid", entry.PID), zap.Error(err))
		return
	}
	name, _ := g.procs.Name(entry.PID)
	g.logger.Info("redirected to running instance", zap.Int("pid", entry.PID), zap.String("process", name))
}

// Held reports whether this process is the primary.
func (g *Guard) Held() bool {
	return g.held
}

// Release clears the registry entry and unlocks. Safe to call more than once.
func (g *Guard) Release() {
	if !g.held {
		return
	}
	g.held = false
	if err := g.registry.Clear(); err != nil {
		g.logger.Warn("failed to clear instance record", zap.Error(err))
	}
	if err := g.lock.Unlock(); err != nil {
		g.logger.Warn("failed to release instance lock", zap.Error(err))
	}
	g.logger.Info("single-instance lock released")
}

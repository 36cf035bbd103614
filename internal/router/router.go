// Package router dispatches UI commands to the coordinator's components and
// tags worker notifications for the UI.
package router

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/racingplus/client/internal/domain"
	"github.com/racingplus/client/internal/supervisor"
)

// Inbound command tags sent by the UI.
const (
	TagMinimize       = "minimize"
	TagMaximize       = "maximize"
	TagClose          = "close"
	TagRestart        = "restart"
	TagQuitAndInstall = "quitAndInstall"
	TagDevTools       = "devTools"
	TagStartAuth      = "start-auth"
	TagStopAuth       = "stop-auth"
	TagStartLogWatch  = "start-log-watch"
	TagStartLauncher  = "start-launcher"
)

// Tags raised by the shell itself rather than the UI page.
const (
	TagWindowClosing  = "window:closing"
	TagWindowClosed   = "window:closed"
	TagShortcut       = "shortcut"
	TagShortcutFailed = "shortcut-failed"
	TagSecondInstance = "second-instance"
	TagActivate       = "activate"
)

// legacyTags maps command names used by older UI builds.
var legacyTags = map[string]string{
	"steam":      TagStartAuth,
	"steamExit":  TagStopAuth,
	"logWatcher": TagStartLogWatch,
	"isaac":      TagStartLauncher,
}

// Windows is the window lifecycle surface the router drives.
type Windows interface {
	Minimize() error
	ToggleMaximize() error
	Restart() error
	OpenDevTools() error
	FocusExisting() error
	HandleClosing()
	HandleClosed()
	Activate() error
}

// Workers is the supervisor surface the router drives.
type Workers interface {
	Start(ctx context.Context, kind domain.WorkerKind, init any) (supervisor.StartResult, error)
	Send(kind domain.WorkerKind, payload any) error
}

// Hotkeys runs shortcut effects.
type Hotkeys interface {
	Trigger(combination string) error
	RegistrationFailed(combination, cause string)
}

// FocusHelper brings the client back to the front after the game launches.
type FocusHelper interface {
	FocusClient() error
}

// Deps bundles the collaborators of a Router.
type Deps struct {
	Windows   Windows
	Workers   Workers
	Hotkeys   Hotkeys
	Focus     FocusHelper
	Installer domain.UpdateInstaller
	App       domain.AppControl
	Out       *Outbound
}

// ShortcutFailure is the payload of a shortcut-failed message.
type ShortcutFailure struct {
	Combination string `json:"combination"`
	Error       string `json:"error"`
}

// Router dispatches inbound messages by tag. It runs on the coordinator loop.
type Router struct {
	deps   Deps
	logger *zap.Logger
}

// New creates a router.
func New(deps Deps, logger *zap.Logger) *Router {
	return &Router{deps: deps, logger: logger.Named("router")}
}

// CanonicalTag resolves legacy aliases.
func CanonicalTag(tag string) string {
	if canonical, ok := legacyTags[tag]; ok {
		return canonical
	}
	return tag
}

// RouteInbound dispatches one inbound message. Unknown tags are logged and dropped.
func (r *Router) RouteInbound(ctx context.Context, msg domain.Message) {
	tag := CanonicalTag(msg.Tag)
	r.logger.Info("inbound", zap.String("tag", tag), zap.String("source", string(msg.Source)))

	var err error
	switch tag {
	case TagMinimize:
		err = r.deps.Windows.Minimize()
	case TagMaximize:
		err = r.deps.Windows.ToggleMaximize()
	case TagClose:
		r.deps.App.Quit()
	case TagRestart:
		err = r.deps.Windows.Restart()
	case TagQuitAndInstall:
		r.quitAndInstall()
	case TagDevTools:
		err = r.deps.Windows.OpenDevTools()

	case TagStartAuth:
		r.start(ctx, domain.KindAuthHelper, nil)
	case TagStopAuth:
		err = r.deps.Workers.Send(domain.KindAuthHelper, supervisor.ExitMessage)
	case TagStartLogWatch:
		r.startLogWatch(ctx, msg)
	case TagStartLauncher:
		r.startLauncher(ctx, msg)

	case TagWindowClosing:
		r.deps.Windows.HandleClosing()
	case TagWindowClosed:
		r.deps.Windows.HandleClosed()
	case TagSecondInstance:
		err = r.deps.Windows.FocusExisting()
	case TagActivate:
		err = r.deps.Windows.Activate()
	case TagShortcut:
		err = r.shortcut(msg)
	case TagShortcutFailed:
		var failure ShortcutFailure
		if decodeErr := msg.DecodePayload(&failure); decodeErr != nil {
			err = fmt.Errorf("decode shortcut failure: %w", decodeErr)
			break
		}
		r.deps.Hotkeys.RegistrationFailed(failure.Combination, failure.Error)

	default:
		r.logger.Warn("unknown inbound tag, dropping", zap.String("tag", msg.Tag))
		return
	}

	switch {
	case err == nil:
	case errors.Is(err, domain.ErrUnsupported):
		r.logger.Debug("command unsupported on this platform", zap.String("tag", tag))
	default:
		r.logger.Warn("inbound command failed", zap.String("tag", tag), zap.Error(err))
	}
}

func (r *Router) start(ctx context.Context, kind domain.WorkerKind, init any) bool {
	res, err := r.deps.Workers.Start(ctx, kind, init)
	if err != nil {
		// The supervisor already reported the failure on the worker's channel
		return false
	}
	if res.Skipped {
		r.logger.Debug("start ignored, worker already running", zap.String("kind", string(kind)))
	}
	return true
}

func (r *Router) startLogWatch(ctx context.Context, msg domain.Message) {
	var logPath string
	if err := msg.DecodePayload(&logPath); err != nil || logPath == "" {
		r.deps.Out.Route(domain.SourceLogWatcher, domain.ErrorEvent(errors.New("start-log-watch requires the log file path")))
		return
	}
	r.start(ctx, domain.KindLogWatcher, logPath)
}

func (r *Router) startLauncher(ctx context.Context, msg domain.Message) {
	var req domain.LaunchRequest
	if err := msg.DecodePayload(&req); err != nil {
		r.deps.Out.Route(domain.SourceLauncher, domain.ErrorEvent(fmt.Errorf("invalid start-launcher payload: %w", err)))
		return
	}
	// Fields the launcher knows about but we do not are forwarded verbatim
	var init any = req
	if len(msg.Payload) > 0 {
		init = msg.Payload
	}
	if !r.start(ctx, domain.KindLauncher, init) {
		return
	}

	// The game takes focus when it launches
	if r.deps.Focus != nil {
		if err := r.deps.Focus.FocusClient(); err != nil {
			r.logger.Debug("focus helper not run", zap.Error(err))
		}
	}
}

func (r *Router) quitAndInstall() {
	if err := r.deps.Installer.QuitAndInstall(); err != nil {
		r.logger.Error("quitAndInstall failed", zap.Error(err))
		r.deps.Out.Fail(TagAutoUpdater, err)
		return
	}
	if err := r.deps.App.Relaunch(); err != nil {
		r.logger.Error("relaunch after update failed", zap.Error(err))
	}
	r.deps.App.Quit()
}

func (r *Router) shortcut(msg domain.Message) error {
	var combination string
	if err := msg.DecodePayload(&combination); err != nil {
		return fmt.Errorf("decode shortcut: %w", err)
	}
	return r.deps.Hotkeys.Trigger(combination)
}

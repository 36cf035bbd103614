// Package window manages the single application window: creation from
// persisted geometry, window commands from the UI, and saving the geometry
// when the window closes.
package window

import (
	"fmt"
	"runtime"

	"go.uber.org/zap"

	"github.com/racingplus/client/internal/domain"
)

// Default geometry used when no bounds were persisted.
const (
	DefaultWidth     = 1110
	DevelopmentWidth = 1610
	DefaultHeight    = 720
	DefaultTitle     = "Racing+"
)

// Notifier reports recoverable failures to the UI.
type Notifier interface {
	Fail(tag string, err error)
}

// Options configures a Manager.
type Options struct {
	// Development widens the window and opens devtools on creation.
	Development bool

	// GOOS decides whether closing the last window quits. Defaults to runtime.GOOS.
	GOOS  string
	Title string
	Icon  string
}

// Manager owns at most one window. All methods run on the coordinator loop.
type Manager struct {
	host     domain.WindowHost
	settings domain.SettingsStore
	app      domain.AppControl
	notify   Notifier
	opts     Options
	logger   *zap.Logger

	win       domain.Window
	persisted bool
}

// NewManager creates a window manager. No window exists until Create.
func NewManager(host domain.WindowHost, settings domain.SettingsStore, app domain.AppControl, notify Notifier, opts Options, logger *zap.Logger) *Manager {
	if opts.GOOS == "" {
		opts.GOOS = runtime.GOOS
	}
	if opts.Title == "" {
		opts.Title = DefaultTitle
	}
	return &Manager{
		host:     host,
		settings: settings,
		app:      app,
		notify:   notify,
		opts:     opts,
		logger:   logger.Named("window"),
	}
}

// Current returns the live window, or nil.
func (m *Manager) Current() domain.Window {
	if m.alive() {
		return m.win
	}
	return nil
}

// Create opens the window using persisted geometry. A second call while the
// window is alive does nothing.
func (m *Manager) Create() error {
	if m.alive() {
		m.logger.Debug("window already open")
		return nil
	}

	opts := m.windowOptions()
	win, err := m.host.Open(opts)
	if err != nil {
		return fmt.Errorf("open window: %w", err)
	}
	m.win = win
	m.persisted = false
	m.logger.Info("window created", zap.Int("width", opts.Width), zap.Int("height", opts.Height))

	if m.opts.Development {
		win.OpenDevTools()
	}
	return nil
}

func (m *Manager) windowOptions() domain.WindowOptions {
	opts := domain.WindowOptions{
		Width:     DefaultWidth,
		Height:    DefaultHeight,
		Title:     m.opts.Title,
		Icon:      m.opts.Icon,
		Frameless: true,
	}
	if m.opts.Development {
		opts.Width = DevelopmentWidth
	}

	settings, err := m.settings.Load()
	if err != nil {
		m.logger.Warn("failed to read settings, using default geometry", zap.Error(err))
		m.fail(fmt.Errorf("read settings: %w", err))
		return opts
	}
	if g := settings.Window; g != nil {
		opts.X, opts.Y = g.X, g.Y
		if g.Width > 0 {
			opts.Width = g.Width
		}
		if g.Height > 0 {
			opts.Height = g.Height
		}
	}
	return opts
}

// Minimize minimizes the window.
func (m *Manager) Minimize() error {
	if !m.alive() {
		return domain.ErrWindowMissing
	}
	m.win.Minimize()
	return nil
}

// ToggleMaximize maximizes a normal window and restores a maximized one.
func (m *Manager) ToggleMaximize() error {
	if !m.alive() {
		return domain.ErrWindowMissing
	}
	if m.win.IsMaximized() {
		m.win.Unmaximize()
	} else {
		m.win.Maximize()
	}
	return nil
}

// OpenDevTools opens the developer tools of the window.
func (m *Manager) OpenDevTools() error {
	if !m.alive() {
		return domain.ErrWindowMissing
	}
	m.win.OpenDevTools()
	return nil
}

// FocusExisting brings the window to the front, restoring it if minimized.
// Used when a second launch is redirected here.
func (m *Manager) FocusExisting() error {
	if !m.alive() {
		return domain.ErrWindowMissing
	}
	if m.win.IsMinimized() {
		m.win.Restore()
	}
	m.win.Focus()
	return nil
}

// Restart relaunches the application and quits this instance.
func (m *Manager) Restart() error {
	if err := m.app.Relaunch(); err != nil {
		return fmt.Errorf("relaunch: %w", err)
	}
	m.app.Quit()
	return nil
}

// HandleClosing saves the window geometry. It runs once per window.
func (m *Manager) HandleClosing() {
	if m.win == nil || m.persisted {
		return
	}
	m.persisted = true

	geometry := domain.GeometryOf(m.win.Bounds())
	_, err := m.settings.Update(func(s *domain.Settings) error {
		s.Window = &geometry
		return nil
	})
	if err != nil {
		m.logger.Error("failed to save window geometry", zap.Error(err))
		m.fail(fmt.Errorf("save settings: %w", err))
		return
	}
	m.logger.Debug("window geometry saved",
		zap.Int("x", *geometry.X), zap.Int("y", *geometry.Y),
		zap.Int("width", geometry.Width), zap.Int("height", geometry.Height))
}

// HandleClosed drops the window reference. Closing the last window quits the
// application except on macOS, where activate recreates it.
func (m *Manager) HandleClosed() {
	if m.win == nil {
		return
	}
	m.win = nil
	m.logger.Info("window closed")
	if m.opts.GOOS != "darwin" {
		m.app.Quit()
	}
}

// Activate recreates the window if it is gone.
func (m *Manager) Activate() error {
	if m.alive() {
		return nil
	}
	return m.Create()
}

// Close saves the geometry and closes the window. Used during shutdown.
func (m *Manager) Close() {
	if !m.alive() {
		return
	}
	m.HandleClosing()
	m.win.Close()
	m.win = nil
}

func (m *Manager) alive() bool {
	return m.win != nil && !m.win.IsDestroyed()
}

func (m *Manager) fail(err error) {
	if m.notify != nil {
		m.notify.Fail("supervisor", err)
	}
}

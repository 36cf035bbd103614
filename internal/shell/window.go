package shell

import (
	"sync"

	"github.com/racingplus/client/internal/domain"
)

// Control tags sent to the shell.
const (
	ControlWindowOpen       = "window:open"
	ControlWindowMinimize   = "window:minimize"
	ControlWindowMaximize   = "window:maximize"
	ControlWindowUnmaximize = "window:unmaximize"
	ControlWindowRestore    = "window:restore"
	ControlWindowFocus      = "window:focus"
	ControlWindowDevTools   = "window:devtools"
	ControlWindowClose      = "window:close"
)

// RemoteWindow mirrors the window rendered by the shell. Commands are sent as
// control frames; geometry and state come back through window:bounds and
// window:state frames.
type RemoteWindow struct {
	hub *Hub

	mu        sync.RWMutex
	bounds    domain.Bounds
	maximized bool
	minimized bool
	destroyed bool
}

// Open asks the shell to create the window. Implements domain.WindowHost.
func (h *Hub) Open(opts domain.WindowOptions) (domain.Window, error) {
	w := &RemoteWindow{hub: h, bounds: domain.Bounds{Width: opts.Width, Height: opts.Height}}
	if opts.X != nil {
		w.bounds.X = *opts.X
	}
	if opts.Y != nil {
		w.bounds.Y = *opts.Y
	}

	h.mu.Lock()
	if h.window != nil {
		h.window.markDestroyed()
	}
	h.window = w
	h.mu.Unlock()

	h.control(ControlWindowOpen, opts)
	return w, nil
}

func (h *Hub) currentWindow() *RemoteWindow {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.window
}

func (w *RemoteWindow) Bounds() domain.Bounds {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.bounds
}

func (w *RemoteWindow) IsMaximized() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.maximized
}

func (w *RemoteWindow) IsMinimized() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.minimized
}

func (w *RemoteWindow) IsDestroyed() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.destroyed
}

func (w *RemoteWindow) Minimize() {
	w.update(func() { w.minimized = true })
	w.hub.control(ControlWindowMinimize, nil)
}

func (w *RemoteWindow) Maximize() {
	w.update(func() { w.maximized = true })
	w.hub.control(ControlWindowMaximize, nil)
}

func (w *RemoteWindow) Unmaximize() {
	w.update(func() { w.maximized = false })
	w.hub.control(ControlWindowUnmaximize, nil)
}

func (w *RemoteWindow) Restore() {
	w.update(func() { w.minimized = false })
	w.hub.control(ControlWindowRestore, nil)
}

func (w *RemoteWindow) Focus() {
	w.hub.control(ControlWindowFocus, nil)
}

func (w *RemoteWindow) OpenDevTools() {
	w.hub.control(ControlWindowDevTools, nil)
}

func (w *RemoteWindow) Close() {
	if w.IsDestroyed() {
		return
	}
	w.markDestroyed()
	w.hub.control(ControlWindowClose, nil)
}

func (w *RemoteWindow) update(fn func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fn()
}

func (w *RemoteWindow) setBounds(b domain.Bounds) {
	w.update(func() { w.bounds = b })
}

func (w *RemoteWindow) setState(st WindowState) {
	w.update(func() {
		w.maximized = st.Maximized
		w.minimized = st.Minimized
	})
}

func (w *RemoteWindow) markDestroyed() {
	w.update(func() { w.destroyed = true })
}

var (
	_ domain.Window     = (*RemoteWindow)(nil)
	_ domain.WindowHost = (*Hub)(nil)
)

// Package hotkey registers the global key bindings and runs their effects.
package hotkey

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/racingplus/client/internal/domain"
)

// NotifyTag is the UI channel hotkey notifications travel on.
const NotifyTag = "hotkey"

// DefaultBindings returns the built-in key bindings.
func DefaultBindings() []domain.Binding {
	return []domain.Binding{
		{Combination: "Alt+1", Effect: domain.EffectFocusGame},
		{Combination: "Alt+2", Effect: domain.EffectFocusApp},
		{Combination: "Alt+R", Effect: domain.EffectNotifyUI, Arg: "ready"},
		{Combination: "Alt+Q", Effect: domain.EffectNotifyUI, Arg: "quit"},
		{Combination: "Alt+C", Effect: domain.EffectGameHotkey, Arg: "blckCndl"},
		{Combination: "Alt+V", Effect: domain.EffectGameHotkey, Arg: "blckCndlSeed"},
	}
}

// Focuser brings the application window forward.
type Focuser interface {
	FocusExisting() error
}

// Notifier sends values to the UI.
type Notifier interface {
	Notify(tag string, v any)
}

// Dispatcher owns the global bindings. Methods run on the coordinator loop.
type Dispatcher struct {
	bindings  []domain.Binding
	registrar domain.ShortcutRegistrar
	platform  Platform
	settings  domain.SettingsStore
	focus     Focuser
	notify    Notifier
	logger    *zap.Logger

	registered map[string]bool
}

// NewDispatcher creates a dispatcher for bindings.
func NewDispatcher(bindings []domain.Binding, registrar domain.ShortcutRegistrar, platform Platform, settings domain.SettingsStore, focus Focuser, notify Notifier, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		bindings:   bindings,
		registrar:  registrar,
		platform:   platform,
		settings:   settings,
		focus:      focus,
		notify:     notify,
		logger:     logger.Named("hotkey"),
		registered: make(map[string]bool),
	}
}

// RegisterAll registers every binding independently. Failures are logged as
// warnings and the remaining bindings still register. Returns the number registered.
func (d *Dispatcher) RegisterAll() int {
	count := 0
	for _, b := range d.bindings {
		if err := d.registrar.Register(b.Combination); err != nil {
			d.logger.Warn("hotkey registration failed",
				zap.String("combination", b.Combination), zap.Error(err))
			continue
		}
		d.registered[b.Combination] = true
		count++
	}
	d.logger.Info("hotkeys registered",
		zap.Int("count", count),
		zap.Int("total", len(d.bindings)),
		zap.String("platform", d.platform.Name()))
	return count
}

// RegistrationFailed records an asynchronous registration failure reported by the shell.
func (d *Dispatcher) RegistrationFailed(combination, cause string) {
	delete(d.registered, combination)
	d.logger.Warn("hotkey registration failed",
		zap.String("combination", combination), zap.String("error", cause))
}

// Registered reports whether combination is currently held.
func (d *Dispatcher) Registered(combination string) bool {
	return d.registered[combination]
}

// Trigger runs the effect bound to combination.
func (d *Dispatcher) Trigger(combination string) error {
	b, ok := d.lookup(combination)
	if !ok {
		return fmt.Errorf("no binding for %q", combination)
	}
	d.logger.Debug("hotkey triggered", zap.String("combination", combination), zap.String("effect", string(b.Effect)))

	switch b.Effect {
	case domain.EffectFocusGame:
		return d.platform.FocusGame()
	case domain.EffectFocusApp:
		return d.focus.FocusExisting()
	case domain.EffectNotifyUI:
		d.notify.Notify(NotifyTag, b.Arg)
		return nil
	case domain.EffectGameHotkey:
		return d.platform.InvokeGameHotkey(b.Arg, d.controller())
	}
	return fmt.Errorf("unknown hotkey effect %q", b.Effect)
}

// controller reads the preference at trigger time; keyboard when unreadable.
func (d *Dispatcher) controller() bool {
	settings, err := d.settings.Load()
	if err != nil {
		d.logger.Warn("failed to read controller preference", zap.Error(err))
		return false
	}
	return settings.Controller()
}

func (d *Dispatcher) lookup(combination string) (domain.Binding, bool) {
	for _, b := range d.bindings {
		if b.Combination == combination {
			return b, true
		}
	}
	return domain.Binding{}, false
}

// UnregisterAll releases every binding. Errors are logged, never returned.
func (d *Dispatcher) UnregisterAll() {
	if err := d.registrar.UnregisterAll(); err != nil {
		d.logger.Warn("failed to unregister hotkeys", zap.Error(err))
	}
	d.registered = make(map[string]bool)
}

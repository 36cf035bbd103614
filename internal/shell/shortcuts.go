package shell

import (
	"sync"

	"github.com/racingplus/client/internal/domain"
)

// Control tags for global shortcuts.
const (
	ControlShortcutRegister      = "shortcut:register"
	ControlShortcutUnregisterAll = "shortcut:unregister-all"
)

// ShortcutRegistrar registers global shortcuts through the shell. The shell
// reports triggers as "shortcut" messages and failures as "shortcut-failed".
// Registrations are replayed when a restarted shell reconnects.
type ShortcutRegistrar struct {
	hub *Hub

	mu           sync.Mutex
	combinations []string
}

// NewShortcutRegistrar creates a registrar bound to hub.
func NewShortcutRegistrar(hub *Hub) *ShortcutRegistrar {
	r := &ShortcutRegistrar{hub: hub}
	hub.OnConnect(func(reconnect bool) {
		if reconnect {
			r.replay()
		}
	})
	return r
}

// Register asks the shell to claim combination. Conflicts are reported asynchronously.
func (r *ShortcutRegistrar) Register(combination string) error {
	r.mu.Lock()
	r.combinations = append(r.combinations, combination)
	r.mu.Unlock()

	r.hub.control(ControlShortcutRegister, combination)
	return nil
}

// UnregisterAll releases every shortcut.
func (r *ShortcutRegistrar) UnregisterAll() error {
	r.mu.Lock()
	r.combinations = nil
	r.mu.Unlock()

	r.hub.control(ControlShortcutUnregisterAll, nil)
	return nil
}

// Registered returns the combinations currently requested.
func (r *ShortcutRegistrar) Registered() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.combinations...)
}

func (r *ShortcutRegistrar) replay() {
	for _, combination := range r.Registered() {
		r.hub.control(ControlShortcutRegister, combination)
	}
}

var _ domain.ShortcutRegistrar = (*ShortcutRegistrar)(nil)

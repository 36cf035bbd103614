package domain

// EffectKind names what a global key binding does.
type EffectKind string

const (
	// EffectFocusGame runs the helper that brings the game window forward.
	EffectFocusGame EffectKind = "focus-game"
	// EffectFocusApp focuses the application window.
	EffectFocusApp EffectKind = "focus-app"
	// EffectNotifyUI sends Arg to the UI on the hotkey channel.
	EffectNotifyUI EffectKind = "notify-ui"
	// EffectGameHotkey runs the named in-game helper, honouring the controller preference.
	EffectGameHotkey EffectKind = "game-hotkey"
)

// Binding pairs a key combination with its effect.
type Binding struct {
	Combination string
	Effect      EffectKind
	Arg         string
}

package domain

import (
	"encoding/json"
	"fmt"
)

const (
	settingsKeyWindow     = "window"
	settingsKeyController = "controllerPreference"
	// Older UI builds wrote the input-device preference under this key.
	settingsKeyLegacyController = "controller"
)

// Bounds is the live geometry of the application window.
type Bounds struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// WindowGeometry is the persisted form of the window geometry.
// Every field is optional; an unset position means OS-default placement.
type WindowGeometry struct {
	X      *int `json:"x,omitempty"`
	Y      *int `json:"y,omitempty"`
	Width  int  `json:"width,omitempty"`
	Height int  `json:"height,omitempty"`
}

// GeometryOf converts live bounds into a fully populated geometry record.
func GeometryOf(b Bounds) WindowGeometry {
	x, y := b.X, b.Y
	return WindowGeometry{X: &x, Y: &y, Width: b.Width, Height: b.Height}
}

// Settings is the persisted configuration record shared with the UI layer.
// Keys the coordinator does not own are kept verbatim in Extra so a save
// never drops values written by the UI.
type Settings struct {
	Window               *WindowGeometry
	ControllerPreference *bool
	Extra                map[string]json.RawMessage

	// legacyController is set when the preference was read from the legacy
	// key; saves then write it back there and nowhere else.
	legacyController bool
}

// Controller reports whether helper hotkeys should target a controller.
// Defaults to keyboard when unset.
func (s Settings) Controller() bool {
	return s.ControllerPreference != nil && *s.ControllerPreference
}

// SetController stores the input-device preference.
func (s *Settings) SetController(v bool) {
	s.ControllerPreference = &v
}

// MarshalJSON writes the known fields on top of the preserved extra keys.
func (s Settings) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(s.Extra)+2)
	for k, v := range s.Extra {
		out[k] = v
	}
	if s.Window != nil {
		raw, err := json.Marshal(s.Window)
		if err != nil {
			return nil, err
		}
		out[settingsKeyWindow] = raw
	}
	if s.ControllerPreference != nil {
		raw, err := json.Marshal(*s.ControllerPreference)
		if err != nil {
			return nil, err
		}
		key := settingsKeyController
		if s.legacyController {
			key = settingsKeyLegacyController
		}
		out[key] = raw
	}
	return json.Marshal(out)
}

// UnmarshalJSON splits the record into known fields and extra keys.
func (s *Settings) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*s = Settings{Extra: make(map[string]json.RawMessage)}
	for k, v := range raw {
		switch k {
		case settingsKeyWindow:
			var w WindowGeometry
			if err := json.Unmarshal(v, &w); err != nil {
				return fmt.Errorf("settings.window: %w", err)
			}
			s.Window = &w
		case settingsKeyController:
			var b bool
			if err := json.Unmarshal(v, &b); err != nil {
				return fmt.Errorf("settings.controllerPreference: %w", err)
			}
			s.ControllerPreference = &b
		default:
			s.Extra[k] = v
		}
	}

	if s.ControllerPreference == nil {
		if v, ok := s.Extra[settingsKeyLegacyController]; ok {
			var b bool
			if json.Unmarshal(v, &b) == nil {
				s.ControllerPreference = &b
				s.legacyController = true
			}
		}
	}
	return nil
}

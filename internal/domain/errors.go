package domain

import "errors"

var (
	// ErrUnsupported is returned by platform operations that have no helper on this OS.
	ErrUnsupported = errors.New("unsupported on this platform")

	// ErrWindowMissing is returned by window operations when no window is open.
	ErrWindowMissing = errors.New("no application window")

	// ErrShortcutTaken is returned when another application holds a key combination.
	ErrShortcutTaken = errors.New("shortcut already registered by another application")
)

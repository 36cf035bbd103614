package domain

import "context"

// WorkerSpec describes how to launch one worker process.
type WorkerSpec struct {
	Kind    WorkerKind
	Command string
	Args    []string
	Dir     string
	Env     []string
}

// WorkerHandle is the supervisor's private reference to a live worker.
// Only the supervisor holds handles; nothing else may signal a worker.
type WorkerHandle interface {
	// ID returns a unique identifier for this spawn.
	ID() string

	// PID returns the OS process ID.
	PID() int

	// Send queues a message for the worker. It never blocks on the worker.
	Send(payload any) error
}

// WorkerSpawner starts worker processes.
// Implementation: os/exec with newline-delimited JSON over stdio.
type WorkerSpawner interface {
	// Spawn starts the worker and reports its messages, errors and exit
	// through notify, in the order the worker produced them.
	Spawn(ctx context.Context, spec WorkerSpec, notify func(WorkerEvent)) (WorkerHandle, error)
}

// ProcessManager handles OS process queries.
// Implementation: uses gopsutil for cross-platform support.
type ProcessManager interface {
	// IsRunning checks if a PID exists and is running.
	IsRunning(pid int) bool

	// Name returns the executable name of a running process.
	Name(pid int) (string, error)

	// GetCurrentPID returns the current process PID.
	GetCurrentPID() int
}

// SettingsStore persists the settings record.
// Every mutation reloads from storage first to tolerate concurrent writers.
type SettingsStore interface {
	// Load reads the record, creating an empty one if it does not exist.
	Load() (Settings, error)

	// Update reloads the record, applies fn, and saves synchronously.
	Update(fn func(*Settings) error) (Settings, error)

	// Path returns the backing file path.
	Path() string
}

// WindowOptions configures window creation.
type WindowOptions struct {
	X         *int   `json:"x,omitempty"`
	Y         *int   `json:"y,omitempty"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Title     string `json:"title,omitempty"`
	Icon      string `json:"icon,omitempty"`
	Frameless bool   `json:"frameless"`
}

// Window is the single application window.
type Window interface {
	Bounds() Bounds
	IsMaximized() bool
	IsMinimized() bool
	IsDestroyed() bool
	Minimize()
	Maximize()
	Unmaximize()
	Restore()
	Focus()
	OpenDevTools()
	Close()
}

// WindowHost creates windows.
type WindowHost interface {
	Open(opts WindowOptions) (Window, error)
}

// ShortcutRegistrar registers global key combinations with the OS.
// Triggers are delivered back to the coordinator as "shortcut" messages.
type ShortcutRegistrar interface {
	// Register claims a combination. Fails if another application holds it.
	Register(combination string) error

	// UnregisterAll releases every combination.
	UnregisterAll() error
}

// InstanceRegistry records the primary coordinator for second-launch redirects.
// Implementation: JSON file next to the lock file.
type InstanceRegistry interface {
	Register(entry InstanceEntry) error
	Get() (*InstanceEntry, error)
	Clear() error
	Path() string
}

// OutboundSink delivers coordinator-originated messages to the UI layer
// in the order they are handed over.
type OutboundSink interface {
	Deliver(msg Message)
}

// ErrorReporter forwards unexpected faults to an external error collector.
type ErrorReporter interface {
	Capture(err error, where string)
}

// AppControl terminates or relaunches the coordinator process.
type AppControl interface {
	Quit()
	Relaunch() error
}

// UpdateInstaller applies a downloaded update.
type UpdateInstaller interface {
	QuitAndInstall() error
}

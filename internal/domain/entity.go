// Package domain contains core entities and collaborator interfaces.
// This is the innermost layer - no external dependencies.
package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// WorkerKind identifies one auxiliary worker process.
type WorkerKind string

const (
	KindAuthHelper WorkerKind = "auth-helper"
	KindLogWatcher WorkerKind = "log-watcher"
	KindLauncher   WorkerKind = "launcher"
)

// AllWorkerKinds lists every worker kind in a stable order.
var AllWorkerKinds = []WorkerKind{KindAuthHelper, KindLogWatcher, KindLauncher}

// Valid reports whether k is a known worker kind.
func (k WorkerKind) Valid() bool {
	switch k {
	case KindAuthHelper, KindLogWatcher, KindLauncher:
		return true
	}
	return false
}

// RestartPolicy decides what a start request does while a worker of the
// same kind is still tracked.
type RestartPolicy string

const (
	// PolicySingle ignores start requests while the kind is non-Absent.
	PolicySingle RestartPolicy = "single"
	// PolicySupersede always spawns a fresh worker and tracks the newest one.
	PolicySupersede RestartPolicy = "supersede"
)

// Valid reports whether p is a known policy.
func (p RestartPolicy) Valid() bool {
	return p == PolicySingle || p == PolicySupersede
}

// DefaultPolicy returns the restart policy a kind uses when none is configured.
func DefaultPolicy(kind WorkerKind) RestartPolicy {
	if kind == KindLauncher {
		return PolicySupersede
	}
	return PolicySingle
}

// WorkerState is the lifecycle state of a worker kind.
type WorkerState string

const (
	StateAbsent   WorkerState = "absent"
	StateStarting WorkerState = "starting"
	StateRunning  WorkerState = "running"
	StateExited   WorkerState = "exited"
	StateErrored  WorkerState = "errored"
)

// Source identifies who emitted a message.
type Source string

const (
	SourceUI         Source = "ui"
	SourceAuthHelper Source = "auth-helper"
	SourceLogWatcher Source = "log-watcher"
	SourceLauncher   Source = "launcher"
	SourceSupervisor Source = "supervisor"
)

// SourceOf maps a worker kind to its message source.
func SourceOf(kind WorkerKind) Source {
	switch kind {
	case KindAuthHelper:
		return SourceAuthHelper
	case KindLogWatcher:
		return SourceLogWatcher
	case KindLauncher:
		return SourceLauncher
	}
	return SourceSupervisor
}

// Direction is the travel direction of a message relative to the coordinator.
type Direction string

const (
	Inbound  Direction = "inbound"
	Outbound Direction = "outbound"
)

// EventType discriminates the outbound event union.
type EventType string

const (
	EventData   EventType = "data"
	EventError  EventType = "error"
	EventExited EventType = "exited"
)

// Event is the tagged union carried by worker and supervisor notifications:
// Data(payload) | Error(cause) | Exited.
type Event struct {
	Type  EventType       `json:"type"`
	Data  json.RawMessage `json:"data,omitempty"`
	Cause string          `json:"cause,omitempty"`
	Code  int             `json:"code,omitempty"`
}

// DataEvent wraps a raw payload.
func DataEvent(payload json.RawMessage) Event {
	return Event{Type: EventData, Data: payload}
}

// ValueEvent marshals v into a data event. Marshal failures become error events.
func ValueEvent(v any) Event {
	data, err := json.Marshal(v)
	if err != nil {
		return ErrorEvent(fmt.Errorf("encode payload: %w", err))
	}
	return DataEvent(data)
}

// ErrorEvent wraps a failure cause.
func ErrorEvent(cause error) Event {
	if cause == nil {
		return Event{Type: EventError}
	}
	return Event{Type: EventError, Cause: cause.Error()}
}

// ExitedEvent marks the end of a worker.
func ExitedEvent(code int) Event {
	return Event{Type: EventExited, Code: code}
}

// Message is the envelope exchanged between the UI, the coordinator and workers.
// Messages are treated as immutable once created.
type Message struct {
	ID        string          `json:"id"`
	Source    Source          `json:"source"`
	Direction Direction       `json:"direction"`
	Tag       string          `json:"tag"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Event     *Event          `json:"event,omitempty"`
	Time      time.Time       `json:"time"`
}

// DecodePayload unmarshals the payload into target. An empty payload is not an error.
func (m Message) DecodePayload(target any) error {
	if len(m.Payload) == 0 {
		return nil
	}
	return json.Unmarshal(m.Payload, target)
}

// WorkerEvent is a notification produced by a worker transport.
type WorkerEvent struct {
	Kind     WorkerKind
	HandleID string
	Event    Event
	// Crashed is set on exit events when the process ended abnormally.
	Crashed bool
}

// LaunchRequest is the start-launcher payload forwarded to the launcher worker.
type LaunchRequest struct {
	ModsDir string `json:"modsDir"`
	Force   bool   `json:"force"`
}

// InstanceEntry records the coordinator that owns the single-instance claim.
// Persisted to a JSON file for second-launch redirects and the status command.
type InstanceEntry struct {
	Version    int    `json:"version"`
	PID        int    `json:"pid"`
	ControlURL string `json:"control_url"`
	AppVersion string `json:"app_version,omitempty"`
	StartedAt  int64  `json:"started_at"`
}

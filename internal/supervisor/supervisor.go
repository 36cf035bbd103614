// Package supervisor owns the lifecycle of worker processes.
//
// A Supervisor is an actor: every method is called from the coordinator loop,
// so per-kind state needs no locking. Worker transports post their
// notifications back onto that loop, which hands them to HandleEvent.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/racingplus/client/internal/domain"
)

// ExitMessage is the payload that asks a worker to shut down.
const ExitMessage = "exit"

// ErrUnknownKind is returned for worker kinds the supervisor does not manage.
var ErrUnknownKind = errors.New("unknown worker kind")

// Outbound receives notifications destined for the UI.
type Outbound interface {
	Route(source domain.Source, ev domain.Event)
}

// StartResult describes the outcome of Start.
type StartResult struct {
	// HandleID identifies the spawned worker.
	HandleID string
	// Skipped is set when a guarded kind was already tracked.
	Skipped bool
	// Superseded is the handle that stopped being tracked, if any.
	Superseded string
}

// Options configures a Supervisor.
type Options struct {
	Specs    map[domain.WorkerKind]domain.WorkerSpec
	Policies map[domain.WorkerKind]domain.RestartPolicy
	// Notify posts transport events back onto the coordinator loop.
	Notify func(domain.WorkerEvent)
}

type trackedWorker struct {
	handle  domain.WorkerHandle
	state   domain.WorkerState
	started time.Time
}

// Supervisor tracks at most one worker handle per kind.
type Supervisor struct {
	spawner  domain.WorkerSpawner
	out      Outbound
	specs    map[domain.WorkerKind]domain.WorkerSpec
	policies map[domain.WorkerKind]domain.RestartPolicy
	notify   func(domain.WorkerEvent)
	logger   *zap.Logger

	workers  map[domain.WorkerKind]*trackedWorker
	lastExit map[domain.WorkerKind]domain.WorkerState
}

// New creates a supervisor. Missing policies fall back to domain.DefaultPolicy.
func New(spawner domain.WorkerSpawner, out Outbound, opts Options, logger *zap.Logger) *Supervisor {
	policies := make(map[domain.WorkerKind]domain.RestartPolicy, len(domain.AllWorkerKinds))
	for _, kind := range domain.AllWorkerKinds {
		policy := opts.Policies[kind]
		if !policy.Valid() {
			policy = domain.DefaultPolicy(kind)
		}
		policies[kind] = policy
	}

	notify := opts.Notify
	if notify == nil {
		notify = func(domain.WorkerEvent) {}
	}

	return &Supervisor{
		spawner:  spawner,
		out:      out,
		specs:    opts.Specs,
		policies: policies,
		notify:   notify,
		logger:   logger.Named("supervisor"),
		workers:  make(map[domain.WorkerKind]*trackedWorker),
		lastExit: make(map[domain.WorkerKind]domain.WorkerState),
	}
}

// Policy returns the restart policy of kind.
func (s *Supervisor) Policy(kind domain.WorkerKind) domain.RestartPolicy {
	return s.policies[kind]
}

// Start spawns a worker of kind and transmits init as its first message.
// A nil init sends nothing. Guarded kinds that are already tracked are left
// alone and reported as skipped.
func (s *Supervisor) Start(ctx context.Context, kind domain.WorkerKind, init any) (StartResult, error) {
	if !kind.Valid() {
		return StartResult{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	previous := s.workers[kind]
	if previous != nil && s.policies[kind] == domain.PolicySingle {
		s.logger.Debug("worker already tracked, ignoring start",
			zap.String("kind", string(kind)),
			zap.String("state", string(previous.state)))
		return StartResult{HandleID: previous.handle.ID(), Skipped: true}, nil
	}

	spec := s.specs[kind]
	spec.Kind = kind

	handle, err := s.spawner.Spawn(ctx, spec, s.notify)
	if err != nil {
		s.logger.Error("failed to spawn worker", zap.String("kind", string(kind)), zap.Error(err))
		s.out.Route(domain.SourceOf(kind), domain.ErrorEvent(err))
		return StartResult{}, fmt.Errorf("spawn %s: %w", kind, err)
	}

	result := StartResult{HandleID: handle.ID()}
	if previous != nil {
		result.Superseded = previous.handle.ID()
		s.logger.Info("superseding tracked worker",
			zap.String("kind", string(kind)),
			zap.String("previous", result.Superseded),
			zap.String("handle", handle.ID()))
	}

	s.workers[kind] = &trackedWorker{handle: handle, state: domain.StateStarting, started: time.Now()}
	delete(s.lastExit, kind)
	s.logger.Info("worker starting", zap.String("kind", string(kind)), zap.String("handle", handle.ID()))

	if init != nil {
		if err := handle.Send(init); err != nil {
			s.logger.Warn("failed to send init message", zap.String("kind", string(kind)), zap.Error(err))
			s.out.Route(domain.SourceOf(kind), domain.ErrorEvent(fmt.Errorf("send init: %w", err)))
		}
	}

	return result, nil
}

// Send forwards payload to the tracked worker of kind.
// An absent worker is not an error; the message is dropped.
func (s *Supervisor) Send(kind domain.WorkerKind, payload any) error {
	w := s.workers[kind]
	if w == nil {
		s.logger.Debug("no worker tracked, dropping message", zap.String("kind", string(kind)))
		return nil
	}
	if err := w.handle.Send(payload); err != nil {
		return fmt.Errorf("send to %s: %w", kind, err)
	}
	return nil
}

// HandleEvent applies a transport notification and forwards it outbound.
func (s *Supervisor) HandleEvent(ev domain.WorkerEvent) {
	source := domain.SourceOf(ev.Kind)
	w := s.workers[ev.Kind]
	tracked := w != nil && w.handle.ID() == ev.HandleID

	switch ev.Event.Type {
	case domain.EventData:
		if tracked && w.state == domain.StateStarting {
			w.state = domain.StateRunning
			s.logger.Debug("worker running", zap.String("kind", string(ev.Kind)))
		}
		s.out.Route(source, ev.Event)

	case domain.EventError:
		s.logger.Warn("worker reported error",
			zap.String("kind", string(ev.Kind)),
			zap.String("handle", ev.HandleID),
			zap.String("cause", ev.Event.Cause))
		s.out.Route(source, ev.Event)

	case domain.EventExited:
		if tracked {
			final := domain.StateExited
			if ev.Crashed {
				final = domain.StateErrored
			}
			w.state = final
			s.lastExit[ev.Kind] = final
			delete(s.workers, ev.Kind)
			s.logger.Info("worker exited",
				zap.String("kind", string(ev.Kind)),
				zap.String("state", string(final)),
				zap.Int("code", ev.Event.Code),
				zap.Duration("uptime", time.Since(w.started)))
		} else {
			s.logger.Info("untracked worker exited",
				zap.String("kind", string(ev.Kind)),
				zap.String("handle", ev.HandleID))
		}
		s.out.Route(source, ev.Event)

	default:
		s.logger.Warn("unknown worker event", zap.String("type", string(ev.Event.Type)))
	}
}

// ShutdownAll sends one exit message to every tracked worker and returns the
// number signalled. It does not wait for the workers to exit.
func (s *Supervisor) ShutdownAll() int {
	signalled := 0
	for _, kind := range domain.AllWorkerKinds {
		w := s.workers[kind]
		if w == nil {
			continue
		}
		if err := w.handle.Send(ExitMessage); err != nil {
			s.logger.Warn("failed to signal worker", zap.String("kind", string(kind)), zap.Error(err))
		}
		signalled++
	}
	s.logger.Info("shutdown signalled", zap.Int("workers", signalled))
	return signalled
}

// State returns the current state of kind. Untracked kinds are Absent.
func (s *Supervisor) State(kind domain.WorkerKind) domain.WorkerState {
	if w := s.workers[kind]; w != nil {
		return w.state
	}
	return domain.StateAbsent
}

// LastExit returns the terminal state observed for kind's most recent worker.
func (s *Supervisor) LastExit(kind domain.WorkerKind) (domain.WorkerState, bool) {
	st, ok := s.lastExit[kind]
	return st, ok
}

// Tracked returns the handle ID of kind's tracked worker.
func (s *Supervisor) Tracked(kind domain.WorkerKind) (string, bool) {
	if w := s.workers[kind]; w != nil {
		return w.handle.ID(), true
	}
	return "", false
}

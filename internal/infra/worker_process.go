package infra

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/racingplus/client/internal/domain"
)

// Frame types on the worker stdio channel.
const (
	FrameMessage = "message"
	FrameError   = "error"
)

const (
	defaultSendQueue = 64
	maxFrameSize     = 1 << 20
)

var (
	// ErrWorkerGone is returned when sending to a worker whose process has ended.
	ErrWorkerGone = errors.New("worker has exited")
	// ErrSendQueueFull is returned when a worker is not draining its stdin.
	ErrSendQueueFull = errors.New("worker send queue is full")
)

// WorkerFrame is one newline-delimited JSON frame exchanged with a worker.
type WorkerFrame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// EncodeMessageFrame builds a message frame line (without the trailing newline).
func EncodeMessageFrame(payload any) ([]byte, error) {
	raw, ok := payload.(json.RawMessage)
	if !ok {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode worker payload: %w", err)
		}
		raw = data
	}
	return json.Marshal(WorkerFrame{Type: FrameMessage, Payload: raw})
}

// decodeFrame turns one stdout line into a worker event.
// Lines that are valid JSON but not frames are passed through as data.
func decodeFrame(line []byte) domain.Event {
	var frame WorkerFrame
	if err := json.Unmarshal(line, &frame); err != nil {
		if json.Valid(line) {
			return domain.DataEvent(append(json.RawMessage(nil), line...))
		}
		return domain.ErrorEvent(fmt.Errorf("malformed frame: %w", err))
	}
	switch frame.Type {
	case FrameMessage:
		return domain.DataEvent(frame.Payload)
	case FrameError:
		return domain.ErrorEvent(errors.New(frame.Error))
	case "":
		return domain.DataEvent(append(json.RawMessage(nil), line...))
	default:
		return domain.ErrorEvent(fmt.Errorf("unknown frame type %q", frame.Type))
	}
}

// ExecSpawner implements domain.WorkerSpawner with os/exec and NDJSON over stdio.
type ExecSpawner struct {
	logger    *zap.Logger
	queueSize int
}

// NewExecSpawner creates a spawner.
func NewExecSpawner(logger *zap.Logger) *ExecSpawner {
	return &ExecSpawner{logger: logger, queueSize: defaultSendQueue}
}

// Spawn starts the worker process. The context only bounds the start itself;
// workers are never killed when it is cancelled, they are asked to exit.
func (s *ExecSpawner) Spawn(ctx context.Context, spec domain.WorkerSpec, notify func(domain.WorkerEvent)) (domain.WorkerHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if spec.Command == "" {
		return nil, fmt.Errorf("no command configured for %s", spec.Kind)
	}

	cmd := exec.Command(spec.Command, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = append(os.Environ(), spec.Env...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", spec.Kind, err)
	}

	h := &execHandle{
		id:     uuid.NewString(),
		kind:   spec.Kind,
		cmd:    cmd,
		queue:  make(chan []byte, s.queueSize),
		logger: s.logger.With(zap.String("kind", string(spec.Kind)), zap.Int("pid", cmd.Process.Pid)),
	}
	h.logger.Info("worker started", zap.String("handle", h.id), zap.String("command", spec.Command))

	go h.writeLoop(stdin)
	go h.run(stdout, stderr, notify)

	return h, nil
}

type execHandle struct {
	id     string
	kind   domain.WorkerKind
	cmd    *exec.Cmd
	logger *zap.Logger

	mu     sync.Mutex
	queue  chan []byte
	closed bool
}

func (h *execHandle) ID() string { return h.id }

func (h *execHandle) PID() int { return h.cmd.Process.Pid }

// Send queues a message frame; the writer goroutine delivers it.
func (h *execHandle) Send(payload any) error {
	line, err := EncodeMessageFrame(payload)
	if err != nil {
		return err
	}
	line = append(line, '\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrWorkerGone
	}
	select {
	case h.queue <- line:
		return nil
	default:
		return ErrSendQueueFull
	}
}

func (h *execHandle) closeQueue() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.closed {
		h.closed = true
		close(h.queue)
	}
}

func (h *execHandle) writeLoop(stdin io.WriteCloser) {
	defer stdin.Close()
	for line := range h.queue {
		if _, err := stdin.Write(line); err != nil {
			h.logger.Debug("worker stdin closed", zap.Error(err))
			// Keep draining so Send never blocks on a dead pipe
			for range h.queue {
			}
			return
		}
	}
}

// run relays stdout frames in order, then reports the exit.
func (h *execHandle) run(stdout, stderr io.Reader, notify func(domain.WorkerEvent)) {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		h.relayStderr(stderr)
	}()

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), maxFrameSize)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		notify(domain.WorkerEvent{Kind: h.kind, HandleID: h.id, Event: decodeFrame(line)})
	}
	if err := scanner.Err(); err != nil {
		notify(domain.WorkerEvent{Kind: h.kind, HandleID: h.id, Event: domain.ErrorEvent(fmt.Errorf("read worker output: %w", err))})
		_, _ = io.Copy(io.Discard, stdout)
	}

	wg.Wait()
	waitErr := h.cmd.Wait()
	h.closeQueue()

	code := h.cmd.ProcessState.ExitCode()
	crashed := waitErr != nil
	if crashed {
		h.logger.Warn("worker exited abnormally", zap.Int("code", code), zap.Error(waitErr))
	} else {
		h.logger.Info("worker exited")
	}
	notify(domain.WorkerEvent{Kind: h.kind, HandleID: h.id, Event: domain.ExitedEvent(code), Crashed: crashed})
}

func (h *execHandle) relayStderr(stderr io.Reader) {
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 0, 4096), maxFrameSize)
	for scanner.Scan() {
		h.logger.Debug("worker stderr", zap.String("line", scanner.Text()))
	}
	_, _ = io.Copy(io.Discard, stderr)
}

// Ensure ExecSpawner implements domain.WorkerSpawner.
var _ domain.WorkerSpawner = (*ExecSpawner)(nil)

package infra

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/racingplus/client/internal/domain"
)

const helperEnv = "RACINGPLUS_WANT_HELPER_PROCESS"

// TestHelperProcess is not a real test. It is re-executed as a worker process
// by the tests below.
func TestHelperProcess(t *testing.T) {
	if os.Getenv(helperEnv) != "1" {
		return
	}

	out := json.NewEncoder(os.Stdout)
	switch os.Getenv("HELPER_MODE") {
	case "burst":
		for i := 0; i < 50; i++ {
			_ = out.Encode(WorkerFrame{Type: FrameMessage, Payload: json.RawMessage(fmt.Sprintf("%d", i))})
		}
		os.Exit(0)
	case "crash":
		fmt.Fprintln(os.Stderr, "about to fail")
		_ = out.Encode(WorkerFrame{Type: FrameError, Error: "boom"})
		os.Exit(3)
	case "echo":
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			var frame WorkerFrame
			if err := json.Unmarshal(scanner.Bytes(), &frame); err != nil {
				os.Exit(2)
			}
			if string(frame.Payload) == `"exit"` {
				os.Exit(0)
			}
			_ = out.Encode(frame)
		}
		os.Exit(0)
	}
	os.Exit(1)
}

func helperSpec(mode string) domain.WorkerSpec {
	return domain.WorkerSpec{
		Kind:    domain.KindLogWatcher,
		Command: os.Args[0],
		Args:    []string{"-test.run=TestHelperProcess"},
		Env:     []string{helperEnv + "=1", "HELPER_MODE=" + mode},
	}
}

type eventCollector struct {
	ch chan domain.WorkerEvent
}

func newEventCollector() *eventCollector {
	return &eventCollector{ch: make(chan domain.WorkerEvent, 256)}
}

func (c *eventCollector) notify(ev domain.WorkerEvent) {
	c.ch <- ev
}

// untilExit gathers events up to and including the exit event.
func (c *eventCollector) untilExit(t *testing.T) []domain.WorkerEvent {
	t.Helper()
	var events []domain.WorkerEvent
	timeout := time.After(10 * time.Second)
	for {
		select {
		case ev := <-c.ch:
			events = append(events, ev)
			if ev.Event.Type == domain.EventExited {
				return events
			}
		case <-timeout:
			t.Fatalf("worker did not exit, got %d events", len(events))
			return nil
		}
	}
}

func TestExecSpawner_PreservesOrderAndExitsLast(t *testing.T) {
	collector := newEventCollector()
	handle, err := NewExecSpawner(zap.NewNop()).Spawn(context.Background(), helperSpec("burst"), collector.notify)
	require.NoError(t, err)
	assert.NotEmpty(t, handle.ID())
	assert.Greater(t, handle.PID(), 0)

	events := collector.untilExit(t)
	require.Len(t, events, 51)

	for i, ev := range events[:50] {
		assert.Equal(t, domain.EventData, ev.Event.Type)
		assert.Equal(t, fmt.Sprintf("%d", i), string(ev.Event.Data))
		assert.Equal(t, handle.ID(), ev.HandleID)
		assert.Equal(t, domain.KindLogWatcher, ev.Kind)
	}

	exit := events[50]
	assert.Equal(t, domain.EventExited, exit.Event.Type)
	assert.False(t, exit.Crashed)
	assert.Equal(t, 0, exit.Event.Code)
}

func TestExecSpawner_SendDeliversFramesInOrder(t *testing.T) {
	collector := newEventCollector()
	handle, err := NewExecSpawner(zap.NewNop()).Spawn(context.Background(), helperSpec("echo"), collector.notify)
	require.NoError(t, err)

	require.NoError(t, handle.Send("/logs/game.log"))
	require.NoError(t, handle.Send(domain.LaunchRequest{ModsDir: "/mods", Force: true}))
	require.NoError(t, handle.Send("exit"))

	events := collector.untilExit(t)
	require.Len(t, events, 3)
	assert.JSONEq(t, `"/logs/game.log"`, string(events[0].Event.Data))
	assert.JSONEq(t, `{"modsDir":"/mods","force":true}`, string(events[1].Event.Data))
	assert.False(t, events[2].Crashed)

	assert.ErrorIs(t, handle.Send("late"), ErrWorkerGone)
}

func TestExecSpawner_WorkerErrorThenCrash(t *testing.T) {
	collector := newEventCollector()
	_, err := NewExecSpawner(zap.NewNop()).Spawn(context.Background(), helperSpec("crash"), collector.notify)
	require.NoError(t, err)

	events := collector.untilExit(t)
	require.Len(t, events, 2)

	assert.Equal(t, domain.EventError, events[0].Event.Type)
	assert.Equal(t, "boom", events[0].Event.Cause)

	assert.Equal(t, domain.EventExited, events[1].Event.Type)
	assert.True(t, events[1].Crashed)
	assert.Equal(t, 3, events[1].Event.Code)
}

func TestExecSpawner_SpawnFailure(t *testing.T) {
	spec := domain.WorkerSpec{Kind: domain.KindAuthHelper, Command: "/nonexistent/racingplus-worker"}
	_, err := NewExecSpawner(zap.NewNop()).Spawn(context.Background(), spec, func(domain.WorkerEvent) {
		t.Errorf("no events expected from a worker that never started")
	})
	assert.Error(t, err)
}

func TestExecSpawner_EmptyCommand(t *testing.T) {
	_, err := NewExecSpawner(zap.NewNop()).Spawn(context.Background(), domain.WorkerSpec{Kind: domain.KindLauncher}, nil)
	assert.Error(t, err)
}

func TestDecodeFrame(t *testing.T) {
	ev := decodeFrame([]byte(`{"type":"message","payload":{"a":1}}`))
	assert.Equal(t, domain.EventData, ev.Type)
	assert.JSONEq(t, `{"a":1}`, string(ev.Data))

	ev = decodeFrame([]byte(`{"type":"error","error":"steam is not running"}`))
	assert.Equal(t, domain.EventError, ev.Type)
	assert.Equal(t, "steam is not running", ev.Cause)

	for _, line := range []string{`"exited"`, `42`, `["a",1]`, `{"type":7}`} {
		ev = decodeFrame([]byte(line))
		assert.Equal(t, domain.EventData, ev.Type, line)
		assert.JSONEq(t, line, string(ev.Data), line)
	}

	ev = decodeFrame([]byte(`{"loggedIn":true}`))
	assert.Equal(t, domain.EventData, ev.Type)
	assert.JSONEq(t, `{"loggedIn":true}`, string(ev.Data))

	ev = decodeFrame([]byte(`{"type":"ping"}`))
	assert.Equal(t, domain.EventError, ev.Type)

	ev = decodeFrame([]byte(`not json`))
	assert.Equal(t, domain.EventError, ev.Type)
	assert.Contains(t, ev.Cause, "malformed frame")
}

func TestEncodeMessageFrame(t *testing.T) {
	line, err := EncodeMessageFrame("exit")
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"message","payload":"exit"}`, string(line))

	line, err = EncodeMessageFrame(json.RawMessage(`{"force":false}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"message","payload":{"force":false}}`, string(line))
}

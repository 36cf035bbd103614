package instance

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/racingplus/client/internal/domain"
	"github.com/racingplus/client/internal/infra"
)

type countingNotifier struct {
	calls   int
	entries []domain.InstanceEntry
}

func (n *countingNotifier) RequestFocus(_ context.Context, entry domain.InstanceEntry) error {
	n.calls++
	n.entries = append(n.entries, entry)
	return nil
}

type fakeProcs struct {
	running bool
	pid     int
}

func (p fakeProcs) IsRunning(int) bool       { return p.running }
func (p fakeProcs) Name(int) (string, error) { return "racingplus", nil }
func (p fakeProcs) GetCurrentPID() int       { return p.pid }

func newGuard(t *testing.T, dir string, notifier FocusNotifier, opts Options) (*Guard, *infra.FileInstanceRegistry) {
	t.Helper()
	registry := infra.NewFileInstanceRegistry(filepath.Join(dir, "instance.json"))
	opts.LockPath = filepath.Join(dir, "racingplus.lock")
	return NewGuard(registry, notifier, fakeProcs{running: true, pid: 4242}, opts, zap.NewNop()), registry
}

func TestClaim_PrimaryRegisters(t *testing.T) {
	dir := t.TempDir()
	guard, registry := newGuard(t, dir, &countingNotifier{}, Options{ControlURL: "http://127.0.0.1:47831", AppVersion: "1.2.3"})

	outcome, err := guard.Claim(context.Background())
	require.NoError(t, err)
	defer guard.Release()

	assert.Equal(t, OutcomePrimary, outcome)
	assert.True(t, guard.Held())

	entry, err := registry.Get()
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "http://127.0.0.1:47831", entry.ControlURL)
	assert.Equal(t, "1.2.3", entry.AppVersion)
	assert.Equal(t, 4242, entry.PID)
}

func TestClaim_SecondLaunchRedirectsOnce(t *testing.T) {
	dir := t.TempDir()
	primary, _ := newGuard(t, dir, &countingNotifier{}, Options{ControlURL: "http://127.0.0.1:47831"})
	_, err := primary.Claim(context.Background())
	require.NoError(t, err)
	defer primary.Release()

	notifier := &countingNotifier{}
	second, _ := newGuard(t, dir, notifier, Options{})
	outcome, err := second.Claim(context.Background())
	require.NoError(t, err)

	assert.Equal(t, OutcomeRedirected, outcome)
	assert.False(t, second.Held())
	assert.Equal(t, 1, notifier.calls)
	assert.Equal(t, "http://127.0.0.1:47831", notifier.entries[0].ControlURL)
}

func TestClaim_WaitForLockAfterRelease(t *testing.T) {
	dir := t.TempDir()
	primary, _ := newGuard(t, dir, &countingNotifier{}, Options{})
	_, err := primary.Claim(context.Background())
	require.NoError(t, err)

	go func() {
		time.Sleep(150 * time.Millisecond)
		primary.Release()
	}()

	notifier := &countingNotifier{}
	relaunched, _ := newGuard(t, dir, notifier, Options{WaitForLock: true, WaitTimeout: 5 * time.Second, RetryDelay: 20 * time.Millisecond})
	outcome, err := relaunched.Claim(context.Background())
	require.NoError(t, err)
	defer relaunched.Release()

	assert.Equal(t, OutcomePrimary, outcome)
	assert.Zero(t, notifier.calls)
}

func TestClaim_WaitForLockTimesOut(t *testing.T) {
	dir := t.TempDir()
	primary, _ := newGuard(t, dir, &countingNotifier{}, Options{ControlURL: "http://127.0.0.1:1"})
	_, err := primary.Claim(context.Background())
	require.NoError(t, err)
	defer primary.Release()

	notifier := &countingNotifier{}
	waiter, _ := newGuard(t, dir, notifier, Options{WaitForLock: true, WaitTimeout: 100 * time.Millisecond, RetryDelay: 20 * time.Millisecond})
	outcome, err := waiter.Claim(context.Background())
	require.NoError(t, err)

	assert.Equal(t, OutcomeRedirected, outcome)
	assert.Equal(t, 1, notifier.calls)
}

func TestRelease_ClearsRegistryAndIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	guard, registry := newGuard(t, dir, &countingNotifier{}, Options{})
	_, err := guard.Claim(context.Background())
	require.NoError(t, err)

	guard.Release()
	guard.Release()

	entry, err := registry.Get()
	require.NoError(t, err)
	assert.Nil(t, entry)

	again, _ := newGuard(t, dir, &countingNotifier{}, Options{})
	outcome, err := again.Claim(context.Background())
	require.NoError(t, err)
	defer again.Release()
	assert.Equal(t, OutcomePrimary, outcome)
}

func TestHTTPFocusNotifier(t *testing.T) {
	var hits atomic.Int32
	var got FocusRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, FocusPath, r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		hits.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	notifier := NewHTTPFocusNotifier([]string{"--dev"}, zap.NewNop())
	err := notifier.RequestFocus(context.Background(), domain.InstanceEntry{PID: 42, ControlURL: srv.URL + "/"})
	require.NoError(t, err)

	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, []string{"--dev"}, got.Args)
	assert.NotZero(t, got.PID)
}

func TestHTTPFocusNotifier_NoControlURL(t *testing.T) {
	notifier := NewHTTPFocusNotifier(nil, zap.NewNop())
	assert.Error(t, notifier.RequestFocus(context.Background(), domain.InstanceEntry{PID: 42}))
}

func TestHTTPFocusNotifier_RejectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	notifier := NewHTTPFocusNotifier(nil, zap.NewNop())
	assert.Error(t, notifier.RequestFocus(context.Background(), domain.InstanceEntry{PID: 42, ControlURL: srv.URL}))
}

func TestHTTPFocusNotifier_ServerErrorNotRepeated(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	notifier := NewHTTPFocusNotifier(nil, zap.NewNop())
	err := notifier.RequestFocus(context.Background(), domain.InstanceEntry{PID: 42, ControlURL: srv.URL})
	assert.Error(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestSetControlURL_RerecordsPrimary(t *testing.T) {
	dir := t.TempDir()
	guard, registry := newGuard(t, dir, &countingNotifier{}, Options{})
	_, err := guard.Claim(context.Background())
	require.NoError(t, err)
	defer guard.Release()

	guard.SetControlURL("http://127.0.0.1:50000")

	entry, err := registry.Get()
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:50000", entry.ControlURL)
}

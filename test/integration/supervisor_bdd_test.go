//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/racingplus/client/internal/domain"
	"github.com/racingplus/client/internal/infra"
	"github.com/racingplus/client/internal/supervisor"
	"github.com/racingplus/client/test/fixtures"
)

type routed struct {
	source domain.Source
	event  domain.Event
}

// recorder collects outbound notifications. Route runs on the loop goroutine.
type recorder struct {
	mu     sync.Mutex
	events []routed
}

func (r *recorder) Route(source domain.Source, ev domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, routed{source, ev})
}

func (r *recorder) from(source domain.Source) []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Event
	for _, e := range r.events {
		if e.source == source {
			out = append(out, e.event)
		}
	}
	return out
}

func (r *recorder) exited(source domain.Source) bool {
	for _, ev := range r.from(source) {
		if ev.Type == domain.EventExited {
			return true
		}
	}
	return false
}

// harness runs a supervisor on its own loop goroutine, like the coordinator.
type harness struct {
	sup    *supervisor.Supervisor
	out    *recorder
	events chan domain.WorkerEvent
	calls  chan func()
	stop   chan struct{}
}

func newHarness(specs map[domain.WorkerKind]domain.WorkerSpec) *harness {
	h := &harness{
		out:    &recorder{},
		events: make(chan domain.WorkerEvent, 256),
		calls:  make(chan func()),
		stop:   make(chan struct{}),
	}
	logger := zap.NewNop()
	h.sup = supervisor.New(infra.NewExecSpawner(logger), h.out, supervisor.Options{
		Specs:  specs,
		Notify: func(ev domain.WorkerEvent) { h.events <- ev },
	}, logger)

	go func() {
		for {
			select {
			case <-h.stop:
				return
			case ev := <-h.events:
				h.sup.HandleEvent(ev)
			case fn := <-h.calls:
				fn()
			}
		}
	}()
	return h
}

// do runs fn on the loop and waits for it.
func (h *harness) do(fn func()) {
	done := make(chan struct{})
	h.calls <- func() {
		fn()
		close(done)
	}
	<-done
}

func (h *harness) start(kind domain.WorkerKind, init any) supervisor.StartResult {
	var res supervisor.StartResult
	var err error
	h.do(func() { res, err = h.sup.Start(context.Background(), kind, init) })
	Expect(err).NotTo(HaveOccurred())
	return res
}

func (h *harness) state(kind domain.WorkerKind) domain.WorkerState {
	var st domain.WorkerState
	h.do(func() { st = h.sup.State(kind) })
	return st
}

var _ = Describe("Supervisor with real worker processes", func() {
	var h *harness

	AfterEach(func() {
		if h != nil {
			h.do(func() { h.sup.ShutdownAll() })
			close(h.stop)
		}
	})

	Context("when a worker writes a burst of messages and exits", func() {
		It("relays every message in order before the exit notice", func() {
			h = newHarness(map[domain.WorkerKind]domain.WorkerSpec{
				domain.KindLogWatcher: fixtures.BurstSpec(domain.KindLogWatcher, fakeWorker, 200),
			})
			h.start(domain.KindLogWatcher, nil)

			Eventually(func() bool { return h.out.exited(domain.SourceLogWatcher) }, "10s").Should(BeTrue())

			events := h.out.from(domain.SourceLogWatcher)
			Expect(events).To(HaveLen(201))
			for i := 0; i < 200; i++ {
				Expect(events[i].Type).To(Equal(domain.EventData))
				var n int
				Expect(json.Unmarshal(events[i].Data, &n)).To(Succeed())
				Expect(n).To(Equal(i))
			}
			Expect(events[200].Type).To(Equal(domain.EventExited))
			Expect(h.state(domain.KindLogWatcher)).To(Equal(domain.StateAbsent))
		})
	})

	Context("when the auth helper is started and asked to exit", func() {
		It("echoes the first message and exits cleanly on the exit message", func() {
			h = newHarness(map[domain.WorkerKind]domain.WorkerSpec{
				domain.KindAuthHelper: fixtures.WorkerSpec(domain.KindAuthHelper, fakeWorker, fixtures.ModeEcho),
			})
			h.start(domain.KindAuthHelper, map[string]string{"hello": "steam"})

			Eventually(func() []domain.Event { return h.out.from(domain.SourceAuthHelper) }, "10s").Should(HaveLen(1))
			Expect(h.state(domain.KindAuthHelper)).To(Equal(domain.StateRunning))
			Expect(string(h.out.from(domain.SourceAuthHelper)[0].Data)).To(MatchJSON(`{"hello":"steam"}`))

			var signalled int
			h.do(func() { signalled = h.sup.ShutdownAll() })
			Expect(signalled).To(Equal(1))

			Eventually(func() bool { return h.out.exited(domain.SourceAuthHelper) }, "10s").Should(BeTrue())
			var last domain.WorkerState
			h.do(func() { last, _ = h.sup.LastExit(domain.KindAuthHelper) })
			Expect(last).To(Equal(domain.StateExited))
		})

		It("ignores a second start while the first is running", func() {
			h = newHarness(map[domain.WorkerKind]domain.WorkerSpec{
				domain.KindAuthHelper: fixtures.WorkerSpec(domain.KindAuthHelper, fakeWorker, fixtures.ModeEcho),
			})
			first := h.start(domain.KindAuthHelper, nil)
			second := h.start(domain.KindAuthHelper, nil)

			Expect(first.Skipped).To(BeFalse())
			Expect(second.Skipped).To(BeTrue())
		})
	})

	Context("when a worker fails", func() {
		It("forwards the error and records an errored exit", func() {
			h = newHarness(map[domain.WorkerKind]domain.WorkerSpec{
				domain.KindAuthHelper: fixtures.WorkerSpec(domain.KindAuthHelper, fakeWorker, fixtures.ModeFail),
			})
			h.start(domain.KindAuthHelper, nil)

			Eventually(func() bool { return h.out.exited(domain.SourceAuthHelper) }, "10s").Should(BeTrue())
			events := h.out.from(domain.SourceAuthHelper)
			Expect(events[0].Type).To(Equal(domain.EventError))
			Expect(events[0].Cause).To(Equal("steam is not running"))
			Expect(events[len(events)-1].Code).To(Equal(2))

			var last domain.WorkerState
			h.do(func() { last, _ = h.sup.LastExit(domain.KindAuthHelper) })
			Expect(last).To(Equal(domain.StateErrored))
		})
	})

	Context("when the launcher is started twice", func() {
		It("tracks the newest launcher and still forwards the old one's exit", func() {
			h = newHarness(map[domain.WorkerKind]domain.WorkerSpec{
				domain.KindLauncher: fixtures.WorkerSpec(domain.KindLauncher, fakeWorker, fixtures.ModeEcho),
			})
			first := h.start(domain.KindLauncher, domain.LaunchRequest{ModsDir: "/mods"})
			second := h.start(domain.KindLauncher, domain.LaunchRequest{ModsDir: "/mods", Force: true})

			Expect(second.Superseded).To(Equal(first.HandleID))
			var tracked string
			h.do(func() { tracked, _ = h.sup.Tracked(domain.KindLauncher) })
			Expect(tracked).To(Equal(second.HandleID))

			var signalled int
			h.do(func() { signalled = h.sup.ShutdownAll() })
			Expect(signalled).To(Equal(1))
		})
	})
})

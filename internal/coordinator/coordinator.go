// Package coordinator wires the components together and runs the event loop.
//
// Every inbound UI command, worker notification, update status and
// second-instance request is handled one at a time on a single goroutine,
// so the components it drives need no locking of their own.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/racingplus/client/internal/config"
	"github.com/racingplus/client/internal/domain"
	"github.com/racingplus/client/internal/hotkey"
	"github.com/racingplus/client/internal/infra"
	"github.com/racingplus/client/internal/instance"
	"github.com/racingplus/client/internal/router"
	"github.com/racingplus/client/internal/shell"
	"github.com/racingplus/client/internal/supervisor"
	"github.com/racingplus/client/internal/window"
)

// ErrAnotherInstance is returned by Run when a running instance was asked to
// focus instead. The caller should exit cleanly.
var ErrAnotherInstance = errors.New("another instance is already running")

const eventBuffer = 256

// Options configures a Coordinator. Zero-valued collaborators get their
// production implementations.
type Options struct {
	Config  *config.Config
	Version string
	// Args are the command-line arguments without argv[0].
	Args []string

	Spawner  domain.WorkerSpawner
	Runner   infra.CommandRunner
	Files    infra.FileChecker
	Reporter domain.ErrorReporter
	Releases infra.ReleaseSource
	GOOS     string
}

type eventKind int

const (
	eventInbound eventKind = iota
	eventWorker
	eventUpdate
)

type loopEvent struct {
	kind    eventKind
	message domain.Message
	worker  domain.WorkerEvent
	update  infra.UpdateNotice
}

// Coordinator owns the loop and every component it drives.
type Coordinator struct {
	cfg    *config.Config
	opts   Options
	logger *zap.Logger

	events   chan loopEvent
	quit     chan struct{}
	quitOnce sync.Once
	done     chan struct{}
	ready    chan struct{}

	hub        *shell.Hub
	server     *shell.Server
	out        *router.Outbound
	supervisor *supervisor.Supervisor
	windows    *window.Manager
	hotkeys    *hotkey.Dispatcher
	router     *router.Router
	updater    *infra.Updater
	app        *infra.AppController
	settings   *infra.FileSettingsStore
	reporter   domain.ErrorReporter
}

// New builds the component graph. Nothing runs until Run.
func New(opts Options, logger *zap.Logger) (*Coordinator, error) {
	cfg := opts.Config
	if cfg == nil || cfg.Launch == nil {
		return nil, errors.New("coordinator requires a loaded config")
	}
	if opts.GOOS == "" {
		opts.GOOS = runtime.GOOS
	}
	if opts.Spawner == nil {
		opts.Spawner = infra.NewExecSpawner(logger.Named("worker"))
	}
	if opts.Runner == nil {
		opts.Runner = infra.NewCommandRunner(logger.Named("helper"))
	}
	if opts.Files == nil {
		opts.Files = &infra.RealFileChecker{}
	}
	if opts.Reporter == nil {
		opts.Reporter = infra.NewLogReporter(logger)
	}
	if opts.Releases == nil {
		opts.Releases = infra.NewReleaseClient(cfg.Update.Owner, cfg.Update.Repo, cfg.Update.BinaryName, logger.Named("release"))
	}

	c := &Coordinator{
		cfg:      cfg,
		opts:     opts,
		logger:   logger,
		events:   make(chan loopEvent, eventBuffer),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		ready:    make(chan struct{}),
		reporter: opts.Reporter,
	}

	c.hub = shell.NewHub(c.postInbound, logger)
	c.server = shell.NewServer(cfg.Shell.Listen, c.hub, logger)
	c.out = router.NewOutbound(c.hub, logger)
	c.settings = infra.NewFileSettingsStore(cfg.Paths.SettingsFile)
	c.app = infra.NewAppController(c.requestQuit, opts.Args, logger.Named("app"))

	specs := make(map[domain.WorkerKind]domain.WorkerSpec, len(domain.AllWorkerKinds))
	for _, kind := range domain.AllWorkerKinds {
		specs[kind] = cfg.WorkerSpec(kind)
	}
	c.supervisor = supervisor.New(opts.Spawner, c.out, supervisor.Options{
		Specs:    specs,
		Policies: cfg.Policies(),
		Notify:   c.postWorker,
	}, logger)

	c.windows = window.NewManager(c.hub, c.settings, c.app, c.out, window.Options{
		Development: cfg.IsDev(),
		GOOS:        opts.GOOS,
		Icon:        cfg.Launch.Resolve("assets/img/favicon.png"),
	}, logger)

	platform := hotkey.ResolvePlatform(opts.GOOS, cfg.Launch.Root, opts.Runner, opts.Files, logger)
	c.hotkeys = hotkey.NewDispatcher(hotkey.DefaultBindings(), shell.NewShortcutRegistrar(c.hub),
		platform, c.settings, c.windows, c.out, logger)

	c.updater = infra.NewUpdater(opts.Releases, opts.Version, cfg.Launch.ExecutablePath, cfg.Paths.PendingUpdate, logger.Named("updater"))

	c.router = router.New(router.Deps{
		Windows:   c.windows,
		Workers:   c.supervisor,
		Hotkeys:   c.hotkeys,
		Focus:     platform,
		Installer: c.updater,
		App:       c.app,
		Out:       c.out,
	}, logger)

	return c, nil
}

// Ready is closed once the window was requested and the loop is running.
func (c *Coordinator) Ready() <-chan struct{} {
	return c.ready
}

// ControlURL returns the bound control server address.
func (c *Coordinator) ControlURL() string {
	return c.server.URL()
}

// Run claims the single instance, starts the control server and shell,
// creates the window and runs the loop until quit or ctx is cancelled.
func (c *Coordinator) Run(ctx context.Context, waitForLock bool) error {
	listenErr := c.server.Listen()

	guard, err := c.claim(ctx, waitForLock)
	if err != nil {
		c.server.Close()
		return err
	}
	if guard != nil {
		defer guard.Release()
	}
	if listenErr != nil {
		// The previous instance may have held the port until it released the lock
		if err := c.server.Listen(); err != nil {
			return err
		}
		if guard != nil {
			guard.SetControlURL(c.server.URL())
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		return c.server.Serve(gctx)
	})

	if err := c.startup(gctx); err != nil {
		cancel()
		_ = g.Wait()
		return err
	}

	g.Go(func() error {
		defer cancel()
		c.loop(gctx)
		return nil
	})

	err = g.Wait()
	c.logger.Info("coordinator stopped")
	return err
}

func (c *Coordinator) claim(ctx context.Context, waitForLock bool) (*instance.Guard, error) {
	if !c.cfg.SingleInstance.Enabled {
		return nil, nil
	}

	registry := infra.NewFileInstanceRegistry(c.cfg.Paths.RegistryFile)
	notifier := instance.NewHTTPFocusNotifier(c.opts.Args, c.logger)
	guard := instance.NewGuard(registry, notifier, infra.NewProcessManager(), instance.Options{
		LockPath:    c.cfg.Paths.LockFile,
		ControlURL:  c.server.URL(),
		AppVersion:  c.opts.Version,
		WaitForLock: waitForLock,
		WaitTimeout: time.Duration(c.cfg.SingleInstance.WaitTimeoutSeconds) * time.Second,
	}, c.logger)

	outcome, err := guard.Claim(ctx)
	if err != nil {
		return nil, err
	}
	if outcome == instance.OutcomeRedirected {
		return nil, ErrAnotherInstance
	}
	return guard, nil
}

func (c *Coordinator) startup(ctx context.Context) error {
	c.logger.Info("coordinator starting",
		zap.String("mode", c.cfg.Launch.Mode.String()),
		zap.String("root", c.cfg.Launch.Root),
		zap.String("version", c.opts.Version),
		zap.String("control", c.server.URL()))

	if err := c.windows.Create(); err != nil {
		return fmt.Errorf("create window: %w", err)
	}

	if c.cfg.Shell.Command != "" {
		_, err := shell.Launch(shell.Process{
			Command: c.cfg.Shell.Command,
			Args:    c.cfg.Shell.Args,
			Dir:     c.cfg.Launch.Root,
		}, c.server.WebSocketURL(), func(error) { c.requestQuit() }, c.logger.Named("shell"))
		if err != nil {
			return err
		}
	}

	if c.cfg.Hotkeys.Enabled {
		c.hotkeys.RegisterAll()
	}

	if c.cfg.Update.Enabled && !c.cfg.IsDev() {
		go func() {
			if err := c.updater.Check(ctx, c.postUpdate); err != nil {
				c.logger.Warn("update check failed", zap.Error(err))
			}
		}()
	}
	return nil
}

func (c *Coordinator) loop(ctx context.Context) {
	defer close(c.done)
	close(c.ready)

	for {
		select {
		case <-ctx.Done():
			c.shutdown()
			return
		case <-c.quit:
			c.shutdown()
			return
		case ev := <-c.events:
			c.dispatch(ctx, ev)
		}
	}
}

// dispatch handles one event. A panic is reported and the loop keeps going.
func (c *Coordinator) dispatch(ctx context.Context, ev loopEvent) {
	defer func() {
		if r := recover(); r != nil {
			c.reporter.Capture(fmt.Errorf("panic: %v", r), "coordinator loop")
		}
	}()

	switch ev.kind {
	case eventInbound:
		c.router.RouteInbound(ctx, ev.message)
	case eventWorker:
		c.supervisor.HandleEvent(ev.worker)
	case eventUpdate:
		c.handleUpdate(ev.update)
	}
}

func (c *Coordinator) handleUpdate(n infra.UpdateNotice) {
	if n.Status == infra.UpdateError {
		c.out.Fail(router.TagAutoUpdater, n.Err)
		return
	}
	c.out.Notify(router.TagAutoUpdater, string(n.Status))
}

// shutdown runs on the loop. Workers are asked to exit but not awaited.
func (c *Coordinator) shutdown() {
	c.logger.Info("shutting down")
	signalled := c.supervisor.ShutdownAll()
	c.hotkeys.UnregisterAll()
	c.windows.Close()
	c.logger.Info("shutdown complete", zap.Int("workers_signalled", signalled))
}

func (c *Coordinator) requestQuit() {
	c.quitOnce.Do(func() { close(c.quit) })
}

func (c *Coordinator) post(ev loopEvent) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

func (c *Coordinator) postInbound(msg domain.Message) {
	c.post(loopEvent{kind: eventInbound, message: msg})
}

func (c *Coordinator) postWorker(ev domain.WorkerEvent) {
	c.post(loopEvent{kind: eventWorker, worker: ev})
}

func (c *Coordinator) postUpdate(n infra.UpdateNotice) {
	c.post(loopEvent{kind: eventUpdate, update: n})
}

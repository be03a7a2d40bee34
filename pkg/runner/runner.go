package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bft-labs/webrun/pkg/lifecycle"
	"github.com/bft-labs/webrun/pkg/log"
	"github.com/bft-labs/webrun/pkg/probe"
	"github.com/bft-labs/webrun/pkg/server"
	"github.com/bft-labs/webrun/pkg/tracker"
	"github.com/bft-labs/webrun/pkg/webapp"
)

// Components the runner exposes to the web application, subject to the
// unit's server classes.
const (
	ComponentHealth    = "webrun.health"
	ComponentMetrics   = "webrun.metrics"
	ComponentWebSocket = "webrun.websocket"
)

// Routes of the runner-provided components, relative to the context path.
const (
	HealthPath  = "/healthz"
	MetricsPath = "/metrics"
)

// TempDirPrefix names the per-instance working directory.
const TempDirPrefix = "webrun-app-"

// Runner bootstraps the web application server and coordinates its
// shutdown. Use New() to create an instance, then Run() or Start().
type Runner struct {
	cfg      Config
	opts     options
	logger   log.Logger
	registry *lifecycle.Registry

	mu          sync.Mutex
	started     bool
	unit        webapp.Unit
	server      *server.Server
	tracker     *tracker.Tracker
	container   probe.Container
	coordinator *lifecycle.Coordinator
	tempDir     string

	cleanup sync.Once
}

// New creates a runner. cfg is validated; listeners given with WithListener
// are registered. Returns a *ConfigurationError if either fails.
func New(cfg Config, opts ...Option) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	reg := o.registry
	if reg == nil {
		reg = lifecycle.NewRegistry()
	}
	for _, nl := range o.listeners {
		if err := reg.Register(nl.name, nl.listener); err != nil {
			return nil, &ConfigurationError{Op: "register listener " + nl.name, Err: err}
		}
	}
	if err := validateModuleVersions(reg.Listeners()); err != nil {
		return nil, &ConfigurationError{Op: "module versions", Err: err}
	}

	if cfg.Metrics && o.metrics == nil {
		o.metrics = prometheus.NewRegistry()
		o.metrics.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	return &Runner{
		cfg:      cfg,
		opts:     o,
		logger:   o.logger,
		registry: reg,
	}, nil
}

// Config returns the validated configuration.
func (r *Runner) Config() Config { return r.cfg }

// Registry returns the plugin registry. It is frozen once Start is called.
func (r *Runner) Registry() *lifecycle.Registry { return r.registry }

// Start builds the web application unit, attaches plugins and the optional
// WebSocket container, and starts the server. It returns once the server
// accepts connections.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return ErrAlreadyStarted
	}
	r.started = true
	begin := time.Now()

	tempDir, err := webapp.CreateTempDir(TempDirPrefix, r.cfg.Port)
	if err != nil {
		return &StartupError{Addr: r.cfg.Address(), Err: err}
	}
	r.tempDir = tempDir

	if err := r.start(ctx, begin); err != nil {
		r.removeTempDir()
		return err
	}
	return nil
}

func (r *Runner) start(ctx context.Context, begin time.Time) error {
	unit, err := r.buildUnit()
	if err != nil {
		return err
	}

	srv := server.New(server.Config{
		Host:              r.cfg.Host,
		Port:              r.cfg.Port,
		ReadHeaderTimeout: server.DefaultConfig().ReadHeaderTimeout,
		IdleTimeout:       server.DefaultConfig().IdleTimeout,
		MaxHeaderBytes:    server.DefaultConfig().MaxHeaderBytes,
	}, r.logger)

	r.registry.Freeze()
	for _, nl := range r.registry.Listeners() {
		if err := srv.AddObserver(lifecycle.NewAdapter(nl.Name, nl.Listener, r.logger)); err != nil {
			return &ConfigurationError{Op: "add listener " + nl.Name, Err: err}
		}
		r.logger.Debug("lifecycle listener registered", log.String(log.FieldPlugin, nl.Name))
	}

	var trackerOpts []tracker.Option
	if r.cfg.Metrics {
		trackerOpts = append(trackerOpts, tracker.WithRegisterer(r.opts.metrics))
	}
	t := tracker.New(trackerOpts...)
	srv.SetHandler(t.Wrap(unit))

	if err := r.attachWebSocket(unit, srv); err != nil {
		return err
	}

	if b, ok := unit.(interface{ Build() }); ok {
		b.Build()
	}

	if err := srv.Start(ctx); err != nil {
		return &StartupError{Addr: r.cfg.Address(), Err: err}
	}

	r.unit = unit
	r.server = srv
	r.tracker = t
	r.coordinator = lifecycle.NewCoordinator(srv, t.ActiveCount, r.logger,
		lifecycle.WithShutdownTimeout(r.cfg.ShutdownTimeout),
		lifecycle.WithAdmitter(t),
	)

	r.logger.Info("Server started",
		log.Int64("elapsed_ms", time.Since(begin).Milliseconds()),
		log.Int(log.FieldPort, boundPort(srv.Addr(), r.cfg.Port)),
		log.String("context_path", r.cfg.ContextPath),
	)
	return nil
}

func (r *Runner) buildUnit() (webapp.Unit, error) {
	unit := r.opts.unit
	if unit == nil {
		unit = webapp.NewContext(r.logger)
	}

	unit.SetContextPath(r.cfg.ContextPath)
	if r.cfg.ServerClasses != nil {
		unit.SetServerClasses(r.cfg.ServerClasses)
	}
	unit.SetTempDirectory(r.tempDir)
	unit.SetSecureCookies(r.cfg.UseSecureCookies)
	unit.SetResourceBase(r.cfg.ResourceBase)

	if len(r.opts.routes) > 0 {
		rt, ok := unit.(interface{ Router() chi.Router })
		if !ok {
			return nil, &ConfigurationError{Op: "routes", Err: fmt.Errorf("unit %T has no router", unit)}
		}
		for _, fn := range r.opts.routes {
			fn(rt.Router())
		}
	}

	unit.Expose(ComponentHealth, HealthPath, http.HandlerFunc(r.health))
	if r.cfg.Metrics {
		unit.Expose(ComponentMetrics, MetricsPath,
			promhttp.HandlerFor(r.opts.metrics, promhttp.HandlerOpts{Registry: r.opts.metrics}))
	}
	return unit, nil
}

func (r *Runner) attachWebSocket(unit webapp.Unit, srv *server.Server) error {
	if !r.cfg.WebSocket {
		return nil
	}

	res := probe.Absent()
	if r.opts.probe != nil {
		res = r.opts.probe.Probe()
	}
	if !res.Present() {
		if len(r.opts.endpoints) > 0 {
			r.logger.Warn("websocket support not available, skipping endpoints",
				log.Int("endpoints", len(r.opts.endpoints)),
			)
		}
		return nil
	}
	if !unit.Exposed(ComponentWebSocket) {
		r.logger.Warn("websocket hidden by server classes, skipping endpoints",
			log.String(log.FieldComponent, ComponentWebSocket),
		)
		return nil
	}

	c, err := res.Capability().Attach(unit)
	if err != nil {
		return &ConfigurationError{Op: "attach " + res.Capability().Name(), Err: err}
	}
	for _, ep := range r.opts.endpoints {
		if err := c.AddEndpoint(ep); err != nil {
			return &ConfigurationError{Op: "register endpoint " + ep.Pattern(), Err: err}
		}
	}
	if closer, ok := c.(interface{ CloseAll() }); ok {
		srv.RegisterOnShutdown(closer.CloseAll)
	}
	r.container = c

	r.logger.Info("websocket container attached",
		log.Any("endpoints", c.Endpoints()),
	)
	return nil
}

func (r *Runner) health(w http.ResponseWriter, _ *http.Request) {
	r.mu.Lock()
	t := r.tracker
	r.mu.Unlock()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if t != nil && t.Draining() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = io.WriteString(w, "draining\n")
		return
	}
	_, _ = io.WriteString(w, "ok\n")
}

// Shutdown drains active requests and stops the server. It is a no-op before
// Start and for every call after the first. A *lifecycle.ShutdownError
// terminates the process with ExitFatal.
func (r *Runner) Shutdown(ctx context.Context) error {
	err := r.shutdown(ctx)
	var se *lifecycle.ShutdownError
	if errors.As(err, &se) {
		r.opts.exit(ExitFatal)
	}
	return err
}

func (r *Runner) shutdown(ctx context.Context) error {
	r.mu.Lock()
	c := r.coordinator
	r.mu.Unlock()

	if c == nil {
		return nil
	}
	err := c.Shutdown(ctx)
	<-c.Done()
	r.removeTempDir()
	return err
}

// Run starts the server and blocks until a shutdown trigger fires: one of
// the configured signals, ctx cancellation, or EOF on stdin when
// UseStdInShutdown is set. It then shuts down and exits the process with
// ExitOK, or ExitFatal when startup or shutdown failed.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.Start(ctx); err != nil {
		r.logger.Error("server failed to start", log.Err(err))
		r.opts.exit(ExitFatal)
		return err
	}

	hookCtx := ctx
	if len(r.opts.signals) > 0 {
		var stop context.CancelFunc
		hookCtx, stop = signal.NotifyContext(ctx, r.opts.signals...)
		defer stop()
	}

	var eof <-chan struct{}
	if r.cfg.UseStdInShutdown && r.opts.stdin != nil {
		eof = r.watchStdin()
	}

	select {
	case <-hookCtx.Done():
		r.logger.Info("shutdown requested", log.String("cause", context.Cause(hookCtx).Error()))
	case <-eof:
		r.logger.Info("Shutdown via CTRL-D")
	case <-r.Done():
	}

	err := r.shutdown(context.WithoutCancel(ctx))
	var se *lifecycle.ShutdownError
	if errors.As(err, &se) {
		r.opts.exit(ExitFatal)
		return err
	}
	r.opts.exit(ExitOK)
	return nil
}

// watchStdin closes the returned channel when stdin reaches EOF. Read errors
// other than EOF leave it open.
func (r *Runner) watchStdin() <-chan struct{} {
	eof := make(chan struct{})
	go func() {
		if _, err := io.Copy(io.Discard, r.opts.stdin); err != nil {
			r.logger.Warn("stdin read failed", log.Err(err))
			return
		}
		close(eof)
	}()
	return eof
}

// Done is closed once shutdown has completed. It blocks forever before Start.
func (r *Runner) Done() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.coordinator == nil {
		return nil
	}
	return r.coordinator.Done()
}

// Addr returns the bound listener address, or nil before Start.
func (r *Runner) Addr() net.Addr {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.server == nil {
		return nil
	}
	return r.server.Addr()
}

// Tracker returns the request tracker, or nil before Start.
func (r *Runner) Tracker() *tracker.Tracker {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tracker
}

// Container returns the attached WebSocket container, or nil when the
// capability was absent.
func (r *Runner) Container() probe.Container {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.container
}

// Unit returns the web application unit, or nil before Start.
func (r *Runner) Unit() webapp.Unit {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.unit
}

// TempDirectory returns the instance working directory.
func (r *Runner) TempDirectory() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tempDir
}

func (r *Runner) removeTempDir() {
	r.cleanup.Do(func() {
		if r.tempDir == "" {
			return
		}
		if err := os.RemoveAll(r.tempDir); err != nil {
			r.logger.Warn("failed to remove temp directory",
				log.String("path", r.tempDir),
				log.Err(err),
			)
		}
	})
}

func boundPort(addr net.Addr, fallback int) int {
	if tcp, ok := addr.(*net.TCPAddr); ok {
		return tcp.Port
	}
	return fallback
}

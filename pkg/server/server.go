package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/bft-labs/webrun/pkg/log"
)

// Common server errors.
var (
	ErrAlreadyStarted = errors.New("server: already started")
	ErrNotStarted     = errors.New("server: not started")
	ErrNoHandler      = errors.New("server: no handler set")
)

// Config holds listener and timeout settings.
type Config struct {
	// Host to bind. Empty binds all interfaces.
	Host string

	// Port to bind. Zero picks an ephemeral port.
	Port int

	ReadHeaderTimeout time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
}

// DefaultConfig returns a Config listening on 8080.
func DefaultConfig() Config {
	return Config{
		Port:              8080,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
}

// Address returns the host:port the server binds.
func (c Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Server is an embeddable HTTP server with native lifecycle notifications.
type Server struct {
	cfg    Config
	logger log.Logger

	mu         sync.Mutex
	handler    http.Handler
	observers  []Observer
	onShutdown []func()
	started    bool
	httpServer *http.Server
	listener   net.Listener
	done       chan struct{}
	serveErr   error

	state atomic.Int32
}

// New creates a server in StateStopped.
func New(cfg Config, logger log.Logger) *Server {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Server{cfg: cfg, logger: logger}
}

// SetHandler installs the root handler. It must be called before Start.
func (s *Server) SetHandler(h http.Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = h
}

// AddObserver registers a native lifecycle observer. Observers can only be
// added before Start.
func (s *Server) AddObserver(o Observer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrAlreadyStarted
	}
	s.observers = append(s.observers, o)
	return nil
}

// RegisterOnShutdown registers f to run when Stop begins closing listeners.
// Used to close hijacked connections such as WebSockets.
func (s *Server) RegisterOnShutdown(f func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onShutdown = append(s.onShutdown, f)
	if s.httpServer != nil {
		s.httpServer.RegisterOnShutdown(f)
	}
}

// State returns the current native state.
func (s *Server) State() State {
	return State(s.state.Load())
}

// Addr returns the bound address, or nil before a successful Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Start binds the listener and begins serving in the background.
// Bind errors are returned after observers were notified of the failure.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	if s.handler == nil {
		s.mu.Unlock()
		return ErrNoHandler
	}
	s.started = true
	handler := s.handler
	s.mu.Unlock()

	s.state.Store(int32(StateStarting))
	s.notify(func(o Observer) { o.LifeCycleStarting(s) })

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.cfg.Address())
	if err != nil {
		err = fmt.Errorf("listen %s: %w", s.cfg.Address(), err)
		s.fail(err)
		return err
	}

	hs := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
		IdleTimeout:       s.cfg.IdleTimeout,
		MaxHeaderBytes:    s.cfg.MaxHeaderBytes,
	}

	done := make(chan struct{})
	s.mu.Lock()
	for _, f := range s.onShutdown {
		hs.RegisterOnShutdown(f)
	}
	s.httpServer = hs
	s.listener = ln
	s.done = done
	s.mu.Unlock()

	go s.serve(hs, ln, done)

	s.state.Store(int32(StateStarted))
	s.notify(func(o Observer) { o.LifeCycleStarted(s) })
	return nil
}

func (s *Server) serve(hs *http.Server, ln net.Listener, done chan struct{}) {
	defer close(done)
	if err := hs.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.mu.Lock()
		s.serveErr = err
		s.mu.Unlock()
		s.logger.Error("serve loop exited", log.Err(err))
	}
}

// Stop closes the listener and waits for idle connections until ctx is done.
// Connections still open when ctx expires are closed forcibly; that is not
// reported as a failure.
func (s *Server) Stop(ctx context.Context) error {
	if !s.state.CompareAndSwap(int32(StateStarted), int32(StateStopping)) {
		return ErrNotStarted
	}

	s.mu.Lock()
	hs := s.httpServer
	s.mu.Unlock()

	s.notify(func(o Observer) { o.LifeCycleStopping(s) })

	err := hs.Shutdown(ctx)
	if err != nil && (errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)) {
		s.logger.Warn("connections still open at stop deadline, closing")
		err = hs.Close()
	}
	if err != nil {
		err = fmt.Errorf("stop: %w", err)
		s.fail(err)
		return err
	}

	s.state.Store(int32(StateStopped))
	s.notify(func(o Observer) { o.LifeCycleStopped(s) })
	return nil
}

// Join blocks until the serve loop has returned. It returns immediately if
// the server never started serving.
func (s *Server) Join() error {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done == nil {
		return nil
	}
	<-done

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.serveErr
}

func (s *Server) fail(err error) {
	s.state.Store(int32(StateFailed))
	s.notify(func(o Observer) { o.LifeCycleFailure(s, err) })
}

func (s *Server) notify(fn func(Observer)) {
	s.mu.Lock()
	observers := append([]Observer{}, s.observers...)
	s.mu.Unlock()
	for _, o := range observers {
		fn(o)
	}
}

var _ LifeCycle = (*Server)(nil)

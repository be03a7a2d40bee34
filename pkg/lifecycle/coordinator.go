package lifecycle

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/atomic"

	"github.com/bft-labs/webrun/pkg/log"
)

// Shutdown defaults.
const (
	DefaultShutdownTimeout = 12 * time.Second
	DefaultPollInterval    = 100 * time.Millisecond
	DefaultStopTimeout     = 5 * time.Second
)

// ShutdownState is the state of a Coordinator.
type ShutdownState int32

const (
	StateIdle ShutdownState = iota
	StateDraining
	StateStopped
)

// String returns a human-readable representation of the state.
func (s ShutdownState) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateDraining:
		return "Draining"
	case StateStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// Stopper is the part of the server the coordinator drives.
type Stopper interface {
	Stop(ctx context.Context) error
	Join() error
}

// Admitter is implemented by request trackers that can refuse new work once
// draining begins.
type Admitter interface {
	StopAdmitting()
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithShutdownTimeout bounds how long Shutdown waits for active requests.
func WithShutdownTimeout(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) { c.timeout = d }
}

// WithPollInterval sets how often the active request count is checked.
func WithPollInterval(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithStopTimeout caps how long the server may take to close connections
// once draining is over. The stop phase never outlasts the shutdown timeout.
func WithStopTimeout(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		if d > 0 {
			c.stopTimeout = d
		}
	}
}

// WithAdmitter makes Shutdown stop admitting requests before draining.
func WithAdmitter(a Admitter) CoordinatorOption {
	return func(c *Coordinator) { c.admitter = a }
}

// Coordinator runs the graceful shutdown sequence at most once:
//
//	Idle -> Draining -> Stopped
//
// The first Shutdown call wins the Idle -> Draining transition; concurrent
// and later calls return immediately without side effects.
type Coordinator struct {
	state       atomic.Int32
	stopper     Stopper
	activeCount func() int64
	admitter    Admitter
	logger      log.Logger

	timeout     time.Duration
	interval    time.Duration
	stopTimeout time.Duration

	done chan struct{}
}

// NewCoordinator creates a coordinator in StateIdle. activeCount may be nil,
// in which case draining is skipped.
func NewCoordinator(stopper Stopper, activeCount func() int64, logger log.Logger, opts ...CoordinatorOption) *Coordinator {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	if activeCount == nil {
		activeCount = func() int64 { return 0 }
	}
	c := &Coordinator{
		stopper:     stopper,
		activeCount: activeCount,
		logger:      logger,
		timeout:     DefaultShutdownTimeout,
		interval:    DefaultPollInterval,
		stopTimeout: DefaultStopTimeout,
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current shutdown state.
func (c *Coordinator) State() ShutdownState {
	return ShutdownState(c.state.Load())
}

// Done is closed once the first Shutdown call has finished.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// Shutdown drains active requests, stops the server and waits for it to
// terminate.
//
// Drain timeout is not an error. A cancelled ctx abandons draining but the
// server is still stopped; ErrDrainInterrupted is returned in that case.
// A failure while stopping is returned as *ShutdownError.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	if !c.state.CompareAndSwap(int32(StateIdle), int32(StateDraining)) {
		return nil
	}
	defer func() {
		c.state.Store(int32(StateStopped))
		close(c.done)
	}()

	c.logger.Info("Server shutting down")

	if c.admitter != nil {
		c.admitter.StopAdmitting()
	}

	deadline := time.Now().Add(c.timeout)
	_, drainErr := c.WaitForActiveRequests(ctx, c.timeout)

	if err := c.stop(ctx, deadline); err != nil {
		c.logger.Error("server failed to stop", log.Err(err))
		return err
	}
	c.logger.Info("Server stopped")

	return drainErr
}

// WaitForActiveRequests polls the active request count until it reaches zero
// or timeout is used up. It reports whether any waiting happened. The only
// error is ErrDrainInterrupted, when ctx is cancelled while waiting.
func (c *Coordinator) WaitForActiveRequests(ctx context.Context, timeout time.Duration) (bool, error) {
	waited := false
	remaining := timeout

	for remaining > 0 {
		count := c.activeCount()
		if count <= 0 {
			return waited, nil
		}
		if !waited {
			c.logger.Info("Waiting for active requests to complete",
				log.Int64("active", count),
				log.Duration("timeout", remaining),
			)
			waited = true
		}
		remaining -= c.interval

		timer := time.NewTimer(c.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			c.logger.Warn("Interrupted while waiting for active requests to complete",
				log.Duration("remaining", remaining),
				log.Err(ctx.Err()),
			)
			return waited, fmt.Errorf("%w: %w", ErrDrainInterrupted, ctx.Err())
		case <-timer.C:
		}
	}

	if count := c.activeCount(); count > 0 {
		c.logger.Warn("Shutdown timeout reached with requests still active",
			log.Int64("active", count),
			log.Duration("timeout", timeout),
		)
	}
	return waited, nil
}

// stop runs with a context detached from the caller's cancellation so that
// an interrupted drain still stops the server.
// stop runs the stop phase within what is left of the shutdown budget, capped
// at stopTimeout. An exhausted budget closes open connections immediately.
func (c *Coordinator) stop(ctx context.Context, deadline time.Time) (err error) {
	if capped := time.Now().Add(c.stopTimeout); capped.Before(deadline) {
		deadline = capped
	}
	stopCtx, cancel := context.WithDeadline(context.WithoutCancel(ctx), deadline)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = &ShutdownError{Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	if err := c.stopper.Stop(stopCtx); err != nil {
		return &ShutdownError{Err: err}
	}
	if err := c.stopper.Join(); err != nil {
		return &ShutdownError{Err: err}
	}
	return nil
}

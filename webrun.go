// Package webrun runs a web application on an embedded HTTP server.
//
// Example usage:
//
//	cfg := webrun.DefaultConfig()
//	cfg.ContextPath = "/app"
//	cfg.ResourceBase = "./web-assets"
//	if err := webrun.Run(context.Background(), cfg,
//	    webrun.WithRoutes(func(r chi.Router) {
//	        r.Get("/hello", hello)
//	    }),
//	); err != nil {
//	    log.Fatal(err)
//	}
package webrun

import (
	"context"

	"github.com/go-chi/chi/v5"

	"github.com/bft-labs/webrun/pkg/lifecycle"
	"github.com/bft-labs/webrun/pkg/log"
	"github.com/bft-labs/webrun/pkg/runner"
)

// Config holds the runner configuration.
// Use DefaultConfig() to get a Config with sensible defaults.
type Config = runner.Config

// Runner bootstraps the server and coordinates its shutdown.
type Runner = runner.Runner

// Option configures optional behavior of a Runner.
type Option = runner.Option

// Listener receives server lifecycle events.
type Listener = lifecycle.Listener

// BaseListener implements Listener with no-op methods for embedding.
type BaseListener = lifecycle.BaseListener

// Process exit codes.
const (
	ExitOK    = runner.ExitOK
	ExitFatal = runner.ExitFatal
)

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return runner.DefaultConfig()
}

// New creates a Runner.
func New(cfg Config, opts ...Option) (*Runner, error) {
	return runner.New(cfg, opts...)
}

// Run starts the server and blocks until it is shut down. Unless replaced
// with WithExitFunc, it exits the process when done.
func Run(ctx context.Context, cfg Config, opts ...Option) error {
	r, err := runner.New(cfg, opts...)
	if err != nil {
		return err
	}
	return r.Run(ctx)
}

// WithLogger sets the logger.
func WithLogger(logger log.Logger) Option { return runner.WithLogger(logger) }

// WithListener registers a lifecycle listener under name.
func WithListener(name string, l Listener) Option { return runner.WithListener(name, l) }

// WithRoutes registers application routes relative to the context path.
func WithRoutes(fn func(r chi.Router)) Option { return runner.WithRoutes(fn) }

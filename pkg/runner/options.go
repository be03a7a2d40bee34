package runner

import (
	"io"
	"os"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/bft-labs/webrun/pkg/lifecycle"
	"github.com/bft-labs/webrun/pkg/log"
	"github.com/bft-labs/webrun/pkg/probe"
	"github.com/bft-labs/webrun/pkg/webapp"
)

// Option configures optional behavior of a Runner.
type Option func(*options)

type namedListener struct {
	name     string
	listener lifecycle.Listener
}

// options holds the optional configuration for a Runner instance.
type options struct {
	logger    log.Logger
	registry  *lifecycle.Registry
	listeners []namedListener
	probe     probe.Probe
	endpoints []probe.Endpoint
	unit      webapp.Unit
	routes    []func(chi.Router)
	metrics   *prometheus.Registry
	exit      func(code int)
	stdin     io.Reader
	signals   []os.Signal
}

func defaultOptions() options {
	return options{
		logger:  log.NewNoopLogger(),
		exit:    os.Exit,
		stdin:   os.Stdin,
		signals: []os.Signal{os.Interrupt, syscall.SIGTERM},
	}
}

// WithLogger sets the logger. If not provided, a no-op logger is used.
func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithListener registers a lifecycle listener under name. Listeners are
// notified in registration order.
func WithListener(name string, l lifecycle.Listener) Option {
	return func(o *options) {
		o.listeners = append(o.listeners, namedListener{name: name, listener: l})
	}
}

// WithRegistry uses reg as the plugin registry. Listeners added with
// WithListener are registered into it.
func WithRegistry(reg *lifecycle.Registry) Option {
	return func(o *options) { o.registry = reg }
}

// WithProbe sets the WebSocket capability probe. Without it the capability
// is reported absent.
func WithProbe(p probe.Probe) Option {
	return func(o *options) { o.probe = p }
}

// WithEndpoint declares an endpoint for the WebSocket container.
func WithEndpoint(ep probe.Endpoint) Option {
	return func(o *options) { o.endpoints = append(o.endpoints, ep) }
}

// WithUnit replaces the default webapp.Context.
func WithUnit(u webapp.Unit) Option {
	return func(o *options) { o.unit = u }
}

// WithRoutes registers application routes relative to the context path.
// The unit must expose its chi router.
func WithRoutes(fn func(r chi.Router)) Option {
	return func(o *options) { o.routes = append(o.routes, fn) }
}

// WithMetricsRegistry sets the Prometheus registry served at /metrics.
// If not provided, a registry with the Go and process collectors is used.
func WithMetricsRegistry(reg *prometheus.Registry) Option {
	return func(o *options) { o.metrics = reg }
}

// WithExitFunc replaces os.Exit.
func WithExitFunc(exit func(code int)) Option {
	return func(o *options) {
		if exit != nil {
			o.exit = exit
		}
	}
}

// WithStdin replaces os.Stdin for stdin shutdown.
func WithStdin(r io.Reader) Option {
	return func(o *options) { o.stdin = r }
}

// WithSignals sets the signals that trigger shutdown in Run. Calling it
// with no signals disables signal handling.
func WithSignals(sigs ...os.Signal) Option {
	return func(o *options) { o.signals = sigs }
}

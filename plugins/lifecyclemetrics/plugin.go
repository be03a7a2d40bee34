// Package lifecyclemetrics exports server lifecycle transitions as
// Prometheus metrics.
//
//	webrun_lifecycle_events_total{event}
//	webrun_server_state
//
// The state gauge follows server.State: 0 stopped, 1 starting, 2 started,
// 3 stopping, 4 failed.
package lifecyclemetrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bft-labs/webrun/pkg/lifecycle"
	"github.com/bft-labs/webrun/pkg/server"
)

// Name is the name the plugin registers under.
const Name = "lifecyclemetrics"

// Plugin records lifecycle events.
type Plugin struct {
	events    *prometheus.CounterVec
	state     prometheus.Gauge
	startedAt prometheus.Gauge
}

// New creates the plugin and registers its collectors with reg.
func New(reg prometheus.Registerer) (*Plugin, error) {
	p := &Plugin{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "webrun",
			Subsystem: "lifecycle",
			Name:      "events_total",
			Help:      "Server lifecycle events by type",
		}, []string{"event"}),
		state: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "webrun",
			Subsystem: "server",
			Name:      "state",
			Help:      "Current server state (0 stopped, 1 starting, 2 started, 3 stopping, 4 failed)",
		}),
		startedAt: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "webrun",
			Subsystem: "server",
			Name:      "started_timestamp_seconds",
			Help:      "Unix time the server last started accepting connections",
		}),
	}

	for _, c := range []prometheus.Collector{p.events, p.state, p.startedAt} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Name returns the plugin identifier.
// LifecycleVersion returns the lifecycle version the plugin is built against.
func (p *Plugin) LifecycleVersion() string { return lifecycle.Version }

func (p *Plugin) Name() string { return Name }

func (p *Plugin) OnStarting() { p.record(lifecycle.EventStarting, server.StateStarting) }

func (p *Plugin) OnStarted() {
	p.record(lifecycle.EventStarted, server.StateStarted)
	p.startedAt.Set(float64(time.Now().Unix()))
}

func (p *Plugin) OnFailure(error) { p.record(lifecycle.EventFailed, server.StateFailed) }
func (p *Plugin) OnStopping()     { p.record(lifecycle.EventStopping, server.StateStopping) }
func (p *Plugin) OnStopped()      { p.record(lifecycle.EventStopped, server.StateStopped) }

func (p *Plugin) record(ev lifecycle.Event, st server.State) {
	p.events.WithLabelValues(ev.String()).Inc()
	p.state.Set(float64(st))
}

var _ lifecycle.Listener = (*Plugin)(nil)

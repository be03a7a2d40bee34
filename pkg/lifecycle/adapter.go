package lifecycle

import (
	"fmt"

	"github.com/bft-labs/webrun/pkg/log"
	"github.com/bft-labs/webrun/pkg/server"
)

// Adapter bridges the server's native observer notifications to a single
// Listener. It forwards every transition one-to-one and swallows listener
// panics so that one plugin cannot block the others or the server.
type Adapter struct {
	name     string
	listener Listener
	logger   log.Logger
}

// NewAdapter wraps l for registration with server.AddObserver.
func NewAdapter(name string, l Listener, logger log.Logger) *Adapter {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Adapter{name: name, listener: l, logger: logger}
}

// Name returns the plugin name the adapter was created with.
func (a *Adapter) Name() string { return a.name }

func (a *Adapter) LifeCycleStarting(server.LifeCycle) { a.deliver(EventStarting, nil) }
func (a *Adapter) LifeCycleStarted(server.LifeCycle)  { a.deliver(EventStarted, nil) }
func (a *Adapter) LifeCycleStopping(server.LifeCycle) { a.deliver(EventStopping, nil) }
func (a *Adapter) LifeCycleStopped(server.LifeCycle)  { a.deliver(EventStopped, nil) }

func (a *Adapter) LifeCycleFailure(_ server.LifeCycle, err error) {
	a.deliver(EventFailed, err)
}

func (a *Adapter) deliver(ev Event, cause error) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("lifecycle listener failed",
				log.String(log.FieldPlugin, a.name),
				log.String(log.FieldEvent, ev.String()),
				log.Err(fmt.Errorf("panic: %v", r)),
			)
		}
	}()
	Dispatch(a.listener, ev, cause)
}

var _ server.Observer = (*Adapter)(nil)

package lifecycle

// Event is one of the five transitions a server instance passes through.
type Event int

const (
	EventStarting Event = iota
	EventStarted
	EventFailed
	EventStopping
	EventStopped
)

// String returns a human-readable representation of the event.
func (e Event) String() string {
	switch e {
	case EventStarting:
		return "Starting"
	case EventStarted:
		return "Started"
	case EventFailed:
		return "Failed"
	case EventStopping:
		return "Stopping"
	case EventStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// Listener receives server lifecycle events. Plugins implement it.
//
// Methods are called synchronously on the goroutine driving the transition,
// in registration order across listeners. Implementations should return
// quickly. A panicking listener is logged and skipped; it never aborts the
// transition.
type Listener interface {
	// OnStarting is called before the server binds its listener.
	OnStarting()

	// OnStarted is called once the server accepts connections.
	OnStarted()

	// OnFailure is called instead of OnStarted or OnStopped when the
	// transition failed.
	OnFailure(err error)

	// OnStopping is called before the server closes its listener.
	OnStopping()

	// OnStopped is called after the server terminated.
	OnStopped()
}

// BaseListener implements Listener with no-op methods. Embed it to handle
// only the events you care about.
type BaseListener struct{}

func (BaseListener) OnStarting()         {}
func (BaseListener) OnStarted()          {}
func (BaseListener) OnFailure(err error) {}
func (BaseListener) OnStopping()         {}
func (BaseListener) OnStopped()          {}

// Dispatch calls the Listener method matching ev. err is only used for
// EventFailed.
func Dispatch(l Listener, ev Event, err error) {
	switch ev {
	case EventStarting:
		l.OnStarting()
	case EventStarted:
		l.OnStarted()
	case EventFailed:
		l.OnFailure(err)
	case EventStopping:
		l.OnStopping()
	case EventStopped:
		l.OnStopped()
	}
}

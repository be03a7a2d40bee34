package lifecycle

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/webrun/pkg/log"
	"github.com/bft-labs/webrun/pkg/server"
)

type logEntry struct {
	level  string
	msg    string
	fields map[string]interface{}
}

type mockLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (m *mockLogger) add(level, msg string, fields []log.Field) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f := make(map[string]interface{}, len(fields))
	for _, field := range fields {
		f[field.Key] = field.Value
	}
	m.entries = append(m.entries, logEntry{level: level, msg: msg, fields: f})
}

func (m *mockLogger) Debug(msg string, fields ...log.Field) { m.add("debug", msg, fields) }
func (m *mockLogger) Info(msg string, fields ...log.Field)  { m.add("info", msg, fields) }
func (m *mockLogger) Warn(msg string, fields ...log.Field)  { m.add("warn", msg, fields) }
func (m *mockLogger) Error(msg string, fields ...log.Field) { m.add("error", msg, fields) }

func (m *mockLogger) count(msg string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.entries {
		if e.msg == msg {
			n++
		}
	}
	return n
}

func (m *mockLogger) find(msg string) (logEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.msg == msg {
			return e, true
		}
	}
	return logEntry{}, false
}

type recordingListener struct {
	mu     sync.Mutex
	events []string
	cause  error
}

func (r *recordingListener) add(ev string) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recordingListener) OnStarting() { r.add("starting") }
func (r *recordingListener) OnStarted()  { r.add("started") }
func (r *recordingListener) OnFailure(err error) {
	r.mu.Lock()
	r.cause = err
	r.mu.Unlock()
	r.add("failure")
}
func (r *recordingListener) OnStopping() { r.add("stopping") }
func (r *recordingListener) OnStopped()  { r.add("stopped") }

type panicListener struct {
	BaseListener
}

func (panicListener) OnStarted() { panic("boom") }

func TestEvent_String(t *testing.T) {
	tests := []struct {
		ev   Event
		want string
	}{
		{EventStarting, "Starting"},
		{EventStarted, "Started"},
		{EventFailed, "Failed"},
		{EventStopping, "Stopping"},
		{EventStopped, "Stopped"},
		{Event(42), "Unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.ev.String())
		})
	}
}

func TestDispatch(t *testing.T) {
	l := &recordingListener{}
	cause := errors.New("bind failed")

	Dispatch(l, EventStarting, nil)
	Dispatch(l, EventFailed, cause)
	Dispatch(l, EventStopping, nil)
	Dispatch(l, EventStopped, nil)
	Dispatch(l, EventStarted, nil)

	assert.Equal(t, []string{"starting", "failure", "stopping", "stopped", "started"}, l.events)
	assert.Equal(t, cause, l.cause)
}

func TestRegistry(t *testing.T) {
	t.Run("preserves registration order", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register("b", BaseListener{}))
		require.NoError(t, r.Register("a", BaseListener{}))
		require.NoError(t, r.Register("c", BaseListener{}))

		var names []string
		for _, nl := range r.Listeners() {
			names = append(names, nl.Name)
		}
		assert.Equal(t, []string{"b", "a", "c"}, names)
		assert.Equal(t, 3, r.Len())
	})

	t.Run("rejects nil listener", func(t *testing.T) {
		r := NewRegistry()
		assert.ErrorIs(t, r.Register("x", nil), ErrNilListener)
	})

	t.Run("rejects duplicate name", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register("x", BaseListener{}))
		assert.Error(t, r.Register("x", BaseListener{}))
		assert.Equal(t, 1, r.Len())
	})

	t.Run("rejects registration after freeze", func(t *testing.T) {
		r := NewRegistry()
		r.Freeze()
		assert.ErrorIs(t, r.Register("x", BaseListener{}), ErrRegistryFrozen)
		assert.Equal(t, 0, r.Len())
	})

	t.Run("listeners returns a copy", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register("x", BaseListener{}))
		got := r.Listeners()
		got[0].Name = "mutated"
		assert.Equal(t, "x", r.Listeners()[0].Name)
	})
}

func TestAdapter_ForwardsEveryTransition(t *testing.T) {
	l := &recordingListener{}
	a := NewAdapter("rec", l, nil)
	cause := errors.New("stop failed")

	a.LifeCycleStarting(nil)
	a.LifeCycleStarted(nil)
	a.LifeCycleStopping(nil)
	a.LifeCycleFailure(nil, cause)
	a.LifeCycleStopped(nil)

	assert.Equal(t, "rec", a.Name())
	assert.Equal(t, []string{"starting", "started", "stopping", "failure", "stopped"}, l.events)
	assert.Equal(t, cause, l.cause)
}

func TestAdapter_IsolatesPanickingListener(t *testing.T) {
	logger := &mockLogger{}
	bad := NewAdapter("bad", panicListener{}, logger)
	good := &recordingListener{}
	goodAdapter := NewAdapter("good", good, logger)

	observers := []server.Observer{bad, goodAdapter}
	for _, o := range observers {
		require.NotPanics(t, func() { o.LifeCycleStarted(nil) })
	}

	assert.Equal(t, []string{"started"}, good.events)

	entry, ok := logger.find("lifecycle listener failed")
	require.True(t, ok)
	assert.Equal(t, "error", entry.level)
	assert.Equal(t, "bad", entry.fields[log.FieldPlugin])
	assert.Equal(t, "Started", entry.fields[log.FieldEvent])
}

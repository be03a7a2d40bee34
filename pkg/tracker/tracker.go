package tracker

import (
	"net/http"
	"time"

	"go.uber.org/atomic"
)

// Tracker is a monotonic-safe counter of in-flight requests.
type Tracker struct {
	active   atomic.Int64
	attached atomic.Bool
	draining atomic.Bool
	metrics  *metrics
}

// Option configures a Tracker.
type Option func(*Tracker)

// New creates a tracker with zero active requests.
func New(opts ...Option) *Tracker {
	t := &Tracker{}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Increment records a request entering the handler chain.
func (t *Tracker) Increment() {
	t.active.Inc()
	if t.metrics != nil {
		t.metrics.inFlight.Inc()
	}
}

// Decrement records a request leaving the handler chain. The count never
// drops below zero.
func (t *Tracker) Decrement() {
	for {
		cur := t.active.Load()
		if cur <= 0 {
			return
		}
		if t.active.CompareAndSwap(cur, cur-1) {
			if t.metrics != nil {
				t.metrics.inFlight.Dec()
			}
			return
		}
	}
}

// ActiveCount returns a snapshot of the number of in-flight requests.
func (t *Tracker) ActiveCount() int64 {
	return t.active.Load()
}

// Attached reports whether the tracker has been installed in a handler chain.
func (t *Tracker) Attached() bool {
	return t.attached.Load()
}

// StopAdmitting makes the tracker refuse new requests. Requests already in
// flight are unaffected.
func (t *Tracker) StopAdmitting() {
	t.draining.Store(true)
}

// Draining reports whether StopAdmitting has been called.
func (t *Tracker) Draining() bool {
	return t.draining.Load()
}

// Middleware returns Wrap in the func(http.Handler) http.Handler form used by
// chi routers.
func (t *Tracker) Middleware() func(http.Handler) http.Handler {
	return t.Wrap
}

// Wrap installs the tracker around next. The count is decremented on every
// exit path, including panics, which keep propagating to the server.
func (t *Tracker) Wrap(next http.Handler) http.Handler {
	t.attached.Store(true)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if t.draining.Load() {
			w.Header().Set("Connection", "close")
			http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
			if t.metrics != nil {
				t.metrics.observe(r.Method, http.StatusServiceUnavailable, 0)
			}
			return
		}

		start := time.Now()
		t.Increment()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK, release: t.Decrement}
		defer func() {
			sw.releaseOnce()
			if t.metrics != nil {
				t.metrics.observe(r.Method, sw.status, time.Since(start))
			}
		}()

		next.ServeHTTP(sw, r)
	})
}

// Package server is the embeddable HTTP server driven by the runner.
//
// It wraps net/http.Server behind the small capability the runner needs:
// set a handler, start, stop, join, and a native lifecycle observer
// registration point. Observers are notified synchronously, in registration
// order, for every transition:
//
//	starting -> started -> stopping -> stopped
//	starting -> failure                 (bind/start failed)
//	stopping -> failure                 (stop failed)
//
// A single start attempt never reports both started and failure.
package server

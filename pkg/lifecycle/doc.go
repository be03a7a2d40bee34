// Package lifecycle provides server lifecycle events, the plugin listener
// contract and the graceful shutdown coordinator.
//
// # Events and listeners
//
// A server instance passes through five events: Starting, Started, Failed,
// Stopping and Stopped. Plugins implement [Listener] and are registered in a
// [Registry] during bootstrap. The runner wraps each registered listener in
// an [Adapter] and hands it to the server as a native observer, so plugin
// code never depends on the server's own notification API.
//
//	reg := lifecycle.NewRegistry()
//	_ = reg.Register("audit", &auditListener{})
//
// # Graceful shutdown
//
// [Coordinator] drives the shutdown sequence exactly once:
//
//	Idle -> Draining -> Stopped
//
// Draining polls the active request count every 100ms until it reaches zero
// or the shutdown timeout (default 12s) is used up, then stops the server
// and joins it.
//
//	c := lifecycle.NewCoordinator(srv, tracker.ActiveCount, logger,
//	    lifecycle.WithShutdownTimeout(5*time.Second),
//	)
//	if err := c.Shutdown(ctx); err != nil {
//	    var se *lifecycle.ShutdownError
//	    if errors.As(err, &se) {
//	        os.Exit(100)
//	    }
//	}
//
// # Version
//
// Current version: 2.0.0
// Minimum compatible version: 2.0.0
package lifecycle

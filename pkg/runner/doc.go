// Package runner bootstraps an embedded web application server.
//
// A Runner configures the web application unit, registers lifecycle
// plugins, optionally attaches the WebSocket container, starts the server
// and installs one shutdown hook that drains in-flight requests before the
// process exits.
//
// # Basic Usage
//
//	cfg := runner.DefaultConfig()
//	cfg.Port = 9090
//
//	r, err := runner.New(cfg,
//	    runner.WithLogger(logger),
//	    runner.WithListener("audit", &auditListener{}),
//	    runner.WithRoutes(func(rt chi.Router) {
//	        rt.Get("/hello", hello)
//	    }),
//	)
//	if err != nil {
//	    os.Exit(runner.ExitFatal)
//	}
//	_ = r.Run(context.Background())
//
// Run exits the process with ExitOK after an orderly shutdown and with
// ExitFatal when startup or shutdown fails. Embedders that manage the
// process themselves use Start and Shutdown instead.
//
// # Configuration
//
// Settings come from DefaultConfig, optionally overridden by ApplyEnv. Every
// environment key is read in its dotted form (webapp.http.port) and in
// upper-snake form (WEBAPP_HTTP_PORT).
package runner

package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/webrun/internal/cliconfig"
	"github.com/bft-labs/webrun/pkg/log"
	"github.com/bft-labs/webrun/pkg/probe"
	"github.com/bft-labs/webrun/pkg/runner"
	"github.com/bft-labs/webrun/pkg/webapp"
	"github.com/bft-labs/webrun/pkg/websocket"
	"github.com/bft-labs/webrun/plugins/lifecyclemetrics"
	"github.com/bft-labs/webrun/plugins/logwatcher"
)

const helpDescription = `
Run a web application on an embedded HTTP server.

Highlights:
  - Serves static resources and application routes under a context path.
  - Drains in-flight requests on shutdown (signal, CTRL-D, or failure).
  - Mounts WebSocket endpoints when the capability is available.
  - Reloads the log level when the log configuration file changes.

Configuration is layered: config file, then webapp.* environment keys,
then flags.
`

var exampleUsage = strings.TrimSpace(`
  webrun --port 8080 --context-path /app --resource-base ./web-assets
  webrun --config $HOME/.webrun/config.toml --stdin-shutdown
  WEBAPP_HTTP_PORT=9090 webrun --secure-cookies=false
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	root := newRootCommand(os.LookupEnv, run)
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "webrun: %v\n", err)
		os.Exit(runner.ExitFatal)
	}
}

// newRootCommand builds the CLI. It resolves the configuration from the
// config file, the environment (read through lookup) and the flags, then
// hands it to runFn.
func newRootCommand(lookup runner.LookupFunc, runFn func(cfg runner.Config) error) *cobra.Command {
	cfg := cliconfig.DefaultConfig()
	var (
		cfgPath string
		classes string
	)

	root := &cobra.Command{
		Use:           "webrun",
		Short:         "Run a web application on an embedded HTTP server",
		Long:          strings.TrimSpace(helpDescription),
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Build set of changed flags
			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			if changed["server-classes"] {
				cfg.ServerClasses = webapp.ParseClassRules(classes)
			}

			// File, then environment, then flags (checked via changed map)
			if err := cliconfig.Load(&cfg, cfgPath, changed, lookup); err != nil {
				return err
			}
			return runFn(cfg)
		},
	}

	// Flags
	root.Flags().StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.webrun/config.toml)")
	root.Flags().IntVar(&cfg.Port, "port", cfg.Port, "HTTP listen port")
	root.Flags().StringVar(&cfg.Host, "host", cfg.Host, "address to bind (default: all interfaces)")
	root.Flags().StringVar(&cfg.ContextPath, "context-path", cfg.ContextPath, "URL prefix of the web application")
	root.Flags().BoolVar(&cfg.UseSecureCookies, "secure-cookies", cfg.UseSecureCookies, "mark application cookies Secure")
	root.Flags().DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", cfg.ShutdownTimeout, "how long shutdown waits for active requests")
	root.Flags().BoolVar(&cfg.UseStdInShutdown, "stdin-shutdown", cfg.UseStdInShutdown, "shut down when stdin reaches EOF (CTRL-D)")
	root.Flags().StringVar(&cfg.ResourceBase, "resource-base", cfg.ResourceBase, "static resource directory (default: ./web-assets)")
	root.Flags().StringVar(&cfg.LogConfig, "log-config", cfg.LogConfig, "log configuration file")
	root.Flags().BoolVar(&cfg.WebSocket, "websocket", cfg.WebSocket, "provide the WebSocket capability")
	root.Flags().BoolVar(&cfg.Metrics, "metrics", cfg.Metrics, "serve Prometheus metrics at /metrics")
	root.Flags().StringVar(&classes, "server-classes", "", "comma-separated server class rules, e.g. -webrun.health,webrun.")

	return root
}

func run(cfg runner.Config) error {
	logger, err := newLogger(cfg.LogConfig)
	if err != nil {
		return err
	}
	logger.Info("configuration",
		log.Int(log.FieldPort, cfg.Port),
		log.String("context_path", cfg.ContextPath),
		log.Duration("shutdown_timeout", cfg.ShutdownTimeout),
		log.Bool("stdin_shutdown", cfg.UseStdInShutdown),
		log.Bool("websocket", cfg.WebSocket),
		log.Bool("metrics", cfg.Metrics),
	)

	opts, err := runnerOptions(cfg, logger)
	if err != nil {
		return err
	}

	r, err := runner.New(cfg, opts...)
	if err != nil {
		return fmt.Errorf("create runner: %w", err)
	}

	// Run exits the process with ExitOK or ExitFatal.
	return r.Run(context.Background())
}

func newLogger(path string) (*log.ZerologAdapter, error) {
	fc, err := log.LoadFileConfig(log.ResolveConfigPath(path))
	if err != nil {
		return nil, err
	}
	return log.NewZerologAdapterFromConfig(fc, os.Stderr), nil
}

func runnerOptions(cfg runner.Config, logger *log.ZerologAdapter) ([]runner.Option, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := lifecyclemetrics.New(reg)
	if err != nil {
		return nil, fmt.Errorf("register lifecycle metrics: %w", err)
	}

	return []runner.Option{
		runner.WithLogger(logger),
		runner.WithMetricsRegistry(reg),
		runner.WithProbe(websocketProbe(cfg, logger)),
		runner.WithEndpoint(&websocket.Endpoint{Path: "/echo", Handler: websocket.EchoHandler}),
		runner.WithListener(lifecyclemetrics.Name, metrics),
		logwatcher.WithLogWatcher(logwatcher.Config{Path: cfg.LogConfig, Logger: logger}, logger),
	}, nil
}

// websocketProbe reports the WebSocket capability as present when enabled.
func websocketProbe(cfg runner.Config, logger log.Logger) probe.Probe {
	capabilities := probe.NewRegistry()
	if cfg.WebSocket {
		capabilities.Provide(websocket.Marker, websocket.NewCapability(websocket.Options{
			HandshakeTimeout: 10 * time.Second,
			Logger:           logger,
		}))
	}
	return capabilities.For(websocket.Marker)
}

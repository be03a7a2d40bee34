package logwatcher

import (
	"github.com/bft-labs/webrun/pkg/log"
	"github.com/bft-labs/webrun/pkg/runner"
)

// WithLogWatcher returns a runner Option that enables log level reloading.
// When enabled, the plugin watches the log configuration file and applies
// level changes through setter while the server is running.
//
// Usage:
//
//	adapter := log.NewZerologAdapterFromConfig(fc, os.Stderr)
//	r, err := runner.New(cfg,
//	    runner.WithLogger(adapter),
//	    logwatcher.WithLogWatcher(logwatcher.Config{Path: cfg.LogConfig}, adapter),
//	)
func WithLogWatcher(cfg Config, setter log.LevelSetter) runner.Option {
	return runner.WithListener(Name, New(cfg, setter))
}

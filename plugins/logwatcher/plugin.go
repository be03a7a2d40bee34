// Package logwatcher reloads the log level when the log configuration file
// changes. It is a lifecycle plugin: watching starts once the server has
// started and stops when it begins stopping.
package logwatcher

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/webrun/pkg/lifecycle"
	"github.com/bft-labs/webrun/pkg/log"
)

// Name is the name the plugin registers under.
const Name = "logwatcher"

// Plugin watches the log configuration file and applies level changes
// through a log.LevelSetter.
type Plugin struct {
	lifecycle.BaseListener

	mu sync.Mutex

	// Configuration
	path          string
	debounceDelay time.Duration
	setter        log.LevelSetter
	logger        log.Logger

	// Runtime state
	level    string
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	debounce *time.Timer
}

// Config holds configuration options for the log watcher plugin.
type Config struct {
	// Path is the log configuration file.
	// Default: logging.toml in the working directory
	Path string

	// DebounceDelay is the delay to wait after a file change before reloading.
	// Default: 100 milliseconds
	DebounceDelay time.Duration

	// Logger receives the plugin's own messages.
	Logger log.Logger
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DebounceDelay: 100 * time.Millisecond,
	}
}

// New creates a log watcher that applies levels through setter.
func New(cfg Config, setter log.LevelSetter) *Plugin {
	if cfg.DebounceDelay <= 0 {
		cfg.DebounceDelay = 100 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewNoopLogger()
	}
	return &Plugin{
		path:          log.ResolveConfigPath(cfg.Path),
		debounceDelay: cfg.DebounceDelay,
		setter:        setter,
		logger:        cfg.Logger,
	}
}

// LifecycleVersion returns the lifecycle version the plugin is built against.
func (p *Plugin) LifecycleVersion() string { return lifecycle.Version }

// Name returns the plugin identifier.
func (p *Plugin) Name() string {
	return Name
}

// Path returns the watched file.
func (p *Plugin) Path() string {
	return p.path
}

// OnStarted starts the watcher.
func (p *Plugin) OnStarted() {
	if p.setter == nil {
		p.logger.Warn("Log watcher disabled: logger does not support level changes")
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		p.logger.Error("Log watcher: failed to create watcher", log.Err(err))
		return
	}
	if err := watcher.Add(filepath.Dir(p.path)); err != nil {
		p.logger.Error("Log watcher: failed to watch directory",
			log.String("path", filepath.Dir(p.path)),
			log.Err(err),
		)
		_ = watcher.Close()
		return
	}

	if fc, err := log.LoadFileConfig(p.path); err == nil {
		p.level = fc.Level
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	p.logger.Info("Log watcher plugin started", log.String("path", p.path))

	p.wg.Add(1)
	go p.watchLoop(ctx, watcher)
}

// OnStopping stops the watcher.
func (p *Plugin) OnStopping() {
	p.stop()
}

// OnFailure stops the watcher if a stop attempt failed.
func (p *Plugin) OnFailure(error) {
	p.stop()
}

func (p *Plugin) stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	if p.debounce != nil {
		p.debounce.Stop()
	}
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	p.wg.Wait()
}

// watchLoop watches for log config file changes.
func (p *Plugin) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer p.wg.Done()
	defer watcher.Close()

	name := filepath.Base(p.path)
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			p.debounceReload(ctx)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			p.logger.Error("Log watcher: watcher error", log.Err(err))
		}
	}
}

func (p *Plugin) debounceReload(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.debounce != nil {
		p.debounce.Stop()
	}

	p.debounce = time.AfterFunc(p.debounceDelay, func() {
		if ctx.Err() != nil {
			return
		}
		p.reload()
	})
}

// reload applies the level from the config file if it changed.
func (p *Plugin) reload() {
	fc, err := log.LoadFileConfig(p.path)
	if err != nil {
		p.logger.Warn("Log watcher: failed to reload config", log.Err(err))
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if fc.Level == p.level {
		return
	}
	if err := p.setter.SetLevel(fc.Level); err != nil {
		p.logger.Warn("Log watcher: invalid level",
			log.String("level", fc.Level),
			log.Err(err),
		)
		return
	}
	p.logger.Info("Log level changed",
		log.String("from", p.level),
		log.String("to", fc.Level),
	)
	p.level = fc.Level
}

// Ensure Plugin implements lifecycle.Listener.
var _ lifecycle.Listener = (*Plugin)(nil)

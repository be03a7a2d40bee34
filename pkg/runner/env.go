package runner

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment keys. Each is also read in upper-snake form, e.g.
// WEBAPP_HTTP_PORT.
const (
	EnvPort            = "webapp.http.port"
	EnvHost            = "webapp.http.host"
	EnvContextPath     = "webapp.context.path"
	EnvSecureCookies   = "webapp.secure.cookies"
	EnvShutdownTimeout = "webapp.shutdown.timeout"
	EnvStdinShutdown   = "webapp.stdin.shutdown"
	EnvResourceBase    = "webapp.resource.base"
	EnvLogConfig       = "webapp.log.config"
	EnvWebSocket       = "webapp.websocket"
	EnvMetrics         = "webapp.metrics"
)

// LookupFunc returns the value of an environment key. os.LookupEnv
// satisfies it.
type LookupFunc func(key string) (string, bool)

// ApplyEnv applies environment configuration to cfg. Keys whose flag name is
// in changed are skipped so that command-line flags win. A nil lookup reads
// the process environment.
func ApplyEnv(cfg *Config, changed map[string]bool, lookup LookupFunc) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	e := envSetter{changed: changed, lookup: lookup}

	e.setString(EnvHost, "host", &cfg.Host)
	e.setString(EnvContextPath, "context-path", &cfg.ContextPath)
	e.setString(EnvResourceBase, "resource-base", &cfg.ResourceBase)
	e.setString(EnvLogConfig, "log-config", &cfg.LogConfig)

	if err := e.setInt(EnvPort, "port", &cfg.Port); err != nil {
		return err
	}
	if err := e.setMillis(EnvShutdownTimeout, "shutdown-timeout", &cfg.ShutdownTimeout); err != nil {
		return err
	}
	for _, b := range []struct {
		key, flag string
		dst       *bool
	}{
		{EnvSecureCookies, "secure-cookies", &cfg.UseSecureCookies},
		{EnvStdinShutdown, "stdin-shutdown", &cfg.UseStdInShutdown},
		{EnvWebSocket, "websocket", &cfg.WebSocket},
		{EnvMetrics, "metrics", &cfg.Metrics},
	} {
		if err := e.setBool(b.key, b.flag, b.dst); err != nil {
			return err
		}
	}
	return nil
}

// EnvName returns the upper-snake form of a dotted key.
func EnvName(key string) string {
	return strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

type envSetter struct {
	changed map[string]bool
	lookup  LookupFunc
}

func (e envSetter) get(key, flag string) (string, bool) {
	if e.changed[flag] {
		return "", false
	}
	if v, ok := e.lookup(key); ok && v != "" {
		return v, true
	}
	if v, ok := e.lookup(EnvName(key)); ok && v != "" {
		return v, true
	}
	return "", false
}

func (e envSetter) setString(key, flag string, dst *string) {
	if v, ok := e.get(key, flag); ok {
		*dst = v
	}
}

func (e envSetter) setInt(key, flag string, dst *int) error {
	v, ok := e.get(key, flag)
	if !ok {
		return nil
	}
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return &ConfigurationError{Op: "parse " + key, Err: err}
	}
	*dst = i
	return nil
}

// setMillis accepts a plain number of milliseconds or a Go duration.
func (e envSetter) setMillis(key, flag string, dst *time.Duration) error {
	v, ok := e.get(key, flag)
	if !ok {
		return nil
	}
	v = strings.TrimSpace(v)
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		*dst = time.Duration(ms) * time.Millisecond
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return &ConfigurationError{Op: "parse " + key, Err: fmt.Errorf("invalid duration %q", v)}
	}
	*dst = d
	return nil
}

func (e envSetter) setBool(key, flag string, dst *bool) error {
	v, ok := e.get(key, flag)
	if !ok {
		return nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return &ConfigurationError{Op: "parse " + key, Err: err}
	}
	*dst = b
	return nil
}

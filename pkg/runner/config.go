package runner

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/bft-labs/webrun/pkg/log"
	"github.com/bft-labs/webrun/pkg/webapp"
)

// Defaults.
const (
	DefaultPort            = 8080
	DefaultContextPath     = "/"
	DefaultShutdownTimeout = 12 * time.Second
)

// Config holds the runner configuration.
// Use DefaultConfig() to get a Config with sensible defaults.
type Config struct {
	// Port is the HTTP listen port.
	Port int
	// Host is the address to bind. Empty binds all interfaces.
	Host string
	// ContextPath is the URL prefix the web application is served under.
	ContextPath string
	// UseSecureCookies marks every cookie issued by the application Secure.
	UseSecureCookies bool
	// ShutdownTimeout bounds how long shutdown waits for active requests.
	ShutdownTimeout time.Duration
	// UseStdInShutdown shuts the server down when standard input reaches EOF.
	UseStdInShutdown bool
	// ResourceBase is the static resource directory. Empty falls back to
	// ./web-assets.
	ResourceBase string
	// LogConfig is the logging configuration file.
	LogConfig string
	// WebSocket enables probing for the WebSocket capability.
	WebSocket bool
	// Metrics serves Prometheus metrics at /metrics.
	Metrics bool
	// ServerClasses overrides webapp.DefaultServerClasses when non-nil.
	ServerClasses webapp.ClassRules
}

// DefaultConfig returns a Config with default values. Stdin shutdown is on
// when the process runs from a Go source checkout.
func DefaultConfig() Config {
	return Config{
		Port:             DefaultPort,
		ContextPath:      DefaultContextPath,
		UseSecureCookies: true,
		ShutdownTimeout:  DefaultShutdownTimeout,
		UseStdInShutdown: RunningFromSource(""),
		LogConfig:        log.DefaultConfigFile,
		WebSocket:        true,
		Metrics:          true,
	}
}

// Validate checks the configuration and normalises the context path.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return &ConfigurationError{Op: "validate", Err: fmt.Errorf("port %d out of range", c.Port)}
	}
	if c.ShutdownTimeout <= 0 {
		return &ConfigurationError{Op: "validate", Err: fmt.Errorf("shutdown timeout must be positive")}
	}
	if c.ContextPath == "" {
		c.ContextPath = DefaultContextPath
	}
	if !strings.HasPrefix(c.ContextPath, "/") {
		return &ConfigurationError{Op: "validate", Err: fmt.Errorf("context path %q must start with /", c.ContextPath)}
	}
	c.ContextPath = webapp.NormalizeContextPath(c.ContextPath)
	return nil
}

// Address returns the host:port the server binds.
func (c Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// RunningFromSource reports whether dir (the working directory when empty)
// holds a go.mod, i.e. the process was started from a source checkout.
func RunningFromSource(dir string) bool {
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return false
		}
		dir = wd
	}
	_, err := os.Stat(filepath.Join(dir, "go.mod"))
	return err == nil
}

package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/bft-labs/webrun/pkg/runner"
	"github.com/bft-labs/webrun/pkg/webapp"
)

// FileConfig mirrors runner.Config but uses strings for durations and
// pointers for booleans to make TOML friendly.
type FileConfig struct {
	HTTPPort        int      `toml:"http_port"`
	HTTPHost        string   `toml:"http_host"`
	ContextPath     string   `toml:"context_path"`
	SecureCookies   *bool    `toml:"secure_cookies"`
	ShutdownTimeout string   `toml:"shutdown_timeout"`
	StdinShutdown   *bool    `toml:"stdin_shutdown"`
	ResourceBase    string   `toml:"resource_base"`
	LogConfig       string   `toml:"log_config"`
	WebSocket       *bool    `toml:"websocket"`
	Metrics         *bool    `toml:"metrics"`
	ServerClasses   []string `toml:"server_classes"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns the default configuration file path.
// Returns ~/.webrun/config.toml if user home directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".webrun", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *runner.Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setInt("port", fc.HTTPPort, &cfg.Port)
	s.setString("host", fc.HTTPHost, &cfg.Host)
	s.setString("context-path", fc.ContextPath, &cfg.ContextPath)
	s.setString("resource-base", fc.ResourceBase, &cfg.ResourceBase)
	s.setString("log-config", fc.LogConfig, &cfg.LogConfig)

	if err := s.setTimeout("shutdown-timeout", fc.ShutdownTimeout, &cfg.ShutdownTimeout); err != nil {
		return err
	}

	s.setBool("secure-cookies", fc.SecureCookies, &cfg.UseSecureCookies)
	s.setBool("stdin-shutdown", fc.StdinShutdown, &cfg.UseStdInShutdown)
	s.setBool("websocket", fc.WebSocket, &cfg.WebSocket)
	s.setBool("metrics", fc.Metrics, &cfg.Metrics)

	var classes []string
	s.setStrings("server-classes", fc.ServerClasses, &classes)
	if classes != nil {
		cfg.ServerClasses = webapp.ClassRules(classes)
	}

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

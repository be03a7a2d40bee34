package log

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// DefaultConfigFile is the log configuration file looked up in the working
// directory when no explicit path is configured.
const DefaultConfigFile = "logging.toml"

// Output formats.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// FileConfig is the content of the log configuration file.
type FileConfig struct {
	Level   string `toml:"level"`
	Format  string `toml:"format"`
	Service string `toml:"service"`
}

// DefaultFileConfig returns the configuration used when no file exists.
func DefaultFileConfig() FileConfig {
	return FileConfig{
		Level:  "info",
		Format: FormatConsole,
	}
}

// ResolveConfigPath returns path, or DefaultConfigFile in the current working
// directory when path is empty.
func ResolveConfigPath(path string) string {
	if path != "" {
		return path
	}
	if wd, err := os.Getwd(); err == nil {
		return filepath.Join(wd, DefaultConfigFile)
	}
	return DefaultConfigFile
}

// LoadFileConfig reads the log configuration file at path. A missing file
// yields DefaultFileConfig and no error. Empty keys keep their defaults.
func LoadFileConfig(path string) (FileConfig, error) {
	fc := DefaultFileConfig()

	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fc, nil
	}
	if err != nil {
		return fc, fmt.Errorf("read log config %s: %w", path, err)
	}

	var parsed FileConfig
	if err := toml.Unmarshal(b, &parsed); err != nil {
		return fc, fmt.Errorf("parse log config %s: %w", path, err)
	}
	if parsed.Level != "" {
		fc.Level = parsed.Level
	}
	if parsed.Format != "" {
		fc.Format = parsed.Format
	}
	fc.Service = parsed.Service
	return fc, nil
}

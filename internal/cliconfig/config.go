package cliconfig

import (
	"fmt"
	"strconv"
	"time"

	"github.com/bft-labs/webrun/pkg/runner"
)

// DefaultConfig returns the runner defaults.
func DefaultConfig() runner.Config {
	return runner.DefaultConfig()
}

// Load layers configuration onto cfg: the TOML file at cfgPath (or the
// default path when empty), then the environment, then validation. Flags
// named in changed keep their command-line values. An explicitly named
// config file that does not exist is an error; a missing default file is
// skipped.
func Load(cfg *runner.Config, cfgPath string, changed map[string]bool, lookup runner.LookupFunc) error {
	cfgFile := cfgPath
	if cfgFile == "" {
		cfgFile = DefaultConfigPath()
	}

	switch {
	case cfgFile != "" && FileExists(cfgFile):
		fc, err := LoadFileConfig(cfgFile)
		if err != nil {
			return &runner.ConfigurationError{Op: "load config", Err: err}
		}
		if err := ApplyFileConfig(cfg, fc, changed); err != nil {
			return &runner.ConfigurationError{Op: "apply config", Err: err}
		}
	case cfgPath != "":
		return &runner.ConfigurationError{Op: "load config", Err: fmt.Errorf("%s does not exist", cfgPath)}
	}

	// Environment overrides file config but not flags (checked via changed map)
	if err := runner.ApplyEnv(cfg, changed, lookup); err != nil {
		return err
	}

	return cfg.Validate()
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

// newConfigSetter creates a new setter with the given changed flags map.
func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setTimeout parses a timeout given either as milliseconds ("12000") or as a
// Go duration ("12s").
func (s *configSetter) setTimeout(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	if ms, err := strconv.ParseInt(value, 10, 64); err == nil {
		*dst = time.Duration(ms) * time.Millisecond
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setStrings sets a list value if not nil and flag not changed.
func (s *configSetter) setStrings(flag string, value []string, dst *[]string) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = append([]string(nil), value...)
}

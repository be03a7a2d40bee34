package runner

import (
	"errors"
	"fmt"
)

// Process exit codes.
const (
	ExitOK    = 0
	ExitFatal = 100
)

// ErrAlreadyStarted is returned when Start is called twice.
var ErrAlreadyStarted = errors.New("runner: already started")

// ConfigurationError reports invalid configuration or a failure to attach a
// capability or register an endpoint. It is fatal at startup.
type ConfigurationError struct {
	Op  string
	Err error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %v", e.Op, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// StartupError reports that the server could not be started.
type StartupError struct {
	Addr string
	Err  error
}

func (e *StartupError) Error() string {
	return fmt.Sprintf("start server on %s: %v", e.Addr, e.Err)
}

func (e *StartupError) Unwrap() error { return e.Err }

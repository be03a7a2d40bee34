package lifecycle

import (
	"errors"
	"fmt"
)

// ErrDrainInterrupted is returned by Coordinator.Shutdown when waiting for
// active requests was cancelled. The server was still stopped.
var ErrDrainInterrupted = errors.New("lifecycle: drain interrupted")

// ShutdownError reports that the server raised while stopping. The process
// cannot continue in a half-stopped state.
type ShutdownError struct {
	Err error
}

func (e *ShutdownError) Error() string {
	return fmt.Sprintf("shutdown failed: %v", e.Err)
}

func (e *ShutdownError) Unwrap() error { return e.Err }

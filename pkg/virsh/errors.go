package virsh

import (
	"gitlab.com/tozd/go/errors"
)

// Failure classes for tool invocations. Callers classify with errors.Is /
// errors.As; everything else surfaced by Run is a wrapped context error.
var (
	// ErrToolNotInstalled means the external binary is absent. Fatal, never
	// retried.
	ErrToolNotInstalled = errors.New("virsh is not installed on this host")

	// ErrTimeout means the invocation exceeded the endpoint timeout and the
	// process was killed.
	ErrTimeout = errors.New("virsh command timed out")

	// ErrQueueSaturated means no concurrency slot became available within
	// the admission window.
	ErrQueueSaturated = errors.New("virsh command queue saturated")
)

// ProcessError is a nonzero exit from the tool. Output carries the combined
// stdout+stderr diagnostic text.
type ProcessError struct {
	Output string
}

func (e *ProcessError) Error() string {
	if e.Output == "" {
		return "virsh command failed"
	}
	return e.Output
}

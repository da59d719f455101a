package host

import (
	"errors"
	"fmt"
)

var (
	ErrAlreadyBooted  = errors.New("host already booted")
	ErrNotReady       = errors.New("host not ready")
	ErrSessionBusy    = errors.New("session busy")
	ErrMalformedValue = errors.New("malformed value")
)

// BootstrapError is the terminal failure of Boot. State is the stage that
// failed; Err keeps the underlying loader, stager, or engine error.
type BootstrapError struct {
	State State
	Err   error
}

func (e *BootstrapError) Error() string {
	return fmt.Sprintf("boot failed while %s: %v", e.State, e.Err)
}

func (e *BootstrapError) Unwrap() error {
	return e.Err
}

// ExecutionError is a failure scoped to one Run.
type ExecutionError struct {
	Op  string
	Err error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// panicError carries a recovered panic value.
type panicError struct {
	value any
}

func (p panicError) Error() string {
	return fmt.Sprintf("panic: %v", p.value)
}

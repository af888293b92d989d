package coordinator

import (
	"context"
	"errors"
	"fmt"

	"github.com/entrhq/kiosk/pkg/browser"
)

var (
	// ErrEmptyAddress rejects a reconfiguration without a target address.
	ErrEmptyAddress = errors.New("target address is required")

	// ErrTargetNotAllowed rejects an address outside the target policy.
	ErrTargetNotAllowed = errors.New("target address is not allowed")

	// ErrInvalidState is returned when an operation is not valid in the
	// coordinator's current state.
	ErrInvalidState = errors.New("invalid coordinator state")

	// ErrOpenTimeout matches a SessionOpenError caused by running out of time.
	ErrOpenTimeout = errors.New("session open timed out")
)

// ConfigSaveError means the new target could not be persisted. The running
// session was left alone.
type ConfigSaveError struct {
	Address string
	Err     error
}

func (e *ConfigSaveError) Error() string {
	return fmt.Sprintf("failed to persist target %s: %v", e.Address, e.Err)
}

func (e *ConfigSaveError) Unwrap() error {
	return e.Err
}

// SessionOpenError means no session could be opened at Address.
type SessionOpenError struct {
	Address string
	Err     error
}

func (e *SessionOpenError) Error() string {
	if e.Timeout() {
		return fmt.Sprintf("timed out opening session at %s: %v", e.Address, e.Err)
	}
	return fmt.Sprintf("failed to open session at %s: %v", e.Address, e.Err)
}

func (e *SessionOpenError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the open ran out of time.
func (e *SessionOpenError) Timeout() bool {
	return errors.Is(e.Err, browser.ErrTimeout) || errors.Is(e.Err, context.DeadlineExceeded)
}

// Is lets errors.Is(err, ErrOpenTimeout) single out timeouts.
func (e *SessionOpenError) Is(target error) bool {
	return target == ErrOpenTimeout && e.Timeout()
}

// SessionCloseError means the previous session reported an error while
// closing. It never stops a reconfiguration.
type SessionCloseError struct {
	SessionID string
	Err       error
}

func (e *SessionCloseError) Error() string {
	return fmt.Sprintf("failed to close session %s: %v", e.SessionID, e.Err)
}

func (e *SessionCloseError) Unwrap() error {
	return e.Err
}

// Package errdefs defines the error classes used across coretoolbox.
// Errors are classified by wrapping one of the sentinel values below, so
// callers can sort failures with errors.Is without string matching.
package errdefs

import (
	"errors"
	"fmt"
)

var (
	// ErrConfig indicates missing or invalid configuration, such as a
	// malformed state environment variable.
	ErrConfig = errors.New("invalid configuration")
	// ErrMount indicates a failed bind mount or symlink primitive.
	ErrMount = errors.New("mount failure")
	// ErrRuntime indicates a failed call into the external container runtime.
	ErrRuntime = errors.New("container runtime failure")
	// ErrStateConflict indicates that observed container or image state does
	// not match what the requested operation needs.
	ErrStateConflict = errors.New("state conflict")
)

func wrap(sentinel error, format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), sentinel)
}

// Config returns a formatted error wrapping ErrConfig.
func Config(format string, args ...interface{}) error {
	return wrap(ErrConfig, format, args...)
}

// Mount returns a formatted error wrapping ErrMount.
func Mount(format string, args ...interface{}) error {
	return wrap(ErrMount, format, args...)
}

// Runtime returns a formatted error wrapping ErrRuntime.
func Runtime(format string, args ...interface{}) error {
	return wrap(ErrRuntime, format, args...)
}

// StateConflict returns a formatted error wrapping ErrStateConflict.
func StateConflict(format string, args ...interface{}) error {
	return wrap(ErrStateConflict, format, args...)
}

func IsConfig(err error) bool        { return errors.Is(err, ErrConfig) }
func IsMount(err error) bool         { return errors.Is(err, ErrMount) }
func IsRuntime(err error) bool       { return errors.Is(err, ErrRuntime) }
func IsStateConflict(err error) bool { return errors.Is(err, ErrStateConflict) }

package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNoMatch indicates no cached response exists for a request.
	ErrNoMatch = errors.New("no cached response")
	// ErrInvalidTransition indicates a lifecycle state change that is not allowed.
	ErrInvalidTransition = errors.New("invalid worker state transition")
	// ErrNotConfigured indicates a worker missing its store or network.
	ErrNotConfigured = errors.New("worker is not configured")
)

// InstallError reports the precache fetch that aborted an install.
type InstallError struct {
	URL string
	Err error
}

func (e *InstallError) Error() string {
	if e == nil {
		return "install failed"
	}
	return fmt.Sprintf("precache %s: %v", e.URL, e.Err)
}

func (e *InstallError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// StatusError reports a non-success precache response.
type StatusError struct {
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Status)
}

// Package apperr classifies failures at the turn boundary so handlers can map
// them to status codes and fixed user-facing messages.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// ValidationError is a client mistake; its Message is safe to show.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// UpstreamError wraps a failed call to a model or image API.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// PersistenceError wraps a failed read or write against the data store.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func Validation(msg string) error {
	return &ValidationError{Message: msg}
}

func Upstream(op string, err error) error {
	if err == nil {
		return nil
	}
	return &UpstreamError{Op: op, Err: err}
}

func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Err: err}
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func IsUpstream(err error) bool {
	var u *UpstreamError
	return errors.As(err, &u)
}

func IsPersistence(err error) bool {
	var p *PersistenceError
	return errors.As(err, &p)
}

// StatusCode maps an error to the HTTP status a handler should answer with.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case IsValidation(err):
		return http.StatusBadRequest
	case IsUpstream(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns text that may be shown to the end user; only
// validation messages pass through, everything else gets fallback.
func PublicMessage(err error, fallback string) string {
	var v *ValidationError
	if errors.As(err, &v) {
		return v.Message
	}
	return fallback
}

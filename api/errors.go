// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error types and error handling utilities for hioload-httpd.

package api

import (
	"errors"
	"fmt"
)

// Common errors used across the module.
var (
	ErrWouldBlock        = errors.New("operation would block")
	ErrHeadTooLarge      = errors.New("request head too large")
	ErrClosed            = errors.New("use of closed resource")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrResourceExhausted = errors.New("resource exhausted")
	ErrSpawnFailed       = errors.New("worker spawn failed")
	ErrNotSupported      = errors.New("operation not supported")
)

// ErrorCode represents specific error conditions in the module.
type ErrorCode int

const (
	ErrCodeOK ErrorCode = iota
	ErrCodeInvalidArgument
)

// Error represents a structured error with code and context.
type Error struct {
	Code    ErrorCode
	Message string
	Context map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if len(e.Context) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (context: %+v)", e.Message, e.Context)
}

// Unwrap maps the code onto the matching sentinel so callers can use errors.Is.
func (e *Error) Unwrap() error {
	if e.Code == ErrCodeInvalidArgument {
		return ErrInvalidArgument
	}
	return nil
}

// NewError creates a new structured error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Context: make(map[string]any),
	}
}

// WithContext adds context information to the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

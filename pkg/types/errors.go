// Package types defines error types
package types

import (
	"errors"
	"fmt"
	"reflect"
)

// Predefined errors
var (
	// ErrBodyNotReplayable indicates a request body cannot be rebuilt for another attempt
	ErrBodyNotReplayable = errors.New("request body is not replayable")

	// ErrUnresolvedPlaceholder indicates a template token names no declared argument
	ErrUnresolvedPlaceholder = errors.New("unresolved placeholder")

	// ErrInvalidPolicy indicates a malformed or out-of-range retry policy
	ErrInvalidPolicy = errors.New("invalid retry policy")

	// ErrInvalidProxy indicates a malformed proxy configuration
	ErrInvalidProxy = errors.New("invalid proxy configuration")

	// ErrArgumentCount indicates a call supplied a different number of arguments than declared
	ErrArgumentCount = errors.New("argument count mismatch")
)

// TemplateError reports a URL or header template that cannot be compiled
type TemplateError struct {
	// Template is the raw template text
	Template string

	// Token is the offending placeholder, if any
	Token string

	// Reason describes the problem
	Reason string
}

// Error implements the error interface
func (e *TemplateError) Error() string {
	if e.Token != "" {
		return fmt.Sprintf("template %q: %s {%s}", e.Template, e.Reason, e.Token)
	}
	return fmt.Sprintf("template %q: %s", e.Template, e.Reason)
}

// Is reports unresolved placeholders as ErrUnresolvedPlaceholder
func (e *TemplateError) Is(target error) bool {
	return target == ErrUnresolvedPlaceholder && e.Token != ""
}

// PolicyConfigError reports an invalid retry policy or retry literal
type PolicyConfigError struct {
	// Literal is the source literal, empty for programmatic policies
	Literal string

	// Field is the offending key, if known
	Field string

	// Reason describes the problem
	Reason string
}

// Error implements the error interface
func (e *PolicyConfigError) Error() string {
	msg := "retry policy"
	if e.Literal != "" {
		msg += fmt.Sprintf(" %q", e.Literal)
	}
	if e.Field != "" {
		msg += fmt.Sprintf(": field %s", e.Field)
	}
	return msg + ": " + e.Reason
}

// Is matches ErrInvalidPolicy
func (e *PolicyConfigError) Is(target error) bool {
	return target == ErrInvalidPolicy
}

// ProxyConfigError reports a proxy that cannot be used
type ProxyConfigError struct {
	URL    string
	Reason string
	Cause  error
}

// Error implements the error interface
func (e *ProxyConfigError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("proxy %q: %s: %v", e.URL, e.Reason, e.Cause)
	}
	return fmt.Sprintf("proxy %q: %s", e.URL, e.Reason)
}

// Unwrap returns the underlying error
func (e *ProxyConfigError) Unwrap() error {
	return e.Cause
}

// Is matches ErrInvalidProxy
func (e *ProxyConfigError) Is(target error) bool {
	return target == ErrInvalidProxy
}

// Scope identifies which interceptor slot raised an error
type Scope string

const (
	ScopeGlobal   Scope = "global"
	ScopeCallSite Scope = "call-site"
)

// Phase identifies the hook that raised an error
type Phase string

const (
	PhaseBefore Phase = "before"
	PhaseAfter  Phase = "after"
)

// PipelineError represents an interceptor hook failure
type PipelineError struct {
	// Scope is the interceptor slot that failed
	Scope Scope

	// Phase is the hook that failed
	Phase Phase

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface
func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s interceptor %s hook: %v", e.Scope, e.Phase, e.Cause)
}

// Unwrap returns the underlying error
func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// NewPipelineError creates a new interceptor error
func NewPipelineError(scope Scope, phase Phase, cause error) *PipelineError {
	return &PipelineError{Scope: scope, Phase: phase, Cause: cause}
}

// TransportError represents a transport failure that exhausted its attempts
type TransportError struct {
	// Attempts is the number of attempts made
	Attempts int

	// Cause is the last transport error
	Cause error
}

// Error implements the error interface
func (e *TransportError) Error() string {
	return fmt.Sprintf("transport failed after %d attempt(s): %v", e.Attempts, e.Cause)
}

// Unwrap returns the underlying error
func (e *TransportError) Unwrap() error {
	return e.Cause
}

// NonRetryableBodyError is returned when a retry needs a body that cannot be rebuilt
type NonRetryableBodyError struct {
	// Attempt is the one-based attempt that could not be issued
	Attempt int
}

// Error implements the error interface
func (e *NonRetryableBodyError) Error() string {
	return fmt.Sprintf("attempt %d: %v", e.Attempt, ErrBodyNotReplayable)
}

// Unwrap returns ErrBodyNotReplayable
func (e *NonRetryableBodyError) Unwrap() error {
	return ErrBodyNotReplayable
}

// HTTPStatusError represents a terminal non-success response
type HTTPStatusError struct {
	StatusCode int
	Attempts   int
	Body       []byte
}

// Error implements the error interface
func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("unexpected status %d after %d attempt(s)", e.StatusCode, e.Attempts)
}

// DecodeError reports a response body that could not be converted to the result type
type DecodeError struct {
	Target reflect.Type
	Cause  error
}

// Error implements the error interface
func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode response into %v: %v", e.Target, e.Cause)
}

// Unwrap returns the underlying error
func (e *DecodeError) Unwrap() error {
	return e.Cause
}

// EncodeError reports a request body that could not be serialized
type EncodeError struct {
	ContentType ContentType
	Cause       error
}

// Error implements the error interface
func (e *EncodeError) Error() string {
	return fmt.Sprintf("encode %s body: %v", e.ContentType, e.Cause)
}

// Unwrap returns the underlying error
func (e *EncodeError) Unwrap() error {
	return e.Cause
}

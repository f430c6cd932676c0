// Package types defines core interfaces and types for the request pipeline
package types

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Verb defines the semantic operation a descriptor performs
type Verb int

const (
	// VerbRead fetches a resource (GET)
	VerbRead Verb = iota
	// VerbCreate creates a resource (POST)
	VerbCreate
	// VerbReplace replaces a resource (PUT)
	VerbReplace
	// VerbDelete removes a resource (DELETE)
	VerbDelete
)

// String returns the string representation of Verb
func (v Verb) String() string {
	switch v {
	case VerbRead:
		return "read"
	case VerbCreate:
		return "create"
	case VerbReplace:
		return "replace"
	case VerbDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Method returns the HTTP method for the verb
func (v Verb) Method() string {
	switch v {
	case VerbCreate:
		return http.MethodPost
	case VerbReplace:
		return http.MethodPut
	case VerbDelete:
		return http.MethodDelete
	default:
		return http.MethodGet
	}
}

// IsIdempotent reports whether repeating the verb has the same effect as issuing it once
func (v Verb) IsIdempotent() bool {
	return v != VerbCreate
}

// HasBody reports whether the verb carries its body parameter as a request payload.
// Read and Delete send it as a query string instead.
func (v Verb) HasBody() bool {
	return v == VerbCreate || v == VerbReplace
}

// ParseVerb accepts verb names and their HTTP method equivalents
func ParseVerb(s string) (Verb, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "read", "get":
		return VerbRead, nil
	case "create", "post":
		return VerbCreate, nil
	case "replace", "put":
		return VerbReplace, nil
	case "delete":
		return VerbDelete, nil
	default:
		return VerbRead, fmt.Errorf("unknown verb %q", s)
	}
}

// ContentType defines how a request body is serialized
type ContentType string

const (
	ContentTypeNone      ContentType = ""
	ContentTypeJSON      ContentType = "application/json"
	ContentTypeForm      ContentType = "application/x-www-form-urlencoded"
	ContentTypeMultipart ContentType = "multipart/form-data"
)

// ParseContentType accepts short names (json, form, form_urlencoded, multipart,
// form_multipart) or full media types
func ParseContentType(s string) (ContentType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return ContentTypeNone, nil
	case "json", string(ContentTypeJSON):
		return ContentTypeJSON, nil
	case "form", "form_urlencoded", string(ContentTypeForm):
		return ContentTypeForm, nil
	case "multipart", "form_multipart", string(ContentTypeMultipart):
		return ContentTypeMultipart, nil
	default:
		return ContentTypeNone, fmt.Errorf("unsupported content type %q", s)
	}
}

// Result defines the result of asynchronous execution
type Result[R any] struct {
	// Value is the execution result
	Value R

	// Error is the execution error
	Error error

	// Attempts is the number of transport attempts made
	Attempts int

	// Duration is the execution time
	Duration time.Duration
}

// BatchResult defines the result of batch execution
type BatchResult[R any] struct {
	// Index is the index of the argument set
	Index int

	// Value is the execution result
	Value R

	// Error is the execution error
	Error error

	// Duration is the execution time
	Duration time.Duration
}

// Package pipeline provides the interceptor contract and its composition helpers
package pipeline

import (
	"bytes"
	"context"
	"io"
	"net/http"
)

// Interceptor observes and transforms one outbound exchange. S is the
// client's application state type; state is nil when the client has none.
//
// Implementations are shared by every concurrent call of the client that
// owns them and must not keep per-call data in their own fields.
type Interceptor[S any] interface {
	// BeforeRequest runs before the first attempt. It may rewrite the request
	// and return a replacement body. Returning an error aborts the call.
	BeforeRequest(ctx context.Context, req *http.Request, body Body, state *S) (*http.Request, Body, error)

	// AfterResponse runs once on the final response, after retries.
	AfterResponse(ctx context.Context, resp *http.Response, state *S) (*http.Response, error)
}

// Body is a read-only view over a serialized request payload. It is passed
// between hooks without copying; a hook that changes the payload returns a
// new Body built with NewBody.
type Body struct {
	data []byte
}

// NewBody wraps data without copying. The caller must not modify data afterwards.
func NewBody(data []byte) Body {
	return Body{data: data}
}

// Bytes returns the shared payload. It must not be modified.
func (b Body) Bytes() []byte {
	return b.data
}

// Clone returns a private copy of the payload
func (b Body) Clone() []byte {
	if b.data == nil {
		return nil
	}
	out := make([]byte, len(b.data))
	copy(out, b.data)
	return out
}

// Len returns the payload size
func (b Body) Len() int {
	return len(b.data)
}

// IsEmpty reports whether there is no payload
func (b Body) IsEmpty() bool {
	return len(b.data) == 0
}

// Reader returns a fresh reader positioned at the start of the payload
func (b Body) Reader() io.ReadCloser {
	return io.NopCloser(bytes.NewReader(b.data))
}

// String returns the payload as text
func (b Body) String() string {
	return string(b.data)
}

// BeforeFunc is the function form of Interceptor.BeforeRequest
type BeforeFunc[S any] func(ctx context.Context, req *http.Request, body Body, state *S) (*http.Request, Body, error)

// AfterFunc is the function form of Interceptor.AfterResponse
type AfterFunc[S any] func(ctx context.Context, resp *http.Response, state *S) (*http.Response, error)

// Funcs adapts plain functions to Interceptor. A nil hook passes its input through.
type Funcs[S any] struct {
	Before BeforeFunc[S]
	After  AfterFunc[S]
}

// BeforeRequest implements Interceptor
func (f Funcs[S]) BeforeRequest(ctx context.Context, req *http.Request, body Body, state *S) (*http.Request, Body, error) {
	if f.Before == nil {
		return req, body, nil
	}
	return f.Before(ctx, req, body, state)
}

// AfterResponse implements Interceptor
func (f Funcs[S]) AfterResponse(ctx context.Context, resp *http.Response, state *S) (*http.Response, error) {
	if f.After == nil {
		return resp, nil
	}
	return f.After(ctx, resp, state)
}

// Noop is an interceptor that changes nothing
type Noop[S any] struct{}

// BeforeRequest implements Interceptor
func (Noop[S]) BeforeRequest(ctx context.Context, req *http.Request, body Body, state *S) (*http.Request, Body, error) {
	return req, body, nil
}

// AfterResponse implements Interceptor
func (Noop[S]) AfterResponse(ctx context.Context, resp *http.Response, state *S) (*http.Response, error) {
	return resp, nil
}

// chain runs several interceptors in one slot
type chain[S any] []Interceptor[S]

// Chain composes interceptors into one. BeforeRequest hooks run in the given
// order and AfterResponse hooks in reverse, so the first interceptor wraps the rest.
func Chain[S any](interceptors ...Interceptor[S]) Interceptor[S] {
	c := make(chain[S], 0, len(interceptors))
	for _, i := range interceptors {
		if i != nil {
			c = append(c, i)
		}
	}
	if len(c) == 1 {
		return c[0]
	}
	return c
}

func (c chain[S]) BeforeRequest(ctx context.Context, req *http.Request, body Body, state *S) (*http.Request, Body, error) {
	var err error
	for _, i := range c {
		if req, body, err = i.BeforeRequest(ctx, req, body, state); err != nil {
			return nil, Body{}, err
		}
	}
	return req, body, nil
}

func (c chain[S]) AfterResponse(ctx context.Context, resp *http.Response, state *S) (*http.Response, error) {
	var err error
	for idx := len(c) - 1; idx >= 0; idx-- {
		if resp, err = c[idx].AfterResponse(ctx, resp, state); err != nil {
			return nil, err
		}
	}
	return resp, nil
}

// Package pipeline provides the interceptor pipeline for one descriptor
package pipeline

import (
	"context"
	"errors"
	"net/http"

	"github.com/jzx17/httpipe/pkg/types"
)

var (
	// ErrNilRequest is reported when an outbound hook drops the request
	ErrNilRequest = errors.New("interceptor returned a nil request")

	// ErrNilResponse is reported when an inbound hook drops the response
	ErrNilResponse = errors.New("interceptor returned a nil response")
)

// Pipeline binds the client-wide interceptor, a descriptor's call-site
// interceptor and the client's state. Outbound hooks run global first;
// inbound hooks run call-site first. Either slot may be nil.
type Pipeline[S any] struct {
	global   Interceptor[S]
	callSite Interceptor[S]
	state    *S
}

// New creates a pipeline. state may be nil.
func New[S any](global, callSite Interceptor[S], state *S) *Pipeline[S] {
	return &Pipeline[S]{
		global:   global,
		callSite: callSite,
		state:    state,
	}
}

// Before runs the outbound hooks. The first failing hook aborts the call and
// its error is reported as a *types.PipelineError. A hook returning a nil
// request without an error fails with ErrNilRequest.
func (p *Pipeline[S]) Before(ctx context.Context, req *http.Request, body Body) (*http.Request, Body, error) {
	var err error
	if p.global != nil {
		if req, body, err = before(ctx, p.global, req, body, p.state); err != nil {
			return nil, Body{}, types.NewPipelineError(types.ScopeGlobal, types.PhaseBefore, err)
		}
	}
	if p.callSite != nil {
		if req, body, err = before(ctx, p.callSite, req, body, p.state); err != nil {
			return nil, Body{}, types.NewPipelineError(types.ScopeCallSite, types.PhaseBefore, err)
		}
	}
	return req, body, nil
}

// After runs the inbound hooks on the final response. A hook returning a nil
// response without an error fails with ErrNilResponse.
func (p *Pipeline[S]) After(ctx context.Context, resp *http.Response) (*http.Response, error) {
	var err error
	if p.callSite != nil {
		if resp, err = after(ctx, p.callSite, resp, p.state); err != nil {
			return nil, types.NewPipelineError(types.ScopeCallSite, types.PhaseAfter, err)
		}
	}
	if p.global != nil {
		if resp, err = after(ctx, p.global, resp, p.state); err != nil {
			return nil, types.NewPipelineError(types.ScopeGlobal, types.PhaseAfter, err)
		}
	}
	return resp, nil
}

func before[S any](ctx context.Context, i Interceptor[S], req *http.Request, body Body, state *S) (*http.Request, Body, error) {
	req, body, err := i.BeforeRequest(ctx, req, body, state)
	if err == nil && req == nil {
		err = ErrNilRequest
	}
	return req, body, err
}

func after[S any](ctx context.Context, i Interceptor[S], resp *http.Response, state *S) (*http.Response, error) {
	resp, err := i.AfterResponse(ctx, resp, state)
	if err == nil && resp == nil {
		err = ErrNilResponse
	}
	return resp, err
}

package interceptors

import (
	"context"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/jzx17/httpipe/pkg/pipeline"
)

// RateLimited is implemented by application state that owns a client-wide limiter
type RateLimited interface {
	Limiter() *rate.Limiter
}

// RateLimit waits for a token from the state's limiter before the request is
// sent, instantiated as RateLimit[S, *S]. Calls block until a token is
// available or ctx is done. Without state or limiter the request proceeds
// immediately.
type RateLimit[S any, PS interface {
	*S
	RateLimited
}] struct{}

// BeforeRequest implements pipeline.Interceptor
func (RateLimit[S, PS]) BeforeRequest(ctx context.Context, req *http.Request, body pipeline.Body, state *S) (*http.Request, pipeline.Body, error) {
	if state == nil {
		return req, body, nil
	}
	limiter := PS(state).Limiter()
	if limiter == nil {
		return req, body, nil
	}
	if err := limiter.Wait(ctx); err != nil {
		return nil, pipeline.Body{}, err
	}
	return req, body, nil
}

// AfterResponse implements pipeline.Interceptor
func (RateLimit[S, PS]) AfterResponse(ctx context.Context, resp *http.Response, state *S) (*http.Response, error) {
	return resp, nil
}

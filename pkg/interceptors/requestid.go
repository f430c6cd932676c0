// Package interceptors provides ready-made interceptors. All of them are
// usable as zero values, so they can be obtained from a client's interceptor
// cache, and all of them tolerate absent state.
package interceptors

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/jzx17/httpipe/pkg/pipeline"
)

// RequestIDHeader is the header carrying the request identifier
const RequestIDHeader = "X-Request-ID"

// RequestID stamps every outbound request with a fresh UUID unless the
// request already carries one. The identifier is shared by all attempts.
type RequestID[S any] struct{}

// BeforeRequest implements pipeline.Interceptor
func (RequestID[S]) BeforeRequest(ctx context.Context, req *http.Request, body pipeline.Body, state *S) (*http.Request, pipeline.Body, error) {
	if req.Header.Get(RequestIDHeader) == "" {
		req.Header.Set(RequestIDHeader, uuid.NewString())
	}
	return req, body, nil
}

// AfterResponse implements pipeline.Interceptor
func (RequestID[S]) AfterResponse(ctx context.Context, resp *http.Response, state *S) (*http.Response, error) {
	return resp, nil
}

package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/rs/zerolog"

	"github.com/jzx17/httpipe/pkg/observe"
	"github.com/jzx17/httpipe/pkg/params"
	"github.com/jzx17/httpipe/pkg/pipeline"
	"github.com/jzx17/httpipe/pkg/retry"
	"github.com/jzx17/httpipe/pkg/types"
)

// Call executes the endpoint with args bound to the declared parameters in
// order and decodes a 2xx response into T.
//
// Non-2xx final responses are returned as *types.HTTPStatusError. Interceptor
// failures are *types.PipelineError and exhausted transport failures are
// *types.TransportError.
func (e *Endpoint[T, S]) Call(ctx context.Context, args ...any) (T, error) {
	value, _, err := e.call(ctx, args)
	return value, err
}

// call wraps one call with its span, context logger and metrics
func (e *Endpoint[T, S]) call(ctx context.Context, args []any) (T, int, error) {
	c := e.client

	ctx, span := c.tracer.StartCall(ctx, e.name, e.method)
	if zerolog.Ctx(ctx).GetLevel() == zerolog.Disabled {
		ctx = c.logger.WithContext(ctx)
	}

	start := c.clock.Now()
	value, status, attempts, err := e.exchange(ctx, args)

	rec := observe.Call{
		Endpoint:   e.name,
		Method:     e.method,
		StatusCode: status,
		Attempts:   attempts,
		Duration:   c.clock.Since(start),
		Err:        err,
	}
	if c.recorder != nil {
		c.recorder.RecordCall(ctx, rec)
	}
	c.tracer.EndCall(span, rec)

	return value, attempts, err
}

// exchange runs bind, before hooks, attempts, after hooks and decode
func (e *Endpoint[T, S]) exchange(ctx context.Context, args []any) (value T, status, attempts int, err error) {
	if len(args) != len(e.params) {
		err = fmt.Errorf("%s: %w: want %d, got %d", e.name, types.ErrArgumentCount, len(e.params), len(args))
		return
	}
	ctx = params.WithBindings(ctx, params.Bind(e.params, args))

	req, body, err := e.build(ctx, args)
	if err != nil {
		return
	}

	req, body, err = e.pipeline.Before(ctx, req, body)
	if err != nil {
		return
	}

	result, err := retry.Execute(e.executor, ctx, e.verb.IsIdempotent(), func(ctx context.Context, attempt int) (*http.Response, int, error) {
		return e.attempt(ctx, req, body, attempt)
	})
	attempts = result.Attempts
	if err != nil {
		return
	}

	status = result.Value.StatusCode
	resp, err := e.pipeline.After(ctx, result.Value)
	if err != nil {
		return
	}
	status = resp.StatusCode

	data, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		err = &types.DecodeError{Target: reflect.TypeFor[T](), Cause: err}
		return
	}

	if status < 200 || status > 299 {
		err = &types.HTTPStatusError{StatusCode: status, Attempts: attempts, Body: data}
		return
	}

	value, err = decode[T](status, data)
	return
}

// build renders the request and serializes the body parameter
func (e *Endpoint[T, S]) build(ctx context.Context, args []any) (*http.Request, pipeline.Body, error) {
	target := e.client.baseURL + e.url.Render(args)

	var (
		payload   []byte
		mediaType string
	)
	if e.bodyIndex >= 0 {
		v := args[e.bodyIndex]
		if e.verb.HasBody() {
			var err error
			if payload, mediaType, err = encodeBody(e.contentType, v); err != nil {
				return nil, pipeline.Body{}, err
			}
		} else {
			query, err := encodeQuery(v)
			if err != nil {
				return nil, pipeline.Body{}, err
			}
			if query != "" {
				sep := "?"
				if strings.Contains(target, "?") {
					sep = "&"
				}
				target += sep + query
			}
		}
	}

	// the payload travels as a Body view and is attached per attempt
	req, err := http.NewRequestWithContext(ctx, e.method, target, nil)
	if err != nil {
		return nil, pipeline.Body{}, fmt.Errorf("%s: build request: %w", e.name, err)
	}

	for _, h := range e.headers {
		req.Header.Add(h.Render(args))
	}

	if e.verb.HasBody() && e.contentType != types.ContentTypeNone {
		if mediaType == "" {
			mediaType = string(e.contentType)
		}
		// multipart needs its boundary, so the encoder's value always wins
		if e.contentType == types.ContentTypeMultipart || req.Header.Get("Content-Type") == "" {
			req.Header.Set("Content-Type", mediaType)
		}
	}

	return req, pipeline.NewBody(payload), nil
}

// attempt performs one transport attempt. The response body is read fully and
// replaced by an in-memory copy, so abandoned attempts never hold a connection.
func (e *Endpoint[T, S]) attempt(ctx context.Context, req *http.Request, body pipeline.Body, attempt int) (*http.Response, int, error) {
	r := req.Clone(ctx)

	switch {
	case req.Body != nil && req.Body != http.NoBody:
		// a hook installed its own body
		if attempt > 0 {
			if req.GetBody == nil {
				return nil, 0, &types.NonRetryableBodyError{Attempt: attempt + 1}
			}
			rc, err := req.GetBody()
			if err != nil {
				return nil, 0, &types.NonRetryableBodyError{Attempt: attempt + 1}
			}
			r.Body = rc
		}
	case !body.IsEmpty():
		r.Body = body.Reader()
		r.ContentLength = int64(body.Len())
		r.GetBody = func() (io.ReadCloser, error) {
			return body.Reader(), nil
		}
	}

	resp, err := e.doer.Do(r)
	if err != nil {
		return nil, 0, err
	}

	data, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return nil, 0, err
	}

	resp.Body = io.NopCloser(bytes.NewReader(data))
	resp.ContentLength = int64(len(data))
	return resp, resp.StatusCode, nil
}

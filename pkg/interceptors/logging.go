package interceptors

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/jzx17/httpipe/pkg/logger"
	"github.com/jzx17/httpipe/pkg/pipeline"
)

// Logging writes each exchange to the logger carried by ctx (see
// zerolog.Ctx). Credential headers are redacted.
type Logging[S any] struct{}

// BeforeRequest implements pipeline.Interceptor
func (Logging[S]) BeforeRequest(ctx context.Context, req *http.Request, body pipeline.Body, state *S) (*http.Request, pipeline.Body, error) {
	l := zerolog.Ctx(ctx)
	if l.GetLevel() <= zerolog.DebugLevel {
		l.Debug().
			Str("method", req.Method).
			Str("url", req.URL.Redacted()).
			Interface("headers", logger.RedactHeaders(req.Header)).
			Int("body_bytes", body.Len()).
			Msg("outbound request")
	}
	return req, body, nil
}

// AfterResponse implements pipeline.Interceptor
func (Logging[S]) AfterResponse(ctx context.Context, resp *http.Response, state *S) (*http.Response, error) {
	l := zerolog.Ctx(ctx)
	ev := l.Info()
	if resp.StatusCode >= 400 {
		ev = l.Warn()
	}
	ev.Int("status", resp.StatusCode).
		Int64("content_length", resp.ContentLength).
		Msg("inbound response")
	return resp, nil
}

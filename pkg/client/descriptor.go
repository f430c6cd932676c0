package client

import (
	"errors"
	"slices"

	"github.com/jzx17/httpipe/pkg/params"
	"github.com/jzx17/httpipe/pkg/pipeline"
	"github.com/jzx17/httpipe/pkg/retry"
	"github.com/jzx17/httpipe/pkg/transport"
	"github.com/jzx17/httpipe/pkg/types"
)

// Descriptor declares one remote operation
type Descriptor[S any] struct {
	// Name identifies the endpoint in logs, metrics and spans. Defaults to URL.
	Name string

	Verb types.Verb

	// URL is appended to the client base URL. It may hold {name} or {paramN}
	// placeholders; values are inserted verbatim.
	URL string

	// ContentType selects the body encoding. Create and Replace default to JSON
	// when a body parameter is declared.
	ContentType types.ContentType

	// Headers are "Key: Value" lines whose values may hold placeholders
	Headers []string

	// Params names the call arguments in order
	Params []string

	// BodyParam names the argument sent as the request body, or as the query
	// string for Read and Delete
	BodyParam string

	// Retry overrides the client default policy
	Retry *retry.Policy

	// Proxy overrides the client default proxy
	Proxy *transport.Proxy

	// Interceptor names the call-site interceptor type, see Use
	Interceptor InterceptorRef[S]
}

// InterceptorRef refers to a call-site interceptor. Register resolves it
// against the client's interceptor cache.
type InterceptorRef[S any] func(cache *pipeline.Cache[S]) pipeline.Interceptor[S]

// Use refers to the cached instance of interceptor type T. Every descriptor
// naming the same T on one client shares a single instance.
func Use[T any, S any, PT interface {
	*T
	pipeline.Interceptor[S]
}]() InterceptorRef[S] {
	return func(cache *pipeline.Cache[S]) pipeline.Interceptor[S] {
		return pipeline.GetOrCreate[T, S, PT](cache)
	}
}

// ErrUnknownInterceptor is returned for a configured interceptor name without a reference
var ErrUnknownInterceptor = errors.New("unknown interceptor")

// Endpoint is a registered descriptor. It is safe for concurrent use.
type Endpoint[T, S any] struct {
	client *Client[S]

	name        string
	verb        types.Verb
	method      string
	contentType types.ContentType
	url         *params.Template
	headers     []*params.HeaderTemplate
	params      []string
	bodyIndex   int

	doer     transport.Doer
	executor *retry.RetryExecutor
	pipeline *pipeline.Pipeline[S]
}

// Register validates d and binds it to c. Template, policy and proxy errors
// are reported here so a registered endpoint never fails on configuration.
func Register[T, S any](c *Client[S], d Descriptor[S]) (*Endpoint[T, S], error) {
	name := d.Name
	if name == "" {
		name = d.URL
	}

	urlTmpl, err := params.Compile(d.URL, d.Params)
	if err != nil {
		return nil, err
	}

	headers := make([]*params.HeaderTemplate, 0, len(d.Headers))
	for _, h := range d.Headers {
		ht, err := params.CompileHeader(h, d.Params)
		if err != nil {
			return nil, err
		}
		headers = append(headers, ht)
	}

	bodyIndex := -1
	if d.BodyParam != "" {
		bodyIndex = slices.Index(d.Params, d.BodyParam)
		if bodyIndex < 0 {
			return nil, &types.TemplateError{Template: d.BodyParam, Reason: "body parameter is not declared"}
		}
	}

	contentType := d.ContentType
	if contentType == types.ContentTypeNone && bodyIndex >= 0 && d.Verb.HasBody() {
		contentType = types.ContentTypeJSON
	}

	policy := c.policy
	if d.Retry != nil {
		if err := d.Retry.Validate(); err != nil {
			return nil, err
		}
		policy = *d.Retry
	}

	doer := c.doer
	if d.Proxy != nil {
		if doer, err = c.selector.Resolve(d.Proxy); err != nil {
			return nil, err
		}
	}

	var callSite pipeline.Interceptor[S]
	if d.Interceptor != nil {
		callSite = d.Interceptor(c.cache)
	}

	e := &Endpoint[T, S]{
		client:      c,
		name:        name,
		verb:        d.Verb,
		method:      d.Verb.Method(),
		contentType: contentType,
		url:         urlTmpl,
		headers:     headers,
		params:      slices.Clone(d.Params),
		bodyIndex:   bodyIndex,
		doer:        doer,
		executor: retry.NewRetryExecutor(policy,
			retry.WithName(name),
			retry.WithClock(c.clock),
			retry.WithEventHandler(c.events()),
		),
		pipeline: pipeline.New(c.global, callSite, c.state),
	}

	c.logger.Debug().
		Str("endpoint", name).
		Str("method", e.method).
		Str("url", d.URL).
		Stringer("retry", policy).
		Msg("registered endpoint")

	return e, nil
}

// Name returns the endpoint name
func (e *Endpoint[T, S]) Name() string {
	return e.name
}

// Verb returns the endpoint verb
func (e *Endpoint[T, S]) Verb() types.Verb {
	return e.verb
}

// Policy returns the effective retry policy
func (e *Endpoint[T, S]) Policy() retry.Policy {
	return e.executor.Policy()
}

// Stats returns the endpoint's retry statistics
func (e *Endpoint[T, S]) Stats() retry.RetryStats {
	return e.executor.GetStats()
}

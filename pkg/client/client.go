// Package client registers method descriptors against a shared client and
// executes the resulting endpoints.
//
// A Client owns everything that is shared between calls: the base URL, the
// default retry policy, the client-wide interceptor, the interceptor cache,
// the proxy transport selector and the optional application state. Register
// turns a Descriptor into an Endpoint; all configuration errors surface there,
// never on a call.
package client

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jzx17/httpipe/pkg/observe"
	"github.com/jzx17/httpipe/pkg/pipeline"
	"github.com/jzx17/httpipe/pkg/retry"
	"github.com/jzx17/httpipe/pkg/transport"
	"github.com/jzx17/httpipe/pkg/types"
)

// Config holds the client-wide settings
type Config struct {
	// BaseURL is prepended to every rendered URL template
	BaseURL string

	// Timeout bounds each transport attempt. Zero means no timeout.
	Timeout time.Duration

	// Proxy is the default proxy for endpoints without an override
	Proxy *transport.Proxy

	// Retry is the default policy for endpoints without an override
	Retry *retry.Policy
}

// Client is shared by every endpoint registered against it. It is safe for
// concurrent use.
type Client[S any] struct {
	baseURL string
	policy  retry.Policy

	state    *S
	global   pipeline.Interceptor[S]
	cache    *pipeline.Cache[S]
	selector *transport.Selector
	baseDoer transport.Doer
	doer     transport.Doer

	clock    types.Clock
	logger   zerolog.Logger
	recorder observe.Recorder
	tracer   *observe.Tracer
	handlers []retry.EventHandler
}

// Option configures a Client
type Option[S any] func(*Client[S])

// WithState binds application state passed to every interceptor hook
func WithState[S any](state *S) Option[S] {
	return func(c *Client[S]) {
		c.state = state
	}
}

// WithGlobalInterceptor sets the interceptor that runs around every call.
// Several interceptors can share the slot through pipeline.Chain.
func WithGlobalInterceptor[S any](i pipeline.Interceptor[S]) Option[S] {
	return func(c *Client[S]) {
		c.global = i
	}
}

// WithDoer replaces the default transport. Proxied endpoints derive their
// client from d when it is an *http.Client with an *http.Transport, keeping its
// transport settings, redirect policy and jar; any other Doer only serves
// endpoints without a proxy.
func WithDoer[S any](d transport.Doer) Option[S] {
	return func(c *Client[S]) {
		c.baseDoer = d
	}
}

// WithClock sets the clock used for retry delays and call timing
func WithClock[S any](clock types.Clock) Option[S] {
	return func(c *Client[S]) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithLogger sets the logger. Calls without a logger in their context log
// through it, and retries are logged at warn level.
func WithLogger[S any](logger zerolog.Logger) Option[S] {
	return func(c *Client[S]) {
		c.logger = logger
	}
}

// WithMetrics records every call and retry event
func WithMetrics[S any](r observe.Recorder) Option[S] {
	return func(c *Client[S]) {
		c.recorder = r
	}
}

// WithTracer opens a span per call
func WithTracer[S any](t *observe.Tracer) Option[S] {
	return func(c *Client[S]) {
		c.tracer = t
	}
}

// WithEventHandler adds a retry event handler
func WithEventHandler[S any](h retry.EventHandler) Option[S] {
	return func(c *Client[S]) {
		if h != nil {
			c.handlers = append(c.handlers, h)
		}
	}
}

// New creates a client
func New[S any](cfg Config, opts ...Option[S]) (*Client[S], error) {
	c := &Client[S]{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		policy:  retry.DefaultPolicy(),
		cache:   pipeline.NewCache[S](),
		clock:   types.NewRealClock(),
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.baseURL != "" {
		u, err := url.Parse(c.baseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid base url %q: %w", cfg.BaseURL, err)
		}
		if u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("invalid base url %q: scheme and host are required", cfg.BaseURL)
		}
	}

	if cfg.Retry != nil {
		if err := cfg.Retry.Validate(); err != nil {
			return nil, err
		}
		c.policy = *cfg.Retry
	}

	if c.tracer == nil {
		c.tracer = observe.NewTracer(nil)
	}

	if c.baseDoer == nil {
		c.baseDoer = &http.Client{Timeout: cfg.Timeout}
	}
	c.selector = transport.NewSelector(c.baseDoer,
		transport.WithTimeout(cfg.Timeout),
		transport.WithLogger(c.logger),
	)

	c.doer = c.selector.Base()
	if cfg.Proxy != nil {
		d, err := c.selector.Resolve(cfg.Proxy)
		if err != nil {
			return nil, err
		}
		c.doer = d
	}

	return c, nil
}

// Interceptors returns the client's interceptor cache
func (c *Client[S]) Interceptors() *pipeline.Cache[S] {
	return c.cache
}

// State returns the bound application state, nil when absent
func (c *Client[S]) State() *S {
	return c.state
}

// Policy returns the default retry policy
func (c *Client[S]) Policy() retry.Policy {
	return c.policy
}

// Transports returns the number of proxied transports built so far
func (c *Client[S]) Transports() int {
	return c.selector.Len()
}

// events assembles the retry event handler for one endpoint
func (c *Client[S]) events() retry.EventHandler {
	handlers := retry.MultiEventHandler{retry.NewLogEventHandler(c.logger), c.tracer}
	if c.recorder != nil {
		handlers = append(handlers, c.recorder)
	}
	return append(handlers, c.handlers...)
}

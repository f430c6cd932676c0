// Package transport provides the cached per-proxy transport selector
package transport

import (
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Doer executes an HTTP exchange. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Selector maps a descriptor's proxy override to a transport. Transports are
// built lazily on first use, once per distinct configuration, and reused by
// every later call.
type Selector struct {
	base    Doer
	timeout time.Duration
	logger  zerolog.Logger

	group   singleflight.Group
	mu      sync.RWMutex
	clients map[string]*http.Client
}

// SelectorOption configures a Selector
type SelectorOption func(*Selector)

// WithTimeout sets the timeout applied to proxied clients
func WithTimeout(d time.Duration) SelectorOption {
	return func(s *Selector) {
		s.timeout = d
	}
}

// WithLogger sets the logger used when transports are built
func WithLogger(logger zerolog.Logger) SelectorOption {
	return func(s *Selector) {
		s.logger = logger
	}
}

// NewSelector creates a selector. base serves descriptors without an override.
func NewSelector(base Doer, opts ...SelectorOption) *Selector {
	if base == nil {
		base = http.DefaultClient
	}
	s := &Selector{
		base:    base,
		logger:  zerolog.Nop(),
		clients: make(map[string]*http.Client),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Base returns the transport used when no override is given
func (s *Selector) Base() Doer {
	return s.base
}

// Resolve returns the transport for p. A nil p selects the base transport.
func (s *Selector) Resolve(p *Proxy) (Doer, error) {
	if p == nil {
		return s.base, nil
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	key := p.key()

	s.mu.RLock()
	c, ok := s.clients[key]
	s.mu.RUnlock()
	if ok {
		return c, nil
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		s.mu.RLock()
		c, ok := s.clients[key]
		s.mu.RUnlock()
		if ok {
			return c, nil
		}

		c, err := s.build(*p)
		if err != nil {
			return nil, err
		}

		s.mu.Lock()
		s.clients[key] = c
		s.mu.Unlock()

		s.logger.Debug().Str("proxy", p.String()).Msg("built proxied transport")
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*http.Client), nil
}

// Len returns the number of built transports
func (s *Selector) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// build derives a proxied client from the base one. A base *http.Client keeps
// its redirect policy, cookie jar and *http.Transport settings; any other base
// doer, or a base client with a custom RoundTripper, falls back to a clone of
// http.DefaultTransport.
func (s *Selector) build(p Proxy) (*http.Client, error) {
	proxyFunc, err := p.ProxyFunc()
	if err != nil {
		return nil, err
	}

	c := &http.Client{Timeout: s.timeout}
	rt := baseTransport(http.DefaultTransport)
	if base, ok := s.base.(*http.Client); ok {
		c.CheckRedirect = base.CheckRedirect
		c.Jar = base.Jar
		if c.Timeout == 0 {
			c.Timeout = base.Timeout
		}
		if base.Transport != nil {
			if t := baseTransport(base.Transport); t != nil {
				rt = t
			} else {
				s.logger.Warn().Str("proxy", p.String()).Msg("base round tripper cannot carry a proxy, using default transport")
			}
		}
	}
	if rt == nil {
		rt = &http.Transport{}
	}
	// nil disables proxying, including environment proxies
	rt.Proxy = proxyFunc
	c.Transport = rt

	return c, nil
}

// baseTransport clones rt when it is an *http.Transport
func baseTransport(rt http.RoundTripper) *http.Transport {
	if t, ok := rt.(*http.Transport); ok {
		return t.Clone()
	}
	return nil
}

// Package transport selects the HTTP transport used for each descriptor
package transport

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/http/httpproxy"

	"github.com/jzx17/httpipe/pkg/types"
)

// Kind is the proxy protocol
type Kind string

const (
	// KindAuto infers the protocol from the URL scheme
	KindAuto Kind = ""
	// KindHTTP is an HTTP CONNECT proxy
	KindHTTP Kind = "http"
	// KindSOCKS5 is a SOCKS5 proxy
	KindSOCKS5 Kind = "socks5"
)

// Proxy describes how requests reach the network
type Proxy struct {
	// Disabled forces a direct connection, ignoring any client or environment proxy
	Disabled bool `koanf:"disabled"`

	// URL is the proxy address, e.g. http://proxy:8080 or socks5://proxy:1080
	URL string `koanf:"url"`

	// Kind overrides the protocol inferred from URL
	Kind Kind `koanf:"kind"`

	// Username and Password authenticate against the proxy
	Username string `koanf:"username"`
	Password string `koanf:"password"`

	// NoProxy is a comma separated list of hosts, domains and CIDRs that bypass the proxy
	NoProxy string `koanf:"no_proxy"`
}

// Direct returns a proxy setting that disables proxying
func Direct() *Proxy {
	return &Proxy{Disabled: true}
}

// Via returns a proxy setting for rawURL with the protocol inferred from its scheme
func Via(rawURL string) *Proxy {
	return &Proxy{URL: rawURL}
}

// ResolvedKind returns the effective protocol. An explicit Kind wins over the
// scheme; a URL without a scheme is treated as an HTTP proxy.
func (p Proxy) ResolvedKind() (Kind, error) {
	switch p.Kind {
	case KindHTTP, KindSOCKS5:
		return p.Kind, nil
	case KindAuto:
	default:
		return "", &types.ProxyConfigError{URL: p.URL, Reason: fmt.Sprintf("unknown proxy kind %q", p.Kind)}
	}

	scheme, _, ok := strings.Cut(p.URL, "://")
	if !ok {
		return KindHTTP, nil
	}
	switch strings.ToLower(scheme) {
	case "http", "https":
		return KindHTTP, nil
	case "socks5", "socks5h":
		return KindSOCKS5, nil
	default:
		return "", &types.ProxyConfigError{URL: p.URL, Reason: fmt.Sprintf("unsupported scheme %q", scheme)}
	}
}

// Validate checks that the proxy can be used
func (p Proxy) Validate() error {
	if p.Disabled {
		return nil
	}
	if p.URL == "" {
		return &types.ProxyConfigError{Reason: "proxy URL is required unless disabled"}
	}
	_, err := p.proxyURL()
	return err
}

// proxyURL returns the normalized proxy address with credentials and the
// scheme matching the resolved kind
func (p Proxy) proxyURL() (*url.URL, error) {
	kind, err := p.ResolvedKind()
	if err != nil {
		return nil, err
	}

	raw := p.URL
	if !strings.Contains(raw, "://") {
		raw = string(kind) + "://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, &types.ProxyConfigError{URL: p.URL, Reason: "malformed URL", Cause: err}
	}
	if u.Host == "" {
		return nil, &types.ProxyConfigError{URL: p.URL, Reason: "missing host"}
	}

	switch kind {
	case KindSOCKS5:
		if u.Scheme != "socks5h" {
			u.Scheme = "socks5"
		}
	case KindHTTP:
		if u.Scheme != "https" {
			u.Scheme = "http"
		}
	}

	if p.Username != "" {
		u.User = url.UserPassword(p.Username, p.Password)
	} else if p.Password != "" {
		return nil, &types.ProxyConfigError{URL: p.URL, Reason: "password given without username"}
	}
	return u, nil
}

// key identifies equivalent proxy configurations
func (p Proxy) key() string {
	if p.Disabled {
		return "direct"
	}
	u, err := p.proxyURL()
	if err != nil {
		return ""
	}
	return u.String() + "|" + strings.ReplaceAll(p.NoProxy, " ", "")
}

// ProxyFunc returns the function installed as http.Transport.Proxy. Every
// destination goes through the proxy, loopback included, unless NoProxy
// matches it.
func (p Proxy) ProxyFunc() (func(*http.Request) (*url.URL, error), error) {
	if p.Disabled {
		return nil, nil
	}
	u, err := p.proxyURL()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(p.NoProxy) == "" {
		return http.ProxyURL(u), nil
	}

	cfg := httpproxy.Config{
		HTTPProxy:  u.String(),
		HTTPSProxy: u.String(),
		NoProxy:    p.NoProxy,
	}
	fn := cfg.ProxyFunc()
	return func(req *http.Request) (*url.URL, error) {
		// httpproxy never proxies loopback, so those hosts are matched here
		if isLoopback(req.URL.Hostname()) {
			if loopbackExcluded(req.URL, p.NoProxy) {
				return nil, nil
			}
			return u, nil
		}
		return fn(req.URL)
	}, nil
}

func isLoopback(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// loopbackExcluded reports whether a NoProxy entry names the loopback target
// by wildcard, host, host:port or CIDR
func loopbackExcluded(target *url.URL, noProxy string) bool {
	host := strings.ToLower(target.Hostname())
	port := target.Port()
	ip := net.ParseIP(host)

	for _, entry := range strings.Split(noProxy, ",") {
		entry = strings.ToLower(strings.TrimSpace(entry))
		switch {
		case entry == "":
			continue
		case entry == "*":
			return true
		}

		if _, cidr, err := net.ParseCIDR(entry); err == nil {
			if ip != nil && cidr.Contains(ip) {
				return true
			}
			continue
		}

		entryHost, entryPort := entry, ""
		if h, p, err := net.SplitHostPort(entry); err == nil {
			entryHost, entryPort = h, p
		}
		entryHost = strings.TrimPrefix(strings.Trim(entryHost, "[]"), ".")
		if entryPort != "" && entryPort != port {
			continue
		}
		if entryHost == host {
			return true
		}
		if entryIP := net.ParseIP(entryHost); entryIP != nil && ip != nil && entryIP.Equal(ip) {
			return true
		}
	}
	return false
}

// String returns the proxy address without credentials
func (p Proxy) String() string {
	if p.Disabled {
		return "direct"
	}
	u, err := p.proxyURL()
	if err != nil {
		return p.URL
	}
	return u.Redacted()
}

// Package config loads client and endpoint definitions.
//
// Sources are merged with increasing priority:
//  1. Built-in defaults
//  2. A YAML file or YAML bytes
//  3. Environment variables prefixed with HTTPIPE_
//
// Nested keys are separated by a double underscore in the environment, so
// HTTPIPE_CLIENT__BASE_URL sets client.base_url.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/jzx17/httpipe/pkg/logger"
	"github.com/jzx17/httpipe/pkg/transport"
)

// EnvPrefix marks environment variables read by Load
const EnvPrefix = "HTTPIPE_"

// Config is the root configuration
type Config struct {
	Client    ClientConfig              `koanf:"client"`
	Log       logger.Config             `koanf:"log"`
	Endpoints map[string]EndpointConfig `koanf:"endpoints" validate:"dive"`
}

// ClientConfig holds client-wide settings
type ClientConfig struct {
	BaseURL string           `koanf:"base_url" validate:"omitempty,url"`
	Timeout time.Duration    `koanf:"timeout" validate:"gte=0"`
	Proxy   *transport.Proxy `koanf:"proxy"`

	// Retry is a policy literal such as "exponential(3, 100ms)"
	Retry string `koanf:"retry" validate:"omitempty,retry"`
}

// EndpointConfig declares one endpoint
type EndpointConfig struct {
	Verb        string           `koanf:"verb" validate:"omitempty,verb"`
	URL         string           `koanf:"url" validate:"required"`
	ContentType string           `koanf:"content_type" validate:"omitempty,content_type"`
	Headers     []string         `koanf:"headers"`
	Params      []string         `koanf:"params"`
	Body        string           `koanf:"body"`
	Retry       string           `koanf:"retry" validate:"omitempty,retry"`
	Proxy       *transport.Proxy `koanf:"proxy"`

	// Interceptor names a call-site interceptor registered with the client package
	Interceptor string `koanf:"interceptor"`
}

// Endpoint returns the named endpoint definition
func (c *Config) Endpoint(name string) (EndpointConfig, bool) {
	ec, ok := c.Endpoints[name]
	return ec, ok
}

type loader struct {
	path    string
	data    []byte
	environ func() []string
}

// Option configures Load
type Option func(*loader)

// WithFile reads YAML from path. A missing file is an error.
func WithFile(path string) Option {
	return func(l *loader) {
		l.path = path
	}
}

// WithBytes reads YAML from data
func WithBytes(data []byte) Option {
	return func(l *loader) {
		l.data = data
	}
}

// WithEnviron replaces os.Environ as the environment source
func WithEnviron(fn func() []string) Option {
	return func(l *loader) {
		l.environ = fn
	}
}

// Load merges defaults, YAML and environment into a validated Config
func Load(opts ...Option) (*Config, error) {
	l := &loader{environ: os.Environ}
	for _, opt := range opts {
		opt(l)
	}

	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if l.path != "" {
		if err := k.Load(file.Provider(l.path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", l.path, err)
		}
	}
	if l.data != nil {
		if err := k.Load(rawbytes.Provider(l.data), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to parse yaml: %w", err)
		}
	}

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix:        EnvPrefix,
		TransformFunc: transformEnv,
		EnvironFunc:   l.environ,
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// transformEnv maps HTTPIPE_CLIENT__BASE_URL to client.base_url
func transformEnv(key, value string) (string, any) {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	return strings.ReplaceAll(key, "__", "."), value
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"client.timeout": "30s",
		"log.level":      "info",
		"log.pretty":     false,
	}

	return k.Load(confmap.Provider(defaults, "."), nil)
}

// Validate checks field rules, retry literals and proxy settings
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fieldError(err)
	}

	if cfg.Client.Proxy != nil {
		if err := cfg.Client.Proxy.Validate(); err != nil {
			return fmt.Errorf("client proxy: %w", err)
		}
	}
	for name, ec := range cfg.Endpoints {
		if ec.Proxy != nil {
			if err := ec.Proxy.Validate(); err != nil {
				return fmt.Errorf("endpoint %s proxy: %w", name, err)
			}
		}
	}

	return nil
}

// ErrInvalidField is wrapped by every field validation failure
var ErrInvalidField = errors.New("invalid field")

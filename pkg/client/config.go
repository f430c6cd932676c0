package client

import (
	"fmt"

	"github.com/jzx17/httpipe/pkg/config"
	"github.com/jzx17/httpipe/pkg/retry"
	"github.com/jzx17/httpipe/pkg/types"
)

// ConfigFrom converts loaded client settings
func ConfigFrom(cc config.ClientConfig) (Config, error) {
	cfg := Config{
		BaseURL: cc.BaseURL,
		Timeout: cc.Timeout,
		Proxy:   cc.Proxy,
	}
	if cc.Retry != "" {
		p, err := retry.Parse(cc.Retry)
		if err != nil {
			return Config{}, err
		}
		cfg.Retry = &p
	}
	return cfg, nil
}

// DescriptorFromConfig converts a loaded endpoint definition. A configured
// interceptor name is looked up in refs.
func DescriptorFromConfig[S any](name string, ec config.EndpointConfig, refs map[string]InterceptorRef[S]) (Descriptor[S], error) {
	verb := types.VerbRead
	if ec.Verb != "" {
		v, err := types.ParseVerb(ec.Verb)
		if err != nil {
			return Descriptor[S]{}, fmt.Errorf("endpoint %s: %w", name, err)
		}
		verb = v
	}

	contentType, err := types.ParseContentType(ec.ContentType)
	if err != nil {
		return Descriptor[S]{}, fmt.Errorf("endpoint %s: %w", name, err)
	}

	d := Descriptor[S]{
		Name:        name,
		Verb:        verb,
		URL:         ec.URL,
		ContentType: contentType,
		Headers:     ec.Headers,
		Params:      ec.Params,
		BodyParam:   ec.Body,
		Proxy:       ec.Proxy,
	}
	if ec.Retry != "" {
		p, err := retry.Parse(ec.Retry)
		if err != nil {
			return Descriptor[S]{}, err
		}
		d.Retry = &p
	}
	if ec.Interceptor != "" {
		ref, ok := refs[ec.Interceptor]
		if !ok {
			return Descriptor[S]{}, fmt.Errorf("endpoint %s: %w %q", name, ErrUnknownInterceptor, ec.Interceptor)
		}
		d.Interceptor = ref
	}
	return d, nil
}

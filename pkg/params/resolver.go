// Package params compiles URL and header templates and renders them against call arguments
package params

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jzx17/httpipe/pkg/types"
)

// segment is either literal text or a reference to an argument index
type segment struct {
	literal string
	arg     int // -1 for literal segments
}

// Template is a precompiled URL or header value template.
// It is immutable and safe for concurrent use.
type Template struct {
	raw      string
	segments []segment
	static   bool
}

// Compile validates tmpl against the declared parameter names. Each {token} must be a
// declared name or paramN, where N indexes the declared arguments from zero.
func Compile(tmpl string, params []string) (*Template, error) {
	index := make(map[string]int, len(params)*2)
	for i, name := range params {
		if name != "" {
			index[name] = i
		}
		index["param"+strconv.Itoa(i)] = i
	}

	t := &Template{raw: tmpl}
	var lit strings.Builder
	for i := 0; i < len(tmpl); i++ {
		c := tmpl[i]
		if c == '}' {
			return nil, &types.TemplateError{Template: tmpl, Reason: "unmatched closing brace"}
		}
		if c != '{' {
			lit.WriteByte(c)
			continue
		}

		end := strings.IndexByte(tmpl[i+1:], '}')
		if end < 0 {
			return nil, &types.TemplateError{Template: tmpl, Reason: "unterminated placeholder"}
		}
		token := tmpl[i+1 : i+1+end]
		if token == "" {
			return nil, &types.TemplateError{Template: tmpl, Reason: "empty placeholder"}
		}
		if strings.ContainsRune(token, '{') {
			return nil, &types.TemplateError{Template: tmpl, Reason: "nested placeholder"}
		}
		arg, ok := index[token]
		if !ok {
			return nil, &types.TemplateError{Template: tmpl, Token: token, Reason: "unresolved placeholder"}
		}

		if lit.Len() > 0 {
			t.segments = append(t.segments, segment{literal: lit.String(), arg: -1})
			lit.Reset()
		}
		t.segments = append(t.segments, segment{arg: arg})
		i += end + 1
	}
	if lit.Len() > 0 {
		t.segments = append(t.segments, segment{literal: lit.String(), arg: -1})
	}

	t.static = true
	for _, s := range t.segments {
		if s.arg >= 0 {
			t.static = false
			break
		}
	}
	return t, nil
}

// MustCompile is like Compile but panics on error
func MustCompile(tmpl string, params []string) *Template {
	t, err := Compile(tmpl, params)
	if err != nil {
		panic(err)
	}
	return t
}

// Static reports whether the template has no placeholders
func (t *Template) Static() bool {
	return t.static
}

// String returns the raw template text
func (t *Template) String() string {
	return t.raw
}

// Render substitutes args into the template in a single pass. Substituted values
// are never rescanned, so a value that itself contains braces is emitted as-is.
func (t *Template) Render(args []any) string {
	if t.static {
		return t.raw
	}

	var b strings.Builder
	b.Grow(len(t.raw))
	for _, s := range t.segments {
		if s.arg < 0 {
			b.WriteString(s.literal)
			continue
		}
		if s.arg < len(args) {
			b.WriteString(Format(args[s.arg]))
		}
	}
	return b.String()
}

// Format converts an argument to its textual form
func Format(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

// Bind builds the per-call binding map. Every argument is reachable both by its
// declared name and by its positional paramN key.
func Bind(params []string, args []any) map[string]any {
	bound := make(map[string]any, len(args)*2)
	for i, v := range args {
		bound["param"+strconv.Itoa(i)] = v
		if i < len(params) && params[i] != "" {
			bound[params[i]] = v
		}
	}
	return bound
}

type bindingsKey struct{}

// WithBindings returns a copy of ctx carrying a call's binding map
func WithBindings(ctx context.Context, bound map[string]any) context.Context {
	return context.WithValue(ctx, bindingsKey{}, bound)
}

// Bindings returns the binding map of the call running in ctx, nil outside a call.
// Interceptors use it to read arguments by name; the map must not be modified.
func Bindings(ctx context.Context) map[string]any {
	bound, _ := ctx.Value(bindingsKey{}).(map[string]any)
	return bound
}

// HeaderTemplate is a compiled "Key: Value" header whose value may hold placeholders
type HeaderTemplate struct {
	Key   string
	Value *Template
}

// CompileHeader splits header on the first colon and compiles the value
func CompileHeader(header string, params []string) (*HeaderTemplate, error) {
	key, value, ok := strings.Cut(header, ":")
	if !ok {
		return nil, &types.TemplateError{Template: header, Reason: "header must be of the form \"Key: Value\""}
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, &types.TemplateError{Template: header, Reason: "empty header name"}
	}
	if strings.ContainsAny(key, "{}") {
		return nil, &types.TemplateError{Template: header, Reason: "placeholders are not allowed in header names"}
	}

	tmpl, err := Compile(strings.TrimSpace(value), params)
	if err != nil {
		return nil, err
	}
	return &HeaderTemplate{Key: key, Value: tmpl}, nil
}

// Render returns the header name and rendered value
func (h *HeaderTemplate) Render(args []any) (string, string) {
	return h.Key, h.Value.Render(args)
}

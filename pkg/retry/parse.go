// Package retry provides the textual retry policy format
package retry

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jzx17/httpipe/pkg/types"
)

// Parse reads a retry literal. Accepted forms:
//
//	exponential(3, 100ms)
//	exponential(max_attempts=5, base_delay=200ms, max_delay=10s, exponential_base=1.5, jitter_ratio=0.2, idempotent_only=false)
//	fixed(3, 500ms)
//	fixed(max_attempts=3, delay=500ms)
//
// Durations are whole numbers suffixed with ms or s. Positional and keyed
// arguments cannot be mixed in one literal.
func Parse(literal string) (Policy, error) {
	p, err := parse(literal)
	if err != nil {
		var cfgErr *types.PolicyConfigError
		if errors.As(err, &cfgErr) {
			cfgErr.Literal = literal
		}
		return Policy{}, err
	}
	return p, nil
}

// MustParse is like Parse but panics on error. Intended for static descriptor tables.
func MustParse(literal string) Policy {
	p, err := Parse(literal)
	if err != nil {
		panic(err)
	}
	return p
}

type argument struct {
	key   string // empty for positional
	value string
}

func parse(literal string) (Policy, error) {
	s := strings.TrimSpace(literal)
	open := strings.IndexByte(s, '(')
	if open < 0 || !strings.HasSuffix(s, ")") {
		return Policy{}, &types.PolicyConfigError{Reason: "expected kind(arguments)"}
	}
	kind := strings.TrimSpace(s[:open])
	inner := s[open+1 : len(s)-1]
	if strings.ContainsAny(inner, "()") {
		return Policy{}, &types.PolicyConfigError{Reason: "unbalanced parentheses"}
	}

	args, err := splitArguments(inner)
	if err != nil {
		return Policy{}, err
	}

	var p Policy
	switch kind {
	case "exponential":
		p, err = parseExponential(args)
	case "fixed":
		p, err = parseFixed(args)
	default:
		return Policy{}, &types.PolicyConfigError{Reason: "unknown policy kind " + strconv.Quote(kind)}
	}
	if err != nil {
		return Policy{}, err
	}
	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}

func splitArguments(inner string) ([]argument, error) {
	if strings.TrimSpace(inner) == "" {
		return nil, nil
	}

	parts := strings.Split(inner, ",")
	args := make([]argument, 0, len(parts))
	keyed, positional := 0, 0
	seen := make(map[string]bool, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, &types.PolicyConfigError{Reason: "empty argument"}
		}
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			positional++
			args = append(args, argument{value: part})
			continue
		}
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		if key == "" || value == "" {
			return nil, &types.PolicyConfigError{Reason: "malformed argument " + strconv.Quote(part)}
		}
		if seen[key] {
			return nil, &types.PolicyConfigError{Field: key, Reason: "duplicate key"}
		}
		seen[key] = true
		keyed++
		args = append(args, argument{key: key, value: value})
	}
	if keyed > 0 && positional > 0 {
		return nil, &types.PolicyConfigError{Reason: "mixed positional and keyed arguments"}
	}
	return args, nil
}

func parseExponential(args []argument) (Policy, error) {
	p := DefaultPolicy()
	maxDelaySet := false

	if len(args) > 0 && args[0].key == "" {
		if len(args) > 2 {
			return Policy{}, &types.PolicyConfigError{Reason: "exponential takes at most 2 positional arguments"}
		}
		names := []string{"max_attempts", "base_delay"}
		for i := range args {
			args[i].key = names[i]
		}
	}

	for _, a := range args {
		var err error
		switch a.key {
		case "max_attempts":
			p.MaxAttempts, err = parseCount(a)
		case "base_delay":
			p.BaseDelay, err = parseDuration(a)
		case "max_delay":
			p.MaxDelay, err = parseDuration(a)
			maxDelaySet = true
		case "exponential_base":
			p.ExponentialBase, err = parseFloat(a)
		case "jitter_ratio":
			p.JitterRatio, err = parseFloat(a)
		case "idempotent_only":
			p.IdempotentOnly, err = parseBool(a)
		default:
			err = &types.PolicyConfigError{Field: a.key, Reason: "unknown key"}
		}
		if err != nil {
			return Policy{}, err
		}
	}

	if !maxDelaySet && p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}
	return p, nil
}

func parseFixed(args []argument) (Policy, error) {
	maxAttempts, delay := DefaultMaxAttempts, DefaultBaseDelay

	if len(args) > 0 && args[0].key == "" {
		if len(args) > 2 {
			return Policy{}, &types.PolicyConfigError{Reason: "fixed takes at most 2 positional arguments"}
		}
		names := []string{"max_attempts", "delay"}
		for i := range args {
			args[i].key = names[i]
		}
	}

	for _, a := range args {
		var err error
		switch a.key {
		case "max_attempts":
			maxAttempts, err = parseCount(a)
		case "delay":
			delay, err = parseDuration(a)
		default:
			err = &types.PolicyConfigError{Field: a.key, Reason: "unknown key"}
		}
		if err != nil {
			return Policy{}, err
		}
	}
	return Fixed(maxAttempts, delay), nil
}

func parseCount(a argument) (int, error) {
	n, err := strconv.Atoi(a.value)
	if err != nil {
		return 0, &types.PolicyConfigError{Field: a.key, Reason: "invalid integer " + strconv.Quote(a.value)}
	}
	return n, nil
}

func parseFloat(a argument) (float64, error) {
	f, err := strconv.ParseFloat(a.value, 64)
	if err != nil {
		return 0, &types.PolicyConfigError{Field: a.key, Reason: "invalid number " + strconv.Quote(a.value)}
	}
	return f, nil
}

func parseBool(a argument) (bool, error) {
	b, err := strconv.ParseBool(a.value)
	if err != nil {
		return false, &types.PolicyConfigError{Field: a.key, Reason: "invalid boolean " + strconv.Quote(a.value)}
	}
	return b, nil
}

// parseDuration accepts "<n>ms" and "<n>s"
func parseDuration(a argument) (time.Duration, error) {
	var digits string
	var unit time.Duration
	switch {
	case strings.HasSuffix(a.value, "ms"):
		digits, unit = strings.TrimSuffix(a.value, "ms"), time.Millisecond
	case strings.HasSuffix(a.value, "s"):
		digits, unit = strings.TrimSuffix(a.value, "s"), time.Second
	default:
		return 0, &types.PolicyConfigError{Field: a.key, Reason: "duration needs an ms or s suffix: " + strconv.Quote(a.value)}
	}

	n, err := strconv.ParseUint(digits, 10, 32)
	if err != nil {
		return 0, &types.PolicyConfigError{Field: a.key, Reason: "invalid duration " + strconv.Quote(a.value)}
	}
	return time.Duration(n) * unit, nil
}

// Package retry provides retry mechanism strategies and implementations
package retry

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/jzx17/httpipe/pkg/types"
)

// Defaults applied when a policy field is not given
const (
	DefaultMaxAttempts     = 3
	DefaultBaseDelay       = 100 * time.Millisecond
	DefaultMaxDelay        = 30 * time.Second
	DefaultExponentialBase = 2.0
	DefaultJitterRatio     = 0.1
)

var validate = validator.New()

// Policy is an immutable retry configuration. A value is built once per
// descriptor and shared read-only by every concurrent call.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first
	MaxAttempts int `validate:"min=1"`

	// BaseDelay is the delay before the first retry
	BaseDelay time.Duration `validate:"gte=0"`

	// MaxDelay caps the un-jittered delay
	MaxDelay time.Duration `validate:"gtefield=BaseDelay"`

	// ExponentialBase is the growth factor between consecutive delays
	ExponentialBase float64 `validate:"gte=1"`

	// JitterRatio is the upper bound of the random extra delay, as a fraction of the delay
	JitterRatio float64 `validate:"gte=0,lte=1"`

	// IdempotentOnly restricts retries to idempotent verbs
	IdempotentOnly bool
}

// DefaultPolicy returns the default exponential policy
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     DefaultMaxAttempts,
		BaseDelay:       DefaultBaseDelay,
		MaxDelay:        DefaultMaxDelay,
		ExponentialBase: DefaultExponentialBase,
		JitterRatio:     DefaultJitterRatio,
		IdempotentOnly:  true,
	}
}

// Exponential creates an exponential backoff policy with default cap, base and jitter
func Exponential(maxAttempts int, baseDelay time.Duration) Policy {
	p := DefaultPolicy()
	p.MaxAttempts = maxAttempts
	p.BaseDelay = baseDelay
	if p.MaxDelay < baseDelay {
		p.MaxDelay = baseDelay
	}
	return p
}

// Fixed creates a constant-delay policy without jitter
func Fixed(maxAttempts int, delay time.Duration) Policy {
	return Policy{
		MaxAttempts:     maxAttempts,
		BaseDelay:       delay,
		MaxDelay:        delay,
		ExponentialBase: 1.0,
		JitterRatio:     0,
		IdempotentOnly:  true,
	}
}

// WithMaxDelay returns a copy with the delay cap set
func (p Policy) WithMaxDelay(d time.Duration) Policy {
	p.MaxDelay = d
	return p
}

// WithExponentialBase returns a copy with the growth factor set
func (p Policy) WithExponentialBase(base float64) Policy {
	p.ExponentialBase = base
	return p
}

// WithJitter returns a copy with the jitter ratio set
func (p Policy) WithJitter(ratio float64) Policy {
	p.JitterRatio = ratio
	return p
}

// WithIdempotentOnly returns a copy with the idempotency restriction set
func (p Policy) WithIdempotentOnly(only bool) Policy {
	p.IdempotentOnly = only
	return p
}

// Validate checks the policy ranges
func (p Policy) Validate() error {
	if err := validate.Struct(p); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return &types.PolicyConfigError{
				Field:  literalKey(fe.StructField()),
				Reason: fmt.Sprintf("failed %s=%s (got %v)", fe.Tag(), fe.Param(), fe.Value()),
			}
		}
		return &types.PolicyConfigError{Reason: err.Error()}
	}
	return nil
}

// CalculateDelay returns the wait before retry number attempt (one-based).
// Attempt zero or below yields no delay.
func (p Policy) CalculateDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	delay := exponentialDelay(p.BaseDelay, p.ExponentialBase, p.MaxDelay, attempt)
	return AdditiveJitter(delay, p.JitterRatio)
}

// ShouldRetry reports whether another attempt may follow the zero-based attempt
// that produced outcome.
func (p Policy) ShouldRetry(outcome Outcome, attempt int, idempotent bool) bool {
	if !outcome.Retryable() {
		return false
	}
	if attempt >= p.MaxAttempts-1 {
		return false
	}
	return !p.IdempotentOnly || idempotent
}

// String renders the policy in the keyed literal form accepted by Parse
func (p Policy) String() string {
	return fmt.Sprintf("exponential(max_attempts=%d, base_delay=%dms, max_delay=%dms, exponential_base=%g, jitter_ratio=%g, idempotent_only=%t)",
		p.MaxAttempts, p.BaseDelay.Milliseconds(), p.MaxDelay.Milliseconds(), p.ExponentialBase, p.JitterRatio, p.IdempotentOnly)
}

// ShouldRetryStatus reports whether a response status is worth retrying:
// request timeout, too many requests, and every server error.
func ShouldRetryStatus(status int) bool {
	switch {
	case status == http.StatusRequestTimeout, status == http.StatusTooManyRequests:
		return true
	case status >= 500 && status <= 599:
		return true
	default:
		return false
	}
}

// Outcome is the result of one transport attempt
type Outcome struct {
	// StatusCode is the response status, zero when the transport failed
	StatusCode int

	// Err is the transport failure, nil when a response arrived
	Err error
}

// Retryable classifies the outcome. Every transport failure, per-attempt
// timeouts included, is retryable unless the body cannot be replayed. Whether
// the caller gave up is decided from the call context, not from the error.
func (o Outcome) Retryable() bool {
	if o.Err != nil {
		return !errors.Is(o.Err, types.ErrBodyNotReplayable)
	}
	return ShouldRetryStatus(o.StatusCode)
}

func literalKey(field string) string {
	switch field {
	case "MaxAttempts":
		return "max_attempts"
	case "BaseDelay":
		return "base_delay"
	case "MaxDelay":
		return "max_delay"
	case "ExponentialBase":
		return "exponential_base"
	case "JitterRatio":
		return "jitter_ratio"
	case "IdempotentOnly":
		return "idempotent_only"
	default:
		return field
	}
}

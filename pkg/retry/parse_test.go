package retry

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jzx17/httpipe/pkg/types"
)

func TestParse(t *testing.T) {
	tests := []struct {
		literal string
		want    Policy
	}{
		{
			literal: "exponential(3, 100ms)",
			want:    Exponential(3, 100*time.Millisecond),
		},
		{
			literal: "exponential(5)",
			want:    Exponential(5, DefaultBaseDelay),
		},
		{
			literal: "exponential()",
			want:    DefaultPolicy(),
		},
		{
			literal: "exponential(max_attempts=5, base_delay=200ms, max_delay=10s)",
			want:    Exponential(5, 200*time.Millisecond).WithMaxDelay(10 * time.Second),
		},
		{
			literal: " exponential( max_attempts = 2 , exponential_base=1.5, jitter_ratio=0, idempotent_only=false ) ",
			want: DefaultPolicy().WithExponentialBase(1.5).WithJitter(0).WithIdempotentOnly(false).
				withMaxAttempts(2),
		},
		{
			literal: "exponential(base_delay=60s)",
			want:    Exponential(DefaultMaxAttempts, time.Minute),
		},
		{
			literal: "fixed(max_attempts=3, delay=500ms)",
			want:    Fixed(3, 500*time.Millisecond),
		},
		{
			literal: "fixed(4, 2s)",
			want:    Fixed(4, 2*time.Second),
		},
	}

	for _, tt := range tests {
		t.Run(tt.literal, func(t *testing.T) {
			got, err := Parse(tt.literal)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		literal string
		field   string
	}{
		{"unknown kind", "linear(3, 100ms)", ""},
		{"missing parens", "exponential", ""},
		{"unbalanced", "exponential((3)", ""},
		{"mixed forms", "exponential(3, base_delay=100ms)", ""},
		{"unknown key", "exponential(retries=3)", "retries"},
		{"duplicate key", "fixed(delay=1s, delay=2s)", "delay"},
		{"bare duration", "fixed(3, 500)", "delay"},
		{"bad duration unit", "fixed(3, 5m)", "delay"},
		{"negative count", "fixed(-1, 5ms)", "max_attempts"},
		{"zero attempts", "exponential(0, 5ms)", "max_attempts"},
		{"bad float", "exponential(jitter_ratio=lots)", "jitter_ratio"},
		{"bad bool", "exponential(idempotent_only=maybe)", "idempotent_only"},
		{"too many positional", "exponential(3, 100ms, 5s)", ""},
		{"fixed key on exponential", "exponential(delay=1s)", "delay"},
		{"empty argument", "fixed(3,,1s)", ""},
		{"jitter out of range", "exponential(jitter_ratio=2)", "jitter_ratio"},
		{"cap below base", "exponential(base_delay=2s, max_delay=1s)", "max_delay"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.literal)
			require.Error(t, err)
			assert.True(t, errors.Is(err, types.ErrInvalidPolicy))

			var cfgErr *types.PolicyConfigError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.literal, cfgErr.Literal)
			if tt.field != "" {
				assert.Equal(t, tt.field, cfgErr.Field)
			}
		})
	}
}

func TestParse_RoundTrip(t *testing.T) {
	p := Exponential(4, 250*time.Millisecond).WithMaxDelay(8 * time.Second).WithJitter(0.25).WithIdempotentOnly(false)

	got, err := Parse(p.String())
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestMustParse(t *testing.T) {
	assert.NotPanics(t, func() { MustParse("fixed(2, 10ms)") })
	assert.Panics(t, func() { MustParse("fixed(2, 10)") })
}

func (p Policy) withMaxAttempts(n int) Policy {
	p.MaxAttempts = n
	return p
}

package interceptors

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jzx17/httpipe/pkg/pipeline"
)

// TokenProvider is implemented by application state that can supply bearer tokens
type TokenProvider interface {
	BearerToken(ctx context.Context) (string, error)
}

// Bearer sets the Authorization header from the state's TokenProvider. The
// state type must provide tokens, so it is instantiated as Bearer[S, *S]. When
// the state is absent or yields an empty token the request is left unchanged.
type Bearer[S any, PS interface {
	*S
	TokenProvider
}] struct{}

// BeforeRequest implements pipeline.Interceptor
func (Bearer[S, PS]) BeforeRequest(ctx context.Context, req *http.Request, body pipeline.Body, state *S) (*http.Request, pipeline.Body, error) {
	if state == nil {
		return req, body, nil
	}

	token, err := PS(state).BearerToken(ctx)
	if err != nil {
		return nil, pipeline.Body{}, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, body, nil
}

// AfterResponse implements pipeline.Interceptor
func (Bearer[S, PS]) AfterResponse(ctx context.Context, resp *http.Response, state *S) (*http.Response, error) {
	return resp, nil
}

// ErrNoSigningKey is returned when a JWTSource has no key configured
var ErrNoSigningKey = errors.New("jwt signing key is not configured")

// JWTSource mints HS256 tokens and reuses each one until shortly before it
// expires. Embed it in application state to satisfy TokenProvider.
// It is safe for concurrent use.
type JWTSource struct {
	Key      []byte
	Issuer   string
	Subject  string
	Audience []string
	TTL      time.Duration

	// Now overrides the time source, mainly for tests
	Now func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

// BearerToken implements TokenProvider
func (s *JWTSource) BearerToken(ctx context.Context) (string, error) {
	if len(s.Key) == 0 {
		return "", ErrNoSigningKey
	}

	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	ttl := s.TTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current := now()
	// refresh once less than a tenth of the lifetime remains
	if s.token != "" && current.Add(ttl/10).Before(s.expires) {
		return s.token, nil
	}

	expires := current.Add(ttl)
	claims := jwt.RegisteredClaims{
		Issuer:    s.Issuer,
		Subject:   s.Subject,
		Audience:  s.Audience,
		IssuedAt:  jwt.NewNumericDate(current),
		NotBefore: jwt.NewNumericDate(current),
		ExpiresAt: jwt.NewNumericDate(expires),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.Key)
	if err != nil {
		return "", err
	}

	s.token, s.expires = signed, expires
	return signed, nil
}

package pipeline

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type authInterceptor struct {
	Noop[appState]
	prefix string
}

type auditInterceptor struct {
	calls atomic.Int64
}

func (a *auditInterceptor) BeforeRequest(ctx context.Context, req *http.Request, body Body, state *appState) (*http.Request, Body, error) {
	a.calls.Add(1)
	return req, body, nil
}

func (a *auditInterceptor) AfterResponse(ctx context.Context, resp *http.Response, state *appState) (*http.Response, error) {
	return resp, nil
}

func TestCache_GetOrCreateIdentity(t *testing.T) {
	cache := NewCache[appState]()

	first := GetOrCreate[authInterceptor](cache)
	second := GetOrCreate[authInterceptor](cache)
	audit := GetOrCreate[auditInterceptor](cache)

	require.NotNil(t, first)
	assert.Same(t, first, second)
	assert.NotEqual(t, Interceptor[appState](first), Interceptor[appState](audit))
	assert.Equal(t, 2, cache.Len())
}

func TestCache_Warmup(t *testing.T) {
	cache := NewCache[appState]()
	assert.Equal(t, 0, cache.Len())

	Warmup[auditInterceptor](cache)
	assert.Equal(t, 1, cache.Len())

	Warmup[auditInterceptor](cache)
	GetOrCreate[auditInterceptor](cache)
	assert.Equal(t, 1, cache.Len())
}

func TestCache_SeparateClients(t *testing.T) {
	a, b := NewCache[appState](), NewCache[appState]()

	assert.NotSame(t, GetOrCreate[auditInterceptor](a), GetOrCreate[auditInterceptor](b))
}

func TestCache_ConcurrentFirstUse(t *testing.T) {
	cache := NewCache[appState]()

	const goroutines = 64
	results := make([]*auditInterceptor, goroutines)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			results[i] = GetOrCreate[auditInterceptor](cache)
		}(i)
	}
	close(start)
	wg.Wait()

	for _, r := range results {
		assert.Same(t, results[0], r)
	}
	assert.Equal(t, 1, cache.Len())
}

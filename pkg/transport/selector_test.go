package transport

import (
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelector_NilUsesBase(t *testing.T) {
	base := &http.Client{}
	s := NewSelector(base)

	got, err := s.Resolve(nil)
	require.NoError(t, err)
	assert.Same(t, base, got)
	assert.Same(t, base, s.Base())
	assert.Equal(t, 0, s.Len())
}

func TestSelector_CachesPerConfiguration(t *testing.T) {
	s := NewSelector(nil, WithTimeout(5*time.Second))

	a1, err := s.Resolve(Via("http://proxy-a:8080"))
	require.NoError(t, err)
	a2, err := s.Resolve(&Proxy{URL: "proxy-a:8080"})
	require.NoError(t, err)
	b, err := s.Resolve(Via("socks5://proxy-b:1080"))
	require.NoError(t, err)
	direct, err := s.Resolve(Direct())
	require.NoError(t, err)

	assert.Same(t, a1, a2)
	assert.NotSame(t, a1, b)
	assert.Equal(t, 3, s.Len())

	client, ok := a1.(*http.Client)
	require.True(t, ok)
	assert.Equal(t, 5*time.Second, client.Timeout)

	directClient := direct.(*http.Client)
	rt := directClient.Transport.(*http.Transport)
	assert.Nil(t, rt.Proxy)
}

func TestSelector_InvalidProxy(t *testing.T) {
	s := NewSelector(nil)

	_, err := s.Resolve(Via("ftp://proxy:21"))
	require.Error(t, err)
	assert.Equal(t, 0, s.Len())
}

func TestSelector_ConcurrentFirstUse(t *testing.T) {
	s := NewSelector(nil)

	const goroutines = 32
	results := make([]Doer, goroutines)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			d, err := s.Resolve(Via("http://shared-proxy:8080"))
			assert.NoError(t, err)
			results[i] = d
		}(i)
	}
	close(start)
	wg.Wait()

	for _, r := range results {
		assert.Same(t, results[0], r)
	}
	assert.Equal(t, 1, s.Len())
}

func TestSelector_DerivesFromBaseClient(t *testing.T) {
	redirects := func(req *http.Request, via []*http.Request) error { return http.ErrUseLastResponse }
	base := &http.Client{
		Transport:     &http.Transport{MaxIdleConnsPerHost: 7},
		CheckRedirect: redirects,
		Timeout:       3 * time.Second,
	}
	s := NewSelector(base)

	d, err := s.Resolve(Via("http://proxy-a:8080"))
	require.NoError(t, err)

	client, ok := d.(*http.Client)
	require.True(t, ok)
	assert.Equal(t, 3*time.Second, client.Timeout)
	assert.NotNil(t, client.CheckRedirect)

	rt, ok := client.Transport.(*http.Transport)
	require.True(t, ok)
	assert.Equal(t, 7, rt.MaxIdleConnsPerHost)
	assert.NotNil(t, rt.Proxy)
	assert.Nil(t, base.Transport.(*http.Transport).Proxy)
}

type refusingRoundTripper struct{}

func (refusingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	return nil, http.ErrNotSupported
}

func TestSelector_CustomRoundTripperFallsBack(t *testing.T) {
	s := NewSelector(&http.Client{Transport: refusingRoundTripper{}}, WithTimeout(time.Second))

	d, err := s.Resolve(Via("http://proxy-a:8080"))
	require.NoError(t, err)

	client := d.(*http.Client)
	assert.Equal(t, time.Second, client.Timeout)
	rt, ok := client.Transport.(*http.Transport)
	require.True(t, ok)
	assert.NotNil(t, rt.Proxy)
}

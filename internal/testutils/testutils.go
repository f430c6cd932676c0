// Package testutils provides simplified testing utilities and helper functions
package testutils

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// Recorder collects an ordered trace of labels from concurrent code
type Recorder struct {
	mu     sync.Mutex
	events []string
}

// Record appends a label
func (r *Recorder) Record(label string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, label)
}

// Events returns a copy of the recorded labels
func (r *Recorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	copy(out, r.events)
	return out
}

// ScriptedServer answers each request with the next scripted response and
// repeats the last one once the script runs out.
type ScriptedServer struct {
	*httptest.Server

	hits     atomic.Int64
	mu       sync.Mutex
	script   []Response
	requests []*CapturedRequest
}

// Response is one scripted reply
type Response struct {
	Status int
	Body   string
	Header http.Header

	// Delay holds the reply back, or until the client goes away
	Delay time.Duration
}

// CapturedRequest is a request as the server saw it
type CapturedRequest struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   []byte
}

// NewScriptedServer starts a server that is closed with the test
func NewScriptedServer(t testing.TB, script ...Response) *ScriptedServer {
	t.Helper()
	if len(script) == 0 {
		script = []Response{{Status: http.StatusOK}}
	}

	s := &ScriptedServer{script: script}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

func (s *ScriptedServer) serve(w http.ResponseWriter, req *http.Request) {
	n := int(s.hits.Add(1)) - 1

	body, _ := io.ReadAll(req.Body)

	s.mu.Lock()
	s.requests = append(s.requests, &CapturedRequest{
		Method: req.Method,
		Path:   req.URL.Path,
		Query:  req.URL.RawQuery,
		Header: req.Header.Clone(),
		Body:   body,
	})
	resp := s.script[min(n, len(s.script)-1)]
	s.mu.Unlock()

	if resp.Delay > 0 {
		select {
		case <-time.After(resp.Delay):
		case <-req.Context().Done():
			return
		}
	}

	for k, vs := range resp.Header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write([]byte(resp.Body))
}

// Hits returns the number of requests served
func (s *ScriptedServer) Hits() int {
	return int(s.hits.Load())
}

// Requests returns the captured requests in arrival order
func (s *ScriptedServer) Requests() []*CapturedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*CapturedRequest, len(s.requests))
	copy(out, s.requests)
	return out
}

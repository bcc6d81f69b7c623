// Package testutil provides testing utilities for the Hellfire cache.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// StubResponse defines the behavior for a stubbed origin endpoint.
type StubResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// StubOrigin is a configurable stub origin server for testing the
// request-execution layer against.
type StubOrigin struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	// Tracking
	RequestCount      int
	LastRequestHeader http.Header
}

// NewStubOrigin creates a new stub origin server.
func NewStubOrigin() *StubOrigin {
	stub := &StubOrigin{
		handlers: make(map[string]func(w http.ResponseWriter, r *http.Request)),
	}

	stub.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stub.mu.Lock()
		stub.RequestCount++
		stub.LastRequestHeader = r.Header.Clone()
		stub.mu.Unlock()

		stub.mu.RLock()
		handler, exists := stub.handlers[r.URL.Path]
		stub.mu.RUnlock()

		if exists {
			handler(w, r)
			return
		}

		stub.defaultHandler(w, r)
	}))

	return stub
}

// URL returns the stub server URL.
func (s *StubOrigin) URL() string {
	return s.server.URL
}

// Close shuts down the stub server.
func (s *StubOrigin) Close() {
	s.server.Close()
}

// Reset clears all tracking counters.
func (s *StubOrigin) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.RequestCount = 0
	s.LastRequestHeader = nil
}

// SetHandler sets a custom handler for a specific path.
func (s *StubOrigin) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[path] = handler
}

// SetResponse configures a simple response for a path.
func (s *StubOrigin) SetResponse(path string, resp StubResponse) {
	s.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}

		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}

		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// FailTimes makes a path return failStatus for the first n requests, then
// succeed with body. Used to exercise retry behavior.
func (s *StubOrigin) FailTimes(path string, n, failStatus int, body string) {
	var mu sync.Mutex
	remaining := n

	s.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		fail := remaining > 0
		if fail {
			remaining--
		}
		mu.Unlock()

		if fail {
			w.WriteHeader(failStatus)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(body))
	})
}

// GetRequestCount returns the number of requests made to the server.
func (s *StubOrigin) GetRequestCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.RequestCount
}

// defaultHandler answers 200 with a body derived from the path.
func (s *StubOrigin) defaultHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"path": "` + r.URL.Path + `"}`))
}

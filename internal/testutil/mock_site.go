// Package testutil provides a fake Letterboxd site for tests.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// MockResponse defines the behavior for a mock page response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockSite is a configurable fake site. Unknown paths answer 404.
type MockSite struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc

	requests          map[string]int
	order             []string
	lastRequestHeader http.Header
}

// NewMockSite starts a mock server.
func NewMockSite() *MockSite {
	mock := &MockSite{
		handlers: make(map[string]http.HandlerFunc),
		requests: make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.requests[r.URL.Path]++
		mock.order = append(mock.order, r.URL.Path)
		mock.lastRequestHeader = r.Header.Clone()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if exists {
			handler(w, r)
			return
		}
		http.NotFound(w, r)
	}))

	return mock
}

// URL returns the server root with a trailing slash.
func (m *MockSite) URL() string {
	return m.server.URL + "/"
}

// Close shuts down the server.
func (m *MockSite) Close() {
	m.server.Close()
}

// Reset clears request tracking. Handlers stay registered.
func (m *MockSite) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = make(map[string]int)
	m.order = nil
	m.lastRequestHeader = nil
}

// SetHandler sets a custom handler for a path.
func (m *MockSite) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockSite) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			select {
			case <-time.After(resp.Delay):
			case <-r.Context().Done():
				return
			}
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

// SetPage serves body as a 200 HTML page at path.
func (m *MockSite) SetPage(path, body string) {
	m.SetResponse(path, NewPageResponse(body))
}

// RequestCount returns the number of requests served.
func (m *MockSite) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.order)
}

// Requests returns how often path was requested.
func (m *MockSite) Requests(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requests[path]
}

// Paths returns the requested paths in arrival order.
func (m *MockSite) Paths() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.order...)
}

// LastRequestHeader returns the headers of the latest request.
func (m *MockSite) LastRequestHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastRequestHeader
}

// NewPageResponse creates a 200 OK HTML response.
func NewPageResponse(body string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       body,
		Headers:    map[string]string{"Content-Type": "text/html; charset=utf-8"},
	}
}

// NewRateLimitResponse creates a 429 response with the given Retry-After.
func NewRateLimitResponse(retryAfter string) MockResponse {
	resp := MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       "<html><body>Too many requests</body></html>",
		Headers:    map[string]string{"Content-Type": "text/html; charset=utf-8"},
	}
	if retryAfter != "" {
		resp.Headers["Retry-After"] = retryAfter
	}
	return resp
}

// NewServerErrorResponse creates a 503 response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusServiceUnavailable,
		Body:       "<html><body>Down for maintenance</body></html>",
		Headers:    map[string]string{"Content-Type": "text/html; charset=utf-8"},
	}
}

// NewFlakyHandler fails the first failures requests with resp, then serves
// body.
func NewFlakyHandler(failures int, resp MockResponse, body string) http.HandlerFunc {
	var (
		mu   sync.Mutex
		seen int
	)
	return func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen++
		fail := seen <= failures
		mu.Unlock()

		if fail {
			for key, value := range resp.Headers {
				w.Header().Set(key, value)
			}
			w.WriteHeader(resp.StatusCode)
			w.Write([]byte(resp.Body))
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(body))
	}
}

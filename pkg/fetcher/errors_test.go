package fetcher

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		class ErrorClass
		want  bool
	}{
		{ErrorClassClient, false},
		{ErrorClassServer, true},
		{ErrorClassRateLimit, true},
		{ErrorClassNetwork, true},
		{ErrorClassInvalid, false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.class), func(t *testing.T) {
			if got := shouldRetry(tt.class); got != tt.want {
				t.Errorf("shouldRetry(%q) = %v, want %v", tt.class, got, tt.want)
			}
		})
	}
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status int
		want   ErrorClass
	}{
		{http.StatusTooManyRequests, ErrorClassRateLimit},
		{http.StatusInternalServerError, ErrorClassServer},
		{http.StatusBadGateway, ErrorClassServer},
		{http.StatusServiceUnavailable, ErrorClassServer},
		{http.StatusGatewayTimeout, ErrorClassServer},
		{http.StatusNotImplemented, ErrorClassClient},
		{http.StatusNotFound, ErrorClassClient},
		{http.StatusForbidden, ErrorClassClient},
		{http.StatusBadRequest, ErrorClassClient},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			if got := classifyStatus(tt.status); got != tt.want {
				t.Errorf("classifyStatus(%d) = %q, want %q", tt.status, got, tt.want)
			}
		})
	}
}

func TestStatusError_NotFound(t *testing.T) {
	err := error(statusError("https://letterboxd.com/film/nope/", http.StatusNotFound))

	if !errors.Is(err, ErrNotFound) {
		t.Errorf("404 does not match ErrNotFound: %v", err)
	}
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatal("errors.As failed for *FetchError")
	}
	if fe.Transient() {
		t.Error("404 reported as transient")
	}
}

func TestFetchError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *FetchError
		contains []string
	}{
		{
			name:     "status with attempts",
			err:      &FetchError{URL: "https://x/", StatusCode: 503, Class: ErrorClassServer, Attempts: 3, Err: errors.New("Service Unavailable")},
			contains: []string{"https://x/", "server error", "status 503", "after 3 attempts", "Service Unavailable"},
		},
		{
			name:     "network without status",
			err:      &FetchError{URL: "https://x/", Class: ErrorClassNetwork, Attempts: 1, Err: errors.New("connection refused")},
			contains: []string{"network error", "connection refused"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, want := range tt.contains {
				if !strings.Contains(msg, want) {
					t.Errorf("Error() = %q, missing %q", msg, want)
				}
			}
		})
	}
}

func TestFetchError_UnwrapThroughRetry(t *testing.T) {
	inner := &FetchError{URL: "https://x/", StatusCode: 500, Class: ErrorClassServer, Err: errors.New("boom")}
	wrapped := fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, 3, inner)

	if !errors.Is(wrapped, ErrRetryExhausted) {
		t.Error("wrapped error does not match ErrRetryExhausted")
	}
	var fe *FetchError
	if !errors.As(wrapped, &fe) || fe != inner {
		t.Error("wrapped error does not expose the *FetchError")
	}
	if classify(wrapped) != ErrorClassServer {
		t.Errorf("classify = %q, want server", classify(wrapped))
	}
	if classify(errors.New("plain")) != ErrorClassNetwork {
		t.Error("plain errors should classify as network")
	}
}

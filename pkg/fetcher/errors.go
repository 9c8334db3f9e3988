package fetcher

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Common errors returned by the fetcher.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")

	// ErrNotFound matches a 404 response.
	ErrNotFound = errors.New("page not found")

	// ErrInvalidLocator is returned for URLs that can never be fetched.
	ErrInvalidLocator = errors.New("invalid locator")
)

// ErrorClass represents a classification of fetch errors.
type ErrorClass string

const (
	// ErrorClassClient represents permanent 4xx and unlisted 5xx responses.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents transient 500, 502, 503 and 504 responses.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 responses.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents transport and timeout errors.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassInvalid represents malformed locators and unparseable bodies.
	ErrorClassInvalid ErrorClass = "invalid"
)

// FetchError describes a failed fetch.
type FetchError struct {
	URL        string
	StatusCode int
	Class      ErrorClass
	Attempts   int

	// RetryAfter is the server-requested wait for a 429, if any.
	RetryAfter time.Duration

	Err error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	msg := fmt.Sprintf("fetch %s: %s error", e.URL, e.Class)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Attempts > 1 {
		msg += fmt.Sprintf(" after %d attempts", e.Attempts)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Transient reports whether the failure class is worth retrying.
func (e *FetchError) Transient() bool {
	return shouldRetry(e.Class)
}

// classifyStatus maps an HTTP status >= 400 to an error class.
func classifyStatus(status int) ErrorClass {
	switch status {
	case http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return ErrorClassServer
	default:
		return ErrorClassClient
	}
}

// statusError builds the FetchError for an error response.
func statusError(url string, status int) *FetchError {
	fe := &FetchError{
		URL:        url,
		StatusCode: status,
		Class:      classifyStatus(status),
	}
	if status == http.StatusNotFound {
		fe.Err = ErrNotFound
	} else {
		fe.Err = errors.New(http.StatusText(status))
	}
	return fe
}

// classify extracts the error class used by the retry loop.
func classify(err error) ErrorClass {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Class
	}
	return ErrorClassNetwork
}

// shouldRetry determines if an error should be retried based on its classification.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassServer, ErrorClassRateLimit, ErrorClassNetwork:
		return true
	default:
		// Client errors and bad locators fail the same way every time.
		return false
	}
}

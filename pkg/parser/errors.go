package parser

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingTotal is returned when a first page carries no declared count.
	ErrMissingTotal = errors.New("declared total not found")

	// ErrMarkup is returned when expected elements are absent or malformed.
	ErrMarkup = errors.New("unexpected markup")
)

// ParseError records which part of which page could not be parsed.
type ParseError struct {
	URL  string
	What string
	Err  error
}

// Error implements error.
func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %s: %v", e.URL, e.What, e.Err)
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error {
	return e.Err
}

func markupError(url, what string) error {
	return &ParseError{URL: url, What: what, Err: ErrMarkup}
}

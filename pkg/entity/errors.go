package entity

import (
	"errors"
	"fmt"

	"github.com/Sternrassler/letterboxd-client/pkg/model"
)

var (
	// ErrCancelled is returned when the caller's context ends before the
	// entity could be resolved.
	ErrCancelled = errors.New("resolution cancelled")

	// ErrNoLoader is returned by a cache constructed without a loader.
	ErrNoLoader = errors.New("no loader configured")

	// ErrLoaderPanic wraps a panic raised by the loader. The failure is
	// cached like any other until forced.
	ErrLoaderPanic = errors.New("loader panicked")
)

// ResolutionError wraps the fetch or parse failure hit while hydrating a
// single entity.
type ResolutionError struct {
	ID  model.ID
	Err error
}

// Error implements the error interface.
func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve %q: %v", e.ID, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *ResolutionError) Unwrap() error {
	return e.Err
}

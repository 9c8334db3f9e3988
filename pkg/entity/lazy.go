package entity

import (
	"sync/atomic"

	jsoniter "github.com/json-iterator/go"

	"github.com/Sternrassler/letterboxd-client/pkg/model"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// State is the resolution state of a Lazy reference.
type State int

const (
	// StateUnresolved means only the ID is known.
	StateUnresolved State = iota

	// StateResolved means the hydrated value is present.
	StateResolved
)

func (s State) String() string {
	if s == StateResolved {
		return "resolved"
	}
	return "unresolved"
}

// Lazy is a reference-or-value wrapper around an entity of type T.
// Once resolved it never reverts.
type Lazy[T any] struct {
	id    model.ID
	value atomic.Pointer[T]
}

// Unresolved creates a reference that carries only an ID.
func Unresolved[T any](id model.ID) *Lazy[T] {
	return &Lazy[T]{id: id}
}

// Resolved creates a reference that already holds its value.
func Resolved[T any](id model.ID, value T) *Lazy[T] {
	l := &Lazy[T]{id: id}
	l.value.Store(&value)
	return l
}

// ID returns the identifier of the referenced entity.
func (l *Lazy[T]) ID() model.ID {
	return l.id
}

// Get returns the value without any I/O. ok is false while unresolved.
func (l *Lazy[T]) Get() (value T, ok bool) {
	if p := l.value.Load(); p != nil {
		return *p, true
	}
	return value, false
}

// State reports whether the reference has been resolved.
func (l *Lazy[T]) State() State {
	if l.value.Load() != nil {
		return StateResolved
	}
	return StateUnresolved
}

// IsResolved is shorthand for State() == StateResolved.
func (l *Lazy[T]) IsResolved() bool {
	return l.State() == StateResolved
}

// set flips the reference to Resolved. The first value wins.
func (l *Lazy[T]) set(value T) {
	l.value.CompareAndSwap(nil, &value)
}

// String returns the ID.
func (l *Lazy[T]) String() string {
	return string(l.id)
}

// MarshalJSON encodes the value when resolved and the bare ID otherwise.
func (l *Lazy[T]) MarshalJSON() ([]byte, error) {
	if value, ok := l.Get(); ok {
		return json.Marshal(value)
	}
	return json.Marshal(l.id)
}

package entity

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/letterboxd-client/pkg/model"
)

// Loader fetches and parses the full entity for id.
type Loader[T any] func(ctx context.Context, id model.ID) (T, error)

// Resolver hydrates Lazy references. *Cache satisfies it.
type Resolver[T any] interface {
	Resolve(ctx context.Context, ref *Lazy[T]) (T, error)
}

// Stats is a point-in-time view of a cache.
type Stats struct {
	Resolved int
	Failed   int
	InFlight int
	Refs     int
}

// slot holds the outcome of one load. value and err are written once,
// before done is closed.
type slot[T any] struct {
	done      chan struct{}
	value     T
	err       error
	cancelled bool
}

func (s *slot[T]) finished() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Cache resolves entities at most once per ID. It is safe for concurrent
// use and never evicts.
type Cache[T any] struct {
	name   string
	load   Loader[T]
	logger zerolog.Logger

	mu    sync.Mutex
	slots map[model.ID]*slot[T]
	refs  map[model.ID]*Lazy[T]
}

// NewCache creates a cache. name labels log lines and metrics ("film").
func NewCache[T any](name string, load Loader[T], logger zerolog.Logger) *Cache[T] {
	return &Cache[T]{
		name:   name,
		load:   load,
		logger: logger.With().Str("entity", name).Logger(),
		slots:  make(map[model.ID]*slot[T]),
		refs:   make(map[model.ID]*Lazy[T]),
	}
}

// Ref returns the interned reference for id. Every caller naming the same
// id gets the same pointer, so one resolution is visible to all holders.
func (c *Cache[T]) Ref(id model.ID) *Lazy[T] {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ref, ok := c.refs[id]; ok {
		return ref
	}

	ref := Unresolved[T](id)
	if s, ok := c.slots[id]; ok && s.finished() && s.err == nil {
		ref.set(s.value)
	}
	c.refs[id] = ref
	return ref
}

// Resolve returns the hydrated value for ref. A resolved ref costs no I/O.
// Otherwise the cached outcome for its ID is reused, or a load is started
// and ref is flipped to Resolved on success.
func (c *Cache[T]) Resolve(ctx context.Context, ref *Lazy[T]) (T, error) {
	return c.resolveRef(ctx, ref, false)
}

// ResolveID resolves the interned reference for id.
func (c *Cache[T]) ResolveID(ctx context.Context, id model.ID) (T, error) {
	return c.Resolve(ctx, c.Ref(id))
}

// Force behaves like Resolve but re-attempts a cached failure. A cached
// success is returned as is.
func (c *Cache[T]) Force(ctx context.Context, ref *Lazy[T]) (T, error) {
	return c.resolveRef(ctx, ref, true)
}

// Seed stores an already hydrated value for id unless an outcome exists.
// It reports whether the value was stored.
func (c *Cache[T]) Seed(id model.ID, value T) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.slots[id]; ok {
		return false
	}

	s := &slot[T]{done: make(chan struct{}), value: value}
	close(s.done)
	c.slots[id] = s
	if ref, ok := c.refs[id]; ok {
		ref.set(value)
	}
	return true
}

// Stats counts slots by state.
func (c *Cache[T]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := Stats{Refs: len(c.refs)}
	for _, s := range c.slots {
		switch {
		case !s.finished():
			st.InFlight++
		case s.err != nil:
			st.Failed++
		default:
			st.Resolved++
		}
	}
	return st
}

// Len returns the number of successfully resolved IDs.
func (c *Cache[T]) Len() int {
	return c.Stats().Resolved
}

func (c *Cache[T]) resolveRef(ctx context.Context, ref *Lazy[T], force bool) (T, error) {
	if value, ok := ref.Get(); ok {
		resolutionsTotal.WithLabelValues(c.name, "hit").Inc()
		return value, nil
	}

	value, err := c.resolve(ctx, ref.ID(), force)
	if err != nil {
		var zero T
		return zero, err
	}
	ref.set(value)
	return value, nil
}

func (c *Cache[T]) resolve(ctx context.Context, id model.ID, force bool) (T, error) {
	var zero T

	for {
		c.mu.Lock()
		s, ok := c.slots[id]
		if ok && force && s.finished() && s.err != nil {
			c.logger.Debug().Str("film", string(id)).Msg("Forcing re-resolution of cached failure")
			delete(c.slots, id)
			ok = false
		}
		force = false

		if !ok {
			if err := ctx.Err(); err != nil {
				c.mu.Unlock()
				resolutionsTotal.WithLabelValues(c.name, "cancelled").Inc()
				return zero, c.cancelled(id, err)
			}
			s = &slot[T]{done: make(chan struct{})}
			c.slots[id] = s
			c.mu.Unlock()
			return c.fill(ctx, id, s)
		}
		c.mu.Unlock()

		if s.finished() {
			resolutionsTotal.WithLabelValues(c.name, "hit").Inc()
			return s.value, s.err
		}

		select {
		case <-s.done:
		case <-ctx.Done():
			resolutionsTotal.WithLabelValues(c.name, "cancelled").Inc()
			return zero, c.cancelled(id, ctx.Err())
		}

		if s.cancelled {
			// The loading caller gave up; its slot is gone, start over.
			continue
		}
		resolutionsTotal.WithLabelValues(c.name, "shared").Inc()
		return s.value, s.err
	}
}

// fill runs the loader for a slot owned by the calling goroutine.
func (c *Cache[T]) fill(ctx context.Context, id model.ID, s *slot[T]) (T, error) {
	var zero T

	c.logger.Debug().Str("film", string(id)).Msg("Resolving entity")
	start := time.Now()

	var (
		value T
		err   error
	)
	if c.load == nil {
		err = ErrNoLoader
	} else {
		value, err = c.call(ctx, id)
	}
	loadDuration.WithLabelValues(c.name).Observe(time.Since(start).Seconds())

	c.mu.Lock()
	defer c.mu.Unlock()
	defer close(s.done)

	if err != nil && ctx.Err() != nil {
		delete(c.slots, id)
		s.cancelled = true
		s.err = c.cancelled(id, ctx.Err())
		resolutionsTotal.WithLabelValues(c.name, "cancelled").Inc()
		c.logger.Debug().Str("film", string(id)).Msg("Resolution cancelled, outcome not cached")
		return zero, s.err
	}

	if err != nil {
		s.err = &ResolutionError{ID: id, Err: err}
		resolutionsTotal.WithLabelValues(c.name, "failed").Inc()
		c.logger.Warn().Err(err).Str("film", string(id)).Msg("Entity resolution failed")
		return zero, s.err
	}

	s.value = value
	if ref, ok := c.refs[id]; ok {
		ref.set(value)
	}
	resolutionsTotal.WithLabelValues(c.name, "loaded").Inc()
	c.logger.Debug().
		Str("film", string(id)).
		Dur("duration", time.Since(start)).
		Msg("Entity resolved")
	return value, nil
}

// call runs the loader, turning a panic into an error so the slot always
// settles.
func (c *Cache[T]) call(ctx context.Context, id model.ID) (value T, err error) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error().
				Str("film", string(id)).
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("Loader panicked")
			err = fmt.Errorf("%w: %v", ErrLoaderPanic, r)
		}
	}()
	return c.load(ctx, id)
}

func (c *Cache[T]) cancelled(id model.ID, cause error) error {
	return &ResolutionError{ID: id, Err: fmt.Errorf("%w: %v", ErrCancelled, cause)}
}

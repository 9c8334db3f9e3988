package record

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/Sternrassler/letterboxd-client/pkg/entity"
	"github.com/Sternrassler/letterboxd-client/pkg/model"
)

type resolveOptions struct {
	parallelism int
}

// ResolveOption tunes ResolveAll.
type ResolveOption func(*resolveOptions)

// WithParallelism resolves up to n distinct films at once.
func WithParallelism(n int) ResolveOption {
	return func(o *resolveOptions) {
		if n > 0 {
			o.parallelism = n
		}
	}
}

// ResolveAll hydrates the films of the first limit entries, or of all
// entries when limit <= 0. Later entries stay lazy. Entry order is never
// changed. It returns how many of the targeted entries are resolved and
// the error of the first failing entry in sequence order.
//
// Sequentially it stops at the first failure. In parallel every targeted
// film is attempted.
func ResolveAll(ctx context.Context, res entity.Resolver[model.Film], rec *Record, limit int, opts ...ResolveOption) (int, error) {
	o := resolveOptions{parallelism: 1}
	for _, opt := range opts {
		opt(&o)
	}

	targets := rec.Entries
	if limit > 0 && limit < len(targets) {
		targets = targets[:limit]
	}

	if o.parallelism == 1 {
		for i, e := range targets {
			if _, err := res.Resolve(ctx, e.Film); err != nil {
				return i, err
			}
		}
		return len(targets), nil
	}

	// One goroutine per distinct reference; duplicates share the outcome.
	errs := make([]error, len(targets))
	first := make(map[*entity.Lazy[model.Film]]int, len(targets))

	var g errgroup.Group
	g.SetLimit(o.parallelism)
	for i, e := range targets {
		if _, seen := first[e.Film]; seen {
			continue
		}
		first[e.Film] = i
		g.Go(func() error {
			_, errs[i] = res.Resolve(ctx, e.Film)
			return nil
		})
	}
	_ = g.Wait()

	resolved := 0
	var firstErr error
	for _, e := range targets {
		err := errs[first[e.Film]]
		if err == nil {
			resolved++
		} else if firstErr == nil {
			firstErr = err
		}
	}
	return resolved, firstErr
}

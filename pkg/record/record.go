// Package record assembles aggregated pages into typed, ordered records of
// film entries and offers read-only views over them.
package record

import (
	"time"

	"github.com/Sternrassler/letterboxd-client/pkg/entity"
	"github.com/Sternrassler/letterboxd-client/pkg/model"
	"github.com/Sternrassler/letterboxd-client/pkg/pagination"
)

// Partial is the page-local view of one entry, before films are linked.
type Partial struct {
	Film        model.ID
	WatchedDate time.Time
	Rating      model.Rating
	Liked       bool
	Rewatch     bool
	Review      string
	ReviewURL   string

	// FullTextURL is set when the page showed a truncated review.
	FullTextURL string
}

// Entry is one film in a record together with its activity context.
// Bare list and watchlist entries carry no context.
type Entry struct {
	Film        *entity.Lazy[model.Film]
	WatchedDate time.Time
	Rating      model.Rating
	Liked       bool
	Rewatch     bool
	Review      string
	ReviewURL   string
}

// ID returns the film identifier.
func (e Entry) ID() model.ID {
	return e.Film.ID()
}

// HasContext reports whether the entry carries any activity data.
func (e Entry) HasContext() bool {
	return !e.WatchedDate.IsZero() || e.Rating.Present() || e.Review != "" || e.Liked || e.Rewatch
}

// Interner hands out shared film references. *entity.Cache implements it.
type Interner interface {
	Ref(id model.ID) *entity.Lazy[model.Film]
}

// Record is a completed aggregate.
type Record struct {
	Owner         model.ID
	Kind          pagination.Kind
	Title         string
	DeclaredTotal int
	Entries       []Entry
	Pages         int

	drift int
	ranks map[int]int // rank -> index into Entries, nil when unranked
}

// Build links each partial to an interned film reference, keeping order.
func Build(res *pagination.Result[Partial], refs Interner) *Record {
	rec := &Record{
		Owner:         res.Subject,
		Kind:          res.Kind,
		Title:         res.Title,
		DeclaredTotal: res.DeclaredTotal,
		Entries:       make([]Entry, len(res.Items)),
		Pages:         res.Pages,
		drift:         res.Drift,
	}

	for i, p := range res.Items {
		var ref *entity.Lazy[model.Film]
		if refs != nil {
			ref = refs.Ref(p.Film)
		} else {
			ref = entity.Unresolved[model.Film](p.Film)
		}
		rec.Entries[i] = Entry{
			Film:        ref,
			WatchedDate: p.WatchedDate,
			Rating:      p.Rating,
			Liked:       p.Liked,
			Rewatch:     p.Rewatch,
			Review:      p.Review,
			ReviewURL:   p.ReviewURL,
		}
	}

	if res.Numbered {
		rec.ranks = make(map[int]int, len(rec.Entries))
		for i := range rec.Entries {
			rec.ranks[i+1] = i
		}
	}
	return rec
}

// Len returns the number of entries.
func (r *Record) Len() int {
	return len(r.Entries)
}

// Numbered reports whether entries carry ranks.
func (r *Record) Numbered() bool {
	return r.ranks != nil
}

// Rank returns the entry at rank n, counting from 1.
func (r *Record) Rank(n int) (Entry, bool) {
	i, ok := r.ranks[n]
	if !ok {
		return Entry{}, false
	}
	return r.Entries[i], true
}

// Ranks returns a copy of the rank to entry mapping, or nil.
func (r *Record) Ranks() map[int]Entry {
	if r.ranks == nil {
		return nil
	}
	out := make(map[int]Entry, len(r.ranks))
	for rank, i := range r.ranks {
		out[rank] = r.Entries[i]
	}
	return out
}

// Drift is the accepted difference between collected and declared
// entries. It is zero unless a drift tolerance was configured.
func (r *Record) Drift() int {
	return r.drift
}

// Filter returns the entries matching pred, in order.
func (r *Record) Filter(pred func(Entry) bool) []Entry {
	var out []Entry
	for _, e := range r.Entries {
		if pred(e) {
			out = append(out, e)
		}
	}
	return out
}

// Find returns the first entry for id.
func (r *Record) Find(id model.ID) (Entry, bool) {
	for _, e := range r.Entries {
		if e.ID() == id {
			return e, true
		}
	}
	return Entry{}, false
}

// Films returns the film IDs in order.
func (r *Record) Films() []model.ID {
	out := make([]model.ID, len(r.Entries))
	for i, e := range r.Entries {
		out[i] = e.ID()
	}
	return out
}

// Resolved counts entries whose film is hydrated.
func (r *Record) Resolved() int {
	n := 0
	for _, e := range r.Entries {
		if e.Film.IsResolved() {
			n++
		}
	}
	return n
}

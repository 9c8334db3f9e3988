// Package session ties the fetcher, the paginated collections and the film
// cache together behind one facade.
//
//	client, _ := fetcher.New(fetcher.DefaultConfig("my-app/1.0"))
//	s := session.New(client)
//	diary, err := s.Diary(ctx, "dave")
//	n, err := s.ResolveAll(ctx, diary, 10)
//
// Every collection built by one Session shares film references, so a film
// resolved through one record is resolved in all of them.
package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/letterboxd-client/pkg/entity"
	"github.com/Sternrassler/letterboxd-client/pkg/fetcher"
	"github.com/Sternrassler/letterboxd-client/pkg/model"
	"github.com/Sternrassler/letterboxd-client/pkg/pagination"
	"github.com/Sternrassler/letterboxd-client/pkg/parser"
	"github.com/Sternrassler/letterboxd-client/pkg/record"
)

// Option configures a Session.
type Option func(*Session)

// WithFilmCache shares a film cache between sessions.
func WithFilmCache(c *entity.Cache[model.Film]) Option {
	return func(s *Session) {
		s.films = c
	}
}

// WithSite overrides the URL builder. By default the fetcher's own site is
// used when it exposes one.
func WithSite(site fetcher.Site) Option {
	return func(s *Session) {
		s.site = site
	}
}

// WithConfig sets the aggregation configuration.
func WithConfig(cfg pagination.Config) Option {
	return func(s *Session) {
		s.config = cfg
	}
}

// WithReviewText controls whether truncated reviews are completed with
// their full text. Enabled by default.
func WithReviewText(enabled bool) Option {
	return func(s *Session) {
		s.reviewText = enabled
	}
}

// WithNanogenres controls whether resolving a film also reads its
// nanogenre page. Enabled by default.
func WithNanogenres(enabled bool) Option {
	return func(s *Session) {
		s.nanogenres = enabled
	}
}

// FilmLayer wraps the network film loader, typically with a persistent
// store. *store.Store implements it.
type FilmLayer interface {
	FilmLoader(next entity.Loader[model.Film]) entity.Loader[model.Film]
}

// WithFilmLayer consults layer before the network when resolving films.
// Ignored when WithFilmCache supplies a cache.
func WithFilmLayer(layer FilmLayer) Option {
	return func(s *Session) {
		s.layer = layer
	}
}

// Session is the entry point for reading collections and films.
type Session struct {
	fetcher    fetcher.Fetcher
	site       fetcher.Site
	config     pagination.Config
	films      *entity.Cache[model.Film]
	reviewText bool
	nanogenres bool
	layer      FilmLayer
	logger     zerolog.Logger
}

// New creates a session reading through f.
func New(f fetcher.Fetcher, opts ...Option) *Session {
	if f == nil {
		panic("session: fetcher is required")
	}

	s := &Session{
		fetcher:    f,
		site:       fetcher.DefaultSite(),
		config:     pagination.DefaultConfig(),
		reviewText: true,
		nanogenres: true,
		logger:     log.With().Str("component", "session").Logger(),
	}
	if sited, ok := f.(interface{ Site() fetcher.Site }); ok {
		s.site = sited.Site()
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.films == nil {
		load := entity.Loader[model.Film](s.loadFilm)
		if s.layer != nil {
			load = s.layer.FilmLoader(load)
		}
		s.films = entity.NewCache[model.Film]("film", load, s.logger)
	}
	return s
}

// Films returns the session's film cache.
func (s *Session) Films() *entity.Cache[model.Film] {
	return s.films
}

// Site returns the URL builder in use.
func (s *Session) Site() fetcher.Site {
	return s.site
}

// Aggregate reads every page of a film collection and builds its record.
func (s *Session) Aggregate(ctx context.Context, kind pagination.Kind, subject model.ID) (*record.Record, error) {
	src, err := parser.Entries(s.site, kind)
	if err != nil {
		return nil, err
	}

	res, err := pagination.New(s.fetcher, src, s.config).Aggregate(ctx, subject)
	if err != nil {
		return nil, err
	}

	if kind == pagination.KindReviews && s.reviewText {
		if err := s.completeReviews(ctx, res); err != nil {
			return nil, err
		}
	}
	return record.Build(res, s.films), nil
}

// Watchlist reads a member's watchlist.
func (s *Session) Watchlist(ctx context.Context, user model.ID) (*record.Record, error) {
	return s.Aggregate(ctx, pagination.KindWatchlist, user)
}

// Diary reads a member's diary.
func (s *Session) Diary(ctx context.Context, user model.ID) (*record.Record, error) {
	return s.Aggregate(ctx, pagination.KindDiary, user)
}

// Reviews reads a member's reviews.
func (s *Session) Reviews(ctx context.Context, user model.ID) (*record.Record, error) {
	return s.Aggregate(ctx, pagination.KindReviews, user)
}

// Logs reads every film a member has logged.
func (s *Session) Logs(ctx context.Context, user model.ID) (*record.Record, error) {
	return s.Aggregate(ctx, pagination.KindLogs, user)
}

// List reads a member's named list.
func (s *Session) List(ctx context.Context, owner, name string) (*record.Record, error) {
	return s.Aggregate(ctx, pagination.KindList, model.ListID(owner, name))
}

// ListIndex reads the index of a member's lists without their contents.
func (s *Session) ListIndex(ctx context.Context, user model.ID) ([]parser.ListSummary, error) {
	res, err := pagination.New(s.fetcher, parser.UserLists(s.site), s.config).Aggregate(ctx, user)
	if err != nil {
		return nil, err
	}
	return res.Items, nil
}

// Lists reads every list of a member, in index order.
func (s *Session) Lists(ctx context.Context, user model.ID) ([]*record.Record, error) {
	index, err := s.ListIndex(ctx, user)
	if err != nil {
		return nil, err
	}

	out := make([]*record.Record, 0, len(index))
	for _, summary := range index {
		rec, err := s.Aggregate(ctx, pagination.KindList, summary.ID)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", summary.ID, err)
		}
		if rec.Title == "" {
			rec.Title = summary.Title
		}
		out = append(out, rec)
	}
	return out, nil
}

// Browse reads up to pages pages of a feed. Feeds declare no total.
func (s *Session) Browse(ctx context.Context, feed fetcher.Feed, pages int) (*record.Record, error) {
	if pages <= 0 {
		return nil, fmt.Errorf("browse %s: page count must be positive, got %d", feed, pages)
	}
	res, err := pagination.New(s.fetcher, parser.Feed(s.site, feed), s.config).
		CollectPages(ctx, model.ID(feed.String()), pages)
	if err != nil {
		return nil, err
	}
	return record.Build(res, s.films), nil
}

// Profile is a member's profile summary. FavouriteFilms holds the session's
// references for Favourites, in the same order.
type Profile struct {
	model.Profile
	FavouriteFilms []*entity.Lazy[model.Film]
}

// Profile reads a member's profile summary.
func (s *Session) Profile(ctx context.Context, user model.ID) (Profile, error) {
	page, err := s.fetcher.Fetch(ctx, s.site.Profile(user))
	if err != nil {
		return Profile{}, fmt.Errorf("profile %s: %w", user, err)
	}
	p, err := parser.Profile(page, user)
	if err != nil {
		return Profile{}, err
	}

	out := Profile{Profile: p, FavouriteFilms: make([]*entity.Lazy[model.Film], len(p.Favourites))}
	for i, slug := range p.Favourites {
		out.FavouriteFilms[i] = s.films.Ref(slug)
	}
	return out, nil
}

// Film resolves a film by slug through the cache.
func (s *Session) Film(ctx context.Context, slug model.ID) (model.Film, error) {
	return s.films.ResolveID(ctx, slug)
}

// Resolve hydrates one film reference.
func (s *Session) Resolve(ctx context.Context, ref *entity.Lazy[model.Film]) (model.Film, error) {
	return s.films.Resolve(ctx, ref)
}

// ResolveAll hydrates the films of the first limit entries of rec, or all
// of them when limit <= 0.
func (s *Session) ResolveAll(ctx context.Context, rec *record.Record, limit int, opts ...record.ResolveOption) (int, error) {
	return record.ResolveAll(ctx, s.films, rec, limit, opts...)
}

func (s *Session) loadFilm(ctx context.Context, slug model.ID) (model.Film, error) {
	page, err := s.fetcher.Fetch(ctx, s.site.Film(slug))
	if err != nil {
		return model.Film{}, err
	}
	film, err := parser.Film(page, slug)
	if err != nil {
		return model.Film{}, err
	}

	if s.nanogenres {
		nano, err := s.fetcher.Fetch(ctx, s.site.Nanogenres(slug))
		switch {
		case err == nil:
			film.Nanogenres = parser.Nanogenres(nano)
		case errors.Is(err, fetcher.ErrNotFound):
			s.logger.Debug().Str("film", string(slug)).Msg("No nanogenre page")
		default:
			return model.Film{}, fmt.Errorf("nanogenres: %w", err)
		}
	}
	return film, nil
}

// completeReviews replaces truncated review teasers with their full text.
// Failures are reported as aggregation errors of the reviews record.
func (s *Session) completeReviews(ctx context.Context, res *pagination.Result[record.Partial]) error {
	fail := func(err error) error {
		reason := pagination.ErrPartialFailure
		if pagination.Cancelled(ctx, err) {
			reason = pagination.ErrCancelled
		}
		return &pagination.AggregationError{
			Reason:         reason,
			Subject:        res.Subject,
			Kind:           pagination.KindReviews,
			Page:           res.Pages,
			CompletedPages: res.Pages,
			TotalPages:     res.Pages,
			Err:            err,
		}
	}

	for i := range res.Items {
		p := &res.Items[i]
		if p.FullTextURL == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		page, err := s.fetcher.Fetch(ctx, s.site.Resolve(p.FullTextURL))
		if err != nil {
			return fail(fmt.Errorf("review text for %s: %w", p.Film, err))
		}
		if text := parser.ReviewText(page); text != "" {
			p.Review = text
		}
		s.logger.Debug().Str("film", string(p.Film)).Msg("Review text completed")
	}
	return nil
}

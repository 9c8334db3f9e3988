package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sternrassler/letterboxd-client/internal/testutil"
	"github.com/Sternrassler/letterboxd-client/pkg/entity"
	"github.com/Sternrassler/letterboxd-client/pkg/fetcher"
	"github.com/Sternrassler/letterboxd-client/pkg/model"
	"github.com/Sternrassler/letterboxd-client/pkg/pagination"
)

func fastRetry(fetcher.ErrorClass) fetcher.RetryConfig {
	return fetcher.RetryConfig{
		MaxAttempts:       2,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        2 * time.Millisecond,
		BackoffMultiplier: 2,
	}
}

func newSession(t *testing.T, opts ...Option) (*Session, *testutil.MockSite) {
	t.Helper()
	site := testutil.NewMockSite()
	t.Cleanup(site.Close)

	cfg := fetcher.DefaultConfig("boxd-test/1.0")
	cfg.BaseURL = site.URL()
	cfg.MinDelay, cfg.MaxDelay = 0, 0
	cfg.Retry = fastRetry

	client, err := fetcher.New(cfg)
	require.NoError(t, err)
	return New(client, opts...), site
}

func serveWatchlist(site *testutil.MockSite, user string, slugs []model.ID) {
	for i, chunk := range testutil.Chunk(slugs, 28) {
		site.SetPage(fmt.Sprintf("/%s/watchlist/page/%d/", user, i+1), testutil.WatchlistHTML(len(slugs), chunk))
	}
}

func serveFilm(site *testutil.MockSite, slug model.ID, title string) {
	site.SetPage(fmt.Sprintf("/film/%s/", slug), testutil.FilmHTML(slug, title, 2001))
	site.SetPage(fmt.Sprintf("/film/%s/nanogenres/", slug), testutil.NanogenresHTML("Quiet Dread"))
}

func TestSession_Watchlist(t *testing.T) {
	s, site := newSession(t)
	slugs := testutil.Slugs("film", 60)
	serveWatchlist(site, "dave", slugs)

	rec, err := s.Watchlist(context.Background(), "dave")
	require.NoError(t, err)

	assert.Equal(t, slugs, rec.Films())
	assert.Equal(t, 60, rec.DeclaredTotal)
	assert.Equal(t, 3, rec.Pages)
	assert.Equal(t, pagination.KindWatchlist, rec.Kind)
	assert.Zero(t, rec.Resolved(), "aggregation must not resolve films")
	assert.Equal(t, []string{
		"/dave/watchlist/page/1/",
		"/dave/watchlist/page/2/",
		"/dave/watchlist/page/3/",
	}, site.Paths())
}

func TestSession_EmptyWatchlist(t *testing.T) {
	s, site := newSession(t)
	serveWatchlist(site, "dave", nil)

	rec, err := s.Watchlist(context.Background(), "dave")
	require.NoError(t, err)
	assert.Zero(t, rec.Len())
	assert.Equal(t, 1, site.RequestCount())
}

func TestSession_PartialFailure(t *testing.T) {
	s, site := newSession(t)
	slugs := testutil.Slugs("film", 60)
	serveWatchlist(site, "dave", slugs)
	site.SetResponse("/dave/watchlist/page/2/", testutil.NewServerErrorResponse())

	rec, err := s.Watchlist(context.Background(), "dave")
	assert.Nil(t, rec)

	var ae *pagination.AggregationError
	require.ErrorAs(t, err, &ae)
	assert.ErrorIs(t, err, pagination.ErrPartialFailure)
	assert.Equal(t, 1, ae.CompletedPages)
	assert.Equal(t, 3, ae.TotalPages)
	assert.Zero(t, site.Requests("/dave/watchlist/page/3/"))
}

func TestSession_DiaryKeepsContext(t *testing.T) {
	s, site := newSession(t)
	day := time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC)
	site.SetPage("/dave/films/diary/page/1/", testutil.DiaryHTML("dave", 2, []testutil.Diary{
		{Film: "heat-1995", Date: day, HalfStars: 9, Liked: true, Review: true},
		{Film: "ronin", Date: day.AddDate(0, 0, -1), Rewatch: true},
	}))

	rec, err := s.Diary(context.Background(), "dave")
	require.NoError(t, err)
	require.Equal(t, 2, rec.Len())

	first := rec.Entries[0]
	assert.Equal(t, model.ID("heat-1995"), first.ID())
	assert.Equal(t, day, first.WatchedDate)
	assert.Equal(t, model.Rating(4.5), first.Rating)
	assert.True(t, first.Liked)
	assert.Equal(t, "/dave/film/heat-1995/", first.ReviewURL)

	second := rec.Entries[1]
	assert.True(t, second.Rewatch)
	assert.False(t, second.Rating.Present())
}

func TestSession_ReviewsCompleteText(t *testing.T) {
	s, site := newSession(t)
	day := time.Date(2024, time.January, 20, 0, 0, 0, 0, time.UTC)
	site.SetPage("/dave/films/reviews/page/1/", testutil.ReviewsHTML(2, []testutil.Review{
		{Film: "perfect-days", Date: day, HalfStars: 10, Text: "Komorebi", FullTextURL: "/s/full-text/viewing:1/"},
		{Film: "aftersun", Date: day, Text: "Short and whole."},
	}))
	site.SetPage("/s/full-text/viewing:1/", "<p>Komorebi, light through leaves.</p><p>Second thought.</p>")

	rec, err := s.Reviews(context.Background(), "dave")
	require.NoError(t, err)
	require.Equal(t, 2, rec.Len())
	assert.Equal(t, "Komorebi, light through leaves.\n\nSecond thought.", rec.Entries[0].Review)
	assert.Equal(t, "Short and whole.", rec.Entries[1].Review)
}

func TestSession_ReviewsWithoutCompletion(t *testing.T) {
	s, site := newSession(t, WithReviewText(false))
	site.SetPage("/dave/films/reviews/page/1/", testutil.ReviewsHTML(1, []testutil.Review{
		{Film: "perfect-days", Date: time.Now(), Text: "Komorebi", FullTextURL: "/s/full-text/viewing:1/"},
	}))

	rec, err := s.Reviews(context.Background(), "dave")
	require.NoError(t, err)
	assert.Equal(t, "Komorebi", rec.Entries[0].Review)
	assert.Zero(t, site.Requests("/s/full-text/viewing:1/"))
}

func TestSession_ReviewTextFailure(t *testing.T) {
	s, site := newSession(t)
	site.SetPage("/dave/films/reviews/page/1/", testutil.ReviewsHTML(1, []testutil.Review{
		{Film: "perfect-days", Date: time.Now(), Text: "Komorebi", FullTextURL: "/s/full-text/viewing:1/"},
	}))

	rec, err := s.Reviews(context.Background(), "dave")
	assert.Nil(t, rec)

	var ae *pagination.AggregationError
	require.ErrorAs(t, err, &ae)
	assert.ErrorIs(t, err, pagination.ErrPartialFailure)
	assert.ErrorIs(t, err, fetcher.ErrNotFound)
	assert.Equal(t, pagination.KindReviews, ae.Kind)
	assert.Equal(t, model.ID("dave"), ae.Subject)
	assert.Equal(t, 1, ae.Page)
	assert.Contains(t, err.Error(), "perfect-days")
}

func TestSession_ReviewTextCancelled(t *testing.T) {
	s, site := newSession(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	site.SetPage("/dave/films/reviews/page/1/", testutil.ReviewsHTML(2, []testutil.Review{
		{Film: "perfect-days", Date: time.Now(), Text: "Komorebi", FullTextURL: "/s/full-text/viewing:1/"},
		{Film: "aftersun", Date: time.Now(), Text: "Sun", FullTextURL: "/s/full-text/viewing:2/"},
	}))
	site.SetHandler("/s/full-text/viewing:1/", func(w http.ResponseWriter, r *http.Request) {
		cancel()
		fmt.Fprint(w, "<p>Komorebi, light through leaves.</p>")
	})
	site.SetPage("/s/full-text/viewing:2/", "<p>Sun, whole.</p>")

	_, err := s.Reviews(ctx, "dave")

	var ae *pagination.AggregationError
	require.ErrorAs(t, err, &ae)
	assert.ErrorIs(t, err, pagination.ErrCancelled)
	assert.Equal(t, pagination.KindReviews, ae.Kind)
	assert.Zero(t, site.Requests("/s/full-text/viewing:2/"))
}

func TestSession_RankedList(t *testing.T) {
	s, site := newSession(t)
	slugs := testutil.Slugs("rank", 150)
	for i, chunk := range testutil.Chunk(slugs, 100) {
		site.SetPage(fmt.Sprintf("/dave/list/top-150/page/%d/", i+1), testutil.ListHTML("Top 150", 150, true, chunk))
	}

	rec, err := s.List(context.Background(), "dave", "top-150")
	require.NoError(t, err)

	assert.Equal(t, "Top 150", rec.Title)
	assert.Equal(t, model.ListID("dave", "top-150"), rec.Owner)
	require.True(t, rec.Numbered())
	ranks := rec.Ranks()
	assert.Len(t, ranks, 150)
	for n := 1; n <= 150; n++ {
		e, ok := rec.Rank(n)
		require.True(t, ok, "rank %d", n)
		assert.Equal(t, slugs[n-1], e.ID())
	}
}

func TestSession_Lists(t *testing.T) {
	s, site := newSession(t)
	lists := []model.ID{model.ListID("dave", "one"), model.ListID("dave", "two")}
	site.SetPage("/dave/lists/page/1/", testutil.UserListsHTML(2, lists))
	site.SetPage("/dave/list/one/page/1/", testutil.ListHTML("One", 2, false, []model.ID{"a", "b"}))
	site.SetPage("/dave/list/two/page/1/", testutil.ListHTML("Two", 1, false, []model.ID{"a"}))

	recs, err := s.Lists(context.Background(), "dave")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "One", recs[0].Title)
	assert.Equal(t, []model.ID{"a", "b"}, recs[0].Films())
	assert.Equal(t, "Two", recs[1].Title)

	// Both lists hold the same reference for film "a".
	assert.Same(t, recs[0].Entries[0].Film, recs[1].Entries[0].Film)
}

func TestSession_ListsFailureNamesList(t *testing.T) {
	s, site := newSession(t)
	site.SetPage("/dave/lists/page/1/", testutil.UserListsHTML(1, []model.ID{model.ListID("dave", "gone")}))

	_, err := s.Lists(context.Background(), "dave")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dave/list/gone")
	assert.ErrorIs(t, err, fetcher.ErrNotFound)
}

func TestSession_SharedResolution(t *testing.T) {
	s, site := newSession(t)
	serveWatchlist(site, "dave", []model.ID{"heat-1995", "ronin"})
	site.SetPage("/dave/films/page/1/", testutil.LogsHTML(1, []testutil.Log{{Film: "heat-1995", HalfStars: 10}}))
	serveFilm(site, "heat-1995", "Heat")

	ctx := context.Background()
	watchlist, err := s.Watchlist(ctx, "dave")
	require.NoError(t, err)
	logs, err := s.Logs(ctx, "dave")
	require.NoError(t, err)

	n, err := s.ResolveAll(ctx, logs, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	film, ok := watchlist.Entries[0].Film.Get()
	require.True(t, ok, "watchlist reference was not flipped")
	assert.Equal(t, "Heat", film.Title)
	assert.Equal(t, []string{"Quiet Dread"}, film.Nanogenres)
	assert.False(t, watchlist.Entries[1].Film.IsResolved())

	_, err = s.Resolve(ctx, watchlist.Entries[0].Film)
	require.NoError(t, err)
	assert.Equal(t, 1, site.Requests("/film/heat-1995/"))
}

func TestSession_FilmWithoutNanogenres(t *testing.T) {
	s, site := newSession(t)
	site.SetPage("/film/ronin/", testutil.FilmHTML("ronin", "Ronin", 1998))

	film, err := s.Film(context.Background(), "ronin")
	require.NoError(t, err)
	assert.Equal(t, "Ronin", film.Title)
	assert.Equal(t, 1998, film.Year)
	assert.Empty(t, film.Nanogenres)
}

func TestSession_FilmNotFoundIsCached(t *testing.T) {
	s, site := newSession(t)
	ctx := context.Background()

	_, err := s.Film(ctx, "missing")
	var re *entity.ResolutionError
	require.ErrorAs(t, err, &re)
	assert.ErrorIs(t, err, fetcher.ErrNotFound)

	_, err = s.Film(ctx, "missing")
	require.Error(t, err)
	assert.Equal(t, 1, site.Requests("/film/missing/"))
}

func TestSession_SharedFilmCache(t *testing.T) {
	a, site := newSession(t)
	serveFilm(site, "heat-1995", "Heat")
	b := New(fetcher.FetcherFunc(func(context.Context, string) (*fetcher.Page, error) {
		return nil, errors.New("second session must not fetch")
	}), WithFilmCache(a.Films()))

	ctx := context.Background()
	_, err := a.Film(ctx, "heat-1995")
	require.NoError(t, err)

	film, err := b.Film(ctx, "heat-1995")
	require.NoError(t, err)
	assert.Equal(t, "Heat", film.Title)
}

func TestSession_Profile(t *testing.T) {
	s, site := newSession(t)
	site.SetPage("/dave/", testutil.ProfileHTML("dave", 1204, []model.ID{"stalker", "heat-1995"}))

	p, err := s.Profile(context.Background(), "dave")
	require.NoError(t, err)
	assert.Equal(t, model.ID("dave"), p.Username)
	assert.Equal(t, 1204, p.FilmsWatched)
	assert.Equal(t, []model.ID{"stalker", "heat-1995"}, p.Favourites)

	require.Len(t, p.FavouriteFilms, 2)
	assert.Same(t, s.Films().Ref("heat-1995"), p.FavouriteFilms[1], "favourites share the session's references")

	serveFilm(site, "heat-1995", "Heat")
	_, err = s.Film(context.Background(), "heat-1995")
	require.NoError(t, err)
	assert.True(t, p.FavouriteFilms[1].IsResolved())
	assert.False(t, p.FavouriteFilms[0].IsResolved())
}

func TestSession_Browse(t *testing.T) {
	s, site := newSession(t)
	site.SetPage("/films/ajax/popular/page/1/", testutil.FeedHTML(testutil.Slugs("pop", 72)))
	site.SetPage("/films/ajax/popular/page/2/", testutil.FeedHTML(testutil.Slugs("more", 10)))
	site.SetPage("/films/ajax/popular/page/3/", testutil.FeedHTML(nil))

	rec, err := s.Browse(context.Background(), fetcher.Feed{Kind: fetcher.FeedPopular}, 5)
	require.NoError(t, err)
	assert.Equal(t, 82, rec.Len())
	assert.Equal(t, 2, rec.Pages)
	assert.Equal(t, model.ID("popular"), rec.Owner)
	assert.Zero(t, site.Requests("/films/ajax/popular/page/4/"))

	_, err = s.Browse(context.Background(), fetcher.Feed{Kind: fetcher.FeedPopular}, 0)
	assert.Error(t, err)
}

func TestSession_CountMismatch(t *testing.T) {
	s, site := newSession(t)
	site.SetPage("/dave/watchlist/page/1/", testutil.WatchlistHTML(30, testutil.Slugs("film", 28)))
	site.SetPage("/dave/watchlist/page/2/", testutil.WatchlistHTML(30, testutil.Slugs("tail", 1)))

	_, err := s.Watchlist(context.Background(), "dave")
	assert.ErrorIs(t, err, pagination.ErrCountMismatch)

	tolerant, site2 := newSession(t, WithConfig(pagination.Config{DriftTolerance: 2}))
	site2.SetPage("/dave/watchlist/page/1/", testutil.WatchlistHTML(30, testutil.Slugs("film", 28)))
	site2.SetPage("/dave/watchlist/page/2/", testutil.WatchlistHTML(30, testutil.Slugs("tail", 1)))

	rec, err := tolerant.Watchlist(context.Background(), "dave")
	require.NoError(t, err)
	assert.Equal(t, -1, rec.Drift())
}

func TestSession_UserAgentSent(t *testing.T) {
	s, site := newSession(t)
	serveWatchlist(site, "dave", nil)

	_, err := s.Watchlist(context.Background(), "dave")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(site.LastRequestHeader().Get("User-Agent"), "boxd-test"))
}

func TestNew_NilFetcherPanics(t *testing.T) {
	assert.Panics(t, func() { New(nil) })
}

type memoryLayer struct {
	films map[model.ID]model.Film
}

func (m *memoryLayer) FilmLoader(next entity.Loader[model.Film]) entity.Loader[model.Film] {
	return func(ctx context.Context, slug model.ID) (model.Film, error) {
		if f, ok := m.films[slug]; ok {
			return f, nil
		}
		f, err := next(ctx, slug)
		if err == nil {
			m.films[slug] = f
		}
		return f, err
	}
}

func TestSession_FilmLayer(t *testing.T) {
	layer := &memoryLayer{films: map[model.ID]model.Film{
		"stored": {Slug: "stored", Title: "From Disk"},
	}}
	s, site := newSession(t, WithFilmLayer(layer))
	serveFilm(site, "heat", "Heat")

	film, err := s.Film(context.Background(), "stored")
	require.NoError(t, err)
	assert.Equal(t, "From Disk", film.Title)
	assert.Zero(t, site.Requests("/film/stored/"))

	film, err = s.Film(context.Background(), "heat")
	require.NoError(t, err)
	assert.Equal(t, "Heat", film.Title)
	assert.Contains(t, layer.films, model.ID("heat"))
}

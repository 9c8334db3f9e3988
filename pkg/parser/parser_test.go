package parser

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sternrassler/letterboxd-client/pkg/fetcher"
	"github.com/Sternrassler/letterboxd-client/pkg/model"
	"github.com/Sternrassler/letterboxd-client/pkg/pagination"
	"github.com/Sternrassler/letterboxd-client/pkg/record"
)

func load(t *testing.T, name string) *fetcher.Page {
	t.Helper()
	body, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return html(t, name, string(body))
}

func html(t *testing.T, name, body string) *fetcher.Page {
	t.Helper()
	page, err := fetcher.NewPage("https://letterboxd.com/test/"+name, 200, []byte(body))
	require.NoError(t, err)
	return page
}

func slugs(items []record.Partial) []model.ID {
	out := make([]model.ID, len(items))
	for i, p := range items {
		out[i] = p.Film
	}
	return out
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestWatchlistPage(t *testing.T) {
	page := load(t, "watchlist.html")

	res, err := WatchlistPage(page, true)
	require.NoError(t, err)
	require.NotNil(t, res.Total)
	assert.Equal(t, 3, *res.Total)
	assert.Equal(t, []model.ID{"past-lives", "aftersun", "perfect-days"}, slugs(res.Items))
	assert.False(t, res.Numbered)

	// Later pages do not read the total.
	res, err = WatchlistPage(page, false)
	require.NoError(t, err)
	assert.Nil(t, res.Total)
	assert.Len(t, res.Items, 3)
}

func TestListPage(t *testing.T) {
	res, err := ListPage(load(t, "list.html"), true)
	require.NoError(t, err)

	require.NotNil(t, res.Total)
	assert.Equal(t, 1003, *res.Total)
	assert.Equal(t, "Top Picks", res.Title)
	assert.True(t, res.Numbered)
	assert.Equal(t, []model.ID{"tokyo-story", "stalker"}, slugs(res.Items))
}

func TestLogsPage(t *testing.T) {
	res, err := LogsPage(load(t, "logs.html"), true)
	require.NoError(t, err)

	require.NotNil(t, res.Total)
	assert.Equal(t, 1204, *res.Total)

	want := []record.Partial{
		{Film: "heat-1995", Rating: 4.5, Liked: true},
		{Film: "ronin"},
	}
	if diff := cmp.Diff(want, res.Items); diff != "" {
		t.Errorf("LogsPage() items mismatch (-want +got):\n%s", diff)
	}
}

func TestDiaryPage(t *testing.T) {
	res, err := DiaryPage(load(t, "diary.html"), true)
	require.NoError(t, err)

	require.NotNil(t, res.Total)
	assert.Equal(t, 2, *res.Total)

	want := []record.Partial{
		{
			Film:        "dune-part-two",
			WatchedDate: day(2024, time.March, 15),
			Rating:      4,
			Liked:       true,
			Rewatch:     true,
			ReviewURL:   "/dave/film/dune-part-two/",
		},
		{
			Film:        "the-zone-of-interest",
			WatchedDate: day(2024, time.March, 2),
		},
	}
	if diff := cmp.Diff(want, res.Items); diff != "" {
		t.Errorf("DiaryPage() items mismatch (-want +got):\n%s", diff)
	}
}

func TestReviewsPage(t *testing.T) {
	res, err := ReviewsPage(load(t, "reviews.html"), true)
	require.NoError(t, err)

	require.NotNil(t, res.Total)
	assert.Equal(t, 2, *res.Total)

	want := []record.Partial{
		{
			Film:        "perfect-days",
			WatchedDate: day(2024, time.January, 20),
			Rating:      5,
			Review:      "Komorebi, the shimmer of",
			ReviewURL:   "/dave/film/perfect-days/",
			FullTextURL: "/s/full-text/viewing:123/",
		},
		{
			Film:        "aftersun",
			WatchedDate: day(2023, time.December, 1),
			Rating:      3.5,
			Review:      "Memory as a camcorder.\n\nDevastating.",
			ReviewURL:   "/dave/film/aftersun/",
		},
	}
	if diff := cmp.Diff(want, res.Items); diff != "" {
		t.Errorf("ReviewsPage() items mismatch (-want +got):\n%s", diff)
	}
}

func TestReviewText(t *testing.T) {
	got := ReviewText(load(t, "review_text.html"))
	assert.Equal(t, "Komorebi, the shimmer of light through leaves.\n\nHirayama would understand.", got)
}

func TestUserListsPage(t *testing.T) {
	res, err := UserListsPage(load(t, "lists.html"), true)
	require.NoError(t, err)

	require.NotNil(t, res.Total)
	assert.Equal(t, 2, *res.Total)

	want := []ListSummary{
		{ID: "dave/list/top-picks", Title: "Top Picks", Films: 1003},
		{ID: "dave/list/rainy-sundays", Title: "Rainy Sundays", Films: 12},
	}
	if diff := cmp.Diff(want, res.Items); diff != "" {
		t.Errorf("UserListsPage() mismatch (-want +got):\n%s", diff)
	}
}

func TestUserListsPage_NoLists(t *testing.T) {
	res, err := UserListsPage(load(t, "lists_empty.html"), true)
	require.NoError(t, err)
	require.NotNil(t, res.Total)
	assert.Equal(t, 0, *res.Total)
	assert.Empty(t, res.Items)
}

func TestFilm(t *testing.T) {
	film, err := Film(load(t, "film.html"), "")
	require.NoError(t, err)

	want := model.Film{
		Slug:           "dune-part-two",
		TMDbID:         693134,
		Title:          "Dune: Part Two",
		Year:           2024,
		RuntimeMinutes: 166,
		Directors:      []string{"Denis Villeneuve"},
		Genres:         []string{"Science Fiction", "Adventure"},
		Themes:         []string{"Epic heroes"},
		Countries:      []string{"Canada", "USA"},
		Languages:      []string{"English", "Chakobsa"},
		Studios:        []string{"Legendary Pictures"},
		Cast: []model.CastMember{
			{Actor: "Timothée Chalamet", Character: "Paul Atreides"},
			{Actor: "Zendaya", Character: "Chani"},
			{Actor: "Some One", Character: "Fremen"},
		},
		Crew: map[string][]string{
			"Director": {"Denis Villeneuve"},
			"Writers":  {"Denis Villeneuve", "Jon Spaihts"},
		},
		AverageRating: 4.42,
		RatingCount:   1288000,
	}
	if diff := cmp.Diff(want, film); diff != "" {
		t.Errorf("Film() mismatch (-want +got):\n%s", diff)
	}
}

func TestFilm_Minimal(t *testing.T) {
	page := html(t, "minimal", `<html><body><h1 class="headline-1">Ronin</h1></body></html>`)

	film, err := Film(page, "ronin")
	require.NoError(t, err)
	assert.Equal(t, model.ID("ronin"), film.Slug)
	assert.Equal(t, "Ronin", film.Title)
	assert.Zero(t, film.RatingCount)
	assert.Nil(t, film.Crew)
}

func TestFilm_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		slug model.ID
	}{
		{"no slug", `<html><body><span class="name js-widont">X</span></body></html>`, ""},
		{"no title", `<html><body></body></html>`, "x"},
		{"broken linked data", `<html><head><script type="application/ld+json">{"name":</script></head><body></body></html>`, "x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Film(html(t, tt.name, tt.body), tt.slug)
			var pe *ParseError
			require.ErrorAs(t, err, &pe)
			assert.ErrorIs(t, err, ErrMarkup)
		})
	}
}

func TestNanogenres(t *testing.T) {
	got := Nanogenres(load(t, "nanogenres.html"))
	assert.Equal(t, []string{"Desert Power", "Epic Heroism"}, got)
}

func TestProfile(t *testing.T) {
	p, err := Profile(load(t, "profile.html"), "dave")
	require.NoError(t, err)

	want := model.Profile{
		Username:     "dave",
		DisplayName:  "Dave Lister",
		FilmsWatched: 1204,
		Favourites:   []model.ID{"stalker", "heat-1995"},
	}
	if diff := cmp.Diff(want, p); diff != "" {
		t.Errorf("Profile() mismatch (-want +got):\n%s", diff)
	}
}

func TestMissingTotal(t *testing.T) {
	page := html(t, "bare", `<html><body><ul><li class="poster-container"><div data-film-slug="a"></div></li></ul></body></html>`)

	parsers := map[string]func(*fetcher.Page, bool) (Result, error){
		"watchlist": WatchlistPage,
		"list":      ListPage,
		"logs":      LogsPage,
		"diary":     DiaryPage,
		"reviews":   ReviewsPage,
	}
	for name, parse := range parsers {
		t.Run(name, func(t *testing.T) {
			_, err := parse(page, true)
			assert.True(t, errors.Is(err, ErrMissingTotal), "err = %v", err)

			// Without the first-page duty the same page parses.
			_, err = parse(page, false)
			assert.NoError(t, err)
		})
	}
}

func TestPosterWithoutSlug(t *testing.T) {
	page := html(t, "broken", `<html><body><li class="poster-container"><div class="poster"></div></li></body></html>`)

	_, err := FeedPage(page, true)
	assert.ErrorIs(t, err, ErrMarkup)
}

func TestInvalidRating(t *testing.T) {
	page := html(t, "rating", `<html><body><li class="poster-container"><div data-film-slug="a"></div><span class="rating rated-14"></span></li></body></html>`)

	_, err := LogsPage(page, false)
	assert.ErrorIs(t, err, ErrMarkup)
}

func TestEntries(t *testing.T) {
	site := fetcher.DefaultSite()

	for _, kind := range []pagination.Kind{
		pagination.KindWatchlist, pagination.KindList, pagination.KindLogs,
		pagination.KindDiary, pagination.KindReviews,
	} {
		src, err := Entries(site, kind)
		require.NoError(t, err, kind)
		assert.Equal(t, kind, src.Kind)
		assert.NotNil(t, src.Locate)
		assert.NotNil(t, src.Parser)
	}

	_, err := Entries(site, pagination.KindUserLists)
	assert.Error(t, err)

	src, err := Entries(site, pagination.KindDiary)
	require.NoError(t, err)
	assert.Equal(t, "https://letterboxd.com/dave/films/diary/page/2/", src.Locate("dave", 2))

	feed := Feed(site, fetcher.Feed{Kind: fetcher.FeedYear, Value: 2023})
	assert.Equal(t, "https://letterboxd.com/films/ajax/popular/year/2023/page/3/", feed.Locate("ignored", 3))
}

package main

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sternrassler/letterboxd-client/internal/testutil"
	"github.com/Sternrassler/letterboxd-client/pkg/export"
	"github.com/Sternrassler/letterboxd-client/pkg/model"
)

// newEnv points boxd at a mock site with politeness delays off and no
// config file in reach.
func newEnv(t *testing.T) *testutil.MockSite {
	t.Helper()
	site := testutil.NewMockSite()
	t.Cleanup(site.Close)

	t.Chdir(t.TempDir())
	t.Setenv("BOXD_BASE_URL", site.URL())
	t.Setenv("BOXD_MIN_DELAY", "0s")
	t.Setenv("BOXD_MAX_DELAY", "0s")
	t.Setenv("BOXD_LOG_LEVEL", "disabled")
	return site
}

func runBoxd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), args, &stdout, &stderr)
	return stdout.String(), err
}

func decodeRows(t *testing.T, out string) []export.Row {
	t.Helper()
	var rows []export.Row
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		var r export.Row
		require.NoError(t, jsoniter.Unmarshal(sc.Bytes(), &r))
		rows = append(rows, r)
	}
	return rows
}

func serveWatchlist(site *testutil.MockSite, user string, slugs []model.ID) {
	for i, chunk := range testutil.Chunk(slugs, 28) {
		site.SetPage(fmt.Sprintf("/%s/watchlist/page/%d/", user, i+1), testutil.WatchlistHTML(len(slugs), chunk))
	}
}

func serveFilms(site *testutil.MockSite, slugs []model.ID) {
	for _, slug := range slugs {
		site.SetPage(fmt.Sprintf("/film/%s/", slug), testutil.FilmHTML(slug, "Title "+string(slug), 1999))
		site.SetPage(fmt.Sprintf("/film/%s/nanogenres/", slug), testutil.NanogenresHTML())
	}
}

func TestRun_WatchlistJSONL(t *testing.T) {
	site := newEnv(t)
	slugs := testutil.Slugs("film", 30)
	serveWatchlist(site, "dave", slugs)

	out, err := runBoxd(t, "watchlist", "dave", "--format", "jsonl", "--no-store")
	require.NoError(t, err)

	rows := decodeRows(t, out)
	require.Len(t, rows, 30)
	for i, r := range rows {
		assert.Equal(t, i+1, r.Position)
		assert.Equal(t, string(slugs[i]), r.Film)
		assert.Empty(t, r.Title, "films are not resolved without --resolve")
	}
}

func TestRun_ResolveFirstN(t *testing.T) {
	site := newEnv(t)
	slugs := testutil.Slugs("film", 5)
	serveWatchlist(site, "dave", slugs)
	serveFilms(site, slugs)

	out, err := runBoxd(t, "watchlist", "dave", "--format", "jsonl", "--resolve", "2", "--no-store")
	require.NoError(t, err)

	rows := decodeRows(t, out)
	require.Len(t, rows, 5)
	assert.Equal(t, "Title film-001", rows[0].Title)
	assert.Equal(t, "Title film-002", rows[1].Title)
	assert.Empty(t, rows[2].Title)
	assert.Zero(t, site.Requests("/film/film-003/"))
}

func TestRun_ResolveFailureStillPrints(t *testing.T) {
	site := newEnv(t)
	slugs := testutil.Slugs("film", 3)
	serveWatchlist(site, "dave", slugs)
	serveFilms(site, []model.ID{slugs[0], slugs[2]})

	out, err := runBoxd(t, "watchlist", "dave", "--format", "jsonl", "--resolve", "-1", "--no-store")
	require.NoError(t, err)

	rows := decodeRows(t, out)
	require.Len(t, rows, 3)
	assert.Equal(t, "Title film-001", rows[0].Title)
	assert.Equal(t, "film-002", rows[1].Film)
	assert.Empty(t, rows[1].Title, "the missing film is printed as a bare slug")
	assert.Equal(t, "Title film-003", rows[2].Title)
}

func TestRun_SaveAndShow(t *testing.T) {
	site := newEnv(t)
	db := filepath.Join(t.TempDir(), "boxd.db")
	slugs := testutil.Slugs("film", 3)
	serveWatchlist(site, "dave", slugs)
	serveFilms(site, slugs)

	_, err := runBoxd(t, "watchlist", "dave", "--resolve", "-1", "--save", "--db", db)
	require.NoError(t, err)

	out, err := runBoxd(t, "saved", "list", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "dave")
	assert.Contains(t, out, "watchlist")

	site.Reset()
	out, err = runBoxd(t, "saved", "show", "dave", "watchlist", "--resolve", "-1", "--format", "jsonl", "--db", db)
	require.NoError(t, err)

	rows := decodeRows(t, out)
	require.Len(t, rows, 3)
	assert.Equal(t, "Title film-003", rows[2].Title)
	assert.Zero(t, site.RequestCount(), "saved records and films are read from the database")
}

func TestRun_ResolveBelowMinusOne(t *testing.T) {
	site := newEnv(t)
	serveWatchlist(site, "dave", testutil.Slugs("film", 3))

	_, err := runBoxd(t, "watchlist", "dave", "--resolve", "-5", "--no-store")
	assert.ErrorContains(t, err, "--resolve")
	assert.Zero(t, site.RequestCount(), "flags are checked before fetching")
}

func TestRun_SavedWithoutDatabase(t *testing.T) {
	newEnv(t)
	_, err := runBoxd(t, "saved", "list", "--no-store")
	assert.ErrorContains(t, err, "no database configured")
}

func TestRun_Film(t *testing.T) {
	site := newEnv(t)
	serveFilms(site, []model.ID{"heat"})

	out, err := runBoxd(t, "film", "heat", "--no-store")
	require.NoError(t, err)
	assert.Contains(t, strings.ToLower(out), "title heat (1999)")
}

func TestRun_FilmNotFound(t *testing.T) {
	newEnv(t)
	_, err := runBoxd(t, "film", "nope", "--no-store")
	assert.ErrorContains(t, err, "film nope")
}

func TestRun_Profile(t *testing.T) {
	site := newEnv(t)
	site.SetPage("/dave/", testutil.ProfileHTML("dave", 1234, []model.ID{"heat", "ran"}))

	out, err := runBoxd(t, "profile", "dave", "--no-store")
	require.NoError(t, err)
	assert.Contains(t, out, "1234")
	assert.Contains(t, out, "heat, ran")
}

func TestRun_Search(t *testing.T) {
	site := newEnv(t)
	serveWatchlist(site, "dave", []model.ID{"the-thing", "heat", "barbie"})

	out, err := runBoxd(t, "watchlist", "dave", "--search", "The Thing", "--no-store")
	require.NoError(t, err)
	assert.Contains(t, out, "the-thing")
	assert.NotContains(t, out, "barbie")
}

func TestRun_Lists(t *testing.T) {
	site := newEnv(t)
	site.SetPage("/dave/lists/page/1/", testutil.UserListsHTML(1, []model.ID{model.ListID("dave", "top-ten")}))

	out, err := runBoxd(t, "lists", "dave", "--no-store")
	require.NoError(t, err)
	assert.Contains(t, out, "dave/list/top-ten")
}

func TestRun_BadArguments(t *testing.T) {
	newEnv(t)

	tests := []struct {
		name string
		args []string
	}{
		{"missing user", []string{"watchlist", "--no-store"}},
		{"bad format", []string{"watchlist", "dave", "--format", "xml", "--no-store"}},
		{"bad feed", []string{"browse", "sideways", "--no-store"}},
		{"bad kind", []string{"saved", "show", "dave", "films", "--no-store"}},
		{"bad log level", []string{"film", "heat", "--log-level", "chatty", "--no-store"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runBoxd(t, tt.args...)
			assert.Error(t, err)
		})
	}
}

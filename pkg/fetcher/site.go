package fetcher

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/Sternrassler/letterboxd-client/pkg/model"
)

// DefaultBaseURL is the public site root.
const DefaultBaseURL = "https://letterboxd.com/"

// Site builds page URLs relative to a base.
type Site struct {
	base string
}

// NewSite validates base and returns a Site rooted at it.
func NewSite(base string) (Site, error) {
	u, err := url.Parse(base)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Site{}, fmt.Errorf("%w: base url %q", ErrInvalidLocator, base)
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return Site{base: base}, nil
}

// DefaultSite is rooted at DefaultBaseURL.
func DefaultSite() Site {
	return Site{base: DefaultBaseURL}
}

// Base returns the root URL with a trailing slash.
func (s Site) Base() string {
	return s.base
}

// path joins escaped segments under the base.
func (s Site) path(parts ...string) string {
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = url.PathEscape(p)
	}
	return s.base + strings.Join(escaped, "/") + "/"
}

func pageNum(n int) string {
	return strconv.Itoa(n)
}

// Film is the film's main page.
func (s Site) Film(slug model.ID) string {
	return s.path("film", string(slug))
}

// Nanogenres is the film's nanogenre breakdown.
func (s Site) Nanogenres(slug model.ID) string {
	return s.path("film", string(slug), "nanogenres")
}

// Profile is a member's profile page.
func (s Site) Profile(user model.ID) string {
	return s.path(string(user))
}

// Watchlist is page n of a member's watchlist.
func (s Site) Watchlist(user model.ID, n int) string {
	return s.path(string(user), "watchlist", "page", pageNum(n))
}

// Diary is page n of a member's diary.
func (s Site) Diary(user model.ID, n int) string {
	return s.path(string(user), "films", "diary", "page", pageNum(n))
}

// Reviews is page n of a member's reviews.
func (s Site) Reviews(user model.ID, n int) string {
	return s.path(string(user), "films", "reviews", "page", pageNum(n))
}

// Logs is page n of every film a member has logged.
func (s Site) Logs(user model.ID, n int) string {
	return s.path(string(user), "films", "page", pageNum(n))
}

// List is page n of a named list. id is owner/list/name.
func (s Site) List(id model.ID, n int) string {
	owner, name, err := id.SplitList()
	if err != nil {
		return s.path(string(id), "page", pageNum(n))
	}
	return s.path(owner, "list", name, "page", pageNum(n))
}

// UserLists is page n of the index of a member's lists.
func (s Site) UserLists(user model.ID, n int) string {
	return s.path(string(user), "lists", "page", pageNum(n))
}

// Feed is page n of a browse feed.
func (s Site) Feed(f Feed, n int) string {
	switch f.Kind {
	case FeedHighestRated:
		return s.path("films", "ajax", "by", "rating", "page", pageNum(n))
	case FeedDecade:
		return s.path("films", "ajax", "popular", "decade", fmt.Sprintf("%ds", f.Value), "page", pageNum(n))
	case FeedYear:
		return s.path("films", "ajax", "popular", "year", strconv.Itoa(f.Value), "page", pageNum(n))
	default:
		return s.path("films", "ajax", "popular", "page", pageNum(n))
	}
}

// Resolve turns a site-relative href into an absolute URL.
func (s Site) Resolve(href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	return s.base + strings.TrimPrefix(href, "/")
}

// FeedKind selects a browse feed.
type FeedKind string

const (
	FeedPopular      FeedKind = "popular"
	FeedHighestRated FeedKind = "highest-rated"
	FeedDecade       FeedKind = "decade"
	FeedYear         FeedKind = "year"
)

// Feed is a browse feed without a declared total.
type Feed struct {
	Kind FeedKind

	// Value is the decade (1990) or year (2023) for those kinds.
	Value int
}

// String renders the feed in ParseFeed syntax.
func (f Feed) String() string {
	switch f.Kind {
	case FeedDecade, FeedYear:
		return fmt.Sprintf("%s/%d", f.Kind, f.Value)
	default:
		return string(f.Kind)
	}
}

// ParseFeed accepts "popular", "highest-rated", "decade/1990" or "year/2023".
func ParseFeed(s string) (Feed, error) {
	kind, value, hasValue := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "/")

	switch FeedKind(kind) {
	case FeedPopular, FeedHighestRated:
		if hasValue {
			return Feed{}, fmt.Errorf("feed %q takes no argument", kind)
		}
		return Feed{Kind: FeedKind(kind)}, nil
	case FeedDecade, FeedYear:
		n, err := strconv.Atoi(value)
		if err != nil || n < 1870 || n > 2200 {
			return Feed{}, fmt.Errorf("feed %q needs a year, got %q", kind, value)
		}
		if FeedKind(kind) == FeedDecade && n%10 != 0 {
			return Feed{}, fmt.Errorf("decade must end in 0, got %d", n)
		}
		return Feed{Kind: FeedKind(kind), Value: n}, nil
	default:
		return Feed{}, fmt.Errorf("unknown feed %q", s)
	}
}

package parser

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	jsoniter "github.com/json-iterator/go"

	"github.com/Sternrassler/letterboxd-client/pkg/fetcher"
	"github.com/Sternrassler/letterboxd-client/pkg/model"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	tmdbMovie  = regexp.MustCompile(`themoviedb\.org/movie/(\d+)`)
	runtimeMin = regexp.MustCompile(`^(\d+)\s*min`)
)

const (
	uncredited = " (uncredited)"
	showAll    = "Show All…"
)

// linkedData is the subset of the page's JSON-LD block we read.
type linkedData struct {
	Name            string `json:"name"`
	AggregateRating *struct {
		RatingValue float64 `json:"ratingValue"`
		RatingCount int     `json:"ratingCount"`
	} `json:"aggregateRating"`
}

// Film parses a film's main page. slug is used when the page carries none.
// Nanogenres live on a separate page, see Nanogenres.
func Film(page *fetcher.Page, slug model.ID) (model.Film, error) {
	film := model.Film{Slug: filmSlug(page.Find("div.film-poster").First())}
	if film.Slug == "" {
		film.Slug = slug
	}
	if film.Slug == "" {
		return film, markupError(page.URL, "film slug")
	}

	film.Title = text(page.Find("span.name.js-widont").First())
	if film.Title == "" {
		film.Title = text(page.Find("h1.headline-1").First())
	}

	ld, err := filmLinkedData(page)
	if err != nil {
		return film, err
	}
	if film.Title == "" && ld != nil {
		film.Title = ld.Name
	}
	if film.Title == "" {
		return film, markupError(page.URL, "film title")
	}

	if y, err := strconv.Atoi(text(page.Find("span.releasedate a").First())); err == nil {
		film.Year = y
	}
	if m := runtimeMin.FindStringSubmatch(text(page.Find("p.text-footer").First())); m != nil {
		film.RuntimeMinutes, _ = strconv.Atoi(m[1])
	}
	if m := tmdbMovie.FindStringSubmatch(page.Find(`a[href*="themoviedb.org/movie/"]`).First().AttrOr("href", "")); m != nil {
		film.TMDbID, _ = strconv.Atoi(m[1])
	}

	page.Find("a.contributor").Each(func(_ int, a *goquery.Selection) {
		name := text(a.Find("span.prettify").First())
		if name == "" {
			name = text(a)
		}
		if name != "" {
			film.Directors = appendUnique(film.Directors, name)
		}
	})

	tabSections(page.Find("#tab-details"), func(heading string, links []string) {
		h := strings.ToLower(heading)
		switch {
		case strings.Contains(h, "studio"):
			film.Studios = appendUnique(film.Studios, links...)
		case strings.Contains(h, "countr"):
			film.Countries = appendUnique(film.Countries, links...)
		case strings.Contains(h, "language"):
			film.Languages = appendUnique(film.Languages, links...)
		}
	})

	tabSections(page.Find("#tab-genres"), func(heading string, links []string) {
		h := strings.ToLower(heading)
		switch {
		case strings.HasPrefix(h, "genre"):
			film.Genres = appendUnique(film.Genres, links...)
		case strings.HasPrefix(h, "theme"):
			film.Themes = appendUnique(film.Themes, links...)
		}
	})

	tabSections(page.Find("#tab-crew"), func(role string, names []string) {
		if len(names) == 0 {
			return
		}
		if film.Crew == nil {
			film.Crew = make(map[string][]string)
		}
		film.Crew[role] = appendUnique(film.Crew[role], names...)
	})

	page.Find("div.cast-list a.text-slug").Each(func(_ int, a *goquery.Selection) {
		name := text(a)
		if name == "" || name == showAll || a.AttrOr("id", "") == "has-cast-overflow" {
			return
		}
		film.Cast = append(film.Cast, model.CastMember{
			Actor:     name,
			Character: strings.TrimSpace(strings.TrimSuffix(a.AttrOr("title", ""), uncredited)),
		})
	})

	if ld != nil && ld.AggregateRating != nil {
		film.AverageRating = ld.AggregateRating.RatingValue
		film.RatingCount = ld.AggregateRating.RatingCount
	}
	return film, nil
}

// filmLinkedData decodes the JSON-LD block, or returns nil when the page
// has none.
func filmLinkedData(page *fetcher.Page) (*linkedData, error) {
	script := page.Find(`script[type="application/ld+json"]`).First()
	if script.Length() == 0 {
		return nil, nil
	}
	raw := script.Text()
	raw = strings.ReplaceAll(raw, "/* <![CDATA[ */", "")
	raw = strings.ReplaceAll(raw, "/* ]]> */", "")
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	var ld linkedData
	if err := json.Unmarshal([]byte(raw), &ld); err != nil {
		return nil, &ParseError{URL: page.URL, What: "linked data", Err: fmt.Errorf("%w: %v", ErrMarkup, err)}
	}
	return &ld, nil
}

// tabSections walks the h3 headings of a film tab and reports the link texts
// of the block following each one. Crew headings use their long role name.
func tabSections(tab *goquery.Selection, fn func(heading string, links []string)) {
	tab.Find("h3").Each(func(_ int, h3 *goquery.Selection) {
		heading := text(h3.Find("span.crewrole.-full").First())
		if heading == "" {
			heading = text(h3)
		}
		var links []string
		h3.NextFiltered("div").Find("a").Each(func(_ int, a *goquery.Selection) {
			if t := text(a); t != "" && t != showAll {
				links = append(links, t)
			}
		})
		fn(heading, links)
	})
}

// Nanogenres parses a film's nanogenre page.
func Nanogenres(page *fetcher.Page) []string {
	var out []string
	page.Find("section.genre-group").Each(func(_ int, sec *goquery.Selection) {
		if label := text(sec.Find("span.label").First()); label != "" {
			out = appendUnique(out, label)
		}
	})
	return out
}

func appendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		if !slices.Contains(dst, v) {
			dst = append(dst, v)
		}
	}
	return dst
}

package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/Sternrassler/letterboxd-client/pkg/fetcher"
	"github.com/Sternrassler/letterboxd-client/pkg/model"
)

var (
	leadingCount = regexp.MustCompile(`^\s*([\d,]+)`)
	filmsCount   = regexp.MustCompile(`([\d,]+)\s+films?\b`)
	ratedClass   = regexp.MustCompile(`^rated-(\d+)$`)
)

// atoiCount parses "1,234" style numbers.
func atoiCount(s string) (int, bool) {
	n, err := strconv.Atoi(strings.ReplaceAll(s, ",", ""))
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func parseLeadingCount(s string) (int, bool) {
	m := leadingCount.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	return atoiCount(m[1])
}

func missingTotal(page *fetcher.Page, what string) error {
	return &ParseError{URL: page.URL, What: what, Err: ErrMissingTotal}
}

// navCount reads the count from the tooltip title of the profile nav link
// labelled label ("Watched", "Diary", "Reviews").
func navCount(page *fetcher.Page, label string) (int, error) {
	var (
		n     int
		found bool
	)
	page.Find("a.tooltip").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if !strings.EqualFold(strings.TrimSpace(a.Text()), label) {
			return true
		}
		n, found = parseLeadingCount(a.AttrOr("title", ""))
		return !found
	})
	if !found {
		return 0, missingTotal(page, strings.ToLower(label)+" count")
	}
	return n, nil
}

// contentNavCount reads the count tooltip of the lists index nav.
func contentNavCount(page *fetcher.Page) (int, bool) {
	return parseLeadingCount(page.Find("#content-nav span.tooltip").First().AttrOr("title", ""))
}

func watchlistCount(page *fetcher.Page) (int, error) {
	n, ok := parseLeadingCount(page.Find("span.js-watchlist-count").First().Text())
	if !ok {
		return 0, missingTotal(page, "watchlist count")
	}
	return n, nil
}

// listCount reads "N films" from the list's meta description.
func listCount(page *fetcher.Page) (int, error) {
	desc := page.Find(`meta[name="description"]`).First().AttrOr("content", "")
	m := filmsCount.FindStringSubmatch(desc)
	if m == nil {
		return 0, missingTotal(page, "list size")
	}
	n, ok := atoiCount(m[1])
	if !ok {
		return 0, missingTotal(page, "list size")
	}
	return n, nil
}

// filmSlug returns the film slug carried by s or its first descendant that
// has one.
func filmSlug(s *goquery.Selection) model.ID {
	if id := slugAttr(s); id != "" {
		return id
	}
	return slugAttr(s.Find("[data-film-slug], [data-item-slug]").First())
}

func slugAttr(s *goquery.Selection) model.ID {
	return model.ID(s.AttrOr("data-film-slug", s.AttrOr("data-item-slug", "")))
}

// rating decodes the first "rated-N" class under s. The zero rating is
// returned when s shows none.
func rating(s *goquery.Selection) (model.Rating, error) {
	span := s.Find("span.rating").First()
	if span.Length() == 0 {
		return 0, nil
	}
	for _, class := range strings.Fields(span.AttrOr("class", "")) {
		m := ratedClass.FindStringSubmatch(class)
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		r, err := model.RatingFromHalfStars(n)
		if err != nil {
			return 0, fmt.Errorf("%w: %s", ErrMarkup, err)
		}
		return r, nil
	}
	return 0, nil
}

// text returns the trimmed text of s with inner whitespace collapsed.
func text(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.Text()), " ")
}

// paragraphs joins the text of every <p> under s with blank lines.
func paragraphs(s *goquery.Selection) string {
	var parts []string
	s.Find("p").Each(func(_ int, p *goquery.Selection) {
		if t := text(p); t != "" {
			parts = append(parts, t)
		}
	})
	return strings.Join(parts, "\n\n")
}

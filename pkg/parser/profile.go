package parser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/Sternrassler/letterboxd-client/pkg/fetcher"
	"github.com/Sternrassler/letterboxd-client/pkg/model"
)

// Profile parses a member's profile page.
func Profile(page *fetcher.Page, user model.ID) (model.Profile, error) {
	header := page.Find("section.profile-header").First()
	if header.Length() == 0 {
		return model.Profile{}, markupError(page.URL, "profile header")
	}

	p := model.Profile{Username: model.ID(header.AttrOr("data-person", string(user)))}
	p.DisplayName = text(header.Find(".displayname, .profile-name h1").First())

	found := false
	stats := page.Find("h4.profile-statistic")
	stats.EachWithBreak(func(_ int, h4 *goquery.Selection) bool {
		if !strings.EqualFold(text(h4.Find("span.definition")), "films") {
			return true
		}
		p.FilmsWatched, found = parseLeadingCount(text(h4.Find("span.value")))
		return !found
	})
	if !found {
		p.FilmsWatched, found = parseLeadingCount(text(stats.First().Find("span.value")))
	}
	if !found {
		return p, missingTotal(page, "films watched")
	}

	page.Find("li.favourite-film-poster-container, #favourites li.poster-container").Each(func(_ int, li *goquery.Selection) {
		if slug := filmSlug(li); slug != "" {
			p.Favourites = append(p.Favourites, slug)
		}
	})
	return p, nil
}

package parser

import (
	"fmt"
	"regexp"

	"github.com/PuerkitoBio/goquery"

	"github.com/Sternrassler/letterboxd-client/pkg/fetcher"
	"github.com/Sternrassler/letterboxd-client/pkg/model"
	"github.com/Sternrassler/letterboxd-client/pkg/pagination"
)

var listHref = regexp.MustCompile(`^/([^/]+)/list/([^/]+)/$`)

// ListSummary is one entry of a member's lists index.
type ListSummary struct {
	ID    model.ID
	Title string

	// Films is the size shown on the index, or -1 when not shown.
	Films int
}

// UserLists returns the source for the index of a member's lists.
func UserLists(site fetcher.Site) pagination.Source[ListSummary] {
	return pagination.Source[ListSummary]{
		Kind:   pagination.KindUserLists,
		Locate: site.UserLists,
		Parser: pagination.ParserFunc[ListSummary](UserListsPage),
	}
}

// UserListsPage parses one page of a member's lists index. A member without
// lists shows neither the count nor the list set; that reads as zero.
func UserListsPage(page *fetcher.Page, first bool) (pagination.PageResult[ListSummary], error) {
	var res pagination.PageResult[ListSummary]
	set := page.Find("section.list-set")

	if first {
		n, ok := contentNavCount(page)
		switch {
		case ok:
		case set.Length() == 0:
			n = 0
		default:
			return res, missingTotal(page, "lists count")
		}
		res.Total = &n
	}

	sections := page.Find("section.list")
	res.Items = make([]ListSummary, 0, sections.Length())

	var err error
	sections.EachWithBreak(func(i int, sec *goquery.Selection) bool {
		link := sec.Find("a.list-link").First()
		m := listHref.FindStringSubmatch(link.AttrOr("href", ""))
		if m == nil {
			err = markupError(page.URL, fmt.Sprintf("list %d has no list link", i+1))
			return false
		}

		summary := ListSummary{ID: model.ListID(m[1], m[2]), Films: -1}
		if summary.Title = text(sec.Find("h2 a").First()); summary.Title == "" {
			summary.Title = link.AttrOr("title", m[2])
		}
		if n, ok := parseLeadingCount(sec.Find("small.value, span.value").First().Text()); ok {
			summary.Films = n
		}
		res.Items = append(res.Items, summary)
		return true
	})
	return res, err
}

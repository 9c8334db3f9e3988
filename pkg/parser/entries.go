package parser

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/Sternrassler/letterboxd-client/pkg/fetcher"
	"github.com/Sternrassler/letterboxd-client/pkg/model"
	"github.com/Sternrassler/letterboxd-client/pkg/pagination"
	"github.com/Sternrassler/letterboxd-client/pkg/record"
)

// Result is one parsed page of film entries.
type Result = pagination.PageResult[record.Partial]

var diaryDate = regexp.MustCompile(`/films/diary/for/(\d{4}/\d{2}/\d{2})/`)

// Entries returns the aggregation source for a kind of film collection.
// KindUserLists and KindFeed have their own constructors.
func Entries(site fetcher.Site, kind pagination.Kind) (pagination.Source[record.Partial], error) {
	src := pagination.Source[record.Partial]{Kind: kind}

	switch kind {
	case pagination.KindWatchlist:
		src.Locate = site.Watchlist
		src.Parser = pagination.ParserFunc[record.Partial](WatchlistPage)
	case pagination.KindList:
		src.Locate = site.List
		src.Parser = pagination.ParserFunc[record.Partial](ListPage)
	case pagination.KindLogs:
		src.Locate = site.Logs
		src.Parser = pagination.ParserFunc[record.Partial](LogsPage)
	case pagination.KindDiary:
		src.Locate = site.Diary
		src.Parser = pagination.ParserFunc[record.Partial](DiaryPage)
	case pagination.KindReviews:
		src.Locate = site.Reviews
		src.Parser = pagination.ParserFunc[record.Partial](ReviewsPage)
	default:
		return src, fmt.Errorf("no entry source for kind %q", kind)
	}
	return src, nil
}

// Feed returns the source for a browse feed. Feeds declare no total and
// are read with Aggregator.CollectPages; the subject is ignored.
func Feed(site fetcher.Site, feed fetcher.Feed) pagination.Source[record.Partial] {
	return pagination.Source[record.Partial]{
		Kind: pagination.KindFeed,
		Locate: func(_ model.ID, n int) string {
			return site.Feed(feed, n)
		},
		Parser: pagination.ParserFunc[record.Partial](FeedPage),
	}
}

// posters collects the slugs of every poster item on the page.
func posters(page *fetcher.Page) ([]record.Partial, error) {
	items := page.Find("li.poster-container")
	out := make([]record.Partial, 0, items.Length())

	var err error
	items.EachWithBreak(func(i int, li *goquery.Selection) bool {
		slug := filmSlug(li)
		if slug == "" {
			err = markupError(page.URL, fmt.Sprintf("poster %d has no film slug", i+1))
			return false
		}
		out = append(out, record.Partial{Film: slug})
		return true
	})
	return out, err
}

// WatchlistPage parses one watchlist page.
func WatchlistPage(page *fetcher.Page, first bool) (Result, error) {
	var res Result
	if first {
		n, err := watchlistCount(page)
		if err != nil {
			return res, err
		}
		res.Total = &n
	}
	items, err := posters(page)
	res.Items = items
	return res, err
}

// ListPage parses one page of a named list. Ranked lists are detected from
// numbered items.
func ListPage(page *fetcher.Page, first bool) (Result, error) {
	var res Result
	if first {
		n, err := listCount(page)
		if err != nil {
			return res, err
		}
		res.Total = &n
		res.Title = text(page.Find("h1.title-1").First())
	}
	res.Numbered = page.Find("li.numbered-list-item").Length() > 0

	items, err := posters(page)
	res.Items = items
	return res, err
}

// FeedPage parses one page of a browse feed.
func FeedPage(page *fetcher.Page, _ bool) (Result, error) {
	items, err := posters(page)
	return Result{Items: items}, err
}

// LogsPage parses one page of every logged film, with the member's rating.
func LogsPage(page *fetcher.Page, first bool) (Result, error) {
	var res Result
	if first {
		n, err := navCount(page, "Watched")
		if err != nil {
			return res, err
		}
		res.Total = &n
	}

	items := page.Find("li.poster-container")
	res.Items = make([]record.Partial, 0, items.Length())

	var err error
	items.EachWithBreak(func(i int, li *goquery.Selection) bool {
		p := record.Partial{Film: filmSlug(li)}
		if p.Film == "" {
			err = markupError(page.URL, fmt.Sprintf("log %d has no film slug", i+1))
			return false
		}
		if p.Rating, err = rating(li); err != nil {
			err = &ParseError{URL: page.URL, What: string(p.Film) + " rating", Err: err}
			return false
		}
		p.Liked = li.Find(".icon-liked, .like.liked").Length() > 0
		res.Items = append(res.Items, p)
		return true
	})
	return res, err
}

// DiaryPage parses one diary page. The watched date comes from the day link.
func DiaryPage(page *fetcher.Page, first bool) (Result, error) {
	var res Result
	if first {
		n, err := navCount(page, "Diary")
		if err != nil {
			return res, err
		}
		res.Total = &n
	}

	rows := page.Find("tr.diary-entry-row")
	res.Items = make([]record.Partial, 0, rows.Length())

	var err error
	rows.EachWithBreak(func(i int, row *goquery.Selection) bool {
		var p record.Partial
		p, err = diaryRow(page, row)
		if err != nil {
			return false
		}
		res.Items = append(res.Items, p)
		return true
	})
	return res, err
}

func diaryRow(page *fetcher.Page, row *goquery.Selection) (record.Partial, error) {
	p := record.Partial{Film: filmSlug(row.Find("td.film-actions, div.film-poster").First())}
	if p.Film == "" {
		p.Film = filmSlug(row)
	}
	if p.Film == "" {
		return p, markupError(page.URL, "diary row has no film slug")
	}

	var dated bool
	row.Find(`a[href*="/films/diary/for/"]`).EachWithBreak(func(_ int, a *goquery.Selection) bool {
		m := diaryDate.FindStringSubmatch(a.AttrOr("href", ""))
		if m == nil {
			return true
		}
		if d, err := time.Parse("2006/01/02", m[1]); err == nil {
			p.WatchedDate = d
			dated = true
		}
		return !dated
	})
	if !dated {
		return p, markupError(page.URL, string(p.Film)+" diary row has no date")
	}

	var err error
	if p.Rating, err = rating(row); err != nil {
		return p, &ParseError{URL: page.URL, What: string(p.Film) + " rating", Err: err}
	}
	p.Liked = row.Find("td.td-like .icon-liked").Length() > 0
	if rw := row.Find("td.td-rewatch"); rw.Length() > 0 {
		p.Rewatch = !rw.HasClass("icon-status-off")
	}
	if href, ok := row.Find("a.icon-review").First().Attr("href"); ok {
		p.ReviewURL = href
	}
	return p, nil
}

// ReviewsPage parses one page of reviews. Truncated reviews keep their
// full-text URL so the caller can fetch the remainder.
func ReviewsPage(page *fetcher.Page, first bool) (Result, error) {
	var res Result
	if first {
		n, err := navCount(page, "Reviews")
		if err != nil {
			return res, err
		}
		res.Total = &n
	}

	articles := page.Find("article.production-viewing")
	res.Items = make([]record.Partial, 0, articles.Length())

	var err error
	articles.EachWithBreak(func(i int, art *goquery.Selection) bool {
		var p record.Partial
		p, err = review(page, art)
		if err != nil {
			return false
		}
		res.Items = append(res.Items, p)
		return true
	})
	return res, err
}

func review(page *fetcher.Page, art *goquery.Selection) (record.Partial, error) {
	p := record.Partial{Film: filmSlug(art)}
	if p.Film == "" {
		return p, markupError(page.URL, "review has no film slug")
	}

	if dt, ok := art.Find("time[datetime]").First().Attr("datetime"); ok && len(dt) >= 10 {
		d, err := time.Parse("2006-01-02", dt[:10])
		if err != nil {
			return p, &ParseError{URL: page.URL, What: string(p.Film) + " review date", Err: fmt.Errorf("%w: %v", ErrMarkup, err)}
		}
		p.WatchedDate = d
	}

	var err error
	if p.Rating, err = rating(art); err != nil {
		return p, &ParseError{URL: page.URL, What: string(p.Film) + " rating", Err: err}
	}
	p.Liked = art.Find(".icon-liked").Length() > 0
	p.Rewatch = art.Find(".icon-rewatch, .has-icon.-rewatch").Length() > 0

	if href, ok := art.Find("h2 a").First().Attr("href"); ok {
		p.ReviewURL = href
	}

	body := art.Find("div.js-review-body").First()
	if art.Find("div.collapsed-text").Length() > 0 {
		p.FullTextURL = strings.TrimSpace(body.AttrOr("data-full-text-url", ""))
	}
	p.Review = paragraphs(body)
	return p, nil
}

// ReviewText extracts the paragraphs of a full review text fragment.
func ReviewText(page *fetcher.Page) string {
	return paragraphs(page.Doc.Selection)
}

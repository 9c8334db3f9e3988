package testutil

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/Sternrassler/letterboxd-client/pkg/model"
)

// Chunk splits ids into pages of size n. An empty input yields one empty
// page, as the site serves for an empty collection.
func Chunk(ids []model.ID, n int) [][]model.ID {
	if len(ids) == 0 {
		return [][]model.ID{nil}
	}
	var pages [][]model.ID
	for len(ids) > 0 {
		end := min(n, len(ids))
		pages = append(pages, ids[:end])
		ids = ids[end:]
	}
	return pages
}

// Slugs returns n slugs "prefix-001" .. in order.
func Slugs(prefix string, n int) []model.ID {
	out := make([]model.ID, n)
	for i := range out {
		out[i] = model.ID(fmt.Sprintf("%s-%03d", prefix, i+1))
	}
	return out
}

func page(body string) string {
	return "<!DOCTYPE html><html><body>" + body + "</body></html>"
}

func posters(slugs []model.ID, numbered bool) string {
	var b strings.Builder
	b.WriteString(`<ul class="poster-list">`)
	for _, s := range slugs {
		class := "poster-container"
		if numbered {
			class += " numbered-list-item"
		}
		fmt.Fprintf(&b, `<li class="%s"><div class="really-lazy-load poster film-poster" data-film-slug="%s"></div></li>`, class, html.EscapeString(string(s)))
	}
	b.WriteString(`</ul>`)
	return b.String()
}

func nav(label string, total int) string {
	return fmt.Sprintf(`<nav class="profile-navigation"><a class="tooltip" href="#" title="%d&nbsp;films">%s</a></nav>`, total, label)
}

// WatchlistHTML renders one watchlist page.
func WatchlistHTML(total int, slugs []model.ID) string {
	return page(fmt.Sprintf(`<h1><span class="js-watchlist-count">%d&nbsp;films</span></h1>`, total) + posters(slugs, false))
}

// ListHTML renders one page of a named list.
func ListHTML(title string, total int, numbered bool, slugs []model.ID) string {
	head := fmt.Sprintf(`<meta name="description" content="A list of %d films compiled on Letterboxd.">`, total)
	return "<!DOCTYPE html><html><head>" + head + "</head><body>" +
		fmt.Sprintf(`<h1 class="title-1 prettify">%s</h1>`, html.EscapeString(title)) +
		posters(slugs, numbered) + "</body></html>"
}

// FeedHTML renders one page of a browse feed.
func FeedHTML(slugs []model.ID) string {
	return page(posters(slugs, false))
}

// Log is one logged film.
type Log struct {
	Film      model.ID
	HalfStars int
	Liked     bool
}

// LogsHTML renders one page of a member's logged films.
func LogsHTML(total int, logs []Log) string {
	var b strings.Builder
	b.WriteString(nav("Watched", total))
	b.WriteString(`<ul class="poster-list">`)
	for _, l := range logs {
		fmt.Fprintf(&b, `<li class="poster-container"><div class="poster film-poster" data-film-slug="%s"></div><p class="poster-viewingdata">`, l.Film)
		if l.HalfStars > 0 {
			fmt.Fprintf(&b, `<span class="rating -micro -darker rated-%d"></span>`, l.HalfStars)
		}
		if l.Liked {
			b.WriteString(`<span class="like has-icon icon-liked"></span>`)
		}
		b.WriteString(`</p></li>`)
	}
	b.WriteString(`</ul>`)
	return page(b.String())
}

// Diary is one diary row.
type Diary struct {
	Film      model.ID
	Date      time.Time
	HalfStars int
	Liked     bool
	Rewatch   bool
	Review    bool
}

// DiaryHTML renders one diary page for user.
func DiaryHTML(user string, total int, rows []Diary) string {
	var b strings.Builder
	b.WriteString(nav("Diary", total))
	b.WriteString(`<table id="diary-table"><tbody>`)
	for _, r := range rows {
		b.WriteString(`<tr class="diary-entry-row viewing-poster-container">`)
		fmt.Fprintf(&b, `<td class="td-day"><a href="/%s/films/diary/for/%s/">%02d</a></td>`, user, r.Date.Format("2006/01/02"), r.Date.Day())
		b.WriteString(`<td class="td-rating">`)
		if r.HalfStars > 0 {
			fmt.Fprintf(&b, `<span class="rating rated-%d"></span>`, r.HalfStars)
		}
		b.WriteString(`</td><td class="td-like">`)
		if r.Liked {
			b.WriteString(`<span class="has-icon icon-liked"></span>`)
		}
		b.WriteString(`</td>`)
		if r.Rewatch {
			b.WriteString(`<td class="td-rewatch"></td>`)
		} else {
			b.WriteString(`<td class="td-rewatch icon-status-off"></td>`)
		}
		b.WriteString(`<td class="td-review">`)
		if r.Review {
			fmt.Fprintf(&b, `<a class="has-icon icon-review" href="/%s/film/%s/"></a>`, user, r.Film)
		}
		fmt.Fprintf(&b, `</td><td class="td-actions film-actions" data-film-slug="%s"></td></tr>`, r.Film)
	}
	b.WriteString(`</tbody></table>`)
	return page(b.String())
}

// Review is one review article. A non-empty FullTextURL renders the body
// collapsed.
type Review struct {
	Film        model.ID
	Date        time.Time
	HalfStars   int
	Text        string
	FullTextURL string
}

// ReviewsHTML renders one page of reviews.
func ReviewsHTML(total int, reviews []Review) string {
	var b strings.Builder
	b.WriteString(nav("Reviews", total))
	for _, r := range reviews {
		b.WriteString(`<article class="production-viewing js-production-viewing">`)
		fmt.Fprintf(&b, `<div class="poster film-poster" data-film-slug="%s"></div>`, r.Film)
		if r.HalfStars > 0 {
			fmt.Fprintf(&b, `<span class="rating -green rated-%d"></span>`, r.HalfStars)
		}
		fmt.Fprintf(&b, `<time datetime="%s"></time>`, r.Date.Format(time.RFC3339))
		if r.FullTextURL != "" {
			fmt.Fprintf(&b, `<div class="body-text js-review-body" data-full-text-url="%s"><div class="collapsed-text"><p>%s</p></div></div>`,
				r.FullTextURL, html.EscapeString(r.Text))
		} else {
			fmt.Fprintf(&b, `<div class="body-text js-review-body"><p>%s</p></div>`, html.EscapeString(r.Text))
		}
		b.WriteString(`</article>`)
	}
	return page(b.String())
}

// UserListsHTML renders one page of a member's lists index.
func UserListsHTML(total int, lists []model.ID) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<div id="content-nav"><span class="tooltip" title="%d&nbsp;lists">Lists</span></div>`, total)
	b.WriteString(`<section class="list-set">`)
	for _, id := range lists {
		owner, name, _ := id.SplitList()
		fmt.Fprintf(&b, `<section class="list"><a class="list-link" href="/%s/list/%s/" title="%s"></a></section>`, owner, name, name)
	}
	b.WriteString(`</section>`)
	return page(b.String())
}

// FilmHTML renders a minimal film page.
func FilmHTML(slug model.ID, title string, year int) string {
	return page(fmt.Sprintf(
		`<div class="poster film-poster" data-film-slug="%s"></div>`+
			`<h1 class="headline-1"><span class="name js-widont">%s</span></h1>`+
			`<span class="releasedate"><a href="/films/year/%d/">%d</a></span>`,
		slug, html.EscapeString(title), year, year))
}

// NanogenresHTML renders a nanogenre page.
func NanogenresHTML(labels ...string) string {
	var b strings.Builder
	for _, l := range labels {
		fmt.Fprintf(&b, `<section class="section genre-group"><span class="label">%s</span></section>`, html.EscapeString(l))
	}
	return page(b.String())
}

// ProfileHTML renders a profile page.
func ProfileHTML(user string, watched int, favourites []model.ID) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<section class="profile-header" data-person="%s"><span class="displayname">%s</span>`, user, user)
	fmt.Fprintf(&b, `<h4 class="profile-statistic"><span class="value">%d</span><span class="definition">Films</span></h4></section>`, watched)
	b.WriteString(`<ul>`)
	for _, f := range favourites {
		fmt.Fprintf(&b, `<li class="poster-container favourite-film-poster-container"><div class="poster film-poster" data-film-slug="%s"></div></li>`, f)
	}
	b.WriteString(`</ul>`)
	return page(b.String())
}

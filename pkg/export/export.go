// Package export renders records and films as JSON Lines or text tables.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	jsoniter "github.com/json-iterator/go"

	"github.com/Sternrassler/letterboxd-client/pkg/model"
	"github.com/Sternrassler/letterboxd-client/pkg/record"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Format selects an output encoding.
type Format string

const (
	FormatTable Format = "table"
	FormatJSONL Format = "jsonl"
)

// ParseFormat accepts "table" or "jsonl".
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatTable, FormatJSONL:
		return f, nil
	default:
		return "", fmt.Errorf("unknown format %q (want table or jsonl)", s)
	}
}

// Row is the flat export view of one entry.
type Row struct {
	Position    int     `json:"position"`
	Rank        int     `json:"rank,omitempty"`
	Film        string  `json:"film"`
	Title       string  `json:"title,omitempty"`
	Year        int     `json:"year,omitempty"`
	WatchedDate string  `json:"watched_date,omitempty"`
	Rating      float64 `json:"rating,omitempty"`
	Liked       bool    `json:"liked,omitempty"`
	Rewatch     bool    `json:"rewatch,omitempty"`
	Review      string  `json:"review,omitempty"`
	ReviewURL   string  `json:"review_url,omitempty"`
}

// Rows flattens rec in entry order. Film titles appear only for resolved
// entries.
func Rows(rec *record.Record) []Row {
	rows := make([]Row, len(rec.Entries))
	for i, e := range rec.Entries {
		r := Row{
			Position:  i + 1,
			Film:      string(e.ID()),
			Rating:    float64(e.Rating),
			Liked:     e.Liked,
			Rewatch:   e.Rewatch,
			Review:    e.Review,
			ReviewURL: e.ReviewURL,
		}
		if rec.Numbered() {
			r.Rank = i + 1
		}
		if !e.WatchedDate.IsZero() {
			r.WatchedDate = e.WatchedDate.Format("2006-01-02")
		}
		if film, ok := e.Film.Get(); ok {
			r.Title = film.Title
			r.Year = film.Year
		}
		rows[i] = r
	}
	return rows
}

// Write renders rec to w in the given format.
func Write(w io.Writer, rec *record.Record, f Format) error {
	switch f {
	case FormatJSONL:
		return WriteJSONL(w, rec)
	case FormatTable, "":
		return WriteTable(w, rec)
	default:
		return fmt.Errorf("unknown format %q", f)
	}
}

// WriteJSONL writes one JSON object per entry.
func WriteJSONL(w io.Writer, rec *record.Record) error {
	enc := json.NewEncoder(w)
	for _, row := range Rows(rec) {
		if err := enc.Encode(row); err != nil {
			return fmt.Errorf("encode %s: %w", row.Film, err)
		}
	}
	return nil
}

// WriteTable renders rec as a rounded text table with a title.
func WriteTable(w io.Writer, rec *record.Record) error {
	t := newTable(w)

	title := rec.Title
	if title == "" {
		title = fmt.Sprintf("%s %s", rec.Owner, rec.Kind)
	}
	t.SetTitle(title)
	t.AppendHeader(table.Row{"#", "Film", "Watched", "Rating", "Liked", "Review"})

	for _, r := range Rows(rec) {
		film := r.Film
		if r.Title != "" {
			film = model.Film{Title: r.Title, Year: r.Year}.String()
		}
		t.AppendRow(table.Row{
			r.Position,
			film,
			r.WatchedDate,
			model.Rating(r.Rating).String(),
			mark(r.Liked),
			truncate(r.Review, 60),
		})
	}
	t.AppendFooter(table.Row{"", fmt.Sprintf("%d of %d", rec.Len(), rec.DeclaredTotal)})
	t.Render()
	return nil
}

// WriteFilm renders one film as a two-column table.
func WriteFilm(w io.Writer, film model.Film) error {
	t := newTable(w)
	t.SetTitle(film.String())

	add := func(label string, value any) {
		switch v := value.(type) {
		case string:
			if v == "" {
				return
			}
		case int:
			if v == 0 {
				return
			}
		case []string:
			if len(v) == 0 {
				return
			}
			value = strings.Join(v, ", ")
		}
		t.AppendRow(table.Row{label, value})
	}

	add("Slug", string(film.Slug))
	add("TMDb", film.TMDbID)
	add("Runtime", film.RuntimeMinutes)
	add("Directors", film.Directors)
	add("Genres", film.Genres)
	add("Themes", film.Themes)
	add("Nanogenres", film.Nanogenres)
	add("Countries", film.Countries)
	add("Languages", film.Languages)
	add("Studios", film.Studios)
	add("Cast", film.Actors())
	if film.RatingCount > 0 {
		add("Rating", fmt.Sprintf("%.2f (%d ratings)", film.AverageRating, film.RatingCount))
	}
	t.Render()
	return nil
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(w)
	return t
}

func mark(b bool) string {
	if b {
		return "♥"
	}
	return ""
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

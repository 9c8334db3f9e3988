package record

import (
	"sort"
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/Sternrassler/letterboxd-client/pkg/model"
)

// MinSuggestScore is the Jaro-Winkler similarity below which a film is
// not suggested.
const MinSuggestScore = 0.75

// Suggestion is a fuzzy match for a query.
type Suggestion struct {
	Film  model.ID
	Title string
	Score float64
}

// Suggest returns up to n films whose slug or resolved title best match
// query. Ties keep record order.
func (r *Record) Suggest(query string, n int) []Suggestion {
	q := normalize(query)
	if q == "" || n <= 0 {
		return nil
	}

	seen := make(map[model.ID]bool)
	var out []Suggestion
	for _, e := range r.Entries {
		id := e.ID()
		if seen[id] {
			continue
		}
		seen[id] = true

		s := Suggestion{Film: id, Score: matchr.JaroWinkler(q, normalize(string(id)), false)}
		if film, ok := e.Film.Get(); ok {
			s.Title = film.Title
			if score := matchr.JaroWinkler(q, normalize(film.Title), false); score > s.Score {
				s.Score = score
			}
		}
		if s.Score >= MinSuggestScore {
			out = append(out, s)
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// normalize folds case and slug punctuation so "the-thing" and
// "The Thing" compare equal.
func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer("-", " ", "_", " ").Replace(s)
}

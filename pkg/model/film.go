package model

import "fmt"

// CastMember is one credited actor and the character played.
type CastMember struct {
	Actor     string `json:"actor"`
	Character string `json:"character,omitempty"`
}

// Film is a fully hydrated film page.
type Film struct {
	Slug           ID                  `json:"slug"`
	TMDbID         int                 `json:"tmdb_id,omitempty"`
	Title          string              `json:"title"`
	Year           int                 `json:"year,omitempty"`
	RuntimeMinutes int                 `json:"runtime_minutes,omitempty"`
	Directors      []string            `json:"directors,omitempty"`
	Genres         []string            `json:"genres,omitempty"`
	Themes         []string            `json:"themes,omitempty"`
	Nanogenres     []string            `json:"nanogenres,omitempty"`
	Countries      []string            `json:"countries,omitempty"`
	Languages      []string            `json:"languages,omitempty"`
	Studios        []string            `json:"studios,omitempty"`
	Cast           []CastMember        `json:"cast,omitempty"`
	Crew           map[string][]string `json:"crew,omitempty"`
	AverageRating  float64             `json:"average_rating,omitempty"`
	RatingCount    int                 `json:"rating_count,omitempty"`
}

// String renders "Title (Year)", falling back to the slug.
func (f Film) String() string {
	switch {
	case f.Title == "":
		return string(f.Slug)
	case f.Year == 0:
		return f.Title
	default:
		return fmt.Sprintf("%s (%d)", f.Title, f.Year)
	}
}

// Actors returns actor names in billing order.
func (f Film) Actors() []string {
	names := make([]string, len(f.Cast))
	for i, m := range f.Cast {
		names[i] = m.Actor
	}
	return names
}

// Profile is the summary shown on a user's profile page.
type Profile struct {
	Username     ID     `json:"username"`
	DisplayName  string `json:"display_name,omitempty"`
	FilmsWatched int    `json:"films_watched"`
	Favourites   []ID   `json:"favourites,omitempty"`
}

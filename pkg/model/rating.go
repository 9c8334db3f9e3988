package model

import (
	"errors"
	"fmt"
	"math"
)

// Rating bounds. Ratings move in half-star steps.
const (
	MinRating  Rating = 0.5
	MaxRating  Rating = 5.0
	RatingStep Rating = 0.5
)

// ErrInvalidRating is returned for ratings outside the half-star scale.
var ErrInvalidRating = errors.New("invalid rating")

// Rating is a star rating in [0.5, 5.0], a multiple of 0.5.
// The zero value means "no rating".
type Rating float64

// NewRating validates r.
func NewRating(r float64) (Rating, error) {
	rating := Rating(r)
	if err := rating.Validate(); err != nil {
		return 0, err
	}
	return rating, nil
}

// RatingFromHalfStars converts the site's "rated-N" scale (1..10) into stars.
func RatingFromHalfStars(n int) (Rating, error) {
	return NewRating(float64(n) / 2)
}

// Validate checks range and half-star granularity. The zero value is valid
// and means absent.
func (r Rating) Validate() error {
	if r == 0 {
		return nil
	}
	if r < MinRating || r > MaxRating {
		return fmt.Errorf("%w: %v out of range [%v, %v]", ErrInvalidRating, float64(r), float64(MinRating), float64(MaxRating))
	}
	if halves := float64(r) * 2; halves != math.Trunc(halves) {
		return fmt.Errorf("%w: %v is not a multiple of %v", ErrInvalidRating, float64(r), float64(RatingStep))
	}
	return nil
}

// Present reports whether a rating was given.
func (r Rating) Present() bool {
	return r != 0
}

// HalfStars returns the rating on the 1..10 scale.
func (r Rating) HalfStars() int {
	return int(math.Round(float64(r) * 2))
}

// String renders the rating as stars, e.g. "★★★½".
func (r Rating) String() string {
	if !r.Present() {
		return ""
	}
	n := r.HalfStars()
	out := make([]rune, 0, n/2+1)
	for i := 0; i < n/2; i++ {
		out = append(out, '★')
	}
	if n%2 == 1 {
		out = append(out, '½')
	}
	return string(out)
}

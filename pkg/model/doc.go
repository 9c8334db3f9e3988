// Package model defines the identifiers and entities shared by the
// aggregation engine: films, ratings, and the IDs that name them.
package model

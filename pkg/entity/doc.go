// Package entity implements deferred hydration of referenced entities.
//
// A Lazy[T] is either Unresolved (only its ID is known) or Resolved (the
// full value is present). Resolution goes through a Cache[T], which
// guarantees that each ID is loaded at most once per cache: concurrent
// callers for the same ID share one in-flight load, and the outcome
// (success or failure) is kept for the lifetime of the cache.
//
// # Basic Usage
//
//	films := entity.NewCache("film", loadFilm, logger)
//
//	ref := films.Ref("barbie")   // interned, shared by every caller
//	film, err := films.Resolve(ctx, ref)
//
//	// Later, with no I/O:
//	if film, ok := ref.Get(); ok {
//		fmt.Println(film.Title)
//	}
//
// A failed resolution is cached too. Force re-attempts it explicitly:
//
//	film, err = films.Force(ctx, ref)
//
// # Metrics
//
//   - boxd_entity_resolutions_total{entity, outcome} - hit, loaded, shared, failed, cancelled
//   - boxd_entity_load_duration_seconds{entity} - duration of underlying loads
package entity

// Package pagecache caches raw page bodies in Redis.
//
// Bodies are stored zstd-compressed under a deterministic key derived from
// the page URL, with a fixed TTL. A hit lets the fetcher skip both the
// politeness delay and the network round trip.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	pages := pagecache.NewManager(redisClient, 6*time.Hour)
//
//	body, err := pages.Get(ctx, "https://letterboxd.com/film/barbie/")
//	if errors.Is(err, pagecache.ErrCacheMiss) {
//		// fetch, then
//		_ = pages.Set(ctx, url, body)
//	}
//
// # Metrics
//
//   - boxd_pagecache_hits_total - Cache hits
//   - boxd_pagecache_misses_total - Cache misses
//   - boxd_pagecache_stored_bytes_total{form} - Bytes written, raw and compressed
//   - boxd_pagecache_errors_total{operation} - Cache operation errors
package pagecache

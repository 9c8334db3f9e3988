// Package fetcher retrieves Letterboxd pages.
//
// Fetcher is the boundary the aggregation engine depends on: given an
// absolute URL it returns the parsed page or a typed *FetchError. Client
// is the HTTP implementation. It adds, in order:
//
//   - locator validation (malformed URLs fail permanently, no request)
//   - an optional Redis page cache (hits skip everything below)
//   - a shared cooldown gate fed by 429 Retry-After headers
//   - a randomized politeness delay before each network round trip
//   - retries with per-class exponential backoff and ±20% jitter
//
// Status handling: 429 is rate_limit, 500/502/503/504 are server errors,
// transport failures are network errors. All three are retried. Every
// other 4xx/5xx is a permanent client error; 404 also matches ErrNotFound.
//
// Site builds every URL the parsers understand:
//
//	site := fetcher.DefaultSite()
//	site.Diary("dave", 2)  // https://letterboxd.com/dave/films/diary/page/2/
package fetcher

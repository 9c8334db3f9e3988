// Package pagination drives sequential page fetches for Letterboxd
// collections whose first page declares a total count.
//
// The first page is fetched and parsed to learn the declared total. The
// remaining pages, ceil(total/pageSize) of them, are then fetched strictly
// in order, their items appended in fetch order. The aggregate is only
// returned when every page succeeded and the item count matches the
// declared total:
//
//	src, _ := parser.Entries(site, pagination.KindDiary)
//	agg := pagination.New(client, src, pagination.DefaultConfig())
//	res, err := agg.Aggregate(ctx, "dave")
//
// Failures are reported as *AggregationError whose Reason is one of
// ErrFetchFailed, ErrPartialFailure, ErrCountMismatch, ErrInconsistentPage
// or ErrCancelled. No partial result is ever returned alongside an error.
//
// Cancellation is checked between page fetches, never mid-fetch.
//
// Feeds without a declared total (popular films, by year) use
// CollectPages, which fetches a fixed number of pages and stops early at
// the first empty one.
package pagination

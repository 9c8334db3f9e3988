// Package parser extracts entries, declared totals and film details from
// Letterboxd HTML pages.
//
// Page parsers plug into pagination.Aggregator through Source:
//
//	src, err := parser.Entries(site, pagination.KindDiary)
//	agg := pagination.New(client, src, pagination.DefaultConfig())
//	res, err := agg.Aggregate(ctx, "dave")
//
// Declared totals are only read from the first page of a collection. A page
// whose expected markup is missing yields a *ParseError wrapping ErrMarkup
// or ErrMissingTotal, which the aggregator reports as an inconsistent page.
package parser

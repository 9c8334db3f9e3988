package pagination

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/letterboxd-client/pkg/fetcher"
	"github.com/Sternrassler/letterboxd-client/pkg/model"
)

var (
	aggregationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "boxd_aggregations_total",
		Help: "Completed aggregations by kind and outcome",
	}, []string{"kind", "outcome"})

	pagesFetchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "boxd_aggregation_pages_total",
		Help: "Pages fetched and parsed by kind",
	}, []string{"kind"})

	aggregationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "boxd_aggregation_duration_seconds",
		Help:    "Wall time of a whole aggregation by kind",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
	}, []string{"kind"})
)

// PageResult is what a parser extracts from one page.
type PageResult[P any] struct {
	// Total is the declared item count. Only the first page carries it.
	Total *int

	// Items are the page-local partial records in page order.
	Items []P

	// Numbered marks a ranked collection.
	Numbered bool

	// Title is the collection title, when the page shows one.
	Title string
}

// PageParser turns one fetched page into partial records.
type PageParser[P any] interface {
	Parse(page *fetcher.Page, first bool) (PageResult[P], error)
}

// ParserFunc adapts a function to PageParser.
type ParserFunc[P any] func(page *fetcher.Page, first bool) (PageResult[P], error)

// Parse calls f.
func (f ParserFunc[P]) Parse(page *fetcher.Page, first bool) (PageResult[P], error) {
	return f(page, first)
}

// Source binds a kind to its locator and parser.
type Source[P any] struct {
	Kind Kind

	// PageSize overrides Kind.PageSize when positive.
	PageSize int

	// Locate returns the URL of a page, counting from 1.
	Locate func(subject model.ID, page int) string

	Parser PageParser[P]
}

// Config tunes reconciliation.
type Config struct {
	// DriftTolerance is how many entries the collected count may differ
	// from the declared total before CountMismatch is reported. Zero
	// enforces an exact match.
	DriftTolerance int
}

// DefaultConfig returns the strict configuration.
func DefaultConfig() Config {
	return Config{}
}

// Result is a completed aggregation.
type Result[P any] struct {
	Subject       model.ID
	Kind          Kind
	Title         string
	DeclaredTotal int
	Items         []P
	Pages         int
	Numbered      bool

	// Drift is len(Items) - DeclaredTotal. Non-zero only under a
	// configured tolerance.
	Drift int
}

// Aggregator fetches every page of one kind of collection.
type Aggregator[P any] struct {
	fetcher fetcher.Fetcher
	source  Source[P]
	config  Config
	logger  zerolog.Logger
}

// New creates an aggregator. It panics on an incomplete source.
func New[P any](f fetcher.Fetcher, src Source[P], cfg Config) *Aggregator[P] {
	if f == nil || src.Locate == nil || src.Parser == nil {
		panic("pagination: fetcher, locator and parser are required")
	}
	if src.PageSize <= 0 {
		src.PageSize = src.Kind.PageSize()
	}
	if src.PageSize <= 0 {
		panic(fmt.Sprintf("pagination: no page size for kind %q", src.Kind))
	}
	if cfg.DriftTolerance < 0 {
		cfg.DriftTolerance = 0
	}
	return &Aggregator[P]{
		fetcher: f,
		source:  src,
		config:  cfg,
		logger:  log.With().Str("component", "pagination").Str("kind", string(src.Kind)).Logger(),
	}
}

// Aggregate collects the whole collection for subject.
func (a *Aggregator[P]) Aggregate(ctx context.Context, subject model.ID) (*Result[P], error) {
	start := time.Now()
	res, err := a.aggregate(ctx, subject)
	aggregationDuration.WithLabelValues(string(a.source.Kind)).Observe(time.Since(start).Seconds())

	if err != nil {
		aggregationsTotal.WithLabelValues(string(a.source.Kind), outcome(err)).Inc()
		a.logger.Warn().Err(err).Str("subject", string(subject)).Msg("Aggregation failed")
		return nil, err
	}

	aggregationsTotal.WithLabelValues(string(a.source.Kind), "ok").Inc()
	a.logger.Info().
		Str("subject", string(subject)).
		Int("entries", len(res.Items)).
		Int("pages", res.Pages).
		Dur("duration", time.Since(start)).
		Msg("Aggregation complete")
	return res, nil
}

func (a *Aggregator[P]) aggregate(ctx context.Context, subject model.ID) (*Result[P], error) {
	kind := a.source.Kind
	fail := func(reason error, page int, err error) *AggregationError {
		return &AggregationError{Reason: reason, Subject: subject, Kind: kind, Page: page, Err: err}
	}

	if ctx.Err() != nil {
		return nil, fail(ErrCancelled, 1, ctx.Err())
	}

	first, err := a.fetchPage(ctx, subject, 1)
	if err != nil {
		if Cancelled(ctx, err) {
			return nil, fail(ErrCancelled, 1, err)
		}
		return nil, fail(ErrFetchFailed, 1, err)
	}

	parsed, err := a.source.Parser.Parse(first, true)
	if err != nil {
		return nil, fail(ErrInconsistentPage, 1, err)
	}
	if parsed.Total == nil {
		return nil, fail(ErrInconsistentPage, 1, errors.New("first page declares no total"))
	}
	total := *parsed.Total
	if total < 0 {
		return nil, fail(ErrInconsistentPage, 1, fmt.Errorf("negative total %d", total))
	}
	if total > 0 && len(parsed.Items) == 0 {
		return nil, fail(ErrInconsistentPage, 1, fmt.Errorf("declared %d entries but page is empty", total))
	}
	pagesFetchedTotal.WithLabelValues(string(kind)).Inc()

	res := &Result[P]{
		Subject:       subject,
		Kind:          kind,
		Title:         parsed.Title,
		DeclaredTotal: total,
		Items:         make([]P, 0, total),
		Pages:         1,
		Numbered:      parsed.Numbered,
	}
	res.Items = append(res.Items, parsed.Items...)

	pageCount := 1
	if total > a.source.PageSize {
		pageCount = (total + a.source.PageSize - 1) / a.source.PageSize
	}

	a.logger.Debug().
		Str("subject", string(subject)).
		Int("total", total).
		Int("total_pages", pageCount).
		Msg("Declared total parsed")

	for page := 2; page <= pageCount; page++ {
		if ctx.Err() != nil {
			e := fail(ErrCancelled, page, ctx.Err())
			e.CompletedPages, e.TotalPages = page-1, pageCount
			return nil, e
		}

		p, err := a.fetchPage(ctx, subject, page)
		if err != nil {
			reason := ErrPartialFailure
			if Cancelled(ctx, err) {
				reason = ErrCancelled
			}
			e := fail(reason, page, err)
			e.CompletedPages, e.TotalPages = page-1, pageCount
			return nil, e
		}

		parsed, err := a.source.Parser.Parse(p, false)
		if err != nil {
			return nil, fail(ErrInconsistentPage, page, err)
		}
		pagesFetchedTotal.WithLabelValues(string(kind)).Inc()

		res.Items = append(res.Items, parsed.Items...)
		res.Pages = page

		a.logger.Debug().
			Int("page", page).
			Int("total_pages", pageCount).
			Int("entries", len(res.Items)).
			Msg("Page merged")
	}

	drift := len(res.Items) - total
	if drift != 0 {
		if abs(drift) > a.config.DriftTolerance {
			e := fail(ErrCountMismatch, res.Pages, nil)
			e.Expected, e.Actual = total, len(res.Items)
			return nil, e
		}
		res.Drift = drift
		a.logger.Warn().
			Str("subject", string(subject)).
			Int("expected", total).
			Int("actual", len(res.Items)).
			Msg("Entry count drifted within tolerance")
	}
	return res, nil
}

// CollectPages fetches pages 1..n of a collection that declares no total,
// stopping early at the first empty page.
func (a *Aggregator[P]) CollectPages(ctx context.Context, subject model.ID, n int) (*Result[P], error) {
	kind := a.source.Kind
	res := &Result[P]{Subject: subject, Kind: kind}

	for page := 1; page <= n; page++ {
		if ctx.Err() != nil {
			return nil, &AggregationError{
				Reason: ErrCancelled, Subject: subject, Kind: kind, Page: page,
				CompletedPages: page - 1, TotalPages: n, Err: ctx.Err(),
			}
		}

		p, err := a.fetchPage(ctx, subject, page)
		if err != nil {
			reason := ErrPartialFailure
			switch {
			case Cancelled(ctx, err):
				reason = ErrCancelled
			case page == 1:
				reason = ErrFetchFailed
			}
			return nil, &AggregationError{
				Reason: reason, Subject: subject, Kind: kind, Page: page,
				CompletedPages: page - 1, TotalPages: n, Err: err,
			}
		}

		parsed, err := a.source.Parser.Parse(p, page == 1)
		if err != nil {
			return nil, &AggregationError{Reason: ErrInconsistentPage, Subject: subject, Kind: kind, Page: page, Err: err}
		}
		pagesFetchedTotal.WithLabelValues(string(kind)).Inc()

		if page == 1 {
			res.Title = parsed.Title
			res.Numbered = parsed.Numbered
		}
		if len(parsed.Items) == 0 {
			break
		}
		res.Items = append(res.Items, parsed.Items...)
		res.Pages = page
	}

	res.DeclaredTotal = len(res.Items)
	a.logger.Info().
		Str("subject", string(subject)).
		Int("entries", len(res.Items)).
		Int("pages", res.Pages).
		Msg("Pages collected")
	return res, nil
}

func (a *Aggregator[P]) fetchPage(ctx context.Context, subject model.ID, page int) (*fetcher.Page, error) {
	url := a.source.Locate(subject, page)
	p, err := a.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("page %d: %w", page, err)
	}
	return p, nil
}

// Cancelled reports whether err, hit while working under ctx, is a
// cancellation rather than a failure.
func Cancelled(ctx context.Context, err error) bool {
	return ctx.Err() != nil ||
		errors.Is(err, fetcher.ErrContextCancelled) ||
		errors.Is(err, context.Canceled)
}

func outcome(err error) string {
	var aggErr *AggregationError
	if !errors.As(err, &aggErr) {
		return "error"
	}
	switch aggErr.Reason {
	case ErrFetchFailed:
		return "fetch_failed"
	case ErrPartialFailure:
		return "partial_failure"
	case ErrCountMismatch:
		return "count_mismatch"
	case ErrInconsistentPage:
		return "inconsistent_page"
	case ErrCancelled:
		return "cancelled"
	default:
		return "error"
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

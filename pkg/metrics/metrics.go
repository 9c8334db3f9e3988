// Package metrics exposes the client's Prometheus metrics over HTTP.
// The metrics themselves are defined with promauto in the packages that
// record them.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Registry is where every package registers its metrics.
var Registry = prometheus.DefaultRegisterer

// Handler serves the default gatherer in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("Metrics server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// Metrics reference
//
// Fetcher (pkg/fetcher):
//   - boxd_fetch_requests_total{status} (Counter)
//   - boxd_fetch_duration_seconds{source} (Histogram): source is cache or network
//   - boxd_fetch_errors_total{class} (Counter)
//   - boxd_fetch_retries_total{error_class} (Counter)
//   - boxd_fetch_retry_backoff_seconds{error_class} (Histogram)
//   - boxd_fetch_retry_exhausted_total{error_class} (Counter)
//
// Cooldown (pkg/ratelimit):
//   - boxd_cooldown_remaining_seconds (Gauge)
//   - boxd_cooldown_trips_total (Counter)
//   - boxd_cooldown_waits_total (Counter)
//
// Page cache (pkg/pagecache):
//   - boxd_pagecache_hits_total, boxd_pagecache_misses_total (Counter)
//   - boxd_pagecache_stored_bytes_total{form} (Counter)
//   - boxd_pagecache_errors_total{operation} (Counter)
//
// Aggregation (pkg/pagination):
//   - boxd_aggregations_total{kind, outcome} (Counter)
//   - boxd_aggregation_pages_total{kind} (Counter)
//   - boxd_aggregation_duration_seconds{kind} (Histogram)
//
// Films (pkg/entity):
//   - boxd_entity_resolutions_total{entity, outcome} (Counter)
//   - boxd_entity_load_duration_seconds{entity} (Histogram)
//
// Example queries:
//
//	# Page cache hit rate
//	sum(rate(boxd_pagecache_hits_total[5m])) /
//	(sum(rate(boxd_pagecache_hits_total[5m])) + sum(rate(boxd_pagecache_misses_total[5m])))
//
//	# Aggregations failing mid-way
//	rate(boxd_aggregations_total{outcome="partial_failure"}[1h])

package pagecache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "boxd_pagecache_hits_total",
		Help: "Total number of page cache hits",
	})

	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "boxd_pagecache_misses_total",
		Help: "Total number of page cache misses",
	})

	storedBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "boxd_pagecache_stored_bytes_total",
			Help: "Bytes written to the page cache",
		},
		[]string{"form"}, // "raw", "compressed"
	)

	cacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "boxd_pagecache_errors_total",
			Help: "Total number of page cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete"
	)
)

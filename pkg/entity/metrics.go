package entity

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	resolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "boxd_entity_resolutions_total",
			Help: "Entity resolutions by entity type and outcome",
		},
		[]string{"entity", "outcome"}, // hit, loaded, shared, failed, cancelled
	)

	loadDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "boxd_entity_load_duration_seconds",
			Help:    "Duration of underlying entity loads",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"entity"},
	)
)

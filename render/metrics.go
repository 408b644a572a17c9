package render

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	renderVisitedSections = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "render_visited_sections",
		Help:    "The number of render sections visited per frame.",
		Buckets: prometheus.ExponentialBuckets(1, 4, 10),
	})

	renderFindVisibleLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "render_find_visible_latency",
		Help:    "The time to search and decode the visible sections of a frame.",
		Buckets: prometheus.ExponentialBuckets(0.00005, 2, 14),
	})
)

func instrumentDecode(count int) {
	renderVisitedSections.Observe(float64(count))
}

func instrumentFindVisibleLatency(start time.Time) {
	renderFindVisibleLatency.Observe(time.Since(start).Seconds())
}

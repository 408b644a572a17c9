package graph

import (
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	opLabel      = "op"
	errTypeLabel = "error_type"
	cullingLabel = "occlusion_culling"
)

var (
	graphCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "graph_count",
		Help: "The number of open graphs.",
	})

	graphSectionCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "graph_section_count",
		Help: "The number of sections held by open graphs.",
	})

	graphMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "graph_mutations",
		Help: "The number of graph mutations.",
	}, []string{
		opLabel,
	})

	graphErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "graph_errors",
		Help: "The errors returned by graph operations.",
	}, []string{
		opLabel,
		errTypeLabel,
	})

	graphSearchLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "graph_search_latency",
		Help:    "The time to search a graph.",
		Buckets: prometheus.ExponentialBuckets(0.00005, 2, 14),
	}, []string{
		cullingLabel,
	})

	graphSearchVisited = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "graph_search_visited_sections",
		Help:    "The number of sections visited by a search.",
		Buckets: prometheus.ExponentialBuckets(1, 4, 10),
	})

	graphSearchVisible = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "graph_search_visible_sections",
		Help:    "The number of sections found visible by a search.",
		Buckets: prometheus.ExponentialBuckets(1, 4, 10),
	})
)

func instrumentMutation(op string) {
	graphMutations.With(prometheus.Labels{
		opLabel: op,
	}).Inc()
}

func instrumentError(op string, err error) error {
	if err == nil {
		return nil
	}

	graphErrors.
		With(prometheus.Labels{
			opLabel:      op,
			errTypeLabel: errors.Type(err),
		}).
		Inc()
	return err
}

func instrumentSearch(stats SearchStats, culling bool) {
	label := "false"
	if culling {
		label = "true"
	}

	graphSearchLatency.With(prometheus.Labels{
		cullingLabel: label,
	}).Observe(stats.Duration.Seconds())
	graphSearchVisited.Observe(float64(stats.Visited))
	graphSearchVisible.Observe(float64(stats.Visible))
}

func instrumentSectionCount(delta int) {
	graphSectionCount.Add(float64(delta))
}

// SearchStats describes the last search of a graph.
type SearchStats struct {
	Seed     SectionCoord  `json:"seed"`
	Visited  int           `json:"visited"`
	Visible  int           `json:"visible"`
	Tiles    int           `json:"tiles"`
	Duration time.Duration `json:"duration"`
}

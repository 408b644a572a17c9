package models

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	storeLabel = "store"
)

var (
	renderSectionCount = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "render_section_count",
		Help: "The number of render sections.",
	}, []string{storeLabel})

	renderSectionCountTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "render_section_count_total",
		Help: "The total number of render sections added.",
	}, []string{storeLabel})
)

func instrumentIncreaseSectionGauge(store string) {
	renderSectionCount.
		With(prometheus.Labels{storeLabel: store}).
		Inc()

	renderSectionCountTotal.
		With(prometheus.Labels{storeLabel: store}).
		Inc()
}

func instrumentDecreaseSectionGauge(store string) {
	renderSectionCount.
		With(prometheus.Labels{storeLabel: store}).
		Dec()
}

func instrumentSubSectionGauge(store string, n int) {
	renderSectionCount.
		With(prometheus.Labels{storeLabel: store}).
		Sub(float64(n))
}

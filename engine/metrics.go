package engine

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	opLabel      = "op"
	errTypeLabel = "error_type"
)

var (
	engineHandleCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "engine_handle_count",
		Help: "The number of live graph handles.",
	})

	engineCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "engine_calls",
		Help: "The number of calls made on graph handles.",
	}, []string{
		opLabel,
		errTypeLabel,
	})
)

func instrumentHandleCount(delta int) {
	engineHandleCount.Add(float64(delta))
}

func instrumentCall(op string, err error) {
	engineCalls.
		With(prometheus.Labels{
			opLabel:      op,
			errTypeLabel: errors.Type(err),
		}).
		Inc()
}

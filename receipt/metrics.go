package receipt

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	receiptIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "receipt_issued",
		Help: "The number of search receipts issued.",
	})

	receiptVisibleSections = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "receipt_visible_sections",
		Help:    "The number of visible sections covered by an issued receipt.",
		Buckets: prometheus.ExponentialBuckets(1, 4, 8),
	})

	receiptMismatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "receipt_verification_errors",
		Help: "The number of result sets that did not match their receipt.",
	}, []string{
		"error_type",
	})
)

func instrumentReceiptIssued(visible int) {
	receiptIssued.Inc()
	receiptVisibleSections.Observe(float64(visible))
}

func instrumentReceiptVerificationError(err error) {
	receiptMismatches.
		With(prometheus.Labels{"error_type": errors.Type(err)}).
		Inc()
}

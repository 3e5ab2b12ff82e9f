package receipt

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "snapbill"

// Extraction outcomes recorded by Metrics
const (
	resultReceipt    = "receipt"
	resultNotReceipt = "not_receipt"
	resultError      = "error"
)

// Metrics holds the Prometheus collectors for the service
type Metrics struct {
	extractions        *prometheus.CounterVec
	extractionDuration prometheus.Histogram
	extractedItems     prometheus.Histogram
	rejectedUploads    prometheus.Counter
	staleResults       prometheus.Counter
	itemToggles        *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		extractions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "extractions_total",
			Help:      "Extraction calls by result (receipt, not_receipt, error).",
		}, []string{"result"}),
		extractionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "extraction_duration_seconds",
			Help:      "Time spent waiting for the model.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		}),
		extractedItems: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "extracted_items",
			Help:      "Unit line items per extracted receipt.",
			Buckets:   prometheus.LinearBuckets(0, 5, 10),
		}),
		rejectedUploads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "rejected_uploads_total",
			Help:      "Uploads rejected before extraction because they were not images.",
		}),
		staleResults: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "stale_extractions_total",
			Help:      "Extraction results discarded because the session was reset meanwhile.",
		}),
		itemToggles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "item_toggles_total",
			Help:      "Item select and deselect requests.",
		}, []string{"action"}),
	}

	reg.MustRegister(
		m.extractions,
		m.extractionDuration,
		m.extractedItems,
		m.rejectedUploads,
		m.staleResults,
		m.itemToggles,
	)
	return m
}

func (m *Metrics) observeExtraction(result string, items int, elapsed time.Duration) {
	m.extractions.WithLabelValues(result).Inc()
	m.extractionDuration.Observe(elapsed.Seconds())
	if result == resultReceipt {
		m.extractedItems.Observe(float64(items))
	}
}

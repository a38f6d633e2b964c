// Package obs provides observability functionality including metrics and HTTP endpoints
package obs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	QueueDepth             prometheus.Gauge
	DocumentsReceivedTotal prometheus.Counter
	DocumentsAcceptedTotal prometheus.Counter
	DocumentsRejectedTotal *prometheus.CounterVec
	DeliveryRetriesTotal   prometheus.Counter
	DeliveryFailuresTotal  prometheus.Counter
	RecordsAcceptedTotal   prometheus.Counter
}

// NewMetrics creates and initializes a new Metrics instance registered with reg.
// A nil reg registers with the Prometheus default registry.
func NewMetrics(serviceName string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	labels := prometheus.Labels{"service": serviceName}

	return &Metrics{
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "queue_depth",
			Help:        "Current depth of the internal document queue",
			ConstLabels: labels,
		}),
		DocumentsReceivedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name:        "documents_received_total",
			Help:        "Total number of landing documents enqueued for validation",
			ConstLabels: labels,
		}),
		DocumentsAcceptedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name:        "documents_accepted_total",
			Help:        "Total number of documents routed to staging",
			ConstLabels: labels,
		}),
		DocumentsRejectedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "documents_rejected_total",
			Help:        "Total number of documents routed to rejected, by reason",
			ConstLabels: labels,
		}, []string{"reason"}),
		DeliveryRetriesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name:        "delivery_retries_total",
			Help:        "Total number of retried destination writes",
			ConstLabels: labels,
		}),
		DeliveryFailuresTotal: factory.NewCounter(prometheus.CounterOpts{
			Name:        "delivery_failures_total",
			Help:        "Total number of documents whose destination write exhausted all retries",
			ConstLabels: labels,
		}),
		RecordsAcceptedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name:        "records_accepted_total",
			Help:        "Total number of records in accepted documents",
			ConstLabels: labels,
		}),
	}
}

// IncrementDocumentsReceived increments the documents received counter by 1
func (m *Metrics) IncrementDocumentsReceived() {
	m.DocumentsReceivedTotal.Inc()
}

// ObserveAccepted counts an accepted document and its records
func (m *Metrics) ObserveAccepted(records int) {
	m.DocumentsAcceptedTotal.Inc()
	m.RecordsAcceptedTotal.Add(float64(records))
}

// ObserveRejected counts a rejected document under its reason kind
func (m *Metrics) ObserveRejected(reason string) {
	m.DocumentsRejectedTotal.WithLabelValues(reason).Inc()
}

// IncrementQueueDepth increments the queue depth gauge metric by 1
func (m *Metrics) IncrementQueueDepth() {
	m.QueueDepth.Inc()
}

// DecrementQueueDepth decrements the queue depth gauge metric by 1
func (m *Metrics) DecrementQueueDepth() {
	m.QueueDepth.Dec()
}

// NullifyQueueDepth sets the queue depth gauge metric to 0
func (m *Metrics) NullifyQueueDepth() {
	m.QueueDepth.Set(0)
}

// IncrementDeliveryRetries increments the delivery retries counter by 1
func (m *Metrics) IncrementDeliveryRetries() {
	m.DeliveryRetriesTotal.Inc()
}

// IncrementDeliveryFailures increments the delivery failures counter by 1
func (m *Metrics) IncrementDeliveryFailures() {
	m.DeliveryFailuresTotal.Inc()
}

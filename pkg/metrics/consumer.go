package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ConsumerMetrics records inbox consumer activity.
type ConsumerMetrics struct {
	duration   *prometheus.HistogramVec
	processed  *prometheus.CounterVec
	duplicates *prometheus.CounterVec
	poison     *prometheus.CounterVec
	redelivery *prometheus.CounterVec
}

// NewConsumerMetrics registers the consumer metrics on the provided registerer.
func NewConsumerMetrics(reg prometheus.Registerer) *ConsumerMetrics {
	if reg == nil {
		return &ConsumerMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "inbox_handle_duration_seconds",
		Help:    "Duration of message handling in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"consumer"})
	processed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inbox_messages_processed_total",
		Help: "Messages whose effect was applied and committed.",
	}, []string{"consumer"})
	duplicates := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inbox_duplicates_total",
		Help: "Redelivered messages skipped by the inbox guard.",
	}, []string{"consumer"})
	poison := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inbox_poison_total",
		Help: "Undecodable messages acked without effect.",
	}, []string{"consumer"})
	redelivery := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inbox_redeliveries_requested_total",
		Help: "Messages nacked back to the broker after a transient failure.",
	}, []string{"consumer"})
	reg.MustRegister(duration, processed, duplicates, poison, redelivery)
	return &ConsumerMetrics{
		duration:   duration,
		processed:  processed,
		duplicates: duplicates,
		poison:     poison,
		redelivery: redelivery,
	}
}

// ObserveHandle records the duration of handling one message.
func (m *ConsumerMetrics) ObserveHandle(consumer string, duration time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(consumer)).Observe(duration.Seconds())
}

// IncProcessed increments the processed counter for the consumer.
func (m *ConsumerMetrics) IncProcessed(consumer string) {
	if m == nil || m.processed == nil {
		return
	}
	m.processed.WithLabelValues(normalizeLabel(consumer)).Inc()
}

// IncDuplicate increments the duplicate counter for the consumer.
func (m *ConsumerMetrics) IncDuplicate(consumer string) {
	if m == nil || m.duplicates == nil {
		return
	}
	m.duplicates.WithLabelValues(normalizeLabel(consumer)).Inc()
}

// IncPoison increments the poison counter for the consumer.
func (m *ConsumerMetrics) IncPoison(consumer string) {
	if m == nil || m.poison == nil {
		return
	}
	m.poison.WithLabelValues(normalizeLabel(consumer)).Inc()
}

// IncRedelivery increments the redelivery counter for the consumer.
func (m *ConsumerMetrics) IncRedelivery(consumer string) {
	if m == nil || m.redelivery == nil {
		return
	}
	m.redelivery.WithLabelValues(normalizeLabel(consumer)).Inc()
}

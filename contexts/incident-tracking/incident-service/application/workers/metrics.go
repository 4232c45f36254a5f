package workers

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ConsumerMetrics provides observability for the reported-incident fan-out
// consumer. All methods are nil-safe so tests can run without a registry.
type ConsumerMetrics struct {
	Processed     *prometheus.CounterVec
	DedupeHits    prometheus.Counter
	Retries       prometheus.Counter
	DeadLettered  prometheus.Counter
	FanOutLatency prometheus.Histogram
}

func NewConsumerMetrics() *ConsumerMetrics {
	return &ConsumerMetrics{
		Processed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "reefwatch_consumer_envelopes_total",
			Help: "Reported envelopes handled by outcome",
		}, []string{"outcome"}), // outcome: "applied", "duplicate", "dead_lettered"

		DedupeHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "reefwatch_consumer_dedupe_hits_total",
			Help: "Deliveries short-circuited by the process-local dedupe cache",
		}),

		Retries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "reefwatch_consumer_retries_total",
			Help: "Fan-out attempts retried after a transient failure",
		}),

		DeadLettered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "reefwatch_consumer_dead_letters_total",
			Help: "Envelopes parked in the dead-letter store after exhausting retries",
		}),

		FanOutLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "reefwatch_consumer_fanout_duration_seconds",
			Help:    "Duration of one persist+notify fan-out attempt",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
	}
}

func (m *ConsumerMetrics) IncProcessed(outcome string) {
	if m != nil {
		m.Processed.WithLabelValues(outcome).Inc()
	}
}

func (m *ConsumerMetrics) IncDedupeHit() {
	if m != nil {
		m.DedupeHits.Inc()
	}
}

func (m *ConsumerMetrics) IncRetry() {
	if m != nil {
		m.Retries.Inc()
	}
}

func (m *ConsumerMetrics) IncDeadLettered() {
	if m != nil {
		m.DeadLettered.Inc()
	}
}

func (m *ConsumerMetrics) ObserveFanOut(d time.Duration) {
	if m != nil {
		m.FanOutLatency.Observe(d.Seconds())
	}
}

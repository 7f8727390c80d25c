// Package stats records classification and routing outcomes for
// observability. Metrics are exported through Prometheus; a small
// in-memory snapshot is kept alongside for introspection and tests.
package stats

import (
	"sync"
	"time"

	"github.com/aretw0/parley/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Snapshot is a point-in-time copy of the tracked counters.
type Snapshot struct {
	ClassificationsByDomain map[string]int
	ClassificationsByMethod map[string]int
	Degraded                int
	TurnsByOutcome          map[string]int
}

// Tracker is a process-wide singleton shared read-mostly across
// concurrent turns.
type Tracker struct {
	classifications *prometheus.CounterVec
	degraded        prometheus.Counter
	confidence      prometheus.Histogram
	latency         *prometheus.HistogramVec
	turns           *prometheus.CounterVec
	steps           prometheus.Histogram

	mu       sync.Mutex
	byDomain map[string]int
	byMethod map[string]int
	degCount int
	outcomes map[string]int
}

// NewTracker creates a tracker registered on reg. A nil reg uses the
// default Prometheus registerer.
func NewTracker(reg prometheus.Registerer) *Tracker {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Tracker{
		classifications: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "parley",
			Name:      "classifications_total",
			Help:      "Classification attempts by resulting domain and method.",
		}, []string{"domain", "method"}),
		degraded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "parley",
			Name:      "classification_degraded_total",
			Help:      "Model classification failures that fell back to the keyword result.",
		}),
		confidence: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "parley",
			Name:      "classification_confidence",
			Help:      "Confidence distribution of classification results.",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		}),
		latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "parley",
			Name:      "classification_latency_seconds",
			Help:      "Classification latency by method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		turns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "parley",
			Name:      "turns_total",
			Help:      "Completed turns by outcome (terminate, escalate, timeout, error).",
		}, []string{"outcome"}),
		steps: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "parley",
			Name:      "turn_routing_steps",
			Help:      "Routing graph steps taken per turn.",
			Buckets:   []float64{1, 2, 3, 5, 8, 13, 21, 34, 50},
		}),
		byDomain: make(map[string]int),
		byMethod: make(map[string]int),
		outcomes: make(map[string]int),
	}
}

// RecordClassification records one classification attempt. degraded
// marks a model failure that fell back to the keyword result (recorded,
// non-fatal).
func (t *Tracker) RecordClassification(res domain.ClassificationResult, latency time.Duration, degraded bool) {
	t.classifications.WithLabelValues(res.Domain, res.Method).Inc()
	t.confidence.Observe(res.Confidence)
	t.latency.WithLabelValues(res.Method).Observe(latency.Seconds())
	if degraded {
		t.degraded.Inc()
	}

	t.mu.Lock()
	t.byDomain[res.Domain]++
	t.byMethod[res.Method]++
	if degraded {
		t.degCount++
	}
	t.mu.Unlock()
}

// RecordTurn records one completed turn with the number of routing steps
// it took.
func (t *Tracker) RecordTurn(outcome string, routingSteps int) {
	t.turns.WithLabelValues(outcome).Inc()
	t.steps.Observe(float64(routingSteps))

	t.mu.Lock()
	t.outcomes[outcome]++
	t.mu.Unlock()
}

// Snapshot returns a copy of the in-memory counters.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	snap := Snapshot{
		ClassificationsByDomain: make(map[string]int, len(t.byDomain)),
		ClassificationsByMethod: make(map[string]int, len(t.byMethod)),
		Degraded:                t.degCount,
		TurnsByOutcome:          make(map[string]int, len(t.outcomes)),
	}
	for k, v := range t.byDomain {
		snap.ClassificationsByDomain[k] = v
	}
	for k, v := range t.byMethod {
		snap.ClassificationsByMethod[k] = v
	}
	for k, v := range t.outcomes {
		snap.TurnsByOutcome[k] = v
	}
	return snap
}

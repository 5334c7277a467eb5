package progress

import "github.com/prometheus/client_golang/prometheus"

// Metrics is an Emitter that records the step-duration histogram and
// cache-hit/miss/spill counters named in the third-party stack mapping;
// it does not replace Emitter subscribers driving logs or the UI, it
// composes alongside them via Multi.
type Metrics struct {
	stepDuration *prometheus.HistogramVec
	cacheTotal   *prometheus.CounterVec
	spillTotal   *prometheus.CounterVec
}

// NewMetrics registers the engine's Prometheus collectors against reg.
// Pass prometheus.NewRegistry() in tests to avoid colliding with the
// default global registry across parallel test runs.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		stepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "powerquery",
			Subsystem: "engine",
			Name:      "step_duration_seconds",
			Help:      "Duration of a single pipeline step's execution.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		cacheTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "powerquery",
			Subsystem: "cache",
			Name:      "events_total",
			Help:      "Count of cache hit/miss/set events.",
		}, []string{"result"}),
		spillTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "powerquery",
			Subsystem: "streaming",
			Name:      "spill_total",
			Help:      "Count of external-memory spills by operator.",
		}, []string{"operator"}),
	}
	reg.MustRegister(m.stepDuration, m.cacheTotal, m.spillTotal)
	return m
}

func (m *Metrics) Emit(e Event) {
	switch e.Kind {
	case KindCacheHit:
		m.cacheTotal.WithLabelValues("hit").Inc()
	case KindCacheMiss:
		m.cacheTotal.WithLabelValues("miss").Inc()
	case KindCacheSet:
		m.cacheTotal.WithLabelValues("set").Inc()
	case KindStreamSpill:
		m.spillTotal.WithLabelValues(e.Operator).Inc()
	}
}

// ObserveStep records a completed step's duration in seconds under op.
func (m *Metrics) ObserveStep(op string, seconds float64) {
	m.stepDuration.WithLabelValues(op).Observe(seconds)
}

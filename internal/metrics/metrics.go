// Package metrics exposes the fixed set of Prometheus collectors the
// platform records against, following the teacher's fixed-struct style
// rather than a generic dynamic registry.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Recorder holds every metric the platform emits.
type Recorder struct {
	JobTransitionsTotal   *prometheus.CounterVec
	RouterCallsTotal      *prometheus.CounterVec
	RouterCostUSDTotal    *prometheus.CounterVec
	RateLimitRejected     *prometheus.CounterVec
	QueueDepth            *prometheus.GaugeVec
	SnapshotCacheHits     *prometheus.CounterVec
	IngestionDuration     *prometheus.HistogramVec
}

// New builds a Recorder and registers its collectors with registerer.
func New(registerer prometheus.Registerer) *Recorder {
	r := &Recorder{
		JobTransitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "courses_jobs_transitions_total",
			Help: "Total job state transitions by job type, source state, and destination state.",
		}, []string{"job_type", "from", "to"}),
		RouterCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "courses_router_calls_total",
			Help: "Total model router attempts by action, strategy, provider, model, and outcome.",
		}, []string{"action", "strategy", "provider", "model", "success"}),
		RouterCostUSDTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "courses_router_cost_usd_total",
			Help: "Total estimated LLM cost in USD by provider and model.",
		}, []string{"provider", "model"}),
		RateLimitRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "courses_ratelimit_rejected_total",
			Help: "Total rate limiter rejections by scope.",
		}, []string{"scope"}),
		QueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "courses_queue_depth",
			Help: "Current queue depth by job type and priority.",
		}, []string{"job_type", "priority"}),
		SnapshotCacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "courses_snapshot_cache_hits_total",
			Help: "Total snapshot cache lookups by outcome (hit or miss).",
		}, []string{"outcome"}),
		IngestionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "courses_ingestion_duration_seconds",
			Help: "Ingestion orchestrator step duration by source type.",
		}, []string{"source_type"}),
	}

	for _, collector := range []prometheus.Collector{
		r.JobTransitionsTotal, r.RouterCallsTotal, r.RouterCostUSDTotal,
		r.RateLimitRejected, r.QueueDepth, r.SnapshotCacheHits, r.IngestionDuration,
	} {
		if err := registerer.Register(collector); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errorsAs(err, &are) {
				panic(err)
			}
		}
	}

	return r
}

func errorsAs(err error, target *prometheus.AlreadyRegisteredError) bool {
	if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
		*target = are
		return true
	}
	return false
}

package tracing

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/sarchlab/testdata/generation"
	"github.com/sarchlab/testdata/hooking"
)

// MetricsHook exports generation counts, latencies and the number of
// generations in flight.
type MetricsHook struct {
	total    *prometheus.CounterVec
	duration prometheus.Histogram
	inFlight prometheus.Gauge
}

// NewMetricsHook registers the generation metrics into reg.
func NewMetricsHook(reg prometheus.Registerer) *MetricsHook {
	factory := promauto.With(reg)

	return &MetricsHook{
		total: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tdsim_generations_total",
			Help: "Total node generations by resulting status",
		}, []string{"status"}),

		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "tdsim_generation_duration_seconds",
			Help:    "Node generation duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
		}),

		inFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "tdsim_generations_in_flight",
			Help: "Node generations currently running",
		}),
	}
}

// Func updates the metrics.
func (h *MetricsHook) Func(ctx hooking.HookCtx) {
	switch ctx.Pos {
	case generation.HookPosBeforeGenerate:
		h.inFlight.Inc()
	case generation.HookPosAfterGenerate:
		h.inFlight.Dec()

		result, ok := ctx.Detail.(generation.Result)
		if !ok {
			return
		}

		h.total.WithLabelValues(result.Status.String()).Inc()
		h.duration.Observe(result.Duration.Seconds())
	}
}

package enrichment

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics records pipeline outcomes. Failures that are not surfaced to callers end up here
// and in the logs.
type Metrics struct {
	batchesTotal    prometheus.Counter
	batchDuration   prometheus.Histogram
	recordsTotal    *prometheus.CounterVec
	recordsDegraded prometheus.Counter
	lookupsTotal    *prometheus.CounterVec
	sinkWriteErrors *prometheus.CounterVec
}

// NewMetrics registers the pipeline collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		batchesTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "cdr_enrichment_batches_total",
			Help: "Batches handed to the enrichment pipeline",
		}),
		batchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "cdr_enrichment_batch_duration_seconds",
			Help:    "Wall time to attempt every record of a batch",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}),
		recordsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cdr_enrichment_records_total",
			Help: "Records attempted by the pipeline, by outcome",
		}, []string{"outcome"}),
		recordsDegraded: f.NewCounter(prometheus.CounterOpts{
			Name: "cdr_enrichment_records_degraded_total",
			Help: "Records persisted with at least one failed operator lookup",
		}),
		lookupsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cdr_operator_lookups_total",
			Help: "Operator lookups by call side and result",
		}, []string{"side", "result"}),
		sinkWriteErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cdr_sink_write_errors_total",
			Help: "Failed writes by sink",
		}, []string{"sink"}),
	}
}

func (m *Metrics) observeLookup(side string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.lookupsTotal.WithLabelValues(side, result).Inc()
}

func (m *Metrics) observeSinkError(sink string) {
	if m == nil {
		return
	}
	m.sinkWriteErrors.WithLabelValues(sink).Inc()
}

func (m *Metrics) observeBatch(s Summary, seconds float64) {
	if m == nil {
		return
	}
	m.batchesTotal.Inc()
	m.batchDuration.Observe(seconds)
	m.recordsTotal.WithLabelValues("succeeded").Add(float64(s.Succeeded))
	m.recordsTotal.WithLabelValues("failed").Add(float64(s.Failed))
	m.recordsDegraded.Add(float64(s.Degraded))
}

package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rotisserie/eris"

	"github.com/sells-group/fraudleak/internal/model"
)

// RiskScoreBuckets cover the reachable range of unclamped scores.
var RiskScoreBuckets = []float64{0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0, 1.3}

// Metrics holds the prometheus collectors for one CLI invocation. It uses its
// own registry so a textfile contains only batch metrics.
type Metrics struct {
	registry *prometheus.Registry

	scored      prometheus.Counter
	flagged     prometheus.Counter
	rejected    prometheus.Counter
	riskScore   prometheus.Histogram
	duration    prometheus.Gauge
	lastRun     prometheus.Gauge
	threshold   prometheus.Gauge
	datasetMean prometheus.Gauge
	datasetStd  prometheus.Gauge
}

// NewMetrics registers the batch collectors on a fresh registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	f := promauto.With(registry)

	return &Metrics{
		registry: registry,
		scored: f.NewCounter(prometheus.CounterOpts{
			Name: "fraudleak_transactions_scored_total",
			Help: "Transactions scored.",
		}),
		flagged: f.NewCounter(prometheus.CounterOpts{
			Name: "fraudleak_transactions_flagged_total",
			Help: "Transactions whose risk score reached the threshold.",
		}),
		rejected: f.NewCounter(prometheus.CounterOpts{
			Name: "fraudleak_transactions_rejected_total",
			Help: "Records excluded from scoring because they were invalid.",
		}),
		riskScore: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "fraudleak_risk_score",
			Help:    "Distribution of rounded risk scores.",
			Buckets: RiskScoreBuckets,
		}),
		duration: f.NewGauge(prometheus.GaugeOpts{
			Name: "fraudleak_batch_duration_seconds",
			Help: "Wall time of the last scoring batch.",
		}),
		lastRun: f.NewGauge(prometheus.GaugeOpts{
			Name: "fraudleak_last_run_timestamp_seconds",
			Help: "Unix time the last batch finished.",
		}),
		threshold: f.NewGauge(prometheus.GaugeOpts{
			Name: "fraudleak_threshold",
			Help: "Flagging threshold used by the last batch.",
		}),
		datasetMean: f.NewGauge(prometheus.GaugeOpts{
			Name: "fraudleak_amount_mean",
			Help: "Mean transaction amount of the last batch.",
		}),
		datasetStd: f.NewGauge(prometheus.GaugeOpts{
			Name: "fraudleak_amount_stddev",
			Help: "Sample standard deviation of amounts in the last batch.",
		}),
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveBatch records a finished batch.
func (m *Metrics) ObserveBatch(res *model.BatchResult, elapsed time.Duration) {
	m.scored.Add(float64(len(res.Assessments)))
	m.flagged.Add(float64(res.FlaggedCount()))
	m.rejected.Add(float64(len(res.Rejected)))
	for _, a := range res.Assessments {
		m.riskScore.Observe(a.RiskScore)
	}
	m.duration.Set(elapsed.Seconds())
	m.lastRun.SetToCurrentTime()
	m.threshold.Set(res.Threshold)
	m.datasetMean.Set(res.Stats.Mean)
	m.datasetStd.Set(res.Stats.StdDev)
}

// WriteTextfile writes the registry in the node-exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	return eris.Wrapf(prometheus.WriteToTextfile(path, m.registry), "monitoring: write textfile %s", path)
}

package slurm

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts dispatch outcomes. They are written in the
// node_exporter textfile format so cron-driven runs can be scraped.
type Metrics struct {
	reg        *prometheus.Registry
	dispatched *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	nodes      prometheus.Gauge
}

func NewMetrics() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		dispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "slurmconf",
			Name:      "dispatched_total",
			Help:      "Number of nodes dispatched to, by mode and result.",
		}, []string{"mode", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "slurmconf",
			Name:      "dispatch_duration_seconds",
			Help:      "Time taken by srun/sbatch for one node.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 4, 8),
		}, []string{"mode"}),
		nodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "slurmconf",
			Name:      "nodes",
			Help:      "Number of nodes selected for the last dispatch.",
		}),
	}
	m.reg.MustRegister(m.dispatched, m.duration, m.nodes)
	return m
}

func (m *Metrics) observe(mode Mode, res Result) {
	result := "success"
	switch {
	case res.Err == ErrSkipped:
		result = "skipped"
	case res.Err != nil:
		result = "failure"
	}
	m.dispatched.WithLabelValues(string(mode), result).Inc()
	if res.Err != ErrSkipped {
		m.duration.WithLabelValues(string(mode)).Observe(res.Duration.Seconds())
	}
}

// WriteTextfile writes the metrics atomically to path.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.reg)
}

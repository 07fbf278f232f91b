package daemon

import (
	"net/http"

	prom "github.com/prometheus/client_golang/prometheus"
	promcollect "github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metrics aggregates the daemon's Prometheus instrumentation.
type metrics struct {
	registry      *prom.Registry
	buildsTotal   prom.Counter
	buildsFailed  prom.Counter
	buildDuration prom.Histogram
	queueLength   prom.GaugeFunc
}

func newMetrics(queueLen func() float64) *metrics {
	m := &metrics{
		registry: prom.NewRegistry(),
		buildsTotal: prom.NewCounter(prom.CounterOpts{
			Namespace: "docbot", Name: "builds_total",
			Help: "Total builds executed by the daemon",
		}),
		buildsFailed: prom.NewCounter(prom.CounterOpts{
			Namespace: "docbot", Name: "builds_failed_total",
			Help: "Builds that ended in failure",
		}),
		buildDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: "docbot", Name: "build_duration_seconds",
			Help:    "Wall-clock duration of build runs",
			Buckets: prom.ExponentialBuckets(1, 2, 12),
		}),
		queueLength: prom.NewGaugeFunc(prom.GaugeOpts{
			Namespace: "docbot", Name: "queue_length",
			Help: "Builds waiting for the rebuild worker",
		}, queueLen),
	}
	m.registry.MustRegister(m.buildsTotal, m.buildsFailed, m.buildDuration, m.queueLength)
	m.registry.MustRegister(promcollect.NewGoCollector(), promcollect.NewProcessCollector(promcollect.ProcessCollectorOpts{}))
	return m
}

// handler returns the /metrics HTTP handler for this registry.
func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

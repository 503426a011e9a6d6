package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder holds the process metrics. A nil *Recorder discards everything.
type Recorder struct {
	registry        *prometheus.Registry
	loadsTotal      *prometheus.CounterVec
	unloadsTotal    prometheus.Counter
	loadedProviders prometheus.Gauge
	testCasesTotal  *prometheus.CounterVec
	testCaseSeconds prometheus.Histogram
}

func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		loadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "provhost_provider_loads_total",
				Help: "Provider load outcomes by result.",
			},
			[]string{"outcome"},
		),
		unloadsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "provhost_provider_unloads_total",
				Help: "Providers unloaded.",
			},
		),
		loadedProviders: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "provhost_loaded_providers",
				Help: "Providers currently loaded.",
			},
		),
		testCasesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "provhost_test_cases_total",
				Help: "Finished provider test cases by status.",
			},
			[]string{"status"},
		),
		testCaseSeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "provhost_test_case_duration_seconds",
				Help:    "Time taken by a single provider test case.",
				Buckets: prometheus.DefBuckets,
			},
		),
	}
	r.registry.MustRegister(
		r.loadsTotal,
		r.unloadsTotal,
		r.loadedProviders,
		r.testCasesTotal,
		r.testCaseSeconds,
	)
	return r
}

func (r *Recorder) LoadFinished(outcome string) {
	if r == nil {
		return
	}
	r.loadsTotal.WithLabelValues(outcome).Inc()
}

func (r *Recorder) Unloaded() {
	if r == nil {
		return
	}
	r.unloadsTotal.Inc()
}

func (r *Recorder) LoadedProviders(n int) {
	if r == nil {
		return
	}
	r.loadedProviders.Set(float64(n))
}

func (r *Recorder) TestCaseFinished(status string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.testCasesTotal.WithLabelValues(status).Inc()
	r.testCaseSeconds.Observe(elapsed.Seconds())
}

func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Gatherer exposes the registry for tests and alternative exporters.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}

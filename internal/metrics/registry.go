// Package metrics wraps prometheus.Registry with the lazy-factory pattern
// used throughout the project, and declares the exact member-side metric
// names that are part of netring's external contract.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace is the Prometheus namespace prefix for every netring metric.
const Namespace = "netring"

// DurationBuckets covers sub-millisecond checks up to multi-second
// bandwidth/traceroute operations.
var DurationBuckets = []float64{
	0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 10.0,
}

// Registry wraps a prometheus.Registry with name-keyed, lazily created
// collectors.
type Registry struct {
	reg *prometheus.Registry
	mu  sync.Mutex

	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec
}

// NewRegistry creates an empty metrics registry.
func NewRegistry() *Registry {
	return &Registry{
		reg:        prometheus.NewRegistry(),
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		histograms: make(map[string]*prometheus.HistogramVec),
	}
}

// Counter creates or retrieves a counter metric.
func (r *Registry) Counter(name, help string, labels ...string) *prometheus.CounterVec {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.counters[name]; ok {
		return c
	}
	c := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      name,
		Help:      help,
	}, labels)
	r.reg.MustRegister(c)
	r.counters[name] = c
	return c
}

// Gauge creates or retrieves a gauge metric.
func (r *Registry) Gauge(name, help string, labels ...string) *prometheus.GaugeVec {
	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok := r.gauges[name]; ok {
		return g
	}
	g := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      name,
		Help:      help,
	}, labels)
	r.reg.MustRegister(g)
	r.gauges[name] = g
	return g
}

// Histogram creates or retrieves a histogram metric.
func (r *Registry) Histogram(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.histograms[name]; ok {
		return h
	}
	h := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      name,
		Help:      help,
		Buckets:   buckets,
	}, labels)
	r.reg.MustRegister(h)
	r.histograms[name] = h
	return h
}

// Handler returns the HTTP handler serving this registry's exposition.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// MustRegister registers an additional collector, such as a custom
// prometheus.Collector.
func (r *Registry) MustRegister(c prometheus.Collector) {
	r.reg.MustRegister(c)
}

// Prometheus exposes the underlying *prometheus.Registry for callers that
// need testutil.CollectAndCompare or similar.
func (r *Registry) Prometheus() *prometheus.Registry {
	return r.reg
}

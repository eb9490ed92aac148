package telemetry

import (
	"context"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics implements aqm.Metrics on a private Prometheus registry and serves
// it in the text exposition format.
type Metrics struct {
	namespace string
	registry  *prometheus.Registry
	handler   http.Handler

	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec

	mu       sync.Mutex
	counters map[string]*prometheus.CounterVec
}

// NewMetrics registers the HTTP collectors plus the Go runtime and process
// collectors under namespace.
func NewMetrics(namespace string) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		namespace: namespace,
		registry:  registry,
		counters:  map[string]*prometheus.CounterVec{},
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by route, method and status.",
		}, []string{"path", "method", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"path", "method"}),
	}
	registry.MustRegister(m.requests, m.latency)
	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
	return m
}

// ObserveHTTPRequest records one served request.
func (m *Metrics) ObserveHTTPRequest(path, method string, status int, duration time.Duration) {
	m.requests.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
	m.latency.WithLabelValues(path, method).Observe(duration.Seconds())
}

// Counter adds value to the counter called name, creating it on first use.
// The label set of a counter is fixed by its first call.
func (m *Metrics) Counter(_ context.Context, name string, value float64, labels map[string]string) {
	if value < 0 {
		return
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	vec, err := m.counterVec(name, keys)
	if err != nil {
		return
	}
	counter, err := vec.GetMetricWith(prometheus.Labels(labels))
	if err != nil {
		return
	}
	counter.Add(value)
}

func (m *Metrics) counterVec(name string, keys []string) (*prometheus.CounterVec, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if vec, ok := m.counters[name]; ok {
		return vec, nil
	}
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      sanitizeName(name),
		Help:      "Application counter " + name + ".",
	}, keys)
	if err := m.registry.Register(vec); err != nil {
		return nil, err
	}
	m.counters[name] = vec
	return vec, nil
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ServeHTTP serves the registry, which lets aqm mount it at /metrics.
func (m *Metrics) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.handler.ServeHTTP(w, r)
}

func sanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == ':':
			return r
		default:
			return '_'
		}
	}, name)
}

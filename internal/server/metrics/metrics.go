// Package metrics exposes Prometheus counters for tenant resolution, auth
// events and HTTP traffic.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "saasgate"

// Registry owns a private prometheus.Registry. It implements
// tenancy.Observer and services.Recorder.
type Registry struct {
	reg *prometheus.Registry

	resolutions  *prometheus.CounterVec
	cacheLookups *prometheus.CounterVec
	authEvents   *prometheus.CounterVec
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tenant",
			Name:      "resolutions_total",
			Help:      "Tenant resolutions by outcome.",
		}, []string{"outcome"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tenant",
			Name:      "cache_lookups_total",
			Help:      "Tenant cache lookups by result.",
		}, []string{"result"}),
		authEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "events_total",
			Help:      "Authentication audit events.",
		}, []string{"event"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"method", "route", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.resolutions,
		r.cacheLookups,
		r.authEvents,
		r.httpRequests,
		r.httpDuration,
	)
	return r
}

func (r *Registry) CacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cacheLookups.WithLabelValues(result).Inc()
}

func (r *Registry) Resolved(outcome string) {
	r.resolutions.WithLabelValues(outcome).Inc()
}

func (r *Registry) AuthEvent(name string) {
	r.authEvents.WithLabelValues(name).Inc()
}

// ObserveHTTP records one request. route is the route pattern, not the raw
// path, to keep label cardinality bounded.
func (r *Registry) ObserveHTTP(method, route string, code int, d time.Duration) {
	r.httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	r.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

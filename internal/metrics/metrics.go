package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "signagehub"

// Collector holds every Prometheus metric the service exports.
type Collector struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	verifierRejections *prometheus.CounterVec
	registrations      *prometheus.CounterVec
	activations        prometheus.Counter
	streamSubscribers  prometheus.Gauge
	manifestBuild      *prometheus.HistogramVec
	sweptRecords       *prometheus.CounterVec
	rateLimited        prometheus.Counter
}

// NewCollector creates a collector on its own registry so tests can build as many as they like.
func NewCollector() *Collector {
	c := &Collector{registry: prometheus.NewRegistry()}

	c.httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)
	c.httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	c.verifierRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signed_request_rejections_total",
			Help:      "Signed display requests rejected, by internal reason",
		},
		[]string{"reason"},
	)
	c.registrations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registrations_total",
			Help:      "Display registration attempts by outcome",
		},
		[]string{"outcome"},
	)
	c.activations = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "activations_total",
		Help:      "Displays moved from registered to active",
	})
	c.streamSubscribers = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "stream_subscribers",
		Help:      "Live-update subscriptions currently open",
	})
	c.manifestBuild = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "manifest_build_duration_seconds",
			Help:      "Time spent building a display manifest",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"result"},
	)
	c.sweptRecords = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "swept_records_total",
			Help:      "Expired records removed by the sweeper",
		},
		[]string{"kind"},
	)
	c.rateLimited = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rate_limited_requests_total",
		Help:      "Bootstrap requests refused by the rate limiter",
	})

	c.registry.MustRegister(
		c.httpRequestsTotal,
		c.httpRequestDuration,
		c.verifierRejections,
		c.registrations,
		c.activations,
		c.streamSubscribers,
		c.manifestBuild,
		c.sweptRecords,
		c.rateLimited,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return c
}

// Registry exposes the underlying registry, mainly for tests.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

func (c *Collector) VerifierRejected(reason string) {
	c.verifierRejections.WithLabelValues(reason).Inc()
}

func (c *Collector) RegistrationResult(outcome string) {
	c.registrations.WithLabelValues(outcome).Inc()
}

func (c *Collector) DisplayActivated() { c.activations.Inc() }

func (c *Collector) SubscriberAdded() { c.streamSubscribers.Inc() }

func (c *Collector) SubscriberRemoved() { c.streamSubscribers.Dec() }

func (c *Collector) ObserveManifestBuild(d time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.manifestBuild.WithLabelValues(result).Observe(d.Seconds())
}

func (c *Collector) Swept(kind string, n int64) {
	if n > 0 {
		c.sweptRecords.WithLabelValues(kind).Add(float64(n))
	}
}

func (c *Collector) RateLimited() { c.rateLimited.Inc() }

// Middleware records request count and latency labelled by chi route pattern.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unknown"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		c.httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		c.httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

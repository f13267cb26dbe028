package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Business metrics
	ListingsCreated       prometheus.Counter
	ReviewsCreated        prometheus.Counter
	ModerationTransitions *prometheus.CounterVec
	LikeToggles           *prometheus.CounterVec
	BulkItems             *prometheus.CounterVec

	// Cache metrics
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter
}

var metrics *Metrics

// Init initializes all Prometheus metrics
func Init() *Metrics {
	if metrics != nil {
		return metrics
	}

	metrics = &Metrics{
		// HTTP metrics
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
		),

		// Business metrics
		ListingsCreated: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "listings_created_total",
				Help: "Total number of listings submitted",
			},
		),
		ReviewsCreated: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "reviews_created_total",
				Help: "Total number of reviews submitted",
			},
		),
		ModerationTransitions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "moderation_transitions_total",
				Help: "Total number of moderation status transitions",
			},
			[]string{"entity", "target"},
		),
		LikeToggles: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "like_toggles_total",
				Help: "Total number of like toggles",
			},
			[]string{"result"},
		),
		BulkItems: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bulk_transition_items_total",
				Help: "Per-item outcomes of bulk moderation transitions",
			},
			[]string{"outcome"},
		),

		// Cache metrics
		CacheHits: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "listing_cache_hits_total",
				Help: "Total number of listing cache hits",
			},
		),
		CacheMisses: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "listing_cache_misses_total",
				Help: "Total number of listing cache misses",
			},
		),
	}

	return metrics
}

// Get returns the global metrics instance
func Get() *Metrics {
	if metrics == nil {
		return Init()
	}
	return metrics
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// GinHandler returns a Gin-compatible handler for Prometheus metrics
func GinHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// MetricsMiddleware is a Gin middleware for collecting HTTP metrics
func MetricsMiddleware() gin.HandlerFunc {
	m := Get()
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		method := c.Request.Method

		// Track in-flight requests
		m.HTTPRequestsInFlight.Inc()
		defer m.HTTPRequestsInFlight.Dec()

		// Process request
		c.Next()

		// Record metrics
		status := strconv.Itoa(c.Writer.Status())
		duration := time.Since(start).Seconds()

		m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
		m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// ListingsCreated returns the listing creation counter
func ListingsCreated() prometheus.Counter {
	return Get().ListingsCreated
}

// ReviewsCreated returns the review creation counter
func ReviewsCreated() prometheus.Counter {
	return Get().ReviewsCreated
}

// ModerationTransitions returns the moderation transition counter
func ModerationTransitions() *prometheus.CounterVec {
	return Get().ModerationTransitions
}

// LikeToggles returns the like toggle counter
func LikeToggles() *prometheus.CounterVec {
	return Get().LikeToggles
}

// BulkItems returns the bulk transition per-item counter
func BulkItems() *prometheus.CounterVec {
	return Get().BulkItems
}

// CacheHits returns the cache hit counter
func CacheHits() prometheus.Counter {
	return Get().CacheHits
}

// CacheMisses returns the cache miss counter
func CacheMisses() prometheus.Counter {
	return Get().CacheMisses
}

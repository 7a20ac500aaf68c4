// Package metrics exposes Prometheus collectors for the version radar service.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Notification outcome labels.
const (
	NotificationSent   = "sent"
	NotificationFailed = "failed"
)

var (
	scrapeCyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "versionradar_scrape_cycles_total",
			Help: "Total number of scrape cycles, labeled by final state.",
		},
		[]string{"state"},
	)

	scrapeCycleDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "versionradar_scrape_cycle_duration_seconds",
			Help:    "Histogram of scrape cycle durations.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
	)

	fetchedBytesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "versionradar_fetched_bytes_total",
			Help: "Total number of bytes fetched, labeled by site.",
		},
		[]string{"site"},
	)

	versionChangesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "versionradar_version_changes_total",
			Help: "Total number of detected version changes, labeled by software.",
		},
		[]string{"software"},
	)

	notificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "versionradar_notifications_total",
			Help: "Total number of notification attempts, labeled by outcome.",
		},
		[]string{"status"},
	)

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests, labeled by method and code.",
		},
		[]string{"method", "code"},
	)

	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, labeled by method and route.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"method", "route"},
	)

	once sync.Once
)

// Init registers the collectors with the default Prometheus registry.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		prometheus.MustRegister(
			scrapeCyclesTotal,
			scrapeCycleDurationSeconds,
			fetchedBytesTotal,
			versionChangesTotal,
			notificationsTotal,
			httpRequestsTotal,
			httpRequestDurationSeconds,
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// ObserveScrapeCycle records the final state and duration of a scrape cycle.
func ObserveScrapeCycle(state string, duration time.Duration) {
	scrapeCyclesTotal.WithLabelValues(state).Inc()
	scrapeCycleDurationSeconds.Observe(duration.Seconds())
}

// ObserveFetch adds the fetched body size for the page's site.
func ObserveFetch(pageURL string, bytesFetched int) {
	if bytesFetched <= 0 {
		return
	}
	fetchedBytesTotal.WithLabelValues(SanitizeSite(pageURL)).Add(float64(bytesFetched))
}

// ObserveVersionChange counts a stored version change.
func ObserveVersionChange(software string) {
	versionChangesTotal.WithLabelValues(software).Inc()
}

// ObserveNotification counts a notification attempt by outcome.
func ObserveNotification(status string) {
	notificationsTotal.WithLabelValues(status).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Middleware is a chi middleware that records HTTP request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)

		routePattern := ""
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			routePattern = rctx.RoutePattern()
		}
		if routePattern == "" {
			routePattern = "unknown"
		}
		ObserveHTTPRequest(r.Method, routePattern, ww.status, time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"PaperScanner/internal/domain"
	"PaperScanner/internal/ports"
)

const namespace = "paperscanner"

// Metrics owns a private registry with pipeline and HTTP collectors.
type Metrics struct {
	registry *prometheus.Registry

	runsTotal        *prometheus.CounterVec
	runDuration      prometheus.Histogram
	papersTotal      *prometheus.CounterVec
	categoryFailures *prometheus.CounterVec
	lastRunPapers    prometheus.Gauge

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

var _ ports.RunObserver = (*Metrics)(nil)

func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Completed refresh runs by outcome.",
		}, []string{"status"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "run_duration_seconds",
			Help:      "Refresh run duration in seconds.",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
		}),
		papersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "papers_total",
			Help:      "Papers seen by refresh runs, by classification outcome.",
		}, []string{"outcome"}),
		categoryFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "category_failures_total",
			Help:      "Failed upstream category fetches.",
		}, []string{"category"}),
		lastRunPapers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "last_run_stored_papers",
			Help:      "Papers stored by the most recent run.",
		}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	registry.MustRegister(
		m.runsTotal,
		m.runDuration,
		m.papersTotal,
		m.categoryFailures,
		m.lastRunPapers,
		m.requestTotal,
		m.requestDuration,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRun records one finished refresh. Runs with failed categories count as "partial".
func (m *Metrics) ObserveRun(stats domain.RunStats, duration time.Duration) {
	status := "success"
	if len(stats.FailedCategories) > 0 {
		status = "partial"
	}
	m.runsTotal.WithLabelValues(status).Inc()
	m.runDuration.Observe(duration.Seconds())

	m.papersTotal.WithLabelValues("high").Add(float64(stats.HighConfidence))
	m.papersTotal.WithLabelValues("medium").Add(float64(stats.MediumConfidence))
	m.papersTotal.WithLabelValues("low").Add(float64(stats.LowConfidence))
	m.papersTotal.WithLabelValues("unmatched").Add(float64(stats.Unmatched))
	m.papersTotal.WithLabelValues("duplicate").Add(float64(stats.Duplicates))
	m.papersTotal.WithLabelValues("skipped").Add(float64(stats.Skipped))
	m.lastRunPapers.Set(float64(stats.Stored))
}

// RunFailed records a run aborted by a store error.
func (m *Metrics) RunFailed(duration time.Duration) {
	m.runsTotal.WithLabelValues("error").Inc()
	m.runDuration.Observe(duration.Seconds())
}

func (m *Metrics) CategoryFailed(category string) {
	m.categoryFailures.WithLabelValues(category).Inc()
}

// Middleware counts requests by matched route so path parameters do not explode cardinality.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.requestTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.requestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/civic-issue-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation. Every method is safe on a nil receiver.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	cacheLatency    prometheus.Histogram

	issuesCreated   *prometheus.CounterVec
	statusChanges   *prometheus.CounterVec
	escalations     *prometheus.CounterVec
	notifications   *prometheus.CounterVec
	sweepDuration   prometheus.Histogram
	overdueMarked   prometheus.Counter
	warningsRaised  prometheus.Counter
	unassignedTotal prometheus.Counter
	classifications *prometheus.CounterVec
}

// NewMetricsService registers the HTTP, cache and issue lifecycle collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	m := &MetricsService{
		registry: registry,
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total cache hits",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total cache misses",
		}),
		cacheLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cache_latency_seconds",
			Help:    "Latency for cache lookups",
			Buckets: prometheus.DefBuckets,
		}),
		issuesCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "civic_issues_created_total",
			Help: "Issues reported, by category",
		}, []string{"category"}),
		statusChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "civic_issue_status_changes_total",
			Help: "Issue status transitions, by target status",
		}, []string{"status"}),
		escalations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "civic_issue_escalations_total",
			Help: "Priority escalations caused by upvotes, by new priority",
		}, []string{"priority"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "civic_notifications_total",
			Help: "Notifications stored, by type",
		}, []string{"type"}),
		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "civic_sla_sweep_duration_seconds",
			Help:    "Duration of SLA monitor sweeps",
			Buckets: prometheus.DefBuckets,
		}),
		overdueMarked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "civic_sla_overdue_total",
			Help: "Issues flagged overdue by the SLA monitor",
		}),
		warningsRaised: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "civic_sla_warnings_total",
			Help: "SLA deadline warnings raised",
		}),
		unassignedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "civic_issues_unassigned_total",
			Help: "Issues created with no staff available in their department",
		}),
		classifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "civic_classifications_total",
			Help: "Evidence classification attempts, by outcome",
		}, []string{"outcome"}),
	}

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(
		m.requestDuration, m.requestTotal, m.cacheHits, m.cacheMisses, m.cacheLatency,
		m.issuesCreated, m.statusChanges, m.escalations, m.notifications,
		m.sweepDuration, m.overdueMarked, m.warningsRaised, m.unassignedTotal, m.classifications,
		goroutines,
	)
	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registry returns the underlying registry.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records a cache lookup outcome.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		return
	}
	m.cacheMisses.Inc()
}

// RecordIssueCreated counts a new issue and whether it went unassigned.
func (m *MetricsService) RecordIssueCreated(category models.IssueCategory, assigned bool) {
	if m == nil {
		return
	}
	m.issuesCreated.WithLabelValues(string(category)).Inc()
	if !assigned {
		m.unassignedTotal.Inc()
	}
}

// RecordStatusChange counts a status transition.
func (m *MetricsService) RecordStatusChange(status models.IssueStatus) {
	if m == nil {
		return
	}
	m.statusChanges.WithLabelValues(string(status)).Inc()
}

// RecordEscalation counts an upward priority change.
func (m *MetricsService) RecordEscalation(priority models.IssuePriority) {
	if m == nil {
		return
	}
	m.escalations.WithLabelValues(string(priority)).Inc()
}

// RecordNotification counts a stored notification.
func (m *MetricsService) RecordNotification(kind models.NotificationType) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(string(kind)).Inc()
}

// ObserveSweep records the outcome of one SLA monitor sweep.
func (m *MetricsService) ObserveSweep(duration time.Duration, overdue, warnings int) {
	if m == nil {
		return
	}
	m.sweepDuration.Observe(duration.Seconds())
	m.overdueMarked.Add(float64(overdue))
	m.warningsRaised.Add(float64(warnings))
}

// RecordClassification counts a classification attempt by outcome (ok, failed, disabled).
func (m *MetricsService) RecordClassification(outcome string) {
	if m == nil {
		return
	}
	m.classifications.WithLabelValues(outcome).Inc()
}

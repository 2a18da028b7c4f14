// Package telemetry provides logging setup and Prometheus metrics for the
// community platform.
//
// All metrics are registered against the default registry and exposed on the
// side-channel HTTP server started by main.go:
//
//	GET http://<host>:<CMH_TELEMETRY_METRICS_PROMETHEUS_PORT>/metrics
//
// HTTP metrics use c.FullPath() (route template such as /app/posts/:postId)
// rather than the raw URL to keep label cardinality bounded.
package telemetry

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics, labelled by method, route template, and status code.
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed, by method, route template, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, by method and route template.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)
)

// Membership and moderation metrics.
//
// ApplicationDecisionsTotal counts reviewer decisions by outcome
// (approved, rejected, revoked).
//
// ModerationActionsTotal counts mute/unmute actions by action name.
var (
	ApplicationDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "community_application_decisions_total",
			Help: "Total number of membership application decisions, by outcome.",
		},
		[]string{"outcome"},
	)

	ModerationActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "community_moderation_actions_total",
			Help: "Total number of moderation actions, by action.",
		},
		[]string{"action"},
	)
)

// Scheduler metrics, recorded by the background scheduler.
//
// SchedulerTicksTotal is labelled by result ("ok", "error", "skipped"); a tick is
// skipped when the previous run is still in progress.
var (
	SchedulerTicksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_ticks_total",
			Help: "Total number of scheduler ticks, by result.",
		},
		[]string{"result"},
	)

	ScheduledPostsPublishedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scheduled_posts_published_total",
			Help: "Total number of scheduled posts published by the scheduler.",
		},
	)

	ExportJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "export_jobs_total",
			Help: "Total number of export jobs processed, by final status.",
		},
		[]string{"status"},
	)

	ExportJobDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "export_job_duration_seconds",
			Help:    "Duration of a single community export job.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// NotificationEmailsSentTotal is incremented once per decision email delivered.
var NotificationEmailsSentTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "notification_emails_sent_total",
		Help: "Total number of notification emails successfully sent.",
	},
)

// DBOpenConnections tracks open connections in the sql.DB pool, sampled every
// 30 seconds by StartDBStatsCollector.
var DBOpenConnections = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "db_open_connections",
		Help: "Current number of open database connections in the pool.",
	},
)

// StartDBStatsCollector samples pool statistics every 30 seconds until the
// database becomes unreachable, which happens on shutdown.
func StartDBStatsCollector(db *sql.DB) {
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			if err := db.Ping(); err != nil {
				slog.Warn("db stats collector: database unreachable, stopping collector", "error", err)
				return
			}
			DBOpenConnections.Set(float64(db.Stats().OpenConnections))
		}
	}()
}

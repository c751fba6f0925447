package handlers

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mni-microservices/project-service/internal/models"
	"github.com/mni-microservices/project-service/internal/services"
	"gorm.io/gorm"
)

var startTime = time.Now()

// MetricsHandler exposes runtime, database and saga metrics in the Prometheus
// text format.
type MetricsHandler struct {
	db      *gorm.DB
	queue   services.TaskQueue
	saga    *services.SagaService
	metrics *services.Metrics
}

func NewMetricsHandler(db *gorm.DB, queue services.TaskQueue, saga *services.SagaService, metrics *services.Metrics) *MetricsHandler {
	return &MetricsHandler{db: db, queue: queue, saga: saga, metrics: metrics}
}

// Metrics returns Prometheus-compatible text format metrics.
// GET /metrics
func (h *MetricsHandler) Metrics(c *gin.Context) {
	var b strings.Builder

	// -- Runtime metrics --
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	writeGauge(&b, "project_service_uptime_seconds", "Time since server start in seconds", time.Since(startTime).Seconds())
	writeGauge(&b, "project_service_goroutines", "Number of active goroutines", float64(runtime.NumGoroutine()))
	writeGauge(&b, "project_service_memory_alloc_bytes", "Current heap allocation in bytes", float64(m.Alloc))
	writeGauge(&b, "project_service_gc_runs_total", "Total number of GC runs", float64(m.NumGC))

	// -- Database metrics --
	if h.db != nil {
		if sqlDB, err := h.db.DB(); err == nil {
			stats := sqlDB.Stats()
			writeGauge(&b, "project_service_db_open_connections", "Number of open DB connections", float64(stats.OpenConnections))
			writeGauge(&b, "project_service_db_in_use_connections", "Number of in-use DB connections", float64(stats.InUse))
		}

		var projectCount, memberCount, userCount int64
		h.db.Model(&models.Project{}).Count(&projectCount)
		h.db.Model(&models.Member{}).Count(&memberCount)
		h.db.Model(&models.UserID{}).Count(&userCount)
		writeGauge(&b, "project_service_projects_total", "Number of stored projects", float64(projectCount))
		writeGauge(&b, "project_service_members_total", "Number of stored memberships", float64(memberCount))
		writeGauge(&b, "project_service_replicated_users", "Number of users in the local replica", float64(userCount))
	}

	// -- Queue metrics --
	queueAsync := 0.0
	if h.queue != nil && h.queue.IsAsync() {
		queueAsync = 1.0
	}
	writeGauge(&b, "project_service_queue_async_enabled", "Whether async queue (Redis) is enabled (1=yes, 0=no)", queueAsync)

	// -- Saga metrics --
	if h.saga != nil {
		writeGauge(&b, "project_service_sagas_in_flight", "Project deletion sagas awaiting the issue service", float64(h.saga.InFlight()))
	}
	if h.metrics != nil {
		s := h.metrics.Snapshot()
		writeCounter(&b, "project_service_sagas_started_total", "Project deletion sagas started", s.SagasStarted)
		writeCounter(&b, "project_service_sagas_completed_total", "Project deletion sagas completed", s.SagasCompleted)
		writeCounter(&b, "project_service_sagas_compensated_total", "Project deletion sagas rolled back", s.SagasCompensated)
		writeCounter(&b, "project_service_sagas_timed_out_total", "Project deletion sagas that hit their deadline", s.SagasTimedOut)
		writeCounter(&b, "project_service_compensation_failures_total", "Failed attempts to restore a deleted project", s.CompensationFailures)
		writeCounter(&b, "project_service_saga_dead_letters_total", "Saga events for unknown projects", s.DeadLetters)
		writeCounter(&b, "project_service_saga_foreign_events_total", "Saga events for sagas owned by another instance", s.ForeignSagaEvents)
		writeCounter(&b, "project_service_publish_failures_total", "Events that could not be published", s.PublishFailures)
	}

	c.Data(200, "text/plain; version=0.0.4; charset=utf-8", []byte(b.String()))
}

func writeGauge(b *strings.Builder, name, help string, value float64) {
	fmt.Fprintf(b, "# HELP %s %s\n", name, help)
	fmt.Fprintf(b, "# TYPE %s gauge\n", name)
	fmt.Fprintf(b, "%s %g\n\n", name, value)
}

func writeCounter(b *strings.Builder, name, help string, value int64) {
	fmt.Fprintf(b, "# HELP %s %s\n", name, help)
	fmt.Fprintf(b, "# TYPE %s counter\n", name)
	fmt.Fprintf(b, "%s %d\n\n", name, value)
}

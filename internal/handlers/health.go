package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mni-microservices/project-service/internal/services"
	"gorm.io/gorm"
)

// HealthHandler reports the state of the database, the event queue and the
// deletion sagas.
type HealthHandler struct {
	db    *gorm.DB
	queue services.TaskQueue
	saga  *services.SagaService
	hub   *services.SagaEventHub
}

func NewHealthHandler(db *gorm.DB, queue services.TaskQueue, saga *services.SagaService, hub *services.SagaEventHub) *HealthHandler {
	return &HealthHandler{db: db, queue: queue, saga: saga, hub: hub}
}

// CheckHealth returns the health status of all subsystems.
// GET /health
func (h *HealthHandler) CheckHealth(c *gin.Context) {
	overall := "healthy"
	status := http.StatusOK

	dbStatus := "ok"
	if h.db == nil {
		dbStatus = "error: not initialized"
	} else if sqlDB, err := h.db.DB(); err != nil {
		dbStatus = "error: " + err.Error()
	} else if err := sqlDB.PingContext(c.Request.Context()); err != nil {
		dbStatus = "error: " + err.Error()
	}
	if dbStatus != "ok" {
		overall = "unhealthy"
		status = http.StatusServiceUnavailable
	}

	queueMode := "sync"
	if h.queue != nil && h.queue.IsAsync() {
		queueMode = "async (Redis)"
	}

	inFlight := 0
	if h.saga != nil {
		inFlight = h.saga.InFlight()
	}

	sseClients := 0
	if h.hub != nil {
		sseClients = h.hub.ClientCount()
	}

	c.JSON(status, gin.H{
		"status":  overall,
		"service": "project-service",
		"components": gin.H{
			"database":        dbStatus,
			"queue_mode":      queueMode,
			"sagas_in_flight": inFlight,
			"sse_clients":     sseClients,
		},
	})
}

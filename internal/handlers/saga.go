package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/mni-microservices/project-service/internal/services"
	"github.com/mni-microservices/project-service/pkg/response"
)

type SagaHandler struct {
	sagaService *services.SagaService
}

func NewSagaHandler(sagaService *services.SagaService) *SagaHandler {
	return &SagaHandler{sagaService: sagaService}
}

// List returns the project deletion sagas still in flight
// GET /api/admin/sagas
func (h *SagaHandler) List(c *gin.Context) {
	sagas := h.sagaService.List()
	response.Success(c, gin.H{
		"total": len(sagas),
		"items": sagas,
	})
}

package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mni-microservices/project-service/internal/models"
	"github.com/mni-microservices/project-service/internal/services"
	"github.com/mni-microservices/project-service/internal/utils"
	"github.com/mni-microservices/project-service/pkg/logger"
	"github.com/mni-microservices/project-service/pkg/response"
)

// SSEHandler streams saga progress to admin dashboards
type SSEHandler struct {
	hub *services.SagaEventHub
}

func NewSSEHandler(hub *services.SagaEventHub) *SSEHandler {
	return &SSEHandler{hub: hub}
}

// StreamSagaEvents handles SSE connections for saga progress. EventSource
// cannot set headers, so the token may also come as ?token=.
// GET /api/events/sagas
func (h *SSEHandler) StreamSagaEvents(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		authHeader := c.GetHeader("Authorization")
		if strings.HasPrefix(authHeader, "Bearer ") {
			token = strings.TrimPrefix(authHeader, "Bearer ")
		}
	}

	if token == "" {
		response.Unauthorized(c, "authorization required")
		return
	}

	claims, err := utils.ParseToken(token)
	if err != nil {
		response.Unauthorized(c, "invalid or expired token")
		return
	}
	if claims.Role != models.GlobalRoleAdmin {
		response.Forbidden(c, "admin access required")
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	clientID := uuid.New().String()

	progress := h.hub.Subscribe(clientID)
	defer h.hub.Unsubscribe(clientID)

	logger.Info().Str("client_id", clientID).Int("total", h.hub.ClientCount()).Msg("SSE client connected")

	c.Stream(func(w io.Writer) bool {
		select {
		case event, ok := <-progress:
			if !ok {
				return false
			}
			data, err := json.Marshal(event)
			if err != nil {
				logger.Error().Err(err).Msg("SSE marshal error")
				return true
			}
			fmt.Fprintf(w, "event: saga\ndata: %s\n\n", data)
			c.Writer.Flush()
			return true
		case <-c.Request.Context().Done():
			logger.Info().Str("client_id", clientID).Msg("SSE client disconnected")
			return false
		}
	})
}

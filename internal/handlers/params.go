package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mni-microservices/project-service/pkg/response"
)

// uuidParam parses a path parameter and writes a 400 when it is malformed.
func uuidParam(c *gin.Context, name, label string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.BadRequest(c, "invalid "+label)
		return uuid.Nil, false
	}
	return id, true
}

func projectAndUserParams(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	projectID, ok := uuidParam(c, "id", "project id")
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	userID, ok := uuidParam(c, "userId", "user id")
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	return projectID, userID, true
}

package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/mni-microservices/project-service/internal/middleware"
	"github.com/mni-microservices/project-service/internal/services"
	"github.com/mni-microservices/project-service/pkg/response"
)

type ProjectHandler struct {
	projectService *services.ProjectService
}

func NewProjectHandler(projectService *services.ProjectService) *ProjectHandler {
	return &ProjectHandler{projectService: projectService}
}

// List returns all projects
// GET /api/projects
func (h *ProjectHandler) List(c *gin.Context) {
	projects, err := h.projectService.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, projects)
}

// GetByID returns a project by ID
// GET /api/projects/:id
func (h *ProjectHandler) GetByID(c *gin.Context) {
	id, ok := uuidParam(c, "id", "project id")
	if !ok {
		return
	}

	project, err := h.projectService.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, project)
}

// ListOfUser returns the projects the user is a member of
// GET /api/users/:userId/projects
func (h *ProjectHandler) ListOfUser(c *gin.Context) {
	userID, ok := uuidParam(c, "userId", "user id")
	if !ok {
		return
	}

	projects, err := h.projectService.ListOfUser(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, projects)
}

// Create creates a new project owned by the caller
// POST /api/projects
func (h *ProjectHandler) Create(c *gin.Context) {
	var req services.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	project, err := h.projectService.Create(c.Request.Context(), req.Name, middleware.GetUser(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, project)
}

// Rename changes a project's name
// PUT /api/projects/:id
func (h *ProjectHandler) Rename(c *gin.Context) {
	id, ok := uuidParam(c, "id", "project id")
	if !ok {
		return
	}

	var req services.RenameProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	project, err := h.projectService.Rename(c.Request.Context(), id, middleware.GetUser(c), req.Name)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, project)
}

// Delete removes a project and starts the deletion saga
// DELETE /api/projects/:id
func (h *ProjectHandler) Delete(c *gin.Context) {
	id, ok := uuidParam(c, "id", "project id")
	if !ok {
		return
	}

	if err := h.projectService.Delete(c.Request.Context(), id, middleware.GetUser(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, gin.H{"id": id})
}

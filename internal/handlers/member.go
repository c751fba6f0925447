package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mni-microservices/project-service/internal/middleware"
	"github.com/mni-microservices/project-service/internal/services"
	"github.com/mni-microservices/project-service/pkg/response"
)

type MemberHandler struct {
	memberService *services.MemberService
}

func NewMemberHandler(memberService *services.MemberService) *MemberHandler {
	return &MemberHandler{memberService: memberService}
}

// List returns the members of a project
// GET /api/projects/:id/members
func (h *MemberHandler) List(c *gin.Context) {
	projectID, ok := uuidParam(c, "id", "project id")
	if !ok {
		return
	}

	members, err := h.memberService.List(c.Request.Context(), projectID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, members)
}

// Get returns one membership
// GET /api/projects/:id/members/:userId
func (h *MemberHandler) Get(c *gin.Context) {
	projectID, userID, ok := projectAndUserParams(c)
	if !ok {
		return
	}

	member, err := h.memberService.Get(c.Request.Context(), projectID, userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, member)
}

// Exists reports whether the user belongs to the project. Other services call
// it without a token.
// GET /api/projects/:id/members/:userId/exists
func (h *MemberHandler) Exists(c *gin.Context) {
	projectID, userID, ok := projectAndUserParams(c)
	if !ok {
		return
	}

	exists, err := h.memberService.IsMember(c.Request.Context(), projectID, userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"exists": exists})
}

// Add adds a user to the project. Re-adding with the same role is a no-op.
// POST /api/projects/:id/members/:userId
func (h *MemberHandler) Add(c *gin.Context) {
	projectID, userID, ok := projectAndUserParams(c)
	if !ok {
		return
	}

	var req services.AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	member, created, err := h.memberService.Add(c.Request.Context(), projectID, middleware.GetUser(c), userID, req.Role)
	if err != nil {
		response.Error(c, err)
		return
	}
	if !created {
		c.JSON(http.StatusOK, response.Response{Code: 0, Message: "already a member", Data: member})
		return
	}
	response.Created(c, member)
}

// UpdateRole changes a member's project role
// PUT /api/projects/:id/members/:userId
func (h *MemberHandler) UpdateRole(c *gin.Context) {
	projectID, userID, ok := projectAndUserParams(c)
	if !ok {
		return
	}

	var req services.UpdateMemberRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	change, err := h.memberService.UpdateRole(c.Request.Context(), projectID, middleware.GetUser(c), userID, req.Role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, change)
}

// Delete removes a member from the project
// DELETE /api/projects/:id/members/:userId
func (h *MemberHandler) Delete(c *gin.Context) {
	projectID, userID, ok := projectAndUserParams(c)
	if !ok {
		return
	}

	if err := h.memberService.Delete(c.Request.Context(), projectID, middleware.GetUser(c), userID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

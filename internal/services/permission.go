package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/mni-microservices/project-service/internal/models"
	"github.com/mni-microservices/project-service/internal/repository"
	"github.com/mni-microservices/project-service/pkg/response"
)

func errNoPermissions() error {
	return response.NewForbidden("no permissions")
}

// PermissionService decides whether a caller may act on a project.
//
// Soft permissions (creator, any member, global admin) guard renaming.
// Hard permissions (creator, project admin, global admin) guard member
// management and deletion. A missing project is reported as Forbidden so
// that callers cannot probe for project ids.
type PermissionService struct {
	projects repository.ProjectRepository
	members  repository.MemberRepository
}

func NewPermissionService(projects repository.ProjectRepository, members repository.MemberRepository) *PermissionService {
	return &PermissionService{projects: projects, members: members}
}

func (s *PermissionService) CheckSoftPermissions(ctx context.Context, projectID uuid.UUID, user *models.User) (uuid.UUID, error) {
	return s.check(ctx, projectID, user, func(*models.Member) bool { return true })
}

func (s *PermissionService) CheckHardPermissions(ctx context.Context, projectID uuid.UUID, user *models.User) (uuid.UUID, error) {
	return s.check(ctx, projectID, user, func(m *models.Member) bool {
		return m.ProjectRole == models.ProjectRoleAdmin
	})
}

func (s *PermissionService) check(ctx context.Context, projectID uuid.UUID, user *models.User, memberOK func(*models.Member) bool) (uuid.UUID, error) {
	if user == nil {
		return uuid.Nil, errNoPermissions()
	}

	project, err := s.projects.FindByID(ctx, projectID)
	if errors.Is(err, repository.ErrNotFound) {
		return uuid.Nil, errNoPermissions()
	}
	if err != nil {
		return uuid.Nil, response.Cover(err)
	}

	if user.IsGlobalAdmin() || project.CreatorID == user.ID {
		return projectID, nil
	}

	member, err := s.members.FindOne(ctx, projectID, user.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return uuid.Nil, errNoPermissions()
	}
	if err != nil {
		return uuid.Nil, response.Cover(err)
	}
	if !memberOK(member) {
		return uuid.Nil, errNoPermissions()
	}
	return projectID, nil
}

package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/mni-microservices/project-service/internal/config"
	"github.com/mni-microservices/project-service/internal/events"
	"github.com/mni-microservices/project-service/internal/models"
	"github.com/mni-microservices/project-service/internal/repository"
	"github.com/mni-microservices/project-service/pkg/logger"
	"github.com/mni-microservices/project-service/pkg/response"
)

type ProjectService struct {
	projects    repository.ProjectRepository
	members     *MemberService
	permissions *PermissionService
	saga        *SagaService
	publisher   events.Publisher
	topics      config.EventsConfig
	metrics     *Metrics
}

func NewProjectService(
	projects repository.ProjectRepository,
	members *MemberService,
	permissions *PermissionService,
	saga *SagaService,
	publisher events.Publisher,
	topics *config.EventsConfig,
	metrics *Metrics,
) *ProjectService {
	return &ProjectService{
		projects:    projects,
		members:     members,
		permissions: permissions,
		saga:        saga,
		publisher:   publisher,
		topics:      *topics,
		metrics:     metrics,
	}
}

type CreateProjectRequest struct {
	Name string `json:"name" binding:"required"`
}

type RenameProjectRequest struct {
	Name string `json:"name" binding:"required"`
}

func (s *ProjectService) List(ctx context.Context) ([]models.Project, error) {
	projects, err := s.projects.FindAll(ctx)
	if err != nil {
		return nil, response.Cover(err)
	}
	return projects, nil
}

// ListOfUser returns the projects userID is a member of.
func (s *ProjectService) ListOfUser(ctx context.Context, userID uuid.UUID) ([]models.Project, error) {
	ids, err := s.members.ProjectIDsOfUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	projects, err := s.projects.FindByIDs(ctx, ids)
	if err != nil {
		return nil, response.Cover(err)
	}
	return projects, nil
}

func (s *ProjectService) Get(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	project, err := s.projects.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, response.NewNotFound("project not found")
	}
	if err != nil {
		return nil, response.Cover(err)
	}
	return project, nil
}

// Create stores a new project and makes the requester its first ADMIN. A
// project is never left behind without that admin membership.
func (s *ProjectService) Create(ctx context.Context, name string, requester *models.User) (*models.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, response.NewBadRequest("project name is required")
	}

	project := &models.Project{Name: name, CreatorID: requester.ID}
	if err := s.projects.Create(ctx, project); err != nil {
		return nil, response.Cover(err)
	}

	if _, _, err := s.members.Add(ctx, project.ID, requester, requester.ID, models.ProjectRoleAdmin); err != nil {
		if delErr := s.projects.DeleteByID(context.WithoutCancel(ctx), project.ID); delErr != nil {
			logger.Error().Err(delErr).Str("project_id", project.ID.String()).Msg("[Project] could not remove project without admin")
		}
		return nil, err
	}

	logger.Info().
		Str("project_id", project.ID.String()).
		Str("creator_id", requester.ID.String()).
		Msg("[Project] created")
	publishLogged(ctx, s.publisher, s.metrics, s.topics.DataTopic, events.DataEvent{
		Entity: events.EntityProject,
		Code:   events.DataCreated,
		ID:     project.ID,
	})
	return project, nil
}

func (s *ProjectService) Rename(ctx context.Context, id uuid.UUID, requester *models.User, name string) (*models.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, response.NewBadRequest("project name is required")
	}
	if _, err := s.permissions.CheckSoftPermissions(ctx, id, requester); err != nil {
		return nil, err
	}

	project, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	oldName := project.Name
	project.Name = name
	if err := s.projects.Save(ctx, project); err != nil {
		return nil, response.Cover(err)
	}

	publishLogged(ctx, s.publisher, s.metrics, s.topics.DataTopic, events.DataEvent{
		Entity: events.EntityProject,
		Code:   events.DataUpdated,
		ID:     id,
	})
	publishLogged(ctx, s.publisher, s.metrics, s.topics.DomainTopic, events.DomainEventChangedString{
		Code: events.ProjectChangedName,
		ID:   id,
		Old:  &oldName,
		New:  &project.Name,
	})
	return project, nil
}

// Delete removes the project and its members and starts the deletion saga.
// It returns once the saga is announced; the issue service finishes later.
func (s *ProjectService) Delete(ctx context.Context, id uuid.UUID, requester *models.User) error {
	if _, err := s.permissions.CheckHardPermissions(ctx, id, requester); err != nil {
		return err
	}

	project, members, err := s.projects.DeleteWithMembers(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return response.NewNotFound("project not found")
	}
	if err != nil {
		return response.Cover(err)
	}

	started, err := s.saga.Start(ctx, *project, members)
	if err != nil {
		// The saga already restored the project.
		return response.NewServerError("project deletion could not be started")
	}
	if !started {
		return response.NewConflict("project deletion already in progress")
	}

	publishLogged(ctx, s.publisher, s.metrics, s.topics.DataTopic, events.DataEvent{
		Entity: events.EntityProject,
		Code:   events.DataDeleted,
		ID:     id,
	})
	return nil
}

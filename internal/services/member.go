package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mni-microservices/project-service/internal/events"
	"github.com/mni-microservices/project-service/internal/models"
	"github.com/mni-microservices/project-service/internal/repository"
	"github.com/mni-microservices/project-service/pkg/logger"
	"github.com/mni-microservices/project-service/pkg/response"
)

type MemberService struct {
	members     repository.MemberRepository
	users       repository.UserRepository
	permissions *PermissionService
	publisher   events.Publisher
	domainTopic string
	metrics     *Metrics
}

func NewMemberService(
	members repository.MemberRepository,
	users repository.UserRepository,
	permissions *PermissionService,
	publisher events.Publisher,
	domainTopic string,
	metrics *Metrics,
) *MemberService {
	return &MemberService{
		members:     members,
		users:       users,
		permissions: permissions,
		publisher:   publisher,
		domainTopic: domainTopic,
		metrics:     metrics,
	}
}

type AddMemberRequest struct {
	Role string `json:"role" binding:"required"`
}

type UpdateMemberRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

// MemberRoleChange is the result of a role update.
type MemberRoleChange struct {
	Old models.Member `json:"old"`
	New models.Member `json:"new"`
}

func (s *MemberService) List(ctx context.Context, projectID uuid.UUID) ([]models.Member, error) {
	members, err := s.members.FindByProjectID(ctx, projectID)
	if err != nil {
		return nil, response.Cover(err)
	}
	return members, nil
}

func (s *MemberService) IsMember(ctx context.Context, projectID, userID uuid.UUID) (bool, error) {
	ok, err := s.members.Exists(ctx, projectID, userID)
	if err != nil {
		return false, response.Cover(err)
	}
	return ok, nil
}

// Get returns the membership of userID in projectID.
func (s *MemberService) Get(ctx context.Context, projectID, userID uuid.UUID) (*models.Member, error) {
	member, err := s.members.FindOne(ctx, projectID, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, response.NewNotFound("member not found")
	}
	if err != nil {
		return nil, response.Cover(err)
	}
	return member, nil
}

func (s *MemberService) ProjectIDsOfUser(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	members, err := s.members.FindAllByUserID(ctx, userID)
	if err != nil {
		return nil, response.Cover(err)
	}
	ids := make([]uuid.UUID, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.ProjectID)
	}
	return ids, nil
}

// Add makes userID a member of projectID with role. Adding an existing member
// with the same role returns the existing row and created=false.
func (s *MemberService) Add(ctx context.Context, projectID uuid.UUID, requester *models.User, userID uuid.UUID, role string) (*models.Member, bool, error) {
	if !models.ValidProjectRole(role) {
		return nil, false, response.NewBadRequest(fmt.Sprintf("invalid project role %q", role))
	}

	if existing, err := s.existingWithRole(ctx, projectID, userID, role); existing != nil || err != nil {
		return existing, false, err
	}

	if _, err := s.permissions.CheckHardPermissions(ctx, projectID, requester); err != nil {
		return nil, false, err
	}

	exists, err := s.users.ExistsByID(ctx, userID)
	if err != nil {
		return nil, false, response.Cover(err)
	}
	if !exists {
		return nil, false, response.NewNotFound("user not found")
	}

	member := &models.Member{ProjectID: projectID, UserID: userID, ProjectRole: role}
	if err := s.members.Create(ctx, member); err != nil {
		// A concurrent Add may have inserted the same pair first.
		if existing, lookupErr := s.existingWithRole(ctx, projectID, userID, role); existing != nil || lookupErr != nil {
			return existing, false, lookupErr
		}
		return nil, false, response.Cover(err)
	}

	logger.Info().
		Str("project_id", projectID.String()).
		Str("user_id", userID.String()).
		Str("role", role).
		Msg("[Member] added")
	s.publishRoleChange(ctx, projectID, userID, nil, &role)
	return member, true, nil
}

// existingWithRole returns the current membership if it has role, a Conflict
// if it has another role, and (nil, nil) if there is none.
func (s *MemberService) existingWithRole(ctx context.Context, projectID, userID uuid.UUID, role string) (*models.Member, error) {
	existing, err := s.members.FindOne(ctx, projectID, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, response.Cover(err)
	}
	if existing.ProjectRole != role {
		return nil, response.NewConflict("user is already member of project with a different project role")
	}
	return existing, nil
}

func (s *MemberService) Delete(ctx context.Context, projectID uuid.UUID, requester *models.User, userID uuid.UUID) error {
	if _, err := s.permissions.CheckHardPermissions(ctx, projectID, requester); err != nil {
		return err
	}

	existing, err := s.members.FindOne(ctx, projectID, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return response.NewNotFound("member does not exist")
	}
	if err != nil {
		return response.Cover(err)
	}

	if err := s.members.Delete(ctx, projectID, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return response.NewNotFound("member does not exist")
		}
		return response.Cover(err)
	}

	logger.Info().
		Str("project_id", projectID.String()).
		Str("user_id", userID.String()).
		Msg("[Member] removed")
	s.publishRoleChange(ctx, projectID, userID, &existing.ProjectRole, nil)
	return nil
}

func (s *MemberService) UpdateRole(ctx context.Context, projectID uuid.UUID, requester *models.User, userID uuid.UUID, role string) (*MemberRoleChange, error) {
	if !models.ValidProjectRole(role) {
		return nil, response.NewBadRequest(fmt.Sprintf("invalid project role %q", role))
	}
	if _, err := s.permissions.CheckHardPermissions(ctx, projectID, requester); err != nil {
		return nil, err
	}

	old, err := s.members.FindOne(ctx, projectID, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, response.NewNotFound("member not found")
	}
	if err != nil {
		return nil, response.Cover(err)
	}

	updated := *old
	updated.ProjectRole = role
	if err := s.members.Save(ctx, &updated); err != nil {
		return nil, response.Cover(err)
	}

	s.publishRoleChange(ctx, projectID, userID, &old.ProjectRole, &updated.ProjectRole)
	return &MemberRoleChange{Old: *old, New: updated}, nil
}

func (s *MemberService) publishRoleChange(ctx context.Context, projectID, userID uuid.UUID, oldRole, newRole *string) {
	publishLogged(ctx, s.publisher, s.metrics, s.domainTopic, events.DomainEventChangedStringUUID{
		Code:    events.ProjectChangedMember,
		ID:      projectID,
		Subject: userID,
		Old:     oldRole,
		New:     newRole,
	})
}

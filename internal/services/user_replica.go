package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/mni-microservices/project-service/internal/events"
	"github.com/mni-microservices/project-service/internal/models"
	"github.com/mni-microservices/project-service/internal/repository"
	"github.com/mni-microservices/project-service/pkg/logger"
	"github.com/mni-microservices/project-service/pkg/response"
)

// UserReplicaService mirrors the ids of existing users from the user
// service's data events.
type UserReplicaService struct {
	users repository.UserRepository
}

func NewUserReplicaService(users repository.UserRepository) *UserReplicaService {
	return &UserReplicaService{users: users}
}

// Apply updates the replica for a USER data event. Other entities are ignored.
func (s *UserReplicaService) Apply(ctx context.Context, ev events.DataEvent) error {
	if ev.Entity != events.EntityUser {
		return nil
	}

	switch ev.Code {
	case events.DataCreated:
		if err := s.users.Save(ctx, ev.ID); err != nil {
			return err
		}
		logger.Debugf("[UserReplica] user %s added", ev.ID)
	case events.DataDeleted:
		err := s.users.DeleteByID(ctx, ev.ID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		logger.Debugf("[UserReplica] user %s removed", ev.ID)
	case events.DataUpdated:
	default:
		logger.Warnf("[UserReplica] unexpected code %q for user %s", ev.Code, ev.ID)
	}
	return nil
}

func (s *UserReplicaService) List(ctx context.Context) ([]models.UserID, error) {
	users, err := s.users.FindAll(ctx)
	if err != nil {
		return nil, response.Cover(err)
	}
	return users, nil
}

func (s *UserReplicaService) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	ok, err := s.users.ExistsByID(ctx, id)
	if err != nil {
		return false, response.Cover(err)
	}
	return ok, nil
}

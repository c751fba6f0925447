// Package repository is the persistence gateway for projects, members and the
// replicated user ids. All implementations sit on gorm.
package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/mni-microservices/project-service/internal/models"
	"gorm.io/gorm"
)

// ErrNotFound is returned when a looked-up row does not exist.
var ErrNotFound = errors.New("record not found")

type ProjectRepository interface {
	FindAll(ctx context.Context) ([]models.Project, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Project, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Project, error)
	Create(ctx context.Context, project *models.Project) error
	// Save inserts the project or overwrites the row with the same id.
	Save(ctx context.Context, project *models.Project) error
	DeleteByID(ctx context.Context, id uuid.UUID) error
	// DeleteWithMembers reads the project and its members and deletes them in
	// one transaction, returning the snapshot that was removed.
	DeleteWithMembers(ctx context.Context, id uuid.UUID) (*models.Project, []models.Member, error)
	// Restore upserts a project and its members in one transaction.
	Restore(ctx context.Context, project *models.Project, members []models.Member) error
}

type MemberRepository interface {
	FindByProjectID(ctx context.Context, projectID uuid.UUID) ([]models.Member, error)
	FindAllByUserID(ctx context.Context, userID uuid.UUID) ([]models.Member, error)
	FindOne(ctx context.Context, projectID, userID uuid.UUID) (*models.Member, error)
	Exists(ctx context.Context, projectID, userID uuid.UUID) (bool, error)
	Create(ctx context.Context, member *models.Member) error
	// Save inserts the member or overwrites the row with the same id.
	Save(ctx context.Context, member *models.Member) error
	Delete(ctx context.Context, projectID, userID uuid.UUID) error
}

type UserRepository interface {
	FindAll(ctx context.Context) ([]models.UserID, error)
	ExistsByID(ctx context.Context, id uuid.UUID) (bool, error)
	Save(ctx context.Context, id uuid.UUID) error
	DeleteByID(ctx context.Context, id uuid.UUID) error
}

// Repositories bundles the gorm-backed repositories sharing one connection.
type Repositories struct {
	Projects ProjectRepository
	Members  MemberRepository
	Users    UserRepository
}

func New(db *gorm.DB) *Repositories {
	return &Repositories{
		Projects: NewProjectRepository(db),
		Members:  NewMemberRepository(db),
		Users:    NewUserRepository(db),
	}
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

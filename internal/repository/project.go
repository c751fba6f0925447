package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/mni-microservices/project-service/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type projectRepository struct {
	db *gorm.DB
}

func NewProjectRepository(db *gorm.DB) ProjectRepository {
	return &projectRepository{db: db}
}

func (r *projectRepository) FindAll(ctx context.Context) ([]models.Project, error) {
	var projects []models.Project
	if err := r.db.WithContext(ctx).Order("create_time DESC").Find(&projects).Error; err != nil {
		return nil, err
	}
	return projects, nil
}

func (r *projectRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	var project models.Project
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&project).Error; err != nil {
		return nil, translate(err)
	}
	return &project, nil
}

func (r *projectRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Project, error) {
	if len(ids) == 0 {
		return []models.Project{}, nil
	}
	var projects []models.Project
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("create_time DESC").Find(&projects).Error; err != nil {
		return nil, err
	}
	return projects, nil
}

func (r *projectRepository) Create(ctx context.Context, project *models.Project) error {
	if project.ID == uuid.Nil {
		project.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(project).Error
}

func (r *projectRepository) Save(ctx context.Context, project *models.Project) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "creator_id", "create_time"}),
		}).
		Create(project).Error
}

func (r *projectRepository) DeleteByID(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Project{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *projectRepository) DeleteWithMembers(ctx context.Context, id uuid.UUID) (*models.Project, []models.Member, error) {
	var (
		project models.Project
		members []models.Member
	)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&project).Error; err != nil {
			return translate(err)
		}
		if err := tx.Where("project_id = ?", id).Find(&members).Error; err != nil {
			return fmt.Errorf("load members: %w", err)
		}
		if err := tx.Where("project_id = ?", id).Delete(&models.Member{}).Error; err != nil {
			return fmt.Errorf("delete members: %w", err)
		}
		result := tx.Where("id = ?", id).Delete(&models.Project{})
		if result.Error != nil {
			return fmt.Errorf("delete project: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			// Lost a race with another delete between read and write.
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return &project, members, nil
}

func (r *projectRepository) Restore(ctx context.Context, project *models.Project, members []models.Member) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "creator_id", "create_time"}),
		}).Create(project).Error; err != nil {
			return fmt.Errorf("restore project: %w", err)
		}
		for i := range members {
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				DoUpdates: clause.AssignmentColumns([]string{"project_role"}),
			}).Create(&members[i]).Error; err != nil {
				return fmt.Errorf("restore member %s: %w", members[i].UserID, err)
			}
		}
		return nil
	})
}

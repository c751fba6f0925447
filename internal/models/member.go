package models

import (
	"github.com/google/uuid"
)

// Project roles.
const (
	ProjectRoleAdmin = "ADMIN"
	ProjectRoleUser  = "USER"
)

// ValidProjectRole reports whether role is one of the known project roles.
func ValidProjectRole(role string) bool {
	return role == ProjectRoleAdmin || role == ProjectRoleUser
}

// Member represents a user's membership and role within a project.
// At most one row exists per (ProjectID, UserID).
type Member struct {
	ID          uuid.UUID `gorm:"type:varchar(36);primaryKey" json:"id"`
	ProjectID   uuid.UUID `gorm:"type:varchar(36);uniqueIndex:idx_project_user;not null" json:"project_id"`
	UserID      uuid.UUID `gorm:"type:varchar(36);uniqueIndex:idx_project_user;index;not null" json:"user_id"`
	ProjectRole string    `gorm:"size:20;not null;default:USER" json:"project_role"`
}

func (Member) TableName() string { return "members" }

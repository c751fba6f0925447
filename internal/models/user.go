package models

import (
	"github.com/google/uuid"
)

// Global roles carried in the bearer token.
const (
	GlobalRoleAdmin = "ADMIN"
	GlobalRoleUser  = "USER"
)

// UserID is the local replica of a user known to the user service. Rows are
// inserted and removed from user data events; the service never edits users.
type UserID struct {
	ID uuid.UUID `gorm:"type:varchar(36);primaryKey" json:"id"`
}

func (UserID) TableName() string { return "user_ids" }

// User is the authenticated caller resolved from the bearer token.
type User struct {
	ID         uuid.UUID `json:"id"`
	Username   string    `json:"username"`
	GlobalRole string    `json:"global_role"`
}

// IsGlobalAdmin reports whether the caller holds the global administrator role.
func (u User) IsGlobalAdmin() bool {
	return u.GlobalRole == GlobalRoleAdmin
}

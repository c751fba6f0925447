package models

import (
	"time"

	"github.com/google/uuid"
)

// Project is the aggregate root owned by this service. Members reference it by
// ProjectID and are removed together with it.
type Project struct {
	ID         uuid.UUID `gorm:"type:varchar(36);primaryKey" json:"id"`
	Name       string    `gorm:"size:200;not null" json:"name"`
	CreatorID  uuid.UUID `gorm:"type:varchar(36);not null;index" json:"creator_id"`
	CreateTime time.Time `gorm:"autoCreateTime" json:"create_time"`
}

func (Project) TableName() string { return "projects" }

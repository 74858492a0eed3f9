package share

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Permission is the access level a grant confers on a worker.
type Permission string

const (
	PermissionView    Permission = "view"
	PermissionControl Permission = "control"
	PermissionAdmin   Permission = "admin"
)

// Rank orders permissions for hierarchy checks. Zero means unknown.
func (p Permission) Rank() int {
	switch p {
	case PermissionView:
		return 1
	case PermissionControl:
		return 2
	case PermissionAdmin:
		return 3
	}
	return 0
}

func (p Permission) Valid() bool {
	return p.Rank() > 0
}

// Grant lets a non-owner user access a worker at a given permission level.
type Grant struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey"`
	WorkerID   uuid.UUID  `gorm:"type:uuid;index:idx_grant_worker_user,unique;not null"`
	UserID     uuid.UUID  `gorm:"type:uuid;index:idx_grant_worker_user,unique;not null"`
	Permission Permission `gorm:"not null;default:'view'"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (g *Grant) BeforeCreate(tx *gorm.DB) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	return nil
}

package worker

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
)

type Worker struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	OwnerID    uuid.UUID `gorm:"type:uuid;index;not null"`
	Name       string    `gorm:"not null"`
	APIKey     string    `gorm:"column:api_key;uniqueIndex;not null"`
	Status     Status    `gorm:"not null;default:'offline'"`
	LastSeenAt time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (w *Worker) BeforeCreate(tx *gorm.DB) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	return nil
}

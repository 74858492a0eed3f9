package session

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Record mirrors a session's display name durably. The live session itself
// (buffer, subscribers, timestamps) exists only inside the relay; this row
// survives restarts so a renamed session keeps its name when it reappears.
type Record struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	WorkerID    uuid.UUID `gorm:"type:uuid;index:idx_session_worker_sid,unique;not null"`
	SessionID   string    `gorm:"column:session_id;index:idx_session_worker_sid,unique;not null"`
	DisplayName string    `gorm:"column:display_name;not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (s *Record) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

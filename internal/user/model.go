package user

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	Email        string    `gorm:"uniqueIndex;not null"`
	PasswordHash string    `gorm:"column:password_hash"`
	Name         string    `gorm:"not null"`
	GoogleID     string    `gorm:"column:google_id;index"`
	AvatarURL    string    `gorm:"column:avatar_url"`
	IsAdmin      bool      `gorm:"column:is_admin;not null;default:false"`
	LastLoginAt  time.Time `gorm:"column:last_login_at"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

package user

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(u *User) error {
	return r.db.Create(u).Error
}

func (r *Repository) FindByID(id uuid.UUID) (*User, error) {
	return r.findOne("id = ?", id)
}

func (r *Repository) FindByEmail(email string) (*User, error) {
	return r.findOne("email = ?", email)
}

func (r *Repository) FindByGoogleID(googleID string) (*User, error) {
	return r.findOne("google_id = ?", googleID)
}

// UpdateName changes the display name only.
func (r *Repository) UpdateName(id uuid.UUID, name string) error {
	return r.db.Model(&User{}).Where("id = ?", id).UpdateColumn("name", name).Error
}

// TouchLogin stamps a successful authentication.
func (r *Repository) TouchLogin(id uuid.UUID, at time.Time) error {
	return r.db.Model(&User{}).Where("id = ?", id).UpdateColumn("last_login_at", at).Error
}

// LinkGoogleID attaches a Google account to an existing user.
func (r *Repository) LinkGoogleID(id uuid.UUID, googleID string) error {
	return r.db.Model(&User{}).Where("id = ?", id).UpdateColumn("google_id", googleID).Error
}

func (r *Repository) findOne(query string, arg interface{}) (*User, error) {
	var u User
	if err := r.db.Where(query, arg).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

package share

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Upsert creates the grant or updates the permission of an existing one.
func (r *Repository) Upsert(g *Grant) error {
	var existing Grant
	err := r.db.Where("worker_id = ? AND user_id = ?", g.WorkerID, g.UserID).First(&existing).Error
	if err == gorm.ErrRecordNotFound {
		return r.db.Create(g).Error
	}
	if err != nil {
		return err
	}
	existing.Permission = g.Permission
	if err := r.db.Save(&existing).Error; err != nil {
		return err
	}
	*g = existing
	return nil
}

func (r *Repository) Find(workerID, userID uuid.UUID) (*Grant, error) {
	var g Grant
	err := r.db.Where("worker_id = ? AND user_id = ?", workerID, userID).First(&g).Error
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (r *Repository) FindByWorkerID(workerID uuid.UUID) ([]Grant, error) {
	var grants []Grant
	err := r.db.Where("worker_id = ?", workerID).Find(&grants).Error
	return grants, err
}

func (r *Repository) FindByUserID(userID uuid.UUID) ([]Grant, error) {
	var grants []Grant
	err := r.db.Where("user_id = ?", userID).Find(&grants).Error
	return grants, err
}

func (r *Repository) Delete(workerID, userID uuid.UUID) error {
	return r.db.Delete(&Grant{}, "worker_id = ? AND user_id = ?", workerID, userID).Error
}

func (r *Repository) DeleteByWorkerID(workerID uuid.UUID) error {
	return r.db.Delete(&Grant{}, "worker_id = ?", workerID).Error
}

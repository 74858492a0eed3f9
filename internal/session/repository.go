package session

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

// SaveName upserts the durable display name for a session.
func (r *Repository) SaveName(workerID uuid.UUID, sessionID, name string) error {
	var rec Record
	err := r.db.Where("worker_id = ? AND session_id = ?", workerID, sessionID).First(&rec).Error
	if err == gorm.ErrRecordNotFound {
		rec = Record{WorkerID: workerID, SessionID: sessionID, DisplayName: name}
		return r.db.Create(&rec).Error
	}
	if err != nil {
		return err
	}
	rec.DisplayName = name
	return r.db.Save(&rec).Error
}

// FindName returns the stored display name, or "" when none exists.
func (r *Repository) FindName(workerID uuid.UUID, sessionID string) (string, error) {
	var rec Record
	err := r.db.Where("worker_id = ? AND session_id = ?", workerID, sessionID).First(&rec).Error
	if err == gorm.ErrRecordNotFound {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return rec.DisplayName, nil
}

func (r *Repository) Delete(workerID uuid.UUID, sessionID string) error {
	return r.db.Delete(&Record{}, "worker_id = ? AND session_id = ?", workerID, sessionID).Error
}

func (r *Repository) DeleteByWorkerID(workerID uuid.UUID) error {
	return r.db.Delete(&Record{}, "worker_id = ?", workerID).Error
}

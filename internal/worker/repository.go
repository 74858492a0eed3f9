package worker

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

func (r *Repository) Create(w *Worker) error {
	return r.db.Create(w).Error
}

func (r *Repository) FindByID(id uuid.UUID) (*Worker, error) {
	var w Worker
	err := r.db.First(&w, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *Repository) FindByAPIKey(key string) (*Worker, error) {
	var w Worker
	err := r.db.Where("api_key = ?", key).First(&w).Error
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *Repository) FindByOwnerID(ownerID uuid.UUID) ([]Worker, error) {
	var workers []Worker
	err := r.db.Where("owner_id = ?", ownerID).Order("created_at desc").Find(&workers).Error
	return workers, err
}

func (r *Repository) FindByIDs(ids []uuid.UUID) ([]Worker, error) {
	var workers []Worker
	if len(ids) == 0 {
		return workers, nil
	}
	err := r.db.Where("id IN ?", ids).Find(&workers).Error
	return workers, err
}

func (r *Repository) UpdateStatus(id uuid.UUID, status Status, seen time.Time) error {
	return r.db.Model(&Worker{}).Where("id = ?", id).
		Updates(map[string]interface{}{"status": status, "last_seen_at": seen}).Error
}

// MarkStaleOffline flips workers whose last heartbeat predates cutoff to
// offline, returning how many rows changed.
func (r *Repository) MarkStaleOffline(cutoff time.Time) (int64, error) {
	res := r.db.Model(&Worker{}).
		Where("status = ? AND last_seen_at < ?", StatusOnline, cutoff).
		Update("status", StatusOffline)
	return res.RowsAffected, res.Error
}

func (r *Repository) UpdateName(id uuid.UUID, name string) error {
	return r.db.Model(&Worker{}).Where("id = ?", id).
		UpdateColumn("name", name).Error
}

func (r *Repository) Update(w *Worker) error {
	return r.db.Save(w).Error
}

func (r *Repository) Delete(id uuid.UUID) error {
	return r.db.Delete(&Worker{}, "id = ?", id).Error
}

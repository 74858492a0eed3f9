package share

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nexusterm/server/internal/worker"
)

// Gate decides whether a user may act on a worker at a required permission
// level. Owners hold admin implicitly; everyone else needs a grant whose
// rank covers the required rank.
type Gate struct {
	workers *worker.Repository
	grants  *Repository
}

func NewGate(workers *worker.Repository, grants *Repository) *Gate {
	return &Gate{workers: workers, grants: grants}
}

func (g *Gate) HasAccess(userID, workerID uuid.UUID, required Permission) (bool, error) {
	w, err := g.workers.FindByID(workerID)
	if err == gorm.ErrRecordNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if w.OwnerID == userID {
		return true, nil
	}

	grant, err := g.grants.Find(workerID, userID)
	if err == gorm.ErrRecordNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return grant.Permission.Rank() >= required.Rank(), nil
}

// EffectivePermission returns the user's level on a worker, or "" if none.
func (g *Gate) EffectivePermission(userID, workerID uuid.UUID) (Permission, error) {
	w, err := g.workers.FindByID(workerID)
	if err == gorm.ErrRecordNotFound {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if w.OwnerID == userID {
		return PermissionAdmin, nil
	}

	grant, err := g.grants.Find(workerID, userID)
	if err == gorm.ErrRecordNotFound {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return grant.Permission, nil
}

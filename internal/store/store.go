package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nexusterm/server/internal/relay"
	"github.com/nexusterm/server/internal/session"
	"github.com/nexusterm/server/internal/share"
	"github.com/nexusterm/server/internal/worker"
)

// Store backs the relay with the GORM repositories and the access gate.
type Store struct {
	workers  *worker.Repository
	shares   *share.Repository
	sessions *session.Repository
	gate     *share.Gate
}

func New(workers *worker.Repository, shares *share.Repository, sessions *session.Repository, gate *share.Gate) *Store {
	return &Store{workers: workers, shares: shares, sessions: sessions, gate: gate}
}

func (s *Store) WorkerByAPIKey(key string) (*worker.Worker, error) {
	w, err := s.workers.FindByAPIKey(key)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, relay.ErrNotFound
	}
	return w, err
}

func (s *Store) WorkerByID(id uuid.UUID) (*worker.Worker, error) {
	w, err := s.workers.FindByID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, relay.ErrNotFound
	}
	return w, err
}

func (s *Store) AccessibleWorkers(userID uuid.UUID) ([]relay.WorkerAccess, error) {
	owned, err := s.workers.FindByOwnerID(userID)
	if err != nil {
		return nil, fmt.Errorf("list owned workers: %w", err)
	}

	access := make([]relay.WorkerAccess, 0, len(owned))
	for _, w := range owned {
		access = append(access, relay.WorkerAccess{Worker: w, Permission: share.PermissionAdmin})
	}

	grants, err := s.shares.FindByUserID(userID)
	if err != nil {
		return nil, fmt.Errorf("list share grants: %w", err)
	}
	if len(grants) == 0 {
		return access, nil
	}

	ids := make([]uuid.UUID, 0, len(grants))
	permByWorker := make(map[uuid.UUID]share.Permission, len(grants))
	for _, g := range grants {
		ids = append(ids, g.WorkerID)
		permByWorker[g.WorkerID] = g.Permission
	}
	shared, err := s.workers.FindByIDs(ids)
	if err != nil {
		return nil, fmt.Errorf("list shared workers: %w", err)
	}
	for _, w := range shared {
		access = append(access, relay.WorkerAccess{Worker: w, Permission: permByWorker[w.ID]})
	}
	return access, nil
}

// Accessible implements worker.Directory for the REST layer.
func (s *Store) Accessible(userID uuid.UUID) ([]worker.Access, error) {
	access, err := s.AccessibleWorkers(userID)
	if err != nil {
		return nil, err
	}
	out := make([]worker.Access, len(access))
	for i, a := range access {
		out[i] = worker.Access{Worker: a.Worker, Permission: string(a.Permission)}
	}
	return out, nil
}

func (s *Store) HasAccess(userID, workerID uuid.UUID, required share.Permission) (bool, error) {
	return s.gate.HasAccess(userID, workerID, required)
}

func (s *Store) SetWorkerStatus(id uuid.UUID, status worker.Status, seen time.Time) error {
	return s.workers.UpdateStatus(id, status, seen)
}

func (s *Store) SetWorkerName(id uuid.UUID, name string) error {
	return s.workers.UpdateName(id, name)
}

func (s *Store) SessionName(workerID uuid.UUID, sessionID string) (string, error) {
	return s.sessions.FindName(workerID, sessionID)
}

func (s *Store) SaveSessionName(workerID uuid.UUID, sessionID, name string) error {
	return s.sessions.SaveName(workerID, sessionID, name)
}

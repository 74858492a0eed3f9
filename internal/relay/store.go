package relay

import (
	"time"

	"github.com/google/uuid"

	"github.com/nexusterm/server/internal/share"
	"github.com/nexusterm/server/internal/worker"
)

// WorkerAccess pairs a worker record with the permission one user holds on it.
type WorkerAccess struct {
	Worker     worker.Worker
	Permission share.Permission
}

// Store is the durable collaborator behind the relay. Implementations may
// block on I/O; the hub never calls them while holding its lock.
type Store interface {
	WorkerByAPIKey(key string) (*worker.Worker, error)
	WorkerByID(id uuid.UUID) (*worker.Worker, error)

	// AccessibleWorkers lists workers the user owns or has a grant on,
	// annotated with the effective permission (admin for owned).
	AccessibleWorkers(userID uuid.UUID) ([]WorkerAccess, error)

	// HasAccess applies the ownership + grant-rank check.
	HasAccess(userID, workerID uuid.UUID, required share.Permission) (bool, error)

	SetWorkerStatus(id uuid.UUID, status worker.Status, seen time.Time) error
	SetWorkerName(id uuid.UUID, name string) error

	// SessionName returns the durably mirrored display name, "" if none.
	SessionName(workerID uuid.UUID, sessionID string) (string, error)
	SaveSessionName(workerID uuid.UUID, sessionID, name string) error
}

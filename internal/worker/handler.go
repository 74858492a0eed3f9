package worker

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/nexusterm/server/internal/auth"
)

// Access pairs a worker with the permission the requesting user holds on it.
type Access struct {
	Worker     Worker
	Permission string
}

// Directory lists the workers a user can see (owned + shared).
type Directory interface {
	Accessible(userID uuid.UUID) ([]Access, error)
}

// LiveRegistry is the relay's view consumed by the REST layer.
type LiveRegistry interface {
	WorkerOnline(workerID uuid.UUID) bool
	DisconnectWorker(workerID uuid.UUID)
	BroadcastLists()
}

// DeleteHook runs after a worker row is removed so other domains can clean up
// grants, name mirrors, and managed agents without this package importing them.
type DeleteHook func(workerID uuid.UUID)

type Handler struct {
	repo     *Repository
	dir      Directory
	registry LiveRegistry
	onDelete DeleteHook
}

func NewHandler(repo *Repository, dir Directory, registry LiveRegistry, onDelete DeleteHook) *Handler {
	return &Handler{repo: repo, dir: dir, registry: registry, onDelete: onDelete}
}

type createRequest struct {
	Name string `json:"name"`
}

type renameRequest struct {
	Name string `json:"name"`
}

// Create registers a new worker and issues its API key. The key is returned
// only here; afterwards it is visible to nobody.
func (h *Handler) Create(c *fiber.Ctx) error {
	userID := auth.UserID(c)

	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if req.Name == "" {
		req.Name = "Worker"
	}

	apiKey, err := generateAPIKey()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to generate api key"})
	}

	w := &Worker{
		OwnerID: userID,
		Name:    req.Name,
		APIKey:  apiKey,
		Status:  StatusOffline,
	}
	if err := h.repo.Create(w); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to create worker"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":     w.ID,
		"name":   w.Name,
		"apiKey": w.APIKey,
		"status": w.Status,
	})
}

// List returns the workers visible to the user with effective permissions
// and live connection state.
func (h *Handler) List(c *fiber.Ctx) error {
	userID := auth.UserID(c)

	access, err := h.dir.Accessible(userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to list workers"})
	}

	result := make([]fiber.Map, len(access))
	for i, a := range access {
		result[i] = fiber.Map{
			"id":         a.Worker.ID,
			"name":       a.Worker.Name,
			"status":     a.Worker.Status,
			"lastSeen":   a.Worker.LastSeenAt,
			"permission": a.Permission,
			"connected":  h.registry.WorkerOnline(a.Worker.ID),
		}
	}
	return c.JSON(result)
}

// Rename changes a worker's display name. Owner only.
func (h *Handler) Rename(c *fiber.Ctx) error {
	userID := auth.UserID(c)
	workerID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid worker id"})
	}

	w, err := h.repo.FindByID(workerID)
	if err != nil || w.OwnerID != userID {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "worker not found"})
	}

	var req renameRequest
	if err := c.BodyParser(&req); err != nil || req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "name is required"})
	}

	if err := h.repo.UpdateName(workerID, req.Name); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to rename worker"})
	}

	h.registry.BroadcastLists()
	return c.JSON(fiber.Map{"id": w.ID, "name": req.Name})
}

// Delete removes a worker and severs its live connection. Owner only.
func (h *Handler) Delete(c *fiber.Ctx) error {
	userID := auth.UserID(c)
	workerID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid worker id"})
	}

	w, err := h.repo.FindByID(workerID)
	if err != nil || w.OwnerID != userID {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "worker not found"})
	}

	h.registry.DisconnectWorker(workerID)
	if err := h.repo.Delete(workerID); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to delete worker"})
	}
	if h.onDelete != nil {
		h.onDelete(workerID)
	}

	h.registry.BroadcastLists()
	return c.SendStatus(fiber.StatusNoContent)
}

func generateAPIKey() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return "wk_" + hex.EncodeToString(b), nil
}

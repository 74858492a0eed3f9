package share

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/nexusterm/server/internal/auth"
	"github.com/nexusterm/server/internal/user"
	"github.com/nexusterm/server/internal/worker"
)

// Broadcaster lets the REST layer nudge the relay after a grant change so
// the grantee's open tabs learn about the worker immediately.
type Broadcaster interface {
	BroadcastLists()
}

type Handler struct {
	grants      *Repository
	workers     *worker.Repository
	users       *user.Repository
	gate        *Gate
	broadcaster Broadcaster
}

func NewHandler(grants *Repository, workers *worker.Repository, users *user.Repository, gate *Gate, broadcaster Broadcaster) *Handler {
	return &Handler{grants: grants, workers: workers, users: users, gate: gate, broadcaster: broadcaster}
}

type grantRequest struct {
	Email      string     `json:"email"`
	Permission Permission `json:"permission"`
}

// Grant shares a worker with another user by email. Requires ownership or an
// admin grant on the worker.
func (h *Handler) Grant(c *fiber.Ctx) error {
	userID := auth.UserID(c)
	workerID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid worker id"})
	}

	allowed, err := h.gate.HasAccess(userID, workerID, PermissionAdmin)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}
	if !allowed {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "admin access required"})
	}

	var req grantRequest
	if err := c.BodyParser(&req); err != nil || req.Email == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "email is required"})
	}
	if !req.Permission.Valid() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "permission must be view, control, or admin"})
	}

	grantee, err := h.users.FindByEmail(req.Email)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "user not found"})
	}

	w, err := h.workers.FindByID(workerID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "worker not found"})
	}
	if w.OwnerID == grantee.ID {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "user already owns this worker"})
	}

	g := &Grant{WorkerID: workerID, UserID: grantee.ID, Permission: req.Permission}
	if err := h.grants.Upsert(g); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to save grant"})
	}

	h.broadcaster.BroadcastLists()
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"workerId":   g.WorkerID,
		"userId":     g.UserID,
		"permission": g.Permission,
	})
}

// List returns the grants on a worker. Requires ownership or admin.
func (h *Handler) List(c *fiber.Ctx) error {
	userID := auth.UserID(c)
	workerID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid worker id"})
	}

	allowed, err := h.gate.HasAccess(userID, workerID, PermissionAdmin)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}
	if !allowed {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "admin access required"})
	}

	grants, err := h.grants.FindByWorkerID(workerID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to list grants"})
	}

	result := make([]fiber.Map, len(grants))
	for i, g := range grants {
		entry := fiber.Map{
			"userId":     g.UserID,
			"permission": g.Permission,
		}
		if u, err := h.users.FindByID(g.UserID); err == nil {
			entry["email"] = u.Email
			entry["name"] = u.Name
		}
		result[i] = entry
	}
	return c.JSON(result)
}

// Revoke removes a user's grant on a worker. Requires ownership or admin.
func (h *Handler) Revoke(c *fiber.Ctx) error {
	userID := auth.UserID(c)
	workerID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid worker id"})
	}
	granteeID, err := uuid.Parse(c.Params("userId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid user id"})
	}

	allowed, err := h.gate.HasAccess(userID, workerID, PermissionAdmin)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}
	if !allowed {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "admin access required"})
	}

	if err := h.grants.Delete(workerID, granteeID); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to revoke grant"})
	}

	h.broadcaster.BroadcastLists()
	return c.SendStatus(fiber.StatusNoContent)
}

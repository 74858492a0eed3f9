package container

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nexusterm/server/internal/auth"
	"github.com/nexusterm/server/internal/worker"
)

// Agent records a launched worker-agent container so it can be stopped later.
type Agent struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	WorkerID    uuid.UUID `gorm:"type:uuid;uniqueIndex;not null"`
	NodeID      uuid.UUID `gorm:"type:uuid;index;not null"`
	ContainerID string    `gorm:"column:container_id;not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (a *Agent) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

type Handler struct {
	db      *gorm.DB
	pool    *NodePool
	manager *AgentManager
	workers *worker.Repository
}

func NewHandler(db *gorm.DB, pool *NodePool, manager *AgentManager, workers *worker.Repository) *Handler {
	return &Handler{db: db, pool: pool, manager: manager, workers: workers}
}

type registerNodeRequest struct {
	Host         string `json:"host"`
	DockerAPIURL string `json:"dockerApiUrl"`
	TLSCertPath  string `json:"tlsCertPath"`
	Capacity     int    `json:"capacity"`
}

// RegisterNode adds a Docker host to the pool. Admin only.
func (h *Handler) RegisterNode(c *fiber.Ctx) error {
	if !auth.IsAdmin(c) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "admin access required"})
	}

	var req registerNodeRequest
	if err := c.BodyParser(&req); err != nil || req.Host == "" || req.DockerAPIURL == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "host and dockerApiUrl are required"})
	}
	if req.Capacity <= 0 {
		req.Capacity = 10
	}

	n := &Node{
		Host:         req.Host,
		DockerAPIURL: req.DockerAPIURL,
		TLSCertPath:  req.TLSCertPath,
		Capacity:     req.Capacity,
		Status:       NodeActive,
	}
	if err := h.pool.Register(n); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to register node"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": n.ID, "host": n.Host})
}

// ListNodes returns the node pool. Admin only.
func (h *Handler) ListNodes(c *fiber.Ctx) error {
	if !auth.IsAdmin(c) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "admin access required"})
	}

	nodes, err := h.pool.List()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to list nodes"})
	}

	result := make([]fiber.Map, len(nodes))
	for i, n := range nodes {
		result[i] = fiber.Map{
			"id":           n.ID,
			"host":         n.Host,
			"capacity":     n.Capacity,
			"activeAgents": n.ActiveAgents,
			"status":       n.Status,
		}
	}
	return c.JSON(result)
}

// LaunchAgent starts a managed agent container for one of the user's
// workers on the least-loaded node.
func (h *Handler) LaunchAgent(c *fiber.Ctx) error {
	userID := auth.UserID(c)
	workerID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid worker id"})
	}

	w, err := h.workers.FindByID(workerID)
	if err != nil || w.OwnerID != userID {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "worker not found"})
	}

	var existing Agent
	if err := h.db.Where("worker_id = ?", workerID).First(&existing).Error; err == nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "worker already has a managed agent"})
	}

	node, err := h.pool.SelectNode()
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "no node available"})
	}

	containerID, err := h.manager.LaunchAgent(c.Context(), node, w.ID.String(), w.APIKey)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	agent := &Agent{WorkerID: w.ID, NodeID: node.ID, ContainerID: containerID}
	if err := h.db.Create(agent).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to record agent"})
	}
	if err := h.pool.IncrementAgents(node.ID); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to update node"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"workerId":    w.ID,
		"nodeId":      node.ID,
		"containerId": containerID,
	})
}

// StopAgent tears down a worker's managed agent container.
func (h *Handler) StopAgent(c *fiber.Ctx) error {
	userID := auth.UserID(c)
	workerID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid worker id"})
	}

	w, err := h.workers.FindByID(workerID)
	if err != nil || w.OwnerID != userID {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "worker not found"})
	}

	var agent Agent
	if err := h.db.Where("worker_id = ?", workerID).First(&agent).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no managed agent for this worker"})
	}

	node, err := h.pool.FindByID(agent.NodeID)
	if err == nil {
		if err := h.manager.StopAgent(c.Context(), node, agent.ContainerID); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}
		h.pool.DecrementAgents(node.ID)
	}

	if err := h.db.Delete(&agent).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to remove agent record"})
	}

	return c.SendStatus(fiber.StatusNoContent)
}

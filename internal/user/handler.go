package user

import (
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type Handler struct {
	repo *Repository
}

func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

// GetMe returns the authenticated user's profile.
func (h *Handler) GetMe(c *fiber.Ctx) error {
	u, err := h.repo.FindByID(requestUserID(c))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "user not found"})
	}

	return c.JSON(fiber.Map{
		"id":        u.ID,
		"email":     u.Email,
		"name":      u.Name,
		"avatarUrl": u.AvatarURL,
		"isAdmin":   u.IsAdmin,
	})
}

type updateMeRequest struct {
	Name string `json:"name"`
}

// UpdateMe changes the caller's display name.
func (h *Handler) UpdateMe(c *fiber.Ctx) error {
	var req updateMeRequest
	if err := c.BodyParser(&req); err != nil || req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "name is required"})
	}

	userID := requestUserID(c)
	if err := h.repo.UpdateName(userID, req.Name); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to update profile"})
	}
	return c.JSON(fiber.Map{"id": userID, "name": req.Name})
}

// Local claim extraction: this package cannot use the auth helpers because
// auth imports it for the user model.
func requestUserID(c *fiber.Ctx) uuid.UUID {
	token := c.Locals("user").(*jwt.Token)
	claims := token.Claims.(jwt.MapClaims)
	id, _ := uuid.Parse(claims["sub"].(string))
	return id
}
